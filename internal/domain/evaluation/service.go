package evaluation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinform/clinform/internal/platform/apperr"
	"github.com/clinform/clinform/internal/platform/auth"
)

// TxRunner executes fn atomically.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	evaluations EvaluationRepository
	answers     AnswerRepository
	schema      SchemaReader
	registry    RegistryReader
	tx          TxRunner
}

func NewService(
	evaluations EvaluationRepository,
	answers AnswerRepository,
	schema SchemaReader,
	registry RegistryReader,
	tx TxRunner,
) *Service {
	return &Service{
		evaluations: evaluations,
		answers:     answers,
		schema:      schema,
		registry:    registry,
		tx:          tx,
	}
}

type CreateInput struct {
	PatientID uuid.UUID `json:"patient_id"`
	RevisorID uuid.UUID `json:"revisor_id"`
	SurveyID  uuid.UUID `json:"survey_id"`
}

// Create opens an evaluation after the registry guards pass: both parties
// active, distinct, and sharing a group.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Evaluation, error) {
	if in.PatientID == in.RevisorID {
		return nil, fmt.Errorf("%w: patient and revisor must differ", apperr.ErrValidation)
	}
	active, err := s.registry.PatientActive(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("%w: patient %s is not active", apperr.ErrValidation, in.PatientID)
	}
	active, err = s.registry.RevisorActive(ctx, in.RevisorID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("%w: revisor %s is not active", apperr.ErrValidation, in.RevisorID)
	}
	shared, err := s.registry.ActiveAndShareGroup(ctx, in.PatientID, in.RevisorID)
	if err != nil {
		return nil, err
	}
	if !shared {
		return nil, fmt.Errorf("%w: patient %s and revisor %s do not share a group", apperr.ErrForbidden, in.PatientID, in.RevisorID)
	}
	exists, err := s.schema.SurveyExists(ctx, in.SurveyID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: survey %s", apperr.ErrNotFound, in.SurveyID)
	}

	ev := &Evaluation{PatientID: in.PatientID, RevisorID: in.RevisorID, SurveyID: in.SurveyID}
	if err := s.evaluations.Create(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// canAccess gates per-evaluation access: coordinators see everything,
// a revisor only their assigned evaluations, a patient only their own.
func canAccess(ctx context.Context, ev *Evaluation) error {
	if auth.HasRole(ctx, "coordinator") {
		return nil
	}
	caller := auth.UserUUIDFromContext(ctx)
	if auth.HasRole(ctx, "revisor") && caller == ev.RevisorID {
		return nil
	}
	if auth.HasRole(ctx, "patient") && caller == ev.PatientID {
		return nil
	}
	return fmt.Errorf("%w: evaluation %s is out of the caller's scope", apperr.ErrForbidden, ev.ID)
}

// canWrite gates answer reconciliation and submission: coordinators and
// the assigned revisor only. The patient role is read-only here even on
// their own evaluation.
func canWrite(ctx context.Context, ev *Evaluation) error {
	if auth.HasRole(ctx, "coordinator") {
		return nil
	}
	if auth.HasRole(ctx, "revisor") && auth.UserUUIDFromContext(ctx) == ev.RevisorID {
		return nil
	}
	return fmt.Errorf("%w: evaluation %s is not writable by the caller", apperr.ErrForbidden, ev.ID)
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Evaluation, error) {
	ev, err := s.evaluations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: evaluation %s", apperr.ErrNotFound, id)
	}
	if ev.Deleted {
		return nil, fmt.Errorf("%w: evaluation %s", apperr.ErrNotFound, id)
	}
	return ev, nil
}

// Get returns the evaluation with its active answers grouped by section.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	ev, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canAccess(ctx, ev); err != nil {
		return nil, err
	}
	answers, err := s.answers.ActiveByEvaluation(ctx, id)
	if err != nil {
		return nil, err
	}

	grouped := map[uuid.UUID][]*Answer{}
	var order []uuid.UUID
	for _, a := range answers {
		if _, seen := grouped[a.SectionID]; !seen {
			order = append(order, a.SectionID)
		}
		grouped[a.SectionID] = append(grouped[a.SectionID], a)
	}
	view := &View{Evaluation: ev, Sections: make([]*SectionGroup, 0, len(order))}
	for _, sectionID := range order {
		view.Sections = append(view.Sections, &SectionGroup{SectionID: sectionID, Answers: grouped[sectionID]})
	}
	return view, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Evaluation, int, error) {
	if !auth.HasRole(ctx, "coordinator") && auth.UserUUIDFromContext(ctx) != patientID {
		return nil, 0, fmt.Errorf("%w: patient %s is out of the caller's scope", apperr.ErrForbidden, patientID)
	}
	return s.evaluations.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByRevisor(ctx context.Context, revisorID uuid.UUID, limit, offset int) ([]*Evaluation, int, error) {
	if !auth.HasRole(ctx, "coordinator") && auth.UserUUIDFromContext(ctx) != revisorID {
		return nil, 0, fmt.Errorf("%w: revisor %s is out of the caller's scope", apperr.ErrForbidden, revisorID)
	}
	return s.evaluations.ListByRevisor(ctx, revisorID, limit, offset)
}

// Search narrows non-coordinator callers to their own evaluations.
func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Evaluation, int, error) {
	if !auth.HasRole(ctx, "coordinator") {
		caller := auth.UserUUIDFromContext(ctx)
		switch {
		case auth.HasRole(ctx, "revisor"):
			params["revisor_id"] = caller.String()
		case auth.HasRole(ctx, "patient"):
			params["patient_id"] = caller.String()
		}
	}
	return s.evaluations.Search(ctx, params, limit, offset)
}

// Submit locks the evaluation. Submitting twice is a no-op.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) error {
	ev, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := canWrite(ctx, ev); err != nil {
		return err
	}
	if ev.Submitted {
		return nil
	}
	return s.evaluations.MarkSubmitted(ctx, id, time.Now().UTC())
}

// Reconcile validates the whole batch against the live schema, then diffs
// it against the stored answers section by section. Any invalid row aborts
// the entire batch. Resubmitting an identical batch is idempotent.
func (s *Service) Reconcile(ctx context.Context, evaluationID uuid.UUID, batch []SubmittedAnswer) (*ReconcileResult, error) {
	var result *ReconcileResult
	err := s.tx(ctx, func(ctx context.Context) error {
		ev, err := s.get(ctx, evaluationID)
		if err != nil {
			return err
		}
		if err := canWrite(ctx, ev); err != nil {
			return err
		}
		if ev.Submitted {
			return fmt.Errorf("%w: evaluation %s is submitted", apperr.ErrConflict, ev.ID)
		}

		resolved, err := s.validateBatch(ctx, ev, batch)
		if err != nil {
			return err
		}

		bySection := map[uuid.UUID][]resolvedAnswer{}
		var sections []uuid.UUID
		for _, r := range resolved {
			if _, seen := bySection[r.key.SectionID]; !seen {
				sections = append(sections, r.key.SectionID)
			}
			bySection[r.key.SectionID] = append(bySection[r.key.SectionID], r)
		}
		sort.Slice(sections, func(i, j int) bool { return sections[i].String() < sections[j].String() })

		for _, sectionID := range sections {
			if err := s.reconcileSection(ctx, ev, sectionID, bySection[sectionID]); err != nil {
				return err
			}
		}
		result = &ReconcileResult{Updated: len(batch)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolvedAnswer is a batch row after schema validation, with the list
// context inferred when the caller omitted it.
type resolvedAnswer struct {
	key   AnswerKey
	value *string
}

func (s *Service) validateBatch(ctx context.Context, ev *Evaluation, batch []SubmittedAnswer) ([]resolvedAnswer, error) {
	resolved := make([]resolvedAnswer, 0, len(batch))
	for i, row := range batch {
		ok, err := s.schema.SectionInSurvey(ctx, ev.SurveyID, row.SectionID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: row %d: section %s is not part of survey %s", apperr.ErrValidation, i, row.SectionID, ev.SurveyID)
		}

		listID, err := s.resolveQuestion(ctx, row.SectionID, row.QuestionID, row.QuestionListID)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}

		ok, err = s.schema.ResponseLinked(ctx, row.QuestionID, row.ResponseID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: row %d: response %s is not linked to question %s", apperr.ErrValidation, i, row.ResponseID, row.QuestionID)
		}

		resolved = append(resolved, resolvedAnswer{
			key:   NewAnswerKey(row.SectionID, row.QuestionID, listID, row.ResponseID),
			value: row.Value,
		})
	}
	return resolved, nil
}

// resolveQuestion proves the question reachable from the section, either
// directly or as a list item, and returns the list context. A caller-given
// list must match the inferred one.
func (s *Service) resolveQuestion(ctx context.Context, sectionID, questionID uuid.UUID, claimedList *uuid.UUID) (*uuid.UUID, error) {
	direct, err := s.schema.DirectQuestion(ctx, sectionID, questionID)
	if err != nil {
		return nil, err
	}
	if direct {
		if claimedList != nil {
			return nil, fmt.Errorf("%w: question %s is attached directly to section %s, not through list %s", apperr.ErrValidation, questionID, sectionID, *claimedList)
		}
		return nil, nil
	}
	listID, ok, err := s.schema.ItemQuestionList(ctx, sectionID, questionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: question %s is not reachable from section %s", apperr.ErrValidation, questionID, sectionID)
	}
	if claimedList != nil && *claimedList != listID {
		return nil, fmt.Errorf("%w: question %s belongs to list %s, not %s", apperr.ErrValidation, questionID, listID, *claimedList)
	}
	return &listID, nil
}

// reconcileSection diffs one section's stored rows against the incoming
// set: schema-orphaned rows are swept, absent keys soft-removed, incoming
// rows upserted.
func (s *Service) reconcileSection(ctx context.Context, ev *Evaluation, sectionID uuid.UUID, incoming []resolvedAnswer) error {
	incomingKeys := make(map[AnswerKey]bool, len(incoming))
	for _, r := range incoming {
		incomingKeys[r.key] = true
	}

	stored, err := s.answers.ActiveBySection(ctx, ev.ID, sectionID)
	if err != nil {
		return err
	}
	for _, a := range stored {
		valid, err := s.storedStillValid(ctx, ev.SurveyID, a)
		if err != nil {
			return err
		}
		if !valid || !incomingKeys[a.Key()] {
			if err := s.answers.SoftRemove(ctx, ev.ID, a.Key()); err != nil {
				return err
			}
		}
	}

	for _, r := range incoming {
		_, exists, err := s.answers.GetByKey(ctx, ev.ID, r.key)
		if err != nil {
			return err
		}
		if exists {
			if err := s.answers.Overwrite(ctx, ev.ID, r.key, r.value); err != nil {
				return err
			}
			continue
		}
		a := &Answer{
			EvaluationID: ev.ID,
			SectionID:    r.key.SectionID,
			QuestionID:   r.key.QuestionID,
			ResponseID:   r.key.ResponseID,
			Value:        r.value,
		}
		if r.key.QuestionListID != uuid.Nil {
			listID := r.key.QuestionListID
			a.QuestionListID = &listID
		}
		if err := s.answers.Insert(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// storedStillValid re-proves a stored row's schema membership right now.
// Schema may have drifted under it since it was written.
func (s *Service) storedStillValid(ctx context.Context, surveyID uuid.UUID, a *Answer) (bool, error) {
	ok, err := s.schema.SectionInSurvey(ctx, surveyID, a.SectionID)
	if err != nil || !ok {
		return false, err
	}
	if a.QuestionListID == nil {
		direct, err := s.schema.DirectQuestion(ctx, a.SectionID, a.QuestionID)
		if err != nil || !direct {
			return false, err
		}
	} else {
		listID, ok, err := s.schema.ItemQuestionList(ctx, a.SectionID, a.QuestionID)
		if err != nil || !ok {
			return false, err
		}
		if listID != *a.QuestionListID {
			return false, nil
		}
	}
	return s.schema.ResponseLinked(ctx, a.QuestionID, a.ResponseID)
}
