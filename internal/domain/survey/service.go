package survey

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinform/clinform/internal/platform/apperr"
)

// TxRunner executes fn atomically. Production wires db.InTx over the pool;
// tests run fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// AssignmentChecker is the registry contract consulted before a survey is
// soft-deleted.
type AssignmentChecker interface {
	SurveyAssigned(ctx context.Context, surveyID uuid.UUID) (bool, error)
}

type Service struct {
	surveys     SurveyRepository
	sections    SectionRepository
	questions   QuestionRepository
	responses   ResponseRepository
	lists       ListRepository
	edges       EdgeStore
	assignments AssignmentChecker
	tx          TxRunner
}

func NewService(
	surveys SurveyRepository,
	sections SectionRepository,
	questions QuestionRepository,
	responses ResponseRepository,
	lists ListRepository,
	edges EdgeStore,
	assignments AssignmentChecker,
	tx TxRunner,
) *Service {
	return &Service{
		surveys:     surveys,
		sections:    sections,
		questions:   questions,
		responses:   responses,
		lists:       lists,
		edges:       edges,
		assignments: assignments,
		tx:          tx,
	}
}

// ---------- Surveys ----------

type SurveyInput struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (in SurveyInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: survey name is required", apperr.ErrValidation)
	}
	if !validKinds[in.Kind] {
		return fmt.Errorf("%w: invalid survey kind %q", apperr.ErrValidation, in.Kind)
	}
	return nil
}

func (s *Service) CreateSurvey(ctx context.Context, in SurveyInput) (*Survey, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	sv := &Survey{Name: strings.TrimSpace(in.Name), Kind: in.Kind}
	if err := s.surveys.Create(ctx, sv); err != nil {
		return nil, err
	}
	return sv, nil
}

func (s *Service) GetSurvey(ctx context.Context, id uuid.UUID) (*Survey, error) {
	sv, err := s.surveys.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: survey %s", apperr.ErrNotFound, id)
	}
	return sv, nil
}

func (s *Service) UpdateSurvey(ctx context.Context, id uuid.UUID, in SurveyInput) (*Survey, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	sv, err := s.GetSurvey(ctx, id)
	if err != nil {
		return nil, err
	}
	sv.Name = strings.TrimSpace(in.Name)
	sv.Kind = in.Kind
	if err := s.surveys.Update(ctx, sv); err != nil {
		return nil, err
	}
	return sv, nil
}

// DeleteSurvey soft-deletes a survey. Refused while a group assignment
// still references it.
func (s *Service) DeleteSurvey(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetSurvey(ctx, id); err != nil {
		return err
	}
	assigned, err := s.assignments.SurveyAssigned(ctx, id)
	if err != nil {
		return err
	}
	if assigned {
		return fmt.Errorf("%w: survey %s is assigned to a group", apperr.ErrConflict, id)
	}
	return s.surveys.SoftDelete(ctx, id)
}

func (s *Service) SearchSurveys(ctx context.Context, name string, limit, offset int) ([]*SurveyPreview, int, error) {
	items, total, err := s.surveys.Search(ctx, name, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	previews := make([]*SurveyPreview, 0, len(items))
	for _, sv := range items {
		edges, err := s.edges.Edges(ctx, SurveySections, sv.ID)
		if err != nil {
			return nil, 0, err
		}
		previews = append(previews, &SurveyPreview{Survey: sv, SectionCount: len(edges)})
	}
	return previews, total, nil
}

// DuplicateSurvey creates a new survey referencing the source's sections.
// No deep copy: the sections become shared and diverge later through
// copy-on-write.
func (s *Service) DuplicateSurvey(ctx context.Context, sourceID uuid.UUID, in SurveyInput) (*Survey, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var dup *Survey
	err := s.tx(ctx, func(ctx context.Context) error {
		if _, err := s.GetSurvey(ctx, sourceID); err != nil {
			return err
		}
		dup = &Survey{Name: strings.TrimSpace(in.Name), Kind: in.Kind}
		if err := s.surveys.Create(ctx, dup); err != nil {
			return err
		}
		edges, err := s.edges.Edges(ctx, SurveySections, sourceID)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if err := s.edges.Insert(ctx, SurveySections, dup.ID, e.ChildID, e.Order); err != nil {
				return err
			}
		}
		return compactScope(ctx, s.edges, SurveySections, dup.ID)
	})
	if err != nil {
		return nil, err
	}
	return dup, nil
}

// ReplaceContent swaps the target survey's section list for references to
// the source's sections.
func (s *Service) ReplaceContent(ctx context.Context, targetID, sourceID uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context) error {
		if _, err := s.GetSurvey(ctx, targetID); err != nil {
			return err
		}
		if _, err := s.GetSurvey(ctx, sourceID); err != nil {
			return err
		}
		existing, err := s.edges.EdgesForUpdate(ctx, SurveySections, targetID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if err := s.edges.Delete(ctx, SurveySections, targetID, e.ChildID); err != nil {
				return err
			}
		}
		source, err := s.edges.Edges(ctx, SurveySections, sourceID)
		if err != nil {
			return err
		}
		for _, e := range source {
			if err := s.edges.Insert(ctx, SurveySections, targetID, e.ChildID, e.Order); err != nil {
				return err
			}
		}
		return compactScope(ctx, s.edges, SurveySections, targetID)
	})
}

// FinalizeSurvey is a structural checkpoint: the survey must hold at least
// one section. It does not lock the survey against further edits.
func (s *Service) FinalizeSurvey(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetSurvey(ctx, id); err != nil {
		return err
	}
	edges, err := s.edges.Edges(ctx, SurveySections, id)
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		return fmt.Errorf("%w: survey %s has no sections", apperr.ErrValidation, id)
	}
	return nil
}

// ---------- Sections ----------

type SectionInput struct {
	Name          string     `json:"name"`
	Note          *string    `json:"note,omitempty"`
	CoordinatorID *uuid.UUID `json:"coordinator_id,omitempty"`
}

func (in SectionInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: section name is required", apperr.ErrValidation)
	}
	return nil
}

// AttachExistingSections bulk-attaches sections by reference. Every id is
// validated before any write; ids already present in the survey are
// skipped.
func (s *Service) AttachExistingSections(ctx context.Context, surveyID uuid.UUID, sectionIDs []uuid.UUID, insertAfterOrder *int) error {
	return s.tx(ctx, func(ctx context.Context) error {
		if _, err := s.GetSurvey(ctx, surveyID); err != nil {
			return err
		}
		for _, id := range sectionIDs {
			if _, err := s.sections.GetByID(ctx, id); err != nil {
				return fmt.Errorf("%w: section %s", apperr.ErrNotFound, id)
			}
		}
		present, err := s.presentChildren(ctx, SurveySections, surveyID)
		if err != nil {
			return err
		}
		pos := appendPos(insertAfterOrder)
		for _, id := range sectionIDs {
			if present[id] {
				continue
			}
			present[id] = true
			if _, err := attachChild(ctx, s.edges, SurveySections, surveyID, id, pos); err != nil {
				return err
			}
			pos = nextPos(pos)
		}
		return compactScope(ctx, s.edges, SurveySections, surveyID)
	})
}

// CreateSectionAndAttach creates a new section and attaches it at pos.
// New entities start with a single parent, so no copy is ever needed.
func (s *Service) CreateSectionAndAttach(ctx context.Context, surveyID uuid.UUID, in SectionInput, pos *int) (*Section, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var sec *Section
	err := s.tx(ctx, func(ctx context.Context) error {
		if _, err := s.GetSurvey(ctx, surveyID); err != nil {
			return err
		}
		sec = &Section{Name: strings.TrimSpace(in.Name), Note: in.Note, CoordinatorID: in.CoordinatorID}
		if err := s.sections.Create(ctx, sec); err != nil {
			return err
		}
		_, err := attachChild(ctx, s.edges, SurveySections, surveyID, sec.ID, pos)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sec, nil
}

type SectionPatch struct {
	Name     *string `json:"name,omitempty"`
	Note     *string `json:"note,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// UpdateSection renames or repositions a section within a survey. A shared
// section is cloned first; sibling surveys keep the original.
func (s *Service) UpdateSection(ctx context.Context, surveyID, sectionID uuid.UUID, patch SectionPatch) (*Section, error) {
	var out *Section
	err := s.tx(ctx, func(ctx context.Context) error {
		if _, err := s.GetSurvey(ctx, surveyID); err != nil {
			return err
		}
		if _, err := s.sections.GetByID(ctx, sectionID); err != nil {
			return fmt.Errorf("%w: section %s", apperr.ErrNotFound, sectionID)
		}
		effID, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		sec, err := s.sections.GetByID(ctx, effID)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			if strings.TrimSpace(*patch.Name) == "" {
				return fmt.Errorf("%w: section name is required", apperr.ErrValidation)
			}
			sec.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Note != nil {
			sec.Note = patch.Note
		}
		if err := s.sections.Update(ctx, sec); err != nil {
			return err
		}
		if patch.Position != nil {
			if _, err := moveChild(ctx, s.edges, SurveySections, surveyID, effID, *patch.Position); err != nil {
				return err
			}
		}
		out = sec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DetachSection removes a section from a survey. The section itself
// survives; sibling surveys are untouched.
func (s *Service) DetachSection(ctx context.Context, surveyID, sectionID uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context) error {
		effID, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		return detachChild(ctx, s.edges, SurveySections, surveyID, effID)
	})
}

// DeleteSection detaches and soft-deletes a section in a survey context.
// Resolution guarantees the deleted entity is exclusive to the caller; its
// question joins are soft-removed, never physically deleted.
func (s *Service) DeleteSection(ctx context.Context, surveyID, sectionID uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context) error {
		effID, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		if err := detachChild(ctx, s.edges, SurveySections, surveyID, effID); err != nil {
			return err
		}
		if err := s.edges.MarkAllRemoved(ctx, SectionQuestions, effID); err != nil {
			return err
		}
		return s.sections.SoftDelete(ctx, effID)
	})
}

func (s *Service) SearchSections(ctx context.Context, name string, limit, offset int) ([]*SectionPreview, int, error) {
	items, total, err := s.sections.Search(ctx, name, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	previews := make([]*SectionPreview, 0, len(items))
	for _, sec := range items {
		edges, err := s.edges.Edges(ctx, SectionQuestions, sec.ID)
		if err != nil {
			return nil, 0, err
		}
		previews = append(previews, &SectionPreview{Section: sec, QuestionCount: len(edges)})
	}
	return previews, total, nil
}

// ---------- Questions ----------

type QuestionInput struct {
	Name string `json:"name"`
}

func (in QuestionInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: question name is required", apperr.ErrValidation)
	}
	return nil
}

// AttachExistingQuestions bulk-attaches questions to a section by
// reference. List-item questions are rejected: they exist only inside
// their list. Ids already present are skipped.
func (s *Service) AttachExistingQuestions(ctx context.Context, surveyID, sectionID uuid.UUID, questionIDs []uuid.UUID, insertAfterOrder *int) error {
	return s.tx(ctx, func(ctx context.Context) error {
		if _, err := s.sections.GetByID(ctx, sectionID); err != nil {
			return fmt.Errorf("%w: section %s", apperr.ErrNotFound, sectionID)
		}
		for _, id := range questionIDs {
			if _, err := s.questions.GetByID(ctx, id); err != nil {
				return fmt.Errorf("%w: question %s", apperr.ErrNotFound, id)
			}
			item, err := s.questions.IsListItem(ctx, id)
			if err != nil {
				return err
			}
			if item {
				return fmt.Errorf("%w: question %s belongs to a question list and cannot attach to a section", apperr.ErrValidation, id)
			}
		}
		effID, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		present, err := s.presentChildren(ctx, SectionQuestions, effID)
		if err != nil {
			return err
		}
		pos := appendPos(insertAfterOrder)
		for _, id := range questionIDs {
			if present[id] {
				continue
			}
			present[id] = true
			if _, err := attachChild(ctx, s.edges, SectionQuestions, effID, id, pos); err != nil {
				return err
			}
			pos = nextPos(pos)
		}
		return compactScope(ctx, s.edges, SectionQuestions, effID)
	})
}

func (s *Service) CreateQuestionAndAttach(ctx context.Context, surveyID, sectionID uuid.UUID, in QuestionInput, pos *int) (*Question, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var q *Question
	err := s.tx(ctx, func(ctx context.Context) error {
		effID, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		q = &Question{Name: strings.TrimSpace(in.Name)}
		if err := s.questions.Create(ctx, q); err != nil {
			return err
		}
		_, err = attachChild(ctx, s.edges, SectionQuestions, effID, q.ID, pos)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

type QuestionPatch struct {
	Name     *string `json:"name,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// UpdateQuestion renames or repositions a question inside a section.
// Both the section (within the survey) and the question (within the
// section) are resolved for exclusivity before the write.
func (s *Service) UpdateQuestion(ctx context.Context, surveyID, sectionID, questionID uuid.UUID, patch QuestionPatch) (*Question, error) {
	var out *Question
	err := s.tx(ctx, func(ctx context.Context) error {
		effSection, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		if _, err := s.questions.GetByID(ctx, questionID); err != nil {
			return fmt.Errorf("%w: question %s", apperr.ErrNotFound, questionID)
		}
		effQ, err := s.ensureWritableQuestion(ctx, effSection, questionID)
		if err != nil {
			return err
		}
		q, err := s.questions.GetByID(ctx, effQ)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			if strings.TrimSpace(*patch.Name) == "" {
				return fmt.Errorf("%w: question name is required", apperr.ErrValidation)
			}
			q.Name = strings.TrimSpace(*patch.Name)
			if err := s.questions.Update(ctx, q); err != nil {
				return err
			}
		}
		if patch.Position != nil {
			if _, err := moveChild(ctx, s.edges, SectionQuestions, effSection, effQ, *patch.Position); err != nil {
				return err
			}
		}
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DetachQuestion(ctx context.Context, surveyID, sectionID, questionID uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context) error {
		effSection, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		return detachChild(ctx, s.edges, SectionQuestions, effSection, questionID)
	})
}

// DeleteQuestion detaches and soft-deletes a question in a section
// context, soft-removing its response links.
func (s *Service) DeleteQuestion(ctx context.Context, surveyID, sectionID, questionID uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context) error {
		effSection, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		effQ, err := s.ensureWritableQuestion(ctx, effSection, questionID)
		if err != nil {
			return err
		}
		if err := detachChild(ctx, s.edges, SectionQuestions, effSection, effQ); err != nil {
			return err
		}
		if err := s.edges.MarkAllRemoved(ctx, QuestionResponses, effQ); err != nil {
			return err
		}
		return s.questions.SoftDelete(ctx, effQ)
	})
}

func (s *Service) SearchQuestions(ctx context.Context, name string, limit, offset int) ([]*Question, int, error) {
	return s.questions.Search(ctx, name, limit, offset)
}

// ---------- Responses ----------

type ResponseInput struct {
	Text     string   `json:"text"`
	MinValue *float64 `json:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty"`
}

func (in ResponseInput) validate() error {
	if strings.TrimSpace(in.Text) == "" {
		return fmt.Errorf("%w: response text is required", apperr.ErrValidation)
	}
	if in.MinValue != nil && in.MaxValue != nil && *in.MinValue > *in.MaxValue {
		return fmt.Errorf("%w: response range is inverted", apperr.ErrValidation)
	}
	return nil
}

// AttachExistingResponses bulk-links responses to a question and fans the
// new links out to the question's list items, which always answer with the
// owner's response set.
func (s *Service) AttachExistingResponses(ctx context.Context, surveyID, sectionID, questionID uuid.UUID, responseIDs []uuid.UUID, insertAfterOrder *int) error {
	return s.tx(ctx, func(ctx context.Context) error {
		for _, id := range responseIDs {
			if _, err := s.responses.GetByID(ctx, id); err != nil {
				return fmt.Errorf("%w: response %s", apperr.ErrNotFound, id)
			}
		}
		effSection, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		effQ, err := s.ensureWritableQuestion(ctx, effSection, questionID)
		if err != nil {
			return err
		}
		present, err := s.presentChildren(ctx, QuestionResponses, effQ)
		if err != nil {
			return err
		}
		pos := appendPos(insertAfterOrder)
		for _, id := range responseIDs {
			if present[id] {
				continue
			}
			present[id] = true
			if err := s.linkResponse(ctx, effQ, id, pos); err != nil {
				return err
			}
			pos = nextPos(pos)
		}
		if err := compactScope(ctx, s.edges, QuestionResponses, effQ); err != nil {
			return err
		}
		return s.propagateResponsesToItems(ctx, effQ, responseIDs)
	})
}

func (s *Service) CreateResponseAndAttach(ctx context.Context, surveyID, sectionID, questionID uuid.UUID, in ResponseInput, pos *int) (*Response, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var r *Response
	err := s.tx(ctx, func(ctx context.Context) error {
		effSection, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		effQ, err := s.ensureWritableQuestion(ctx, effSection, questionID)
		if err != nil {
			return err
		}
		r = &Response{Text: strings.TrimSpace(in.Text), MinValue: in.MinValue, MaxValue: in.MaxValue}
		if err := s.responses.Create(ctx, r); err != nil {
			return err
		}
		if err := s.linkResponse(ctx, effQ, r.ID, pos); err != nil {
			return err
		}
		return s.propagateResponsesToItems(ctx, effQ, []uuid.UUID{r.ID})
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// AddResponseToQuestion links one existing response, reactivating a
// soft-removed link when one exists.
func (s *Service) AddResponseToQuestion(ctx context.Context, surveyID, sectionID, questionID, responseID uuid.UUID, pos *int) error {
	return s.tx(ctx, func(ctx context.Context) error {
		if _, err := s.responses.GetByID(ctx, responseID); err != nil {
			return fmt.Errorf("%w: response %s", apperr.ErrNotFound, responseID)
		}
		effSection, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		effQ, err := s.ensureWritableQuestion(ctx, effSection, questionID)
		if err != nil {
			return err
		}
		if err := s.linkResponse(ctx, effQ, responseID, pos); err != nil {
			return err
		}
		if err := compactScope(ctx, s.edges, QuestionResponses, effQ); err != nil {
			return err
		}
		return s.propagateResponsesToItems(ctx, effQ, []uuid.UUID{responseID})
	})
}

// DetachResponse soft-removes the question-response link so answer history
// stays explainable, and mirrors the removal on list items.
func (s *Service) DetachResponse(ctx context.Context, surveyID, sectionID, questionID, responseID uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context) error {
		effSection, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		effQ, err := s.ensureWritableQuestion(ctx, effSection, questionID)
		if err != nil {
			return err
		}
		if err := s.edges.MarkRemoved(ctx, QuestionResponses, effQ, responseID); err != nil {
			return err
		}
		if err := compactScope(ctx, s.edges, QuestionResponses, effQ); err != nil {
			return err
		}
		q, err := s.questions.GetByID(ctx, effQ)
		if err != nil {
			return err
		}
		if q.QuestionListID == nil {
			return nil
		}
		items, err := s.edges.Edges(ctx, ListItems, *q.QuestionListID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := s.edges.MarkRemoved(ctx, QuestionResponses, item.ChildID, responseID); err != nil {
				return err
			}
			if err := compactScope(ctx, s.edges, QuestionResponses, item.ChildID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) UpdateResponse(ctx context.Context, id uuid.UUID, in ResponseInput) (*Response, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	r, err := s.responses.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: response %s", apperr.ErrNotFound, id)
	}
	r.Text = strings.TrimSpace(in.Text)
	r.MinValue = in.MinValue
	r.MaxValue = in.MaxValue
	if err := s.responses.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) SearchResponses(ctx context.Context, text string, limit, offset int) ([]*Response, int, error) {
	return s.responses.Search(ctx, text, limit, offset)
}

// linkResponse attaches or reactivates one question-response link.
func (s *Service) linkResponse(ctx context.Context, questionID, responseID uuid.UUID, pos *int) error {
	removed, err := s.edges.Removed(ctx, QuestionResponses, questionID, responseID)
	if err != nil {
		return err
	}
	if removed {
		edges, err := s.edges.Edges(ctx, QuestionResponses, questionID)
		if err != nil {
			return err
		}
		target := len(edges) + 1
		if pos != nil {
			target = clampPos(*pos, len(edges)+1)
		}
		return s.edges.Reactivate(ctx, QuestionResponses, questionID, responseID, target)
	}
	_, err = attachChild(ctx, s.edges, QuestionResponses, questionID, responseID, pos)
	return err
}

// propagateResponsesToItems appends new response links to every item of
// the question's list.
func (s *Service) propagateResponsesToItems(ctx context.Context, questionID uuid.UUID, responseIDs []uuid.UUID) error {
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return err
	}
	if q.QuestionListID == nil {
		return nil
	}
	items, err := s.edges.Edges(ctx, ListItems, *q.QuestionListID)
	if err != nil {
		return err
	}
	for _, item := range items {
		for _, rid := range responseIDs {
			if err := s.linkResponse(ctx, item.ChildID, rid, nil); err != nil {
				return err
			}
		}
		if err := compactScope(ctx, s.edges, QuestionResponses, item.ChildID); err != nil {
			return err
		}
	}
	return nil
}

// ---------- Question lists ----------

// CreateListForQuestion creates the question's owned list. One list per
// question for its whole life.
func (s *Service) CreateListForQuestion(ctx context.Context, surveyID, sectionID, questionID uuid.UUID, label string) (*QuestionList, error) {
	if strings.TrimSpace(label) == "" {
		return nil, fmt.Errorf("%w: list label is required", apperr.ErrValidation)
	}
	var list *QuestionList
	err := s.tx(ctx, func(ctx context.Context) error {
		effSection, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		effQ, err := s.ensureWritableQuestion(ctx, effSection, questionID)
		if err != nil {
			return err
		}
		q, err := s.questions.GetByID(ctx, effQ)
		if err != nil {
			return fmt.Errorf("%w: question %s", apperr.ErrNotFound, questionID)
		}
		if q.QuestionListID != nil {
			return fmt.Errorf("%w: question %s already owns a list", apperr.ErrConflict, effQ)
		}
		list = &QuestionList{Label: strings.TrimSpace(label)}
		if err := s.lists.Create(ctx, list); err != nil {
			return err
		}
		q.QuestionListID = &list.ID
		return s.questions.Update(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// AddQuestionToList makes itemID an item of the owner question's list.
// A question still attached to sections is either force-detached from all
// of them or rejected. Items inherit the owner's response links.
func (s *Service) AddQuestionToList(ctx context.Context, surveyID, sectionID, ownerID, itemID uuid.UUID, pos *int, forceDetach bool) error {
	return s.tx(ctx, func(ctx context.Context) error {
		if ownerID == itemID {
			return fmt.Errorf("%w: a question cannot be an item of its own list", apperr.ErrValidation)
		}
		if _, err := s.questions.GetByID(ctx, itemID); err != nil {
			return fmt.Errorf("%w: question %s", apperr.ErrNotFound, itemID)
		}
		alreadyItem, err := s.questions.IsListItem(ctx, itemID)
		if err != nil {
			return err
		}
		if alreadyItem {
			return fmt.Errorf("%w: question %s already belongs to a list", apperr.ErrConflict, itemID)
		}

		effSection, err := s.ensureWritableSection(ctx, surveyID, sectionID)
		if err != nil {
			return err
		}
		effOwner, err := s.ensureWritableQuestion(ctx, effSection, ownerID)
		if err != nil {
			return err
		}
		owner, err := s.questions.GetByID(ctx, effOwner)
		if err != nil {
			return fmt.Errorf("%w: question %s", apperr.ErrNotFound, ownerID)
		}
		if owner.QuestionListID == nil {
			return fmt.Errorf("%w: question %s owns no list", apperr.ErrValidation, effOwner)
		}

		parents, err := s.edges.Parents(ctx, SectionQuestions, itemID)
		if err != nil {
			return err
		}
		if len(parents) > 0 {
			if !forceDetach {
				return fmt.Errorf("%w: question %s is attached to a section", apperr.ErrConflict, itemID)
			}
			for _, parentID := range parents {
				if err := detachChild(ctx, s.edges, SectionQuestions, parentID, itemID); err != nil {
					return err
				}
			}
		}

		if _, err := attachChild(ctx, s.edges, ListItems, *owner.QuestionListID, itemID, pos); err != nil {
			return err
		}
		if err := compactScope(ctx, s.edges, ListItems, *owner.QuestionListID); err != nil {
			return err
		}

		// Item questions answer with the owner's response set.
		rEdges, err := s.edges.Edges(ctx, QuestionResponses, effOwner)
		if err != nil {
			return err
		}
		for _, e := range rEdges {
			if err := s.linkResponse(ctx, itemID, e.ChildID, nil); err != nil {
				return err
			}
		}
		return compactScope(ctx, s.edges, QuestionResponses, itemID)
	})
}

// ---------- helpers ----------

// presentChildren maps the children already attached under a parent.
func (s *Service) presentChildren(ctx context.Context, scope Scope, parentID uuid.UUID) (map[uuid.UUID]bool, error) {
	edges, err := s.edges.Edges(ctx, scope, parentID)
	if err != nil {
		return nil, err
	}
	present := make(map[uuid.UUID]bool, len(edges))
	for _, e := range edges {
		present[e.ChildID] = true
	}
	return present, nil
}

// appendPos converts an insert-after order into the first insertion
// position; nil keeps appending.
func appendPos(insertAfterOrder *int) *int {
	if insertAfterOrder == nil {
		return nil
	}
	p := *insertAfterOrder + 1
	return &p
}

func nextPos(pos *int) *int {
	if pos == nil {
		return nil
	}
	p := *pos + 1
	return &p
}
