package evaluation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EvaluationRepository interface {
	Create(ctx context.Context, ev *Evaluation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Evaluation, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Evaluation, int, error)
	ListByRevisor(ctx context.Context, revisorID uuid.UUID, limit, offset int) ([]*Evaluation, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Evaluation, int, error)
}

type AnswerRepository interface {
	// ActiveBySection returns the active rows for one evaluation section.
	ActiveBySection(ctx context.Context, evaluationID, sectionID uuid.UUID) ([]*Answer, error)
	// ActiveByEvaluation returns every active row of the evaluation.
	ActiveByEvaluation(ctx context.Context, evaluationID uuid.UUID) ([]*Answer, error)
	// GetByKey fetches a row by composite key, soft-removed included.
	GetByKey(ctx context.Context, evaluationID uuid.UUID, key AnswerKey) (*Answer, bool, error)
	Insert(ctx context.Context, a *Answer) error
	// Overwrite reactivates the keyed row and replaces its value.
	Overwrite(ctx context.Context, evaluationID uuid.UUID, key AnswerKey, value *string) error
	SoftRemove(ctx context.Context, evaluationID uuid.UUID, key AnswerKey) error
}

// SchemaReader answers reachability questions against the live survey
// schema. The reconciler trusts nothing the client sends.
type SchemaReader interface {
	SurveyExists(ctx context.Context, surveyID uuid.UUID) (bool, error)
	// SectionInSurvey reports whether the section is currently attached to
	// the survey.
	SectionInSurvey(ctx context.Context, surveyID, sectionID uuid.UUID) (bool, error)
	// DirectQuestion reports whether the question is attached straight to
	// the section with an active link.
	DirectQuestion(ctx context.Context, sectionID, questionID uuid.UUID) (bool, error)
	// ItemQuestionList resolves the question as a list item reachable from
	// the section: it belongs to a list whose owning question is actively
	// attached to the section. Returns the list id.
	ItemQuestionList(ctx context.Context, sectionID, questionID uuid.UUID) (uuid.UUID, bool, error)
	// ResponseLinked reports whether the response is an active link of the
	// question.
	ResponseLinked(ctx context.Context, questionID, responseID uuid.UUID) (bool, error)
}

// RegistryReader is the patient/revisor/group contract consulted when
// creating evaluations.
type RegistryReader interface {
	PatientActive(ctx context.Context, id uuid.UUID) (bool, error)
	RevisorActive(ctx context.Context, id uuid.UUID) (bool, error)
	ActiveAndShareGroup(ctx context.Context, patientID, revisorID uuid.UUID) (bool, error)
}
