package evaluation

import (
	"time"

	"github.com/google/uuid"
)

// Evaluation is one patient assessment against a survey, carried out by a
// revisor. Answers are writable until Submitted flips.
type Evaluation struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	RevisorID   uuid.UUID  `db:"revisor_id" json:"revisor_id"`
	SurveyID    uuid.UUID  `db:"survey_id" json:"survey_id"`
	Submitted   bool       `db:"submitted" json:"submitted"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	Deleted     bool       `db:"deleted" json:"deleted"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Answer is one recorded (question, response) pair, scoped to a section
// and an optional list item context. Rows are soft-removed, never deleted,
// so history behind submitted evaluations stays intact.
type Answer struct {
	EvaluationID   uuid.UUID  `db:"evaluation_id" json:"evaluation_id"`
	SectionID      uuid.UUID  `db:"section_id" json:"section_id"`
	QuestionID     uuid.UUID  `db:"question_id" json:"question_id"`
	QuestionListID *uuid.UUID `db:"question_list_id" json:"question_list_id,omitempty"`
	ResponseID     uuid.UUID  `db:"response_id" json:"response_id"`
	Value          *string    `db:"value" json:"value,omitempty"`
	Removed        bool       `db:"removed" json:"removed"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Key returns the answer's composite identity.
func (a *Answer) Key() AnswerKey {
	return NewAnswerKey(a.SectionID, a.QuestionID, a.QuestionListID, a.ResponseID)
}

// AnswerKey is the comparable composite key of an answer within an
// evaluation. A nil question list normalizes to the zero UUID.
type AnswerKey struct {
	SectionID      uuid.UUID
	QuestionID     uuid.UUID
	QuestionListID uuid.UUID
	ResponseID     uuid.UUID
}

func NewAnswerKey(sectionID, questionID uuid.UUID, listID *uuid.UUID, responseID uuid.UUID) AnswerKey {
	k := AnswerKey{SectionID: sectionID, QuestionID: questionID, ResponseID: responseID}
	if listID != nil {
		k.QuestionListID = *listID
	}
	return k
}

// SubmittedAnswer is one row of an incoming answer batch.
type SubmittedAnswer struct {
	SectionID      uuid.UUID  `json:"section_id"`
	QuestionID     uuid.UUID  `json:"question_id"`
	QuestionListID *uuid.UUID `json:"question_list_id,omitempty"`
	ResponseID     uuid.UUID  `json:"response_id"`
	Value          *string    `json:"value,omitempty"`
}

// ReconcileResult reports the count of batch rows processed; an identical
// resubmission reports the same count.
type ReconcileResult struct {
	Updated int `json:"updated"`
}

// View groups an evaluation's active answers by section.
type View struct {
	Evaluation *Evaluation     `json:"evaluation"`
	Sections   []*SectionGroup `json:"sections"`
}

type SectionGroup struct {
	SectionID uuid.UUID `json:"section_id"`
	Answers   []*Answer `json:"answers"`
}
