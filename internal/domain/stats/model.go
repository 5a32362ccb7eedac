package stats

import (
	"time"

	"github.com/google/uuid"
)

// Range bounds an aggregation window on evaluation creation time. Either
// side may be open.
type Range struct {
	From *time.Time
	To   *time.Time
}

// RevisorCount is one revisor's share of the evaluations in scope.
type RevisorCount struct {
	RevisorID uuid.UUID `json:"revisor_id" db:"revisor_id"`
	Count     int       `json:"count" db:"count"`
}

// IndexSummary aggregates one clinical index over the evaluations in
// scope. The moments are nil when no value rows exist.
type IndexSummary struct {
	IndexID uuid.UUID `json:"index_id" db:"index_id"`
	Name    string    `json:"name" db:"name"`
	N       int       `json:"n" db:"n"`
	Avg     *float64  `json:"avg" db:"avg"`
	Min     *float64  `json:"min" db:"min"`
	Max     *float64  `json:"max" db:"max"`
}

// SurveySummary is the per-survey evaluation digest. An evaluation counts
// as completed when its distinct answered questions cover every question
// the survey currently holds.
type SurveySummary struct {
	SurveyID         uuid.UUID      `json:"survey_id"`
	TotalEvaluations int            `json:"total_evaluations"`
	UniquePatients   int            `json:"unique_patients"`
	Completed        int            `json:"completed"`
	ByRevisor        []RevisorCount `json:"by_revisor"`
	Indices          []IndexSummary `json:"indices"`
}

// SurveyCount is one survey's share of a group's evaluations.
type SurveyCount struct {
	SurveyID  uuid.UUID `json:"survey_id" db:"survey_id"`
	Name      string    `json:"name" db:"name"`
	Count     int       `json:"count" db:"count"`
	Completed int       `json:"completed" db:"completed"`
}

// GroupSummary is the per-care-group evaluation digest.
type GroupSummary struct {
	GroupID          uuid.UUID      `json:"group_id"`
	ActivePatients   int            `json:"active_patients"`
	TotalEvaluations int            `json:"total_evaluations"`
	BySurvey         []SurveyCount  `json:"by_survey"`
	ByRevisor        []RevisorCount `json:"by_revisor"`
}

// IndexValue is one recorded index score, listed per evaluation.
type IndexValue struct {
	EvaluationID uuid.UUID `json:"evaluation_id" db:"evaluation_id"`
	PatientID    uuid.UUID `json:"patient_id" db:"patient_id"`
	Value        float64   `json:"value" db:"value"`
	Comment      *string   `json:"comment,omitempty" db:"comment"`
	RecordedAt   time.Time `json:"recorded_at" db:"created_at"`
}
