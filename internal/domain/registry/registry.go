// Package registry reads the patient/revisor/group records the survey and
// evaluation services consult. Administration of these records lives in a
// separate system; this package only answers membership questions.
package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Revisor struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Group struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Deleted   bool      `db:"deleted" json:"deleted"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Reader is the read-side contract over the registry tables.
type Reader interface {
	PatientActive(ctx context.Context, id uuid.UUID) (bool, error)
	RevisorActive(ctx context.Context, id uuid.UUID) (bool, error)
	// ActiveAndShareGroup reports whether the two parties are members of at
	// least one common non-deleted group.
	ActiveAndShareGroup(ctx context.Context, patientID, revisorID uuid.UUID) (bool, error)
	// SurveyAssigned reports whether any non-deleted group currently has the
	// survey assigned.
	SurveyAssigned(ctx context.Context, surveyID uuid.UUID) (bool, error)
}
