package registry

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinform/clinform/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

type readerPG struct{ pool *pgxpool.Pool }

func NewReaderPG(pool *pgxpool.Pool) Reader {
	return &readerPG{pool: pool}
}

func (r *readerPG) exists(ctx context.Context, sql string, args ...interface{}) (bool, error) {
	var ok bool
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (`+sql+`)`, args...).Scan(&ok)
	return ok, err
}

func (r *readerPG) PatientActive(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx,
		`SELECT 1 FROM patient WHERE id = $1 AND active = TRUE`, id)
}

func (r *readerPG) RevisorActive(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx,
		`SELECT 1 FROM revisor WHERE id = $1 AND active = TRUE`, id)
}

func (r *readerPG) ActiveAndShareGroup(ctx context.Context, patientID, revisorID uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT 1
		FROM patient_group pg
		JOIN revisor_group rg ON rg.group_id = pg.group_id
		JOIN care_group g ON g.id = pg.group_id AND g.deleted = FALSE
		WHERE pg.patient_id = $1 AND rg.revisor_id = $2`,
		patientID, revisorID)
}

func (r *readerPG) SurveyAssigned(ctx context.Context, surveyID uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT 1 FROM group_survey gs
		JOIN care_group g ON g.id = gs.group_id AND g.deleted = FALSE
		WHERE gs.survey_id = $1`, surveyID)
}
