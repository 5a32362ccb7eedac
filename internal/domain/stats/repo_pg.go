package stats

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

// rangeCond bounds e.created_at; a NULL side is open. The range always
// binds as $2 and $3.
const rangeCond = `($2::timestamptz IS NULL OR e.created_at >= $2)
	AND ($3::timestamptz IS NULL OR e.created_at <= $3)`

// surveyQuestionTotal counts the distinct questions a survey currently
// holds, active joins only.
const surveyQuestionTotal = `
	SELECT COUNT(DISTINCT sq.question_id)
	FROM survey_section ss
	JOIN section_question sq ON sq.section_id = ss.section_id AND sq.removed = FALSE
	WHERE ss.survey_id = $1`

func (r *repoPG) exists(ctx context.Context, sql string, args ...interface{}) (bool, error) {
	var ok bool
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (`+sql+`)`, args...).Scan(&ok)
	return ok, err
}

func (r *repoPG) SurveyExists(ctx context.Context, surveyID uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM survey WHERE id = $1 AND deleted = FALSE`, surveyID)
}

func (r *repoPG) GroupExists(ctx context.Context, groupID uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM care_group WHERE id = $1 AND deleted = FALSE`, groupID)
}

func (r *repoPG) IndexExists(ctx context.Context, indexID uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM index_def WHERE id = $1 AND deleted = FALSE`, indexID)
}

func (r *repoPG) SurveyCounts(ctx context.Context, surveyID uuid.UUID, rg Range) (int, int, int, error) {
	q := conn(ctx, r.pool)
	var total, patients int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT e.patient_id)
		FROM evaluation e
		WHERE e.survey_id = $1 AND e.deleted = FALSE AND `+rangeCond,
		surveyID, rg.From, rg.To).Scan(&total, &patients)
	if err != nil {
		return 0, 0, 0, err
	}

	// Completed: the evaluation's distinct answered questions cover the
	// survey's current question total.
	var completed int
	err = q.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT a.evaluation_id
			FROM evaluation_answer a
			JOIN evaluation e ON e.id = a.evaluation_id
				AND e.survey_id = $1 AND e.deleted = FALSE AND `+rangeCond+`
			WHERE a.removed = FALSE
			GROUP BY a.evaluation_id
			HAVING COUNT(DISTINCT a.question_id) >= (`+surveyQuestionTotal+`)
		) done`,
		surveyID, rg.From, rg.To).Scan(&completed)
	if err != nil {
		return 0, 0, 0, err
	}
	return total, patients, completed, nil
}

func (r *repoPG) SurveyByRevisor(ctx context.Context, surveyID uuid.UUID, rg Range) ([]RevisorCount, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT e.revisor_id, COUNT(*)::int
		FROM evaluation e
		WHERE e.survey_id = $1 AND e.deleted = FALSE AND `+rangeCond+`
		GROUP BY e.revisor_id
		ORDER BY COUNT(*) DESC, e.revisor_id`,
		surveyID, rg.From, rg.To)
	if err != nil {
		return nil, err
	}
	return collectRevisorCounts(rows)
}

func (r *repoPG) SurveyIndices(ctx context.Context, surveyID uuid.UUID, rg Range) ([]IndexSummary, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT i.id, i.name, COUNT(ei.value)::int,
		       AVG(ei.value), MIN(ei.value), MAX(ei.value)
		FROM survey_index si
		JOIN index_def i ON i.id = si.index_id AND i.deleted = FALSE
		LEFT JOIN (
			evaluation_index ei
			JOIN evaluation e ON e.id = ei.evaluation_id AND e.deleted = FALSE
		) ON ei.index_id = si.index_id AND e.survey_id = si.survey_id AND `+rangeCond+`
		WHERE si.survey_id = $1
		GROUP BY i.id, i.name
		ORDER BY i.name, i.id`,
		surveyID, rg.From, rg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []IndexSummary
	for rows.Next() {
		var s IndexSummary
		if err := rows.Scan(&s.IndexID, &s.Name, &s.N, &s.Avg, &s.Min, &s.Max); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repoPG) GroupActivePatients(ctx context.Context, groupID uuid.UUID) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*)
		FROM patient_group pg
		JOIN patient p ON p.id = pg.patient_id AND p.active = TRUE
		WHERE pg.group_id = $1`, groupID).Scan(&n)
	return n, err
}

func (r *repoPG) GroupBySurvey(ctx context.Context, groupID uuid.UUID, rg Range) ([]SurveyCount, error) {
	// Completion threshold varies per survey, so both sides are
	// precomputed and compared row-wise. A survey with no questions never
	// counts as completed.
	rows, err := conn(ctx, r.pool).Query(ctx, `
		WITH answered AS (
			SELECT a.evaluation_id, COUNT(DISTINCT a.question_id) AS n
			FROM evaluation_answer a
			WHERE a.removed = FALSE
			GROUP BY a.evaluation_id
		), totals AS (
			SELECT ss.survey_id, COUNT(DISTINCT sq.question_id) AS n
			FROM survey_section ss
			JOIN section_question sq ON sq.section_id = ss.section_id AND sq.removed = FALSE
			GROUP BY ss.survey_id
		)
		SELECT s.id, s.name, COUNT(*)::int,
		       COUNT(*) FILTER (
		           WHERE COALESCE(totals.n, 0) > 0
		             AND COALESCE(answered.n, 0) >= totals.n
		       )::int
		FROM evaluation e
		JOIN patient_group pg ON pg.patient_id = e.patient_id AND pg.group_id = $1
		JOIN survey s ON s.id = e.survey_id
		LEFT JOIN answered ON answered.evaluation_id = e.id
		LEFT JOIN totals ON totals.survey_id = e.survey_id
		WHERE e.deleted = FALSE AND `+rangeCond+`
		GROUP BY s.id, s.name
		ORDER BY COUNT(*) DESC, s.name`,
		groupID, rg.From, rg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SurveyCount
	for rows.Next() {
		var c SurveyCount
		if err := rows.Scan(&c.SurveyID, &c.Name, &c.Count, &c.Completed); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repoPG) GroupByRevisor(ctx context.Context, groupID uuid.UUID, rg Range) ([]RevisorCount, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT e.revisor_id, COUNT(*)::int
		FROM evaluation e
		JOIN patient_group pg ON pg.patient_id = e.patient_id AND pg.group_id = $1
		WHERE e.deleted = FALSE AND `+rangeCond+`
		GROUP BY e.revisor_id
		ORDER BY COUNT(*) DESC, e.revisor_id`,
		groupID, rg.From, rg.To)
	if err != nil {
		return nil, err
	}
	return collectRevisorCounts(rows)
}

func (r *repoPG) IndexValues(ctx context.Context, indexID uuid.UUID, rg Range, limit, offset int) ([]*IndexValue, int, error) {
	q := conn(ctx, r.pool)
	var total int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM evaluation_index ei
		JOIN evaluation e ON e.id = ei.evaluation_id AND e.deleted = FALSE
		WHERE ei.index_id = $1 AND `+rangeCond,
		indexID, rg.From, rg.To).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `
		SELECT e.id, e.patient_id, ei.value, ei.comment, ei.created_at
		FROM evaluation_index ei
		JOIN evaluation e ON e.id = ei.evaluation_id AND e.deleted = FALSE
		WHERE ei.index_id = $1 AND `+rangeCond+`
		ORDER BY ei.created_at DESC, e.id
		LIMIT $4 OFFSET $5`,
		indexID, rg.From, rg.To, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*IndexValue
	for rows.Next() {
		var v IndexValue
		if err := rows.Scan(&v.EvaluationID, &v.PatientID, &v.Value, &v.Comment, &v.RecordedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &v)
	}
	return out, total, rows.Err()
}

func collectRevisorCounts(rows pgx.Rows) ([]RevisorCount, error) {
	defer rows.Close()
	var out []RevisorCount
	for rows.Next() {
		var c RevisorCount
		if err := rows.Scan(&c.RevisorID, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
