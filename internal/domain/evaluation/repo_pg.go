package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinform/clinform/internal/platform/apperr"
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

// PoolTxRunner adapts db.InTx to the service's TxRunner seam.
func PoolTxRunner(pool *pgxpool.Pool) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.InTx(ctx, pool, fn)
	}
}

// =========== Evaluation repository ===========

type evaluationRepoPG struct{ pool *pgxpool.Pool }

func NewEvaluationRepoPG(pool *pgxpool.Pool) EvaluationRepository {
	return &evaluationRepoPG{pool: pool}
}

const evaluationCols = `id, patient_id, revisor_id, survey_id, submitted, submitted_at, deleted, created_at, updated_at`

func scanEvaluation(row pgx.Row) (*Evaluation, error) {
	var ev Evaluation
	err := row.Scan(&ev.ID, &ev.PatientID, &ev.RevisorID, &ev.SurveyID,
		&ev.Submitted, &ev.SubmittedAt, &ev.Deleted, &ev.CreatedAt, &ev.UpdatedAt)
	return &ev, err
}

func (r *evaluationRepoPG) Create(ctx context.Context, ev *Evaluation) error {
	ev.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO evaluation (id, patient_id, revisor_id, survey_id)
		VALUES ($1,$2,$3,$4)`,
		ev.ID, ev.PatientID, ev.RevisorID, ev.SurveyID)
	return err
}

func (r *evaluationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Evaluation, error) {
	ev, err := scanEvaluation(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+evaluationCols+` FROM evaluation WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: evaluation %s", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return ev, nil
}

func (r *evaluationRepoPG) MarkSubmitted(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE evaluation SET submitted = TRUE, submitted_at = $2, updated_at = NOW()
		WHERE id = $1`, id, at)
	return err
}

func (r *evaluationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Evaluation, int, error) {
	return r.list(ctx, `patient_id = $1`, patientID, limit, offset)
}

func (r *evaluationRepoPG) ListByRevisor(ctx context.Context, revisorID uuid.UUID, limit, offset int) ([]*Evaluation, int, error) {
	return r.list(ctx, `revisor_id = $1`, revisorID, limit, offset)
}

func (r *evaluationRepoPG) list(ctx context.Context, cond string, id uuid.UUID, limit, offset int) ([]*Evaluation, int, error) {
	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM evaluation WHERE deleted = FALSE AND `+cond, id).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `
		SELECT `+evaluationCols+` FROM evaluation
		WHERE deleted = FALSE AND `+cond+`
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return collectEvaluations(rows, total)
}

// Search filters on an allow-listed set of columns; unknown params are
// rejected rather than ignored.
func (r *evaluationRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Evaluation, int, error) {
	allowed := map[string]string{
		"patient_id": "patient_id = $%d::uuid",
		"revisor_id": "revisor_id = $%d::uuid",
		"survey_id":  "survey_id = $%d::uuid",
		"submitted":  "submitted = $%d::boolean",
	}
	conds := []string{"deleted = FALSE"}
	var args []interface{}
	for key, val := range params {
		tmpl, ok := allowed[key]
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown search parameter %q", apperr.ErrValidation, key)
		}
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(tmpl, len(args)))
	}
	where := strings.Join(conds, " AND ")

	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM evaluation WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT `+evaluationCols+` FROM evaluation WHERE `+where+`
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	return collectEvaluations(rows, total)
}

func collectEvaluations(rows pgx.Rows, total int) ([]*Evaluation, int, error) {
	defer rows.Close()
	var items []*Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ev)
	}
	return items, total, rows.Err()
}

// =========== Answer repository ===========

type answerRepoPG struct{ pool *pgxpool.Pool }

func NewAnswerRepoPG(pool *pgxpool.Pool) AnswerRepository {
	return &answerRepoPG{pool: pool}
}

const answerCols = `evaluation_id, section_id, question_id, question_list_id, response_id, value, removed, created_at, updated_at`

// keyCond matches the composite identity. question_list_id is nullable in
// the table, so a zero-UUID key component matches NULL.
const keyCond = `evaluation_id = $1 AND section_id = $2 AND question_id = $3
	AND COALESCE(question_list_id, '00000000-0000-0000-0000-000000000000') = $4
	AND response_id = $5`

func keyArgs(evaluationID uuid.UUID, key AnswerKey) []interface{} {
	return []interface{}{evaluationID, key.SectionID, key.QuestionID, key.QuestionListID, key.ResponseID}
}

func scanAnswer(row pgx.Row) (*Answer, error) {
	var a Answer
	err := row.Scan(&a.EvaluationID, &a.SectionID, &a.QuestionID, &a.QuestionListID,
		&a.ResponseID, &a.Value, &a.Removed, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *answerRepoPG) ActiveBySection(ctx context.Context, evaluationID, sectionID uuid.UUID) ([]*Answer, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+answerCols+` FROM evaluation_answer
		WHERE evaluation_id = $1 AND section_id = $2 AND removed = FALSE
		ORDER BY question_id, response_id`, evaluationID, sectionID)
	if err != nil {
		return nil, err
	}
	return collectAnswers(rows)
}

func (r *answerRepoPG) ActiveByEvaluation(ctx context.Context, evaluationID uuid.UUID) ([]*Answer, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+answerCols+` FROM evaluation_answer
		WHERE evaluation_id = $1 AND removed = FALSE
		ORDER BY section_id, question_id, response_id`, evaluationID)
	if err != nil {
		return nil, err
	}
	return collectAnswers(rows)
}

func collectAnswers(rows pgx.Rows) ([]*Answer, error) {
	defer rows.Close()
	var items []*Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *answerRepoPG) GetByKey(ctx context.Context, evaluationID uuid.UUID, key AnswerKey) (*Answer, bool, error) {
	a, err := scanAnswer(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+answerCols+` FROM evaluation_answer WHERE `+keyCond,
		keyArgs(evaluationID, key)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return a, true, nil
}

func (r *answerRepoPG) Insert(ctx context.Context, a *Answer) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO evaluation_answer (evaluation_id, section_id, question_id, question_list_id, response_id, value)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.EvaluationID, a.SectionID, a.QuestionID, a.QuestionListID, a.ResponseID, a.Value)
	return err
}

func (r *answerRepoPG) Overwrite(ctx context.Context, evaluationID uuid.UUID, key AnswerKey, value *string) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE evaluation_answer SET value = $6, removed = FALSE, updated_at = NOW()
		WHERE `+keyCond,
		append(keyArgs(evaluationID, key), value)...)
	return err
}

func (r *answerRepoPG) SoftRemove(ctx context.Context, evaluationID uuid.UUID, key AnswerKey) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE evaluation_answer SET removed = TRUE, updated_at = NOW()
		WHERE `+keyCond,
		keyArgs(evaluationID, key)...)
	return err
}

// =========== Schema reader ===========

// schemaReaderPG resolves reachability over the live survey schema join
// tables, soft-removed links excluded.
type schemaReaderPG struct{ pool *pgxpool.Pool }

func NewSchemaReaderPG(pool *pgxpool.Pool) SchemaReader {
	return &schemaReaderPG{pool: pool}
}

func (r *schemaReaderPG) exists(ctx context.Context, sql string, args ...interface{}) (bool, error) {
	var ok bool
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (`+sql+`)`, args...).Scan(&ok)
	return ok, err
}

func (r *schemaReaderPG) SurveyExists(ctx context.Context, surveyID uuid.UUID) (bool, error) {
	return r.exists(ctx,
		`SELECT 1 FROM survey WHERE id = $1 AND deleted = FALSE`, surveyID)
}

func (r *schemaReaderPG) SectionInSurvey(ctx context.Context, surveyID, sectionID uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT 1 FROM survey_section ss
		JOIN section s ON s.id = ss.section_id AND s.deleted = FALSE
		WHERE ss.survey_id = $1 AND ss.section_id = $2`, surveyID, sectionID)
}

func (r *schemaReaderPG) DirectQuestion(ctx context.Context, sectionID, questionID uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT 1 FROM section_question sq
		JOIN question q ON q.id = sq.question_id AND q.deleted = FALSE
		WHERE sq.section_id = $1 AND sq.question_id = $2 AND sq.removed = FALSE`,
		sectionID, questionID)
}

func (r *schemaReaderPG) ItemQuestionList(ctx context.Context, sectionID, questionID uuid.UUID) (uuid.UUID, bool, error) {
	// The item is reachable when its list's owning question is itself
	// actively attached to the section.
	var listID uuid.UUID
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT qli.question_list_id
		FROM question_list_item qli
		JOIN question owner ON owner.question_list_id = qli.question_list_id AND owner.deleted = FALSE
		JOIN section_question sq ON sq.question_id = owner.id AND sq.section_id = $1 AND sq.removed = FALSE
		JOIN question item ON item.id = qli.question_id AND item.deleted = FALSE
		WHERE qli.question_id = $2
		LIMIT 1`, sectionID, questionID).Scan(&listID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return listID, true, nil
}

func (r *schemaReaderPG) ResponseLinked(ctx context.Context, questionID, responseID uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT 1 FROM question_response qr
		JOIN response resp ON resp.id = qr.response_id AND resp.deleted = FALSE
		WHERE qr.question_id = $1 AND qr.response_id = $2 AND qr.removed = FALSE`,
		questionID, responseID)
}
