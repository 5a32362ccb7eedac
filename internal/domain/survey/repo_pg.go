package survey

import (
	"context"
	"errors"
	"fmt"

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

func notFoundAs(err error, what string, id uuid.UUID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", apperr.ErrNotFound, what, id)
	}
	return err
}

// =========== Survey repository ===========

type surveyRepoPG struct{ pool *pgxpool.Pool }

func NewSurveyRepoPG(pool *pgxpool.Pool) SurveyRepository {
	return &surveyRepoPG{pool: pool}
}

const surveyCols = `id, name, kind, deleted, created_at, updated_at`

func scanSurvey(row pgx.Row) (*Survey, error) {
	var sv Survey
	err := row.Scan(&sv.ID, &sv.Name, &sv.Kind, &sv.Deleted, &sv.CreatedAt, &sv.UpdatedAt)
	return &sv, err
}

func (r *surveyRepoPG) Create(ctx context.Context, sv *Survey) error {
	sv.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO survey (id, name, kind) VALUES ($1,$2,$3)`,
		sv.ID, sv.Name, sv.Kind)
	return err
}

func (r *surveyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Survey, error) {
	sv, err := scanSurvey(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+surveyCols+` FROM survey WHERE id = $1 AND deleted = FALSE`, id))
	if err != nil {
		return nil, notFoundAs(err, "survey", id)
	}
	return sv, nil
}

func (r *surveyRepoPG) Update(ctx context.Context, sv *Survey) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE survey SET name=$2, kind=$3, updated_at=NOW() WHERE id = $1`,
		sv.ID, sv.Name, sv.Kind)
	return err
}

func (r *surveyRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE survey SET deleted = TRUE, updated_at=NOW() WHERE id = $1`, id)
	return err
}

func (r *surveyRepoPG) Search(ctx context.Context, name string, limit, offset int) ([]*Survey, int, error) {
	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM survey WHERE deleted = FALSE AND name ILIKE '%'||$1||'%'`, name).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `
		SELECT `+surveyCols+` FROM survey
		WHERE deleted = FALSE AND name ILIKE '%'||$1||'%'
		ORDER BY name LIMIT $2 OFFSET $3`, name, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Survey
	for rows.Next() {
		sv, err := scanSurvey(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, sv)
	}
	return items, total, rows.Err()
}

// =========== Section repository ===========

type sectionRepoPG struct{ pool *pgxpool.Pool }

func NewSectionRepoPG(pool *pgxpool.Pool) SectionRepository {
	return &sectionRepoPG{pool: pool}
}

const sectionCols = `id, name, note, coordinator_id, deleted, created_at, updated_at`

func scanSection(row pgx.Row) (*Section, error) {
	var s Section
	err := row.Scan(&s.ID, &s.Name, &s.Note, &s.CoordinatorID, &s.Deleted, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *sectionRepoPG) Create(ctx context.Context, s *Section) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO section (id, name, note, coordinator_id) VALUES ($1,$2,$3,$4)`,
		s.ID, s.Name, s.Note, s.CoordinatorID)
	return err
}

func (r *sectionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Section, error) {
	s, err := scanSection(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+sectionCols+` FROM section WHERE id = $1 AND deleted = FALSE`, id))
	if err != nil {
		return nil, notFoundAs(err, "section", id)
	}
	return s, nil
}

func (r *sectionRepoPG) Update(ctx context.Context, s *Section) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE section SET name=$2, note=$3, updated_at=NOW() WHERE id = $1`,
		s.ID, s.Name, s.Note)
	return err
}

func (r *sectionRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE section SET deleted = TRUE, updated_at=NOW() WHERE id = $1`, id)
	return err
}

func (r *sectionRepoPG) Search(ctx context.Context, name string, limit, offset int) ([]*Section, int, error) {
	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM section WHERE deleted = FALSE AND name ILIKE '%'||$1||'%'`, name).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `
		SELECT `+sectionCols+` FROM section
		WHERE deleted = FALSE AND name ILIKE '%'||$1||'%'
		ORDER BY name LIMIT $2 OFFSET $3`, name, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// =========== Question repository ===========

type questionRepoPG struct{ pool *pgxpool.Pool }

func NewQuestionRepoPG(pool *pgxpool.Pool) QuestionRepository {
	return &questionRepoPG{pool: pool}
}

const questionCols = `id, name, question_list_id, deleted, created_at, updated_at`

func scanQuestion(row pgx.Row) (*Question, error) {
	var q Question
	err := row.Scan(&q.ID, &q.Name, &q.QuestionListID, &q.Deleted, &q.CreatedAt, &q.UpdatedAt)
	return &q, err
}

func (r *questionRepoPG) Create(ctx context.Context, q *Question) error {
	q.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO question (id, name, question_list_id) VALUES ($1,$2,$3)`,
		q.ID, q.Name, q.QuestionListID)
	return err
}

func (r *questionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Question, error) {
	q, err := scanQuestion(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+questionCols+` FROM question WHERE id = $1 AND deleted = FALSE`, id))
	if err != nil {
		return nil, notFoundAs(err, "question", id)
	}
	return q, nil
}

func (r *questionRepoPG) Update(ctx context.Context, q *Question) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE question SET name=$2, question_list_id=$3, updated_at=NOW() WHERE id = $1`,
		q.ID, q.Name, q.QuestionListID)
	return err
}

func (r *questionRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE question SET deleted = TRUE, updated_at=NOW() WHERE id = $1`, id)
	return err
}

func (r *questionRepoPG) Search(ctx context.Context, name string, limit, offset int) ([]*Question, int, error) {
	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM question WHERE deleted = FALSE AND name ILIKE '%'||$1||'%'`, name).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `
		SELECT `+questionCols+` FROM question
		WHERE deleted = FALSE AND name ILIKE '%'||$1||'%'
		ORDER BY name LIMIT $2 OFFSET $3`, name, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Question
	for rows.Next() {
		item, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *questionRepoPG) IsListItem(ctx context.Context, id uuid.UUID) (bool, error) {
	var item bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM question_list_item WHERE question_id = $1)`, id).Scan(&item)
	return item, err
}

// =========== Response repository ===========

type responseRepoPG struct{ pool *pgxpool.Pool }

func NewResponseRepoPG(pool *pgxpool.Pool) ResponseRepository {
	return &responseRepoPG{pool: pool}
}

const responseCols = `id, text, min_value, max_value, deleted`

func scanResponse(row pgx.Row) (*Response, error) {
	var resp Response
	err := row.Scan(&resp.ID, &resp.Text, &resp.MinValue, &resp.MaxValue, &resp.Deleted)
	return &resp, err
}

func (r *responseRepoPG) Create(ctx context.Context, resp *Response) error {
	resp.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO response (id, text, min_value, max_value) VALUES ($1,$2,$3,$4)`,
		resp.ID, resp.Text, resp.MinValue, resp.MaxValue)
	return err
}

func (r *responseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Response, error) {
	resp, err := scanResponse(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+responseCols+` FROM response WHERE id = $1 AND deleted = FALSE`, id))
	if err != nil {
		return nil, notFoundAs(err, "response", id)
	}
	return resp, nil
}

func (r *responseRepoPG) Update(ctx context.Context, resp *Response) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE response SET text=$2, min_value=$3, max_value=$4 WHERE id = $1`,
		resp.ID, resp.Text, resp.MinValue, resp.MaxValue)
	return err
}

func (r *responseRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE response SET deleted = TRUE WHERE id = $1`, id)
	return err
}

func (r *responseRepoPG) Search(ctx context.Context, text string, limit, offset int) ([]*Response, int, error) {
	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM response WHERE deleted = FALSE AND text ILIKE '%'||$1||'%'`, text).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `
		SELECT `+responseCols+` FROM response
		WHERE deleted = FALSE AND text ILIKE '%'||$1||'%'
		ORDER BY text LIMIT $2 OFFSET $3`, text, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, resp)
	}
	return items, total, rows.Err()
}

// =========== List repository ===========

type listRepoPG struct{ pool *pgxpool.Pool }

func NewListRepoPG(pool *pgxpool.Pool) ListRepository {
	return &listRepoPG{pool: pool}
}

func (r *listRepoPG) Create(ctx context.Context, l *QuestionList) error {
	l.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO question_list (id, label) VALUES ($1,$2)`, l.ID, l.Label)
	return err
}

func (r *listRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*QuestionList, error) {
	var l QuestionList
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, label FROM question_list WHERE id = $1`, id).Scan(&l.ID, &l.Label)
	if err != nil {
		return nil, notFoundAs(err, "question list", id)
	}
	return &l, nil
}

// =========== Edge store ===========

// edgeStorePG implements EdgeStore over the four join tables. Scope table
// and column names are fixed package constants, never caller input.
type edgeStorePG struct{ pool *pgxpool.Pool }

func NewEdgeStorePG(pool *pgxpool.Pool) EdgeStore {
	return &edgeStorePG{pool: pool}
}

func activeCond(s Scope) string {
	if s.RemovedCol == "" {
		return ""
	}
	return ` AND ` + s.RemovedCol + ` = FALSE`
}

func (r *edgeStorePG) edges(ctx context.Context, s Scope, parentID uuid.UUID, lock bool) ([]Edge, error) {
	q := fmt.Sprintf(`SELECT %s, ord FROM %s WHERE %s = $1%s ORDER BY ord`,
		s.ChildCol, s.Table, s.ParentCol, activeCond(s))
	if lock {
		q += ` FOR UPDATE`
	}
	rows, err := conn(ctx, r.pool).Query(ctx, q, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ChildID, &e.Order); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (r *edgeStorePG) Edges(ctx context.Context, s Scope, parentID uuid.UUID) ([]Edge, error) {
	return r.edges(ctx, s, parentID, false)
}

func (r *edgeStorePG) EdgesForUpdate(ctx context.Context, s Scope, parentID uuid.UUID) ([]Edge, error) {
	return r.edges(ctx, s, parentID, true)
}

func (r *edgeStorePG) Insert(ctx context.Context, s Scope, parentID, childID uuid.UUID, order int) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, %s, ord) VALUES ($1,$2,$3)`, s.Table, s.ParentCol, s.ChildCol),
		parentID, childID, order)
	return err
}

func (r *edgeStorePG) Delete(ctx context.Context, s Scope, parentID, childID uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`, s.Table, s.ParentCol, s.ChildCol),
		parentID, childID)
	return err
}

func (r *edgeStorePG) SetOrders(ctx context.Context, s Scope, parentID uuid.UUID, orders map[uuid.UUID]int) error {
	q := fmt.Sprintf(`UPDATE %s SET ord = $3 WHERE %s = $1 AND %s = $2`, s.Table, s.ParentCol, s.ChildCol)
	for childID, ord := range orders {
		if _, err := conn(ctx, r.pool).Exec(ctx, q, parentID, childID, ord); err != nil {
			return err
		}
	}
	return nil
}

func (r *edgeStorePG) Relink(ctx context.Context, s Scope, parentID, oldChild, newChild uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $3 WHERE %s = $1 AND %s = $2`, s.Table, s.ChildCol, s.ParentCol, s.ChildCol),
		parentID, oldChild, newChild)
	return err
}

func (r *edgeStorePG) ParentCount(ctx context.Context, s Scope, childID uuid.UUID) (int, error) {
	// Subquery locks the rows so concurrent copy-on-write checks of the
	// same child serialize.
	q := fmt.Sprintf(`SELECT COUNT(*) FROM (SELECT 1 FROM %s WHERE %s = $1%s FOR UPDATE) locked`,
		s.Table, s.ChildCol, activeCond(s))
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx, q, childID).Scan(&n)
	return n, err
}

func (r *edgeStorePG) Parents(ctx context.Context, s Scope, childID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1%s`, s.ParentCol, s.Table, s.ChildCol, activeCond(s)),
		childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var parents []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		parents = append(parents, id)
	}
	return parents, rows.Err()
}

func (r *edgeStorePG) Removed(ctx context.Context, s Scope, parentID, childID uuid.UUID) (bool, error) {
	if s.RemovedCol == "" {
		return false, nil
	}
	var removed bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 AND %s = $2 AND %s = TRUE)`,
			s.Table, s.ParentCol, s.ChildCol, s.RemovedCol),
		parentID, childID).Scan(&removed)
	return removed, err
}

func (r *edgeStorePG) Reactivate(ctx context.Context, s Scope, parentID, childID uuid.UUID, order int) error {
	if s.RemovedCol == "" {
		return fmt.Errorf("scope %s has no removed flag", s.Table)
	}
	_, err := conn(ctx, r.pool).Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = FALSE, ord = $3 WHERE %s = $1 AND %s = $2`,
			s.Table, s.RemovedCol, s.ParentCol, s.ChildCol),
		parentID, childID, order)
	return err
}

func (r *edgeStorePG) MarkRemoved(ctx context.Context, s Scope, parentID, childID uuid.UUID) error {
	if s.RemovedCol == "" {
		return fmt.Errorf("scope %s has no removed flag", s.Table)
	}
	_, err := conn(ctx, r.pool).Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = TRUE WHERE %s = $1 AND %s = $2`,
			s.Table, s.RemovedCol, s.ParentCol, s.ChildCol),
		parentID, childID)
	return err
}

func (r *edgeStorePG) MarkAllRemoved(ctx context.Context, s Scope, parentID uuid.UUID) error {
	if s.RemovedCol == "" {
		return fmt.Errorf("scope %s has no removed flag", s.Table)
	}
	_, err := conn(ctx, r.pool).Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = TRUE WHERE %s = $1`, s.Table, s.RemovedCol, s.ParentCol),
		parentID)
	return err
}
