package survey

import (
	"context"

	"github.com/google/uuid"
)

// EdgeStore is the ordered-join surface shared by every scope. The pg
// implementation locks rows so that concurrent structural edits of the same
// parent serialize; the ordering helpers in ordering.go drive it.
type EdgeStore interface {
	// Edges returns the active join rows of a parent, ascending by order.
	Edges(ctx context.Context, s Scope, parentID uuid.UUID) ([]Edge, error)
	// EdgesForUpdate is Edges with the rows locked for the transaction.
	EdgesForUpdate(ctx context.Context, s Scope, parentID uuid.UUID) ([]Edge, error)
	Insert(ctx context.Context, s Scope, parentID, childID uuid.UUID, order int) error
	Delete(ctx context.Context, s Scope, parentID, childID uuid.UUID) error
	// SetOrders applies a renumbering plan to the parent's rows.
	SetOrders(ctx context.Context, s Scope, parentID uuid.UUID, orders map[uuid.UUID]int) error
	// Relink points the parent's join row for oldChild at newChild,
	// preserving its order slot.
	Relink(ctx context.Context, s Scope, parentID, oldChild, newChild uuid.UUID) error
	// ParentCount counts distinct parents referencing childID, locking the
	// matching rows so concurrent copy-on-write checks serialize.
	ParentCount(ctx context.Context, s Scope, childID uuid.UUID) (int, error)
	// Parents lists the parent ids referencing childID.
	Parents(ctx context.Context, s Scope, childID uuid.UUID) ([]uuid.UUID, error)
	// Removed reports whether a soft-removed row exists for the pair.
	// Always false for scopes without a removed flag.
	Removed(ctx context.Context, s Scope, parentID, childID uuid.UUID) (bool, error)
	// Reactivate clears the removed flag and assigns a fresh order slot.
	Reactivate(ctx context.Context, s Scope, parentID, childID uuid.UUID, order int) error
	// MarkRemoved soft-removes the row instead of deleting it.
	MarkRemoved(ctx context.Context, s Scope, parentID, childID uuid.UUID) error
	// MarkAllRemoved soft-removes every row under the parent.
	MarkAllRemoved(ctx context.Context, s Scope, parentID uuid.UUID) error
}

type SurveyRepository interface {
	Create(ctx context.Context, sv *Survey) error
	GetByID(ctx context.Context, id uuid.UUID) (*Survey, error)
	Update(ctx context.Context, sv *Survey) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, name string, limit, offset int) ([]*Survey, int, error)
}

type SectionRepository interface {
	Create(ctx context.Context, s *Section) error
	GetByID(ctx context.Context, id uuid.UUID) (*Section, error)
	Update(ctx context.Context, s *Section) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, name string, limit, offset int) ([]*Section, int, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, q *Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*Question, error)
	Update(ctx context.Context, q *Question) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, name string, limit, offset int) ([]*Question, int, error)
	// IsListItem reports whether the question belongs to any question list.
	IsListItem(ctx context.Context, id uuid.UUID) (bool, error)
}

type ResponseRepository interface {
	Create(ctx context.Context, r *Response) error
	GetByID(ctx context.Context, id uuid.UUID) (*Response, error)
	Update(ctx context.Context, r *Response) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, text string, limit, offset int) ([]*Response, int, error)
}

type ListRepository interface {
	Create(ctx context.Context, l *QuestionList) error
	GetByID(ctx context.Context, id uuid.UUID) (*QuestionList, error)
}
