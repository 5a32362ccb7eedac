package survey

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/clinform/clinform/internal/platform/apperr"
)

// Ordering helpers keep every parent scope a dense 1..N permutation. They
// take the store and scope explicitly; callers are expected to hold a
// transaction in ctx so the locked reads and the renumbering commit
// together.

// clampPos constrains a target position into [1, max]. Out-of-range
// positions are clamped rather than rejected.
func clampPos(pos, max int) int {
	if pos < 1 {
		return 1
	}
	if pos > max {
		return max
	}
	return pos
}

func edgeLess(a, b Edge) bool {
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return bytes.Compare(a.ChildID[:], b.ChildID[:]) < 0
}

// renumberPlan assigns dense 1..N orders by current order, ties broken by
// child id. Entries already at their slot are omitted.
func renumberPlan(edges []Edge) map[uuid.UUID]int {
	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool { return edgeLess(sorted[i], sorted[j]) })
	plan := make(map[uuid.UUID]int)
	for i, e := range sorted {
		if e.Order != i+1 {
			plan[e.ChildID] = i + 1
		}
	}
	return plan
}

// splicePlan removes childID from the sequence, reinserts it at pos
// (1-based, already clamped) and returns the full dense renumbering.
func splicePlan(edges []Edge, childID uuid.UUID, pos int) map[uuid.UUID]int {
	rest := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.ChildID != childID {
			rest = append(rest, e)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return edgeLess(rest[i], rest[j]) })

	plan := make(map[uuid.UUID]int, len(edges))
	slot := 1
	for i := 0; i <= len(rest); i++ {
		if slot == pos {
			plan[childID] = slot
			slot++
		}
		if i < len(rest) {
			plan[rest[i].ChildID] = slot
			slot++
		}
	}
	return plan
}

// attachChild inserts childID into the parent scope at pos (nil appends)
// and returns the assigned order. A child already present keeps its slot.
func attachChild(ctx context.Context, store EdgeStore, s Scope, parentID, childID uuid.UUID, pos *int) (int, error) {
	edges, err := store.EdgesForUpdate(ctx, s, parentID)
	if err != nil {
		return 0, err
	}
	for _, e := range edges {
		if e.ChildID == childID {
			return e.Order, nil
		}
	}

	target := len(edges) + 1
	if pos != nil {
		target = clampPos(*pos, len(edges)+1)
	}

	shifted := make(map[uuid.UUID]int)
	for _, e := range edges {
		if e.Order >= target {
			shifted[e.ChildID] = e.Order + 1
		}
	}
	if len(shifted) > 0 {
		if err := store.SetOrders(ctx, s, parentID, shifted); err != nil {
			return 0, err
		}
	}
	if err := store.Insert(ctx, s, parentID, childID, target); err != nil {
		return 0, err
	}
	return target, nil
}

// moveChild splices childID to the clamped target position and renumbers
// the whole scope.
func moveChild(ctx context.Context, store EdgeStore, s Scope, parentID, childID uuid.UUID, pos int) (int, error) {
	edges, err := store.EdgesForUpdate(ctx, s, parentID)
	if err != nil {
		return 0, err
	}
	present := false
	for _, e := range edges {
		if e.ChildID == childID {
			present = true
			break
		}
	}
	if !present {
		return 0, fmt.Errorf("%w: child %s not in scope %s of parent %s", apperr.ErrNotFound, childID, s.Table, parentID)
	}

	target := clampPos(pos, len(edges))
	plan := splicePlan(edges, childID, target)
	if err := store.SetOrders(ctx, s, parentID, plan); err != nil {
		return 0, err
	}
	return target, nil
}

// detachChild removes the join row and renumbers the remainder gaplessly.
func detachChild(ctx context.Context, store EdgeStore, s Scope, parentID, childID uuid.UUID) error {
	edges, err := store.EdgesForUpdate(ctx, s, parentID)
	if err != nil {
		return err
	}
	rest := make([]Edge, 0, len(edges))
	present := false
	for _, e := range edges {
		if e.ChildID == childID {
			present = true
			continue
		}
		rest = append(rest, e)
	}
	if !present {
		return fmt.Errorf("%w: child %s not in scope %s of parent %s", apperr.ErrNotFound, childID, s.Table, parentID)
	}
	if err := store.Delete(ctx, s, parentID, childID); err != nil {
		return err
	}
	if plan := renumberPlan(rest); len(plan) > 0 {
		return store.SetOrders(ctx, s, parentID, plan)
	}
	return nil
}

// compactScope renumbers the parent scope to dense 1..N. Idempotent; used
// defensively after bulk operations and clone fan-out.
func compactScope(ctx context.Context, store EdgeStore, s Scope, parentID uuid.UUID) error {
	edges, err := store.EdgesForUpdate(ctx, s, parentID)
	if err != nil {
		return err
	}
	if plan := renumberPlan(edges); len(plan) > 0 {
		return store.SetOrders(ctx, s, parentID, plan)
	}
	return nil
}
