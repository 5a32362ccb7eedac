package survey

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/clinform/clinform/internal/platform/apperr"
)

// ---- in-memory graph ----

type memEdge struct {
	parent, child uuid.UUID
	ord           int
	removed       bool
}

type memGraph struct {
	surveys   map[uuid.UUID]*Survey
	sections  map[uuid.UUID]*Section
	questions map[uuid.UUID]*Question
	responses map[uuid.UUID]*Response
	lists     map[uuid.UUID]*QuestionList
	edges     map[string][]*memEdge
	assigned  map[uuid.UUID]bool
}

func newMemGraph() *memGraph {
	return &memGraph{
		surveys:   map[uuid.UUID]*Survey{},
		sections:  map[uuid.UUID]*Section{},
		questions: map[uuid.UUID]*Question{},
		responses: map[uuid.UUID]*Response{},
		lists:     map[uuid.UUID]*QuestionList{},
		edges:     map[string][]*memEdge{},
		assigned:  map[uuid.UUID]bool{},
	}
}

func (g *memGraph) Edges(_ context.Context, s Scope, parentID uuid.UUID) ([]Edge, error) {
	var out []Edge
	for _, e := range g.edges[s.Table] {
		if e.parent == parentID && !e.removed {
			out = append(out, Edge{ChildID: e.child, Order: e.ord})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (g *memGraph) EdgesForUpdate(ctx context.Context, s Scope, parentID uuid.UUID) ([]Edge, error) {
	return g.Edges(ctx, s, parentID)
}

func (g *memGraph) Insert(_ context.Context, s Scope, parentID, childID uuid.UUID, order int) error {
	g.edges[s.Table] = append(g.edges[s.Table], &memEdge{parent: parentID, child: childID, ord: order})
	return nil
}

func (g *memGraph) Delete(_ context.Context, s Scope, parentID, childID uuid.UUID) error {
	rows := g.edges[s.Table]
	for i, e := range rows {
		if e.parent == parentID && e.child == childID {
			g.edges[s.Table] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (g *memGraph) SetOrders(_ context.Context, s Scope, parentID uuid.UUID, orders map[uuid.UUID]int) error {
	for _, e := range g.edges[s.Table] {
		if e.parent == parentID {
			if ord, ok := orders[e.child]; ok {
				e.ord = ord
			}
		}
	}
	return nil
}

func (g *memGraph) Relink(_ context.Context, s Scope, parentID, oldChild, newChild uuid.UUID) error {
	for _, e := range g.edges[s.Table] {
		if e.parent == parentID && e.child == oldChild {
			e.child = newChild
		}
	}
	return nil
}

func (g *memGraph) ParentCount(_ context.Context, s Scope, childID uuid.UUID) (int, error) {
	n := 0
	for _, e := range g.edges[s.Table] {
		if e.child == childID && !e.removed {
			n++
		}
	}
	return n, nil
}

func (g *memGraph) Parents(_ context.Context, s Scope, childID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, e := range g.edges[s.Table] {
		if e.child == childID && !e.removed {
			out = append(out, e.parent)
		}
	}
	return out, nil
}

func (g *memGraph) Removed(_ context.Context, s Scope, parentID, childID uuid.UUID) (bool, error) {
	for _, e := range g.edges[s.Table] {
		if e.parent == parentID && e.child == childID && e.removed {
			return true, nil
		}
	}
	return false, nil
}

func (g *memGraph) Reactivate(_ context.Context, s Scope, parentID, childID uuid.UUID, order int) error {
	for _, e := range g.edges[s.Table] {
		if e.parent == parentID && e.child == childID {
			e.removed = false
			e.ord = order
		}
	}
	return nil
}

func (g *memGraph) MarkRemoved(_ context.Context, s Scope, parentID, childID uuid.UUID) error {
	for _, e := range g.edges[s.Table] {
		if e.parent == parentID && e.child == childID {
			e.removed = true
		}
	}
	return nil
}

func (g *memGraph) MarkAllRemoved(_ context.Context, s Scope, parentID uuid.UUID) error {
	for _, e := range g.edges[s.Table] {
		if e.parent == parentID {
			e.removed = true
		}
	}
	return nil
}

// entity repo adapters

type memSurveys struct{ g *memGraph }

func (m *memSurveys) Create(_ context.Context, sv *Survey) error {
	sv.ID = uuid.New()
	cp := *sv
	m.g.surveys[sv.ID] = &cp
	return nil
}

func (m *memSurveys) GetByID(_ context.Context, id uuid.UUID) (*Survey, error) {
	sv, ok := m.g.surveys[id]
	if !ok || sv.Deleted {
		return nil, fmt.Errorf("%w: survey %s", apperr.ErrNotFound, id)
	}
	cp := *sv
	return &cp, nil
}

func (m *memSurveys) Update(_ context.Context, sv *Survey) error {
	cp := *sv
	m.g.surveys[sv.ID] = &cp
	return nil
}

func (m *memSurveys) SoftDelete(_ context.Context, id uuid.UUID) error {
	if sv, ok := m.g.surveys[id]; ok {
		sv.Deleted = true
	}
	return nil
}

func (m *memSurveys) Search(_ context.Context, name string, limit, offset int) ([]*Survey, int, error) {
	var all []*Survey
	for _, sv := range m.g.surveys {
		if !sv.Deleted && strings.Contains(strings.ToLower(sv.Name), strings.ToLower(name)) {
			cp := *sv
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return page(all, limit, offset), len(all), nil
}

type memSections struct{ g *memGraph }

func (m *memSections) Create(_ context.Context, s *Section) error {
	s.ID = uuid.New()
	cp := *s
	m.g.sections[s.ID] = &cp
	return nil
}

func (m *memSections) GetByID(_ context.Context, id uuid.UUID) (*Section, error) {
	s, ok := m.g.sections[id]
	if !ok || s.Deleted {
		return nil, fmt.Errorf("%w: section %s", apperr.ErrNotFound, id)
	}
	cp := *s
	return &cp, nil
}

func (m *memSections) Update(_ context.Context, s *Section) error {
	cp := *s
	m.g.sections[s.ID] = &cp
	return nil
}

func (m *memSections) SoftDelete(_ context.Context, id uuid.UUID) error {
	if s, ok := m.g.sections[id]; ok {
		s.Deleted = true
	}
	return nil
}

func (m *memSections) Search(_ context.Context, name string, limit, offset int) ([]*Section, int, error) {
	var all []*Section
	for _, s := range m.g.sections {
		if !s.Deleted && strings.Contains(strings.ToLower(s.Name), strings.ToLower(name)) {
			cp := *s
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return page(all, limit, offset), len(all), nil
}

type memQuestions struct{ g *memGraph }

func (m *memQuestions) Create(_ context.Context, q *Question) error {
	q.ID = uuid.New()
	cp := *q
	m.g.questions[q.ID] = &cp
	return nil
}

func (m *memQuestions) GetByID(_ context.Context, id uuid.UUID) (*Question, error) {
	q, ok := m.g.questions[id]
	if !ok || q.Deleted {
		return nil, fmt.Errorf("%w: question %s", apperr.ErrNotFound, id)
	}
	cp := *q
	return &cp, nil
}

func (m *memQuestions) Update(_ context.Context, q *Question) error {
	cp := *q
	m.g.questions[q.ID] = &cp
	return nil
}

func (m *memQuestions) SoftDelete(_ context.Context, id uuid.UUID) error {
	if q, ok := m.g.questions[id]; ok {
		q.Deleted = true
	}
	return nil
}

func (m *memQuestions) Search(_ context.Context, name string, limit, offset int) ([]*Question, int, error) {
	var all []*Question
	for _, q := range m.g.questions {
		if !q.Deleted && strings.Contains(strings.ToLower(q.Name), strings.ToLower(name)) {
			cp := *q
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return page(all, limit, offset), len(all), nil
}

func (m *memQuestions) IsListItem(_ context.Context, id uuid.UUID) (bool, error) {
	for _, e := range m.g.edges[ListItems.Table] {
		if e.child == id {
			return true, nil
		}
	}
	return false, nil
}

type memResponses struct{ g *memGraph }

func (m *memResponses) Create(_ context.Context, r *Response) error {
	r.ID = uuid.New()
	cp := *r
	m.g.responses[r.ID] = &cp
	return nil
}

func (m *memResponses) GetByID(_ context.Context, id uuid.UUID) (*Response, error) {
	r, ok := m.g.responses[id]
	if !ok || r.Deleted {
		return nil, fmt.Errorf("%w: response %s", apperr.ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

func (m *memResponses) Update(_ context.Context, r *Response) error {
	cp := *r
	m.g.responses[r.ID] = &cp
	return nil
}

func (m *memResponses) SoftDelete(_ context.Context, id uuid.UUID) error {
	if r, ok := m.g.responses[id]; ok {
		r.Deleted = true
	}
	return nil
}

func (m *memResponses) Search(_ context.Context, text string, limit, offset int) ([]*Response, int, error) {
	var all []*Response
	for _, r := range m.g.responses {
		if !r.Deleted && strings.Contains(strings.ToLower(r.Text), strings.ToLower(text)) {
			cp := *r
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Text < all[j].Text })
	return page(all, limit, offset), len(all), nil
}

type memLists struct{ g *memGraph }

func (m *memLists) Create(_ context.Context, l *QuestionList) error {
	l.ID = uuid.New()
	cp := *l
	m.g.lists[l.ID] = &cp
	return nil
}

func (m *memLists) GetByID(_ context.Context, id uuid.UUID) (*QuestionList, error) {
	l, ok := m.g.lists[id]
	if !ok {
		return nil, fmt.Errorf("%w: question list %s", apperr.ErrNotFound, id)
	}
	cp := *l
	return &cp, nil
}

type memAssignments struct{ g *memGraph }

func (m *memAssignments) SurveyAssigned(_ context.Context, surveyID uuid.UUID) (bool, error) {
	return m.g.assigned[surveyID], nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func newTestService() (*Service, *memGraph) {
	g := newMemGraph()
	svc := NewService(
		&memSurveys{g}, &memSections{g}, &memQuestions{g}, &memResponses{g},
		&memLists{g}, g, &memAssignments{g}, passthroughTx,
	)
	return svc, g
}

// seed helpers

func seedSurvey(t *testing.T, svc *Service, name string) *Survey {
	t.Helper()
	sv, err := svc.CreateSurvey(context.Background(), SurveyInput{Name: name, Kind: KindHistory})
	if err != nil {
		t.Fatalf("seed survey: %v", err)
	}
	return sv
}

func seedSection(t *testing.T, svc *Service, surveyID uuid.UUID, name string) *Section {
	t.Helper()
	sec, err := svc.CreateSectionAndAttach(context.Background(), surveyID, SectionInput{Name: name}, nil)
	if err != nil {
		t.Fatalf("seed section: %v", err)
	}
	return sec
}

func seedQuestion(t *testing.T, svc *Service, surveyID, sectionID uuid.UUID, name string) *Question {
	t.Helper()
	q, err := svc.CreateQuestionAndAttach(context.Background(), surveyID, sectionID, QuestionInput{Name: name}, nil)
	if err != nil {
		t.Fatalf("seed question: %v", err)
	}
	return q
}

func orderedChildren(t *testing.T, g *memGraph, s Scope, parentID uuid.UUID) []Edge {
	t.Helper()
	edges, err := g.Edges(context.Background(), s, parentID)
	if err != nil {
		t.Fatalf("edges: %v", err)
	}
	return edges
}

func assertDense(t *testing.T, edges []Edge) {
	t.Helper()
	for i, e := range edges {
		if e.Order != i+1 {
			t.Fatalf("order not dense at index %d: %+v", i, edges)
		}
	}
}

// ---- composer tests ----

func TestCreateSurvey_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateSurvey(ctx, SurveyInput{Name: "", Kind: KindHistory}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for empty name, got %v", err)
	}
	if _, err := svc.CreateSurvey(ctx, SurveyInput{Name: "Intake", Kind: "weekly"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for bad kind, got %v", err)
	}
	sv, err := svc.CreateSurvey(ctx, SurveyInput{Name: "Intake", Kind: KindRevision})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sv.ID == uuid.Nil {
		t.Error("expected assigned id")
	}
}

func TestAttachExistingSections_SkipsDuplicates(t *testing.T) {
	svc, g := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Intake")
	a := seedSection(t, svc, sv.ID, "A")
	other := seedSurvey(t, svc, "Other")
	b := seedSection(t, svc, other.ID, "B")

	// a is already attached; b is new; b repeated in the batch.
	err := svc.AttachExistingSections(ctx, sv.ID, []uuid.UUID{a.ID, b.ID, b.ID}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	edges := orderedChildren(t, g, SurveySections, sv.ID)
	if len(edges) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(edges))
	}
	assertDense(t, edges)
}

func TestAttachExistingSections_MissingIDAborts(t *testing.T) {
	svc, g := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Intake")
	other := seedSurvey(t, svc, "Other")
	b := seedSection(t, svc, other.ID, "B")

	err := svc.AttachExistingSections(ctx, sv.ID, []uuid.UUID{b.ID, uuid.New()}, nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if edges := orderedChildren(t, g, SurveySections, sv.ID); len(edges) != 0 {
		t.Errorf("expected no writes after aborted batch, got %d edges", len(edges))
	}
}

func TestAttachExistingQuestions_RejectsListItem(t *testing.T) {
	svc, g := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Intake")
	sec := seedSection(t, svc, sv.ID, "A")
	owner := seedQuestion(t, svc, sv.ID, sec.ID, "Owner")
	if _, err := svc.CreateListForQuestion(ctx, sv.ID, sec.ID, owner.ID, "Symptoms"); err != nil {
		t.Fatalf("create list: %v", err)
	}
	item, err := svc.CreateQuestionAndAttach(ctx, sv.ID, sec.ID, QuestionInput{Name: "Item"}, nil)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := svc.AddQuestionToList(ctx, sv.ID, sec.ID, owner.ID, item.ID, nil, true); err != nil {
		t.Fatalf("add to list: %v", err)
	}

	sec2 := seedSection(t, svc, sv.ID, "B")
	err = svc.AttachExistingQuestions(ctx, sv.ID, sec2.ID, []uuid.UUID{item.ID}, nil)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for list item, got %v", err)
	}
	if edges := orderedChildren(t, g, SectionQuestions, sec2.ID); len(edges) != 0 {
		t.Errorf("expected no attach, got %d", len(edges))
	}
}

func TestDeleteSurvey_AssignedConflict(t *testing.T) {
	svc, g := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Intake")
	g.assigned[sv.ID] = true
	if err := svc.DeleteSurvey(ctx, sv.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	g.assigned[sv.ID] = false
	if err := svc.DeleteSurvey(ctx, sv.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetSurvey(ctx, sv.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected survey gone, got %v", err)
	}
}

func TestFinalizeSurvey(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Intake")
	if err := svc.FinalizeSurvey(ctx, sv.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for empty survey, got %v", err)
	}
	seedSection(t, svc, sv.ID, "A")
	if err := svc.FinalizeSurvey(ctx, sv.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Finalize is a checkpoint, not a lock.
	if _, err := svc.CreateSectionAndAttach(ctx, sv.ID, SectionInput{Name: "B"}, nil); err != nil {
		t.Errorf("survey should stay editable after finalize: %v", err)
	}
}

func TestDuplicateSurvey_SharesSectionsByReference(t *testing.T) {
	svc, g := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Intake")
	a := seedSection(t, svc, sv.ID, "A")
	b := seedSection(t, svc, sv.ID, "B")

	dup, err := svc.DuplicateSurvey(ctx, sv.ID, SurveyInput{Name: "Intake v2", Kind: KindHistory})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	edges := orderedChildren(t, g, SurveySections, dup.ID)
	if len(edges) != 2 {
		t.Fatalf("expected 2 section refs, got %d", len(edges))
	}
	assertDense(t, edges)
	if edges[0].ChildID != a.ID || edges[1].ChildID != b.ID {
		t.Error("duplicate must reference the same sections, in order")
	}
}

func TestReplaceContent(t *testing.T) {
	svc, g := newTestService()
	ctx := context.Background()

	target := seedSurvey(t, svc, "Target")
	seedSection(t, svc, target.ID, "Old")
	source := seedSurvey(t, svc, "Source")
	s1 := seedSection(t, svc, source.ID, "S1")
	s2 := seedSection(t, svc, source.ID, "S2")

	if err := svc.ReplaceContent(ctx, target.ID, source.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	edges := orderedChildren(t, g, SurveySections, target.ID)
	if len(edges) != 2 || edges[0].ChildID != s1.ID || edges[1].ChildID != s2.ID {
		t.Fatalf("expected target to hold source's sections, got %+v", edges)
	}
	assertDense(t, edges)
}

func TestCreateListForQuestion_Conflict(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Intake")
	sec := seedSection(t, svc, sv.ID, "A")
	q := seedQuestion(t, svc, sv.ID, sec.ID, "Q")

	if _, err := svc.CreateListForQuestion(ctx, sv.ID, sec.ID, q.ID, "Symptoms"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CreateListForQuestion(ctx, sv.ID, sec.ID, q.ID, "More"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on second list, got %v", err)
	}
}

func TestAddQuestionToList_ForceDetach(t *testing.T) {
	svc, g := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Intake")
	sec := seedSection(t, svc, sv.ID, "A")
	owner := seedQuestion(t, svc, sv.ID, sec.ID, "Owner")
	item := seedQuestion(t, svc, sv.ID, sec.ID, "Item")
	if _, err := svc.CreateListForQuestion(ctx, sv.ID, sec.ID, owner.ID, "Symptoms"); err != nil {
		t.Fatalf("create list: %v", err)
	}

	// Still attached to the section: refused without forceDetach.
	err := svc.AddQuestionToList(ctx, sv.ID, sec.ID, owner.ID, item.ID, nil, false)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if err := svc.AddQuestionToList(ctx, sv.ID, sec.ID, owner.ID, item.ID, nil, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	secEdges := orderedChildren(t, g, SectionQuestions, sec.ID)
	for _, e := range secEdges {
		if e.ChildID == item.ID {
			t.Error("item should have been detached from the section")
		}
	}
	assertDense(t, secEdges)

	ownerRow, _ := svc.questions.GetByID(ctx, owner.ID)
	items := orderedChildren(t, g, ListItems, *ownerRow.QuestionListID)
	if len(items) != 1 || items[0].ChildID != item.ID {
		t.Fatalf("expected item in list, got %+v", items)
	}
}

func TestResponsePropagationToListItems(t *testing.T) {
	svc, g := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Intake")
	sec := seedSection(t, svc, sv.ID, "A")
	owner := seedQuestion(t, svc, sv.ID, sec.ID, "Owner")
	item := seedQuestion(t, svc, sv.ID, sec.ID, "Item")
	if _, err := svc.CreateListForQuestion(ctx, sv.ID, sec.ID, owner.ID, "Symptoms"); err != nil {
		t.Fatalf("create list: %v", err)
	}
	if err := svc.AddQuestionToList(ctx, sv.ID, sec.ID, owner.ID, item.ID, nil, true); err != nil {
		t.Fatalf("add to list: %v", err)
	}

	r, err := svc.CreateResponseAndAttach(ctx, sv.ID, sec.ID, owner.ID, ResponseInput{Text: "Yes"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ownerEdges := orderedChildren(t, g, QuestionResponses, owner.ID)
	itemEdges := orderedChildren(t, g, QuestionResponses, item.ID)
	if len(ownerEdges) != 1 || ownerEdges[0].ChildID != r.ID {
		t.Fatalf("expected response on owner, got %+v", ownerEdges)
	}
	if len(itemEdges) != 1 || itemEdges[0].ChildID != r.ID {
		t.Fatalf("expected response propagated to item, got %+v", itemEdges)
	}
}

func TestDetachResponse_SoftRemovesAndReactivates(t *testing.T) {
	svc, g := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Intake")
	sec := seedSection(t, svc, sv.ID, "A")
	q := seedQuestion(t, svc, sv.ID, sec.ID, "Q")
	r, err := svc.CreateResponseAndAttach(ctx, sv.ID, sec.ID, q.ID, ResponseInput{Text: "Yes"}, nil)
	if err != nil {
		t.Fatalf("seed response: %v", err)
	}

	if err := svc.DetachResponse(ctx, sv.ID, sec.ID, q.ID, r.ID); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if edges := orderedChildren(t, g, QuestionResponses, q.ID); len(edges) != 0 {
		t.Fatalf("expected no active links, got %+v", edges)
	}
	removed, _ := g.Removed(ctx, QuestionResponses, q.ID, r.ID)
	if !removed {
		t.Fatal("expected soft-removed link to remain")
	}

	if err := svc.AddResponseToQuestion(ctx, sv.ID, sec.ID, q.ID, r.ID, nil); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	edges := orderedChildren(t, g, QuestionResponses, q.ID)
	if len(edges) != 1 || edges[0].ChildID != r.ID || edges[0].Order != 1 {
		t.Fatalf("expected reactivated link at order 1, got %+v", edges)
	}
}

func TestDeleteSection_SoftDeletesAndSweepsJoins(t *testing.T) {
	svc, g := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Intake")
	sec := seedSection(t, svc, sv.ID, "A")
	seedQuestion(t, svc, sv.ID, sec.ID, "Q")

	if err := svc.DeleteSection(ctx, sv.ID, sec.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.sections.GetByID(ctx, sec.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected section soft-deleted, got %v", err)
	}
	if edges := orderedChildren(t, g, SectionQuestions, sec.ID); len(edges) != 0 {
		t.Errorf("expected question joins soft-removed, got %+v", edges)
	}
	if edges := orderedChildren(t, g, SurveySections, sv.ID); len(edges) != 0 {
		t.Errorf("expected survey edge removed, got %+v", edges)
	}
}

func TestSearchSurveys_Previews(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Cardiology Intake")
	seedSection(t, svc, sv.ID, "A")
	seedSection(t, svc, sv.ID, "B")
	seedSurvey(t, svc, "Neurology Intake")

	previews, total, err := svc.SearchSurveys(ctx, "cardio", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(previews) != 1 {
		t.Fatalf("expected 1 match, got %d", total)
	}
	if previews[0].SectionCount != 2 {
		t.Errorf("expected section count 2, got %d", previews[0].SectionCount)
	}
}

func TestSurveyTree(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sv := seedSurvey(t, svc, "Intake")
	sec := seedSection(t, svc, sv.ID, "A")
	q := seedQuestion(t, svc, sv.ID, sec.ID, "Q1")
	seedQuestion(t, svc, sv.ID, sec.ID, "Q2")
	if _, err := svc.CreateResponseAndAttach(ctx, sv.ID, sec.ID, q.ID, ResponseInput{Text: "Yes"}, nil); err != nil {
		t.Fatalf("seed response: %v", err)
	}

	tree, err := svc.SurveyTree(ctx, sv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(tree.Sections))
	}
	if len(tree.Sections[0].Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(tree.Sections[0].Questions))
	}

	st, err := svc.SectionTree(ctx, sec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(st.Questions))
	}
	if len(st.Questions[0].Responses) != 1 {
		t.Errorf("expected response on first question, got %+v", st.Questions[0].Responses)
	}
}
