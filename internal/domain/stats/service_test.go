package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinform/clinform/internal/platform/apperr"
	"github.com/clinform/clinform/internal/platform/auth"
)

type memRepo struct {
	surveys map[uuid.UUID]bool
	groups  map[uuid.UUID]bool
	indices map[uuid.UUID]bool

	total, patients, completed int
	byRevisor                  []RevisorCount
	indexSummaries             []IndexSummary

	activePatients int
	bySurvey       []SurveyCount

	values []*IndexValue
}

func newMemRepo() *memRepo {
	return &memRepo{
		surveys: map[uuid.UUID]bool{},
		groups:  map[uuid.UUID]bool{},
		indices: map[uuid.UUID]bool{},
	}
}

func (m *memRepo) SurveyExists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.surveys[id], nil
}

func (m *memRepo) GroupExists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.groups[id], nil
}

func (m *memRepo) IndexExists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.indices[id], nil
}

func (m *memRepo) SurveyCounts(_ context.Context, _ uuid.UUID, _ Range) (int, int, int, error) {
	return m.total, m.patients, m.completed, nil
}

func (m *memRepo) SurveyByRevisor(_ context.Context, _ uuid.UUID, _ Range) ([]RevisorCount, error) {
	return m.byRevisor, nil
}

func (m *memRepo) SurveyIndices(_ context.Context, _ uuid.UUID, _ Range) ([]IndexSummary, error) {
	return m.indexSummaries, nil
}

func (m *memRepo) GroupActivePatients(_ context.Context, _ uuid.UUID) (int, error) {
	return m.activePatients, nil
}

func (m *memRepo) GroupBySurvey(_ context.Context, _ uuid.UUID, _ Range) ([]SurveyCount, error) {
	return m.bySurvey, nil
}

func (m *memRepo) GroupByRevisor(_ context.Context, _ uuid.UUID, _ Range) ([]RevisorCount, error) {
	return m.byRevisor, nil
}

func (m *memRepo) IndexValues(_ context.Context, _ uuid.UUID, _ Range, limit, offset int) ([]*IndexValue, int, error) {
	if offset >= len(m.values) {
		return nil, len(m.values), nil
	}
	end := offset + limit
	if end > len(m.values) {
		end = len(m.values)
	}
	return m.values[offset:end], len(m.values), nil
}

func coordinatorCtx() context.Context {
	return auth.WithUser(context.Background(), uuid.New(), "coordinator")
}

func fp(v float64) *float64 { return &v }

func TestSurveySummary_AssemblesCounts(t *testing.T) {
	repo := newMemRepo()
	surveyID := uuid.New()
	repo.surveys[surveyID] = true
	repo.total, repo.patients, repo.completed = 12, 7, 4
	rev := uuid.New()
	repo.byRevisor = []RevisorCount{{RevisorID: rev, Count: 12}}
	repo.indexSummaries = []IndexSummary{
		{IndexID: uuid.New(), Name: "barthel", N: 3, Avg: fp(55), Min: fp(40), Max: fp(70)},
		{IndexID: uuid.New(), Name: "pfeiffer", N: 0},
	}
	svc := NewService(repo)

	sum, err := svc.SurveySummary(coordinatorCtx(), surveyID, Range{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalEvaluations != 12 || sum.UniquePatients != 7 || sum.Completed != 4 {
		t.Fatalf("counts = %d/%d/%d, want 12/7/4",
			sum.TotalEvaluations, sum.UniquePatients, sum.Completed)
	}
	if len(sum.ByRevisor) != 1 || sum.ByRevisor[0].RevisorID != rev {
		t.Fatalf("by_revisor = %+v", sum.ByRevisor)
	}
	if len(sum.Indices) != 2 {
		t.Fatalf("indices = %+v", sum.Indices)
	}
	if sum.Indices[1].Avg != nil {
		t.Error("index without values must report nil moments")
	}
}

func TestGroupSummary_TotalsAcrossSurveys(t *testing.T) {
	repo := newMemRepo()
	groupID := uuid.New()
	repo.groups[groupID] = true
	repo.activePatients = 9
	repo.bySurvey = []SurveyCount{
		{SurveyID: uuid.New(), Name: "Intake", Count: 5, Completed: 2},
		{SurveyID: uuid.New(), Name: "Followup", Count: 3, Completed: 3},
	}
	svc := NewService(repo)

	sum, err := svc.GroupSummary(coordinatorCtx(), groupID, Range{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.ActivePatients != 9 {
		t.Errorf("active_patients = %d, want 9", sum.ActivePatients)
	}
	if sum.TotalEvaluations != 8 {
		t.Errorf("total = %d, want the sum over surveys 8", sum.TotalEvaluations)
	}
}

func TestSummaries_UnknownTargetIsNotFound(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := coordinatorCtx()

	if _, err := svc.SurveySummary(ctx, uuid.New(), Range{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("survey: got %v, want not found", err)
	}
	if _, err := svc.GroupSummary(ctx, uuid.New(), Range{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("group: got %v, want not found", err)
	}
	if _, _, err := svc.IndexValues(ctx, uuid.New(), Range{}, 20, 0); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("index: got %v, want not found", err)
	}
}

func TestSummaries_InvertedRangeRejected(t *testing.T) {
	repo := newMemRepo()
	surveyID := uuid.New()
	repo.surveys[surveyID] = true
	svc := NewService(repo)

	to := time.Now()
	from := to.Add(24 * time.Hour)
	_, err := svc.SurveySummary(coordinatorCtx(), surveyID, Range{From: &from, To: &to})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestStats_CoordinatorScope(t *testing.T) {
	repo := newMemRepo()
	surveyID := uuid.New()
	repo.surveys[surveyID] = true
	svc := NewService(repo)

	revisor := auth.WithUser(context.Background(), uuid.New(), "revisor")
	if _, err := svc.SurveySummary(revisor, surveyID, Range{}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("got %v, want forbidden", err)
	}
}

func TestIndexValues_Pages(t *testing.T) {
	repo := newMemRepo()
	indexID := uuid.New()
	repo.indices[indexID] = true
	for i := 0; i < 5; i++ {
		repo.values = append(repo.values, &IndexValue{
			EvaluationID: uuid.New(),
			PatientID:    uuid.New(),
			Value:        float64(i),
			RecordedAt:   time.Now(),
		})
	}
	svc := NewService(repo)

	items, total, err := svc.IndexValues(coordinatorCtx(), indexID, Range{}, 2, 4)
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if total != 5 || len(items) != 1 {
		t.Fatalf("page = %d items of %d, want 1 of 5", len(items), total)
	}
}
