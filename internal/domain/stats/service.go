package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinform/clinform/internal/platform/apperr"
	"github.com/clinform/clinform/internal/platform/auth"
)

// Service assembles the evaluation statistics read models. Everything
// here is derived; the evaluation and index tables are the source of
// truth.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// canRead gates the digests to coordinators, mirroring the route guard.
func canRead(ctx context.Context) error {
	if auth.HasRole(ctx, "coordinator") {
		return nil
	}
	return fmt.Errorf("%w: statistics are coordinator scope", apperr.ErrForbidden)
}

func (r Range) validate() error {
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return fmt.Errorf("%w: range start is after its end", apperr.ErrValidation)
	}
	return nil
}

// SurveySummary digests one survey's evaluations within the range.
func (s *Service) SurveySummary(ctx context.Context, surveyID uuid.UUID, r Range) (*SurveySummary, error) {
	if err := canRead(ctx); err != nil {
		return nil, err
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	ok, err := s.repo.SurveyExists(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: survey %s", apperr.ErrNotFound, surveyID)
	}

	total, patients, completed, err := s.repo.SurveyCounts(ctx, surveyID, r)
	if err != nil {
		return nil, err
	}
	byRevisor, err := s.repo.SurveyByRevisor(ctx, surveyID, r)
	if err != nil {
		return nil, err
	}
	indices, err := s.repo.SurveyIndices(ctx, surveyID, r)
	if err != nil {
		return nil, err
	}
	return &SurveySummary{
		SurveyID:         surveyID,
		TotalEvaluations: total,
		UniquePatients:   patients,
		Completed:        completed,
		ByRevisor:        byRevisor,
		Indices:          indices,
	}, nil
}

// GroupSummary digests one care group's evaluations within the range.
func (s *Service) GroupSummary(ctx context.Context, groupID uuid.UUID, r Range) (*GroupSummary, error) {
	if err := canRead(ctx); err != nil {
		return nil, err
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	ok, err := s.repo.GroupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: group %s", apperr.ErrNotFound, groupID)
	}

	active, err := s.repo.GroupActivePatients(ctx, groupID)
	if err != nil {
		return nil, err
	}
	bySurvey, err := s.repo.GroupBySurvey(ctx, groupID, r)
	if err != nil {
		return nil, err
	}
	byRevisor, err := s.repo.GroupByRevisor(ctx, groupID, r)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, c := range bySurvey {
		total += c.Count
	}
	return &GroupSummary{
		GroupID:          groupID,
		ActivePatients:   active,
		TotalEvaluations: total,
		BySurvey:         bySurvey,
		ByRevisor:        byRevisor,
	}, nil
}

// IndexValues lists one index's recorded scores, newest first.
func (s *Service) IndexValues(ctx context.Context, indexID uuid.UUID, r Range, limit, offset int) ([]*IndexValue, int, error) {
	if err := canRead(ctx); err != nil {
		return nil, 0, err
	}
	if err := r.validate(); err != nil {
		return nil, 0, err
	}
	ok, err := s.repo.IndexExists(ctx, indexID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, fmt.Errorf("%w: index %s", apperr.ErrNotFound, indexID)
	}
	return s.repo.IndexValues(ctx, indexID, r, limit, offset)
}
