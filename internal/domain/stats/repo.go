package stats

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the read-only aggregation surface. Index value rows are
// written by external scoring pipelines; nothing here mutates.
type Repository interface {
	SurveyExists(ctx context.Context, surveyID uuid.UUID) (bool, error)
	GroupExists(ctx context.Context, groupID uuid.UUID) (bool, error)
	IndexExists(ctx context.Context, indexID uuid.UUID) (bool, error)

	// SurveyCounts returns total evaluations, distinct patients and
	// completed evaluations for one survey within the range.
	SurveyCounts(ctx context.Context, surveyID uuid.UUID, r Range) (total, patients, completed int, err error)
	SurveyByRevisor(ctx context.Context, surveyID uuid.UUID, r Range) ([]RevisorCount, error)
	// SurveyIndices aggregates every index linked to the survey, including
	// indices with no recorded values.
	SurveyIndices(ctx context.Context, surveyID uuid.UUID, r Range) ([]IndexSummary, error)

	GroupActivePatients(ctx context.Context, groupID uuid.UUID) (int, error)
	GroupBySurvey(ctx context.Context, groupID uuid.UUID, r Range) ([]SurveyCount, error)
	GroupByRevisor(ctx context.Context, groupID uuid.UUID, r Range) ([]RevisorCount, error)

	IndexValues(ctx context.Context, indexID uuid.UUID, r Range, limit, offset int) ([]*IndexValue, int, error)
}
