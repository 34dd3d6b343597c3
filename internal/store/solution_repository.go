package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tobangado69/vrpsolver/internal/common/repository"
)

// solutionRepository implements repository.SolutionRepository.
type solutionRepository struct {
	*repository.BaseRepository[repository.SolutionRecord]
}

// NewSolutionRepository builds the concrete solution repository.
func NewSolutionRepository(db *gorm.DB) repository.SolutionRepository {
	return &solutionRepository{
		BaseRepository: repository.NewBaseRepository[repository.SolutionRecord](db),
	}
}

// GetByProblem returns every solve run recorded against a problem, newest
// first.
func (r *solutionRepository) GetByProblem(ctx context.Context, problemID string, pagination repository.Pagination) ([]*repository.SolutionRecord, error) {
	var recs []*repository.SolutionRecord
	query := r.DB().WithContext(ctx).Where("problem_id = ?", problemID).Order("created_at DESC")

	limit := pagination.Limit
	if limit == 0 && pagination.PageSize > 0 {
		limit = pagination.PageSize
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	offset := pagination.Offset
	if offset == 0 && pagination.Page > 1 && pagination.PageSize > 0 {
		offset = (pagination.Page - 1) * pagination.PageSize
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to get solutions by problem: %w", err)
	}
	return recs, nil
}

// GetByStatus returns solve runs in a given lifecycle state (queued,
// running, completed, cancelled, failed), newest first.
func (r *solutionRepository) GetByStatus(ctx context.Context, status string, pagination repository.Pagination) ([]*repository.SolutionRecord, error) {
	var recs []*repository.SolutionRecord
	query := r.DB().WithContext(ctx).Where("status = ?", status).Order("created_at DESC")
	if pagination.Limit > 0 {
		query = query.Limit(pagination.Limit)
	}
	if pagination.Offset > 0 {
		query = query.Offset(pagination.Offset)
	}
	if err := query.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to get solutions by status: %w", err)
	}
	return recs, nil
}

// UpdateStatus transitions a solve run's lifecycle state.
func (r *solutionRepository) UpdateStatus(ctx context.Context, solutionID string, status string) error {
	if err := r.DB().WithContext(ctx).
		Model(&repository.SolutionRecord{}).
		Where("id = ?", solutionID).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update solution status: %w", err)
	}
	return nil
}

// SaveResult persists the final routed solution payload for a completed
// run, so a later GET can return routes/activities without recomputing
// anything.
func (r *solutionRepository) SaveResult(ctx context.Context, solutionID string, rawJSON []byte) error {
	if err := r.DB().WithContext(ctx).
		Model(&repository.SolutionRecord{}).
		Where("id = ?", solutionID).
		Update("raw_json", rawJSON).Error; err != nil {
		return fmt.Errorf("failed to save solution result: %w", err)
	}
	return nil
}

// UpdateProgress records the iteration count, unassigned count, and cost
// of a solve run, called once by internal/jobqueue's solve handler when
// the engine returns its best solution.
func (r *solutionRepository) UpdateProgress(ctx context.Context, solutionID string, iterations int64, unassignedCount int, cost float64) error {
	if err := r.DB().WithContext(ctx).
		Model(&repository.SolutionRecord{}).
		Where("id = ?", solutionID).
		Updates(map[string]interface{}{
			"iterations":       iterations,
			"unassigned_count": unassignedCount,
			"cost":             cost,
		}).Error; err != nil {
		return fmt.Errorf("failed to update solution progress: %w", err)
	}
	return nil
}
