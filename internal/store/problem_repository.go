package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tobangado69/vrpsolver/internal/common/repository"
)

// problemRepository implements repository.ProblemRepository: embed
// BaseRepository for the generic CRUD set, add query methods on top using
// the exported DB() accessor.
type problemRepository struct {
	*repository.BaseRepository[repository.ProblemRecord]
}

// NewProblemRepository builds the concrete problem repository.
func NewProblemRepository(db *gorm.DB) repository.ProblemRepository {
	return &problemRepository{
		BaseRepository: repository.NewBaseRepository[repository.ProblemRecord](db),
	}
}

// GetByName retrieves the most recently created problem with the given
// name (names are not unique; callers that submitted with the same name
// twice get the latest).
func (r *problemRepository) GetByName(ctx context.Context, name string) (*repository.ProblemRecord, error) {
	var rec repository.ProblemRecord
	err := r.DB().WithContext(ctx).
		Where("name = ?", name).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("no problem found with name: %s", name)
		}
		return nil, fmt.Errorf("failed to get problem by name: %w", err)
	}
	return &rec, nil
}

// GetRecent returns the most recently submitted problems, newest first.
func (r *problemRepository) GetRecent(ctx context.Context, limit int) ([]*repository.ProblemRecord, error) {
	return r.GetRecentPage(ctx, limit, 0)
}

// GetRecentPage returns a page of recently submitted problems, newest
// first, offset by offset rows.
func (r *problemRepository) GetRecentPage(ctx context.Context, limit, offset int) ([]*repository.ProblemRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var recs []*repository.ProblemRecord
	if err := r.DB().WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to get recent problems: %w", err)
	}
	return recs, nil
}
