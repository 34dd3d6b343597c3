package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tobangado69/vrpsolver/internal/common/repository"
)

// Manager bundles the store's repositories: just the two this domain
// needs, rather than the larger repository-per-entity manager a
// multi-resource CRUD service would wire.
type Manager struct {
	db        *gorm.DB
	Problems  repository.ProblemRepository
	Solutions repository.SolutionRepository
}

// NewManager builds a Manager bound to db.
func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		db:        db,
		Problems:  NewProblemRepository(db),
		Solutions: NewSolutionRepository(db),
	}
}

// HealthCheck pings the database.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return Ping(ctx, m.db)
}

// Stats reports connection pool statistics.
func (m *Manager) Stats(ctx context.Context) (map[string]interface{}, error) {
	return repository.ConnStats(ctx, m.db)
}

// FailStaleRunning marks every solution still "running" past maxAge as
// failed, for the scheduler's stale-run cleanup job: a crashed worker
// leaves its run's status stuck at "running" forever otherwise.
func (m *Manager) FailStaleRunning(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	result := m.db.WithContext(ctx).
		Model(&repository.SolutionRecord{}).
		Where("status = ? AND updated_at < ?", "running", cutoff).
		Updates(map[string]interface{}{"status": "failed"})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark stale runs as failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PurgeOldSolutions deletes completed, cancelled, and failed solutions
// older than retention, for the scheduler's daily purge job.
func (m *Manager) PurgeOldSolutions(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := m.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []string{"completed", "cancelled", "failed"}, cutoff).
		Delete(&repository.SolutionRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge old solutions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
