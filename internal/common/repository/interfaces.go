package repository

import (
	"context"
	"time"

	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"gorm.io/gorm"
)

// Repository defines the base repository interface for CRUD operations
type Repository[T any] interface {
	// Basic CRUD operations
	Create(ctx context.Context, entity *T) error
	GetByID(ctx context.Context, id string) (*T, error)
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id string) error

	// Query operations
	List(ctx context.Context, filters FilterOptions, pagination Pagination) ([]*T, error)
	Count(ctx context.Context, filters FilterOptions) (int64, error)

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository[T]) error) error
}

// FilterOptions represents filtering options for queries
type FilterOptions struct {
	// Basic filters
	Where map[string]interface{} `json:"where"`
	WhereIn map[string][]interface{} `json:"where_in"`
	WhereNot map[string]interface{} `json:"where_not"`
	WhereLike map[string]string `json:"where_like"`

	// Date range filters
	DateRange map[string]DateRange `json:"date_range"`

	// Text search
	Search string `json:"search"`
	SearchIn []string `json:"search_in"`

	// Additional conditions
	Conditions []Condition `json:"conditions"`
}

// Condition represents a custom query condition
type Condition struct {
	Field string `json:"field"`
	Operator string `json:"operator"` // =, !=, >, <, >=, <=, IN, NOT IN, LIKE, ILIKE
	Value interface{} `json:"value"`
}

// DateRange represents a date range filter
type DateRange struct {
	Start string `json:"start"`
	End string `json:"end"`
}

// Pagination represents pagination options
type Pagination struct {
	Page int `json:"page"`
	PageSize int `json:"page_size"`
	Offset int `json:"offset"`
	Limit int `json:"limit"`
}

// SortOptions represents sorting options
type SortOptions struct {
	Field string `json:"field"`
	Direction string `json:"direction"` // ASC, DESC
}

// QueryOptions combines all query options
type QueryOptions struct {
	Filters FilterOptions `json:"filters"`
	Pagination Pagination `json:"pagination"`
	Sort []SortOptions `json:"sort"`
}

// RepositoryResult represents the result of a repository operation
type RepositoryResult[T any] struct {
	Data []*T `json:"data"`
	Total int64 `json:"total"`
	Page int `json:"page"`
	PageSize int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	HasMore bool `json:"has_more"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Tx() *gorm.DB
}

// ProblemRecord persists one submitted problem graph alongside the
// matrix profile it was solved against.
type ProblemRecord struct {
	ID string `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name string `json:"name" gorm:"index;type:varchar(255)"`
	Payload model.Problem `json:"payload" gorm:"-"`
	RawJSON []byte `json:"-" gorm:"column:raw_json;type:jsonb"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName pins the table name so renaming the Go type never migrates
// existing rows under a different name.
func (ProblemRecord) TableName() string { return "problems" }

// SolutionRecord persists one completed or in-progress solve run's best
// known result, independent of whether the run is still live.
type SolutionRecord struct {
	ID string `json:"id" gorm:"primaryKey;type:varchar(64)"`
	ProblemID string `json:"problem_id" gorm:"index;type:varchar(64)"`
	Status string `json:"status" gorm:"index;type:varchar(32)"` // queued, running, completed, cancelled, failed
	Iterations int64 `json:"iterations"`
	UnassignedCount int `json:"unassigned_count"`
	Cost float64 `json:"cost"`
	RawJSON []byte `json:"-" gorm:"column:raw_json;type:jsonb"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name, mirroring ProblemRecord.
func (SolutionRecord) TableName() string { return "solutions" }

// ProblemRepository persists submitted problem graphs.
type ProblemRepository interface {
	Repository[ProblemRecord]
	GetByName(ctx context.Context, name string) (*ProblemRecord, error)
	GetRecent(ctx context.Context, limit int) ([]*ProblemRecord, error)
	GetRecentPage(ctx context.Context, limit, offset int) ([]*ProblemRecord, error)
}

// SolutionRepository persists solve-run results, keyed by run id.
type SolutionRepository interface {
	Repository[SolutionRecord]
	GetByProblem(ctx context.Context, problemID string, pagination Pagination) ([]*SolutionRecord, error)
	GetByStatus(ctx context.Context, status string, pagination Pagination) ([]*SolutionRecord, error)
	UpdateStatus(ctx context.Context, solutionID string, status string) error
	UpdateProgress(ctx context.Context, solutionID string, iterations int64, unassignedCount int, cost float64) error
	SaveResult(ctx context.Context, solutionID string, rawJSON []byte) error
}
