package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/site-roster/internal/persistence"
)

// WorkerRepository implements persistence.WorkerRepository using SQLite
type WorkerRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewWorkerRepository creates a new SQLite worker repository
func NewWorkerRepository(pool *ConnectionPool) *WorkerRepository {
	return &WorkerRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    time.Now,
	}
}

// CreateWorker inserts a new worker. A zero CreatedAt is set to now.
func (r *WorkerRepository) CreateWorker(ctx context.Context, worker persistence.Worker) error {
	if strings.TrimSpace(worker.ID) == "" || strings.TrimSpace(worker.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	if worker.CreatedAt.IsZero() {
		worker.CreatedAt = r.now()
	}
	if worker.UpdatedAt.IsZero() {
		worker.UpdatedAt = worker.CreatedAt
	}

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, `
			INSERT INTO workers (id, name, email, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, worker.ID, worker.Name, worker.Email, formatTime(worker.CreatedAt), formatTime(worker.UpdatedAt))
		return err
	})
}

// GetWorker retrieves a worker by ID
func (r *WorkerRepository) GetWorker(ctx context.Context, id string) (persistence.Worker, error) {
	if id == "" {
		return persistence.Worker{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM workers
		WHERE id = ?
	`, id)
	worker, err := scanWorker(row)
	if err != nil {
		return persistence.Worker{}, r.mapper.MapError(err)
	}
	return worker, nil
}

// ListWorkers returns workers in creation order, at most limit when limit > 0
func (r *WorkerRepository) ListWorkers(ctx context.Context, limit int) ([]persistence.Worker, error) {
	query := `
		SELECT id, name, email, created_at, updated_at
		FROM workers
		ORDER BY created_at ASC, id ASC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var workers []persistence.Worker
	for rows.Next() {
		worker, err := scanWorker(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		workers = append(workers, worker)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return workers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorker(row rowScanner) (persistence.Worker, error) {
	var (
		worker               persistence.Worker
		createdAt, updatedAt string
	)
	if err := row.Scan(&worker.ID, &worker.Name, &worker.Email, &createdAt, &updatedAt); err != nil {
		return persistence.Worker{}, err
	}
	var err error
	if worker.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Worker{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if worker.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Worker{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return worker, nil
}
