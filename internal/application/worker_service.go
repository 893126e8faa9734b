package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
)

// WorkerDirectory captures the worker storage.
type WorkerDirectory interface {
	FindWorker(ctx context.Context, id string) (Worker, error)
	ListWorkers(ctx context.Context, limit int) ([]Worker, error)
	CreateWorker(ctx context.Context, worker Worker) error
}

// WorkerService lists and registers workers.
type WorkerService struct {
	workers  WorkerDirectory
	settings Settings
}

// NewWorkerService wires the worker service.
func NewWorkerService(workers WorkerDirectory, settings Settings) *WorkerService {
	return &WorkerService{workers: workers, settings: settings.withDefaults()}
}

func (s *WorkerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.settings.Logger, "WorkerService", operation, attrs...)
}

// ListWorkers returns workers in creation order, capped like the grid rows.
func (s *WorkerService) ListWorkers(ctx context.Context) ([]Worker, error) {
	if s == nil {
		return nil, fmt.Errorf("WorkerService is nil")
	}
	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	workers, err := s.workers.ListWorkers(ctx, s.settings.WorkerListLimit)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return workers, nil
}

// CreateWorker validates input and registers a worker.
func (s *WorkerService) CreateWorker(ctx context.Context, input WorkerInput) (worker Worker, err error) {
	if s == nil {
		err = fmt.Errorf("WorkerService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateWorker")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create worker", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("worker_id", worker.ID).InfoContext(ctx, "worker created")
	}()

	vErr := &ValidationError{}
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" {
		vErr.add("name", "name is required")
	}
	if email != "" {
		if _, parseErr := mail.ParseAddress(email); parseErr != nil {
			vErr.add("email", "email must be a valid address")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	worker = Worker{
		ID:        s.settings.IDGenerator(),
		Name:      name,
		Email:     email,
		CreatedAt: s.settings.Now(),
	}

	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	if err = s.workers.CreateWorker(ctx, worker); err != nil {
		err = mapStoreError(err)
		return
	}
	return
}
