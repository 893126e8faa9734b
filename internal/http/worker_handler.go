package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/site-roster/internal/application"
)

type workerService interface {
	ListWorkers(ctx context.Context) ([]application.Worker, error)
	CreateWorker(ctx context.Context, input application.WorkerInput) (application.Worker, error)
}

// WorkerHandler serves the worker directory.
type WorkerHandler struct {
	service   workerService
	responder responder
	logger    *slog.Logger
}

func NewWorkerHandler(service workerService, logger *slog.Logger) *WorkerHandler {
	base := defaultLogger(logger)
	return &WorkerHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *WorkerHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "WorkerHandler", operation, attrs...)
}

func (h *WorkerHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	workers, err := h.service.ListWorkers(r.Context())
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list workers", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := workerListResponse{OK: true, Workers: make([]workerDTO, 0, len(workers))}
	for _, worker := range workers {
		resp.Workers = append(resp.Workers, toWorkerDTO(worker))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *WorkerHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req workerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode worker request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create")
	worker, err := h.service.CreateWorker(r.Context(), application.WorkerInput{Name: req.Name, Email: req.Email})
	if err != nil {
		logger.ErrorContext(r.Context(), "worker creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("worker_id", worker.ID).InfoContext(r.Context(), "worker created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, workerResponse{OK: true, Worker: toWorkerDTO(worker)})
}

type workerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type workerDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func toWorkerDTO(worker application.Worker) workerDTO {
	return workerDTO{ID: worker.ID, Name: worker.Name, Email: worker.Email, CreatedAt: worker.CreatedAt}
}

type workerResponse struct {
	OK     bool      `json:"ok"`
	Worker workerDTO `json:"worker"`
}

type workerListResponse struct {
	OK      bool        `json:"ok"`
	Workers []workerDTO `json:"workers"`
}
