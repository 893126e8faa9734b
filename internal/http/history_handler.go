package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/site-roster/internal/application"
	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/history"
)

// HistoryHandler exposes server-held undo/redo sessions. Each session is bound
// to the view scope it was opened for; changing the scope drops its stacks.
type HistoryHandler struct {
	registry  *history.Registry
	restorer  history.Restorer
	responder responder
	logger    *slog.Logger
}

func NewHistoryHandler(registry *history.Registry, restorer history.Restorer, logger *slog.Logger) *HistoryHandler {
	base := defaultLogger(logger)
	return &HistoryHandler{registry: registry, restorer: restorer, responder: newResponder(base), logger: base}
}

func (h *HistoryHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "HistoryHandler", operation, attrs...)
}

// Open starts a session for the requested scope.
func (h *HistoryHandler) Open(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.registry == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req scopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Open", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode history session request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	scope, vErr := parseScope(req.Scope)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	id, tracker := h.registry.Open(scope)
	h.log(r.Context(), "Open", "session_id", id, "scope", scope).InfoContext(r.Context(), "history session opened")
	w.Header().Set(HistorySessionHeader, id)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toSessionResponse(id, tracker, false))
}

// Get reports the scope and stack depths of a session.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, tracker, ok := h.session(w, r, "Get")
	if !ok {
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionResponse(id, tracker, false))
}

// SetScope rebinds a session to another view. A different scope clears both stacks.
func (h *HistoryHandler) SetScope(w http.ResponseWriter, r *http.Request) {
	id, tracker, ok := h.session(w, r, "SetScope")
	if !ok {
		return
	}

	var req scopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "SetScope", "session_id", id, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode scope request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	scope, vErr := parseScope(req.Scope)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	cleared := tracker.SetScope(scope)
	h.log(r.Context(), "SetScope", "session_id", id, "scope", scope, "cleared", cleared).DebugContext(r.Context(), "history scope set")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionResponse(id, tracker, cleared))
}

// Close discards a session.
func (h *HistoryHandler) Close(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.registry == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	id, _ := HistorySessionIDFromContext(r.Context())
	if !h.registry.Close(id) {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, errUnknownSession)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Undo restores the newest recorded edit's previous cell contents.
func (h *HistoryHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, "Undo", (*history.Tracker).Undo)
}

// Redo re-applies the most recently undone edit.
func (h *HistoryHandler) Redo(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, "Redo", (*history.Tracker).Redo)
}

func (h *HistoryHandler) apply(w http.ResponseWriter, r *http.Request, operation string, step func(*history.Tracker, context.Context, history.Restorer) (history.Entry, error)) {
	id, tracker, ok := h.session(w, r, operation)
	if !ok {
		return
	}
	if h.restorer == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := h.log(r.Context(), operation, "session_id", id)
	entry, err := step(tracker, r.Context(), h.restorer)
	switch {
	case errors.Is(err, history.ErrEmpty):
		resp := toStepResponse(tracker, nil)
		resp.Reason = "empty"
		h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
		return
	case err != nil:
		logger.ErrorContext(r.Context(), "history step failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "history step applied", "worker_id", entry.WorkerID, "day", entry.Day.String())
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toStepResponse(tracker, &entry))
}

func (h *HistoryHandler) session(w http.ResponseWriter, r *http.Request, operation string) (string, *history.Tracker, bool) {
	if h == nil || h.registry == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return "", nil, false
	}
	id, ok := HistorySessionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return "", nil, false
	}
	tracker, ok := h.registry.Get(id)
	if !ok {
		h.log(r.Context(), operation, "session_id", id, "error_kind", "not_found").WarnContext(r.Context(), "unknown history session")
		h.responder.writeError(r.Context(), w, http.StatusNotFound, errUnknownSession)
		return "", nil, false
	}
	return id, tracker, true
}

// parseScope accepts "week:YYYY-MM-DD", "month:YYYY-MM" and "year:YYYY".
// Week scopes are normalized to the Monday of the week.
func parseScope(value string) (history.Scope, *application.ValidationError) {
	invalid := &application.ValidationError{FieldErrors: map[string]string{"scope": "scope must be week:YYYY-MM-DD, month:YYYY-MM or year:YYYY"}}
	kind, key, found := strings.Cut(strings.TrimSpace(value), ":")
	if !found {
		return "", invalid
	}
	switch kind {
	case "week":
		d, err := calendar.ParseDay(key)
		if err != nil {
			return "", invalid
		}
		return history.WeekScope(d.StartOfWeek()), nil
	case "month":
		m, err := calendar.ParseMonth(key)
		if err != nil {
			return "", invalid
		}
		return history.MonthScope(m), nil
	case "year":
		y, err := calendar.ParseYear(key)
		if err != nil {
			return "", invalid
		}
		return history.YearScope(y), nil
	}
	return "", invalid
}

type scopeRequest struct {
	Scope string `json:"scope"`
}

type sessionResponse struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"sessionId"`
	Scope     string `json:"scope"`
	Cleared   bool   `json:"cleared,omitempty"`
	Undo      int    `json:"undo"`
	Redo      int    `json:"redo"`
}

func toSessionResponse(id string, tracker *history.Tracker, cleared bool) sessionResponse {
	undo, redo := tracker.Depth()
	return sessionResponse{OK: true, SessionID: id, Scope: string(tracker.Scope()), Cleared: cleared, Undo: undo, Redo: redo}
}

type historyEntryDTO struct {
	WorkerID string   `json:"workerId"`
	Day      string   `json:"day"`
	Before   slotsDTO `json:"before"`
	After    slotsDTO `json:"after"`
}

type stepResponse struct {
	OK      bool             `json:"ok"`
	Applied bool             `json:"applied"`
	Reason  string           `json:"reason,omitempty"`
	Entry   *historyEntryDTO `json:"entry,omitempty"`
	Undo    int              `json:"undo"`
	Redo    int              `json:"redo"`
}

func toStepResponse(tracker *history.Tracker, entry *history.Entry) stepResponse {
	undo, redo := tracker.Depth()
	resp := stepResponse{OK: true, Applied: entry != nil, Undo: undo, Redo: redo}
	if entry != nil {
		resp.Entry = &historyEntryDTO{
			WorkerID: entry.WorkerID,
			Day:      entry.Day.String(),
			Before:   toSlotsDTO(entry.Before),
			After:    toSlotsDTO(entry.After),
		}
	}
	return resp
}
