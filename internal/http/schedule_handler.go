package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/site-roster/internal/application"
	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/grid"
	"github.com/example/site-roster/internal/history"
)

// HistorySessionHeader names the header carrying a history session id. Cell
// edits sent with it are recorded in that session.
const HistorySessionHeader = "X-History-Session"

type cellService interface {
	Apply(ctx context.Context, req application.CellRequest) (application.CellResult, error)
	Snapshot(ctx context.Context, workerID string, day calendar.Day) (history.Slots, error)
	SetCell(ctx context.Context, req application.SetCellRequest) (application.CellResult, error)
}

type recurrenceService interface {
	Resolve(ctx context.Context, req application.AutoFillRequest) (application.AutoFillResult, error)
}

type gridService interface {
	Week(ctx context.Context, start calendar.Day) (application.DayGridView, error)
	Month(ctx context.Context, month calendar.Month) (application.DayGridView, error)
	Year(ctx context.Context, year int) (application.YearGridView, error)
}

// ScheduleDeps wires the schedule endpoints.
type ScheduleDeps struct {
	Cells      cellService
	Recurrence recurrenceService
	Grid       gridService
	// History hosts the sessions cell edits are recorded in. Nil disables recording.
	History *history.Registry
	// Location and Now resolve the default week, month and year of the views.
	Location *time.Location
	Now      func() time.Time
}

// ScheduleHandler serves the cell engine, auto-fill and the calendar views.
type ScheduleHandler struct {
	deps      ScheduleDeps
	responder responder
	logger    *slog.Logger
}

// NewScheduleHandler builds the schedule handler.
func NewScheduleHandler(deps ScheduleDeps, logger *slog.Logger) *ScheduleHandler {
	base := defaultLogger(logger)
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &ScheduleHandler{deps: deps, responder: newResponder(base), logger: base}
}

func (h *ScheduleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ScheduleHandler", operation, attrs...)
}

// Cell applies one engine action to a cell.
func (h *ScheduleHandler) Cell(w http.ResponseWriter, r *http.Request) {
	h.applyCell(w, r, "Cell", "")
}

// Assign is the legacy alias of a toggle.
func (h *ScheduleHandler) Assign(w http.ResponseWriter, r *http.Request) {
	h.applyCell(w, r, "Assign", application.ActionToggle)
}

func (h *ScheduleHandler) applyCell(w http.ResponseWriter, r *http.Request, operation string, forced application.CellAction) {
	if h == nil || h.deps.Cells == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(ctx, operation, "error_kind", "bad_request").ErrorContext(ctx, "failed to decode cell request", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if forced != "" {
		req.Action = string(forced)
	}

	tracker, ok := h.tracker(w, r)
	if !ok {
		return
	}

	logger := h.log(ctx, operation, "worker_id", req.WorkerID, "day", req.Day, "action", req.Action)
	result, err := h.deps.Cells.Apply(ctx, req.toRequest())
	if err != nil {
		logger.ErrorContext(ctx, "cell action failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.record(tracker, req.WorkerID, req.Day, result)
	logger.DebugContext(ctx, "cell action handled", "changed", result.Changed, "reason", result.Reason)
	h.responder.writeJSON(ctx, w, http.StatusOK, toCellResponse(string(result.Action), result, tracker))
}

// Snapshot returns the two slot labels of a cell.
func (h *ScheduleHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.deps.Cells == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	query := r.URL.Query()
	workerID := strings.TrimSpace(query.Get("workerId"))
	dayKey := strings.TrimSpace(query.Get("day"))

	slots, err := h.deps.Cells.Snapshot(ctx, workerID, parseDay(dayKey))
	if err != nil {
		h.log(ctx, "Snapshot", "worker_id", workerID, "day", dayKey).ErrorContext(ctx, "snapshot failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, snapshotResponse{OK: true, Day: dayKey, Slot0: slots[0], Slot1: slots[1]})
}

// Set fully replaces a cell.
func (h *ScheduleHandler) Set(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.deps.Cells == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	var req setCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(ctx, "Set", "error_kind", "bad_request").ErrorContext(ctx, "failed to decode set request", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	tracker, ok := h.tracker(w, r)
	if !ok {
		return
	}

	logger := h.log(ctx, "Set", "worker_id", req.WorkerID, "day", req.Day)
	result, err := h.deps.Cells.SetCell(ctx, application.SetCellRequest{
		WorkerID: strings.TrimSpace(req.WorkerID),
		Day:      parseDay(req.Day),
		Slots:    history.Slots{nonEmpty(req.Slot0), nonEmpty(req.Slot1)},
	})
	if err != nil {
		logger.ErrorContext(ctx, "cell replace failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.record(tracker, req.WorkerID, req.Day, result)
	h.responder.writeJSON(ctx, w, http.StatusOK, toCellResponse("set", result, tracker))
}

// AutoFill fills a worker's month with a site's repeat pace.
func (h *ScheduleHandler) AutoFill(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.deps.Recurrence == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	var req autoFillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(ctx, "AutoFill", "error_kind", "bad_request").ErrorContext(ctx, "failed to decode auto-fill request", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, vErr := req.toRequest()
	if vErr != nil {
		h.responder.handleServiceError(ctx, w, vErr)
		return
	}

	logger := h.log(ctx, "AutoFill", "worker_id", input.WorkerID, "site_id", input.SiteID)
	result, err := h.deps.Recurrence.Resolve(ctx, input)
	if err != nil {
		logger.ErrorContext(ctx, "auto-fill failed", "error", err, "error_kind", application.ErrorKind(err), "created", result.Created)
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	resp := autoFillResponse{OK: true, Created: result.Created, Skipped: result.Skipped, Reason: result.Reason}
	for _, d := range result.Full {
		resp.Full = append(resp.Full, d.String())
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, resp)
}

// Week renders the week containing ?weekStart, the current week by default.
func (h *ScheduleHandler) Week(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.deps.Grid == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	start := calendar.DayIn(h.deps.Now(), h.deps.Location)
	if key := strings.TrimSpace(r.URL.Query().Get("weekStart")); key != "" {
		start = parseDay(key)
	}

	view, err := h.deps.Grid.Week(ctx, start)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, dayGridResponse{OK: true, WeekStart: view.Days[0].String(), Days: dayKeys(view.Days), Rows: view.Rows})
}

// Month renders every day of ?month, the current month by default.
func (h *ScheduleHandler) Month(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.deps.Grid == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	month := calendar.MonthIn(h.deps.Now(), h.deps.Location)
	if key := strings.TrimSpace(r.URL.Query().Get("month")); key != "" {
		month, _ = calendar.ParseMonth(key)
	}

	view, err := h.deps.Grid.Month(ctx, month)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, dayGridResponse{OK: true, Month: month.String(), Days: dayKeys(view.Days), Rows: view.Rows})
}

// Year renders the per-month summary of ?year, the current year by default.
func (h *ScheduleHandler) Year(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.deps.Grid == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	year := h.deps.Now().In(h.deps.Location).Year()
	if key := strings.TrimSpace(r.URL.Query().Get("year")); key != "" {
		year, _ = calendar.ParseYear(key)
	}

	view, err := h.deps.Grid.Year(ctx, year)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, yearGridResponse{OK: true, Year: view.Year, Months: view.Months, Rows: view.Rows})
}

// tracker resolves the history session named by the request header. It
// writes a 404 and reports false when the session is unknown or expired.
func (h *ScheduleHandler) tracker(w http.ResponseWriter, r *http.Request) (*history.Tracker, bool) {
	id := strings.TrimSpace(r.Header.Get(HistorySessionHeader))
	if id == "" || h.deps.History == nil {
		return nil, true
	}
	tracker, ok := h.deps.History.Get(id)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, errUnknownSession)
		return nil, false
	}
	return tracker, true
}

func (h *ScheduleHandler) record(tracker *history.Tracker, workerID, dayKey string, result application.CellResult) {
	if tracker == nil || !result.Changed {
		return
	}
	tracker.Record(history.Entry{
		WorkerID: strings.TrimSpace(workerID),
		Day:      parseDay(dayKey),
		Before:   result.Before,
		After:    result.After,
		At:       h.deps.Now(),
	})
}

// parseDay returns the zero Day for malformed keys; the services report it
// as a field error.
func parseDay(value string) calendar.Day {
	d, err := calendar.ParseDay(strings.TrimSpace(value))
	if err != nil {
		return calendar.Day{}
	}
	return d
}

func nonEmpty(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	return value
}

func dayKeys(days []calendar.Day) []string {
	keys := make([]string, len(days))
	for i, d := range days {
		keys[i] = d.String()
	}
	return keys
}

type cellRequest struct {
	WorkerID string `json:"workerId"`
	Day      string `json:"day"`
	Action   string `json:"action"`
	SiteID   string `json:"siteId"`
	SiteName string `json:"siteName"`
}

func (req cellRequest) toRequest() application.CellRequest {
	return application.CellRequest{
		WorkerID: strings.TrimSpace(req.WorkerID),
		Day:      parseDay(req.Day),
		Action:   application.CellAction(strings.TrimSpace(req.Action)),
		SiteID:   strings.TrimSpace(req.SiteID),
		SiteName: req.SiteName,
	}
}

type setCellRequest struct {
	WorkerID string  `json:"workerId"`
	Day      string  `json:"day"`
	Slot0    *string `json:"slot0"`
	Slot1    *string `json:"slot1"`
}

type autoFillRequest struct {
	WorkerID string   `json:"workerId"`
	SiteID   string   `json:"siteId"`
	Month    string   `json:"month"`
	Days     []string `json:"days"`
}

func (req autoFillRequest) toRequest() (application.AutoFillRequest, *application.ValidationError) {
	out := application.AutoFillRequest{
		WorkerID: strings.TrimSpace(req.WorkerID),
		SiteID:   strings.TrimSpace(req.SiteID),
	}
	fields := map[string]string{}
	if key := strings.TrimSpace(req.Month); key != "" {
		month, err := calendar.ParseMonth(key)
		if err != nil {
			fields["month"] = "month must be YYYY-MM"
		} else {
			out.Month = &month
		}
	}
	for _, key := range req.Days {
		d, err := calendar.ParseDay(strings.TrimSpace(key))
		if err != nil {
			fields["days"] = "day must be YYYY-MM-DD"
			break
		}
		out.Days = append(out.Days, d)
	}
	if len(fields) > 0 {
		return out, &application.ValidationError{FieldErrors: fields}
	}
	return out, nil
}

type slotsDTO struct {
	Slot0 *string `json:"slot0"`
	Slot1 *string `json:"slot1"`
}

func toSlotsDTO(s history.Slots) slotsDTO {
	return slotsDTO{Slot0: s[0], Slot1: s[1]}
}

type historyDepthDTO struct {
	Undo int `json:"undo"`
	Redo int `json:"redo"`
}

type cellResponse struct {
	OK       bool             `json:"ok"`
	Action   string           `json:"action"`
	Changed  bool             `json:"changed"`
	Reason   string           `json:"reason,omitempty"`
	Toggled  string           `json:"toggled,omitempty"`
	Replaced string           `json:"replaced,omitempty"`
	EntryID  string           `json:"entryId,omitempty"`
	Before   slotsDTO         `json:"before"`
	After    slotsDTO         `json:"after"`
	History  *historyDepthDTO `json:"history,omitempty"`
}

func toCellResponse(action string, result application.CellResult, tracker *history.Tracker) cellResponse {
	resp := cellResponse{
		OK:       true,
		Action:   action,
		Changed:  result.Changed,
		Reason:   result.Reason,
		Toggled:  result.Toggled,
		Replaced: result.Replaced,
		EntryID:  result.EntryID,
		Before:   toSlotsDTO(result.Before),
		After:    toSlotsDTO(result.After),
	}
	if tracker != nil {
		undo, redo := tracker.Depth()
		resp.History = &historyDepthDTO{Undo: undo, Redo: redo}
	}
	return resp
}

type snapshotResponse struct {
	OK    bool    `json:"ok"`
	Day   string  `json:"day"`
	Slot0 *string `json:"slot0"`
	Slot1 *string `json:"slot1"`
}

type autoFillResponse struct {
	OK      bool     `json:"ok"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Full    []string `json:"full,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

type dayGridResponse struct {
	OK        bool       `json:"ok"`
	WeekStart string     `json:"weekStart,omitempty"`
	Month     string     `json:"month,omitempty"`
	Days      []string   `json:"days"`
	Rows      []grid.Row `json:"rows"`
}

type yearGridResponse struct {
	OK     bool           `json:"ok"`
	Year   int            `json:"year"`
	Months []string       `json:"months"`
	Rows   []grid.YearRow `json:"rows"`
}

func parseLimit(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, true
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
