package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/site-roster/internal/application"
	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/recurrence"
)

type siteService interface {
	ListSites(ctx context.Context) ([]application.Site, error)
	CreateSite(ctx context.Context, input application.SiteInput) (application.Site, error)
	UpdateSite(ctx context.Context, id string, input application.SiteInput) (application.Site, error)
	SetRepeatRule(ctx context.Context, id string, rule *recurrence.Rule) (application.Site, error)
	Preview(ctx context.Context, id string, month calendar.Month) (application.SitePreview, error)
	Usage(ctx context.Context, month calendar.Month) ([]application.SiteUsage, error)
	Suggestions(ctx context.Context, limit int) (application.SiteSuggestions, error)
}

// SiteHandler serves the site ledger.
type SiteHandler struct {
	service   siteService
	location  *time.Location
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

// NewSiteHandler builds the ledger handler. loc and now pick the default month
// of the preview and usage reports.
func NewSiteHandler(service siteService, loc *time.Location, now func() time.Time, logger *slog.Logger) *SiteHandler {
	base := defaultLogger(logger)
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &SiteHandler{service: service, location: loc, now: now, responder: newResponder(base), logger: base}
}

func (h *SiteHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SiteHandler", operation, attrs...)
}

func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sites, err := h.service.ListSites(r.Context())
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list sites", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := siteListResponse{OK: true, Sites: make([]siteDTO, 0, len(sites))}
	for _, site := range sites {
		resp.Sites = append(resp.Sites, toSiteDTO(site))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *SiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req siteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode site request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create")
	site, err := h.service.CreateSite(r.Context(), req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "site creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("site_id", site.ID).InfoContext(r.Context(), "site created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, siteResponse{OK: true, Site: toSiteDTO(site)})
}

func (h *SiteHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	siteID, ok := h.siteID(w, r, "Update")
	if !ok {
		return
	}

	var req siteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "site_id", siteID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode site request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "site_id", siteID)
	site, err := h.service.UpdateSite(r.Context(), siteID, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "site update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "site updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, siteResponse{OK: true, Site: toSiteDTO(site)})
}

// SetRepeatRule stores or clears the site's repeat pace. A null repeatRule clears it.
func (h *SiteHandler) SetRepeatRule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	siteID, ok := h.siteID(w, r, "SetRepeatRule")
	if !ok {
		return
	}

	var req repeatRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "SetRepeatRule", "site_id", siteID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode repeat rule", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "SetRepeatRule", "site_id", siteID, "cleared", req.RepeatRule == nil)
	site, err := h.service.SetRepeatRule(r.Context(), siteID, req.RepeatRule.toRule())
	if err != nil {
		logger.ErrorContext(r.Context(), "repeat rule update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "repeat rule updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, siteResponse{OK: true, Site: toSiteDTO(site)})
}

// Preview lists the days the site's pace would fill in ?month without writing.
func (h *SiteHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	siteID, ok := h.siteID(w, r, "Preview")
	if !ok {
		return
	}

	month := h.month(r)
	preview, err := h.service.Preview(r.Context(), siteID, month)
	if err != nil {
		h.log(r.Context(), "Preview", "site_id", siteID).ErrorContext(r.Context(), "preview failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, previewResponse{
		OK:         true,
		SiteID:     preview.SiteID,
		Month:      preview.Month.String(),
		Active:     preview.Active,
		Reason:     preview.Reason,
		Candidates: dayKeys(preview.Candidates),
	})
}

// Usage counts each site's assignments in ?month against its threshold.
func (h *SiteHandler) Usage(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	month := h.month(r)
	items, err := h.service.Usage(r.Context(), month)
	if err != nil {
		h.log(r.Context(), "Usage").ErrorContext(r.Context(), "usage report failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := usageResponse{OK: true, Month: month.String(), Items: make([]usageDTO, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, usageDTO{SiteID: item.SiteID, Count: item.Count, Threshold: item.Threshold, Alert: item.Alert})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Suggestions feeds the quick-input site picker.
func (h *SiteHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	limit, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMalformedQueryParams)
		return
	}

	suggestions, err := h.service.Suggestions(r.Context(), limit)
	if err != nil {
		h.log(r.Context(), "Suggestions").ErrorContext(r.Context(), "suggestions failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := suggestionsResponse{OK: true, Names: suggestions.Names, Sites: make([]suggestionDTO, 0, len(suggestions.Sites))}
	if resp.Names == nil {
		resp.Names = []string{}
	}
	for _, s := range suggestions.Sites {
		resp.Sites = append(resp.Sites, suggestionDTO{ID: s.ID, Name: s.Name, CompanyName: s.CompanyName, Label: s.Label})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *SiteHandler) siteID(w http.ResponseWriter, r *http.Request, operation string) (string, bool) {
	siteID, ok := SiteIDFromContext(r.Context())
	if !ok || strings.TrimSpace(siteID) == "" {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "missing site id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSiteID)
		return "", false
	}
	return siteID, true
}

// month resolves ?month, defaulting to the current month. A malformed value
// yields the zero Month, which the service reports as a field error.
func (h *SiteHandler) month(r *http.Request) calendar.Month {
	key := strings.TrimSpace(r.URL.Query().Get("month"))
	if key == "" {
		return calendar.MonthIn(h.now(), h.location)
	}
	month, err := calendar.ParseMonth(key)
	if err != nil {
		return calendar.Month{}
	}
	return month
}

type siteRequest struct {
	Name           string  `json:"name"`
	CompanyName    *string `json:"companyName"`
	UsageThreshold *int    `json:"usageThreshold"`
}

func (req siteRequest) toInput() application.SiteInput {
	return application.SiteInput{
		Name:           req.Name,
		CompanyName:    req.CompanyName,
		UsageThreshold: req.UsageThreshold,
	}
}

type repeatRuleRequest struct {
	RepeatRule *repeatRuleDTO `json:"repeatRule"`
}

type repeatRuleDTO struct {
	IntervalMonths int   `json:"intervalMonths"`
	Weekdays       []int `json:"weekdays"`
	MonthDays      []int `json:"monthDays"`
}

func (dto *repeatRuleDTO) toRule() *recurrence.Rule {
	if dto == nil {
		return nil
	}
	return &recurrence.Rule{IntervalMonths: dto.IntervalMonths, Weekdays: dto.Weekdays, MonthDays: dto.MonthDays}
}

type siteDTO struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	CompanyName    *string        `json:"companyName"`
	Label          string         `json:"label"`
	RepeatRule     *repeatRuleDTO `json:"repeatRule"`
	UsageThreshold int            `json:"usageThreshold"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func toSiteDTO(site application.Site) siteDTO {
	dto := siteDTO{
		ID:             site.ID,
		Name:           site.Name,
		CompanyName:    site.CompanyName,
		Label:          site.DisplayLabel(),
		UsageThreshold: site.UsageThreshold,
		CreatedAt:      site.CreatedAt,
		UpdatedAt:      site.UpdatedAt,
	}
	if site.RepeatRule != nil {
		dto.RepeatRule = &repeatRuleDTO{
			IntervalMonths: site.RepeatRule.Interval(),
			Weekdays:       nonNilInts(site.RepeatRule.Weekdays),
			MonthDays:      nonNilInts(site.RepeatRule.MonthDays),
		}
	}
	return dto
}

func nonNilInts(values []int) []int {
	if values == nil {
		return []int{}
	}
	return values
}

type siteResponse struct {
	OK   bool    `json:"ok"`
	Site siteDTO `json:"site"`
}

type siteListResponse struct {
	OK    bool      `json:"ok"`
	Sites []siteDTO `json:"sites"`
}

type previewResponse struct {
	OK         bool     `json:"ok"`
	SiteID     string   `json:"siteId"`
	Month      string   `json:"month"`
	Active     bool     `json:"active"`
	Reason     string   `json:"reason,omitempty"`
	Candidates []string `json:"candidates"`
}

type usageDTO struct {
	SiteID    string `json:"siteId"`
	Count     int    `json:"count"`
	Threshold int    `json:"threshold"`
	Alert     bool   `json:"alert"`
}

type usageResponse struct {
	OK    bool       `json:"ok"`
	Month string     `json:"month"`
	Items []usageDTO `json:"items"`
}

type suggestionDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	CompanyName *string `json:"companyName"`
	Label       string  `json:"label"`
}

type suggestionsResponse struct {
	OK    bool            `json:"ok"`
	Names []string        `json:"names"`
	Sites []suggestionDTO `json:"sites"`
}
