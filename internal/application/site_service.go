package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/grid"
	"github.com/example/site-roster/internal/recurrence"
)

const ledgerListLimit = 1000

// SiteCatalog captures the site ledger storage.
type SiteCatalog interface {
	FindSite(ctx context.Context, id string) (Site, error)
	// FindSiteByName returns the oldest site whose trimmed name equals name.
	FindSiteByName(ctx context.Context, name string) (Site, error)
	CreateSite(ctx context.Context, site Site) error
	UpdateSite(ctx context.Context, site Site) error
	ListSites(ctx context.Context, limit int) ([]Site, error)
}

// SiteService manages the site ledger and its read-only projections.
type SiteService struct {
	sites    SiteCatalog
	slots    SlotStore
	engine   *recurrence.Engine
	settings Settings
}

// NewSiteService wires the ledger service.
func NewSiteService(sites SiteCatalog, slots SlotStore, settings Settings) *SiteService {
	settings = settings.withDefaults()
	return &SiteService{
		sites:    sites,
		slots:    slots,
		engine:   recurrence.NewEngine(settings.Location),
		settings: settings,
	}
}

func (s *SiteService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.settings.Logger, "SiteService", operation, attrs...)
}

// ListSites returns the ledger ordered by company, then name, in Japanese
// collation order. Sites without a company sort first.
func (s *SiteService) ListSites(ctx context.Context) (sites []Site, err error) {
	if s == nil {
		return nil, fmt.Errorf("SiteService is nil")
	}
	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	sites, err = s.sites.ListSites(ctx, ledgerListLimit)
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "ListSites").ErrorContext(ctx, "failed to list sites", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	sortSites(sites)
	return sites, nil
}

// GetSite returns one site.
func (s *SiteService) GetSite(ctx context.Context, id string) (Site, error) {
	if s == nil {
		return Site{}, fmt.Errorf("SiteService is nil")
	}
	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	site, err := s.sites.FindSite(ctx, id)
	if err != nil {
		return Site{}, mapStoreError(err)
	}
	return site, nil
}

// CreateSite validates input and adds a site to the ledger.
func (s *SiteService) CreateSite(ctx context.Context, input SiteInput) (site Site, err error) {
	if s == nil {
		err = fmt.Errorf("SiteService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateSite")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create site", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("site_id", site.ID).InfoContext(ctx, "site created")
	}()

	if vErr := validateSiteInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.settings.Now()
	site = Site{
		ID:             s.settings.IDGenerator(),
		Name:           strings.TrimSpace(input.Name),
		CompanyName:    normalizeOptionalString(input.CompanyName),
		UsageThreshold: defaultUsageThreshold,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if input.UsageThreshold != nil {
		site.UsageThreshold = *input.UsageThreshold
	}

	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	if err = s.sites.CreateSite(ctx, site); err != nil {
		err = mapStoreError(err)
		return
	}
	return
}

// UpdateSite replaces a site's name, company and threshold. The repeat rule
// and creation month are kept.
func (s *SiteService) UpdateSite(ctx context.Context, id string, input SiteInput) (site Site, err error) {
	if s == nil {
		err = fmt.Errorf("SiteService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateSite", "site_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update site", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "site updated")
	}()

	if vErr := validateSiteInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	site, err = s.sites.FindSite(ctx, id)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	site.Name = strings.TrimSpace(input.Name)
	site.CompanyName = normalizeOptionalString(input.CompanyName)
	if input.UsageThreshold != nil {
		site.UsageThreshold = *input.UsageThreshold
	}
	site.UpdatedAt = s.settings.Now()

	if err = s.sites.UpdateSite(ctx, site); err != nil {
		err = mapStoreError(err)
		return
	}
	return
}

// SetRepeatRule stores a validated, normalized repeat rule. A nil rule clears it.
func (s *SiteService) SetRepeatRule(ctx context.Context, id string, rule *recurrence.Rule) (site Site, err error) {
	if s == nil {
		err = fmt.Errorf("SiteService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SetRepeatRule", "site_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set repeat rule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "repeat rule set", "configured", site.RepeatRule != nil)
	}()

	if rule != nil {
		if vErr := validateRule(*rule); vErr.HasErrors() {
			err = vErr
			return
		}
		normalized := rule.Normalize()
		rule = &normalized
	}

	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	site, err = s.sites.FindSite(ctx, id)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	site.RepeatRule = rule
	site.UpdatedAt = s.settings.Now()
	if err = s.sites.UpdateSite(ctx, site); err != nil {
		err = mapStoreError(err)
		return
	}
	return
}

// Preview projects the site's pace onto month without writing anything.
func (s *SiteService) Preview(ctx context.Context, id string, month calendar.Month) (SitePreview, error) {
	if s == nil {
		return SitePreview{}, fmt.Errorf("SiteService is nil")
	}
	if month.Year == 0 {
		return SitePreview{}, fieldError("month", "month must be YYYY-MM")
	}
	site, err := s.GetSite(ctx, id)
	if err != nil {
		return SitePreview{}, err
	}

	plan, err := s.engine.Project(ruleOf(site), site.CreatedAt, recurrence.Target{Month: &month})
	if err != nil {
		return SitePreview{}, targetError(err)
	}
	return SitePreview{
		SiteID:     site.ID,
		Month:      plan.Month,
		Active:     plan.Active,
		Reason:     plan.Reason,
		Candidates: plan.Candidates,
	}, nil
}

// Usage counts each ledger site's assignments in month. Alert is set once the
// count reaches the site's threshold.
func (s *SiteService) Usage(ctx context.Context, month calendar.Month) (items []SiteUsage, err error) {
	if s == nil {
		return nil, fmt.Errorf("SiteService is nil")
	}
	if month.Year == 0 {
		return nil, fieldError("month", "month must be YYYY-MM")
	}

	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	sites, err := s.sites.ListSites(ctx, ledgerListLimit)
	if err != nil {
		return nil, mapStoreError(err)
	}
	counts, err := s.slots.CountBySite(ctx, month.FirstDay(), month.LastDay())
	if err != nil {
		return nil, mapStoreError(err)
	}

	sortSites(sites)
	items = make([]SiteUsage, 0, len(sites))
	for _, site := range sites {
		threshold := site.UsageThreshold
		if threshold <= 0 {
			threshold = defaultUsageThreshold
		}
		count := counts[site.ID]
		items = append(items, SiteUsage{
			SiteID:    site.ID,
			Month:     month,
			Count:     count,
			Threshold: threshold,
			Alert:     count >= threshold,
		})
	}
	return items, nil
}

// Suggestions lists ledger sites for quick input. While the ledger is empty it
// falls back to names used by the most recent assignments.
func (s *SiteService) Suggestions(ctx context.Context, limit int) (SiteSuggestions, error) {
	if s == nil {
		return SiteSuggestions{}, fmt.Errorf("SiteService is nil")
	}
	if limit <= 0 {
		limit = suggestionLimit
	}
	limit = min(limit, ledgerListLimit)

	sites, err := s.ListSites(ctx)
	if err != nil {
		return SiteSuggestions{}, err
	}

	var out SiteSuggestions
	for _, site := range sites {
		if len(out.Sites) == limit {
			break
		}
		label := site.DisplayLabel()
		out.Sites = append(out.Sites, SiteSuggestion{ID: site.ID, Name: site.Name, CompanyName: site.CompanyName, Label: label})
		out.Names = append(out.Names, label)
	}
	if len(out.Sites) > 0 {
		return out, nil
	}

	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	recent, err := s.slots.RecentAssignments(ctx, limit)
	if err != nil {
		return SiteSuggestions{}, mapStoreError(err)
	}
	seen := make(map[string]struct{})
	for _, a := range recent {
		names := grid.MetaSiteNames(a.Meta)
		if len(names) == 0 {
			fallback := strings.TrimSpace(a.Label)
			if fallback == "" && a.Note != nil {
				fallback = strings.TrimSpace(*a.Note)
			}
			if fallback != "" {
				names = []string{fallback}
			}
		}
		for _, name := range names {
			if _, ok := seen[name]; ok || len(out.Names) == limit {
				continue
			}
			seen[name] = struct{}{}
			out.Names = append(out.Names, name)
		}
	}
	return out, nil
}

func sortSites(sites []Site) {
	collator := collate.New(language.Japanese)
	company := func(s Site) string {
		if s.CompanyName == nil {
			return ""
		}
		return *s.CompanyName
	}
	sort.SliceStable(sites, func(i, j int) bool {
		if c := collator.CompareString(company(sites[i]), company(sites[j])); c != 0 {
			return c < 0
		}
		if c := collator.CompareString(sites[i].Name, sites[j].Name); c != 0 {
			return c < 0
		}
		return sites[i].ID < sites[j].ID
	})
}

func validateSiteInput(input SiteInput) *ValidationError {
	vErr := &ValidationError{}

	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		vErr.add("name", "name is required")
	case utf8.RuneCountInString(name) > maxLabelLength:
		vErr.add("name", "name is too long")
	}
	if input.CompanyName != nil && utf8.RuneCountInString(strings.TrimSpace(*input.CompanyName)) > maxLabelLength {
		vErr.add("companyName", "companyName is too long")
	}
	if input.UsageThreshold != nil && *input.UsageThreshold <= 0 {
		vErr.add("usageThreshold", "usageThreshold must be positive")
	}
	return vErr
}

func validateRule(rule recurrence.Rule) *ValidationError {
	vErr := &ValidationError{}
	if err := rule.Validate(); err != nil {
		switch {
		case errors.Is(err, recurrence.ErrInvalidInterval):
			vErr.add("intervalMonths", "intervalMonths must be between 1 and 12")
		case errors.Is(err, recurrence.ErrInvalidWeekday):
			vErr.add("weekdays", "weekdays must be between 1 and 7")
		case errors.Is(err, recurrence.ErrInvalidMonthDay):
			vErr.add("monthDays", "monthDays must be between 1 and 31")
		default:
			vErr.add("repeatRule", err.Error())
		}
	}
	if len(rule.Weekdays) > 7 {
		vErr.add("weekdays", "at most 7 weekdays")
	}
	if len(rule.MonthDays) > 31 {
		vErr.add("monthDays", "at most 31 month days")
	}
	return vErr
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
