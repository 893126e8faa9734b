package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/site-roster/internal/persistence"
)

// DefaultUsageThreshold applies to sites stored without an explicit threshold.
const DefaultUsageThreshold = 10

const siteColumns = `id, name, company_name, repeat_interval_months, repeat_weekdays, repeat_month_days, usage_threshold, created_at, updated_at`

// SiteRepository implements persistence.SiteRepository using SQLite
type SiteRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewSiteRepository creates a new SQLite site repository
func NewSiteRepository(pool *ConnectionPool) *SiteRepository {
	return &SiteRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    time.Now,
	}
}

// CreateSite inserts a new site. The name is stored trimmed.
func (r *SiteRepository) CreateSite(ctx context.Context, site persistence.Site) error {
	site.Name = strings.TrimSpace(site.Name)
	if site.ID == "" || site.Name == "" {
		return persistence.ErrConstraintViolation
	}
	if site.UsageThreshold <= 0 {
		site.UsageThreshold = DefaultUsageThreshold
	}
	if site.CreatedAt.IsZero() {
		site.CreatedAt = r.now()
	}
	if site.UpdatedAt.IsZero() {
		site.UpdatedAt = site.CreatedAt
	}

	interval, weekdays, monthDays, err := encodeRepeatRule(site.RepeatRule)
	if err != nil {
		return err
	}

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, `
			INSERT INTO sites (`+siteColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			site.ID,
			site.Name,
			nullableString(site.CompanyName),
			interval,
			weekdays,
			monthDays,
			site.UsageThreshold,
			formatTime(site.CreatedAt),
			formatTime(site.UpdatedAt),
		)
		return err
	})
}

// UpdateSite replaces the mutable fields of a site
func (r *SiteRepository) UpdateSite(ctx context.Context, site persistence.Site) error {
	site.Name = strings.TrimSpace(site.Name)
	if site.ID == "" || site.Name == "" {
		return persistence.ErrConstraintViolation
	}
	if site.UsageThreshold <= 0 {
		site.UsageThreshold = DefaultUsageThreshold
	}
	site.UpdatedAt = r.now()

	interval, weekdays, monthDays, err := encodeRepeatRule(site.RepeatRule)
	if err != nil {
		return err
	}

	return r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, `
			UPDATE sites
			SET name = ?, company_name = ?, repeat_interval_months = ?, repeat_weekdays = ?,
			    repeat_month_days = ?, usage_threshold = ?, updated_at = ?
			WHERE id = ?
		`,
			site.Name,
			nullableString(site.CompanyName),
			interval,
			weekdays,
			monthDays,
			site.UsageThreshold,
			formatTime(site.UpdatedAt),
			site.ID,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// GetSite retrieves a site by ID
func (r *SiteRepository) GetSite(ctx context.Context, id string) (persistence.Site, error) {
	if id == "" {
		return persistence.Site{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = ?`, id)
	site, err := scanSite(row)
	if err != nil {
		return persistence.Site{}, r.mapper.MapError(err)
	}
	return site, nil
}

// FindSiteByName returns the oldest site with the given trimmed name
func (r *SiteRepository) FindSiteByName(ctx context.Context, name string) (persistence.Site, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return persistence.Site{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `
		SELECT `+siteColumns+`
		FROM sites
		WHERE trim(name) = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, name)
	site, err := scanSite(row)
	if err != nil {
		return persistence.Site{}, r.mapper.MapError(err)
	}
	return site, nil
}

// ListSites returns sites ordered by company and name
func (r *SiteRepository) ListSites(ctx context.Context, limit int) ([]persistence.Site, error) {
	query := `
		SELECT ` + siteColumns + `
		FROM sites
		ORDER BY COALESCE(company_name, '') ASC, name ASC, id ASC
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

	var sites []persistence.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return sites, nil
}

func scanSite(row rowScanner) (persistence.Site, error) {
	var (
		site                 persistence.Site
		company              sql.NullString
		interval             sql.NullInt64
		weekdays, monthDays  sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&site.ID,
		&site.Name,
		&company,
		&interval,
		&weekdays,
		&monthDays,
		&site.UsageThreshold,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Site{}, err
	}

	if company.Valid {
		value := company.String
		site.CompanyName = &value
	}
	rule, err := decodeRepeatRule(interval, weekdays, monthDays)
	if err != nil {
		return persistence.Site{}, err
	}
	site.RepeatRule = rule

	if site.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Site{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if site.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Site{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return site, nil
}

func encodeRepeatRule(rule *persistence.RepeatRule) (sql.NullInt64, sql.NullString, sql.NullString, error) {
	if rule == nil {
		return sql.NullInt64{}, sql.NullString{}, sql.NullString{}, nil
	}
	weekdays, err := encodeInts(rule.Weekdays)
	if err != nil {
		return sql.NullInt64{}, sql.NullString{}, sql.NullString{}, err
	}
	monthDays, err := encodeInts(rule.MonthDays)
	if err != nil {
		return sql.NullInt64{}, sql.NullString{}, sql.NullString{}, err
	}
	return sql.NullInt64{Int64: int64(rule.IntervalMonths), Valid: true}, weekdays, monthDays, nil
}

func decodeRepeatRule(interval sql.NullInt64, weekdays, monthDays sql.NullString) (*persistence.RepeatRule, error) {
	if !interval.Valid && !weekdays.Valid && !monthDays.Valid {
		return nil, nil
	}
	rule := &persistence.RepeatRule{IntervalMonths: int(interval.Int64)}
	if weekdays.Valid && weekdays.String != "" {
		if err := json.Unmarshal([]byte(weekdays.String), &rule.Weekdays); err != nil {
			return nil, fmt.Errorf("failed to decode repeat weekdays: %w", err)
		}
	}
	if monthDays.Valid && monthDays.String != "" {
		if err := json.Unmarshal([]byte(monthDays.String), &rule.MonthDays); err != nil {
			return nil, fmt.Errorf("failed to decode repeat month days: %w", err)
		}
	}
	return rule, nil
}

func encodeInts(values []int) (sql.NullString, error) {
	if values == nil {
		values = []int{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode repeat rule: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
