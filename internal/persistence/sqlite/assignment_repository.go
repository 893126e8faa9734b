package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/persistence"
)

const assignmentSelect = `
	SELECT a.id, a.worker_id, a.site_id, a.day, a.slot_order, a.label, a.note, a.meta,
	       a.created_at, a.updated_at, COALESCE(s.name, '')
	FROM assignments a
	LEFT JOIN sites s ON s.id = a.site_id
`

// AssignmentRepository implements persistence.AssignmentRepository using SQLite
type AssignmentRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewAssignmentRepository creates a new SQLite assignment repository
func NewAssignmentRepository(pool *ConnectionPool) *AssignmentRepository {
	return &AssignmentRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    time.Now,
	}
}

// ListCell returns a worker's assignments for one day ordered by slot
func (r *AssignmentRepository) ListCell(ctx context.Context, workerID string, day calendar.Day) ([]persistence.Assignment, error) {
	rows, err := r.helper.Query(ctx, assignmentSelect+`
		WHERE a.worker_id = ? AND a.day = ?
		ORDER BY a.slot_order ASC, a.created_at ASC, a.id ASC
	`, workerID, day.String())
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return r.collect(rows)
}

// CreateAssignment inserts an assignment. An occupied slot yields ErrDuplicate.
func (r *AssignmentRepository) CreateAssignment(ctx context.Context, assignment persistence.Assignment) error {
	if err := r.prepare(&assignment); err != nil {
		return err
	}
	return r.retry.WithRetry(ctx, func() error {
		return insertAssignment(ctx, r.pool.db, assignment)
	})
}

// RetargetAssignment points an existing assignment at another site and
// replaces its label and meta
func (r *AssignmentRepository) RetargetAssignment(ctx context.Context, assignment persistence.Assignment) error {
	if assignment.ID == "" {
		return persistence.ErrNotFound
	}
	meta, err := encodeMeta(assignment.Meta)
	if err != nil {
		return err
	}
	updatedAt := r.now()
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, `
			UPDATE assignments
			SET site_id = ?, label = ?, meta = ?, updated_at = ?
			WHERE id = ?
		`, nullableString(assignment.SiteID), assignment.Label, meta, formatTime(updatedAt), assignment.ID)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// DeleteAssignment removes an assignment by ID. Removing slot 0 moves the
// remaining slot 1 entry up in the same transaction, so a cell holding one
// assignment always holds it in slot 0.
func (r *AssignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var (
				workerID, day string
				slot          int
			)
			if err := tx.QueryRowContext(ctx, `
				SELECT worker_id, day, slot_order FROM assignments WHERE id = ?
			`, id).Scan(&workerID, &day, &slot); err != nil {
				return err
			}

			result, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, id)
			if err != nil {
				return err
			}
			if err := requireAffected(result); err != nil {
				return err
			}
			if slot != 0 {
				return nil
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE assignments SET slot_order = 0, updated_at = ?
				WHERE worker_id = ? AND day = ? AND slot_order = 1
			`, formatTime(r.now()), workerID, day)
			return err
		})
	})
}

// SwapCell exchanges the two slots of a full cell. Slot 0 is parked at -1 so
// the unique cell index never sees two rows in one slot.
func (r *AssignmentRepository) SwapCell(ctx context.Context, workerID string, day calendar.Day) ([]persistence.Assignment, error) {
	key := day.String()
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var first, second int
			if err := tx.QueryRowContext(ctx, `
				SELECT
					COALESCE(SUM(CASE WHEN slot_order = 0 THEN 1 ELSE 0 END), 0),
					COALESCE(SUM(CASE WHEN slot_order = 1 THEN 1 ELSE 0 END), 0)
				FROM assignments
				WHERE worker_id = ? AND day = ?
			`, workerID, key).Scan(&first, &second); err != nil {
				return err
			}
			if first != 1 || second != 1 {
				return persistence.ErrCellConflict
			}

			updatedAt := formatTime(r.now())
			steps := [][2]int{{0, -1}, {1, 0}, {-1, 1}}
			for _, step := range steps {
				if _, err := tx.ExecContext(ctx, `
					UPDATE assignments SET slot_order = ?, updated_at = ?
					WHERE worker_id = ? AND day = ? AND slot_order = ?
				`, step[1], updatedAt, workerID, key, step[0]); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return r.ListCell(ctx, workerID, day)
}

// ReplaceCell deletes a cell's assignments and inserts the given ones in one
// transaction. Every assignment must belong to the cell.
func (r *AssignmentRepository) ReplaceCell(ctx context.Context, workerID string, day calendar.Day, assignments []persistence.Assignment) error {
	for i := range assignments {
		if assignments[i].WorkerID != workerID || assignments[i].Day != day {
			return fmt.Errorf("%w: assignment %d does not belong to the cell", persistence.ErrConstraintViolation, i)
		}
		if err := r.prepare(&assignments[i]); err != nil {
			return err
		}
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE worker_id = ? AND day = ?`, workerID, day.String()); err != nil {
				return err
			}
			for _, assignment := range assignments {
				if err := insertAssignment(ctx, tx, assignment); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// ListAssignments returns assignments matching the filter
func (r *AssignmentRepository) ListAssignments(ctx context.Context, filter persistence.AssignmentFilter) ([]persistence.Assignment, error) {
	var (
		conditions []string
		args       []any
	)
	if len(filter.WorkerIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.WorkerIDs)), ",")
		conditions = append(conditions, "a.worker_id IN ("+placeholders+")")
		for _, id := range filter.WorkerIDs {
			args = append(args, id)
		}
	}
	if filter.SiteID != "" {
		conditions = append(conditions, "a.site_id = ?")
		args = append(args, filter.SiteID)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "a.day >= ?")
		args = append(args, filter.From.String())
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "a.day <= ?")
		args = append(args, filter.To.String())
	}

	query := assignmentSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if filter.Newest {
		query += " ORDER BY a.day DESC, a.created_at DESC, a.id DESC"
	} else {
		query += " ORDER BY a.worker_id ASC, a.day ASC, a.slot_order ASC, a.created_at ASC, a.id ASC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return r.collect(rows)
}

// AssignedDays returns the distinct days in [from, to] on which the worker
// holds an assignment for the site
func (r *AssignmentRepository) AssignedDays(ctx context.Context, workerID, siteID string, from, to calendar.Day) ([]calendar.Day, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT DISTINCT day
		FROM assignments
		WHERE worker_id = ? AND site_id = ? AND day >= ? AND day <= ?
		ORDER BY day ASC
	`, workerID, siteID, from.String(), to.String())
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var days []calendar.Day
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, r.mapper.MapError(err)
		}
		day, err := calendar.ParseDay(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse day %q: %w", raw, err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return days, nil
}

// CountBySite counts assignments per site in [from, to]
func (r *AssignmentRepository) CountBySite(ctx context.Context, from, to calendar.Day) (map[string]int, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT site_id, COUNT(*)
		FROM assignments
		WHERE site_id IS NOT NULL AND day >= ? AND day <= ?
		GROUP BY site_id
	`, from.String(), to.String())
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			siteID string
			count  int
		)
		if err := rows.Scan(&siteID, &count); err != nil {
			return nil, r.mapper.MapError(err)
		}
		counts[siteID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return counts, nil
}

func (r *AssignmentRepository) prepare(assignment *persistence.Assignment) error {
	if assignment.ID == "" || assignment.WorkerID == "" || assignment.Day.IsZero() {
		return persistence.ErrConstraintViolation
	}
	if assignment.SlotOrder < 0 || assignment.SlotOrder > 1 {
		return fmt.Errorf("%w: slot order %d", persistence.ErrConstraintViolation, assignment.SlotOrder)
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = r.now()
	}
	if assignment.UpdatedAt.IsZero() {
		assignment.UpdatedAt = assignment.CreatedAt
	}
	return nil
}

func (r *AssignmentRepository) collect(rows *sql.Rows) ([]persistence.Assignment, error) {
	defer rows.Close()

	var assignments []persistence.Assignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return assignments, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAssignment(ctx context.Context, db execer, assignment persistence.Assignment) error {
	meta, err := encodeMeta(assignment.Meta)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO assignments (id, worker_id, site_id, day, slot_order, label, note, meta, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		assignment.ID,
		assignment.WorkerID,
		nullableString(assignment.SiteID),
		assignment.Day.String(),
		assignment.SlotOrder,
		assignment.Label,
		nullableString(assignment.Note),
		meta,
		formatTime(assignment.CreatedAt),
		formatTime(assignment.UpdatedAt),
	)
	return err
}

func scanAssignment(row rowScanner) (persistence.Assignment, error) {
	var (
		assignment           persistence.Assignment
		siteID, note, meta   sql.NullString
		day                  string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&assignment.ID,
		&assignment.WorkerID,
		&siteID,
		&day,
		&assignment.SlotOrder,
		&assignment.Label,
		&note,
		&meta,
		&createdAt,
		&updatedAt,
		&assignment.SiteName,
	); err != nil {
		return persistence.Assignment{}, err
	}

	var err error
	if assignment.Day, err = calendar.ParseDay(day); err != nil {
		return persistence.Assignment{}, fmt.Errorf("failed to parse day: %w", err)
	}
	if siteID.Valid {
		value := siteID.String
		assignment.SiteID = &value
	}
	if note.Valid {
		value := note.String
		assignment.Note = &value
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &assignment.Meta); err != nil {
			return persistence.Assignment{}, fmt.Errorf("failed to decode meta: %w", err)
		}
	}
	if assignment.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Assignment{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if assignment.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Assignment{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return assignment, nil
}

func encodeMeta(meta map[string]any) (sql.NullString, error) {
	if len(meta) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode meta: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
