package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/store"
)

const scheduleColumns = `id, url_id, project_id, owner_id, frequency, run_time, day_of_week, day_of_month, timezone,
	options, is_active, last_run, next_run, last_scan_id, last_error, created_at, updated_at, claimed_by, claim_expires`

func (s *Store) CreateSchedule(ctx context.Context, sc *model.ScheduledScan) error {
	opts, err := json.Marshal(sc.Options)
	if err != nil {
		return fmt.Errorf("marshal schedule options: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scheduled_scans (`+scheduleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', NULL)`,
		sc.ID, sc.URLID, sc.ProjectID, sc.OwnerID, string(sc.Frequency), sc.Time,
		nullInt(sc.DayOfWeek), nullInt(sc.DayOfMonth), sc.Timezone, string(opts), boolInt(sc.IsActive),
		nullMS(sc.LastRun), nullMS(sc.NextRun), sc.LastScanID, sc.LastError, ms(sc.CreatedAt), ms(sc.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (s *Store) GetSchedule(ctx context.Context, id string) (*model.ScheduledScan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM scheduled_scans WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sc, nil
}

func (s *Store) ListSchedules(ctx context.Context, ownerID string) ([]*model.ScheduledScan, error) {
	return s.listSchedules(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_scans WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC`,
		ownerID)
}

// UpdateSchedule rewrites the user-editable fields and the computed next run.
// Lease columns are left alone.
func (s *Store) UpdateSchedule(ctx context.Context, sc *model.ScheduledScan) error {
	opts, err := json.Marshal(sc.Options)
	if err != nil {
		return fmt.Errorf("marshal schedule options: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_scans SET frequency = ?, run_time = ?, day_of_week = ?, day_of_month = ?, timezone = ?,
		 options = ?, is_active = ?, next_run = ?, updated_at = ?
		 WHERE id = ?`,
		string(sc.Frequency), sc.Time, nullInt(sc.DayOfWeek), nullInt(sc.DayOfMonth), sc.Timezone,
		string(opts), boolInt(sc.IsActive), nullMS(sc.NextRun), ms(sc.UpdatedAt), sc.ID,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListDueSchedules(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledScan, error) {
	n := ms(now)
	return s.listSchedules(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_scans
		 WHERE is_active = 1 AND next_run IS NOT NULL AND next_run <= ?
		   AND (claim_expires IS NULL OR claim_expires <= ?)
		 ORDER BY next_run ASC LIMIT ?`,
		n, n, clampLimit(limit, 100))
}

func (s *Store) ClaimSchedule(ctx context.Context, id, owner string, now, until time.Time) (bool, error) {
	n := ms(now)
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_scans SET claimed_by = ?, claim_expires = ?
		 WHERE id = ? AND is_active = 1 AND next_run IS NOT NULL AND next_run <= ?
		   AND (claim_expires IS NULL OR claim_expires <= ?)`,
		owner, ms(until), id, n, n)
	if err != nil {
		return false, fmt.Errorf("claim schedule: %w", err)
	}
	return affected(res)
}

func (s *Store) AdvanceSchedule(ctx context.Context, id, owner string, adv store.Advance) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_scans SET last_run = ?, next_run = ?, last_scan_id = ?, last_error = ?, updated_at = ?,
		 claimed_by = '', claim_expires = NULL
		 WHERE id = ? AND claimed_by = ?`,
		ms(adv.LastRun), ms(adv.NextRun), adv.LastScanID, adv.LastError, ms(adv.LastRun), id, owner)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrClaimLost
	}
	return nil
}

func (s *Store) ReleaseSchedule(ctx context.Context, id, owner string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_scans SET claimed_by = '', claim_expires = NULL WHERE id = ? AND claimed_by = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("release schedule: %w", err)
	}
	return nil
}

func (s *Store) listSchedules(ctx context.Context, query string, args ...any) ([]*model.ScheduledScan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []*model.ScheduledScan
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func scanSchedule(r rowScanner) (*model.ScheduledScan, error) {
	var (
		sc           model.ScheduledScan
		frequency    string
		dayOfWeek    sql.NullInt64
		dayOfMonth   sql.NullInt64
		options      string
		isActive     int
		lastRun      sql.NullInt64
		nextRun      sql.NullInt64
		createdAt    int64
		updatedAt    int64
		claimExpires sql.NullInt64
	)
	if err := r.Scan(&sc.ID, &sc.URLID, &sc.ProjectID, &sc.OwnerID, &frequency, &sc.Time, &dayOfWeek, &dayOfMonth,
		&sc.Timezone, &options, &isActive, &lastRun, &nextRun, &sc.LastScanID, &sc.LastError,
		&createdAt, &updatedAt, &sc.ClaimedBy, &claimExpires); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(options), &sc.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	sc.Frequency = model.Frequency(frequency)
	sc.DayOfWeek = intPtr(dayOfWeek)
	sc.DayOfMonth = intPtr(dayOfMonth)
	sc.IsActive = isActive != 0
	sc.LastRun = timePtr(lastRun)
	sc.NextRun = timePtr(nextRun)
	sc.CreatedAt = fromMS(createdAt)
	sc.UpdatedAt = fromMS(updatedAt)
	sc.ClaimExpires = timePtr(claimExpires)
	return &sc, nil
}
