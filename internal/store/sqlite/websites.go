package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/store"
)

const websiteColumns = `id, owner_id, name, url, check_interval, interval_ms, is_active, status, response_time_ms, uptime,
	last_check, total_checks, successful_checks, failed_checks, last_up_time, last_down_time, last_status_code,
	last_error, created_at, updated_at, claimed_by, claim_expires`

func (s *Store) CreateWebsite(ctx context.Context, w *model.Website) error {
	d, err := w.Interval.Duration()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO websites (`+websiteColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', NULL)`,
		w.ID, w.OwnerID, w.Name, w.URL, string(w.Interval), d.Milliseconds(), boolInt(w.IsActive), string(w.Status),
		w.ResponseTimeMS, w.Uptime, nullMS(w.LastCheck), w.TotalChecks, w.SuccessfulChecks, w.FailedChecks,
		nullMS(w.LastUpTime), nullMS(w.LastDownTime), w.LastStatusCode, w.LastError, ms(w.CreatedAt), ms(w.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert website: %w", err)
	}
	return nil
}

func (s *Store) GetWebsite(ctx context.Context, id string) (*model.Website, error) {
	return getWebsite(ctx, s.db, id)
}

func (s *Store) ListWebsites(ctx context.Context, ownerID string) ([]*model.Website, error) {
	return s.listWebsites(ctx,
		`SELECT `+websiteColumns+` FROM websites WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC`, ownerID)
}

func (s *Store) SetWebsiteActive(ctx context.Context, id string, active bool, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE websites SET is_active = ?, updated_at = ? WHERE id = ?`, boolInt(active), ms(at), id)
	if err != nil {
		return fmt.Errorf("set website active: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteWebsite(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM website_checks WHERE website_id = ?`, id); err != nil {
		return fmt.Errorf("delete checks: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM websites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete website: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) ListDueWebsites(ctx context.Context, now time.Time, limit int) ([]*model.Website, error) {
	n := ms(now)
	return s.listWebsites(ctx,
		`SELECT `+websiteColumns+` FROM websites
		 WHERE is_active = 1 AND (last_check IS NULL OR last_check + interval_ms <= ?)
		   AND (claim_expires IS NULL OR claim_expires <= ?)
		 ORDER BY COALESCE(last_check, 0) ASC LIMIT ?`,
		n, n, clampLimit(limit, 100))
}

func (s *Store) ClaimWebsite(ctx context.Context, id, owner string, now, until time.Time) (bool, error) {
	n := ms(now)
	res, err := s.db.ExecContext(ctx,
		`UPDATE websites SET claimed_by = ?, claim_expires = ?
		 WHERE id = ? AND is_active = 1 AND (last_check IS NULL OR last_check + interval_ms <= ?)
		   AND (claim_expires IS NULL OR claim_expires <= ?)`,
		owner, ms(until), id, n, n)
	if err != nil {
		return false, fmt.Errorf("claim website: %w", err)
	}
	return affected(res)
}

func (s *Store) ReleaseWebsite(ctx context.Context, id, owner string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE websites SET claimed_by = '', claim_expires = NULL WHERE id = ? AND claimed_by = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("release website: %w", err)
	}
	return nil
}

func (s *Store) RecordCheck(ctx context.Context, c *model.WebsiteCheck, window int) (*store.CheckOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	w, err := getWebsite(ctx, tx, c.WebsiteID)
	if err != nil {
		return nil, err
	}
	out := &store.CheckOutcome{PreviousStatus: w.Status, FirstCheck: w.TotalChecks == 0}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO website_checks (id, website_id, checked_at, status, response_time_ms, status_code, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.WebsiteID, ms(c.CheckedAt), string(c.Status), c.ResponseTimeMS, c.StatusCode, c.Error,
	); err != nil {
		return nil, fmt.Errorf("insert check: %w", err)
	}

	store.ApplyCheck(w, c)

	statuses, err := recentStatuses(ctx, tx, w.ID, clampLimit(window, 100))
	if err != nil {
		return nil, err
	}
	w.Uptime = store.Uptime(statuses)

	if _, err := tx.ExecContext(ctx,
		`UPDATE websites SET status = ?, response_time_ms = ?, uptime = ?, last_check = ?, total_checks = ?,
		 successful_checks = ?, failed_checks = ?, last_up_time = ?, last_down_time = ?, last_status_code = ?,
		 last_error = ?, updated_at = ?, claimed_by = '', claim_expires = NULL
		 WHERE id = ?`,
		string(w.Status), w.ResponseTimeMS, w.Uptime, nullMS(w.LastCheck), w.TotalChecks,
		w.SuccessfulChecks, w.FailedChecks, nullMS(w.LastUpTime), nullMS(w.LastDownTime), w.LastStatusCode,
		w.LastError, ms(w.UpdatedAt), w.ID,
	); err != nil {
		return nil, fmt.Errorf("update website: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit check: %w", err)
	}
	out.Website = w
	return out, nil
}

func (s *Store) ListChecks(ctx context.Context, websiteID string, limit int) ([]*model.WebsiteCheck, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, website_id, checked_at, status, response_time_ms, status_code, error
		 FROM website_checks WHERE website_id = ? ORDER BY checked_at DESC, rowid DESC LIMIT ?`,
		websiteID, clampLimit(limit, 100))
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var out []*model.WebsiteCheck
	for rows.Next() {
		var (
			c         model.WebsiteCheck
			checkedAt int64
			status    string
		)
		if err := rows.Scan(&c.ID, &c.WebsiteID, &checkedAt, &status, &c.ResponseTimeMS, &c.StatusCode, &c.Error); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		c.CheckedAt = fromMS(checkedAt)
		c.Status = model.WebsiteStatus(status)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) listWebsites(ctx context.Context, query string, args ...any) ([]*model.Website, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list websites: %w", err)
	}
	defer rows.Close()

	var out []*model.Website
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan website: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getWebsite(ctx context.Context, q querier, id string) (*model.Website, error) {
	row := q.QueryRowContext(ctx, `SELECT `+websiteColumns+` FROM websites WHERE id = ?`, id)
	w, err := scanWebsite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get website: %w", err)
	}
	return w, nil
}

func recentStatuses(ctx context.Context, q querier, websiteID string, window int) ([]model.WebsiteStatus, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT status FROM website_checks WHERE website_id = ? ORDER BY checked_at DESC, rowid DESC LIMIT ?`,
		websiteID, window)
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	defer rows.Close()

	var out []model.WebsiteStatus
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, err
		}
		out = append(out, model.WebsiteStatus(st))
	}
	return out, rows.Err()
}

func scanWebsite(r rowScanner) (*model.Website, error) {
	var (
		w            model.Website
		interval     string
		intervalMS   int64
		isActive     int
		status       string
		lastCheck    sql.NullInt64
		lastUp       sql.NullInt64
		lastDown     sql.NullInt64
		createdAt    int64
		updatedAt    int64
		claimExpires sql.NullInt64
	)
	if err := r.Scan(&w.ID, &w.OwnerID, &w.Name, &w.URL, &interval, &intervalMS, &isActive, &status,
		&w.ResponseTimeMS, &w.Uptime, &lastCheck, &w.TotalChecks, &w.SuccessfulChecks, &w.FailedChecks,
		&lastUp, &lastDown, &w.LastStatusCode, &w.LastError, &createdAt, &updatedAt,
		&w.ClaimedBy, &claimExpires); err != nil {
		return nil, err
	}
	w.Interval = model.Interval(interval)
	w.IsActive = isActive != 0
	w.Status = model.WebsiteStatus(status)
	w.LastCheck = timePtr(lastCheck)
	w.LastUpTime = timePtr(lastUp)
	w.LastDownTime = timePtr(lastDown)
	w.CreatedAt = fromMS(createdAt)
	w.UpdatedAt = fromMS(updatedAt)
	w.ClaimExpires = timePtr(claimExpires)
	return &w, nil
}
