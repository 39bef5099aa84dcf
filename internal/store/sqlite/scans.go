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

const scanColumns = `id, url_id, project_id, requested_by, scheduled_scan_id, status, options, results,
	duration_ms, error_message, created_at, started_at, completed_at`

func (s *Store) CreateScan(ctx context.Context, sc *model.Scan) error {
	opts, err := json.Marshal(sc.Options)
	if err != nil {
		return fmt.Errorf("marshal scan options: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scans (id, url_id, project_id, requested_by, scheduled_scan_id, status, options, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.URLID, sc.ProjectID, sc.RequestedBy, sc.ScheduledScanID, string(model.ScanPending), string(opts), ms(sc.CreatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrActiveScan
	}
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	sc.Status = model.ScanPending
	return nil
}

func (s *Store) GetScan(ctx context.Context, id string) (*model.Scan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	sc, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return sc, nil
}

func (s *Store) ClaimScan(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = 'scanning', started_at = ? WHERE id = ? AND status = 'pending'`, ms(at), id)
	if err != nil {
		return false, fmt.Errorf("claim scan: %w", err)
	}
	return affected(res)
}

func (s *Store) CompleteScan(ctx context.Context, id string, results *model.Results, at time.Time, durationMS int64) (bool, error) {
	body, err := json.Marshal(results)
	if err != nil {
		return false, fmt.Errorf("marshal results: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = 'completed', results = ?, completed_at = ?, duration_ms = ?
		 WHERE id = ? AND status = 'scanning'`,
		string(body), ms(at), durationMS, id)
	if err != nil {
		return false, fmt.Errorf("complete scan: %w", err)
	}
	return affected(res)
}

func (s *Store) FailScan(ctx context.Context, id, message string, at time.Time, durationMS int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = 'failed', results = NULL, error_message = ?, completed_at = ?, duration_ms = ?
		 WHERE id = ? AND status IN ('pending', 'scanning')`,
		message, ms(at), durationMS, id)
	if err != nil {
		return false, fmt.Errorf("fail scan: %w", err)
	}
	return affected(res)
}

func (s *Store) ListScansByURL(ctx context.Context, urlID string, limit int) ([]*model.Scan, error) {
	return s.listScans(ctx,
		`SELECT `+scanColumns+` FROM scans WHERE url_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		urlID, clampLimit(limit, 50))
}

func (s *Store) ListScansByRequester(ctx context.Context, requestedBy string, limit int) ([]*model.Scan, error) {
	return s.listScans(ctx,
		`SELECT `+scanColumns+` FROM scans WHERE requested_by = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		requestedBy, clampLimit(limit, 10))
}

func (s *Store) PreviousCompletedScan(ctx context.Context, urlID string, before time.Time) (*model.Scan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM scans
		 WHERE url_id = ? AND status = 'completed' AND created_at < ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		urlID, ms(before))
	sc, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("previous scan: %w", err)
	}
	return sc, nil
}

func (s *Store) ListStaleScans(ctx context.Context, cutoff time.Time) ([]*model.Scan, error) {
	return s.listScans(ctx,
		`SELECT `+scanColumns+` FROM scans
		 WHERE status IN ('pending', 'scanning') AND COALESCE(started_at, created_at) < ?
		 ORDER BY created_at ASC LIMIT ?`,
		ms(cutoff), 1000)
}

func (s *Store) listScans(ctx context.Context, query string, args ...any) ([]*model.Scan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var out []*model.Scan
	for rows.Next() {
		sc, err := scanScan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func scanScan(r rowScanner) (*model.Scan, error) {
	var (
		sc          model.Scan
		status      string
		options     string
		results     sql.NullString
		createdAt   int64
		startedAt   sql.NullInt64
		completedAt sql.NullInt64
	)
	if err := r.Scan(&sc.ID, &sc.URLID, &sc.ProjectID, &sc.RequestedBy, &sc.ScheduledScanID, &status, &options, &results,
		&sc.DurationMS, &sc.ErrorMessage, &createdAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	sc.Status = model.ScanStatus(status)
	if err := json.Unmarshal([]byte(options), &sc.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	if results.Valid && results.String != "" && sc.Status == model.ScanCompleted {
		var r model.Results
		if err := json.Unmarshal([]byte(results.String), &r); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		sc.Results = &r
	}
	sc.CreatedAt = fromMS(createdAt)
	sc.StartedAt = timePtr(startedAt)
	sc.CompletedAt = timePtr(completedAt)
	return &sc, nil
}
