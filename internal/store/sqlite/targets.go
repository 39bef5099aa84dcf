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

const targetColumns = `id, project_id, owner_id, name, url, last_status, last_scanned, created_at`

func (s *Store) CreateTarget(ctx context.Context, t *model.Target) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (`+targetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.OwnerID, t.Name, t.URL, string(t.LastStatus), nullMS(t.LastScanned), ms(t.CreatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) GetTarget(ctx context.Context, id string) (*model.Target, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = ?`, id)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

func (s *Store) ListTargets(ctx context.Context, ownerID string) ([]*model.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []*model.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTargetScanStatus(ctx context.Context, id string, status model.ScanStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE targets SET last_status = ?, last_scanned = ? WHERE id = ?`, string(status), ms(at), id)
	if err != nil {
		return fmt.Errorf("update target status: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrNotFound
	}
	return nil
}

func scanTarget(r rowScanner) (*model.Target, error) {
	var (
		t           model.Target
		lastStatus  string
		lastScanned sql.NullInt64
		createdAt   int64
	)
	if err := r.Scan(&t.ID, &t.ProjectID, &t.OwnerID, &t.Name, &t.URL, &lastStatus, &lastScanned, &createdAt); err != nil {
		return nil, err
	}
	t.LastStatus = model.ScanStatus(lastStatus)
	t.LastScanned = timePtr(lastScanned)
	t.CreatedAt = fromMS(createdAt)
	return &t, nil
}
