package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/hetulpatel/surveillance/internal/proposition"
	"github.com/hetulpatel/surveillance/internal/triage"
)

// Re-triaging the same proposition refreshes its details but never resets a
// reviewer's status.
const reviewUpsertSQL = `
INSERT INTO review_queue (
	id, market_id, venue, title, proposition_kind, confidence, confidence_level,
	reason, status, created_at, updated_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	title=excluded.title,
	confidence=excluded.confidence,
	confidence_level=excluded.confidence_level,
	reason=excluded.reason,
	updated_at=excluded.updated_at;
`

// AppendReview stores review items.
func (s *Store) AppendReview(ctx context.Context, items []triage.ReviewItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, reviewUpsertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for _, it := range items {
		status := it.Status
		if status == "" {
			status = triage.StatusPending
		}
		_, err := stmt.ExecContext(ctx,
			it.ID, it.MarketID, it.Venue, it.Title, string(it.Kind), it.Confidence,
			string(it.Level), it.Reason, string(status), formatTime(it.CreatedAt), now,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert review item %s: %w", it.MarketID, err)
		}
	}
	return tx.Commit()
}

// SetStatus moves every review row for marketID to status.
func (s *Store) SetStatus(ctx context.Context, marketID string, status triage.Status) error {
	if _, err := triage.ParseStatus(string(status)); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue SET status = ?, updated_at = ? WHERE market_id = ?`,
		string(status), formatTime(time.Now()), marketID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("review item %s: %w", marketID, proposition.ErrNotFound)
	}
	return nil
}

// ListReview returns review items, oldest first. An empty status lists all.
func (s *Store) ListReview(ctx context.Context, status triage.Status) ([]triage.ReviewItem, error) {
	query := `SELECT id, market_id, venue, title, proposition_kind, confidence, confidence_level,
	reason, status, created_at FROM review_queue`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, market_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []triage.ReviewItem
	for rows.Next() {
		var (
			it                  triage.ReviewItem
			kind, level, st, ts string
		)
		if err := rows.Scan(&it.ID, &it.MarketID, &it.Venue, &it.Title, &kind, &it.Confidence,
			&level, &it.Reason, &st, &ts); err != nil {
			return nil, err
		}
		it.Kind = proposition.Kind(kind)
		it.Level = proposition.Level(level)
		it.Status = triage.Status(st)
		it.CreatedAt = parseTime(ts)
		items = append(items, it)
	}
	return items, rows.Err()
}
