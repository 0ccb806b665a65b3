package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hetulpatel/surveillance/internal/constraint"
	"github.com/hetulpatel/surveillance/internal/detect"
	"github.com/hetulpatel/surveillance/internal/engine"
)

var _ engine.Sink = (*Store)(nil)

const violationInsertSQL = `
INSERT INTO violations (
	venue, pass_date, detected_at, constraint_id, constraint_type, group_key, relation,
	market_ids_json, expected, actual, magnitude, tolerance, severity,
	arbitrage_direction, confidence
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
`

// InsertViolations appends one row per violation. Rows are history: each
// pass adds its own.
func (s *Store) InsertViolations(ctx context.Context, venue, date string, detectedAt time.Time, vs []detect.Violation) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	if len(vs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, violationInsertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	ts := formatTime(detectedAt)
	for _, v := range vs {
		idsJSON, err := json.Marshal(v.MarketIDs)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal market ids: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			venue, date, ts, v.ConstraintID, string(v.ConstraintType), v.Group, v.Relation,
			string(idsJSON), v.Expected, v.Actual, v.Magnitude, v.Tolerance, string(v.Severity),
			string(v.ArbitrageDirection), v.Confidence,
		)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListViolations returns stored violations for a venue and date in
// insertion order.
func (s *Store) ListViolations(ctx context.Context, venue, date string) ([]detect.Violation, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT constraint_id, constraint_type, group_key, relation, market_ids_json, expected, actual,
	magnitude, tolerance, severity, arbitrage_direction, confidence
FROM violations WHERE venue = ? AND pass_date = ? ORDER BY id`, venue, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []detect.Violation
	for rows.Next() {
		var (
			v                    detect.Violation
			ctype, sev, dir, ids string
		)
		if err := rows.Scan(&v.ConstraintID, &ctype, &v.Group, &v.Relation, &ids, &v.Expected, &v.Actual,
			&v.Magnitude, &v.Tolerance, &sev, &dir, &v.Confidence); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &v.MarketIDs); err != nil {
			return nil, fmt.Errorf("decode market ids: %w", err)
		}
		v.ConstraintType = constraint.Type(ctype)
		v.Severity = detect.Severity(sev)
		v.ArbitrageDirection = detect.Direction(dir)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Emit records a pass: review items and violations.
func (s *Store) Emit(ctx context.Context, res engine.PassResult) error {
	if err := s.AppendReview(ctx, res.ReviewDelta); err != nil {
		return fmt.Errorf("sqlite: review: %w", err)
	}
	if err := s.InsertViolations(ctx, res.Summary.Venue, res.Summary.Date, res.Summary.GeneratedAt, res.Violations); err != nil {
		return fmt.Errorf("sqlite: violations: %w", err)
	}
	return nil
}
