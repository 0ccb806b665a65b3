package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/hetulpatel/surveillance/internal/logging"
	"github.com/hetulpatel/surveillance/internal/proposition"
)

var _ proposition.Store = (*Store)(nil)

const propositionUpsertSQL = `
INSERT INTO propositions (
	market_id, venue, title, proposition_kind, underlier, strike, comparator,
	window_start, window_end, symbolic_form, confidence, reasoning, rules_hash, updated_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(market_id) DO UPDATE SET
	venue=excluded.venue,
	title=excluded.title,
	proposition_kind=excluded.proposition_kind,
	underlier=excluded.underlier,
	strike=excluded.strike,
	comparator=excluded.comparator,
	window_start=excluded.window_start,
	window_end=excluded.window_end,
	symbolic_form=excluded.symbolic_form,
	confidence=excluded.confidence,
	reasoning=excluded.reasoning,
	rules_hash=excluded.rules_hash,
	updated_at=excluded.updated_at;
`

const propositionColumns = `market_id, venue, title, proposition_kind, underlier, strike, comparator,
	window_start, window_end, symbolic_form, confidence, reasoning, rules_hash`

// Put inserts or overwrites the proposition for p.MarketID.
func (s *Store) Put(ctx context.Context, p proposition.Proposition) error {
	return s.PutAll(ctx, []proposition.Proposition{p})
}

// PutAll upserts props in one transaction.
func (s *Store) PutAll(ctx context.Context, props []proposition.Proposition) error {
	if len(props) == 0 {
		return nil
	}
	for _, p := range props {
		if p.MarketID == "" {
			return proposition.ErrEmptyMarketID
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, propositionUpsertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, p := range props {
		var comp sql.NullString
		if p.Comparator != nil {
			comp = sql.NullString{String: string(*p.Comparator), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			p.MarketID, p.Venue, p.Title, string(p.Kind), p.Underlier,
			nullFloat(p.Strike), comp,
			formatOptTime(p.WindowStart), formatOptTime(p.WindowEnd),
			p.SymbolicForm, p.Confidence, p.Reasoning, p.RulesHash, now,
		)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Get returns proposition.ErrNotFound when marketID is unknown.
func (s *Store) Get(ctx context.Context, marketID string) (proposition.Proposition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+propositionColumns+` FROM propositions WHERE market_id = ?`, marketID)
	p, err := scanProposition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return proposition.Proposition{}, proposition.ErrNotFound
	}
	return p, err
}

// Propositions queries the table afresh on every range, so the sequence
// restarts. A failed query, scan or iteration is yielded as the final error
// and ends the sequence.
func (s *Store) Propositions(ctx context.Context) iter.Seq2[proposition.Proposition, error] {
	return func(yield func(proposition.Proposition, error) bool) {
		rows, err := s.db.QueryContext(ctx, `SELECT `+propositionColumns+` FROM propositions`)
		if err != nil {
			yield(proposition.Proposition{}, fmt.Errorf("list propositions: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanProposition(rows)
			if err != nil {
				yield(proposition.Proposition{}, fmt.Errorf("scan proposition: %w", err))
				return
			}
			if !yield(p, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(proposition.Proposition{}, fmt.Errorf("iterate propositions: %w", err))
		}
	}
}

// All satisfies proposition.Store. Errors end the sequence and are logged;
// callers that must not act on a partial set use Propositions.
func (s *Store) All(ctx context.Context) iter.Seq[proposition.Proposition] {
	return func(yield func(proposition.Proposition) bool) {
		for p, err := range s.Propositions(ctx) {
			if err != nil {
				logging.Errorf("[sqlite] %v", err)
				return
			}
			if !yield(p) {
				return
			}
		}
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProposition(sc scanner) (proposition.Proposition, error) {
	var (
		p                proposition.Proposition
		venue, title     sql.NullString
		kind             string
		underlier, comp  sql.NullString
		strike           sql.NullFloat64
		wStart, wEnd     sql.NullString
		symbolic, reason sql.NullString
		rulesHash        sql.NullString
	)
	if err := sc.Scan(&p.MarketID, &venue, &title, &kind, &underlier, &strike, &comp,
		&wStart, &wEnd, &symbolic, &p.Confidence, &reason, &rulesHash); err != nil {
		return proposition.Proposition{}, err
	}
	p.Venue = venue.String
	p.Title = title.String
	p.Kind = proposition.Kind(kind)
	p.Underlier = underlier.String
	p.Strike = floatPtr(strike)
	if c, ok := proposition.ParseComparator(comp.String); ok {
		p.Comparator = proposition.Comp(c)
	}
	p.WindowStart = parseOptTime(wStart.String)
	p.WindowEnd = parseOptTime(wEnd.String)
	p.SymbolicForm = symbolic.String
	p.Reasoning = reason.String
	p.RulesHash = rulesHash.String
	return p, nil
}

func formatOptTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseOptTime(s string) *time.Time {
	t := parseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}
