package sqlite

import (
	"context"
	"database/sql"

	"github.com/hetulpatel/surveillance/internal/prices"
)

var _ prices.Provider = (*Store)(nil)

const quoteUpsertSQL = `
INSERT INTO quotes (venue, quote_date, market_id, outcome_id, ts_recv, mid, best_bid_px, best_ask_px)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(venue, quote_date, market_id, outcome_id, ts_recv) DO UPDATE SET
	mid=excluded.mid,
	best_bid_px=excluded.best_bid_px,
	best_ask_px=excluded.best_ask_px;
`

// InsertQuotes stores top-of-book quotes for a venue and date.
func (s *Store) InsertQuotes(ctx context.Context, venue, date string, quotes []prices.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, quoteUpsertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, q := range quotes {
		if _, err := stmt.ExecContext(ctx, venue, date, q.MarketID, q.OutcomeID, q.TsRecv,
			nullFloat(q.Mid), nullFloat(q.BestBid), nullFloat(q.BestAsk)); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LatestPrices builds a surface from the stored quotes for venue and date.
func (s *Store) LatestPrices(ctx context.Context, venue, date string) (prices.Surface, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT market_id, outcome_id, ts_recv, mid, best_bid_px, best_ask_px
FROM quotes WHERE venue = ? AND quote_date = ?`, venue, date)
	if err != nil {
		return prices.Surface{}, err
	}
	defer rows.Close()

	var quotes []prices.Quote
	for rows.Next() {
		var (
			q             prices.Quote
			mid, bid, ask sql.NullFloat64
		)
		if err := rows.Scan(&q.MarketID, &q.OutcomeID, &q.TsRecv, &mid, &bid, &ask); err != nil {
			return prices.Surface{}, err
		}
		q.Mid, q.BestBid, q.BestAsk = floatPtr(mid), floatPtr(bid), floatPtr(ask)
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return prices.Surface{}, err
	}
	return prices.FromQuotes(quotes), nil
}
