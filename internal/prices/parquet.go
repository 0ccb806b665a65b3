package prices

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/hetulpatel/surveillance/internal/logging"
)

// SnapshotRow is the subset of the order-book snapshot schema the surface
// needs.
type SnapshotRow struct {
	TsRecv    int64    `parquet:"name=ts_recv, type=INT64"`
	Venue     string   `parquet:"name=venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	MarketID  string   `parquet:"name=market_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	OutcomeID string   `parquet:"name=outcome_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	BestBidPx *float64 `parquet:"name=best_bid_px, type=DOUBLE, repetitiontype=OPTIONAL"`
	BestAskPx *float64 `parquet:"name=best_ask_px, type=DOUBLE, repetitiontype=OPTIONAL"`
	Mid       *float64 `parquet:"name=mid, type=DOUBLE, repetitiontype=OPTIONAL"`
}

func (r SnapshotRow) Quote() Quote {
	return Quote{
		MarketID:  r.MarketID,
		OutcomeID: r.OutcomeID,
		TsRecv:    r.TsRecv,
		Mid:       r.Mid,
		BestBid:   r.BestBidPx,
		BestAsk:   r.BestAskPx,
	}
}

// SnapshotDir is the partition holding a venue's snapshots for one date.
func SnapshotDir(dataDir, venue, date string) string {
	return filepath.Join(dataDir, "orderbook_snapshots", "venue="+venue, "date="+date)
}

// ParquetProvider reads snapshot files under DataDir.
type ParquetProvider struct {
	DataDir string
	// Parallel is the row-group reader parallelism handed to parquet-go.
	Parallel int64
}

// LatestPrices scans every parquet file in the venue/date partition. A
// missing partition yields an empty surface; unreadable files are skipped.
func (p ParquetProvider) LatestPrices(ctx context.Context, venue, date string) (Surface, error) {
	dir := SnapshotDir(p.DataDir, venue, date)
	files, err := parquetFiles(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Warnf("[prices] no snapshots at %s", dir)
		return Surface{}, nil
	}
	if err != nil {
		return Surface{}, err
	}

	var quotes []Quote
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return Surface{}, err
		}
		rows, err := ReadSnapshots(path, p.Parallel)
		if err != nil {
			logging.Warnf("[prices] skip %s: %v", path, err)
			continue
		}
		for _, r := range rows {
			quotes = append(quotes, r.Quote())
		}
	}
	logging.Debugf("[prices] read %d quotes from %d files in %s", len(quotes), len(files), dir)
	return FromQuotes(quotes), nil
}

func parquetFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".parquet") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// ReadSnapshots loads every row of one snapshot file.
func ReadSnapshots(path string, parallel int64) ([]SnapshotRow, error) {
	if parallel <= 0 {
		parallel = 1
	}
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(SnapshotRow), parallel)
	if err != nil {
		return nil, fmt.Errorf("parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]SnapshotRow, int(pr.GetNumRows()))
	if len(rows) == 0 {
		return nil, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}

// WriteSnapshots writes rows to a new snappy-compressed file at path,
// creating parent directories.
func WriteSnapshots(path string, rows []SnapshotRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	pw, err := writer.NewParquetWriter(fw, new(SnapshotRow), 1)
	if err != nil {
		fw.Close()
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for i := range rows {
		if err := pw.Write(&rows[i]); err != nil {
			fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}

// RowsFromQuotes converts quotes into snapshot rows for venue.
func RowsFromQuotes(venue string, quotes []Quote) []SnapshotRow {
	rows := make([]SnapshotRow, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, SnapshotRow{
			TsRecv:    q.TsRecv,
			Venue:     venue,
			MarketID:  q.MarketID,
			OutcomeID: q.OutcomeID,
			BestBidPx: q.BestBid,
			BestAskPx: q.BestAsk,
			Mid:       q.Mid,
		})
	}
	return rows
}
