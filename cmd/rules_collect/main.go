package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hetulpatel/surveillance/internal/collectors"
	"github.com/hetulpatel/surveillance/internal/config"
	"github.com/hetulpatel/surveillance/internal/extraction"
	"github.com/hetulpatel/surveillance/internal/kafka"
	"github.com/hetulpatel/surveillance/internal/kalshi"
	"github.com/hetulpatel/surveillance/internal/logging"
	"github.com/hetulpatel/surveillance/internal/outputs"
	"github.com/hetulpatel/surveillance/internal/polymarket"
	"github.com/hetulpatel/surveillance/internal/prices"
	"github.com/hetulpatel/surveillance/internal/queue"
	sqlstore "github.com/hetulpatel/surveillance/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", config.EnvString("SURV_CONFIG", "surveillance.toml"), "path to TOML config")
	venue := flag.String("venue", "", "venue to collect (polymarket or kalshi); defaults to [prices] venue")
	loop := flag.Bool("loop", false, "keep polling at [collect] interval_seconds")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logging.InitFromEnv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[rules-collect] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[rules-collect] %v", err)
	}
	if *venue == "" {
		*venue = cfg.Prices.Venue
	}

	collector, err := newCollector(collectors.Venue(*venue))
	if err != nil {
		logging.Fatalf("[rules-collect] %v", err)
	}

	store, err := sqlstore.Open(cfg.SQLite.Path)
	if err != nil {
		logging.Fatalf("[rules-collect] open sqlite: %v", err)
	}
	defer store.Close()
	if err := store.CreateTables(ctx); err != nil {
		logging.Fatalf("[rules-collect] create tables: %v", err)
	}

	var publisher queue.MessageWriter
	if cfg.Collect.Publish {
		w := mustRulesWriter(ctx, cfg)
		defer w.Close()
		publisher = w
	}

	opts := collectors.FetchOptions{PageSize: cfg.Collect.PageSize, Books: cfg.Collect.Books}
	handle := func(ctx context.Context, markets []collectors.Market) error {
		return persist(ctx, cfg, *venue, store, publisher, markets)
	}

	if *loop {
		logging.Infof("[rules-collect] polling %s every %s", *venue, cfg.Collect.Interval())
		collectors.RunLoop(ctx, collector, opts, cfg.Collect.Interval(), handle)
		return
	}

	markets := collectors.FetchPages(ctx, collector, opts, cfg.Collect.Pages)
	if err := handle(ctx, markets); err != nil {
		logging.Fatalf("[rules-collect] %v", err)
	}
}

func newCollector(venue collectors.Venue) (collectors.Collector, error) {
	switch venue {
	case collectors.VenuePolymarket:
		return polymarket.NewClient(polymarket.Config{}), nil
	case collectors.VenueKalshi:
		return kalshi.NewClient(kalshi.Config{}), nil
	default:
		return nil, fmt.Errorf("unknown venue %q", venue)
	}
}

func mustRulesWriter(ctx context.Context, cfg *config.Config) *kafkago.Writer {
	brokers := cfg.Kafka.Brokers
	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("[rules-collect] wait for broker: %v", err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopic(ensureCtx, brokers, cfg.Kafka.RulesTopic); err != nil {
		logging.Errorf("[rules-collect] ensure topic warning: %v", err)
	}
	cancelEnsure()
	return kafka.NewWriter(brokers, cfg.Kafka.RulesTopic)
}

// persist appends new rules records to the day's rules file, stores quotes
// in sqlite and optionally writes a parquet snapshot and publishes the
// records for the extraction workers.
func persist(ctx context.Context, cfg *config.Config, venue string, store *sqlstore.Store, publisher queue.MessageWriter, markets []collectors.Market) error {
	now := time.Now().UTC()
	date := now.Format("2006-01-02")
	records, quotes := collectors.Batch(markets, now)

	path := extraction.RulesPath(cfg.Prices.DataDir, venue, date)
	fresh, err := unseen(cfg.Prices.DataDir, venue, date, records)
	if err != nil {
		return fmt.Errorf("read existing rules: %w", err)
	}
	if err := outputs.AppendJSONL(path, fresh); err != nil {
		return fmt.Errorf("append rules: %w", err)
	}

	if err := store.InsertQuotes(ctx, venue, date, quotes); err != nil {
		return fmt.Errorf("store quotes: %w", err)
	}
	if cfg.Collect.Snapshots && len(quotes) > 0 {
		file := filepath.Join(prices.SnapshotDir(cfg.Prices.DataDir, venue, date), fmt.Sprintf("snap-%d.parquet", now.UnixMilli()))
		if err := prices.WriteSnapshots(file, prices.RowsFromQuotes(venue, quotes)); err != nil {
			logging.Errorf("[rules-collect] parquet snapshot: %v", err)
		}
	}

	if err := queue.PublishRules(ctx, publisher, fresh); err != nil {
		logging.Errorf("[rules-collect] publish rules: %v", err)
	}

	logging.Infof("[rules-collect] %s: %d markets, %d new rules records, %d quotes", venue, len(markets), len(fresh), len(quotes))
	return nil
}

// unseen drops records whose extraction key is already in the day's file,
// so unchanged rules are not re-appended on every poll.
func unseen(dataDir, venue, date string, records []extraction.RulesRecord) ([]extraction.RulesRecord, error) {
	existing, err := extraction.LoadRules(dataDir, venue, date)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec.Key()] = struct{}{}
	}
	out := make([]extraction.RulesRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.Key()]; ok {
			continue
		}
		seen[rec.Key()] = struct{}{}
		out = append(out, rec)
	}
	return out, nil
}
