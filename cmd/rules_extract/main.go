package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/hetulpatel/surveillance/internal/app"
	"github.com/hetulpatel/surveillance/internal/config"
	"github.com/hetulpatel/surveillance/internal/engine"
	"github.com/hetulpatel/surveillance/internal/extraction"
	"github.com/hetulpatel/surveillance/internal/logging"
	"github.com/hetulpatel/surveillance/internal/outputs"
	"github.com/hetulpatel/surveillance/internal/proposition"
	sqlstore "github.com/hetulpatel/surveillance/internal/storage/sqlite"
	"github.com/hetulpatel/surveillance/internal/triage"
)

func main() {
	configPath := flag.String("config", config.EnvString("SURV_CONFIG", "surveillance.toml"), "path to TOML config")
	venue := flag.String("venue", "", "venue partition; defaults to [prices] venue")
	date := flag.String("date", app.Today(), "date partition (YYYY-MM-DD)")
	noCache := flag.Bool("no-cache", false, "skip cache lookups (results are still stored)")
	limit := flag.Int("limit", 0, "extract at most this many records")
	pass := flag.Bool("pass", false, "run a detection pass over the extracted propositions")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logging.InitFromEnv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[rules-extract] load config: %v", err)
	}
	if *noCache {
		cfg.Extraction.UseCache = false
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[rules-extract] %v", err)
	}
	if *venue == "" {
		*venue = cfg.Prices.Venue
	}

	records, err := extraction.LoadRules(cfg.Prices.DataDir, *venue, *date)
	if err != nil {
		logging.Fatalf("[rules-extract] load rules: %v", err)
	}
	if *limit > 0 && len(records) > *limit {
		records = records[:*limit]
	}
	if len(records) == 0 {
		logging.Infof("[rules-extract] no rules records for %s %s", *venue, *date)
		return
	}

	svc, cache, err := app.ExtractionService(cfg, *venue, *date)
	if err != nil {
		logging.Fatalf("[rules-extract] extraction service: %v", err)
	}
	defer cache.Close()

	store, err := sqlstore.Open(cfg.SQLite.Path)
	if err != nil {
		logging.Fatalf("[rules-extract] open sqlite: %v", err)
	}
	defer store.Close()
	if err := store.CreateTables(ctx); err != nil {
		logging.Fatalf("[rules-extract] create tables: %v", err)
	}

	logging.Infof("[rules-extract] extracting %d records for %s %s (%d workers, cache=%t)",
		len(records), *venue, *date, cfg.Extraction.Workers, cfg.Extraction.UseCache)
	outcomes, err := svc.ExtractAll(ctx, records, cfg.Extraction.Workers)
	if err != nil {
		logging.Fatalf("[rules-extract] extract: %v", err)
	}
	stats := extraction.Tally(outcomes)

	props := make([]proposition.Proposition, 0, len(outcomes))
	for _, o := range outcomes {
		props = append(props, o.Proposition())
	}
	if err := store.PutAll(ctx, props); err != nil {
		logging.Fatalf("[rules-extract] store propositions: %v", err)
	}

	w := outputs.New(cfg.Output.JSONLDir, *venue, *date)
	var reviewed int
	if *pass {
		reviewed = runPass(ctx, cfg, store, w, *venue, *date, props, stats)
	} else {
		_, review := triage.Split(props, cfg.Triage.Threshold, time.Now().UTC())
		if err := store.AppendReview(ctx, review); err != nil {
			logging.Errorf("[rules-extract] queue review: %v", err)
		}
		reviewed = len(review)
	}

	if err := w.WritePropositions(props); err != nil {
		logging.Errorf("[rules-extract] write propositions: %v", err)
	}
	if err := outputs.WriteJSON(w.ExtractionStatsPath(), stats); err != nil {
		logging.Errorf("[rules-extract] write stats: %v", err)
	}

	logging.Infof("[rules-extract] done: total=%d cache_hits=%d extracted=%d failed=%d corrupt=%d review=%d",
		stats.Total, stats.CacheHits, stats.Extracted, stats.Failed, stats.CacheCorrupt, reviewed)
}

// runPass checks the fresh propositions against the day's prices and emits
// the result to the JSONL outputs and sqlite. It returns the review count.
func runPass(ctx context.Context, cfg *config.Config, store *sqlstore.Store, w *outputs.Writer, venue, date string, props []proposition.Proposition, stats extraction.Stats) int {
	provider, err := app.PriceProvider(cfg, store)
	if err != nil {
		logging.Errorf("[rules-extract] %v", err)
		return 0
	}
	surface, err := provider.LatestPrices(ctx, venue, date)
	if err != nil {
		logging.Errorf("[rules-extract] load prices: %v", err)
		return 0
	}
	res := engine.New(app.EngineConfig(cfg, venue, date)).RunPass(props, nil, surface)
	res.Summary.Extraction = &stats
	if err := engine.Fanout(w, store).Emit(ctx, res); err != nil {
		logging.Errorf("[rules-extract] emit pass: %v", err)
	}
	return len(res.ReviewDelta)
}
