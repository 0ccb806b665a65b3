package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/hetulpatel/surveillance/internal/app"
	"github.com/hetulpatel/surveillance/internal/config"
	"github.com/hetulpatel/surveillance/internal/extraction"
	"github.com/hetulpatel/surveillance/internal/kafka"
	"github.com/hetulpatel/surveillance/internal/logging"
	sqlstore "github.com/hetulpatel/surveillance/internal/storage/sqlite"
	"github.com/hetulpatel/surveillance/internal/workers"
)

func main() {
	configPath := flag.String("config", config.EnvString("SURV_CONFIG", "surveillance.toml"), "path to TOML config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logging.InitFromEnv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[rules-worker] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[rules-worker] %v", err)
	}

	brokers := cfg.Kafka.Brokers
	topic := cfg.Kafka.RulesTopic
	group := cfg.Kafka.Group
	workerCount := cfg.Extraction.Workers

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("[rules-worker] wait for broker: %v", err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopic(ensureCtx, brokers, topic); err != nil {
		logging.Errorf("[rules-worker] ensure topic warning: %v", err)
	}
	cancelEnsure()

	// Workers see records from every venue and date, so the cache is not
	// partitioned here.
	svc, cache, err := app.ExtractionService(cfg, "all", "all")
	if err != nil {
		logging.Fatalf("[rules-worker] extraction service: %v", err)
	}
	defer cache.Close()

	store, err := sqlstore.Open(cfg.SQLite.Path)
	if err != nil {
		logging.Fatalf("[rules-worker] open sqlite: %v", err)
	}
	defer store.Close()
	if err := store.CreateTables(ctx); err != nil {
		logging.Fatalf("[rules-worker] create tables: %v", err)
	}

	processor := workers.NewProcessor(svc, store, store, cfg.Triage.Threshold)

	logging.Infof("[rules-worker] consuming %s with group %s (%d workers)", topic, group, workerCount)
	workers.Run(ctx, brokers, topic, group, workerCount, func(ctx context.Context, rec extraction.RulesRecord) error {
		if err := processor.Handle(ctx, rec); err != nil {
			return err
		}
		logging.Debugf("[rules-worker] stored market=%s venue=%s", rec.MarketID, rec.Venue)
		return nil
	})
}
