package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hetulpatel/surveillance/internal/app"
	"github.com/hetulpatel/surveillance/internal/config"
	"github.com/hetulpatel/surveillance/internal/constraint"
	"github.com/hetulpatel/surveillance/internal/engine"
	"github.com/hetulpatel/surveillance/internal/kafka"
	"github.com/hetulpatel/surveillance/internal/logging"
	"github.com/hetulpatel/surveillance/internal/outputs"
	"github.com/hetulpatel/surveillance/internal/prices"
	"github.com/hetulpatel/surveillance/internal/proposition"
	"github.com/hetulpatel/surveillance/internal/queue"
	sqlstore "github.com/hetulpatel/surveillance/internal/storage/sqlite"
	"github.com/hetulpatel/surveillance/internal/triage"
)

type options struct {
	venue      string
	date       string
	candidates string
	groupLLM   bool
	publish    bool
	every      time.Duration
}

func main() {
	configPath := flag.String("config", config.EnvString("SURV_CONFIG", "surveillance.toml"), "path to TOML config")
	var opts options
	flag.StringVar(&opts.venue, "venue", "", "venue partition; defaults to [prices] venue")
	flag.StringVar(&opts.date, "date", app.Today(), "date partition (YYYY-MM-DD)")
	flag.StringVar(&opts.candidates, "candidates", "", "JSON or JSONL file of supplied constraint candidates")
	flag.BoolVar(&opts.groupLLM, "group-llm", false, "ask the LLM for complement/implication/exclusion candidates")
	flag.BoolVar(&opts.publish, "publish", false, "publish violations and review items to Kafka")
	flag.DurationVar(&opts.every, "every", 0, "repeat the pass at this interval (0 runs once)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logging.InitFromEnv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[arb-check] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[arb-check] %v", err)
	}
	if opts.venue == "" {
		opts.venue = cfg.Prices.Venue
	}
	opts.groupLLM = opts.groupLLM || cfg.Extraction.GroupWithLLM

	store, err := sqlstore.Open(cfg.SQLite.Path)
	if err != nil {
		logging.Fatalf("[arb-check] open sqlite: %v", err)
	}
	defer store.Close()
	if err := store.CreateTables(ctx); err != nil {
		logging.Fatalf("[arb-check] create tables: %v", err)
	}

	provider, err := app.PriceProvider(cfg, store)
	if err != nil {
		logging.Fatalf("[arb-check] %v", err)
	}

	var grouper constraint.Grouper
	if opts.groupLLM {
		client, err := app.LLMClient(cfg, true)
		if err != nil {
			logging.Fatalf("[arb-check] llm client: %v", err)
		}
		if grouper, err = constraint.NewLLMGrouper(client, constraint.DefaultGroupLimit); err != nil {
			logging.Fatalf("[arb-check] grouper: %v", err)
		}
	}

	sinks := []engine.Sink{outputs.New(cfg.Output.JSONLDir, opts.venue, opts.date), store}
	if opts.publish {
		violations, review := mustWriters(ctx, cfg)
		defer violations.Close()
		defer review.Close()
		sinks = append(sinks, queue.Sink{Violations: violations, Review: review})
	}
	sink := engine.Fanout(sinks...)
	eng := engine.New(app.EngineConfig(cfg, opts.venue, opts.date))

	for {
		if err := runPass(ctx, eng, store, provider, grouper, sink, opts); err != nil {
			logging.Errorf("[arb-check] pass failed: %v", err)
		}
		if opts.every <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(opts.every):
		}
	}
}

func runPass(ctx context.Context, eng *engine.Engine, store *sqlstore.Store, provider prices.Provider, grouper constraint.Grouper, sink engine.Sink, opts options) error {
	all, err := proposition.CollectErr(store.Propositions(ctx))
	if err != nil {
		return fmt.Errorf("load propositions: %w", err)
	}
	props := forVenue(all, opts.venue)
	known := constraint.Index(props)

	var supplied []constraint.Constraint
	if opts.candidates != "" {
		cands, err := constraint.LoadCandidatesFile(opts.candidates)
		if err != nil {
			return err
		}
		supplied = append(supplied, constraint.FromCandidates(cands, known, constraint.SourceSupplied)...)
	}
	if grouper != nil {
		accepted, _ := triage.Split(props, eng.Threshold(), time.Now())
		cands, err := grouper.Group(ctx, accepted)
		if err != nil {
			logging.Warnf("[arb-check] llm grouping failed: %v", err)
		}
		supplied = append(supplied, constraint.FromCandidates(cands, known, constraint.SourceLLM)...)
	}

	surface, err := provider.LatestPrices(ctx, opts.venue, opts.date)
	if err != nil {
		return err
	}

	res := eng.RunPass(props, supplied, surface)
	for _, v := range res.Violations {
		logging.Infof("[arb-check] %s %s severity=%s magnitude=%.4f dir=%s markets=%v",
			v.ConstraintType, v.Group, v.Severity, v.Magnitude, v.ArbitrageDirection, v.MarketIDs)
	}
	return sink.Emit(ctx, res)
}

// forVenue keeps propositions from venue plus those with no venue recorded.
func forVenue(props []proposition.Proposition, venue string) []proposition.Proposition {
	out := props[:0]
	for _, p := range props {
		if p.Venue == "" || p.Venue == venue {
			out = append(out, p)
		}
	}
	return out
}

func mustWriters(ctx context.Context, cfg *config.Config) (*kafkago.Writer, *kafkago.Writer) {
	brokers := cfg.Kafka.Brokers
	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("[arb-check] wait for broker: %v", err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopics(ensureCtx, brokers, cfg.Kafka.ViolationsTopic, cfg.Kafka.ReviewTopic); err != nil {
		logging.Errorf("[arb-check] ensure topics warning: %v", err)
	}
	cancelEnsure()
	return kafka.NewWriter(brokers, cfg.Kafka.ViolationsTopic), kafka.NewWriter(brokers, cfg.Kafka.ReviewTopic)
}
