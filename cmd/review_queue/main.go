package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hetulpatel/surveillance/internal/config"
	"github.com/hetulpatel/surveillance/internal/logging"
	"github.com/hetulpatel/surveillance/internal/outputs"
	sqlstore "github.com/hetulpatel/surveillance/internal/storage/sqlite"
	"github.com/hetulpatel/surveillance/internal/triage"
)

const usage = `usage: review_queue [-config path] <command> [flags]

commands:
  list   [-status pending|resolved|dismissed] [-json]
  stats  [-status ...] [-top n]
  set    -market ID -status pending|resolved|dismissed
  export -out path [-status ...]
`

func main() {
	configPath := flag.String("config", config.EnvString("SURV_CONFIG", "surveillance.toml"), "path to TOML config")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	logging.InitFromEnv()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[review-queue] load config: %v", err)
	}
	store, err := sqlstore.Open(cfg.SQLite.Path)
	if err != nil {
		logging.Fatalf("[review-queue] open sqlite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateTables(ctx); err != nil {
		logging.Fatalf("[review-queue] create tables: %v", err)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "list":
		err = list(ctx, store, args)
	case "stats":
		err = stats(ctx, store, args)
	case "set":
		err = set(ctx, store, args)
	case "export":
		err = export(ctx, store, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logging.Fatalf("[review-queue] %s: %v", cmd, err)
	}
}

func statusFlag(fs *flag.FlagSet) *string {
	return fs.String("status", "", "filter by status")
}

func parseOptionalStatus(raw string) (triage.Status, error) {
	if raw == "" {
		return "", nil
	}
	return triage.ParseStatus(raw)
}

func list(ctx context.Context, store *sqlstore.Store, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := statusFlag(fs)
	asJSON := fs.Bool("json", false, "print JSON lines")
	fs.Parse(args)

	st, err := parseOptionalStatus(*status)
	if err != nil {
		return err
	}
	items, err := store.ListReview(ctx, st)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, it := range items {
			if err := enc.Encode(it); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MARKET\tSTATUS\tCONF\tLEVEL\tREASON")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", it.MarketID, it.Status, it.Confidence, it.Level, it.Reason)
	}
	return tw.Flush()
}

func stats(ctx context.Context, store *sqlstore.Store, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	status := statusFlag(fs)
	top := fs.Int("top", 10, "number of top reasons to show")
	fs.Parse(args)

	st, err := parseOptionalStatus(*status)
	if err != nil {
		return err
	}
	items, err := store.ListReview(ctx, st)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(triage.Summarize(items, *top))
}

func set(ctx context.Context, store *sqlstore.Store, args []string) error {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	market := fs.String("market", "", "market id")
	status := statusFlag(fs)
	fs.Parse(args)

	if *market == "" {
		return fmt.Errorf("-market is required")
	}
	st, err := triage.ParseStatus(*status)
	if err != nil {
		return err
	}
	if err := store.SetStatus(ctx, *market, st); err != nil {
		return err
	}
	logging.Infof("[review-queue] market=%s status=%s", *market, st)
	return nil
}

func export(ctx context.Context, store *sqlstore.Store, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "output JSONL path")
	status := statusFlag(fs)
	fs.Parse(args)

	if *out == "" {
		return fmt.Errorf("-out is required")
	}
	st, err := parseOptionalStatus(*status)
	if err != nil {
		return err
	}
	items, err := store.ListReview(ctx, st)
	if err != nil {
		return err
	}
	if err := outputs.WriteJSONL(*out, items); err != nil {
		return err
	}
	logging.Infof("[review-queue] exported %d items to %s", len(items), *out)
	return nil
}
