package main

import (
	"context"
	"flag"

	"github.com/hetulpatel/surveillance/internal/config"
	"github.com/hetulpatel/surveillance/internal/logging"
	"github.com/hetulpatel/surveillance/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", config.EnvString("SURV_CONFIG", "surveillance.toml"), "path to TOML config")
	flag.Parse()
	logging.InitFromEnv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[sqlite-create] load config: %v", err)
	}
	store, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		logging.Fatalf("[sqlite-create] open sqlite: %v", err)
	}
	defer store.Close()

	if err := store.CreateTables(context.Background()); err != nil {
		logging.Fatalf("[sqlite-create] create tables: %v", err)
	}
	logging.Infof("[sqlite-create] tables created at %s", store.Path())
}
