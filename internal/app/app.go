// Package app wires configuration into the long-lived components the
// binaries share.
package app

import (
	"fmt"
	"time"

	"github.com/hetulpatel/surveillance/internal/config"
	"github.com/hetulpatel/surveillance/internal/detect"
	"github.com/hetulpatel/surveillance/internal/engine"
	"github.com/hetulpatel/surveillance/internal/extraction"
	"github.com/hetulpatel/surveillance/internal/llm"
	"github.com/hetulpatel/surveillance/internal/prices"
	sqlstore "github.com/hetulpatel/surveillance/internal/storage/sqlite"
)

// Today is the partition date used when none is given.
func Today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// LLMClient builds the chat client from the [llm] section.
func LLMClient(cfg *config.Config, jsonMode bool) (*llm.Client, error) {
	return llm.New(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.Timeout(),
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		JSONMode:    jsonMode,
	})
}

// ExtractionService pairs an LLM extractor with the configured cache. The
// caller closes the returned cache.
func ExtractionService(cfg *config.Config, venue, date string) (*extraction.Service, extraction.Cache, error) {
	client, err := LLMClient(cfg, true)
	if err != nil {
		return nil, nil, err
	}
	extractor, err := extraction.NewLLMExtractor(client)
	if err != nil {
		return nil, nil, err
	}
	cache, err := extraction.OpenCache(*cfg, venue, date)
	if err != nil {
		return nil, nil, err
	}
	svc, err := extraction.NewService(extractor, cache, cfg.Extraction.UseCache)
	if err != nil {
		cache.Close()
		return nil, nil, err
	}
	return svc, cache, nil
}

// PriceProvider picks the snapshot source named by [prices] source. store
// may be nil unless the source is sqlite.
func PriceProvider(cfg *config.Config, store *sqlstore.Store) (prices.Provider, error) {
	switch cfg.Prices.Source {
	case "parquet", "":
		return prices.ParquetProvider{DataDir: cfg.Prices.DataDir, Parallel: 4}, nil
	case "sqlite":
		if store == nil {
			return nil, fmt.Errorf("app: sqlite price source needs an open store")
		}
		return store, nil
	default:
		return nil, fmt.Errorf("app: unknown price source %q", cfg.Prices.Source)
	}
}

// EngineConfig maps the [triage] and [detect] sections onto a pass config.
func EngineConfig(cfg *config.Config, venue, date string) engine.Config {
	return engine.Config{
		Venue:     venue,
		Date:      date,
		Threshold: cfg.Triage.Threshold,
		Policy:    detect.PolicyFromConfig(cfg.Detect),
		Workers:   cfg.Detect.Workers,
	}
}
