package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/surveillance/internal/config"
	"github.com/hetulpatel/surveillance/internal/constraint"
	"github.com/hetulpatel/surveillance/internal/prices"
	sqlstore "github.com/hetulpatel/surveillance/internal/storage/sqlite"
)

func TestPriceProviderSelection(t *testing.T) {
	cfg := config.Defaults()

	p, err := PriceProvider(&cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, prices.ParquetProvider{}, p)

	cfg.Prices.Source = "sqlite"
	_, err = PriceProvider(&cfg, nil)
	require.Error(t, err)

	store, err := sqlstore.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer store.Close()
	p, err = PriceProvider(&cfg, store)
	require.NoError(t, err)
	assert.Same(t, store, p)

	cfg.Prices.Source = "ws"
	_, err = PriceProvider(&cfg, store)
	require.Error(t, err)
}

func TestEngineConfigCarriesPolicy(t *testing.T) {
	cfg := config.Defaults()
	cfg.Detect.PartitionTolerance = 0.07
	cfg.Triage.Threshold = 0.5

	ec := EngineConfig(&cfg, "kalshi", "2025-03-01")
	assert.Equal(t, "kalshi", ec.Venue)
	assert.Equal(t, 0.5, ec.Threshold)
	assert.Equal(t, 0.07, ec.Policy.Tolerance(constraint.ExhaustivePartition))
}

func TestLLMClientNeedsKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLM.APIKey = ""
	_, err := LLMClient(&cfg, true)
	require.Error(t, err)

	cfg.LLM.APIKey = "k"
	client, err := LLMClient(&cfg, true)
	require.NoError(t, err)
	assert.NotEmpty(t, client.Model())
}
