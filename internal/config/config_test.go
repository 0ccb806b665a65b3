package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.6, cfg.Triage.Threshold)
	assert.Equal(t, 0.01, cfg.Detect.TimeLadderTolerance)
	assert.Equal(t, 0.05, cfg.Detect.PartitionTolerance)
	assert.Equal(t, 0.02, cfg.Detect.ImpliedThresholdTolerance)
	assert.Equal(t, 0.8, cfg.Detect.MinCoverage)
}

func TestLoadMergesTOMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "surveillance.toml")
	body := `
[detect]
partition_tolerance = 0.03
min_coverage = 0.9

[prices]
source = "sqlite"

[collect]
pages = 3
books = false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("SURV_TRIAGE_THRESHOLD", "0.7")
	t.Setenv("KAFKA_BROKERS", "a:9092, ,b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.03, cfg.Detect.PartitionTolerance)
	assert.Equal(t, 0.9, cfg.Detect.MinCoverage)
	assert.Equal(t, 0.01, cfg.Detect.TimeLadderTolerance, "untouched keys keep defaults")
	assert.Equal(t, "sqlite", cfg.Prices.Source)
	assert.Equal(t, 0.7, cfg.Triage.Threshold)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Collect.Pages)
	assert.False(t, cfg.Collect.Books)
	assert.Equal(t, 50, cfg.Collect.PageSize)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "parquet", cfg.Prices.Source)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Triage.Threshold = 1.5
	cfg.Extraction.CacheBackend = "redis"
	cfg.Prices.Source = "csv"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "triage.threshold")
	assert.Contains(t, err.Error(), "redis.addr")
	assert.Contains(t, err.Error(), "prices.source")
}

func TestValidateRejectsEmptyMediumSeverityBand(t *testing.T) {
	cfg := Defaults()
	assert.Zero(t, cfg.Redis.TTLHours)
	cfg.Detect.SeverityMediumMultiple = 6
	cfg.Detect.SeverityHighMultiple = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "severity multiples")

	cfg.Detect.SeverityHighMultiple = 6
	require.Error(t, cfg.Validate())

	cfg.Detect.SeverityHighMultiple = 15
	require.NoError(t, cfg.Validate())
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_INT", "7")
	t.Setenv("X_BAD", "seven")
	t.Setenv("X_DUR", "90s")
	assert.Equal(t, 7, EnvInt("X_INT", 1))
	assert.Equal(t, 1, EnvInt("X_BAD", 1))
	assert.Equal(t, 90*time.Second, EnvDuration("X_DUR", time.Second))
	assert.Equal(t, "def", EnvString("X_MISSING", "def"))
	assert.True(t, EnvBool("X_MISSING", true))
}
