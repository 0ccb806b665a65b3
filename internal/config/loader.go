package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (skipped when path is empty or missing) over
// Defaults and applies SURV_* overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.SQLite.Path, "SQLITE_PATH")

	setStr(&cfg.Redis.Addr, "SURV_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SURV_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SURV_REDIS_DB")
	setStr(&cfg.Redis.Prefix, "SURV_REDIS_PREFIX")
	setInt(&cfg.Redis.TTLHours, "SURV_REDIS_TTL_HOURS")

	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		cfg.Kafka.Brokers = SplitList(raw)
	}
	setStr(&cfg.Kafka.RulesTopic, "SURV_RULES_KAFKA_TOPIC")
	setStr(&cfg.Kafka.ViolationsTopic, "SURV_VIOLATIONS_KAFKA_TOPIC")
	setStr(&cfg.Kafka.ReviewTopic, "SURV_REVIEW_KAFKA_TOPIC")
	setStr(&cfg.Kafka.Group, "SURV_KAFKA_GROUP")

	setStr(&cfg.LLM.APIKey, "NEBIUS_API_KEY")
	setStr(&cfg.LLM.APIKey, "SURV_LLM_API_KEY")
	setStr(&cfg.LLM.BaseURL, "SURV_LLM_BASE_URL")
	setStr(&cfg.LLM.Model, "SURV_LLM_MODEL")
	setInt(&cfg.LLM.TimeoutSeconds, "SURV_LLM_TIMEOUT_SECONDS")
	setInt(&cfg.LLM.MaxTokens, "SURV_LLM_MAX_TOKENS")

	setInt(&cfg.Extraction.Workers, "SURV_EXTRACTION_WORKERS")
	setBool(&cfg.Extraction.UseCache, "SURV_EXTRACTION_USE_CACHE")
	setStr(&cfg.Extraction.CacheBackend, "SURV_EXTRACTION_CACHE_BACKEND")
	setStr(&cfg.Extraction.CacheDir, "SURV_EXTRACTION_CACHE_DIR")
	setBool(&cfg.Extraction.GroupWithLLM, "SURV_EXTRACTION_GROUP_WITH_LLM")

	setFloat64(&cfg.Triage.Threshold, "SURV_TRIAGE_THRESHOLD")

	setFloat64(&cfg.Detect.TimeLadderTolerance, "SURV_DETECT_TIME_LADDER_TOLERANCE")
	setFloat64(&cfg.Detect.MonotonicLadderTolerance, "SURV_DETECT_MONOTONIC_LADDER_TOLERANCE")
	setFloat64(&cfg.Detect.PartitionTolerance, "SURV_DETECT_PARTITION_TOLERANCE")
	setFloat64(&cfg.Detect.ImpliedThresholdTolerance, "SURV_DETECT_IMPLIED_THRESHOLD_TOLERANCE")
	setFloat64(&cfg.Detect.ComplementTolerance, "SURV_DETECT_COMPLEMENT_TOLERANCE")
	setFloat64(&cfg.Detect.ImplicationTolerance, "SURV_DETECT_IMPLICATION_TOLERANCE")
	setFloat64(&cfg.Detect.ExclusionTolerance, "SURV_DETECT_MUTUAL_EXCLUSION_TOLERANCE")
	setFloat64(&cfg.Detect.MinCoverage, "SURV_DETECT_MIN_COVERAGE")
	setInt(&cfg.Detect.Workers, "SURV_DETECT_WORKERS")

	setStr(&cfg.Prices.Source, "SURV_PRICES_SOURCE")
	setStr(&cfg.Prices.DataDir, "SURV_DATA_DIR")
	setStr(&cfg.Prices.Venue, "SURV_VENUE")

	setStr(&cfg.Output.JSONLDir, "SURV_OUTPUT_DIR")

	setInt(&cfg.Collect.Pages, "SURV_COLLECT_PAGES")
	setInt(&cfg.Collect.PageSize, "SURV_COLLECT_PAGE_SIZE")
	setBool(&cfg.Collect.Books, "SURV_COLLECT_BOOKS")
	setInt(&cfg.Collect.IntervalSeconds, "SURV_COLLECT_INTERVAL_SECONDS")
	setBool(&cfg.Collect.Publish, "SURV_COLLECT_PUBLISH")
	setBool(&cfg.Collect.Snapshots, "SURV_COLLECT_SNAPSHOTS")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func EnvString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func EnvInt(key string, def int) int {
	setInt(&def, key)
	return def
}

func EnvFloat(key string, def float64) float64 {
	setFloat64(&def, key)
	return def
}

func EnvBool(key string, def bool) bool {
	setBool(&def, key)
	return def
}

// EnvDuration parses values like "45s" or "2m".
func EnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}
