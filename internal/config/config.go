// Package config holds the engine configuration. Values come from built-in
// defaults, an optional TOML file, a .env file and SURV_* environment variables,
// applied in that order.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	SQLite     SQLiteConfig     `toml:"sqlite"`
	Redis      RedisConfig      `toml:"redis"`
	Kafka      KafkaConfig      `toml:"kafka"`
	LLM        LLMConfig        `toml:"llm"`
	Extraction ExtractionConfig `toml:"extraction"`
	Triage     TriageConfig     `toml:"triage"`
	Detect     DetectConfig     `toml:"detect"`
	Prices     PricesConfig     `toml:"prices"`
	Output     OutputConfig     `toml:"output"`
	Collect    CollectConfig    `toml:"collect"`
	LogLevel   string           `toml:"log_level"`
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

// RedisConfig is only consulted when the extraction cache backend is "redis".
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
	// TTLHours of zero keeps entries until the rules text changes.
	TTLHours int `toml:"ttl_hours"`
}

type KafkaConfig struct {
	Brokers         []string `toml:"brokers"`
	RulesTopic      string   `toml:"rules_topic"`
	ViolationsTopic string   `toml:"violations_topic"`
	ReviewTopic     string   `toml:"review_topic"`
	Group           string   `toml:"group"`
}

type LLMConfig struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float32 `toml:"temperature"`
}

// Timeout returns the per-call LLM timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ExtractionConfig struct {
	Workers      int    `toml:"workers"`
	UseCache     bool   `toml:"use_cache"`
	CacheBackend string `toml:"cache_backend"` // file, redis or memory
	CacheDir     string `toml:"cache_dir"`
	// GroupWithLLM asks the model for complement/implication/exclusion candidates.
	GroupWithLLM bool `toml:"group_with_llm"`
}

type TriageConfig struct {
	Threshold float64 `toml:"threshold"`
}

// DetectConfig carries per-constraint-type tolerances.
type DetectConfig struct {
	TimeLadderTolerance       float64 `toml:"time_ladder_tolerance"`
	MonotonicLadderTolerance  float64 `toml:"monotonic_ladder_tolerance"`
	PartitionTolerance        float64 `toml:"partition_tolerance"`
	ImpliedThresholdTolerance float64 `toml:"implied_threshold_tolerance"`
	ComplementTolerance       float64 `toml:"complement_tolerance"`
	ImplicationTolerance      float64 `toml:"implication_tolerance"`
	ExclusionTolerance        float64 `toml:"mutual_exclusion_tolerance"`
	MinCoverage               float64 `toml:"min_coverage"`
	// Severity bands as multiples of the type's tolerance.
	SeverityMediumMultiple float64 `toml:"severity_medium_multiple"`
	SeverityHighMultiple   float64 `toml:"severity_high_multiple"`
	Workers                int     `toml:"workers"`
}

type PricesConfig struct {
	Source  string `toml:"source"` // parquet or sqlite
	DataDir string `toml:"data_dir"`
	Venue   string `toml:"venue"`
}

type OutputConfig struct {
	JSONLDir string `toml:"jsonl_dir"`
}

// CollectConfig drives the venue rules and quotes collector.
type CollectConfig struct {
	Pages           int  `toml:"pages"`
	PageSize        int  `toml:"page_size"`
	Books           bool `toml:"books"`
	IntervalSeconds int  `toml:"interval_seconds"`
	// Publish sends rules records to the Kafka rules topic as well as the JSONL file.
	Publish bool `toml:"publish"`
	// Snapshots writes quotes to a parquet file in the snapshot partition.
	Snapshots bool `toml:"snapshots"`
}

// Interval returns the pause between collector polls in loop mode.
func (c CollectConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Defaults returns a Config populated with the built-in defaults.
func Defaults() Config {
	return Config{
		SQLite: SQLiteConfig{Path: "data/surveillance.db"},
		Redis: RedisConfig{
			Addr:     "",
			Prefix:   "extract",
			TTLHours: 0,
		},
		Kafka: KafkaConfig{
			Brokers:         []string{"kafka-broker:9092"},
			RulesTopic:      "rules.records",
			ViolationsTopic: "surveillance.violations",
			ReviewTopic:     "surveillance.review",
			Group:           "rules-workers",
		},
		LLM: LLMConfig{
			TimeoutSeconds: 60,
			MaxTokens:      800,
		},
		Extraction: ExtractionConfig{
			Workers:      4,
			UseCache:     true,
			CacheBackend: "file",
			CacheDir:     "data/llm_cache",
		},
		Triage: TriageConfig{Threshold: 0.6},
		Detect: DetectConfig{
			TimeLadderTolerance:       0.01,
			MonotonicLadderTolerance:  0.01,
			PartitionTolerance:        0.05,
			ImpliedThresholdTolerance: 0.02,
			ComplementTolerance:       0.05,
			ImplicationTolerance:      0.01,
			ExclusionTolerance:        0.05,
			MinCoverage:               0.8,
			SeverityMediumMultiple:    2,
			SeverityHighMultiple:      5,
			Workers:                   1,
		},
		Prices: PricesConfig{
			Source:  "parquet",
			DataDir: "data",
			Venue:   "polymarket",
		},
		Output: OutputConfig{JSONLDir: "data"},
		Collect: CollectConfig{
			Pages:           1,
			PageSize:        50,
			Books:           true,
			IntervalSeconds: 300,
			Snapshots:       true,
		},
		LogLevel: "info",
	}
}

// Validate checks value ranges that would otherwise silently break a pass.
func (c *Config) Validate() error {
	var errs []string
	if c.Triage.Threshold < 0 || c.Triage.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("triage.threshold %.2f outside [0,1]", c.Triage.Threshold))
	}
	if c.Detect.MinCoverage <= 0 || c.Detect.MinCoverage > 1 {
		errs = append(errs, fmt.Sprintf("detect.min_coverage %.2f outside (0,1]", c.Detect.MinCoverage))
	}
	tolerances := []struct {
		name string
		v    float64
	}{
		{"time_ladder_tolerance", c.Detect.TimeLadderTolerance},
		{"monotonic_ladder_tolerance", c.Detect.MonotonicLadderTolerance},
		{"partition_tolerance", c.Detect.PartitionTolerance},
		{"implied_threshold_tolerance", c.Detect.ImpliedThresholdTolerance},
		{"complement_tolerance", c.Detect.ComplementTolerance},
		{"implication_tolerance", c.Detect.ImplicationTolerance},
		{"mutual_exclusion_tolerance", c.Detect.ExclusionTolerance},
	}
	for _, tol := range tolerances {
		if tol.v < 0 {
			errs = append(errs, fmt.Sprintf("detect.%s must not be negative", tol.name))
		}
	}
	if c.Detect.SeverityMediumMultiple <= 0 || c.Detect.SeverityHighMultiple <= c.Detect.SeverityMediumMultiple {
		errs = append(errs, "detect severity multiples must satisfy 0 < medium < high")
	}
	switch c.Extraction.CacheBackend {
	case "file", "redis", "memory":
	default:
		errs = append(errs, fmt.Sprintf("extraction.cache_backend %q unknown", c.Extraction.CacheBackend))
	}
	if c.Extraction.CacheBackend == "redis" && strings.TrimSpace(c.Redis.Addr) == "" {
		errs = append(errs, "redis.addr is required for the redis cache backend")
	}
	if c.Collect.PageSize <= 0 {
		errs = append(errs, "collect.page_size must be positive")
	}
	switch c.Prices.Source {
	case "parquet", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("prices.source %q unknown", c.Prices.Source))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
