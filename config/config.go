package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// ErrInvalidConfig marks configuration problems that are fatal at startup.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration.
type Config struct {
	SecureOps SecureOpsConfig `yaml:"secureops"`
}

// SecureOpsConfig is the project configuration.
type SecureOpsConfig struct {
	Input        InputConfig        `yaml:"input"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Idempotency  IdempotencyConfig  `yaml:"idempotency"`
	Enrichment   EnrichmentConfig   `yaml:"enrichment"`
	Rules        RulesConfig        `yaml:"rules"`
	Model        ModelConfig        `yaml:"model"`
	Blend        BlendConfig        `yaml:"blend"`
	Results      ResultsConfig      `yaml:"results"`
	Alerts       AlertsConfig       `yaml:"alerts"`
	ModelMetrics ModelMetricsConfig `yaml:"model_metrics"`
	Gateway      GatewayConfig      `yaml:"gateway"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// InputConfig selects and configures the event transport.
type InputConfig struct {
	Mode  string           `yaml:"mode"` // redis-stream|kafka
	Redis RedisInputConfig `yaml:"redis"`
	Kafka KafkaInputConfig `yaml:"kafka"`
}

// RedisInputConfig controls the Redis Streams consumer group.
type RedisInputConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Stream       string        `yaml:"stream"`
	Group        string        `yaml:"group"`
	Consumer     string        `yaml:"consumer"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
	ClaimMinIdle time.Duration `yaml:"claim_min_idle"`
	DLQStream    string        `yaml:"dlq_stream"`
}

// KafkaInputConfig controls the Kafka consumer group.
type KafkaInputConfig struct {
	Brokers  []string      `yaml:"brokers"`
	Topic    string        `yaml:"topic"`
	Group    string        `yaml:"group"`
	DLQTopic string        `yaml:"dlq_topic"`
	MinBytes int           `yaml:"min_bytes"`
	MaxBytes int           `yaml:"max_bytes"`
	MaxWait  time.Duration `yaml:"max_wait"`
}

// PipelineConfig controls worker pool behavior and per-stage bounds.
type PipelineConfig struct {
	Workers         int           `yaml:"workers"`
	QueueFactor     int           `yaml:"queue_factor"`
	AdmitRetries    int           `yaml:"admit_retries"`
	AdmitBackoff    time.Duration `yaml:"admit_backoff"`
	EnrichTimeout   time.Duration `yaml:"enrich_timeout"`
	ModelTimeout    time.Duration `yaml:"model_timeout"`
	PublishTimeout  time.Duration `yaml:"publish_timeout"`
	PublishAttempts int           `yaml:"publish_attempts"`
	PublishBackoff  time.Duration `yaml:"publish_backoff"`
}

// IdempotencyConfig controls the claim store.
type IdempotencyConfig struct {
	Backend string           `yaml:"backend"` // redis|memory
	Lease   time.Duration    `yaml:"lease"`
	Redis   RedisStoreConfig `yaml:"redis"`
}

// RedisStoreConfig is shared Redis settings for stores and caches.
type RedisStoreConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// EnrichmentConfig controls the indicator cache and asset context store.
type EnrichmentConfig struct {
	Indicator     IndicatorConfig `yaml:"indicator"`
	Asset         AssetConfig     `yaml:"asset"`
	Cache         CacheConfig     `yaml:"cache"`
	LookupTimeout time.Duration   `yaml:"lookup_timeout"`
}

// IndicatorConfig controls indicator TTLs and the intel source.
type IndicatorConfig struct {
	TTL         time.Duration `yaml:"ttl"`
	NegativeTTL time.Duration `yaml:"negative_ttl"`
	StaleFactor int           `yaml:"stale_factor"`
	Source      SourceConfig  `yaml:"source"`
}

// AssetConfig controls the asset registry source.
type AssetConfig struct {
	Source SourceConfig `yaml:"source"`
}

// SourceConfig selects an upstream refresh source.
type SourceConfig struct {
	Mode     string            `yaml:"mode"` // static|http
	URL      string            `yaml:"url"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
	Fixtures string            `yaml:"fixtures"`
}

// CacheConfig selects the enrichment cache backend.
type CacheConfig struct {
	Backend string           `yaml:"backend"` // memory|redis
	Size    int              `yaml:"size"`
	Redis   RedisStoreConfig `yaml:"redis"`
}

// RulesConfig controls rule engine sources.
type RulesConfig struct {
	Path  string      `yaml:"path"`
	Sigma SigmaConfig `yaml:"sigma"`
}

// SigmaConfig controls the optional Sigma rule source.
type SigmaConfig struct {
	Enabled     bool           `yaml:"enabled"`
	Path        string         `yaml:"path"`
	LevelScores map[string]int `yaml:"level_scores"`
}

// ModelConfig controls the model scorer.
type ModelConfig struct {
	Mode      string          `yaml:"mode"` // builtin|http
	HTTP      ModelHTTPConfig `yaml:"http"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ModelHTTPConfig configures the remote scoring endpoint.
type ModelHTTPConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// BreakerConfig configures the model circuit breaker.
type BreakerConfig struct {
	MaxRequests      int           `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

// RateLimitConfig bounds model invocation rate. Zero disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BlendConfig controls score blending and severity thresholds.
type BlendConfig struct {
	RuleWeight  float64          `yaml:"rule_weight"`
	ModelWeight float64          `yaml:"model_weight"`
	MaxScore    float64          `yaml:"max_score"`
	Thresholds  ThresholdsConfig `yaml:"thresholds"`
}

// ThresholdsConfig holds ascending severity tier boundaries.
type ThresholdsConfig struct {
	Medium   float64 `yaml:"medium"`
	High     float64 `yaml:"high"`
	Critical float64 `yaml:"critical"`
}

// ResultsConfig controls RiskScore persistence.
type ResultsConfig struct {
	Backend   string           `yaml:"backend"` // memory|redis|postgres
	Retention time.Duration    `yaml:"retention"`
	Redis     RedisStoreConfig `yaml:"redis"`
	Postgres  PostgresConfig   `yaml:"postgres"`
}

// PostgresConfig configures the Postgres result store.
type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// AlertsConfig controls alert dispatch.
type AlertsConfig struct {
	Enabled        bool              `yaml:"enabled"`
	Cutoff         string            `yaml:"cutoff"`
	Cooldown       time.Duration     `yaml:"cooldown"`
	BatchSize      int               `yaml:"batch_size"`
	FlushInterval  time.Duration     `yaml:"flush_interval"`
	Attempts       int               `yaml:"attempts"`
	Backoff        time.Duration     `yaml:"backoff"`
	DeadLetterFile string            `yaml:"dead_letter_file"`
	Output         AlertOutputConfig `yaml:"output"`
}

// AlertOutputConfig selects the alert sink.
type AlertOutputConfig struct {
	Mode string           `yaml:"mode"` // file|http
	File FileOutputConfig `yaml:"file"`
	HTTP HTTPOutputConfig `yaml:"http"`
}

// ModelMetricsConfig controls ModelMetrics emission.
type ModelMetricsConfig struct {
	Enabled       bool                     `yaml:"enabled"`
	Retention     time.Duration            `yaml:"retention"`
	FlushInterval time.Duration            `yaml:"flush_interval"`
	Output        ModelMetricsOutputConfig `yaml:"output"`
}

// ModelMetricsOutputConfig selects the ModelMetrics sink.
type ModelMetricsOutputConfig struct {
	Mode       string                 `yaml:"mode"` // file|clickhouse
	File       FileOutputConfig       `yaml:"file"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// FileOutputConfig config for local JSONL output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// GatewayConfig controls the HTTP ingest gateway.
type GatewayConfig struct {
	Listen         string        `yaml:"listen"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBatch       int           `yaml:"max_batch"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // json|console
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that must not reach the pipeline.
// Call after defaults are applied.
func (c *SecureOpsConfig) Validate() error {
	switch c.Input.Mode {
	case "redis-stream", "kafka":
	default:
		return fmt.Errorf("%w: unknown input mode %q", ErrInvalidConfig, c.Input.Mode)
	}
	if c.Input.Mode == "kafka" && len(c.Input.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: kafka input requires brokers", ErrInvalidConfig)
	}

	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("%w: pipeline workers must be positive", ErrInvalidConfig)
	}
	if c.Idempotency.Lease <= 0 {
		return fmt.Errorf("%w: idempotency lease must be positive", ErrInvalidConfig)
	}
	switch c.Idempotency.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("%w: unknown idempotency backend %q", ErrInvalidConfig, c.Idempotency.Backend)
	}

	switch c.Enrichment.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: unknown enrichment cache backend %q", ErrInvalidConfig, c.Enrichment.Cache.Backend)
	}
	if c.Enrichment.Indicator.TTL <= 0 {
		return fmt.Errorf("%w: indicator ttl must be positive", ErrInvalidConfig)
	}
	switch c.Enrichment.Indicator.Source.Mode {
	case "static", "http":
	default:
		return fmt.Errorf("%w: unknown indicator source mode %q", ErrInvalidConfig, c.Enrichment.Indicator.Source.Mode)
	}
	if c.Enrichment.Indicator.Source.Mode == "http" && c.Enrichment.Indicator.Source.URL == "" {
		return fmt.Errorf("%w: http indicator source requires a url", ErrInvalidConfig)
	}
	switch c.Enrichment.Asset.Source.Mode {
	case "static", "http":
	default:
		return fmt.Errorf("%w: unknown asset source mode %q", ErrInvalidConfig, c.Enrichment.Asset.Source.Mode)
	}
	if c.Enrichment.Asset.Source.Mode == "http" && c.Enrichment.Asset.Source.URL == "" {
		return fmt.Errorf("%w: http asset source requires a url", ErrInvalidConfig)
	}

	switch c.Model.Mode {
	case "builtin", "http":
	default:
		return fmt.Errorf("%w: unknown model mode %q", ErrInvalidConfig, c.Model.Mode)
	}
	if c.Model.Mode == "http" && c.Model.HTTP.URL == "" {
		return fmt.Errorf("%w: http model requires a url", ErrInvalidConfig)
	}

	if c.Blend.MaxScore <= 0 {
		return fmt.Errorf("%w: blend max_score must be positive", ErrInvalidConfig)
	}
	if c.Blend.RuleWeight < 0 || c.Blend.ModelWeight < 0 {
		return fmt.Errorf("%w: blend weights must not be negative", ErrInvalidConfig)
	}
	t := c.Blend.Thresholds
	if !(t.Medium < t.High && t.High < t.Critical) {
		return fmt.Errorf("%w: severity thresholds must ascend medium < high < critical", ErrInvalidConfig)
	}
	if t.Medium < 0 || t.Critical > c.Blend.MaxScore {
		return fmt.Errorf("%w: severity thresholds must lie within the score range", ErrInvalidConfig)
	}

	switch c.Results.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("%w: unknown results backend %q", ErrInvalidConfig, c.Results.Backend)
	}
	if c.Results.Backend == "postgres" && c.Results.Postgres.DSN == "" {
		return fmt.Errorf("%w: postgres results require a dsn", ErrInvalidConfig)
	}

	if c.Alerts.Enabled {
		if _, ok := models.ParseSeverityTier(c.Alerts.Cutoff); !ok {
			return fmt.Errorf("%w: unknown alert cutoff %q", ErrInvalidConfig, c.Alerts.Cutoff)
		}
		switch c.Alerts.Output.Mode {
		case "file", "http":
		default:
			return fmt.Errorf("%w: unknown alert output mode %q", ErrInvalidConfig, c.Alerts.Output.Mode)
		}
		if c.Alerts.Output.Mode == "http" && c.Alerts.Output.HTTP.URL == "" {
			return fmt.Errorf("%w: http alert output requires a url", ErrInvalidConfig)
		}
	}

	if c.ModelMetrics.Enabled {
		switch c.ModelMetrics.Output.Mode {
		case "file", "clickhouse":
		default:
			return fmt.Errorf("%w: unknown model metrics output mode %q", ErrInvalidConfig, c.ModelMetrics.Output.Mode)
		}
	}

	return nil
}
