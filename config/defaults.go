package config

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// FindFile resolves the config file path: the explicit argument when it
// exists, then secureops.yml in the working directory, configs/, and
// next to the executable.
func FindFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("secureops.yml"); err == nil {
		return "secureops.yml"
	}
	if _, err := os.Stat("configs/secureops.yaml"); err == nil {
		return "configs/secureops.yaml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "secureops.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "secureops.yml"
}

// ApplyDefaults fills unset fields so a minimal config file still
// passes Validate and runs a single-process deployment.
func ApplyDefaults(cfg *Config) {
	so := &cfg.SecureOps

	if so.Input.Mode == "" {
		so.Input.Mode = "redis-stream"
	}
	if so.Input.Redis.Addr == "" {
		so.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if so.Input.Redis.Stream == "" {
		so.Input.Redis.Stream = "secureops:events"
	}
	if so.Input.Redis.Group == "" {
		so.Input.Redis.Group = "secureops"
	}
	if so.Input.Redis.BlockTimeout <= 0 {
		so.Input.Redis.BlockTimeout = 5 * time.Second
	}
	if so.Input.Redis.ClaimMinIdle <= 0 {
		so.Input.Redis.ClaimMinIdle = time.Minute
	}
	if so.Input.Kafka.Topic == "" {
		so.Input.Kafka.Topic = "secureops.events"
	}
	if so.Input.Kafka.Group == "" {
		so.Input.Kafka.Group = "secureops"
	}

	if so.Pipeline.Workers <= 0 {
		so.Pipeline.Workers = 8
	}
	if so.Pipeline.QueueFactor <= 0 {
		so.Pipeline.QueueFactor = 4
	}
	if so.Pipeline.AdmitRetries <= 0 {
		so.Pipeline.AdmitRetries = 3
	}
	if so.Pipeline.AdmitBackoff <= 0 {
		so.Pipeline.AdmitBackoff = 200 * time.Millisecond
	}
	if so.Pipeline.EnrichTimeout <= 0 {
		so.Pipeline.EnrichTimeout = 3 * time.Second
	}
	if so.Pipeline.ModelTimeout <= 0 {
		so.Pipeline.ModelTimeout = 2 * time.Second
	}
	if so.Pipeline.PublishTimeout <= 0 {
		so.Pipeline.PublishTimeout = 5 * time.Second
	}
	if so.Pipeline.PublishAttempts <= 0 {
		so.Pipeline.PublishAttempts = 3
	}
	if so.Pipeline.PublishBackoff <= 0 {
		so.Pipeline.PublishBackoff = 500 * time.Millisecond
	}

	if so.Idempotency.Backend == "" {
		so.Idempotency.Backend = "memory"
	}
	if so.Idempotency.Lease <= 0 {
		so.Idempotency.Lease = 30 * time.Second
	}
	if so.Idempotency.Redis.KeyPrefix == "" {
		so.Idempotency.Redis.KeyPrefix = "secureops:claims"
	}

	if so.Enrichment.Indicator.TTL <= 0 {
		so.Enrichment.Indicator.TTL = 15 * time.Minute
	}
	if so.Enrichment.Indicator.NegativeTTL <= 0 {
		so.Enrichment.Indicator.NegativeTTL = 5 * time.Minute
	}
	if so.Enrichment.Indicator.StaleFactor <= 0 {
		so.Enrichment.Indicator.StaleFactor = 4
	}
	if so.Enrichment.Indicator.Source.Mode == "" {
		so.Enrichment.Indicator.Source.Mode = "static"
	}
	if so.Enrichment.Asset.Source.Mode == "" {
		so.Enrichment.Asset.Source.Mode = "static"
	}
	if so.Enrichment.Cache.Backend == "" {
		so.Enrichment.Cache.Backend = "memory"
	}
	if so.Enrichment.Cache.Size <= 0 {
		so.Enrichment.Cache.Size = 4096
	}
	if so.Enrichment.Cache.Redis.KeyPrefix == "" {
		so.Enrichment.Cache.Redis.KeyPrefix = "secureops:cache"
	}
	if so.Enrichment.LookupTimeout <= 0 {
		so.Enrichment.LookupTimeout = 2 * time.Second
	}

	if so.Rules.Path == "" {
		so.Rules.Path = "configs/rules.yaml"
	}
	if so.Rules.Sigma.Path == "" {
		so.Rules.Sigma.Path = "configs/sigma"
	}

	if so.Model.Mode == "" {
		so.Model.Mode = "builtin"
	}

	if so.Blend.RuleWeight == 0 {
		so.Blend.RuleWeight = 1
	}
	if so.Blend.ModelWeight == 0 {
		so.Blend.ModelWeight = 1
	}
	if so.Blend.MaxScore <= 0 {
		so.Blend.MaxScore = 100
	}
	if so.Blend.Thresholds.Medium <= 0 {
		so.Blend.Thresholds.Medium = 50
	}
	if so.Blend.Thresholds.High <= 0 {
		so.Blend.Thresholds.High = 80
	}
	if so.Blend.Thresholds.Critical <= 0 {
		so.Blend.Thresholds.Critical = 95
	}

	if so.Results.Backend == "" {
		so.Results.Backend = "memory"
	}
	if so.Results.Retention <= 0 {
		so.Results.Retention = 7 * 24 * time.Hour
	}
	if so.Results.Redis.KeyPrefix == "" {
		so.Results.Redis.KeyPrefix = "secureops:scores"
	}

	if so.Alerts.Cutoff == "" {
		so.Alerts.Cutoff = "high"
	}
	if so.Alerts.Cooldown <= 0 {
		so.Alerts.Cooldown = 5 * time.Minute
	}
	if so.Alerts.BatchSize <= 0 {
		so.Alerts.BatchSize = 16
	}
	if so.Alerts.FlushInterval <= 0 {
		so.Alerts.FlushInterval = time.Second
	}
	if so.Alerts.Attempts <= 0 {
		so.Alerts.Attempts = 3
	}
	if so.Alerts.Backoff <= 0 {
		so.Alerts.Backoff = 250 * time.Millisecond
	}
	if so.Alerts.DeadLetterFile == "" {
		so.Alerts.DeadLetterFile = "output/alerts_dead_letter.jsonl"
	}
	if so.Alerts.Output.Mode == "" {
		so.Alerts.Output.Mode = "file"
	}
	if so.Alerts.Output.File.Path == "" {
		so.Alerts.Output.File.Path = "output/alerts.jsonl"
	}

	if so.ModelMetrics.Retention <= 0 {
		so.ModelMetrics.Retention = 24 * time.Hour
	}
	if so.ModelMetrics.FlushInterval <= 0 {
		so.ModelMetrics.FlushInterval = 60 * time.Second
	}
	if so.ModelMetrics.Output.Mode == "" {
		so.ModelMetrics.Output.Mode = "file"
	}
	if so.ModelMetrics.Output.File.Path == "" {
		so.ModelMetrics.Output.File.Path = "output/model_metrics.jsonl"
	}
	if so.ModelMetrics.Output.ClickHouse.Database == "" {
		so.ModelMetrics.Output.ClickHouse.Database = "secureops"
	}
	if so.ModelMetrics.Output.ClickHouse.Table == "" {
		so.ModelMetrics.Output.ClickHouse.Table = "model_metrics"
	}

	if so.Gateway.Listen == "" {
		so.Gateway.Listen = ":8081"
	}
	if so.Gateway.RequestTimeout <= 0 {
		so.Gateway.RequestTimeout = 15 * time.Second
	}
	if so.Gateway.MaxBatch <= 0 {
		so.Gateway.MaxBatch = 500
	}

	if so.Metrics.Listen == "" {
		so.Metrics.Listen = ":9090"
	}

	if so.Logging.Level == "" {
		so.Logging.Level = "info"
	}
	if so.Logging.Format == "" {
		so.Logging.Format = "json"
	}
}
