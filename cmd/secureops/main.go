package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Raghu-Nath97/secureops360/config"
	"github.com/Raghu-Nath97/secureops360/internal/alerts"
	"github.com/Raghu-Nath97/secureops360/internal/enrichment"
	"github.com/Raghu-Nath97/secureops360/internal/idempotency"
	"github.com/Raghu-Nath97/secureops360/internal/ingest"
	inputkafka "github.com/Raghu-Nath97/secureops360/internal/input/kafka"
	"github.com/Raghu-Nath97/secureops360/internal/input/redisstream"
	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/internal/output/alerthttp"
	"github.com/Raghu-Nath97/secureops360/internal/output/alertjson"
	"github.com/Raghu-Nath97/secureops360/internal/output/metricsclickhouse"
	"github.com/Raghu-Nath97/secureops360/internal/output/metricsjson"
	"github.com/Raghu-Nath97/secureops360/internal/pipeline"
	"github.com/Raghu-Nath97/secureops360/internal/results"
	"github.com/Raghu-Nath97/secureops360/internal/rules"
	"github.com/Raghu-Nath97/secureops360/internal/scoring"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

func buildConsumer(so *config.SecureOpsConfig) (pipeline.Consumer, error) {
	switch so.Input.Mode {
	case "redis-stream":
		return redisstream.NewConsumer(redisstream.Config{
			Addr:         so.Input.Redis.Addr,
			Password:     so.Input.Redis.Password,
			DB:           so.Input.Redis.DB,
			Stream:       so.Input.Redis.Stream,
			Group:        so.Input.Redis.Group,
			Consumer:     so.Input.Redis.Consumer,
			BlockTimeout: so.Input.Redis.BlockTimeout,
			ClaimMinIdle: so.Input.Redis.ClaimMinIdle,
			DLQStream:    so.Input.Redis.DLQStream,
		})
	case "kafka":
		return inputkafka.NewConsumer(inputkafka.Config{
			Brokers:  so.Input.Kafka.Brokers,
			Topic:    so.Input.Kafka.Topic,
			Group:    so.Input.Kafka.Group,
			DLQTopic: so.Input.Kafka.DLQTopic,
			MinBytes: so.Input.Kafka.MinBytes,
			MaxBytes: so.Input.Kafka.MaxBytes,
			MaxWait:  so.Input.Kafka.MaxWait,
		})
	default:
		return nil, fmt.Errorf("unknown input mode %q", so.Input.Mode)
	}
}

func buildProducer(so *config.SecureOpsConfig) (ingest.Producer, error) {
	switch so.Input.Mode {
	case "redis-stream":
		return redisstream.NewProducer(redisstream.Config{
			Addr:     so.Input.Redis.Addr,
			Password: so.Input.Redis.Password,
			DB:       so.Input.Redis.DB,
			Stream:   so.Input.Redis.Stream,
		})
	case "kafka":
		return inputkafka.NewProducer(inputkafka.Config{
			Brokers: so.Input.Kafka.Brokers,
			Topic:   so.Input.Kafka.Topic,
		})
	default:
		return nil, fmt.Errorf("unknown input mode %q", so.Input.Mode)
	}
}

func runPipeline(args []string) {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}

	configPath := config.FindFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.ApplyDefaults(cfg)
	so := &cfg.SecureOps

	if err := logger.Init(so.Logging.Enabled, so.Logging.Level, so.Logging.Format, so.Logging.File, so.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Infof("SecureOps360 starting")
	logger.Infof("Config loaded from: %s", configPath)

	if err := so.Validate(); err != nil {
		logger.Errorf("Invalid configuration: %v", err)
		log.Fatalf("Invalid configuration: %v", err)
	}

	consumer, err := buildConsumer(so)
	if err != nil {
		logger.Errorf("Failed to create consumer: %v", err)
		log.Fatalf("Failed to create consumer: %v", err)
	}
	logger.Infof("Input mode: %s", so.Input.Mode)

	var claims idempotency.ClaimStore
	switch so.Idempotency.Backend {
	case "memory":
		claims = idempotency.NewMemoryStore()
	case "redis":
		claims, err = idempotency.NewRedisStore(idempotency.RedisConfig{
			Addr:      so.Idempotency.Redis.Addr,
			Password:  so.Idempotency.Redis.Password,
			DB:        so.Idempotency.Redis.DB,
			KeyPrefix: so.Idempotency.Redis.KeyPrefix,
		})
		if err != nil {
			logger.Errorf("Failed to create Redis claim store: %v", err)
			log.Fatalf("Failed to create Redis claim store: %v", err)
		}
	}
	logger.Infof("Claim store: %s (lease %s)", so.Idempotency.Backend, so.Idempotency.Lease)

	var store results.Store
	switch so.Results.Backend {
	case "memory":
		store = results.NewMemoryStore()
	case "redis":
		store, err = results.NewRedisStore(results.RedisConfig{
			Addr:      so.Results.Redis.Addr,
			Password:  so.Results.Redis.Password,
			DB:        so.Results.Redis.DB,
			KeyPrefix: so.Results.Redis.KeyPrefix,
			Retention: so.Results.Retention,
		})
		if err != nil {
			logger.Errorf("Failed to create Redis result store: %v", err)
			log.Fatalf("Failed to create Redis result store: %v", err)
		}
	case "postgres":
		pg, err := results.NewPostgresStore(results.PostgresConfig{
			DSN:   so.Results.Postgres.DSN,
			Table: so.Results.Postgres.Table,
		})
		if err != nil {
			logger.Errorf("Failed to create Postgres result store: %v", err)
			log.Fatalf("Failed to create Postgres result store: %v", err)
		}
		schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 10*time.Second)
		err = pg.EnsureSchema(schemaCtx)
		cancelSchema()
		if err != nil {
			logger.Errorf("Failed to ensure result schema: %v", err)
			log.Fatalf("Failed to ensure result schema: %v", err)
		}
		store = pg
	}
	logger.Infof("Result store: %s (retention %s)", so.Results.Backend, so.Results.Retention)

	admitter := idempotency.NewAdmitter(claims, store, so.Idempotency.Lease)

	var static *enrichment.StaticSource
	if so.Enrichment.Indicator.Source.Mode == "static" || so.Enrichment.Asset.Source.Mode == "static" {
		fixtures := so.Enrichment.Indicator.Source.Fixtures
		if fixtures == "" {
			fixtures = so.Enrichment.Asset.Source.Fixtures
		}
		if strings.TrimSpace(fixtures) != "" {
			static, err = enrichment.LoadStaticSource(fixtures)
			if err != nil {
				logger.Errorf("Failed to load enrichment fixtures from %s: %v", fixtures, err)
				log.Fatalf("Failed to load enrichment fixtures: %v", err)
			}
			logger.Infof("Enrichment fixtures loaded from: %s", fixtures)
		} else {
			static = enrichment.NewStaticSource(enrichment.StaticFixtures{})
			logger.Warnf("Static enrichment source has no fixtures file; indicator lookups will miss")
		}
	}

	var indicatorSource enrichment.IndicatorSource
	switch so.Enrichment.Indicator.Source.Mode {
	case "static":
		indicatorSource = static
	case "http":
		indicatorSource, err = enrichment.NewHTTPIndicatorSource(enrichment.HTTPSourceConfig{
			URL:     so.Enrichment.Indicator.Source.URL,
			Timeout: so.Enrichment.Indicator.Source.Timeout,
			Headers: so.Enrichment.Indicator.Source.Headers,
		})
		if err != nil {
			logger.Errorf("Failed to create intel source: %v", err)
			log.Fatalf("Failed to create intel source: %v", err)
		}
	default:
		log.Fatalf("Unknown indicator source mode: %s", so.Enrichment.Indicator.Source.Mode)
	}

	var assetSource enrichment.AssetSource
	switch so.Enrichment.Asset.Source.Mode {
	case "static":
		assetSource = enrichment.NewStaticAssetSource(static)
	case "http":
		assetSource, err = enrichment.NewHTTPAssetSource(enrichment.HTTPSourceConfig{
			URL:     so.Enrichment.Asset.Source.URL,
			Timeout: so.Enrichment.Asset.Source.Timeout,
			Headers: so.Enrichment.Asset.Source.Headers,
		})
		if err != nil {
			logger.Errorf("Failed to create asset source: %v", err)
			log.Fatalf("Failed to create asset source: %v", err)
		}
	default:
		log.Fatalf("Unknown asset source mode: %s", so.Enrichment.Asset.Source.Mode)
	}

	var indicatorBackend enrichment.Backend[models.Indicator]
	var assetBackend enrichment.Backend[models.AssetContext]
	switch so.Enrichment.Cache.Backend {
	case "memory":
		ib, err := enrichment.NewMemoryBackend[models.Indicator](so.Enrichment.Cache.Size)
		if err != nil {
			log.Fatalf("Failed to create indicator cache backend: %v", err)
		}
		ab, err := enrichment.NewMemoryBackend[models.AssetContext](so.Enrichment.Cache.Size)
		if err != nil {
			log.Fatalf("Failed to create asset cache backend: %v", err)
		}
		indicatorBackend, assetBackend = ib, ab
	case "redis":
		// Expired indicators stay resident for stale serving when the
		// intel source is down; assets have no TTL and get a day.
		residency := so.Enrichment.Indicator.TTL * time.Duration(so.Enrichment.Indicator.StaleFactor)
		ib, err := enrichment.NewRedisBackend[models.Indicator](enrichment.RedisBackendConfig{
			Addr:      so.Enrichment.Cache.Redis.Addr,
			Password:  so.Enrichment.Cache.Redis.Password,
			DB:        so.Enrichment.Cache.Redis.DB,
			KeyPrefix: so.Enrichment.Cache.Redis.KeyPrefix + ":indicators",
			Residency: residency,
		})
		if err != nil {
			logger.Errorf("Failed to create Redis indicator backend: %v", err)
			log.Fatalf("Failed to create Redis indicator backend: %v", err)
		}
		ab, err := enrichment.NewRedisBackend[models.AssetContext](enrichment.RedisBackendConfig{
			Addr:      so.Enrichment.Cache.Redis.Addr,
			Password:  so.Enrichment.Cache.Redis.Password,
			DB:        so.Enrichment.Cache.Redis.DB,
			KeyPrefix: so.Enrichment.Cache.Redis.KeyPrefix + ":assets",
			Residency: 24 * time.Hour,
		})
		if err != nil {
			logger.Errorf("Failed to create Redis asset backend: %v", err)
			log.Fatalf("Failed to create Redis asset backend: %v", err)
		}
		indicatorBackend, assetBackend = ib, ab
	}

	indicatorCache := enrichment.NewIndicatorCache(indicatorBackend, indicatorSource, enrichment.IndicatorCacheConfig{
		TTL:            so.Enrichment.Indicator.TTL,
		NegativeTTL:    so.Enrichment.Indicator.NegativeTTL,
		RefreshTimeout: so.Enrichment.Indicator.Source.Timeout,
	})
	assetStore := enrichment.NewAssetStore(assetBackend, assetSource, so.Enrichment.Asset.Source.Timeout)
	resolver := enrichment.NewResolver(indicatorCache, assetStore, so.Enrichment.LookupTimeout)
	logger.Infof("Enrichment: cache=%s indicator_ttl=%s sources=%s/%s",
		so.Enrichment.Cache.Backend,
		so.Enrichment.Indicator.TTL,
		so.Enrichment.Indicator.Source.Mode,
		so.Enrichment.Asset.Source.Mode,
	)

	ruleset, err := rules.LoadRuleSet(so.Rules.Path)
	if err != nil {
		logger.Errorf("Failed to load rules from %s: %v", so.Rules.Path, err)
		log.Fatalf("Failed to load rules: %v", err)
	}
	logger.Infof("Rules loaded from %s: version=%d rules=%d skipped=%d",
		so.Rules.Path, ruleset.Version, len(ruleset.Rules), len(ruleset.Skipped))

	var engine rules.Engine = rules.NewRulesetEngine(ruleset)
	if so.Rules.Sigma.Enabled {
		sigmaEngine, stats, err := rules.NewSigmaEngine(so.Rules.Sigma.Path, so.Rules.Sigma.LevelScores)
		if err != nil {
			logger.Errorf("Failed to load Sigma rules from %s: %v", so.Rules.Sigma.Path, err)
			log.Fatalf("Failed to load Sigma rules: %v", err)
		}
		logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_invalid=%d files=%d",
			stats.Loaded, stats.SkippedComplex, stats.SkippedInvalid, stats.TotalFiles)
		if stats.Loaded == 0 {
			logger.Warnf("No compatible Sigma rules loaded; Sigma scoring is effectively disabled")
		}
		engine = rules.NewChain(ruleset.MaxScore, engine, sigmaEngine)
	}

	var invoker scoring.Invoker
	switch so.Model.Mode {
	case "builtin":
		invoker = scoring.NewBuiltinModel()
	case "http":
		invoker, err = scoring.NewHTTPModel(scoring.HTTPModelConfig{
			URL:                     so.Model.HTTP.URL,
			Timeout:                 so.Model.HTTP.Timeout,
			Headers:                 so.Model.HTTP.Headers,
			BreakerMaxRequests:      uint32(so.Model.Breaker.MaxRequests),
			BreakerInterval:         so.Model.Breaker.Interval,
			BreakerTimeout:          so.Model.Breaker.Timeout,
			BreakerFailureThreshold: uint32(so.Model.Breaker.FailureThreshold),
			RateLimitRPS:            so.Model.RateLimit.RPS,
			RateLimitBurst:          so.Model.RateLimit.Burst,
		})
		if err != nil {
			logger.Errorf("Failed to create HTTP model: %v", err)
			log.Fatalf("Failed to create HTTP model: %v", err)
		}
	}
	logger.Infof("Model: %s (version %s)", so.Model.Mode, invoker.Version())

	var recorder *scoring.Recorder
	var metricsWriter pipeline.MetricsWriter
	if so.ModelMetrics.Enabled {
		recorder = scoring.NewRecorder(so.ModelMetrics.Retention)
		switch so.ModelMetrics.Output.Mode {
		case "file":
			w, err := metricsjson.NewWriter(so.ModelMetrics.Output.File.Path)
			if err != nil {
				logger.Errorf("Failed to create model metrics file writer: %v", err)
				log.Fatalf("Failed to create model metrics file writer: %v", err)
			}
			metricsWriter = w
			logger.Infof("Model metrics output mode: file (%s)", so.ModelMetrics.Output.File.Path)
		case "clickhouse":
			w, err := metricsclickhouse.NewWriter(metricsclickhouse.Config{
				URL:      so.ModelMetrics.Output.ClickHouse.URL,
				Database: so.ModelMetrics.Output.ClickHouse.Database,
				Table:    so.ModelMetrics.Output.ClickHouse.Table,
				Username: so.ModelMetrics.Output.ClickHouse.Username,
				Password: so.ModelMetrics.Output.ClickHouse.Password,
				Timeout:  so.ModelMetrics.Output.ClickHouse.Timeout,
				Headers:  so.ModelMetrics.Output.ClickHouse.Headers,
			})
			if err != nil {
				logger.Errorf("Failed to create model metrics ClickHouse writer: %v", err)
				log.Fatalf("Failed to create model metrics ClickHouse writer: %v", err)
			}
			schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 10*time.Second)
			err = w.EnsureSchema(schemaCtx, so.ModelMetrics.Retention)
			cancelSchema()
			if err != nil {
				// Non-fatal: the flush loop reports write failures.
				logger.Warnf("Failed to ensure model metrics schema: %v", err)
			}
			metricsWriter = w
			logger.Infof("Model metrics output mode: clickhouse (%s/%s.%s)",
				so.ModelMetrics.Output.ClickHouse.URL,
				so.ModelMetrics.Output.ClickHouse.Database,
				so.ModelMetrics.Output.ClickHouse.Table,
			)
		}
	}

	scorer := scoring.NewScorer(invoker, so.Pipeline.ModelTimeout, recorder)
	blender := scoring.NewBlender(scoring.BlendSettings{
		RuleWeight:  so.Blend.RuleWeight,
		ModelWeight: so.Blend.ModelWeight,
		MaxScore:    so.Blend.MaxScore,
		Thresholds: scoring.Thresholds{
			Medium:   so.Blend.Thresholds.Medium,
			High:     so.Blend.Thresholds.High,
			Critical: so.Blend.Thresholds.Critical,
		},
	})

	processor := pipeline.NewProcessor(admitter, resolver, engine, scorer, blender, store, pipeline.ProcessorConfig{
		AdmitRetries:    so.Pipeline.AdmitRetries,
		AdmitBackoff:    so.Pipeline.AdmitBackoff,
		EnrichTimeout:   so.Pipeline.EnrichTimeout,
		PublishTimeout:  so.Pipeline.PublishTimeout,
		PublishAttempts: so.Pipeline.PublishAttempts,
		PublishBackoff:  so.Pipeline.PublishBackoff,
		Retention:       so.Results.Retention,
	})

	var alertWriter alerts.AlertWriter
	var alertDeadLetter alerts.AlertWriter
	var dispatcher *alerts.Dispatcher
	var alertCutoff models.SeverityTier
	if so.Alerts.Enabled {
		alertCutoff, _ = models.ParseSeverityTier(so.Alerts.Cutoff)
		switch so.Alerts.Output.Mode {
		case "file":
			w, err := alertjson.NewWriter(so.Alerts.Output.File.Path)
			if err != nil {
				logger.Errorf("Failed to create alert file writer: %v", err)
				log.Fatalf("Failed to create alert file writer: %v", err)
			}
			alertWriter = w
			logger.Infof("Alert output mode: file (%s)", so.Alerts.Output.File.Path)
		case "http":
			w, err := alerthttp.NewWriter(alerthttp.Config{
				URL:     so.Alerts.Output.HTTP.URL,
				Timeout: so.Alerts.Output.HTTP.Timeout,
				Headers: so.Alerts.Output.HTTP.Headers,
			})
			if err != nil {
				logger.Errorf("Failed to create alert HTTP writer: %v", err)
				log.Fatalf("Failed to create alert HTTP writer: %v", err)
			}
			alertWriter = w
			logger.Infof("Alert output mode: http (%s)", so.Alerts.Output.HTTP.URL)
		}
		if so.Alerts.DeadLetterFile != "" {
			w, err := alertjson.NewWriter(so.Alerts.DeadLetterFile)
			if err != nil {
				logger.Errorf("Failed to create alert dead-letter writer: %v", err)
				log.Fatalf("Failed to create alert dead-letter writer: %v", err)
			}
			alertDeadLetter = w
		}
		dispatcher = alerts.NewDispatcher(alertWriter, alerts.NewThrottle(so.Alerts.Cooldown), alerts.DispatcherConfig{
			BatchSize:     so.Alerts.BatchSize,
			FlushInterval: so.Alerts.FlushInterval,
			Attempts:      so.Alerts.Attempts,
			Backoff:       so.Alerts.Backoff,
			DeadLetter:    alertDeadLetter,
		})
		logger.Infof("Alerting: cutoff=%s cooldown=%s", alertCutoff, so.Alerts.Cooldown)
	}

	pipe := pipeline.New(pipeline.Config{
		Consumer:             consumer,
		Processor:            processor,
		Workers:              so.Pipeline.Workers,
		QueueFactor:          so.Pipeline.QueueFactor,
		Alerts:               dispatcher,
		AlertCutoff:          alertCutoff,
		Recorder:             recorder,
		MetricsWriter:        metricsWriter,
		MetricsFlushInterval: so.ModelMetrics.FlushInterval,
	})

	if so.Metrics.Listen != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Infof("Metrics listening on %s", so.Metrics.Listen)
			if err := http.ListenAndServe(so.Metrics.Listen, mux); err != nil && err != http.ErrServerClosed {
				logger.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	// Run drains the work queue and alert channel before returning.
	<-done

	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing consumer: %v", err)
	}
	if alertWriter != nil {
		if err := alertWriter.Close(); err != nil {
			logger.Errorf("Error closing alert writer: %v", err)
		}
	}
	if alertDeadLetter != nil {
		if err := alertDeadLetter.Close(); err != nil {
			logger.Errorf("Error closing alert dead-letter writer: %v", err)
		}
	}
	if metricsWriter != nil {
		if err := metricsWriter.Close(); err != nil {
			logger.Errorf("Error closing model metrics writer: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Errorf("Error closing result store: %v", err)
	}
	if err := claims.Close(); err != nil {
		logger.Errorf("Error closing claim store: %v", err)
	}

	logger.Infof("SecureOps360 stopped")
	logger.Sync()
}

// seedEvent returns the n-th synthetic event. Templates cycle through
// the scenarios the demo fixtures are built around: benign logins,
// failed admin access, and traffic from listed indicator IPs.
func seedEvent(tenant string, n int) *models.SecurityEvent {
	templates := []models.SecurityEvent{
		{
			Source:       "cloudtrail",
			Actor:        models.Actor{Type: "user", ID: "dev@example.com", IP: "192.0.2.44"},
			Action:       "LoginSuccess",
			Resource:     models.Resource{Type: "ec2", ID: "i-1234567890abcdef0"},
			SeverityHint: 1,
			Payload:      map[string]interface{}{"userAgent": "Mozilla/5.0", "mfa": "true"},
		},
		{
			Source:       "cloudtrail",
			Actor:        models.Actor{Type: "user", ID: "admin@example.com", IP: "198.51.100.7"},
			Action:       "LoginFailed",
			Resource:     models.Resource{Type: "database", ID: "users-db"},
			SeverityHint: 4,
			Payload:      map[string]interface{}{"userAgent": "curl/7.68.0", "mfa": "false", "attempts": 5},
		},
		{
			Source:       "waf",
			Actor:        models.Actor{Type: "ip", ID: "203.0.113.10", IP: "203.0.113.10"},
			Action:       "BlockedRequest",
			Resource:     models.Resource{Type: "api", ID: "/api/v1/admin"},
			SeverityHint: 3,
			Payload:      map[string]interface{}{"rule": "SQL_INJECTION", "country": "CN"},
		},
		{
			Source:       "auth-svc",
			Actor:        models.Actor{Type: "user", ID: "alice", IP: "203.0.113.10"},
			Action:       "admin_login",
			Resource:     models.Resource{Type: "database", ID: "users-db"},
			SeverityHint: 5,
			Payload:      map[string]interface{}{"mfa": "false"},
		},
		{
			Source:       "auth-svc",
			Actor:        models.Actor{Type: "user", ID: "bob", IP: "192.0.2.80"},
			Action:       "file_download",
			Resource:     models.Resource{Type: "s3", ID: "finance-reports"},
			SeverityHint: 2,
			Payload:      map[string]interface{}{"bytes": 1048576},
		},
	}

	event := templates[n%len(templates)]
	event.TenantID = tenant
	return &event
}

func runSeed(args []string) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	count := fs.Int("count", 25, "Number of events to publish")
	tenant := fs.String("tenant", "acme", "Tenant stamped on generated events")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := config.FindFile(*configArg)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	config.ApplyDefaults(cfg)
	so := &cfg.SecureOps

	producer, err := buildProducer(so)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create producer: %v\n", err)
		return 1
	}
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := 0; i < *count; i++ {
		event := seedEvent(*tenant, i)
		ingest.Normalize(event, time.Now())
		if err := producer.Produce(ctx, event); err != nil {
			fmt.Fprintf(os.Stderr, "failed to publish event %d: %v\n", i+1, err)
			return 1
		}
	}

	fmt.Printf("seeded events=%d tenant=%s transport=%s\n", *count, *tenant, so.Input.Mode)
	return 0
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			runPipeline(os.Args[2:])
			return
		case "seed":
			os.Exit(runSeed(os.Args[2:]))
		default:
			// Backward-compatible mode: first arg is config path.
			runPipeline(os.Args[1:])
			return
		}
	}

	runPipeline(nil)
}
