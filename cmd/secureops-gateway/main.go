package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Raghu-Nath97/secureops360/config"
	"github.com/Raghu-Nath97/secureops360/internal/ingest"
	inputkafka "github.com/Raghu-Nath97/secureops360/internal/input/kafka"
	"github.com/Raghu-Nath97/secureops360/internal/input/redisstream"
	"github.com/Raghu-Nath97/secureops360/internal/logger"
)

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

func run(args []string) {
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

	logger.Infof("SecureOps360 gateway starting")
	logger.Infof("Config loaded from: %s", configPath)

	if err := so.Validate(); err != nil {
		logger.Errorf("Invalid configuration: %v", err)
		log.Fatalf("Invalid configuration: %v", err)
	}

	producer, err := buildProducer(so)
	if err != nil {
		logger.Errorf("Failed to create producer: %v", err)
		log.Fatalf("Failed to create producer: %v", err)
	}
	logger.Infof("Publishing to %s transport", so.Input.Mode)

	server := ingest.NewServer(producer, ingest.ServerConfig{
		MaxBatch:       so.Gateway.MaxBatch,
		RequestTimeout: so.Gateway.RequestTimeout,
	})

	httpServer := &http.Server{
		Addr:         so.Gateway.Listen,
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: so.Gateway.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Gateway listening on %s", so.Gateway.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Gateway server error: %v", err)
			log.Fatalf("Gateway server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Gateway shutdown error: %v", err)
	}
	if err := producer.Close(); err != nil {
		logger.Errorf("Error closing producer: %v", err)
	}

	logger.Infof("SecureOps360 gateway stopped")
	logger.Sync()
}

func main() {
	if len(os.Args) > 1 {
		run(os.Args[1:])
		return
	}
	run(nil)
}
