package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/internal/metrics"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

const maxBodyBytes = 5 << 20

// Producer publishes normalized events to the pipeline transport.
// Ping backs the readiness probe.
type Producer interface {
	Produce(ctx context.Context, event *models.SecurityEvent) error
	Ping(ctx context.Context) error
	Close() error
}

// ServerConfig controls the gateway HTTP surface.
type ServerConfig struct {
	MaxBatch       int
	RequestTimeout time.Duration
}

// Server accepts security events over HTTP and publishes them to the
// transport. Acceptance means durably queued, not scored: scoring
// happens asynchronously in the pipeline.
type Server struct {
	router   *chi.Mux
	producer Producer
	maxBatch int

	// now is replaceable in tests.
	now func() time.Time
}

// NewServer builds the gateway around a transport producer.
func NewServer(producer Producer, cfg ServerConfig) *Server {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 500
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	s := &Server{
		router:   router,
		producer: producer,
		maxBatch: cfg.MaxBatch,
		now:      time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Post("/v1/events", s.handleEvents)
}

// Handler returns the HTTP handler for serving.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.producer.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type eventResult struct {
	EventID string `json:"event_id,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type ingestResponse struct {
	Accepted int           `json:"accepted"`
	Results  []eventResult `json:"results"`
}

// handleEvents takes one event or a batch. Every valid event is
// normalized and published; invalid ones are reported per entry so a
// partially bad batch does not block the rest. Results keep submission
// order.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable or oversized request body"})
		return
	}

	raws, err := splitBatch(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if len(raws) > s.maxBatch {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("batch exceeds the configured maximum of %d events", s.maxBatch),
		})
		return
	}

	now := s.now()
	accepted := 0
	results := make([]eventResult, 0, len(raws))
	for _, raw := range raws {
		var event models.SecurityEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			results = append(results, eventResult{Status: "rejected", Error: "invalid event JSON"})
			metrics.GatewayEvents.WithLabelValues("rejected").Inc()
			continue
		}
		// The id assigned by Normalize is only reported for events
		// that were actually published.
		suppliedID := event.EventID
		Normalize(&event, now)
		if err := models.ValidateEvent(&event); err != nil {
			results = append(results, eventResult{EventID: suppliedID, Status: "rejected", Error: err.Error()})
			metrics.GatewayEvents.WithLabelValues("rejected").Inc()
			continue
		}
		if err := s.producer.Produce(r.Context(), &event); err != nil {
			logger.Errorf("Failed to publish event %s: %v", event.TenantEventID(), err)
			results = append(results, eventResult{EventID: suppliedID, Status: "rejected", Error: "failed to publish event"})
			metrics.GatewayEvents.WithLabelValues("rejected").Inc()
			continue
		}
		accepted++
		results = append(results, eventResult{EventID: event.EventID, Status: "accepted"})
		metrics.GatewayEvents.WithLabelValues("accepted").Inc()
	}

	status := http.StatusOK
	if accepted < len(raws) {
		if accepted > 0 {
			status = http.StatusMultiStatus
		} else {
			status = http.StatusBadRequest
		}
	}
	writeJSON(w, status, ingestResponse{Accepted: accepted, Results: results})
}

// splitBatch accepts either a single JSON object or a JSON array of
// objects.
func splitBatch(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errors.New("empty request body")
	}
	if trimmed[0] != '[' {
		return []json.RawMessage{body}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, errors.New("invalid JSON batch")
	}
	if len(raws) == 0 {
		return nil, errors.New("empty batch")
	}
	return raws, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
