package metricsclickhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// Config configures the ClickHouse HTTP writer.
type Config struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string
}

// Writer inserts model metrics rows into ClickHouse over its HTTP
// interface using JSONEachRow. Rows are reshaped for the warehouse:
// timestamps become unix seconds and latency is averaged per row, so
// dashboards never recompute it from raw sums.
type Writer struct {
	base     string
	database string
	table    string
	headers  map[string]string
	client   *http.Client
}

// row is the JSONEachRow wire shape. Field names are the ClickHouse
// column names.
type row struct {
	ModelVersion  string  `json:"model_version"`
	TS            int64   `json:"ts"`
	Invocations   int64   `json:"invocations"`
	Failures      int64   `json:"failures"`
	Timeouts      int64   `json:"timeouts"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// NewWriter creates a ClickHouse HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse URL is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "model_metrics"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" {
		headers["X-ClickHouse-User"] = cfg.Username
	}
	if cfg.Password != "" {
		headers["X-ClickHouse-Key"] = cfg.Password
	}

	return &Writer{
		base:     strings.TrimRight(cfg.URL, "/"),
		database: cfg.Database,
		table:    cfg.Table,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// EnsureSchema creates the metrics table when it does not exist. The
// retention becomes a ClickHouse TTL so the warehouse expires rows on
// its own.
func (w *Writer) EnsureSchema(ctx context.Context, retention time.Duration) error {
	days := int(retention.Hours() / 24)
	if days < 1 {
		days = 1
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    model_version  String,
    ts             DateTime,
    invocations    UInt64,
    failures       UInt64,
    timeouts       UInt64,
    avg_latency_ms Float64,
    avg_confidence Float64
) ENGINE = MergeTree()
ORDER BY (model_version, ts)
TTL ts + INTERVAL %d DAY`, quoteIdent(w.database), quoteIdent(w.table), days)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.base+"/", strings.NewReader(ddl))
	if err != nil {
		return fmt.Errorf("failed to create schema request: %w", err)
	}
	return w.send(req)
}

// WriteMetrics inserts a batch of aggregate rows.
func (w *Writer) WriteMetrics(batch []models.ModelMetrics) error {
	if len(batch) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for i := range batch {
		if err := enc.Encode(toRow(&batch[i])); err != nil {
			return fmt.Errorf("failed to marshal model metrics: %w", err)
		}
	}

	insert := fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", quoteIdent(w.database), quoteIdent(w.table))
	req, err := http.NewRequest(http.MethodPost, w.base+"/?query="+url.QueryEscape(insert), &body)
	if err != nil {
		return fmt.Errorf("failed to create insert request: %w", err)
	}
	return w.send(req)
}

// Close releases resources.
func (w *Writer) Close() error {
	return nil
}

func (w *Writer) send(req *http.Request) error {
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("clickhouse request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clickhouse returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func toRow(m *models.ModelMetrics) *row {
	r := &row{
		ModelVersion:  m.ModelVersion,
		TS:            m.TS.Unix(),
		Invocations:   m.Invocations,
		Failures:      m.Failures,
		Timeouts:      m.Timeouts,
		AvgConfidence: m.AvgConfidence,
	}
	if m.Invocations > 0 {
		r.AvgLatencyMS = float64(m.TotalLatencyMS) / float64(m.Invocations)
	}
	return r
}

func quoteIdent(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "`", "")
	return "`" + v + "`"
}
