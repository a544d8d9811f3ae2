package alertjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// Writer appends alerts to a JSON lines file, one alert per line. The
// file is the durable alert trail for deployments without a webhook
// receiver, so every batch is flushed and synced before it is reported
// written.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	encoder *json.Encoder
	written int64
}

// NewWriter opens the alert trail for appending, creating parent
// directories as needed.
func NewWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert trail: %w", err)
	}

	buf := bufio.NewWriter(f)
	logger.Infof("Alert trail opened: %s", path)
	return &Writer{
		file:    f,
		buf:     buf,
		encoder: json.NewEncoder(buf),
	}, nil
}

// WriteAlerts appends a batch and syncs it to disk.
func (w *Writer) WriteAlerts(alerts []*models.Alert) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, alert := range alerts {
		if err := w.encoder.Encode(alert); err != nil {
			return fmt.Errorf("failed to encode alert %s: %w", alert.AlertID, err)
		}
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush alert trail: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync alert trail: %w", err)
	}
	w.written += int64(len(alerts))
	return nil
}

// Close flushes and closes the trail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	w.file = nil

	logger.Infof("Alert trail closed: %d alerts written", w.written)
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
