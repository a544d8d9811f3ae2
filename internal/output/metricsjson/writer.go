package metricsjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// maxFileBytes caps the snapshot log before it rotates to <path>.1.
// Snapshots are periodic aggregates, so one previous generation is
// enough history for local debugging.
const maxFileBytes = 64 << 20

// Writer appends model metrics snapshots to a JSON lines file. Unlike
// the alert trail, rows are not synced per batch: losing a snapshot on
// crash costs one flush interval of telemetry.
type Writer struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *json.Encoder
	size    int64
}

// NewWriter opens the snapshot log for appending.
func NewWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	w := &Writer{path: path}
	if err := w.open(); err != nil {
		return nil, err
	}
	logger.Infof("Model metrics snapshot log opened: %s", path)
	return w, nil
}

func (w *Writer) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open snapshot log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat snapshot log: %w", err)
	}
	w.file = f
	w.encoder = json.NewEncoder(f)
	w.size = info.Size()
	return nil
}

// WriteMetrics appends one batch of aggregate rows, rotating the file
// first when it has outgrown the cap.
func (w *Writer) WriteMetrics(batch []models.ModelMetrics) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > maxFileBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	before := w.size
	for i := range batch {
		if err := w.encoder.Encode(&batch[i]); err != nil {
			return fmt.Errorf("failed to encode model metrics: %w", err)
		}
	}
	if info, err := w.file.Stat(); err == nil {
		w.size = info.Size()
	} else {
		w.size = before
	}
	return nil
}

func (w *Writer) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot log for rotation: %w", err)
	}
	if err := os.Rename(w.path, w.path+".1"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate snapshot log: %w", err)
	}
	logger.Infof("Model metrics snapshot log rotated: %s", w.path)
	return w.open()
}

// Close closes the snapshot log.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
