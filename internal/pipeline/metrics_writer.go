package pipeline

import "github.com/Raghu-Nath97/secureops360/pkg/models"

// MetricsWriter persists aggregated model scorer metrics.
type MetricsWriter interface {
	WriteMetrics(batch []models.ModelMetrics) error
	Close() error
}
