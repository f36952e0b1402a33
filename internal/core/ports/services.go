package ports

import (
	"context"

	"finsite/internal/core/domain"
	"finsite/pkg/formats/rum"
	"finsite/pkg/vitals"
)

type IngestionService interface {
	Ingest(ctx context.Context, batch rum.Batch) (*domain.IngestResult, error)
}

type AnalyticsService interface {
	Summary(ctx context.Context, tr domain.TimeRange, metric string) (*domain.Summary, error)
}

type LeadService interface {
	Submit(ctx context.Context, req domain.LeadRequest, clientIP string) (*domain.Lead, error)
}

// AlertPublisher fans alerts out to live subscribers
type AlertPublisher interface {
	Publish(alert *domain.PerformanceAlert)
}

// MetricsCollector records service level telemetry
type MetricsCollector interface {
	RecordIngest(records int, alerts int)
	ObserveVital(name vitals.MetricName, value float64, rating vitals.Rating)
	RecordAlert(alertType domain.AlertType, severity vitals.Severity)
	RecordStorageFailure(operation string)
	RecordLead(service string)
	RecordClient(browser string, mobile bool)
}
