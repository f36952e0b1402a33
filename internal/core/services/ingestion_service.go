package services

import (
	"context"
	"time"

	"finsite/internal/core/domain"
	"finsite/internal/core/ports"
	"finsite/pkg/formats/rum"
	"finsite/pkg/tracing"
	"finsite/pkg/vitals"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ingestionService struct {
	records   ports.RUMRepository
	alerts    ports.AlertRepository
	publisher ports.AlertPublisher
	metrics   ports.MetricsCollector
	sanitizer *Sanitizer
	logger    *zap.Logger
	now       func() time.Time
}

// IngestionDeps groups what the ingestion service talks to. Publisher and
// Metrics are optional.
type IngestionDeps struct {
	Records         ports.RUMRepository
	Alerts          ports.AlertRepository
	Publisher       ports.AlertPublisher
	Metrics         ports.MetricsCollector
	Logger          *zap.Logger
	MaxBatchRecords int
}

func NewIngestionService(deps IngestionDeps) ports.IngestionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ingestionService{
		records:   deps.Records,
		alerts:    deps.Alerts,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		sanitizer: NewSanitizer(deps.MaxBatchRecords),
		logger:    logger.With(zap.String("service", "rum_ingestion")),
		now:       time.Now,
	}
}

// Ingest sanitizes the batch, derives alerts and stores both. Storage is
// best effort: a failing backend is logged and the batch still counts as
// processed.
func (s *ingestionService) Ingest(ctx context.Context, batch rum.Batch) (*domain.IngestResult, error) {
	ctx, span := tracing.TraceIngest(ctx, len(batch.Data))
	defer span.End()

	now := s.now()
	records, dropped := s.sanitizer.SanitizeBatch(batch, now)
	if dropped > 0 {
		s.logger.Warn("batch exceeds record limit, dropping excess",
			zap.Int("received", len(batch.Data)),
			zap.Int("dropped", dropped),
		)
	}

	result := &domain.IngestResult{Processed: len(records), Stored: true}
	if len(records) == 0 {
		return result, nil
	}

	for _, rec := range records {
		s.observe(rec)
		result.Alerts = append(result.Alerts, DeriveAlerts(rec, now)...)
	}

	if err := s.records.SaveRecords(ctx, records); err != nil {
		result.Stored = false
		tracing.RecordError(ctx, err)
		s.storageFailed("save_records", err, len(records))
	}

	if len(result.Alerts) > 0 {
		s.handleAlerts(ctx, result.Alerts)
	}

	span.SetAttributes(attribute.Int("rum.alerts", len(result.Alerts)))
	if s.metrics != nil {
		s.metrics.RecordIngest(len(records), len(result.Alerts))
	}

	s.logger.Debug("RUM batch processed",
		zap.Int("records", len(records)),
		zap.Int("alerts", len(result.Alerts)),
		zap.Bool("stored", result.Stored),
	)
	return result, nil
}

func (s *ingestionService) observe(rec *domain.RUMRecord) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordClient(rec.Browser, rec.Mobile)
	for name, value := range rec.Vitals() {
		rating, _ := vitals.Rate(name, value)
		s.metrics.ObserveVital(name, value, rating)
	}
}

func (s *ingestionService) handleAlerts(ctx context.Context, alerts []*domain.PerformanceAlert) {
	for _, a := range alerts {
		s.logger.Warn("performance alert",
			zap.String("type", string(a.Type)),
			zap.String("severity", string(a.Severity)),
			zap.Float64("value", a.Value),
			zap.Float64("threshold", a.Threshold),
			zap.String("url", a.URL),
			zap.String("session_id", a.SessionID),
		)
		if s.metrics != nil {
			s.metrics.RecordAlert(a.Type, a.Severity)
		}
		if s.publisher != nil {
			s.publisher.Publish(a)
		}
	}

	if err := s.alerts.SaveAlerts(ctx, alerts); err != nil {
		s.storageFailed("save_alerts", err, len(alerts))
	}
}

func (s *ingestionService) storageFailed(op string, err error, items int) {
	s.logger.Warn("failed to store RUM data",
		zap.String("operation", op),
		zap.Int("items", items),
		zap.Error(err),
	)
	if s.metrics != nil {
		s.metrics.RecordStorageFailure(op)
	}
}
