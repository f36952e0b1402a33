package reliability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finsite/internal/core/domain"
	"finsite/internal/core/ports"
	"finsite/pkg/circuitbreaker"
	"finsite/pkg/retry"
	"finsite/pkg/tracing"

	"go.uber.org/zap"
)

// StorageWrapper puts every repository call behind one circuit breaker and a
// client span. An open breaker surfaces as domain.ErrStorageUnavailable.
// Lead writes are retried; telemetry writes are not.
type StorageWrapper struct {
	records ports.RUMRepository
	alerts  ports.AlertRepository
	leads   ports.LeadRepository
	health  ports.Pinger

	backend        string
	metrics        ports.MetricsCollector
	logger         *zap.Logger
	retryConfig    retry.Config
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// StorageDeps are the repositories and collaborators for NewStorageWrapper
type StorageDeps struct {
	Records ports.RUMRepository
	Alerts  ports.AlertRepository
	Leads   ports.LeadRepository
	Health  ports.Pinger
	Backend string
	Metrics ports.MetricsCollector
	Logger  *zap.Logger
}

func NewStorageWrapper(deps StorageDeps, retryConfig retry.Config, cbConfig circuitbreaker.Config) *StorageWrapper {
	if cbConfig.Name == "" {
		cbConfig.Name = "storage." + deps.Backend
	}
	w := &StorageWrapper{
		records:        deps.Records,
		alerts:         deps.Alerts,
		leads:          deps.Leads,
		health:         deps.Health,
		backend:        deps.Backend,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		retryConfig:    retryConfig,
		circuitBreaker: circuitbreaker.New(cbConfig),
	}

	w.circuitBreaker.OnStateChange(func(name string, from, to circuitbreaker.State) {
		w.logger.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})

	return w
}

// State reports the breaker state, used by readiness checks
func (w *StorageWrapper) State() circuitbreaker.State {
	return w.circuitBreaker.State()
}

func (w *StorageWrapper) run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.TraceStorageOperation(ctx, w.backend, operation)
	defer span.End()

	err := w.circuitBreaker.Execute(ctx, fn)
	if err == nil {
		return nil
	}

	tracing.RecordError(ctx, err)
	if w.metrics != nil {
		w.metrics.RecordStorageFailure(operation)
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%s: %w", operation, domain.ErrStorageUnavailable)
	}
	return err
}

func (w *StorageWrapper) SaveRecords(ctx context.Context, records []*domain.RUMRecord) error {
	return w.run(ctx, "save_records", func(ctx context.Context) error {
		return w.records.SaveRecords(ctx, records)
	})
}

func (w *StorageWrapper) ListSince(ctx context.Context, since time.Time) ([]*domain.RUMRecord, error) {
	var out []*domain.RUMRecord
	err := w.run(ctx, "list_records", func(ctx context.Context) error {
		var err error
		out, err = w.records.ListSince(ctx, since)
		return err
	})
	return out, err
}

func (w *StorageWrapper) Prune(ctx context.Context, before time.Time) (int, error) {
	var n int
	err := w.run(ctx, "prune_records", func(ctx context.Context) error {
		var err error
		n, err = w.records.Prune(ctx, before)
		return err
	})
	return n, err
}

func (w *StorageWrapper) SaveAlerts(ctx context.Context, alerts []*domain.PerformanceAlert) error {
	return w.run(ctx, "save_alerts", func(ctx context.Context) error {
		return w.alerts.SaveAlerts(ctx, alerts)
	})
}

func (w *StorageWrapper) ListAlertsSince(ctx context.Context, since time.Time) ([]*domain.PerformanceAlert, error) {
	var out []*domain.PerformanceAlert
	err := w.run(ctx, "list_alerts", func(ctx context.Context) error {
		var err error
		out, err = w.alerts.ListAlertsSince(ctx, since)
		return err
	})
	return out, err
}

func (w *StorageWrapper) PruneAlerts(ctx context.Context, before time.Time) (int, error) {
	var n int
	err := w.run(ctx, "prune_alerts", func(ctx context.Context) error {
		var err error
		n, err = w.alerts.PruneAlerts(ctx, before)
		return err
	})
	return n, err
}

// CreateLead retries transient failures; an open breaker stops the retries
func (w *StorageWrapper) CreateLead(ctx context.Context, lead *domain.Lead) error {
	return retry.Do(ctx, w.retryConfig, func(ctx context.Context) error {
		err := w.run(ctx, "create_lead", func(ctx context.Context) error {
			return w.leads.CreateLead(ctx, lead)
		})
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return retry.Permanent(err)
		}
		return err
	})
}

// GetLead does not count a missing lead against the breaker
func (w *StorageWrapper) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	var (
		lead     *domain.Lead
		notFound bool
	)
	err := w.run(ctx, "get_lead", func(ctx context.Context) error {
		var err error
		lead, err = w.leads.GetLead(ctx, id)
		if errors.Is(err, domain.ErrLeadNotFound) {
			notFound = true
			return nil
		}
		return err
	})
	if notFound {
		return nil, domain.ErrLeadNotFound
	}
	return lead, err
}

func (w *StorageWrapper) ListLeads(ctx context.Context, limit int) ([]*domain.Lead, error) {
	var out []*domain.Lead
	err := w.run(ctx, "list_leads", func(ctx context.Context) error {
		var err error
		out, err = w.leads.ListLeads(ctx, limit)
		return err
	})
	return out, err
}

// Ping checks the backend directly; readiness should see the real state even
// while the breaker is open.
func (w *StorageWrapper) Ping(ctx context.Context) error {
	if w.health == nil {
		return nil
	}
	ctx, span := tracing.TraceStorageOperation(ctx, w.backend, "ping")
	defer span.End()
	return w.health.Ping(ctx)
}
