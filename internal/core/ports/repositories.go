package ports

import (
	"context"
	"time"

	"finsite/internal/core/domain"
)

// RUMRepository stores sanitized page-view records
type RUMRepository interface {
	SaveRecords(ctx context.Context, records []*domain.RUMRecord) error
	ListSince(ctx context.Context, since time.Time) ([]*domain.RUMRecord, error)
	Prune(ctx context.Context, before time.Time) (int, error)
}

// AlertRepository stores derived performance alerts
type AlertRepository interface {
	SaveAlerts(ctx context.Context, alerts []*domain.PerformanceAlert) error
	ListAlertsSince(ctx context.Context, since time.Time) ([]*domain.PerformanceAlert, error)
	PruneAlerts(ctx context.Context, before time.Time) (int, error)
}

// LeadRepository stores contact form submissions
type LeadRepository interface {
	CreateLead(ctx context.Context, lead *domain.Lead) error
	GetLead(ctx context.Context, id string) (*domain.Lead, error)
	ListLeads(ctx context.Context, limit int) ([]*domain.Lead, error)
}

// Pinger is implemented by backends that can report their health
type Pinger interface {
	Ping(ctx context.Context) error
}
