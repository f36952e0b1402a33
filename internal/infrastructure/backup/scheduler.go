package backup

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"finsite/internal/core/domain"
	"finsite/internal/core/ports"
	"finsite/pkg/backup"

	"go.uber.org/zap"
)

const (
	KindLeads      = "leads"
	KindRUMArchive = "rum-archive"

	// leadSnapshotLimit bounds one lead snapshot
	leadSnapshotLimit = 100000
)

// Archive is the payload of a KindRUMArchive snapshot
type Archive struct {
	Cutoff  time.Time                  `json:"cutoff"`
	Records []*domain.RUMRecord        `json:"records"`
	Alerts  []*domain.PerformanceAlert `json:"alerts"`
}

// Config contains scheduler configuration
type Config struct {
	Interval time.Duration
	Keep     time.Duration // zero keeps every snapshot
}

// Scheduler snapshots contact leads on an interval, archives RUM data that
// is about to be pruned and expires old snapshots.
type Scheduler struct {
	backups *backup.Service
	records ports.RUMRepository
	alerts  ports.AlertRepository
	leads   ports.LeadRepository
	cfg     Config
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewScheduler creates a new backup scheduler
func NewScheduler(
	backups *backup.Service,
	records ports.RUMRepository,
	alerts ports.AlertRepository,
	leads ports.LeadRepository,
	cfg Config,
	logger *zap.SugaredLogger,
) *Scheduler {
	return &Scheduler{
		backups: backups,
		records: records,
		alerts:  alerts,
		leads:   leads,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run snapshots leads every interval until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.runBackup(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runBackup(ctx context.Context) {
	name, count, err := s.SnapshotLeads(ctx)
	if err != nil {
		s.logger.Errorw("failed to snapshot leads", "error", err)
		return
	}
	s.logger.Infow("lead snapshot created", "backup_name", name, "leads", count)

	if err := s.cleanup(ctx); err != nil {
		s.logger.Warnw("failed to cleanup old backups", "error", err)
	}
}

// SnapshotLeads writes every stored lead to a new snapshot
func (s *Scheduler) SnapshotLeads(ctx context.Context) (string, int, error) {
	leads, err := s.leads.ListLeads(ctx, leadSnapshotLimit)
	if err != nil {
		return "", 0, fmt.Errorf("failed to list leads: %w", err)
	}
	name, err := s.backups.Create(ctx, KindLeads, leads, map[string]string{
		"lead_count":  strconv.Itoa(len(leads)),
		"backup_type": "scheduled",
	})
	if err != nil {
		return "", 0, err
	}
	return name, len(leads), nil
}

// ArchiveExpired snapshots the records and alerts received before cutoff.
// Nothing is written when there is nothing to archive.
func (s *Scheduler) ArchiveExpired(ctx context.Context, cutoff time.Time) (string, error) {
	records, err := s.records.ListSince(ctx, time.Time{})
	if err != nil {
		return "", fmt.Errorf("failed to list records: %w", err)
	}
	alerts, err := s.alerts.ListAlertsSince(ctx, time.Time{})
	if err != nil {
		return "", fmt.Errorf("failed to list alerts: %w", err)
	}

	archive := Archive{Cutoff: cutoff}
	for _, r := range records {
		if r.ReceivedAt.Before(cutoff) {
			archive.Records = append(archive.Records, r)
		}
	}
	for _, a := range alerts {
		if a.CreatedAt.Before(cutoff) {
			archive.Alerts = append(archive.Alerts, a)
		}
	}
	if len(archive.Records) == 0 && len(archive.Alerts) == 0 {
		return "", nil
	}

	name, err := s.backups.Create(ctx, KindRUMArchive, archive, map[string]string{
		"record_count": strconv.Itoa(len(archive.Records)),
		"alert_count":  strconv.Itoa(len(archive.Alerts)),
		"cutoff":       cutoff.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	s.logger.Infow("archived expired RUM data",
		"backup_name", name,
		"records", len(archive.Records),
		"alerts", len(archive.Alerts),
	)
	return name, nil
}

// cleanup removes snapshots older than the keep window
func (s *Scheduler) cleanup(ctx context.Context) error {
	if s.cfg.Keep <= 0 {
		return nil
	}
	cutoff := s.now().Add(-s.cfg.Keep)
	for _, kind := range []string{KindLeads, KindRUMArchive} {
		deleted, err := s.backups.DeleteBefore(ctx, kind, cutoff)
		for _, name := range deleted {
			s.logger.Infow("deleted old backup", "backup_name", name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
