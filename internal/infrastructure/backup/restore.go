package backup

import (
	"context"
	"errors"
	"fmt"

	"finsite/internal/core/domain"
	"finsite/internal/core/ports"
	"finsite/pkg/backup"

	"go.uber.org/zap"
)

// RestoreResult counts what a lead restore did
type RestoreResult struct {
	BackupName string
	Restored   int
	Skipped    int
}

// RestoreService loads lead snapshots back into a repository
type RestoreService struct {
	backups *backup.Service
	leads   ports.LeadRepository
	logger  *zap.SugaredLogger
}

// NewRestoreService creates a new restore service
func NewRestoreService(backups *backup.Service, leads ports.LeadRepository, logger *zap.SugaredLogger) *RestoreService {
	return &RestoreService{
		backups: backups,
		leads:   leads,
		logger:  logger,
	}
}

// RestoreLeads inserts the leads of snapshot name that the repository does
// not have yet. An empty name picks the newest lead snapshot.
func (rs *RestoreService) RestoreLeads(ctx context.Context, name string) (RestoreResult, error) {
	if name == "" {
		latest, err := rs.backups.Latest(ctx, KindLeads)
		if err != nil {
			return RestoreResult{}, fmt.Errorf("failed to find lead snapshot: %w", err)
		}
		if latest == "" {
			return RestoreResult{}, nil
		}
		name = latest
	}

	snap, err := rs.backups.Restore(ctx, name)
	if err != nil {
		return RestoreResult{}, err
	}
	if snap.Kind != KindLeads {
		return RestoreResult{}, fmt.Errorf("backup %s holds %q, not leads", name, snap.Kind)
	}

	var leads []*domain.Lead
	if err := snap.Decode(&leads); err != nil {
		return RestoreResult{}, fmt.Errorf("failed to decode leads from %s: %w", name, err)
	}

	res := RestoreResult{BackupName: name}
	for _, lead := range leads {
		_, err := rs.leads.GetLead(ctx, lead.ID)
		switch {
		case err == nil:
			res.Skipped++
			continue
		case !errors.Is(err, domain.ErrLeadNotFound):
			return res, fmt.Errorf("failed to check lead %s: %w", lead.ID, err)
		}
		if err := rs.leads.CreateLead(ctx, lead); err != nil {
			return res, fmt.Errorf("failed to restore lead %s: %w", lead.ID, err)
		}
		res.Restored++
	}

	rs.logger.Infow("restored leads", "backup_name", name, "restored", res.Restored, "skipped", res.Skipped)
	return res, nil
}
