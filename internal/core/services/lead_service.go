package services

import (
	"context"
	"time"

	"finsite/internal/core/domain"
	"finsite/internal/core/ports"
	apperrors "finsite/pkg/errors"
	"finsite/pkg/utils"
	"finsite/pkg/validation"

	"go.uber.org/zap"
)

const (
	maxLeadNameLen    = 100
	maxLeadCompanyLen = 200
	maxLeadMessageLen = 5000
	maxLeadSourceLen  = 500
)

type leadService struct {
	repo    ports.LeadRepository
	metrics ports.MetricsCollector
	logger  *zap.Logger
	now     func() time.Time
}

func NewLeadService(repo ports.LeadRepository, metrics ports.MetricsCollector, logger *zap.Logger) ports.LeadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &leadService{
		repo:    repo,
		metrics: metrics,
		logger:  logger.With(zap.String("service", "leads")),
		now:     time.Now,
	}
}

// Submit validates and stores a contact request. Validation failures are
// returned as invalid-input errors; storage failures as internal errors.
func (s *leadService) Submit(ctx context.Context, req domain.LeadRequest, clientIP string) (*domain.Lead, error) {
	lead := &domain.Lead{
		ID:        utils.GenerateLeadID(),
		Name:      utils.SanitizeString(req.Name),
		Email:     utils.NormalizeEmail(req.Email),
		Phone:     utils.SanitizeString(req.Phone),
		Company:   utils.SanitizeString(req.Company),
		Service:   utils.SanitizeString(req.Service),
		Message:   utils.SanitizeMultiline(req.Message),
		SourceURL: utils.Truncate(utils.SanitizeString(req.SourceURL), maxLeadSourceLen),
		ClientIP:  clientIP,
		CreatedAt: s.now(),
	}

	if err := validateLead(lead); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	if err := s.repo.CreateLead(ctx, lead); err != nil {
		s.logger.Error("failed to store lead", zap.String("lead_id", lead.ID), zap.Error(err))
		return nil, apperrors.NewInternalError(err, "failed to store lead")
	}

	if s.metrics != nil {
		s.metrics.RecordLead(lead.Service)
	}
	s.logger.Info("lead received",
		zap.String("lead_id", lead.ID),
		zap.String("email", utils.MaskEmail(lead.Email)),
		zap.String("service", lead.Service),
	)
	return lead, nil
}

func validateLead(l *domain.Lead) error {
	checks := []error{
		validation.ValidateStringLength(l.Name, 2, maxLeadNameLen, "name"),
		validation.ValidateEmail(l.Email),
		validation.ValidatePhone(l.Phone),
		validation.ValidateStringLength(l.Company, 0, maxLeadCompanyLen, "company"),
		validation.ValidateOneOf(l.Service, domain.Services, "service"),
		validation.ValidateStringLength(l.Message, 10, maxLeadMessageLen, "message"),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
