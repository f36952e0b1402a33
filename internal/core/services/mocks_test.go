package services

import (
	"context"
	"time"

	"finsite/internal/core/domain"
	"finsite/pkg/vitals"

	"github.com/stretchr/testify/mock"
)

type MockRUMRepository struct {
	mock.Mock
}

func (m *MockRUMRepository) SaveRecords(ctx context.Context, records []*domain.RUMRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockRUMRepository) ListSince(ctx context.Context, since time.Time) ([]*domain.RUMRecord, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RUMRecord), args.Error(1)
}

func (m *MockRUMRepository) Prune(ctx context.Context, before time.Time) (int, error) {
	args := m.Called(ctx, before)
	return args.Int(0), args.Error(1)
}

type MockAlertRepository struct {
	mock.Mock
}

func (m *MockAlertRepository) SaveAlerts(ctx context.Context, alerts []*domain.PerformanceAlert) error {
	args := m.Called(ctx, alerts)
	return args.Error(0)
}

func (m *MockAlertRepository) ListAlertsSince(ctx context.Context, since time.Time) ([]*domain.PerformanceAlert, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PerformanceAlert), args.Error(1)
}

func (m *MockAlertRepository) PruneAlerts(ctx context.Context, before time.Time) (int, error) {
	args := m.Called(ctx, before)
	return args.Int(0), args.Error(1)
}

type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) CreateLead(ctx context.Context, lead *domain.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

func (m *MockLeadRepository) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lead), args.Error(1)
}

func (m *MockLeadRepository) ListLeads(ctx context.Context, limit int) ([]*domain.Lead, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Lead), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(alert *domain.PerformanceAlert) {
	m.Called(alert)
}

// recordingMetrics counts calls without asserting on them
type recordingMetrics struct {
	ingested        int
	vitals          map[vitals.MetricName]int
	alerts          map[domain.AlertType]int
	storageFailures int
	leads           int
	clients         int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		vitals: make(map[vitals.MetricName]int),
		alerts: make(map[domain.AlertType]int),
	}
}

func (r *recordingMetrics) RecordIngest(records int, alerts int) { r.ingested += records }
func (r *recordingMetrics) ObserveVital(name vitals.MetricName, value float64, rating vitals.Rating) {
	r.vitals[name]++
}
func (r *recordingMetrics) RecordAlert(t domain.AlertType, s vitals.Severity) { r.alerts[t]++ }
func (r *recordingMetrics) RecordStorageFailure(operation string)           { r.storageFailures++ }
func (r *recordingMetrics) RecordLead(service string)                      { r.leads++ }
func (r *recordingMetrics) RecordClient(browser string, mobile bool)       { r.clients++ }
