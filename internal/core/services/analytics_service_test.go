package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"finsite/internal/core/domain"
	"finsite/pkg/formats/rum"
	"finsite/pkg/vitals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func lcpRecord(session, url string, lcp float64) *domain.RUMRecord {
	return &domain.RUMRecord{Data: rum.Data{
		SessionID:   session,
		URL:         url,
		Performance: rum.Performance{WebVitals: &rum.WebVitals{LCP: rum.Float(lcp)}},
	}}
}

func newAnalytics(records *MockRUMRepository, alerts *MockAlertRepository) *analyticsService {
	svc := NewAnalyticsService(records, alerts, time.Minute, nil).(*analyticsService)
	svc.now = func() time.Time { return receivedAt }
	return svc
}

func TestSummary_Aggregates(t *testing.T) {
	records := new(MockRUMRepository)
	alerts := new(MockAlertRepository)
	since := receivedAt.Add(-24 * time.Hour)

	recs := []*domain.RUMRecord{
		lcpRecord("s1", "https://example.com/", 1000),
		lcpRecord("s1", "https://example.com/about", 2000),
		lcpRecord("s2", "https://example.com/", 3000),
		lcpRecord("s3", "https://example.com/", 5000),
	}
	recs[0].Data.Errors = []rum.ErrorEntry{{Message: "e"}}
	recs[0].Data.Performance.WebVitals.CLS = rum.Float(0.3)

	records.On("ListSince", mock.Anything, since).Return(recs, nil)
	alerts.On("ListAlertsSince", mock.Anything, since).Return([]*domain.PerformanceAlert{
		{Type: domain.AlertLCPPoor},
		{Type: domain.AlertCLSPoor},
		{Type: domain.AlertLCPPoor},
	}, nil)

	svc := newAnalytics(records, alerts)
	sum, err := svc.Summary(context.Background(), domain.Range24h, "")
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Records)
	assert.Equal(t, 3, sum.Sessions)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 2, sum.Alerts[domain.AlertLCPPoor])
	assert.Equal(t, 1, sum.Alerts[domain.AlertCLSPoor])

	lcp := sum.Metrics[vitals.LCP]
	require.NotNil(t, lcp)
	assert.Equal(t, 4, lcp.Count)
	assert.Equal(t, 2000.0, lcp.P50)
	assert.Equal(t, 3000.0, lcp.P75)
	assert.Equal(t, 5000.0, lcp.P95)
	assert.Equal(t, 2, lcp.Good)
	assert.Equal(t, 1, lcp.NeedsImprovement)
	assert.Equal(t, 1, lcp.Poor)
	assert.Equal(t, vitals.RatingNeedsImprovement, lcp.Rating)

	require.Len(t, sum.TopPages, 2)
	assert.Equal(t, "/", sum.TopPages[0].Path)
	assert.Equal(t, 3, sum.TopPages[0].Views)
	assert.Equal(t, 5000.0, sum.TopPages[0].LCP75)
}

func TestSummary_MetricFilterAndCache(t *testing.T) {
	records := new(MockRUMRepository)
	alerts := new(MockAlertRepository)

	rec := lcpRecord("s1", "/", 1000)
	rec.Data.Performance.WebVitals.CLS = rum.Float(0.05)
	records.On("ListSince", mock.Anything, mock.Anything).Return([]*domain.RUMRecord{rec}, nil).Once()
	alerts.On("ListAlertsSince", mock.Anything, mock.Anything).Return([]*domain.PerformanceAlert{}, nil).Once()

	svc := newAnalytics(records, alerts)
	sum, err := svc.Summary(context.Background(), domain.Range1h, "cls")
	require.NoError(t, err)
	assert.Equal(t, "CLS", sum.Metric)
	assert.Len(t, sum.Metrics, 1)
	assert.Contains(t, sum.Metrics, vitals.CLS)

	again, err := svc.Summary(context.Background(), domain.Range1h, "CLS")
	require.NoError(t, err)
	assert.Same(t, sum, again)
	records.AssertNumberOfCalls(t, "ListSince", 1)
}

func TestSummary_UnknownMetric(t *testing.T) {
	svc := newAnalytics(new(MockRUMRepository), new(MockAlertRepository))
	_, err := svc.Summary(context.Background(), domain.Range24h, "speed")
	assert.ErrorIs(t, err, domain.ErrUnknownMetric)
}

func TestSummary_StorageError(t *testing.T) {
	records := new(MockRUMRepository)
	records.On("ListSince", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

	svc := newAnalytics(records, new(MockAlertRepository))
	_, err := svc.Summary(context.Background(), domain.Range7d, "")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 0.0, percentile(nil, 0.5))
	assert.Equal(t, 7.0, percentile([]float64{7}, 0.95))
	assert.Equal(t, 5.0, percentile([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.5))
}

func TestPagePath(t *testing.T) {
	assert.Equal(t, "/", pagePath("https://example.com"))
	assert.Equal(t, "/services", pagePath("https://example.com/services?utm=x"))
	assert.Equal(t, "/", pagePath(""))
	assert.Equal(t, "/contact", pagePath("/contact"))
}
