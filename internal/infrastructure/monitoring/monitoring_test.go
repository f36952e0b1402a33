package monitoring

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finsite/internal/core/domain"
	"finsite/pkg/vitals"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_Counters(t *testing.T) {
	p := NewPrometheusCollector(prometheus.NewRegistry())

	p.RecordIngest(3, 1)
	p.RecordIngest(2, 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(p.batchesTotal))
	assert.Equal(t, 5.0, testutil.ToFloat64(p.recordsTotal))

	p.RecordAlert(domain.AlertCLSPoor, vitals.SeverityMedium)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.alertsTotal.WithLabelValues("cls_poor", "medium")))

	p.ObserveVital(vitals.LCP, 2600, vitals.RatingNeedsImprovement)
	p.ObserveVital(vitals.CLS, 0.02, vitals.RatingGood)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.vitalRatings.WithLabelValues("LCP", "needs-improvement")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.vitalRatings.WithLabelValues("CLS", "good")))

	p.RecordLead("")
	assert.Equal(t, 1.0, testutil.ToFloat64(p.leadsTotal.WithLabelValues("unspecified")))

	p.RecordClient("Safari", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.clientsTotal.WithLabelValues("Safari", "mobile")))

	p.RecordStorageFailure("save_records")
	p.RecordHeaderFallback()
	p.RecordRateLimited("http")
	p.SetAlertStreamClients(4)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.storageErrors.WithLabelValues("save_records")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.headerFallbacks))
	assert.Equal(t, 4.0, testutil.ToFloat64(p.alertStreamClients))
}

func TestPrometheusCollector_Handler(t *testing.T) {
	p := NewPrometheusCollector(prometheus.NewRegistry())
	p.ObserveRequest("POST", "/api/rum", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `finsite_http_requests_total{method="POST",route="/api/rum",status="200"} 1`))
	assert.Contains(t, body, "go_goroutines")
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("storage", func(ctx context.Context) error { return nil }, time.Second)

	status := h.CheckAll(context.Background())
	assert.True(t, status.Healthy())
	assert.Equal(t, StatusHealthy, status.Checks["storage"])

	h.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)
	h.AddCheck("broken", func(ctx context.Context) error { return errors.New("refused") }, time.Second)

	status = h.CheckAll(context.Background())
	assert.False(t, status.Healthy())
	assert.Equal(t, "refused", status.Checks["broken"])
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"])
	assert.Equal(t, StatusHealthy, status.Checks["storage"])
}
