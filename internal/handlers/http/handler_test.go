package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finsite/internal/core/domain"
	"finsite/internal/infrastructure/middleware"
	apperrors "finsite/pkg/errors"
	format "finsite/pkg/formats/rum"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockIngestionService struct{ mock.Mock }

func (m *MockIngestionService) Ingest(ctx context.Context, batch format.Batch) (*domain.IngestResult, error) {
	args := m.Called(ctx, batch)
	if r := args.Get(0); r != nil {
		return r.(*domain.IngestResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockAnalyticsService struct{ mock.Mock }

func (m *MockAnalyticsService) Summary(ctx context.Context, tr domain.TimeRange, metric string) (*domain.Summary, error) {
	args := m.Called(ctx, tr, metric)
	if s := args.Get(0); s != nil {
		return s.(*domain.Summary), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockLeadService struct{ mock.Mock }

func (m *MockLeadService) Submit(ctx context.Context, req domain.LeadRequest, clientIP string) (*domain.Lead, error) {
	args := m.Called(ctx, req, clientIP)
	if l := args.Get(0); l != nil {
		return l.(*domain.Lead), args.Error(1)
	}
	return nil, args.Error(1)
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	return router
}

func newRUMRouter(ingest *MockIngestionService, analytics *MockAnalyticsService, cfg RUMHandlerConfig) *gin.Engine {
	router := newRouter()
	NewRUMHandler(ingest, analytics, cfg, zap.NewNop().Sugar()).SetupRoutes(router.Group("/api"), nil, nil)
	return router
}

func do(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRUMHandler_Ingest(t *testing.T) {
	ingest := &MockIngestionService{}
	ingest.On("Ingest", mock.Anything, mock.MatchedBy(func(b format.Batch) bool {
		return len(b.Data) == 2 && b.Data[0].SessionID == "s1"
	})).Return(&domain.IngestResult{
		Processed: 2,
		Alerts:    []*domain.PerformanceAlert{{Type: domain.AlertCLSPoor}},
		Stored:    true,
	}, nil)

	router := newRUMRouter(ingest, &MockAnalyticsService{}, RUMHandlerConfig{MaxBodyBytes: 1 << 20})
	w := do(router, http.MethodPost, "/api/rum",
		`{"data":[{"sessionId":"s1","url":"https://example.com/"},{"sessionId":"s1"}],"timestamp":1700000000000}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp format.IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, format.IngestResponse{Success: true, Processed: 2, Alerts: 1}, resp)
	ingest.AssertExpectations(t)
}

func TestRUMHandler_IngestAcceptsOutOfRangeNumbers(t *testing.T) {
	ingest := &MockIngestionService{}
	ingest.On("Ingest", mock.Anything, mock.MatchedBy(func(b format.Batch) bool {
		return len(b.Data) == 1 && b.Data[0].Viewport.Width == 1280.5 && b.Data[0].Viewport.Height == 1e20
	})).Return(&domain.IngestResult{Processed: 1}, nil)

	router := newRUMRouter(ingest, &MockAnalyticsService{}, RUMHandlerConfig{MaxBodyBytes: 1 << 20})
	w := do(router, http.MethodPost, "/api/rum",
		`{"data":[{"sessionId":"s1","viewport":{"width":1280.5,"height":1e20},"performance":{"resources":{"transferSize":1e30}}}],"timestamp":1730000000000.5}`)

	require.Equal(t, http.StatusOK, w.Code)
	ingest.AssertExpectations(t)
}

func TestRUMHandler_IngestRejectsBadBodies(t *testing.T) {
	ingest := &MockIngestionService{}
	router := newRUMRouter(ingest, &MockAnalyticsService{}, RUMHandlerConfig{MaxBodyBytes: 64})

	for name, body := range map[string]string{
		"empty object": `{}`,
		"data object":  `{"data":{}}`,
		"not json":     `{"data":[`,
		"array":        `[]`,
	} {
		t.Run(name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/api/rum", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, jsonBody(t, w)["success"])
		})
	}

	w := do(router, http.MethodPost, "/api/rum", `{"data":[{"url":"`+strings.Repeat("a", 100)+`"}]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	ingest.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
}

func TestRUMHandler_StaticExport(t *testing.T) {
	ingest := &MockIngestionService{}
	router := newRUMRouter(ingest, &MockAnalyticsService{}, RUMHandlerConfig{StaticExport: true})

	w := do(router, http.MethodPost, "/api/rum", `{"data":[]}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, string(apperrors.ErrCodeNotImplemented), jsonBody(t, w)["code"])
	ingest.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
}

func TestRUMHandler_IngestFailureIsGeneric(t *testing.T) {
	ingest := &MockIngestionService{}
	ingest.On("Ingest", mock.Anything, mock.Anything).Return(nil, errors.New("sanitizer exploded"))

	router := newRUMRouter(ingest, &MockAnalyticsService{}, RUMHandlerConfig{})
	w := do(router, http.MethodPost, "/api/rum", `{"data":[]}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "exploded")
}

func TestRUMHandler_Summary(t *testing.T) {
	analytics := &MockAnalyticsService{}
	summary := &domain.Summary{TimeRange: domain.TimeRange("7d"), Metric: "LCP", Records: 4}
	analytics.On("Summary", mock.Anything, domain.TimeRange("7d"), "LCP").Return(summary, nil)
	analytics.On("Summary", mock.Anything, domain.DefaultTimeRange, "XYZ").
		Return(nil, fmt.Errorf("%w: %q", domain.ErrUnknownMetric, "XYZ"))
	analytics.On("Summary", mock.Anything, domain.DefaultTimeRange, "").
		Return(nil, fmt.Errorf("%w: breaker open", domain.ErrStorageUnavailable))

	router := newRUMRouter(&MockIngestionService{}, analytics, RUMHandlerConfig{})

	w := do(router, http.MethodGet, "/api/rum?timeRange=7d&metric=LCP", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := jsonBody(t, w)
	assert.Equal(t, "7d", body["timeRange"])
	assert.Equal(t, float64(4), body["records"])

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/api/rum?timeRange=2w", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/api/rum?metric=XYZ", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(router, http.MethodGet, "/api/rum", "").Code)
}

func TestLeadHandler_Submit(t *testing.T) {
	leads := &MockLeadService{}
	leads.On("Submit", mock.Anything, mock.MatchedBy(func(r domain.LeadRequest) bool {
		return r.Email == "ana@example.com"
	}), mock.Anything).Return(&domain.Lead{ID: "lead_1"}, nil)
	leads.On("Submit", mock.Anything, mock.MatchedBy(func(r domain.LeadRequest) bool {
		return r.Email == "nope"
	}), mock.Anything).Return(nil, apperrors.NewInvalidInputError("email is invalid"))

	router := newRouter()
	NewLeadHandler(leads).SetupRoutes(router.Group("/api"))

	w := do(router, http.MethodPost, "/api/contact", `{"name":"Ana","email":"ana@example.com","message":"Hello there"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "lead_1", jsonBody(t, w)["id"])

	w = do(router, http.MethodPost, "/api/contact", `{"name":"Ana","email":"nope","message":"Hello there"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email is invalid", jsonBody(t, w)["error"])

	w = do(router, http.MethodPost, "/api/contact", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func writePages(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	pages := map[string]string{
		"home.html":  `<html><script nonce="{{csp_nonce}}">init()</script></html>`,
		"about.html": `<html>about</html>`,
		"404.html":   `<html>lost</html>`,
	}
	for name, body := range pages {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestPageHandler(t *testing.T) {
	dir := writePages(t)
	router := newRouter()
	NewPageHandler(dir, time.Minute, zap.NewNop().Sugar()).SetupRoutes(router)

	w := do(router, http.MethodGet, "/about", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>about</html>", w.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	w = do(router, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `<html><script>init()</script></html>`, w.Body.String())

	// services.html is missing, so the 404 page is served
	w = do(router, http.MethodGet, "/services", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "<html>lost</html>", w.Body.String())

	w = do(router, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := jsonBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "endpoint not found", body["error"])
	assert.Equal(t, string(apperrors.ErrCodeNotFound), body["code"])
}

func TestPageHandler_InjectsNonce(t *testing.T) {
	dir := writePages(t)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.NonceKey, "n0nce")
		c.Next()
	})
	NewPageHandler(dir, 0, zap.NewNop().Sugar()).SetupRoutes(router)

	w := do(router, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `<html><script nonce="n0nce">init()</script></html>`, w.Body.String())

	// the cached template stays untouched
	w = do(router, http.MethodGet, "/", "")
	assert.Contains(t, w.Body.String(), `nonce="n0nce"`)
}
