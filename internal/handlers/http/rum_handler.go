package http

import (
	"errors"
	"net/http"

	"finsite/internal/core/domain"
	"finsite/internal/core/ports"
	apperrors "finsite/pkg/errors"
	format "finsite/pkg/formats/rum"
	"finsite/pkg/optimize"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	_ ports.RUMHandler  = (*RUMHandler)(nil)
	_ ports.LeadHandler = (*LeadHandler)(nil)
	_ ports.PageHandler = (*PageHandler)(nil)
)

type RUMHandler struct {
	ingestion    ports.IngestionService
	analytics    ports.AnalyticsService
	staticExport bool
	maxBodyBytes int64
	logger       *zap.SugaredLogger
}

// RUMHandlerConfig carries the deployment switches the handler needs
type RUMHandlerConfig struct {
	StaticExport bool
	MaxBodyBytes int64
}

func NewRUMHandler(
	ingestion ports.IngestionService,
	analytics ports.AnalyticsService,
	cfg RUMHandlerConfig,
	logger *zap.SugaredLogger,
) *RUMHandler {
	return &RUMHandler{
		ingestion:    ingestion,
		analytics:    analytics,
		staticExport: cfg.StaticExport,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       logger,
	}
}

// SetupRoutes mounts the collector and the summary. ingest guards the
// public POST, summary guards the admin read.
func (h *RUMHandler) SetupRoutes(api *gin.RouterGroup, ingest, summary []gin.HandlerFunc) {
	api.POST("/rum", append(ingest, h.Ingest)...)
	api.GET("/rum", append(summary, h.Summary)...)
}

func (h *RUMHandler) Ingest(c *gin.Context) {
	if h.staticExport {
		_ = c.Error(apperrors.WrapError(domain.ErrStaticExport, apperrors.ErrCodeNotImplemented,
			"RUM collection is not available in static export mode", http.StatusNotImplemented))
		return
	}

	body, err := readBody(c, h.maxBodyBytes)
	if err != nil {
		_ = c.Error(err)
		return
	}

	batch, err := format.ParseBatch(body)
	if err != nil {
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest))
		return
	}

	result, err := h.ingestion.Ingest(c.Request.Context(), batch)
	if err != nil {
		_ = c.Error(apperrors.NewInternalError(err, "failed to ingest RUM batch"))
		return
	}

	c.JSON(http.StatusOK, format.IngestResponse{
		Success:   true,
		Processed: result.Processed,
		Alerts:    len(result.Alerts),
	})
}

func (h *RUMHandler) Summary(c *gin.Context) {
	tr, err := domain.ParseTimeRange(c.Query("timeRange"))
	if err != nil {
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest))
		return
	}

	summary, err := h.analytics.Summary(c.Request.Context(), tr, c.Query("metric"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, summary)
	case errors.Is(err, domain.ErrUnknownMetric), errors.Is(err, domain.ErrInvalidTimeRange):
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest))
	case errors.Is(err, domain.ErrStorageUnavailable):
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeServiceUnavailable, "summary unavailable", http.StatusServiceUnavailable))
	default:
		_ = c.Error(apperrors.NewInternalError(err, "failed to build summary"))
	}
}

// bodyPool backs request body reads; beacons arrive in bursts on page hide
var bodyPool = optimize.NewBufferPool(4<<10, 1<<20)

// readBody reads at most limit bytes of the request body
func readBody(c *gin.Context, limit int64) ([]byte, error) {
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	body, err := bodyPool.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.NewPayloadTooLargeError(tooLarge.Limit)
		}
		return nil, apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, "failed to read request body", http.StatusBadRequest)
	}
	return body, nil
}
