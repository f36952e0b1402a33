package http

import (
	"encoding/json"
	"net/http"

	"finsite/internal/core/domain"
	"finsite/internal/core/ports"
	apperrors "finsite/pkg/errors"

	"github.com/gin-gonic/gin"
)

const maxLeadBodyBytes = 64 << 10

type LeadHandler struct {
	leadService ports.LeadService
}

func NewLeadHandler(leadService ports.LeadService) *LeadHandler {
	return &LeadHandler{leadService: leadService}
}

func (h *LeadHandler) SetupRoutes(api *gin.RouterGroup, mw ...gin.HandlerFunc) {
	api.POST("/contact", append(mw, h.Submit)...)
}

func (h *LeadHandler) Submit(c *gin.Context) {
	body, err := readBody(c, maxLeadBodyBytes)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req domain.LeadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, "invalid request body", http.StatusBadRequest))
		return
	}

	lead, err := h.leadService.Submit(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"id":      lead.ID,
	})
}
