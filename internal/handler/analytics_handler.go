package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/middleware"
	"github.com/putevi/briefing-api/internal/models"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
	"github.com/putevi/briefing-api/pkg/response"
)

type analyticsService interface {
	Summary(ctx context.Context, organization string) (compliance.Summary, bool, error)
	SystemMetrics() models.SystemMetrics
}

// AnalyticsHandler exposes compliance analytics endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Summary godoc
// @Summary Compliance summary grouped by organization and responsible
// @Tags Analytics
// @Produce json
// @Param organization query string false "Restrict to one organization"
// @Success 200 {object} response.Envelope
// @Router /analytics [get]
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.analytics.Summary(c.Request.Context(), c.Query("organization"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.Processing(c, start))
}

// System returns instrumentation metrics snapshots.
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	metrics := h.analytics.SystemMetrics()
	middleware.SetCacheHit(c, false)
	response.JSON(c, http.StatusOK, metrics, nil, middleware.Processing(c, start))
}
