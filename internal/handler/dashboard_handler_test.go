package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/dto"
	"github.com/putevi/briefing-api/internal/middleware"
	"github.com/putevi/briefing-api/internal/models"
)

type fakeDashboardSrv struct {
	resp *dto.DashboardResponse
	hit  bool
	err  error
}

func (f *fakeDashboardSrv) Dashboard(context.Context) (*dto.DashboardResponse, bool, error) {
	return f.resp, f.hit, f.err
}

type fakeAnalyticsSrv struct {
	summary compliance.Summary
	hit     bool
	err     error
	lastOrg string
}

func (f *fakeAnalyticsSrv) Summary(_ context.Context, organization string) (compliance.Summary, bool, error) {
	f.lastOrg = organization
	return f.summary, f.hit, f.err
}

func (f *fakeAnalyticsSrv) SystemMetrics() models.SystemMetrics {
	return models.SystemMetrics{}
}

func TestDashboardHandlerOverview(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		resp: &dto.DashboardResponse{Total: 12, NeedRetrain: 3, GeneratedAt: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)},
		hit:  true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Overview(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	assert.EqualValues(t, 12, envelope.Data["total"])
	assert.EqualValues(t, 3, envelope.Data["needRetrain"])
}

func TestDashboardHandlerOverviewError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{err: errors.New("boom")})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Overview(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAnalyticsHandlerSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{summary: compliance.Summary{Total: 4, ConformityRate: 50}}
	handler := NewAnalyticsHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analytics/summary?organization=ПУТЕВИ", nil)
	middleware.WithResponseMeta()(c)

	handler.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "ПУТЕВИ", srv.lastOrg)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, false, envelope.Meta["cache_hit"])
}

func TestAnalyticsHandlerNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAnalyticsHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analytics/system", nil)

	handler.System(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
