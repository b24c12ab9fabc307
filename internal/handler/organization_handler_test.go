package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/putevi/briefing-api/internal/dto"
	"github.com/putevi/briefing-api/internal/models"
)

type fakeOrganizationSrv struct {
	org    string
	toggle dto.DocToggleRequest
}

func (f *fakeOrganizationSrv) Checklists(context.Context) ([]models.OrganizationChecklist, error) {
	return []models.OrganizationChecklist{{Organization: "Alpha", Employees: 2, Docs: models.DocChecklist{"Приказы": true}, Completed: 1, TotalDocs: 1}}, nil
}

func (f *fakeOrganizationSrv) Toggle(_ context.Context, organization string, req dto.DocToggleRequest) (*models.OrganizationChecklist, error) {
	f.org, f.toggle = organization, req
	return &models.OrganizationChecklist{Organization: organization}, nil
}

func TestOrganizationHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeOrganizationSrv{}
	h := NewOrganizationHandler(srv)
	r := gin.New()
	r.GET("/organizations/docs", h.Checklists)
	r.PUT("/organizations/docs/:org", h.Toggle)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/organizations/docs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []models.OrganizationChecklist `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.True(t, body.Data[0].Docs["Приказы"])

	req := httptest.NewRequest(http.MethodPut, "/organizations/docs/%D0%9F%D0%A3%D0%A2%D0%95%D0%92%D0%98", strings.NewReader(`{"key":"Журналы","done":true}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ПУТЕВИ", srv.org)
	assert.Equal(t, dto.DocToggleRequest{Key: "Журналы", Done: true}, srv.toggle)
}

type stubPinger struct{ err error }

func (s stubPinger) PingContext(context.Context) error { return s.err }

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewMetricsHandler(nil, map[string]Pinger{"postgres": stubPinger{}, "redis": PingFunc(func(context.Context) error { return nil })})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewMetricsHandler(nil, map[string]Pinger{"postgres": stubPinger{err: errors.New("connection refused")}})
	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
