package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/putevi/briefing-api/internal/models"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
)

type fakeExportSrv struct {
	lastReq  models.ExportRequest
	filePath string
}

func (f *fakeExportSrv) Render(_ context.Context, req models.ExportRequest) (*models.ExportFile, error) {
	f.lastReq = req
	if req.Format != "" && !req.Format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported format")
	}
	return &models.ExportFile{Filename: "briefings_2024-06-15.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("a;b\r\n")}, nil
}

func (f *fakeExportSrv) CreateLink(_ context.Context, req models.ExportRequest) (*models.ExportLink, error) {
	f.lastReq = req
	return &models.ExportLink{URL: "/api/v1/export/tok", Filename: "briefings.pdf", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeExportSrv) Resolve(token string) (*os.File, string, error) {
	switch token {
	case "expired":
		return nil, "", appErrors.Clone(appErrors.ErrLinkExpired, "download link expired")
	case "good":
		file, err := os.Open(f.filePath)
		return file, filepath.Base(f.filePath), err
	}
	return nil, "", appErrors.Clone(appErrors.ErrNotFound, "download link not found")
}

func newExportRouter(srv *fakeExportSrv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewExportHandler(srv)
	r := gin.New()
	r.GET("/export", h.Download)
	r.POST("/export/links", h.CreateLink)
	r.GET("/export/:token", h.DownloadToken)
	return r
}

func TestExportHandlerDownload(t *testing.T) {
	srv := &fakeExportSrv{}
	r := newExportRouter(srv)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export?organization=Beta", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Beta", srv.lastReq.Organization)
	assert.Equal(t, "a;b\r\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="briefings_2024-06-15.csv"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export?format=docx", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportHandlerCreateLink(t *testing.T) {
	srv := &fakeExportSrv{}
	r := newExportRouter(srv)

	rec := postJSON(r, "/export/links", `{"format":"pdf"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.ExportFormatPDF, srv.lastReq.Format)
}

func TestExportHandlerDownloadToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "briefings.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04"), 0o600))
	r := newExportRouter(&fakeExportSrv{filePath: path})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/good", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Equal(t, "PK\x03\x04", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/expired", nil))
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
