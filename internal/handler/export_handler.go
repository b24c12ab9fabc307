package handler

import (
	"context"
	"net/http"
	"os"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/putevi/briefing-api/internal/models"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
	"github.com/putevi/briefing-api/pkg/response"
)

type exportService interface {
	Render(ctx context.Context, req models.ExportRequest) (*models.ExportFile, error)
	CreateLink(ctx context.Context, req models.ExportRequest) (*models.ExportLink, error)
	Resolve(token string) (*os.File, string, error)
}

// ExportHandler serves roster exports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Download godoc
// @Summary Download the roster export
// @Tags Export
// @Produce text/csv
// @Param format query string false "csv|pdf|xlsx" default(csv)
// @Param organization query string false "Organization"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /export/employees [get]
func (h *ExportHandler) Download(c *gin.Context) {
	var req models.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.service.Render(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// CreateLink godoc
// @Summary Store an export and return a signed download link
// @Tags Export
// @Accept json
// @Produce json
// @Param payload body models.ExportRequest true "Export request"
// @Success 201 {object} response.Envelope
// @Router /export/employees/link [post]
func (h *ExportHandler) CreateLink(c *gin.Context) {
	var req models.ExportRequest
	if !bindJSON(c, &req, "invalid export request") {
		return
	}
	link, err := h.service.CreateLink(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// DownloadToken godoc
// @Summary Download a stored export through its signed token
// @Tags Export
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ExportHandler) DownloadToken(c *gin.Context) {
	file, filename, err := h.service.Resolve(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentTypeFor(filename), file, map[string]string{
		"Content-Disposition": response.ContentDisposition(filename),
	})
}

func contentTypeFor(filename string) string {
	switch path.Ext(filename) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}
