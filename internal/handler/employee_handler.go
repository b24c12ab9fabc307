package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/putevi/briefing-api/internal/dto"
	"github.com/putevi/briefing-api/internal/middleware"
	"github.com/putevi/briefing-api/internal/models"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
	"github.com/putevi/briefing-api/pkg/response"
)

type employeeService interface {
	List(ctx context.Context, q dto.EmployeeQuery) ([]dto.EmployeeView, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.EmployeeView, error)
	Create(ctx context.Context, req dto.EmployeeRequest) (*dto.EmployeeView, error)
	Update(ctx context.Context, id string, req dto.EmployeeRequest) (*dto.EmployeeView, error)
	Delete(ctx context.Context, id string) error
	Retrain(ctx context.Context, id string) (*dto.EmployeeView, error)
	UploadPhoto(ctx context.Context, id, filename, contentType string, body io.Reader) (*dto.EmployeeView, error)
	TrainingStatuses(ctx context.Context, id string) ([]dto.TrainingStatusView, error)
	ExportTrainings(ctx context.Context, id string) (*models.ExportFile, error)
	Organizations(ctx context.Context) ([]string, error)
	TrainingTypes() []string
}

// EmployeeHandler exposes the briefing roster.
type EmployeeHandler struct {
	service employeeService
}

// NewEmployeeHandler constructs the handler.
func NewEmployeeHandler(service employeeService) *EmployeeHandler {
	return &EmployeeHandler{service: service}
}

// List godoc
// @Summary List employees with derived briefing status
// @Tags Employees
// @Produce json
// @Param organization query string false "Organization"
// @Param status query string false "valid|warning|expired|invalid"
// @Param search query string false "Name, profession or responsible"
// @Param sort query string false "name|organization|days|trainingDate|createdAt"
// @Param order query string false "asc|desc"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /employees [get]
func (h *EmployeeHandler) List(c *gin.Context) {
	var q dto.EmployeeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	start := time.Now()
	items, page, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, page, middleware.Processing(c, start))
}

// Get godoc
// @Summary Get employee
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/{id} [get]
func (h *EmployeeHandler) Get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Create godoc
// @Summary Create employee
// @Tags Employees
// @Accept json
// @Produce json
// @Param payload body dto.EmployeeRequest true "Employee"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /employees [post]
func (h *EmployeeHandler) Create(c *gin.Context) {
	var req dto.EmployeeRequest
	if !bindJSON(c, &req, "invalid employee payload") {
		return
	}
	view, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Update godoc
// @Summary Update employee
// @Tags Employees
// @Accept json
// @Produce json
// @Param id path string true "Employee ID"
// @Param payload body dto.EmployeeRequest true "Employee"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "trainingDate changes go through /retrain"
// @Router /employees/{id} [put]
func (h *EmployeeHandler) Update(c *gin.Context) {
	var req dto.EmployeeRequest
	if !bindJSON(c, &req, "invalid employee payload") {
		return
	}
	view, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Delete godoc
// @Summary Delete employee
// @Tags Employees
// @Param id path string true "Employee ID"
// @Success 204
// @Router /employees/{id} [delete]
func (h *EmployeeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Retrain godoc
// @Summary Record a briefing held today
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/retrain [post]
func (h *EmployeeHandler) Retrain(c *gin.Context) {
	view, err := h.service.Retrain(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// UploadPhoto godoc
// @Summary Upload employee photo
// @Tags Employees
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Employee ID"
// @Param photo formData file true "Image"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/photo [post]
func (h *EmployeeHandler) UploadPhoto(c *gin.Context) {
	header, err := c.FormFile("photo")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "photo file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, _ := io.ReadFull(file, sniff)
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
			return
		}
	}

	view, err := h.service.UploadPhoto(c.Request.Context(), c.Param("id"), header.Filename, contentType, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// TrainingStatuses godoc
// @Summary Status of each additional training
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/trainings/status [get]
func (h *EmployeeHandler) TrainingStatuses(c *gin.Context) {
	items, err := h.service.TrainingStatuses(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ExportTrainings godoc
// @Summary Download the employee's trainings as CSV
// @Tags Employees
// @Produce text/csv
// @Param id path string true "Employee ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /employees/{id}/trainings/export [get]
func (h *EmployeeHandler) ExportTrainings(c *gin.Context) {
	file, err := h.service.ExportTrainings(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Organizations godoc
// @Summary Distinct organization names
// @Tags Employees
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /organizations [get]
func (h *EmployeeHandler) Organizations(c *gin.Context) {
	orgs, err := h.service.Organizations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orgs, nil)
}

// TrainingTypes godoc
// @Summary Configured additional training types
// @Tags Employees
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /training-types [get]
func (h *EmployeeHandler) TrainingTypes(c *gin.Context) {
	response.JSON(c, http.StatusOK, dto.TrainingTypesResponse{Types: h.service.TrainingTypes()}, nil)
}
