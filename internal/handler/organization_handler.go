package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/putevi/briefing-api/internal/dto"
	"github.com/putevi/briefing-api/internal/models"
	"github.com/putevi/briefing-api/pkg/response"
)

type organizationService interface {
	Checklists(ctx context.Context) ([]models.OrganizationChecklist, error)
	Toggle(ctx context.Context, organization string, req dto.DocToggleRequest) (*models.OrganizationChecklist, error)
}

// OrganizationHandler manages per-organization document checklists.
type OrganizationHandler struct {
	service organizationService
}

// NewOrganizationHandler constructs the handler.
func NewOrganizationHandler(service organizationService) *OrganizationHandler {
	return &OrganizationHandler{service: service}
}

// Checklists godoc
// @Summary Document checklists of every organization on the roster
// @Tags Organizations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /organizations/docs [get]
func (h *OrganizationHandler) Checklists(c *gin.Context) {
	lists, err := h.service.Checklists(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lists, nil)
}

// Toggle godoc
// @Summary Mark one document of an organization done or pending
// @Tags Organizations
// @Accept json
// @Produce json
// @Param org path string true "Organization"
// @Param payload body dto.DocToggleRequest true "Toggle"
// @Success 200 {object} response.Envelope
// @Router /organizations/docs/{org} [put]
func (h *OrganizationHandler) Toggle(c *gin.Context) {
	var req dto.DocToggleRequest
	if !bindJSON(c, &req, "invalid checklist payload") {
		return
	}
	list, err := h.service.Toggle(c.Request.Context(), c.Param("org"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}
