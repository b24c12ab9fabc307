package dto

import (
	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/models"
)

// EmployeeRequest is the payload of POST /employees and PUT /employees/:id.
type EmployeeRequest struct {
	Name                string                  `json:"name" validate:"required"`
	Profession          string                  `json:"profession"`
	Organization        string                  `json:"organization"`
	Responsible         string                  `json:"responsible"`
	BirthDate           *models.Date            `json:"birthDate"`
	TrainingDate        *models.Date            `json:"trainingDate" validate:"required"`
	AdditionalTrainings []models.TrainingRecord `json:"additionalTrainings" validate:"dive"`
	Comment             string                  `json:"comment"`
}

// EmployeeQuery holds GET /employees query parameters.
type EmployeeQuery struct {
	Organization string `form:"organization"`
	Status       string `form:"status"`
	Search       string `form:"search"`
	Sort         string `form:"sort"`
	Order        string `form:"order"`
	Page         int    `form:"page"`
	Limit        int    `form:"limit"`
}

// EmployeeView is an employee enriched with its derived briefing state.
type EmployeeView struct {
	models.Employee
	Status               *compliance.DerivedStatus `json:"status,omitempty"`
	StatusError          string                    `json:"statusError,omitempty"`
	HasExpiredAdditional bool                      `json:"hasExpiredAdditional"`
}

// TrainingStatusView reports one additional training, or why it could not be evaluated.
type TrainingStatusView struct {
	Index  int                        `json:"index"`
	Type   string                     `json:"type"`
	Status *compliance.TrainingStatus `json:"status,omitempty"`
	Error  string                     `json:"error,omitempty"`
}

// TrainingTypesResponse lists the configured additional training labels.
type TrainingTypesResponse struct {
	Types []string `json:"types"`
}

// UserQuery holds GET /users query parameters.
type UserQuery struct {
	Page     int    `form:"page,default=1" binding:"min=0"`
	PageSize int    `form:"page_size,default=20" binding:"min=0"`
	Role     string `form:"role" binding:"omitempty,oneof=ADMIN VIEWER"`
	Active   *bool  `form:"active"`
	Search   string `form:"search"`
}

// Filter converts the query into a repository filter.
func (q UserQuery) Filter() models.UserFilter {
	f := models.UserFilter{Page: q.Page, PageSize: q.PageSize, Active: q.Active, Search: q.Search}
	if q.Role != "" {
		role := models.UserRole(q.Role)
		f.Role = &role
	}
	return f
}
