package dto

import "time"

// DashboardResponse captures the roster dashboard payload.
type DashboardResponse struct {
	Total                   int               `json:"total"`
	NeedRetrain             int               `json:"needRetrain"`
	Invalid                 int               `json:"invalid"`
	OrganizationCount       int               `json:"organizationCount"`
	EmployeesByOrganization []NamedCount      `json:"employeesByOrganization"`
	TopProfessions          []NamedCount      `json:"topProfessions"`
	ExpiringSoon            []ExpiringSoonRow `json:"expiringSoon"`
	GeneratedAt             time.Time         `json:"generatedAt"`
}

// NamedCount is a label with an occurrence count.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ExpiringSoonRow is an employee whose briefing lapses within the dashboard window.
type ExpiringSoonRow struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Days         int    `json:"days"`
	DaysToExpire int    `json:"daysToExpire"`
}
