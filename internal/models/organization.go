package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// NoOrganization groups employees without an organization.
const NoOrganization = "Без организации"

// DefaultOrganizationDocs are the checklist keys every organization starts with.
var DefaultOrganizationDocs = []string{
	"Акт допуск",
	"Приказы",
	"Удостоверения",
	"Проектная док.",
	"Инструкции",
	"Журналы",
}

// DocChecklist maps a document key to its completion flag.
type DocChecklist map[string]bool

// Value implements driver.Valuer.
func (d DocChecklist) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]bool(d))
}

// Scan implements sql.Scanner.
func (d *DocChecklist) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*d = DocChecklist{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into DocChecklist", src)
	}
	out := DocChecklist{}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*d = out
	return nil
}

// OrganizationDocs is a stored checklist row.
type OrganizationDocs struct {
	Organization string       `db:"organization" json:"organization"`
	Docs         DocChecklist `db:"docs" json:"docs"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

// OrganizationChecklist is the merged view returned to clients.
type OrganizationChecklist struct {
	Organization string       `json:"organization"`
	Employees    int          `json:"employees"`
	Docs         DocChecklist `json:"docs"`
	Completed    int          `json:"completed"`
	TotalDocs    int          `json:"totalDocs"`
}
