package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// OtherTrainingType is the catch-all additional training label.
const OtherTrainingType = "Прочее"

// Employee is one row of the briefing roster.
type Employee struct {
	ID                  string          `db:"id" json:"id"`
	Name                string          `db:"name" json:"name"`
	Profession          string          `db:"profession" json:"profession"`
	Organization        string          `db:"organization" json:"organization"`
	Responsible         string          `db:"responsible" json:"responsible"`
	BirthDate           *Date           `db:"birth_date" json:"birthDate,omitempty"`
	TrainingDate        *Date           `db:"training_date" json:"trainingDate"`
	AdditionalTrainings TrainingRecords `db:"additional_trainings" json:"additionalTrainings"`
	PhotoURL            string          `db:"photo_url" json:"photoUrl"`
	Comment             string          `db:"comment" json:"comment"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updatedAt"`
}

// HasTrainingDate reports whether the primary briefing date is usable.
func (e Employee) HasTrainingDate() bool {
	return e.TrainingDate != nil && !e.TrainingDate.IsZero()
}

// EmployeeFilter narrows the rows fetched from storage.
type EmployeeFilter struct {
	Organization string
	Search       string
}

// TrainingRecord is one additional certification with its own validity period.
type TrainingRecord struct {
	Type           string  `json:"type" validate:"required"`
	DateReceived   *Date   `json:"dateReceived" validate:"required"`
	ExpiryMonths   int     `json:"expiryMonths" validate:"gt=0"`
	CertificateURL string  `json:"certificateUrl,omitempty"`
	Hours          float64 `json:"hours,omitempty" validate:"gte=0"`
}

// rawTraining mirrors every field-name variant found in stored documents.
type rawTraining struct {
	Type           *string         `json:"type"`
	Title          *string         `json:"title"`
	DateReceived   *string         `json:"dateReceived"`
	CompletedAt    *string         `json:"completed_at"`
	Date           *string         `json:"date"`
	ExpiryMonths   json.RawMessage `json:"expiryMonths"`
	CertificateURL *string         `json:"certificateUrl"`
	CertificateRaw *string         `json:"certificate_url"`
	Certificate    *string         `json:"certificate"`
	URL            *string         `json:"url"`
	Hours          json.RawMessage `json:"hours"`
	Duration       json.RawMessage `json:"duration"`
}

// UnmarshalJSON maps legacy field names onto the canonical shape.
func (t *TrainingRecord) UnmarshalJSON(data []byte) error {
	var raw rawTraining
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := TrainingRecord{
		Type:           firstNonEmpty(raw.Type, raw.Title),
		CertificateURL: firstNonEmpty(raw.CertificateURL, raw.CertificateRaw, raw.Certificate, raw.URL),
	}
	if dateRaw := firstNonEmpty(raw.DateReceived, raw.CompletedAt, raw.Date); dateRaw != "" {
		d, err := ParseDate(dateRaw)
		if err != nil {
			return fmt.Errorf("training %q: %w", out.Type, err)
		}
		out.DateReceived = &d
	}

	months, err := looseNumber(raw.ExpiryMonths)
	if err != nil {
		return fmt.Errorf("training %q expiryMonths: %w", out.Type, err)
	}
	out.ExpiryMonths = int(months)

	hoursRaw := raw.Hours
	if len(hoursRaw) == 0 || string(hoursRaw) == "null" {
		hoursRaw = raw.Duration
	}
	if out.Hours, err = looseNumber(hoursRaw); err != nil {
		return fmt.Errorf("training %q hours: %w", out.Type, err)
	}

	*t = out
	return nil
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return strings.TrimSpace(*v)
		}
	}
	return ""
}

// looseNumber accepts a JSON number or a numeric string.
func looseNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// TrainingRecords is stored as a JSONB array.
type TrainingRecords []TrainingRecord

// Value implements driver.Valuer.
func (r TrainingRecords) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]TrainingRecord(r))
}

// Scan implements sql.Scanner.
func (r *TrainingRecords) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*r = TrainingRecords{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TrainingRecords", src)
	}
	var out []TrainingRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if out == nil {
		out = []TrainingRecord{}
	}
	*r = out
	return nil
}

// Types returns the training labels in stored order.
func (r TrainingRecords) Types() []string {
	out := make([]string, 0, len(r))
	for _, t := range r {
		out = append(out, t.Type)
	}
	return out
}
