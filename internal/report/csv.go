// Package report renders compliance results as CSV files and Telegram messages.
package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/models"
	"github.com/putevi/briefing-api/pkg/export"
)

// ShortDateLayout is the ru-RU short date.
const ShortDateLayout = "02.01.2006"

const (
	LabelRetrain = "Переподготовка"
	LabelCurrent = "Актуален"
)

// RosterHeaders is the fixed header row of the roster export.
var RosterHeaders = []string{
	"ФИО",
	"Организация",
	"Профессия",
	"Дата рождения",
	"Дата инструктажа",
	"Статус",
	"Доп. обучения",
}

// TrainingHeaders is the header row of a per-employee trainings export.
var TrainingHeaders = []string{
	"Название обучения",
	"Дата прохождения",
	"Сертификат",
	"Кол-во часов",
}

// StatusLabel collapses the three-way status into the two export labels.
// Only an expired briefing is flagged for retraining; records without a derivable status export as current.
func StatusLabel(ev compliance.Evaluation) string {
	if ev.Expired() {
		return LabelRetrain
	}
	return LabelCurrent
}

// ShortDate formats d as dd.mm.yyyy, or "" when absent.
func ShortDate(d *models.Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format(ShortDateLayout)
}

// RosterDataset maps evaluations onto the export columns shared by every format.
func RosterDataset(evals []compliance.Evaluation) export.Dataset {
	rows := make([]map[string]string, 0, len(evals))
	for _, ev := range evals {
		e := ev.Employee
		rows = append(rows, map[string]string{
			RosterHeaders[0]: e.Name,
			RosterHeaders[1]: e.Organization,
			RosterHeaders[2]: e.Profession,
			RosterHeaders[3]: ShortDate(e.BirthDate),
			RosterHeaders[4]: ShortDate(e.TrainingDate),
			RosterHeaders[5]: StatusLabel(ev),
			RosterHeaders[6]: strings.Join(e.AdditionalTrainings.Types(), ";"),
		})
	}
	return export.Dataset{Headers: RosterHeaders, Rows: rows}
}

// ToCSV renders the roster as a BOM-prefixed, semicolon-separated, CRLF-terminated document.
func ToCSV(evals []compliance.Evaluation) ([]byte, error) {
	out, err := export.Excel().Render(RosterDataset(evals))
	if err != nil {
		return nil, fmt.Errorf("render roster csv: %w", err)
	}
	return out, nil
}

// ToTrainingsCSV renders one employee's additional trainings.
func ToTrainingsCSV(records []models.TrainingRecord) ([]byte, error) {
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		hours := ""
		if r.Hours != 0 {
			hours = strconv.FormatFloat(r.Hours, 'f', -1, 64)
		}
		rows = append(rows, map[string]string{
			TrainingHeaders[0]: r.Type,
			TrainingHeaders[1]: ShortDate(r.DateReceived),
			TrainingHeaders[2]: r.CertificateURL,
			TrainingHeaders[3]: hours,
		})
	}
	out, err := export.Excel().Render(export.Dataset{Headers: TrainingHeaders, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("render trainings csv: %w", err)
	}
	return out, nil
}

var (
	unsafeFileChars = regexp.MustCompile(`[\\/:*?"<>|]+`)
	spaces          = regexp.MustCompile(`\s+`)
)

// TrainingsFilename builds "Обучения_<name>.csv" with path-hostile characters removed.
func TrainingsFilename(name string) string {
	safe := strings.TrimSpace(spaces.ReplaceAllString(unsafeFileChars.ReplaceAllString(name, " "), " "))
	if safe == "" {
		return "Обучения.csv"
	}
	return "Обучения_" + safe + ".csv"
}
