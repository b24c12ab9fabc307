package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/models"
)

var now = time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

func datePtr(raw string) *models.Date {
	d := models.MustDate(raw)
	return &d
}

func evaluate(t *testing.T, employees ...models.Employee) []compliance.Evaluation {
	t.Helper()
	engine, err := compliance.NewEngine(75, 90)
	require.NoError(t, err)
	return engine.Evaluate(employees, now)
}

func decode(t *testing.T, out []byte) [][]string {
	t.Helper()
	require.True(t, bytes.HasPrefix(out, []byte("\ufeff")))
	r := csv.NewReader(bytes.NewReader(out[3:]))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestToCSVRoundTrip(t *testing.T) {
	evals := evaluate(t,
		models.Employee{
			Name:         "Иванов Иван",
			Organization: "A;B",
			Profession:   `Сварщик "5 разряд"`,
			BirthDate:    datePtr("1990-02-03"),
			TrainingDate: datePtr("2024-05-20"),
			AdditionalTrainings: models.TrainingRecords{
				{Type: "Охрана труда", DateReceived: datePtr("2024-01-01"), ExpiryMonths: 12},
				{Type: "Прочее", DateReceived: datePtr("2024-01-01"), ExpiryMonths: 12},
			},
		},
		models.Employee{Name: "Петров", Organization: "Beta", TrainingDate: datePtr("2024-01-01")},
		models.Employee{Name: "Сидоров", TrainingDate: datePtr("2024-03-10")},
		models.Employee{Name: "Без даты"},
	)

	out, err := ToCSV(evals)
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasSuffix(text, "\r\n"))
	assert.Contains(t, text, `;"A;B";`)
	assert.Contains(t, text, `"Сварщик ""5 разряд"""`)

	records := decode(t, out)
	require.Len(t, records, 5)
	assert.Equal(t, RosterHeaders, records[0])
	assert.Equal(t, []string{"Иванов Иван", "A;B", `Сварщик "5 разряд"`, "03.02.1990", "20.05.2024", LabelCurrent, "Охрана труда;Прочее"}, records[1])
	assert.Equal(t, LabelRetrain, records[2][5])
	// warning status still exports as current: the export label is binary
	assert.Equal(t, LabelCurrent, records[3][5])
	// no derivable status is not an expiry
	assert.Equal(t, []string{"Без даты", "", "", "", "", LabelCurrent, ""}, records[4])
}

func TestStatusLabelOnlyFlagsExpired(t *testing.T) {
	evals := evaluate(t,
		models.Employee{ID: "1", Name: "Без даты"},
		models.Employee{ID: "2", Name: "Просрочен", TrainingDate: datePtr("2023-01-01")},
	)
	require.Error(t, evals[0].Err)
	assert.Equal(t, LabelCurrent, StatusLabel(evals[0]))
	assert.Equal(t, LabelRetrain, StatusLabel(evals[1]))
}

func TestToCSVEmpty(t *testing.T) {
	out, err := ToCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, "\ufeff"+strings.Join(RosterHeaders, ";")+"\r\n", string(out))
}

func TestToTrainingsCSV(t *testing.T) {
	out, err := ToTrainingsCSV([]models.TrainingRecord{
		{Type: "Первая помощь", DateReceived: datePtr("2024-03-05"), CertificateURL: "https://c/1", Hours: 4.5},
		{Type: "Прочее"},
	})
	require.NoError(t, err)

	records := decode(t, out)
	require.Len(t, records, 3)
	assert.Equal(t, TrainingHeaders, records[0])
	assert.Equal(t, []string{"Первая помощь", "05.03.2024", "https://c/1", "4.5"}, records[1])
	assert.Equal(t, []string{"Прочее", "", "", ""}, records[2])
}

func TestTrainingsFilename(t *testing.T) {
	assert.Equal(t, "Обучения_Иванов Иван.csv", TrainingsFilename("  Иванов / Иван  "))
	assert.Equal(t, "Обучения_a b.csv", TrainingsFilename(`a:*?b`))
	assert.Equal(t, "Обучения.csv", TrainingsFilename("  "))
}

func TestToTelegramSummary(t *testing.T) {
	sum := compliance.Summary{
		Total:              12,
		Counts:             compliance.StatusCounts{Valid: 7, Warning: 3, Expired: 2},
		ConformityRate:     58.3333,
		AverageDaysOverdue: 4.25,
		Upcoming:           []compliance.HorizonCount{{Days: 7, Count: 1}, {Days: 14, Count: 2}, {Days: 30, Count: 3}},
	}

	expected := "Отчет (Analytics)\n" +
		"Всего сотрудников: 12\n" +
		"Conformity Rate: 58.3%\n" +
		"Просрочено: 2, Предупр.: 3, В норме: 7\n" +
		"Avg Days Overdue: 4.3\n" +
		"Скоро истекает: 7д=1, 14д=2, 30д=3"
	assert.Equal(t, expected, ToTelegramSummary(sum))
}

func TestToTelegramSummaryEmpty(t *testing.T) {
	out := ToTelegramSummary(compliance.Summary{})
	assert.Contains(t, out, "Conformity Rate: 0.0%")
	assert.Contains(t, out, "Скоро истекает: 7д=0, 14д=0, 30д=0")
}

func TestToDailyReport(t *testing.T) {
	today := now.Add(-2 * time.Hour)
	yesterday := now.AddDate(0, 0, -1)

	employees := []models.Employee{
		{Name: "Новый", Organization: "Alpha", TrainingDate: datePtr("2024-06-01"), CreatedAt: today},
		{Name: "Без орг", TrainingDate: datePtr("2024-01-01"), CreatedAt: today},
		{Name: "Старый", Organization: "Alpha", TrainingDate: datePtr("2024-03-10"), CreatedAt: yesterday},
	}
	out := ToDailyReport(evaluate(t, employees...), now)

	assert.Contains(t, out, "(01.06.2024)")
	assert.Contains(t, out, "🔴 Просрочено: 1")
	assert.Contains(t, out, "🟡 Предупреждение: 1")
	assert.Contains(t, out, "🟢 В норме: 1")
	assert.Contains(t, out, "📈 Всего: 3")
	assert.Contains(t, out, "• Новый — Alpha")
	assert.Contains(t, out, "• Без орг — —")
	assert.NotContains(t, out, "Старый")
}

func TestToDailyReportCapsList(t *testing.T) {
	var employees []models.Employee
	for i := 0; i < MaxDailyNewEmployees+5; i++ {
		employees = append(employees, models.Employee{Name: fmt.Sprintf("E%02d", i), TrainingDate: datePtr("2024-06-01"), CreatedAt: now})
	}
	out := ToDailyReport(evaluate(t, employees...), now)

	assert.Equal(t, MaxDailyNewEmployees, strings.Count(out, "• "))
	assert.Contains(t, out, "… и ещё 5")

	empty := ToDailyReport(nil, now)
	assert.Contains(t, empty, "— нет")
}

func TestBotReplies(t *testing.T) {
	evals := evaluate(t,
		models.Employee{Name: "A", Organization: "Org", TrainingDate: datePtr("2024-01-01"), CreatedAt: now},
		models.Employee{Name: "B", Organization: "Org", TrainingDate: datePtr("2023-06-01")},
		models.Employee{Name: "C", TrainingDate: datePtr("2024-05-30")},
	)

	expired := BotExpired(evals, 1)
	assert.Equal(t, "*Просроченные (топ 1)*\n• B — Org (366 дн.)", expired)

	assert.Contains(t, BotNewEmployees(evals, now), "• A — Org")
	assert.Equal(t, "Ваш chat_id: `42`", BotChatID(42))
	assert.Contains(t, BotHelp(), "/expired 10")

	engine, _ := compliance.NewEngine(75, 90)
	stats := BotStats(engine.Summarize(evals, now))
	assert.Contains(t, stats, "🟢 В норме: 1 (33.3%)")
	assert.Contains(t, stats, "🔴 Просрочено: 2")
}

func TestClampTop(t *testing.T) {
	assert.Equal(t, DefaultExpiredTop, ClampTop(0, false))
	assert.Equal(t, DefaultExpiredTop, ClampTop(0, true))
	assert.Equal(t, 1, ClampTop(-5, true))
	assert.Equal(t, 50, ClampTop(500, true))
	assert.Equal(t, 7, ClampTop(7, true))
}
