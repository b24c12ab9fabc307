package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/putevi/briefing-api/internal/compliance"
)

// MaxDailyNewEmployees caps the bullet list of the daily report.
const MaxDailyNewEmployees = 30

const placeholder = "—"

// ToTelegramSummary renders the analytics snapshot in a fixed line order.
func ToTelegramSummary(s compliance.Summary) string {
	lines := []string{
		"Отчет (Analytics)",
		fmt.Sprintf("Всего сотрудников: %d", s.Total),
		fmt.Sprintf("Conformity Rate: %.1f%%", compliance.Round1(s.ConformityRate)),
		fmt.Sprintf("Просрочено: %d, Предупр.: %d, В норме: %d", s.Counts.Expired, s.Counts.Warning, s.Counts.Valid),
		fmt.Sprintf("Avg Days Overdue: %.1f", compliance.Round1(s.AverageDaysOverdue)),
		fmt.Sprintf("Скоро истекает: 7д=%d, 14д=%d, 30д=%d", s.UpcomingWithin(7), s.UpcomingWithin(14), s.UpcomingWithin(30)),
	}
	return strings.Join(lines, "\n")
}

// ToDailyReport lists status counts and the employees created on now's calendar day.
func ToDailyReport(evals []compliance.Evaluation, now time.Time) string {
	var counts compliance.StatusCounts
	total := 0
	for _, ev := range evals {
		if ev.Status == nil {
			continue
		}
		total++
		switch ev.Status.Status {
		case compliance.StatusExpired:
			counts.Expired++
		case compliance.StatusWarning:
			counts.Warning++
		default:
			counts.Valid++
		}
	}

	fresh := CreatedOn(evals, now)
	lines := []string{
		fmt.Sprintf("Ежедневный отчёт по инструктажам (%s)", now.Format(ShortDateLayout)),
		fmt.Sprintf("🔴 Просрочено: %d", counts.Expired),
		fmt.Sprintf("🟡 Предупреждение: %d", counts.Warning),
		fmt.Sprintf("🟢 В норме: %d", counts.Valid),
		fmt.Sprintf("📈 Всего: %d", total),
		"Новые сотрудники сегодня:",
	}
	if len(fresh) == 0 {
		lines = append(lines, placeholder+" нет")
	}
	for i, ev := range fresh {
		if i == MaxDailyNewEmployees {
			lines = append(lines, fmt.Sprintf("… и ещё %d", len(fresh)-MaxDailyNewEmployees))
			break
		}
		lines = append(lines, bullet(ev))
	}
	return strings.Join(lines, "\n")
}

// CreatedOn keeps evaluations whose record was created on now's calendar day, in now's location.
func CreatedOn(evals []compliance.Evaluation, now time.Time) []compliance.Evaluation {
	y, m, d := now.Date()
	out := make([]compliance.Evaluation, 0)
	for _, ev := range evals {
		created := ev.Employee.CreatedAt
		if created.IsZero() {
			continue
		}
		cy, cm, cd := created.In(now.Location()).Date()
		if cy == y && cm == m && cd == d {
			out = append(out, ev)
		}
	}
	return out
}

func bullet(ev compliance.Evaluation) string {
	return fmt.Sprintf("• %s — %s", orDash(ev.Employee.Name), orDash(ev.Employee.Organization))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
