package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/putevi/briefing-api/internal/compliance"
)

// Bot reply texts.
const (
	BotAccessDenied = "⛔ Доступ запрещён."
	BotStoreError   = "❌ Ошибка доступа к базе данных."
	BotUnknown      = "Не понял команду. Напишите /help"
	BotOrgUsage     = "Напишите так: /org ПУТЕВИ"

	MaxBotNewEmployees = 40
	DefaultExpiredTop  = 10
	MaxExpiredTop      = 50
)

// BotHelp lists the supported commands.
func BotHelp() string {
	return strings.Join([]string{
		"*Команды:*",
		"/stats — сводка",
		"/new — новые сотрудники сегодня",
		"/expired 10 — топ просроченных (1..50)",
		"/org <название> — сводка по организации",
		"/id — показать chat_id (для настройки доступа)",
	}, "\n")
}

// BotChatID echoes the caller's chat id.
func BotChatID(chatID int64) string {
	return fmt.Sprintf("Ваш chat_id: `%d`", chatID)
}

// BotStats renders the /stats reply.
func BotStats(s compliance.Summary) string {
	return strings.Join([]string{
		"*Отчёт по инструктажам*",
		fmt.Sprintf("📈 Всего: %d", s.Total),
		fmt.Sprintf("🟢 В норме: %d (%.1f%%)", s.Counts.Valid, compliance.Round1(s.ConformityRate)),
		fmt.Sprintf("🟡 Предупреждение: %d", s.Counts.Warning),
		fmt.Sprintf("🔴 Просрочено: %d", s.Counts.Expired),
		fmt.Sprintf("⏱ Средняя просрочка: %.1f дн.", compliance.Round1(s.AverageDaysOverdue)),
	}, "\n")
}

// BotNewEmployees renders the /new reply.
func BotNewEmployees(evals []compliance.Evaluation, now time.Time) string {
	fresh := CreatedOn(evals, now)
	lines := []string{"*Новые сотрудники сегодня*"}
	if len(fresh) == 0 {
		lines = append(lines, placeholder+" нет")
	}
	for i, ev := range fresh {
		if i == MaxBotNewEmployees {
			break
		}
		lines = append(lines, bullet(ev))
	}
	return strings.Join(lines, "\n")
}

// ClampTop parses the /expired argument into 1..MaxExpiredTop, defaulting to DefaultExpiredTop.
func ClampTop(n int, ok bool) int {
	if !ok || n == 0 {
		return DefaultExpiredTop
	}
	if n < 1 {
		return 1
	}
	if n > MaxExpiredTop {
		return MaxExpiredTop
	}
	return n
}

// BotExpired renders the /expired reply with the longest-overdue employees first.
func BotExpired(evals []compliance.Evaluation, limit int) string {
	expired := make([]compliance.Evaluation, 0)
	for _, ev := range evals {
		if ev.Expired() {
			expired = append(expired, ev)
		}
	}
	sort.SliceStable(expired, func(i, j int) bool {
		return expired[i].Status.DaysSinceTraining > expired[j].Status.DaysSinceTraining
	})

	lines := []string{fmt.Sprintf("*Просроченные (топ %d)*", limit)}
	if len(expired) == 0 {
		lines = append(lines, placeholder+" нет")
	}
	for i, ev := range expired {
		if i == limit {
			break
		}
		lines = append(lines, fmt.Sprintf("%s (%d дн.)", bullet(ev), ev.Status.DaysSinceTraining))
	}
	return strings.Join(lines, "\n")
}

// BotOrganization renders the /org reply for the subset matching query.
func BotOrganization(query string, s compliance.Summary) string {
	return strings.Join([]string{
		fmt.Sprintf("*Организация:* %s", query),
		fmt.Sprintf("📈 Всего: %d", s.Total),
		fmt.Sprintf("🟢 В норме: %d (%.1f%%)", s.Counts.Valid, compliance.Round1(s.ConformityRate)),
		fmt.Sprintf("🟡 Предупреждение: %d", s.Counts.Warning),
		fmt.Sprintf("🔴 Просрочено: %d", s.Counts.Expired),
	}, "\n")
}
