package service

import (
	"context"
	"crypto/subtle"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/models"
	"github.com/putevi/briefing-api/internal/report"
	"github.com/putevi/briefing-api/pkg/telegram"
)

// BotConfig controls webhook access.
type BotConfig struct {
	WebhookSecret  string
	AllowedChatIDs []string
}

// BotService answers bot commands received through the webhook.
type BotService struct {
	repo    rosterReader
	engine  *compliance.Engine
	sender  messageSender
	metrics *MetricsService
	logger  *zap.Logger
	secret  string
	allowed map[int64]struct{}
	clock   func() time.Time
}

// NewBotService constructs the bot service. Unparseable allowed ids are skipped.
func NewBotService(repo rosterReader, engine *compliance.Engine, sender messageSender, metrics *MetricsService, logger *zap.Logger, cfg BotConfig) *BotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[int64]struct{}, len(cfg.AllowedChatIDs))
	for _, raw := range cfg.AllowedChatIDs {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			logger.Warn("ignoring allowed chat id", zap.String("value", raw))
			continue
		}
		allowed[id] = struct{}{}
	}
	return &BotService{
		repo:    repo,
		engine:  engine,
		sender:  sender,
		metrics: metrics,
		logger:  logger,
		secret:  cfg.WebhookSecret,
		allowed: allowed,
		clock:   time.Now,
	}
}

// WithClock overrides the time source.
func (s *BotService) WithClock(clock func() time.Time) *BotService {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Authorize checks the webhook secret header. Without a configured secret every call passes.
func (s *BotService) Authorize(header string) bool {
	if s.secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(s.secret)) == 1
}

// HandleUpdate processes one update and returns the reply that was sent, if any.
// Delivery failures are logged; Telegram is always acknowledged.
func (s *BotService) HandleUpdate(ctx context.Context, update telegram.Update) string {
	msg := update.EffectiveMessage()
	if msg == nil || msg.Chat.ID == 0 || strings.TrimSpace(msg.Text) == "" {
		return ""
	}
	chatID := msg.Chat.ID

	reply := s.reply(ctx, chatID, *msg)
	if reply == "" {
		return ""
	}
	_, err := s.sender.SendMessage(ctx, strconv.FormatInt(chatID, 10), reply, telegram.SendOptions{DisableWebPagePreview: true})
	s.metrics.RecordTelegram(models.NotificationBotReply, err == nil)
	if err != nil {
		s.logger.Warn("bot reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return reply
}

func (s *BotService) reply(ctx context.Context, chatID int64, msg telegram.Message) string {
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[chatID]; !ok {
			return report.BotAccessDenied
		}
	}

	cmd, arg := msg.Command()
	switch cmd {
	case "/help", "help", "/start":
		return report.BotHelp()
	case "/id":
		return report.BotChatID(chatID)
	}

	now := s.clock()
	evals, err := evaluateRoster(ctx, s.repo, s.engine, s.metrics, models.EmployeeFilter{}, now)
	if err != nil {
		s.logger.Error("bot roster load failed", zap.Error(err))
		return report.BotStoreError
	}

	switch cmd {
	case "/stats":
		return report.BotStats(s.engine.Summarize(evals, now))
	case "/new":
		return report.BotNewEmployees(evals, now.In(s.engine.Location()))
	case "/expired":
		n, ok := leadingInt(arg)
		return report.BotExpired(evals, report.ClampTop(n, ok))
	case "/org":
		query := strings.ToLower(strings.TrimSpace(arg))
		if query == "" {
			return report.BotOrgUsage
		}
		matched := make([]compliance.Evaluation, 0)
		for _, ev := range evals {
			if strings.Contains(strings.ToLower(strings.TrimSpace(ev.Employee.Organization)), query) {
				matched = append(matched, ev)
			}
		}
		return report.BotOrganization(strings.TrimSpace(arg), s.engine.Summarize(matched, now))
	default:
		return report.BotUnknown
	}
}

// leadingInt reads an optionally signed integer prefix of s, so "15abc" yields 15.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c == '-' || c == '+') && end == 0 {
			end++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
