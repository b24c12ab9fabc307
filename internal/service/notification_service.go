package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/dto"
	"github.com/putevi/briefing-api/internal/models"
	"github.com/putevi/briefing-api/internal/report"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
	"github.com/putevi/briefing-api/pkg/jobs"
	"github.com/putevi/briefing-api/pkg/telegram"
)

type messageSender interface {
	SendMessage(ctx context.Context, chatID, text string, opts telegram.SendOptions) (*telegram.APIResponse, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// NotificationConfig holds delivery defaults.
type NotificationConfig struct {
	Enabled       bool
	DefaultChatID string
}

// NotificationService builds roster reports and hands them to the delivery queue.
type NotificationService struct {
	repo    rosterReader
	engine  *compliance.Engine
	sender  messageSender
	queue   jobDispatcher
	metrics *MetricsService
	logger  *zap.Logger
	cfg     NotificationConfig
	clock   func() time.Time
}

// NewNotificationService constructs the notification service.
func NewNotificationService(repo rosterReader, engine *compliance.Engine, sender messageSender, queue jobDispatcher, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		repo:    repo,
		engine:  engine,
		sender:  sender,
		queue:   queue,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		clock:   time.Now,
	}
}

// WithClock overrides the time source.
func (s *NotificationService) WithClock(clock func() time.Time) *NotificationService {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Notify sends free text to the configured chat and waits for the Bot API answer.
func (s *NotificationService) Notify(ctx context.Context, req dto.NotifyRequest) (*telegram.APIResponse, error) {
	if !s.cfg.Enabled || s.sender == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "telegram is not configured")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "text is required")
	}
	chatID := s.chatID(req.ChatID)
	if chatID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "chat id is not configured")
	}

	resp, err := s.sender.SendMessage(ctx, chatID, text, telegram.SendOptions{ParseMode: "HTML", DisableWebPagePreview: true})
	s.metrics.RecordTelegram(models.NotificationCustom, err == nil)
	if err != nil {
		s.logger.Warn("telegram notify failed", zap.String("chat_id", chatID), zap.Error(err))
		return resp, appErrors.Wrap(err, appErrors.ErrNotificationFailed.Code, appErrors.ErrNotificationFailed.Status, "telegram rejected the message")
	}
	return resp, nil
}

// EnqueueAnalytics queues the analytics snapshot for delivery.
func (s *NotificationService) EnqueueAnalytics(ctx context.Context, req dto.ReportDeliveryRequest, requestedBy string) (*dto.ReportJobResponse, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	now := s.clock()
	evals, err := evaluateRoster(ctx, s.repo, s.engine, s.metrics, models.EmployeeFilter{Organization: strings.TrimSpace(req.Organization)}, now)
	if err != nil {
		return nil, err
	}
	text := report.ToTelegramSummary(s.engine.Summarize(evals, now))
	return s.enqueue(models.NotificationAnalytics, req.ChatID, text, requestedBy, now)
}

// EnqueueDaily queues the daily report for delivery.
func (s *NotificationService) EnqueueDaily(ctx context.Context, req dto.ReportDeliveryRequest, requestedBy string) (*dto.ReportJobResponse, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	now := s.clock()
	evals, err := evaluateRoster(ctx, s.repo, s.engine, s.metrics, models.EmployeeFilter{Organization: strings.TrimSpace(req.Organization)}, now)
	if err != nil {
		return nil, err
	}
	text := report.ToDailyReport(evals, now.In(s.engine.Location()))
	return s.enqueue(models.NotificationDaily, req.ChatID, text, requestedBy, now)
}

func (s *NotificationService) ready() error {
	if !s.cfg.Enabled || s.queue == nil {
		return appErrors.Clone(appErrors.ErrServiceUnavailable, "telegram delivery is not configured")
	}
	return nil
}

func (s *NotificationService) enqueue(kind models.NotificationKind, chatID, text, requestedBy string, now time.Time) (*dto.ReportJobResponse, error) {
	chatID = s.chatID(chatID)
	if chatID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "chat id is not configured")
	}
	job := models.NotificationJob{
		ID:          uuid.NewString(),
		Kind:        kind,
		ChatID:      chatID,
		Text:        text,
		RequestedBy: requestedBy,
		QueuedAt:    now.UTC(),
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(kind), Payload: job, Enqueued: job.QueuedAt}); err != nil {
		msg := "delivery queue is unavailable"
		if errors.Is(err, jobs.ErrQueueFull) {
			msg = "delivery queue is full, try again later"
		}
		s.logger.Warn("telegram report rejected", zap.String("kind", string(kind)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, msg)
	}
	s.logger.Info("telegram report queued", zap.String("job_id", job.ID), zap.String("kind", string(kind)))
	return &dto.ReportJobResponse{ID: job.ID, Kind: kind, ChatID: chatID, QueuedAt: job.QueuedAt}, nil
}

func (s *NotificationService) chatID(override string) string {
	if id := strings.TrimSpace(override); id != "" {
		return id
	}
	return strings.TrimSpace(s.cfg.DefaultChatID)
}

// NotificationWorker delivers queued messages.
type NotificationWorker struct {
	sender    messageSender
	metrics   *MetricsService
	logger    *zap.Logger
	parseMode string
}

// NewNotificationWorker constructs a worker. An empty parseMode sends plain text.
func NewNotificationWorker(sender messageSender, metrics *MetricsService, parseMode string, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{sender: sender, metrics: metrics, logger: logger, parseMode: parseMode}
}

// Handle processes a queue job. Rejections the Bot API will repeat are not retried.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(models.NotificationJob)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unexpected payload %T", job.Payload))
	}
	_, err := w.sender.SendMessage(ctx, msg.ChatID, msg.Text, telegram.SendOptions{
		ParseMode:             w.parseMode,
		DisableWebPagePreview: true,
	})
	w.metrics.RecordTelegram(msg.Kind, err == nil)
	if err == nil {
		w.logger.Info("telegram report delivered", zap.String("job_id", msg.ID), zap.Int("attempt", job.Attempt))
		return nil
	}

	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) && !apiErr.Retryable() {
		return jobs.Permanent(err)
	}
	if errors.Is(err, telegram.ErrNotConfigured) {
		return jobs.Permanent(err)
	}
	return err
}
