package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/putevi/briefing-api/internal/dto"
	"github.com/putevi/briefing-api/pkg/response"
	"github.com/putevi/briefing-api/pkg/telegram"
)

// SecretTokenHeader carries the webhook secret Telegram was registered with.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

type notificationService interface {
	Notify(ctx context.Context, req dto.NotifyRequest) (*telegram.APIResponse, error)
	EnqueueAnalytics(ctx context.Context, req dto.ReportDeliveryRequest, requestedBy string) (*dto.ReportJobResponse, error)
	EnqueueDaily(ctx context.Context, req dto.ReportDeliveryRequest, requestedBy string) (*dto.ReportJobResponse, error)
}

type botService interface {
	Authorize(header string) bool
	HandleUpdate(ctx context.Context, update telegram.Update) string
}

// TelegramHandler exposes outbound notifications and the bot webhook.
type TelegramHandler struct {
	notifications notificationService
	bot           botService
}

// NewTelegramHandler constructs the handler.
func NewTelegramHandler(notifications notificationService, bot botService) *TelegramHandler {
	return &TelegramHandler{notifications: notifications, bot: bot}
}

// Notify godoc
// @Summary Send a message to the configured Telegram chat
// @Tags Telegram
// @Accept json
// @Produce json
// @Param payload body dto.NotifyRequest true "Message"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /telegram/notify [post]
func (h *TelegramHandler) Notify(c *gin.Context) {
	var req dto.NotifyRequest
	if !bindJSON(c, &req, "invalid notification payload") {
		return
	}
	resp, err := h.notifications.Notify(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// AnalyticsReport godoc
// @Summary Queue the analytics report for Telegram delivery
// @Tags Telegram
// @Accept json
// @Produce json
// @Param payload body dto.ReportDeliveryRequest false "Scope"
// @Success 202 {object} response.Envelope
// @Router /reports/analytics/telegram [post]
func (h *TelegramHandler) AnalyticsReport(c *gin.Context) {
	h.queueReport(c, h.notifications.EnqueueAnalytics)
}

// DailyReport godoc
// @Summary Queue the daily briefing report for Telegram delivery
// @Tags Telegram
// @Accept json
// @Produce json
// @Param payload body dto.ReportDeliveryRequest false "Scope"
// @Success 202 {object} response.Envelope
// @Router /reports/daily/telegram [post]
func (h *TelegramHandler) DailyReport(c *gin.Context) {
	h.queueReport(c, h.notifications.EnqueueDaily)
}

func (h *TelegramHandler) queueReport(c *gin.Context, enqueue func(context.Context, dto.ReportDeliveryRequest, string) (*dto.ReportJobResponse, error)) {
	var req dto.ReportDeliveryRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "invalid report request") {
		return
	}
	job, err := enqueue(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Webhook godoc
// @Summary Telegram bot webhook
// @Tags Telegram
// @Accept json
// @Produce plain
// @Success 200 {string} string "ok"
// @Failure 401 {string} string "Unauthorized"
// @Router /telegram/webhook [post]
func (h *TelegramHandler) Webhook(c *gin.Context) {
	if !h.bot.Authorize(c.GetHeader(SecretTokenHeader)) {
		c.String(http.StatusUnauthorized, "Unauthorized")
		return
	}
	var update telegram.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&update); err != nil {
		// Telegram retries non-2xx responses; a payload we cannot parse is acknowledged.
		c.String(http.StatusOK, "ok")
		return
	}
	h.bot.HandleUpdate(c.Request.Context(), update)
	c.String(http.StatusOK, "ok")
}
