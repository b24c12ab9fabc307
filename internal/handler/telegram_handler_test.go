package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/putevi/briefing-api/internal/dto"
	"github.com/putevi/briefing-api/internal/middleware"
	"github.com/putevi/briefing-api/internal/models"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
	"github.com/putevi/briefing-api/pkg/telegram"
)

type fakeNotificationSrv struct {
	notified    []dto.NotifyRequest
	notifyErr   error
	delivery    dto.ReportDeliveryRequest
	requestedBy string
	kind        models.NotificationKind
}

func (f *fakeNotificationSrv) Notify(_ context.Context, req dto.NotifyRequest) (*telegram.APIResponse, error) {
	f.notified = append(f.notified, req)
	if f.notifyErr != nil {
		return nil, f.notifyErr
	}
	return &telegram.APIResponse{OK: true}, nil
}

func (f *fakeNotificationSrv) EnqueueAnalytics(_ context.Context, req dto.ReportDeliveryRequest, requestedBy string) (*dto.ReportJobResponse, error) {
	return f.record(models.NotificationAnalytics, req, requestedBy)
}

func (f *fakeNotificationSrv) EnqueueDaily(_ context.Context, req dto.ReportDeliveryRequest, requestedBy string) (*dto.ReportJobResponse, error) {
	return f.record(models.NotificationDaily, req, requestedBy)
}

func (f *fakeNotificationSrv) record(kind models.NotificationKind, req dto.ReportDeliveryRequest, requestedBy string) (*dto.ReportJobResponse, error) {
	f.kind, f.delivery, f.requestedBy = kind, req, requestedBy
	return &dto.ReportJobResponse{ID: "job-1", Kind: kind, ChatID: "-100"}, nil
}

type fakeBotSrv struct {
	secret  string
	updates []telegram.Update
}

func (f *fakeBotSrv) Authorize(header string) bool { return f.secret == "" || header == f.secret }

func (f *fakeBotSrv) HandleUpdate(_ context.Context, update telegram.Update) string {
	f.updates = append(f.updates, update)
	return "reply"
}

func newTelegramRouter(notify *fakeNotificationSrv, bot *fakeBotSrv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewTelegramHandler(notify, bot)
	r := gin.New()
	r.POST("/telegram/webhook", h.Webhook)
	withUser := func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	}
	r.POST("/telegram/notify", withUser, h.Notify)
	r.POST("/telegram/reports/analytics", withUser, h.AnalyticsReport)
	r.POST("/telegram/reports/daily", withUser, h.DailyReport)
	return r
}

func postJSON(r *gin.Engine, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTelegramWebhookSecret(t *testing.T) {
	bot := &fakeBotSrv{secret: "s3cret"}
	r := newTelegramRouter(&fakeNotificationSrv{}, bot)
	update := `{"update_id":1,"message":{"message_id":2,"chat":{"id":42},"text":"/stats"}}`

	rec := postJSON(r, "/telegram/webhook", update, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", rec.Body.String())
	assert.Empty(t, bot.updates)

	rec = postJSON(r, "/telegram/webhook", update, map[string]string{SecretTokenHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	require.Len(t, bot.updates, 1)
	require.NotNil(t, bot.updates[0].Message)
	assert.Equal(t, int64(42), bot.updates[0].Message.Chat.ID)
}

func TestTelegramWebhookAcknowledgesGarbage(t *testing.T) {
	bot := &fakeBotSrv{}
	r := newTelegramRouter(&fakeNotificationSrv{}, bot)

	rec := postJSON(r, "/telegram/webhook", "not json", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Empty(t, bot.updates)
}

func TestTelegramNotify(t *testing.T) {
	notify := &fakeNotificationSrv{}
	r := newTelegramRouter(notify, &fakeBotSrv{})

	rec := postJSON(r, "/telegram/notify", `{"text":"hello","chatId":"42"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, notify.notified, 1)
	assert.Equal(t, dto.NotifyRequest{Text: "hello", ChatID: "42"}, notify.notified[0])

	notify.notifyErr = appErrors.Clone(appErrors.ErrNotificationFailed, "telegram rejected the message")
	rec = postJSON(r, "/telegram/notify", `{"text":"hello"}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestTelegramReportsQueue(t *testing.T) {
	notify := &fakeNotificationSrv{}
	r := newTelegramRouter(notify, &fakeBotSrv{})

	rec := postJSON(r, "/telegram/reports/daily", `{"organization":"Beta"}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, models.NotificationDaily, notify.kind)
	assert.Equal(t, "Beta", notify.delivery.Organization)
	assert.Equal(t, "admin-1", notify.requestedBy)

	req := httptest.NewRequest(http.MethodPost, "/telegram/reports/analytics", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, models.NotificationAnalytics, notify.kind)
	assert.Empty(t, notify.delivery.Organization)
}
