package dto

import (
	"time"

	"github.com/putevi/briefing-api/internal/models"
)

// NotifyRequest is the payload of POST /telegram/notify.
type NotifyRequest struct {
	Text   string `json:"text" validate:"required,max=4096"`
	ChatID string `json:"chatId"`
}

// ReportDeliveryRequest optionally scopes a queued Telegram report.
type ReportDeliveryRequest struct {
	Organization string `json:"organization"`
	ChatID       string `json:"chatId"`
}

// ReportJobResponse is returned after enqueueing a Telegram report.
type ReportJobResponse struct {
	ID       string                  `json:"id"`
	Kind     models.NotificationKind `json:"kind"`
	ChatID   string                  `json:"chatId"`
	QueuedAt time.Time               `json:"queuedAt"`
}

// DocToggleRequest flips one document of an organization checklist.
type DocToggleRequest struct {
	Key  string `json:"key" validate:"required"`
	Done bool   `json:"done"`
}
