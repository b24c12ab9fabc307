package models

import "time"

// ExportFormat enumerates roster export formats.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// Valid reports whether the format is supported.
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportFormatCSV, ExportFormatPDF, ExportFormatXLSX:
		return true
	}
	return false
}

// ExportRequest selects the roster slice to export.
type ExportRequest struct {
	Format       ExportFormat `json:"format" form:"format"`
	Organization string       `json:"organization" form:"organization"`
}

// ExportFile is a rendered export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportLink describes a stored export reachable through a signed URL.
type ExportLink struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NotificationKind classifies queued Telegram deliveries.
type NotificationKind string

const (
	NotificationAnalytics NotificationKind = "analytics"
	NotificationDaily     NotificationKind = "daily"
	NotificationCustom    NotificationKind = "custom"
	NotificationBotReply  NotificationKind = "bot_reply"
)

// NotificationJob is one queued Telegram message.
type NotificationJob struct {
	ID          string           `json:"id"`
	Kind        NotificationKind `json:"kind"`
	ChatID      string           `json:"chatId"`
	Text        string           `json:"-"`
	RequestedBy string           `json:"requestedBy,omitempty"`
	QueuedAt    time.Time        `json:"queuedAt"`
}
