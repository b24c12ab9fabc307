package telegram

import (
	"strings"
	"unicode/utf16"

	json "github.com/goccy/go-json"
)

// Update is the subset of the Bot API update object the webhook consumes.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

// EffectiveMessage prefers the new message over an edit.
func (u Update) EffectiveMessage() *Message {
	if u.Message != nil {
		return u.Message
	}
	return u.EditedMessage
}

// Chat identifies a conversation.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// MessageEntity marks a span of message text. Offsets are in UTF-16 code units.
type MessageEntity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// Message is an inbound or sent message.
type Message struct {
	MessageID int64           `json:"message_id"`
	Chat      Chat            `json:"chat"`
	Date      int64           `json:"date"`
	Text      string          `json:"text,omitempty"`
	Entities  []MessageEntity `json:"entities,omitempty"`
}

// Command splits a message into its bot command and argument. "/help@Bot" yields "/help".
// The leading bot_command entity wins; otherwise the first word is taken.
func (m Message) Command() (cmd, arg string) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return "", ""
	}

	raw := ""
	for _, e := range m.Entities {
		if e.Type == "bot_command" && e.Offset == 0 && e.Length > 0 {
			units := utf16.Encode([]rune(text))
			if e.Length <= len(units) {
				raw = string(utf16.Decode(units[:e.Length]))
			}
			break
		}
	}
	if raw == "" {
		raw = strings.Fields(text)[0]
	}

	cmd = strings.TrimSpace(strings.SplitN(raw, "@", 2)[0])
	arg = strings.TrimSpace(strings.TrimPrefix(text, raw))
	return cmd, arg
}

// SendOptions are optional sendMessage parameters.
type SendOptions struct {
	ParseMode             string
	DisableWebPagePreview bool
}

// APIResponse is the Bot API envelope.
type APIResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}
