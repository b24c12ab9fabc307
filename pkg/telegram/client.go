// Package telegram is a minimal Bot API client for sending report messages.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
)

const DefaultBaseURL = "https://api.telegram.org"

// ErrNotConfigured is returned when no bot token is set.
var ErrNotConfigured = errors.New("telegram bot token is not configured")

// APIError is a Bot API rejection or a non-2xx response.
type APIError struct {
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error (http %d, code %d): %s", e.StatusCode, e.ErrorCode, e.Description)
}

// Retryable reports whether resending may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == fasthttp.StatusTooManyRequests || e.StatusCode >= 500
}

// Client sends messages through the Bot API.
type Client struct {
	http    *fasthttp.Client
	baseURL string
	token   string
	timeout time.Duration
}

// NewClient builds a client; an empty baseURL uses the public Bot API.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                "briefing-api",
			MaxConnsPerHost:     16,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
	}
}

// Configured reports whether a token is present.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

type sendMessageRequest struct {
	ChatID                interface{} `json:"chat_id"`
	Text                  string      `json:"text"`
	ParseMode             string      `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool        `json:"disable_web_page_preview,omitempty"`
}

// SendMessage posts text to chatID. Numeric ids are sent as integers and @channel names as strings.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, opts SendOptions) (*APIResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var id interface{} = chatID
	if n, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		id = n
	}
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                id,
		Text:                  text,
		ParseMode:             opts.ParseMode,
		DisableWebPagePreview: opts.DisableWebPagePreview,
	})
	if err != nil {
		return nil, fmt.Errorf("encode sendMessage: %w", err)
	}
	return c.call(ctx, "sendMessage", payload)
}

func (c *Client) call(ctx context.Context, method string, payload []byte) (*APIResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}

	var out APIResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode(), Description: "malformed response body"}
	}
	if !out.OK || resp.StatusCode() >= 300 {
		return &out, &APIError{StatusCode: resp.StatusCode(), ErrorCode: out.ErrorCode, Description: out.Description}
	}
	return &out, nil
}
