package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const sendTimeout = 15 * time.Second

type tgUpdate struct {
	UpdateID int        `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

type tgMessage struct {
	MessageID int     `json:"message_id"`
	Chat      tgChat  `json:"chat"`
	From      *tgUser `json:"from"`
	Text      string  `json:"text"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

type tgUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type tgResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// TelegramOptions configures the Telegram transport
type TelegramOptions struct {
	APIURL      string // default https://api.telegram.org
	Token       string
	PollTimeout int              // long-poll seconds
	Allowed     func(int64) bool // nil allows every chat
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Telegram receives messages by long-polling getUpdates and hands them to
// the router
type Telegram struct {
	baseURL     string
	pollTimeout int
	allowed     func(int64) bool
	client      *http.Client
	router      *Router
	logger      *slog.Logger
}

// NewTelegram creates the transport
func NewTelegram(router *Router, opts TelegramOptions) (*Telegram, error) {
	if opts.Token == "" {
		return nil, errors.New("telegram bot token is not configured")
	}
	if opts.APIURL == "" {
		opts.APIURL = "https://api.telegram.org"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Allowed == nil {
		opts.Allowed = func(int64) bool { return true }
	}
	return &Telegram{
		baseURL:     strings.TrimRight(opts.APIURL, "/") + "/bot" + opts.Token,
		pollTimeout: opts.PollTimeout,
		allowed:     opts.Allowed,
		client:      opts.HTTPClient,
		router:      router,
		logger:      opts.Logger,
	}, nil
}

// Run polls for updates until ctx is cancelled. Poll failures are retried
// with capped exponential backoff.
func (t *Telegram) Run(ctx context.Context) error {
	t.logger.Info("Telegram polling started", "poll_timeout", t.pollTimeout)
	offset := 0

	for {
		var updates []tgUpdate
		backoff := retry.WithCappedDuration(time.Minute, retry.NewExponential(time.Second))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			var err error
			updates, err = t.getUpdates(ctx, offset)
			if err != nil && ctx.Err() == nil {
				t.logger.Warn("Telegram poll failed", "error", err)
				return retry.RetryableError(err)
			}
			return err
		})
		if ctx.Err() != nil {
			t.logger.Info("Telegram polling stopped")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to poll telegram: %w", err)
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			t.handle(u.Message)
		}
	}
}

func (t *Telegram) handle(m *tgMessage) {
	chatID := m.Chat.ID
	if !t.allowed(chatID) {
		t.logger.Debug("Ignoring message from chat not on allow list", "chat_id", chatID)
		return
	}

	sender := ""
	if m.From != nil {
		sender = m.From.Username
	}
	t.router.Handle(Message{
		ChatID: strconv.FormatInt(chatID, 10),
		Sender: sender,
		Text:   m.Text,
		Reply: func(text string) {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := t.Send(ctx, chatID, text); err != nil {
				t.logger.Error("Failed to send telegram reply", "chat_id", chatID, "error", err)
			}
		},
	})
}

func (t *Telegram) getUpdates(ctx context.Context, offset int) ([]tgUpdate, error) {
	url := fmt.Sprintf("%s/getUpdates?offset=%d&timeout=%d", t.baseURL, offset, t.pollTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body tgResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode getUpdates response (status %d): %w", resp.StatusCode, err)
	}
	if !body.OK {
		return nil, fmt.Errorf("getUpdates failed: %s", body.Description)
	}

	var updates []tgUpdate
	if err := json.Unmarshal(body.Result, &updates); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	return updates, nil
}

// Send posts text to chatID. Markdown is tried first; a message Telegram
// cannot parse as Markdown is resent as plain text.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	status, body, err := t.sendMessage(ctx, chatID, text, "Markdown")
	if err != nil {
		return err
	}
	if status == http.StatusBadRequest && strings.Contains(body, "parse") {
		status, body, err = t.sendMessage(ctx, chatID, text, "")
		if err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("sendMessage returned status %d: %s", status, body)
	}
	return nil
}

func (t *Telegram) sendMessage(ctx context.Context, chatID int64, text, parseMode string) (int, string, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/sendMessage", bytes.NewReader(data))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(body), nil
}
