package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Email is a single message to one recipient
type Email struct {
	To          string
	Subject     string
	HTMLContent string
	TextContent string
}

// Sender is the interface for sending emails
type Sender interface {
	Send(ctx context.Context, email Email) (string, error)
}

// Client wraps the SendGrid API client
type Client struct {
	apiKey    string
	fromEmail string
	fromName  string
	host      string
}

// NewClient creates a new SendGrid client
func NewClient(apiKey, fromEmail, fromName string) *Client {
	return &Client{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// WithHost points the client at a different API host
func (c *Client) WithHost(host string) *Client {
	c.host = host
	return c
}

// Send sends an email via SendGrid and returns the message ID
func (c *Client) Send(ctx context.Context, email Email) (string, error) {
	if email.To == "" {
		return "", fmt.Errorf("email has no recipient")
	}
	from := mail.NewEmail(c.fromName, c.fromEmail)
	to := mail.NewEmail("", email.To)
	message := mail.NewSingleEmail(from, email.Subject, to, email.TextContent, email.HTMLContent)

	client := sendgrid.NewSendClient(c.apiKey)
	if c.host != "" {
		client.BaseURL = c.host + "/v3/mail/send"
	}
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}

	messageID := ""
	if ids, ok := response.Headers["X-Message-Id"]; ok && len(ids) > 0 {
		messageID = ids[0]
	}
	return messageID, nil
}

// DryRunClient logs emails instead of sending them and keeps a copy
type DryRunClient struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Email
}

// NewDryRunClient creates a client that logs instead of sending
func NewDryRunClient(logger *slog.Logger) *DryRunClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunClient{logger: logger}
}

// Send records the email and returns a fake message ID
func (c *DryRunClient) Send(ctx context.Context, email Email) (string, error) {
	c.mu.Lock()
	c.sent = append(c.sent, email)
	n := len(c.sent)
	c.mu.Unlock()

	c.logger.Info("dry run: email not sent", "to", email.To, "subject", email.Subject)
	return fmt.Sprintf("dry-run-%d", n), nil
}

// Sent returns the emails recorded so far
func (c *DryRunClient) Sent() []Email {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Email(nil), c.sent...)
}
