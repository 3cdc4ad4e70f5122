// Package verify talks to the remote attendance checker.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/perbu/presensi/internal/apperr"
)

// maxBody bounds the checker response we are willing to read
const maxBody = 4 << 20

// Client calls the checker API with fixed credentials
type Client struct {
	apiURL     string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a checker client. httpClient may be nil.
func NewClient(apiURL, username, password string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		apiURL:     apiURL,
		username:   username,
		password:   password,
		httpClient: httpClient,
		logger:     slog.Default(),
	}
}

// WithLogger sets the client logger
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

type checkResponse struct {
	Results []Student `json:"results"`
	Error   string    `json:"error"`
}

// Check runs one attendance check. Failures are returned as *apperr.Error.
// The call is abandoned when ctx is cancelled.
func (c *Client) Check(ctx context.Context) (*Report, error) {
	body, contentType, err := c.form()
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, body)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.TransportFailure, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Checker responded", "status", resp.StatusCode, "elapsed", time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, apperr.Wrap(apperr.TransportFailure, fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperr.New(apperr.RateLimited, "checker is rate limiting requests")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apperr.New(apperr.RemoteFailure, fmt.Sprintf("checker returned status %d", resp.StatusCode))
	}

	var parsed checkResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.MalformedResponse, fmt.Errorf("failed to decode response: %w", err))
	}
	if parsed.Error != "" {
		return nil, apperr.New(apperr.RemoteFailure, parsed.Error)
	}
	if len(parsed.Results) == 0 {
		return nil, apperr.New(apperr.MalformedResponse, "response contains no results")
	}

	return &Report{Results: parsed.Results, CheckedAt: time.Now()}, nil
}

func (c *Client) form() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("username", c.username); err != nil {
		return nil, "", fmt.Errorf("failed to write form field: %w", err)
	}
	if err := w.WriteField("password", c.password); err != nil {
		return nil, "", fmt.Errorf("failed to write form field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
