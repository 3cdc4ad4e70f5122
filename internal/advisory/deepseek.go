package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/perbu/presensi/internal/apperr"
)

// DeepSeek talks to an OpenAI-compatible chat completions endpoint
type DeepSeek struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	httpClient   *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewDeepSeek creates a chat completions client. httpClient may be nil.
func NewDeepSeek(baseURL, apiKey, model, systemPrompt string, httpClient *http.Client) *DeepSeek {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &DeepSeek{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		httpClient:   httpClient,
	}
}

func (d *DeepSeek) Name() string { return "deepseek" }

// Ask sends question as a single user turn
func (d *DeepSeek) Ask(ctx context.Context, question string) (string, error) {
	messages := []chatMessage{{Role: "user", Content: question}}
	if d.systemPrompt != "" {
		messages = append([]chatMessage{{Role: "system", Content: d.systemPrompt}}, messages...)
	}

	body, err := json.Marshal(chatRequest{Model: d.model, Messages: messages})
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.TransportFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.TransportFailure, fmt.Errorf("failed to read response: %w", err))
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(data, &parsed)

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apperr.New(apperr.RateLimited, "model provider is rate limiting requests")
	}
	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			detail += ": " + parsed.Error.Message
		}
		return "", apperr.New(apperr.RemoteFailure, detail)
	}

	if decodeErr != nil {
		return "", apperr.Wrap(apperr.MalformedResponse, fmt.Errorf("failed to decode response: %w", decodeErr))
	}
	if parsed.Error != nil {
		return "", apperr.New(apperr.RemoteFailure, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", apperr.New(apperr.MalformedResponse, "response contains no choices")
	}

	answer := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if answer == "" {
		return "", apperr.New(apperr.MalformedResponse, "empty answer")
	}
	return answer, nil
}
