package advisory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/perbu/presensi/internal/apperr"
	"google.golang.org/genai"
)

// Gemini answers questions through the Gemini API
type Gemini struct {
	genaiClient  *genai.Client
	model        string
	systemPrompt string
}

// NewGemini creates a Gemini client
func NewGemini(ctx context.Context, apiKey, model, systemPrompt string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Gemini{
		genaiClient:  client,
		model:        model,
		systemPrompt: systemPrompt,
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Ask generates a non-streaming answer to question
func (g *Gemini) Ask(ctx context.Context, question string) (string, error) {
	content := genai.NewContentFromText(question, genai.RoleUser)

	var genCfg *genai.GenerateContentConfig
	if g.systemPrompt != "" {
		genCfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(g.systemPrompt, genai.RoleUser),
		}
	}

	resp, err := g.genaiClient.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, genCfg)
	if err != nil {
		return "", classifyGenAI(err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", apperr.New(apperr.MalformedResponse, "empty answer")
	}
	return answer, nil
}

func classifyGenAI(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return apperr.Wrap(apperr.TransportFailure, err)
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return apperr.Wrap(apperr.RateLimited, err)
	}
	return apperr.New(apperr.RemoteFailure, fmt.Sprintf("HTTP %d: %s", apiErr.Code, apiErr.Message))
}
