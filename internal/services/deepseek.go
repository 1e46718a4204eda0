package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"socratic-chat/internal/models"
)

const maxUpstreamBody = 1 << 20

// OpenAIProvider talks to any OpenAI-style chat-completions endpoint.
// DeepSeek is the default deployment.
type OpenAIProvider struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  func() string
}

// NewOpenAIProvider builds a provider for baseURL (".../v1"). apiKey is
// called on every request. A zero timeout leaves the client without one.
func NewOpenAIProvider(baseURL, model string, apiKey func() string, timeout time.Duration) *OpenAIProvider {
	return &OpenAIProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
	}
}

func (p *OpenAIProvider) Name() string {
	return "deepseek"
}

type chatCompletionRequest struct {
	Model            string               `json:"model"`
	Messages         []models.ChatMessage `json:"messages"`
	Temperature      float32              `json:"temperature"`
	MaxTokens        int                  `json:"max_tokens"`
	TopP             float32              `json:"top_p"`
	FrequencyPenalty float32              `json:"frequency_penalty"`
	PresencePenalty  float32              `json:"presence_penalty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message models.ChatMessage `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	key := p.apiKey()
	if key == "" {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:            p.model,
		Messages:         req.Messages,
		Temperature:      req.Sampling.Temperature,
		MaxTokens:        req.Sampling.MaxTokens,
		TopP:             req.Sampling.TopP,
		FrequencyPenalty: req.Sampling.FrequencyPenalty,
		PresencePenalty:  req.Sampling.PresencePenalty,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       Redact(string(raw), key),
		}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &UpstreamError{Status: "sent a malformed response", Body: Redact(string(raw), key), Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &UpstreamError{Status: "returned no choices", Body: Redact(string(raw), key)}
	}

	return parsed.Choices[0].Message.Content, nil
}
