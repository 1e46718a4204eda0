package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"socratic-chat/internal/models"
)

// GeminiProvider sends conversations to Google's Generative AI API. A client
// is built per request so the key is picked up from the environment each time.
type GeminiProvider struct {
	model   string
	apiKey  func() string
	options []option.ClientOption
}

func NewGeminiProvider(model string, apiKey func() string, opts ...option.ClientOption) *GeminiProvider {
	return &GeminiProvider{
		model:   model,
		apiKey:  apiKey,
		options: opts,
	}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	key := p.apiKey()
	if key == "" {
		return "", ErrMissingAPIKey
	}

	system, history, last, err := splitForGemini(req.Messages)
	if err != nil {
		return "", err
	}

	opts := append([]option.ClientOption{option.WithAPIKey(key)}, p.options...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(p.model)
	model.SetTemperature(req.Sampling.Temperature)
	model.SetTopP(req.Sampling.TopP)
	if req.Sampling.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.Sampling.MaxTokens))
	}
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return "", &UpstreamError{
				StatusCode: apiErr.Code,
				Status:     http.StatusText(apiErr.Code),
				Body:       Redact(apiErr.Message, key),
				Err:        err,
			}
		}
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", &UpstreamError{Status: "returned no choices"}
	}
	return text, nil
}

// splitForGemini separates the system instruction and the final user turn
// from the prior turns, which become chat history.
func splitForGemini(msgs []models.ChatMessage) (system string, history []*genai.Content, last string, err error) {
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != models.RoleUser {
		return "", nil, "", fmt.Errorf("conversation must end with a user turn")
	}

	var systemParts []string
	for _, m := range msgs[:len(msgs)-1] {
		switch m.Role {
		case models.RoleSystem:
			systemParts = append(systemParts, m.Content)
		case models.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}

	return strings.Join(systemParts, "\n\n"), history, msgs[len(msgs)-1].Content, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	var text strings.Builder
	if cand := resp.Candidates[0]; cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}
	return text.String()
}
