package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"socratic-chat/internal/models"
)

// ErrMissingAPIKey is returned before any network call when the upstream
// credential is not present in the environment.
var ErrMissingAPIKey = errors.New("completion API key is not configured")

// Provider sends one composed conversation to a completion API and returns
// the text of the first choice.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type SamplingParams struct {
	Temperature      float32
	MaxTokens        int
	TopP             float32
	FrequencyPenalty float32
	PresencePenalty  float32
}

type CompletionRequest struct {
	Messages []models.ChatMessage
	Sampling SamplingParams
}

// UpstreamError describes a completion call that reached the provider but
// did not yield a usable reply. StatusCode is 0 when the failure happened
// after a 2xx response, e.g. a body that could not be decoded.
type UpstreamError struct {
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream returned %d %s", e.StatusCode, e.Status)
	if e.StatusCode == 0 {
		msg = "upstream " + e.Status
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Describe returns a short caller-safe summary of err. Upstream bodies are
// never included; they are only logged.
func Describe(err error) string {
	var upErr *UpstreamError
	var netErr net.Error
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return "API credential is not configured"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "upstream request timed out"
	case errors.As(err, &upErr):
		if upErr.StatusCode == 0 {
			return "upstream " + upErr.Status
		}
		return fmt.Sprintf("upstream returned %d %s", upErr.StatusCode, upErr.Status)
	default:
		return "upstream request failed"
	}
}

// Redact masks every occurrence of secret in s.
func Redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "[REDACTED]")
}
