package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"socratic-chat/internal/models"
)

// UpstreamObserver records completion call latency.
type UpstreamObserver interface {
	ObserveUpstream(provider string, took time.Duration, err error)
}

// ChatService composes the upstream conversation (system instruction,
// history window, new user turn) and relays it to a Provider. It keeps no
// state between calls.
type ChatService struct {
	provider      Provider
	systemPrompt  string
	historyWindow int
	sampling      SamplingParams
	observer      UpstreamObserver
	log           *zap.Logger
}

func NewChatService(provider Provider, systemPrompt string, historyWindow int, sampling SamplingParams, observer UpstreamObserver, log *zap.Logger) *ChatService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatService{
		provider:      provider,
		systemPrompt:  systemPrompt,
		historyWindow: historyWindow,
		sampling:      sampling,
		observer:      observer,
		log:           log,
	}
}

func (s *ChatService) HistoryWindow() int {
	return s.historyWindow
}

// Reply forwards message with the last HistoryWindow entries of history and
// returns the first choice's text verbatim.
func (s *ChatService) Reply(ctx context.Context, message string, history []models.ChatMessage) (string, error) {
	msgs := ComposeMessages(s.systemPrompt, history, message, s.historyWindow)

	start := time.Now()
	reply, err := s.provider.Complete(ctx, CompletionRequest{Messages: msgs, Sampling: s.sampling})
	took := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveUpstream(s.provider.Name(), took, err)
	}

	if err != nil {
		fields := []zap.Field{
			zap.String("provider", s.provider.Name()),
			zap.Duration("took", took),
			zap.Int("history_sent", len(TrimHistory(history, s.historyWindow))),
			zap.Error(err),
		}
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			fields = append(fields,
				zap.Int("upstream_status", upErr.StatusCode),
				zap.String("upstream_body", upErr.Body),
			)
		}
		s.log.Error("completion request failed", fields...)
		return "", err
	}

	s.log.Debug("completion request succeeded",
		zap.String("provider", s.provider.Name()),
		zap.Duration("took", took),
		zap.Int("reply_len", len(reply)),
	)
	return reply, nil
}

// TrimHistory returns the last n entries of history in their original order.
func TrimHistory(history []models.ChatMessage, n int) []models.ChatMessage {
	if n <= 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// ComposeMessages builds the upstream message list: the system instruction
// (omitted when empty), the trimmed history, then the new user turn.
func ComposeMessages(system string, history []models.ChatMessage, message string, window int) []models.ChatMessage {
	recent := TrimHistory(history, window)

	msgs := make([]models.ChatMessage, 0, len(recent)+2)
	if system != "" {
		msgs = append(msgs, models.ChatMessage{Role: models.RoleSystem, Content: system})
	}
	msgs = append(msgs, recent...)
	msgs = append(msgs, models.ChatMessage{Role: models.RoleUser, Content: message})
	return msgs
}
