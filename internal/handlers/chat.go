package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"socratic-chat/internal/metrics"
	"socratic-chat/internal/models"
	"socratic-chat/internal/services"
)

const maxRequestBody = 1 << 20

type chatRelay interface {
	Reply(ctx context.Context, message string, history []models.ChatMessage) (string, error)
}

type replyRenderer interface {
	Render(text string) (string, error)
}

type relayObserver interface {
	ObserveRelay(outcome string)
}

type ChatHandler struct {
	relay    chatRelay
	renderer replyRenderer
	metrics  relayObserver
	log      *zap.Logger
}

// NewChatHandler builds the relay handler. r may be nil, in which case
// replies carry no rendered HTML.
func NewChatHandler(relay chatRelay, r replyRenderer, m relayObserver, log *zap.Logger) *ChatHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatHandler{
		relay:    relay,
		renderer: r,
		metrics:  m,
		log:      log,
	}
}

// Relay handles POST /api/chat. It is registered for every method so that
// anything other than POST gets a 405 before the body is looked at.
func (h *ChatHandler) Relay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.observe(metrics.OutcomeBadMethod)
		writeJSON(w, http.StatusMethodNotAllowed, errorResp("Method not allowed"))
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.observe(metrics.OutcomeBadRequest)
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid request body"))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		h.observe(metrics.OutcomeBadRequest)
		writeJSON(w, http.StatusBadRequest, errorResp("No message provided"))
		return
	}

	reply, err := h.relay.Reply(r.Context(), req.Message, req.ConversationHistory)
	if err != nil {
		h.observe(metrics.OutcomeUpstreamError)
		h.log.Warn("chat relay failed",
			zap.String("request-id", r.Header.Get("X-Request-ID")),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to communicate with the completion API",
			Details: services.Describe(err),
		})
		return
	}

	resp := models.ChatResponse{Reply: reply}
	if h.renderer != nil {
		if html, err := h.renderer.Render(reply); err == nil {
			resp.HTML = html
		} else {
			h.log.Warn("markdown render failed", zap.Error(err))
		}
	}

	h.observe(metrics.OutcomeOK)
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) observe(outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveRelay(outcome)
	}
}
