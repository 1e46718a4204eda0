package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"socratic-chat/internal/models"
)

// ApologyText replaces the reply whenever the relay fails.
const ApologyText = "抱歉，我暂时无法回应您的请求。请稍后再试。"

const writeWait = 10 * time.Second

type replier interface {
	Reply(ctx context.Context, message string, history []models.ChatMessage) (string, error)
}

// windowed is implemented by relays that only forward the last N turns.
type windowed interface {
	HistoryWindow() int
}

type renderer interface {
	Render(text string) (string, error)
}

type sessionObserver interface {
	SessionOpened()
	SessionClosed()
	SubmitDropped()
}

// Hub serves the chat session channel. Every connection is one page
// session with its own transcript; nothing outlives the connection.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session

	relay    replier
	renderer renderer
	metrics  sessionObserver
	log      *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	// window caps each session transcript; negative keeps everything.
	window int
}

func NewHub(relay replier, r renderer, m sessionObserver, allowedOrigin string, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	window := -1
	if w, ok := relay.(windowed); ok {
		window = w.HistoryWindow()
	}
	return &Hub{
		sessions: make(map[uuid.UUID]*session),
		relay:    relay,
		renderer: r,
		metrics:  m,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		now:    time.Now,
		window: window,
	}
}

func originChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if allowed == "*" || origin == "" || origin == allowed {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

type session struct {
	id     uuid.UUID
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	writeMu  sync.Mutex
	inFlight atomic.Bool

	mu         sync.Mutex
	transcript []models.Message
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{id: uuid.New(), conn: conn, ctx: ctx, cancel: cancel}
	h.register(s)

	go func() {
		defer h.unregister(s)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			h.handleFrame(s, data)
		}
	}()
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	h.sessions[s.id] = s
	total := len(h.sessions)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SessionOpened()
	}
	h.log.Info("chat session opened", zap.String("session", s.id.String()), zap.Int("total", total))
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	_, ok := h.sessions[s.id]
	delete(h.sessions, s.id)
	h.mu.Unlock()

	s.cancel()
	s.conn.Close()

	if ok {
		if h.metrics != nil {
			h.metrics.SessionClosed()
		}
		h.log.Info("chat session closed", zap.String("session", s.id.String()))
	}
}

// Close ends every open session.
func (h *Hub) Close() {
	h.mu.RLock()
	open := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		open = append(open, s)
	}
	h.mu.RUnlock()

	for _, s := range open {
		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		h.unregister(s)
	}
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) handleFrame(s *session, data []byte) {
	var in models.WSInbound
	if err := json.Unmarshal(data, &in); err != nil {
		h.log.Debug("ignoring malformed frame", zap.String("session", s.id.String()), zap.Error(err))
		return
	}

	switch in.Type {
	case models.WSTypeSend:
		var p models.SendPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return
		}
		h.submit(s, p.Text)
	default:
		h.log.Debug("ignoring unknown frame type", zap.String("type", in.Type))
	}
}

// submit starts one relay exchange. While a reply is outstanding further
// submissions are dropped.
func (h *Hub) submit(s *session, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		if h.metrics != nil {
			h.metrics.SubmitDropped()
		}
		return
	}

	userMsg := models.Message{Sender: models.SenderUser, Text: text, Timestamp: h.timestamp()}

	s.mu.Lock()
	history := toHistory(s.transcript)
	s.record(userMsg, h.window)
	s.mu.Unlock()

	// The client shows its own turn on submit; only the typing state is sent.
	s.send(models.WSMessage{Type: models.WSTypeTyping, Payload: models.TypingPayload{Active: true}})

	go func() {
		reply := h.exchange(s, text, history)

		s.send(models.WSMessage{Type: models.WSTypeMessage, Payload: reply})
		s.inFlight.Store(false)
		s.send(models.WSMessage{Type: models.WSTypeTyping, Payload: models.TypingPayload{Active: false}})
	}()
}

func (h *Hub) exchange(s *session, text string, history []models.ChatMessage) models.Message {
	reply, err := h.relay.Reply(s.ctx, text, history)
	if err != nil {
		h.log.Warn("session relay failed", zap.String("session", s.id.String()), zap.Error(err))
		return models.Message{Sender: models.SenderAI, Text: ApologyText, Timestamp: h.timestamp()}
	}

	msg := models.Message{Sender: models.SenderAI, Text: reply, Timestamp: h.timestamp()}
	if h.renderer != nil {
		if html, err := h.renderer.Render(reply); err == nil {
			msg.HTML = html
		} else {
			h.log.Warn("markdown render failed", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.record(msg, h.window)
	s.mu.Unlock()
	return msg
}

// record appends msg and drops turns that can no longer reach the relay.
// Callers hold s.mu.
func (s *session) record(msg models.Message, window int) {
	s.transcript = append(s.transcript, msg)
	if window >= 0 && len(s.transcript) > window {
		s.transcript = append(s.transcript[:0:0], s.transcript[len(s.transcript)-window:]...)
	}
}

func (h *Hub) timestamp() string {
	return h.now().Format("15:04:05")
}

func (s *session) send(msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.TextMessage, data)
}

// toHistory converts the transcript into upstream turns. Failed exchanges
// never enter the transcript, so the apology is not replayed to the model.
func toHistory(transcript []models.Message) []models.ChatMessage {
	history := make([]models.ChatMessage, 0, len(transcript))
	for _, m := range transcript {
		history = append(history, models.ChatMessage{Role: m.Role(), Content: m.Text})
	}
	return history
}
