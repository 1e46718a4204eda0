package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"socratic-chat/internal/handlers"
	"socratic-chat/internal/logger"
	"socratic-chat/internal/middleware"
	"socratic-chat/internal/web"
)

// New wires every endpoint. ws and metrics may be nil, which leaves
// those routes unmounted.
func New(
	chatHandler *handlers.ChatHandler,
	ws http.HandlerFunc,
	metrics http.Handler,
	log *zap.Logger,
	frontendURL string,
) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	r.Get("/health", handlers.Health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	// ──── Chat UI ────
	r.Get("/", web.Index)
	r.Handle("/static/*", web.Static())

	r.Route("/api", func(r chi.Router) {
		// Any method reaches the handler so it can answer 405 itself.
		r.HandleFunc("/chat", chatHandler.Relay)

		if ws != nil {
			r.Get("/ws", ws)
		}
	})

	return r
}
