package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/webchat/internal/config"
	"github.com/yegors/webchat/pkg/logger"
)

// Router wires the HTTP surface: the chat control endpoints, the widget
// event stream, and the static widget files
type Router struct {
	handler *Handler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates a new router
func NewRouter(handler *Handler, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler: handler,
		config:  cfg,
		logger:  log.Named("router"),
	}
}

// Routes builds the chi route tree
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.corsMiddleware)

	r.Route("/api/v1/chat", func(r chi.Router) {
		r.Post("/start", rt.handler.StartChat)
		r.Post("/resume", rt.handler.ResumeChat)
		r.Post("/message", rt.handler.SendMessage)
		r.Post("/typing", rt.handler.SendTyping)
		r.Post("/end", rt.handler.EndChat)
		r.Post("/callback", rt.handler.RequestCallback)
		r.Get("/status", rt.handler.GetStatus)
	})

	r.Get("/ws", rt.handler.wsServer.HandleConnection)

	if rt.config.Server.StaticFilesDir != "" {
		staticHandler := NewStaticFileHandler(rt.config.Server.StaticFilesDir, rt.logger)
		r.NotFound(staticHandler.ServeHTTP)
	}

	return r
}

// corsMiddleware applies the configured allowed origins
func (rt *Router) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && rt.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rt *Router) originAllowed(origin string) bool {
	for _, allowed := range rt.config.Server.CORSAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
