package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/qaderichat/backend/internal/handler/chat"
	"github.com/qaderichat/backend/internal/handler/ws"
	"github.com/qaderichat/backend/internal/metrics"
	"github.com/qaderichat/backend/internal/middleware"
	chatService "github.com/qaderichat/backend/internal/service/chat"
	"github.com/qaderichat/backend/pkg/utils"
	"github.com/qaderichat/backend/web"
)

// RouterConfig carries the dependencies of NewRouter.
type RouterConfig struct {
	ChatService        *chatService.Service
	Diagnostics        chat.Diagnostics
	Metrics            *metrics.Metrics
	Logger             zerolog.Logger
	CookieSecure       bool
	RateLimitPerMinute int
}

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.StripSlashes)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	assets := web.Static()
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(assets))))

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.Metrics)
	chatHandler := chat.New(cfg.ChatService, limiter, cfg.Diagnostics)
	wsHandler := ws.New(cfg.ChatService, limiter)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(cfg.CookieSecure, cfg.Metrics))

		servePage := func(w http.ResponseWriter, r *http.Request) {
			http.ServeFileFS(w, r, assets, "index.html")
		}
		r.Get("/", servePage)
		r.Get("/chat", servePage)

		wsHandler.RegisterRoutes(r)

		r.Route("/api", func(api chi.Router) {
			api.Use(middleware.CORS)
			chatHandler.RegisterRoutes(api)
		})
	})

	return r
}
