package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/calm-companion/backend/internal/handler/reply"
	middlewarePkg "github.com/zhouzirui/calm-companion/backend/internal/middleware"
	"github.com/zhouzirui/calm-companion/backend/pkg/utils"
)

// RouterConfig collects what NewRouter needs besides the reply generator.
type RouterConfig struct {
	AllowedOrigins []string
	// Static serves the frontend; nil disables it.
	Static http.Handler
	Logger *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(replies reply.Generator, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.AllowedOrigins))

	replyHandler := reply.New(replies, cfg.Logger)

	r.Route("/api", func(api chi.Router) {
		replyHandler.RegisterRoutes(api)

		api.NotFound(func(w http.ResponseWriter, r *http.Request) {
			utils.RespondError(w, http.StatusNotFound, "not_found")
		})
	})

	if cfg.Static != nil {
		// 深链接回退到 index.html。
		r.Get("/*", cfg.Static.ServeHTTP)
		r.Head("/*", cfg.Static.ServeHTTP)
	}

	return r
}
