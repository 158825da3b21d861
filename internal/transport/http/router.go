package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quill/internal/handler"
	"quill/internal/httputil"
	authmw "quill/internal/transport/http/middleware"
)

// RouterConfig holds the handlers the router mounts.
type RouterConfig struct {
	PostHandler         *handler.PostHandler
	ReactionHandler     *handler.ReactionHandler
	TimelineHandler     *handler.TimelineHandler
	RelationshipHandler *handler.RelationshipHandler
	JWTSecret           string
}

// NewRouter wires all route groups. Read surfaces take optional auth so
// anonymous viewers can reach public posts; write surfaces require a session.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Read surfaces: anonymous allowed, viewer resolved when a token is sent.
	r.Group(func(r chi.Router) {
		r.Use(authmw.OptionalAuth(cfg.JWTSecret))

		r.Get("/posts/{id}", cfg.PostHandler.Get)
		r.Get("/posts/{id}/replies", cfg.TimelineHandler.Replies)
		r.Get("/posts/{id}/quotes", cfg.TimelineHandler.Quotes)
		r.Get("/actors/{id}/posts", cfg.TimelineHandler.Profile)
	})

	// Write surfaces and the home timeline require authentication.
	r.Group(func(r chi.Router) {
		r.Use(authmw.Auth(cfg.JWTSecret))

		r.Get("/timeline/home", cfg.TimelineHandler.Home)

		r.Post("/posts", cfg.PostHandler.Create)
		r.Delete("/posts/{id}", cfg.PostHandler.Delete)
		r.Post("/posts/{id}/share", cfg.PostHandler.Share)
		r.Delete("/posts/{id}/share", cfg.PostHandler.Unshare)
		r.Put("/posts/{id}/reactions", cfg.ReactionHandler.React)
		r.Delete("/posts/{id}/reactions", cfg.ReactionHandler.Undo)

		r.Get("/actors/{id}/relationship", cfg.RelationshipHandler.Get)
		r.Post("/actors/{id}/follow", cfg.RelationshipHandler.Follow)
		r.Delete("/actors/{id}/follow", cfg.RelationshipHandler.Unfollow)
		r.Post("/actors/{id}/block", cfg.RelationshipHandler.Block)
		r.Delete("/actors/{id}/block", cfg.RelationshipHandler.Unblock)
	})

	return r
}
