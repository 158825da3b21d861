package handler

import (
	"errors"
	"log"
	"net/http"

	"quill/internal/httputil"
	"quill/internal/model"
	"quill/internal/service"
	"quill/internal/timeline"
	"quill/internal/transport/http/middleware"
)

type TimelineHandler struct {
	timelines *service.TimelineService
}

func NewTimelineHandler(timelines *service.TimelineService) *TimelineHandler {
	return &TimelineHandler{timelines: timelines}
}

// Home handles GET /timeline/home.
func (h *TimelineHandler) Home(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	cursor, limit := pageParams(r)

	resp, err := h.timelines.Home(r.Context(), actor, cursor, limit, langPrefs(r))
	if err != nil {
		h.writeTimelineError(w, "home", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Profile handles GET /actors/{id}/posts.
func (h *TimelineHandler) Profile(w http.ResponseWriter, r *http.Request) {
	actorID, ok := idParam(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid actor ID")
		return
	}
	viewer := middleware.ActorFromContext(r.Context())
	cursor, limit := pageParams(r)

	resp, err := h.timelines.Profile(r.Context(), actorID, viewer, cursor, limit, langPrefs(r))
	if err != nil {
		if errors.Is(err, model.ErrActorNotFound) {
			httputil.WriteNotFound(w, "Actor not found")
			return
		}
		h.writeTimelineError(w, "profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Replies handles GET /posts/{id}/replies.
func (h *TimelineHandler) Replies(w http.ResponseWriter, r *http.Request) {
	postID, ok := idParam(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}
	viewer := middleware.ActorFromContext(r.Context())
	cursor, limit := pageParams(r)

	resp, err := h.timelines.Replies(r.Context(), postID, viewer, cursor, limit, langPrefs(r))
	if err != nil {
		if errors.Is(err, model.ErrPostNotFound) {
			httputil.WriteNotFound(w, "Post not found")
			return
		}
		h.writeTimelineError(w, "replies", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Quotes handles GET /posts/{id}/quotes.
func (h *TimelineHandler) Quotes(w http.ResponseWriter, r *http.Request) {
	postID, ok := idParam(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}
	viewer := middleware.ActorFromContext(r.Context())
	cursor, limit := pageParams(r)

	resp, err := h.timelines.Quotes(r.Context(), postID, viewer, cursor, limit, langPrefs(r))
	if err != nil {
		if errors.Is(err, model.ErrPostNotFound) {
			httputil.WriteNotFound(w, "Post not found")
			return
		}
		h.writeTimelineError(w, "quotes", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *TimelineHandler) writeTimelineError(w http.ResponseWriter, kind string, err error) {
	// A malformed cursor is a client error, everything else is ours.
	if errors.Is(err, timeline.ErrInvalidCursor) {
		httputil.WriteBadRequest(w, "Invalid cursor")
		return
	}
	log.Printf("[ERROR] %s timeline: %v", kind, err)
	httputil.WriteInternalError(w, "Failed to load timeline")
}
