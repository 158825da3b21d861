package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quill/internal/httputil"
	"quill/internal/model"
	"quill/internal/service"
	"quill/internal/transport/http/middleware"
)

type ReactionHandler struct {
	posts *service.PostService
}

func NewReactionHandler(posts *service.PostService) *ReactionHandler {
	return &ReactionHandler{posts: posts}
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

// React handles PUT /posts/{id}/reactions. Reacting again with the same
// emoji succeeds without effect.
func (h *ReactionHandler) React(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postID, ok := idParam(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}
	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.posts.React(r.Context(), postID, actor, req.Emoji); err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidEmoji):
			httputil.WriteBadRequest(w, "Invalid emoji")
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		default:
			log.Printf("[ERROR] react: post=%d actor=%d err=%v", postID, actor.ID, err)
			httputil.WriteInternalError(w, "Failed to add reaction")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

// Undo handles DELETE /posts/{id}/reactions.
func (h *ReactionHandler) Undo(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postID, ok := idParam(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}
	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.posts.UndoReact(r.Context(), postID, actor, req.Emoji); err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidEmoji):
			httputil.WriteBadRequest(w, "Invalid emoji")
		case errors.Is(err, model.ErrReactionNotFound):
			httputil.WriteNotFound(w, "Reaction not found")
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		default:
			log.Printf("[ERROR] undo reaction: post=%d actor=%d err=%v", postID, actor.ID, err)
			httputil.WriteInternalError(w, "Failed to remove reaction")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}
