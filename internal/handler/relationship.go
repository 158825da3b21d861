package handler

import (
	"errors"
	"log"
	"net/http"

	"quill/internal/httputil"
	"quill/internal/model"
	"quill/internal/service"
	"quill/internal/transport/http/middleware"
)

type RelationshipHandler struct {
	rels *service.RelationshipService
}

func NewRelationshipHandler(rels *service.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{rels: rels}
}

// Get handles GET /actors/{id}/relationship.
func (h *RelationshipHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	targetID, ok := idParam(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid actor ID")
		return
	}

	rel, err := h.rels.Relationship(r.Context(), actor.ID, targetID)
	if err != nil {
		log.Printf("[ERROR] get relationship: viewer=%d target=%d err=%v", actor.ID, targetID, err)
		httputil.WriteInternalError(w, "Failed to get relationship")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rel)
}

// Follow handles POST /actors/{id}/follow.
func (h *RelationshipHandler) Follow(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	targetID, ok := idParam(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid actor ID")
		return
	}

	state, err := h.rels.Follow(r.Context(), actor, targetID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCannotFollowSelf):
			httputil.WriteBadRequest(w, "Cannot follow yourself")
		case errors.Is(err, model.ErrActorNotFound):
			httputil.WriteNotFound(w, "Actor not found")
		case errors.Is(err, model.ErrActorBlocked):
			httputil.WriteForbidden(w, "Interaction blocked")
		default:
			log.Printf("[ERROR] follow: actor=%d target=%d err=%v", actor.ID, targetID, err)
			httputil.WriteInternalError(w, "Failed to follow")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"state": state})
}

// Unfollow handles DELETE /actors/{id}/follow.
func (h *RelationshipHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	targetID, ok := idParam(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid actor ID")
		return
	}

	if err := h.rels.Unfollow(r.Context(), actor, targetID); err != nil {
		if errors.Is(err, model.ErrNotFollowing) {
			httputil.WriteNotFound(w, "Not following this actor")
			return
		}
		log.Printf("[ERROR] unfollow: actor=%d target=%d err=%v", actor.ID, targetID, err)
		httputil.WriteInternalError(w, "Failed to unfollow")
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

// Block handles POST /actors/{id}/block.
func (h *RelationshipHandler) Block(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	targetID, ok := idParam(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid actor ID")
		return
	}

	if err := h.rels.Block(r.Context(), actor, targetID); err != nil {
		switch {
		case errors.Is(err, model.ErrCannotBlockSelf):
			httputil.WriteBadRequest(w, "Cannot block yourself")
		case errors.Is(err, model.ErrActorNotFound):
			httputil.WriteNotFound(w, "Actor not found")
		default:
			log.Printf("[ERROR] block: actor=%d target=%d err=%v", actor.ID, targetID, err)
			httputil.WriteInternalError(w, "Failed to block")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

// Unblock handles DELETE /actors/{id}/block.
func (h *RelationshipHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	targetID, ok := idParam(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid actor ID")
		return
	}

	if err := h.rels.Unblock(r.Context(), actor, targetID); err != nil {
		if errors.Is(err, model.ErrNotBlocking) {
			httputil.WriteNotFound(w, "Not blocking this actor")
			return
		}
		log.Printf("[ERROR] unblock: actor=%d target=%d err=%v", actor.ID, targetID, err)
		httputil.WriteInternalError(w, "Failed to unblock")
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}
