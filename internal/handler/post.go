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

type PostHandler struct {
	posts *service.PostService
}

func NewPostHandler(posts *service.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// Create handles POST /posts.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	post, err := h.posts.Create(r.Context(), actor, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrEmptyContent):
			httputil.WriteBadRequest(w, "Post content is required")
		case errors.Is(err, model.ErrContentTooLong):
			httputil.WriteBadRequest(w, "Post content too long (max 5000 characters)")
		case errors.Is(err, model.ErrTooManyMentions):
			httputil.WriteBadRequest(w, "Too many mentions (max 50)")
		case errors.Is(err, model.ErrCannotShareLevel):
			httputil.WriteBadRequest(w, "Followers-only and direct posts cannot be quoted")
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		default:
			log.Printf("[ERROR] create post: actor=%d err=%v", actor.ID, err)
			httputil.WriteInternalError(w, "Failed to create post")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, post)
}

// Get handles GET /posts/{id}. Posts the viewer may not see read as 404,
// the same as posts that don't exist.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID, ok := idParam(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}
	viewer := middleware.ActorFromContext(r.Context())

	post, err := h.posts.Get(r.Context(), postID, viewer, langPrefs(r))
	if err != nil {
		if errors.Is(err, model.ErrPostNotFound) {
			httputil.WriteNotFound(w, "Post not found")
			return
		}
		log.Printf("[ERROR] get post: post=%d err=%v", postID, err)
		httputil.WriteInternalError(w, "Failed to get post")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{id}.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.posts.Delete(r.Context(), postID, actor); err != nil {
		switch {
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		case errors.Is(err, model.ErrNotPostAuthor):
			httputil.WriteForbidden(w, "Only the author can delete a post")
		default:
			log.Printf("[ERROR] delete post: post=%d actor=%d err=%v", postID, actor.ID, err)
			httputil.WriteInternalError(w, "Failed to delete post")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

type shareRequest struct {
	Visibility string `json:"visibility"`
}

// Share handles POST /posts/{id}/share.
func (h *PostHandler) Share(w http.ResponseWriter, r *http.Request) {
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

	// An absent body means the share inherits the original's level; a body
	// that fails to parse is still a client error.
	var req shareRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	wrapper, err := h.posts.Share(r.Context(), postID, actor, req.Visibility)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		case errors.Is(err, model.ErrCannotShareLevel):
			httputil.WriteBadRequest(w, "Followers-only and direct posts cannot be shared")
		case errors.Is(err, model.ErrAlreadyShared):
			httputil.WriteConflict(w, "Post already shared")
		default:
			log.Printf("[ERROR] share post: post=%d actor=%d err=%v", postID, actor.ID, err)
			httputil.WriteInternalError(w, "Failed to share post")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, wrapper)
}

// Unshare handles DELETE /posts/{id}/share.
func (h *PostHandler) Unshare(w http.ResponseWriter, r *http.Request) {
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

	if err := h.posts.Unshare(r.Context(), postID, actor); err != nil {
		switch {
		case errors.Is(err, model.ErrNotShared):
			httputil.WriteNotFound(w, "Post not shared")
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		default:
			log.Printf("[ERROR] unshare post: post=%d actor=%d err=%v", postID, actor.ID, err)
			httputil.WriteInternalError(w, "Failed to unshare post")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}
