package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/service"
)

// PostHandler serves /api/posts. Every route is behind RequireAuth.
type PostHandler struct {
	svc    *service.PostService
	rs     *Responder
	logger zerolog.Logger
}

func NewPostHandler(svc *service.PostService, rs *Responder, logger zerolog.Logger) *PostHandler {
	return &PostHandler{svc: svc, rs: rs, logger: logger}
}

// HandleSidebarUsers lists everyone except the caller.
//
// HTTP: GET /api/posts/users
func (h *PostHandler) HandleSidebarUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	users, err := h.svc.SidebarUsers(r.Context(), user.ID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleList returns the feed.
//
// HTTP: GET /api/posts
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	posts, err := h.svc.List(r.Context(), user.ID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

type createPostRequest struct {
	ProjectName         string `json:"projectName"`
	ProgrammingLanguage string `json:"programmingLanguage"`
	ProjectCode         string `json:"projectCode"`
	Privacy             string `json:"privacy"`
}

// HandleCreate shares a new post.
//
// HTTP: POST /api/posts/send (also POST /api/posts)
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	post, err := h.svc.Create(r.Context(), user.ID, service.CreatePostInput{
		ProjectName:         req.ProjectName,
		ProgrammingLanguage: req.ProgrammingLanguage,
		ProjectCode:         req.ProjectCode,
		Privacy:             req.Privacy,
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleToggleLike likes the post, or takes the like back.
//
// HTTP: POST /api/posts/{id}/like
func (h *PostHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	res, err := h.svc.ToggleLike(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type addCommentRequest struct {
	Text string `json:"text"`
}

// HandleAddComment comments on a post.
//
// HTTP: POST /api/posts/{id}/comments
func (h *PostHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	var req addCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	c, err := h.svc.AddComment(r.Context(), chi.URLParam(r, "id"), user.ID, req.Text)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleDeleteComment removes one of the caller's comments.
//
// HTTP: DELETE /api/posts/{postId}/comments/{commentId}
func (h *PostHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	err := h.svc.DeleteComment(r.Context(), chi.URLParam(r, "postId"), chi.URLParam(r, "commentId"), user.ID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Comment deleted successfully"})
}
