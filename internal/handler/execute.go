package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/service"
)

// ExecuteHandler runs a post's code in the sandbox.
type ExecuteHandler struct {
	posts  *service.PostService
	rs     *Responder
	logger zerolog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(posts *service.PostService, rs *Responder, logger zerolog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		posts:  posts,
		rs:     rs,
		logger: logger,
	}
}

// HandleRun executes the stored code of a post and returns its output.
//
// HTTP: POST /api/posts/{id}/run
//
// The code comes from the database, never from the request, so a client can
// only run what it could already read.
func (h *ExecuteHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	postID := chi.URLParam(r, "id")

	h.logger.Info().Str("postId", postID).Str("userId", user.ID).Msg("running post code")

	result, err := h.posts.Run(r.Context(), postID, user.ID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
