package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/service"
)

// AdminHandler serves /api/admin. Role checks happen in the router with
// auth.RequireRole; by the time a method runs the caller is staff.
type AdminHandler struct {
	svc    *service.AdminService
	rs     *Responder
	logger zerolog.Logger
}

func NewAdminHandler(svc *service.AdminService, rs *Responder, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, rs: rs, logger: logger}
}

// HandleDashboard returns site statistics.
//
// HTTP: GET /api/admin/dashboard (admin)
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleUsers lists users with their post counts.
//
// HTTP: GET /api/admin/users?page=&limit=&search=&role=&status=
func (h *AdminHandler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.Users(r.Context(), service.UserQuery{
		Page:   queryInt(q.Get("page")),
		Limit:  queryInt(q.Get("limit")),
		Search: q.Get("search"),
		Role:   q.Get("role"),
		Status: q.Get("status"),
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type updateUserRequest struct {
	Role   string `json:"role"`
	Status string `json:"status"`
	Reason string `json:"reason" validate:"max=500"`
}

// HandleUpdateUser changes a user's role or status.
//
// HTTP: PUT /api/admin/users/{userId} (admin)
func (h *AdminHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	updated, err := h.svc.UpdateUser(r.Context(), actor.ID, chi.URLParam(r, "userId"), service.UpdateUserInput{
		Role:   req.Role,
		Status: req.Status,
		Reason: req.Reason,
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleDeleteUser deletes a user and their posts.
//
// HTTP: DELETE /api/admin/users/{userId} (admin)
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	if err := h.svc.DeleteUser(r.Context(), actor.ID, chi.URLParam(r, "userId")); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}

// HandlePosts lists every post for moderation.
//
// HTTP: GET /api/admin/posts?page=&limit=&search=&language=&privacy=&sortBy=&sortOrder=
func (h *AdminHandler) HandlePosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.Posts(r.Context(), service.PostQuery{
		Page:      queryInt(q.Get("page")),
		Limit:     queryInt(q.Get("limit")),
		Search:    q.Get("search"),
		Language:  q.Get("language"),
		Privacy:   q.Get("privacy"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type deletePostRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// HandleDeletePost removes any post. The body and its reason are optional.
//
// HTTP: DELETE /api/admin/posts/{postId}
func (h *AdminHandler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	var req deletePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	if err := h.svc.DeletePost(r.Context(), actor.ID, chi.URLParam(r, "postId"), req.Reason); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted successfully"})
}

// HandleSettings returns the static site settings.
//
// HTTP: GET /api/admin/settings (admin)
func (h *AdminHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings())
}

// HandleSystem reports host and process metrics.
//
// HTTP: GET /api/admin/system (admin)
func (h *AdminHandler) HandleSystem(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.System(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// queryInt parses a paging parameter. Garbage reads as 0, which the service
// replaces with its default.
func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
