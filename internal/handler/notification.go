package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/service"
)

// NotificationHandler serves /api/notifications and the notification routes
// of the admin panel.
type NotificationHandler struct {
	svc    *service.NotificationService
	rs     *Responder
	logger zerolog.Logger
}

func NewNotificationHandler(svc *service.NotificationService, rs *Responder, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, rs: rs, logger: logger}
}

// HandleList returns the caller's notifications, newest first.
//
// HTTP: GET /api/notifications, GET /api/notifications/{userId},
// GET /api/admin/notifications
//
// A userId in the path is ignored: a user only ever reads their own.
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	notes, err := h.svc.List(r.Context(), user.ID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

type sendNotificationRequest struct {
	Title         string   `json:"title"`
	Message       string   `json:"message"`
	Type          string   `json:"type"`
	Priority      string   `json:"priority"`
	RecipientType string   `json:"recipientType"`
	SelectedUsers []string `json:"selectedUsers" validate:"omitempty,dive,required"`
}

type sendNotificationResponse struct {
	Message           string               `json:"message"`
	NotificationsSent int                  `json:"notificationsSent"`
	Notifications     []model.Notification `json:"notifications"`
}

// HandleSend sends a notification from the caller.
//
// HTTP: POST /api/admin/send-notification, POST /api/notifications/send/{userId}
//
// On the second route an omitted recipientType means "just this user".
func (h *NotificationHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	var req sendNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	if target := chi.URLParam(r, "userId"); target != "" && req.RecipientType == "" {
		req.RecipientType = string(model.RecipientsSpecific)
		req.SelectedUsers = []string{target}
	}

	res, err := h.svc.Send(r.Context(), user.ID, service.SendInput{
		Title:         req.Title,
		Message:       req.Message,
		Type:          req.Type,
		Priority:      req.Priority,
		RecipientType: req.RecipientType,
		SelectedUsers: req.SelectedUsers,
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.logger.Info().
		Str("senderId", user.ID).
		Int("sent", len(res.Notifications)).
		Int("pushed", res.Pushed).
		Msg("notifications sent")

	writeJSON(w, http.StatusCreated, sendNotificationResponse{
		Message:           "Notification sent successfully",
		NotificationsSent: len(res.Notifications),
		Notifications:     res.Notifications,
	})
}

type markReadRequest struct {
	Read *bool `json:"read" validate:"required"`
}

type markReadResponse struct {
	Message      string              `json:"message"`
	Notification *model.Notification `json:"notification"`
}

// HandleMarkRead sets the read flag of one notification.
//
// HTTP: PATCH /api/notifications/{id}/read
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	var req markReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	n, err := h.svc.MarkRead(r.Context(), user.ID, chi.URLParam(r, "id"), *req.Read)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markReadResponse{Message: "Notification updated successfully", Notification: n})
}

type markAllReadResponse struct {
	Message       string `json:"message"`
	ModifiedCount int    `json:"modifiedCount"`
}

// HandleMarkAllRead marks every unread notification of the caller as read.
//
// HTTP: PATCH /api/notifications/mark-all-read
func (h *NotificationHandler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	n, err := h.svc.MarkAllRead(r.Context(), user.ID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markAllReadResponse{Message: "All notifications marked as read", ModifiedCount: n})
}

// HandleDelete removes one of the caller's notifications.
//
// HTTP: DELETE /api/notifications/delete/{id}, DELETE /api/notifications/{id}
func (h *NotificationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.rs)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Notification deleted successfully"})
}
