package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/events"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/repository"
)

// Dispatcher pushes a stored notification to its recipient's live
// connection, if there is one. realtime.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(recipientID string, n *model.Notification) bool
}

// NotificationService stores notifications and fans them out.
//
// DELIVERY:
// The database row is the source of truth. After a row is written the
// service tries two best-effort side channels: the WebSocket push (only if
// the recipient is online right now) and the event stream. Neither can fail
// the request.
type NotificationService struct {
	users     repository.UserRepository
	notes     repository.NotificationRepository
	push      Dispatcher
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewNotificationService(
	users repository.UserRepository,
	notes repository.NotificationRepository,
	push Dispatcher,
	publisher events.Publisher,
	logger zerolog.Logger,
) *NotificationService {
	return &NotificationService{
		users:     users,
		notes:     notes,
		push:      push,
		publisher: publisher,
		logger:    logger.With().Str("component", "notifications").Logger(),
	}
}

// SendInput is the body of a send-notification request.
type SendInput struct {
	Title         string
	Message       string
	Type          string
	Priority      string
	RecipientType string
	SelectedUsers []string
}

// SendResult reports what Send stored.
type SendResult struct {
	Notifications []model.Notification
	Pushed        int
}

// Send creates one notification per recipient from senderID.
//
// "all" and "contributors" both address every user except the sender;
// "specific" addresses SelectedUsers, each of which must exist.
func (s *NotificationService) Send(ctx context.Context, senderID string, in SendInput) (*SendResult, error) {
	title := strings.TrimSpace(in.Title)
	message := strings.TrimSpace(in.Message)
	if title == "" || message == "" {
		return nil, apperror.ValidationFailed("", "Title and message are required")
	}
	kind, err := model.ParseNotificationType(in.Type)
	if err != nil {
		return nil, err
	}
	priority, err := model.ParsePriority(in.Priority)
	if err != nil {
		return nil, err
	}

	recipients, err := s.recipients(ctx, senderID, model.RecipientType(in.RecipientType), in.SelectedUsers)
	if err != nil {
		return nil, err
	}

	result := &SendResult{Notifications: make([]model.Notification, 0, len(recipients))}
	for _, recipientID := range recipients {
		n := &model.Notification{
			Title:       title,
			Message:     message,
			Type:        kind,
			Priority:    priority,
			SenderID:    senderID,
			RecipientID: recipientID,
		}
		if err := s.notes.CreateNotification(ctx, n); err != nil {
			return nil, fmt.Errorf("creating notification for %s: %w", recipientID, err)
		}
		result.Notifications = append(result.Notifications, *n)

		if s.push.Dispatch(recipientID, n) {
			result.Pushed++
		}
		if err := s.publisher.PublishNotification(ctx, n); err != nil {
			s.logger.Warn().Err(err).Str("notificationId", n.ID).Msg("publishing notification event failed")
		}
	}

	s.logger.Info().
		Str("senderId", senderID).
		Int("sent", len(result.Notifications)).
		Int("pushed", result.Pushed).
		Msg("notifications sent")
	return result, nil
}

func (s *NotificationService) recipients(ctx context.Context, senderID string, kind model.RecipientType, selected []string) ([]string, error) {
	switch kind {
	case model.RecipientsAll, model.RecipientsContributors:
		users, err := s.users.ListUsersExcept(ctx, senderID)
		if err != nil {
			return nil, fmt.Errorf("listing recipients: %w", err)
		}
		ids := make([]string, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}
		return ids, nil

	case model.RecipientsSpecific:
		seen := make(map[string]bool, len(selected))
		ids := make([]string, 0, len(selected))
		for _, id := range selected {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return nil, apperror.ValidationFailed("selectedUsers", "Please select at least one user")
		}
		for _, id := range ids {
			if _, err := s.users.GetUserByID(ctx, id); err != nil {
				return nil, err
			}
		}
		return ids, nil
	}
	return nil, apperror.ValidationFailed("recipientType", "Recipient type must be all, contributors or specific")
}

// List returns the notifications addressed to userID, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]model.Notification, error) {
	notes, err := s.notes.ListNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	if notes == nil {
		notes = []model.Notification{}
	}
	return notes, nil
}

// MarkRead sets the read flag of one of userID's notifications.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string, read bool) (*model.Notification, error) {
	n, err := s.notes.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != userID {
		return nil, apperror.Forbidden("Not authorized to update this notification")
	}
	if err := s.notes.SetNotificationRead(ctx, id, read); err != nil {
		return nil, fmt.Errorf("updating notification %s: %w", id, err)
	}
	return s.notes.GetNotification(ctx, id)
}

// MarkAllRead marks every unread notification of userID and returns how many
// changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.notes.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return n, nil
}

// Delete removes one of userID's notifications.
func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	n, err := s.notes.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if n.RecipientID != userID {
		return apperror.Forbidden("Not authorized to delete this notification")
	}
	return s.notes.DeleteNotification(ctx, id)
}
