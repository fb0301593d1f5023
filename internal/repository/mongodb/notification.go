package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/model"
)

func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	now := s.now()
	doc := notificationDoc{
		ID:        xid.New().String(),
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		Priority:  string(n.Priority),
		Sender:    n.SenderID,
		Recipient: n.RecipientID,
		Read:      n.Read,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.notifications.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongodb: creating notification: %w", err)
	}

	out, err := s.populateNotifications(ctx, []notificationDoc{doc})
	if err != nil {
		return err
	}
	*n = out[0]
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	var d notificationDoc
	if err := s.notifications.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("Notification")
		}
		return nil, fmt.Errorf("mongodb: getting notification %s: %w", id, err)
	}
	out, err := s.populateNotifications(ctx, []notificationDoc{d})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *Store) ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error) {
	cur, err := s.notifications.Find(ctx,
		bson.M{"recipient": recipientID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb: listing notifications: %w", err)
	}
	var docs []notificationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb: decoding notifications: %w", err)
	}
	return s.populateNotifications(ctx, docs)
}

func (s *Store) SetNotificationRead(ctx context.Context, id string, read bool) error {
	res, err := s.notifications.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"read": read, "updatedAt": s.now()}})
	if err != nil {
		return fmt.Errorf("mongodb: updating notification %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("Notification")
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	res, err := s.notifications.UpdateMany(ctx,
		bson.M{"recipient": recipientID, "read": false},
		bson.M{"$set": bson.M{"read": true, "updatedAt": s.now()}})
	if err != nil {
		return 0, fmt.Errorf("mongodb: marking notifications read: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	res, err := s.notifications.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb: deleting notification %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("Notification")
	}
	return nil
}

func (s *Store) PruneReadNotifications(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.notifications.DeleteMany(ctx,
		bson.M{"read": true, "createdAt": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("mongodb: pruning notifications: %w", err)
	}
	return int(res.DeletedCount), nil
}
