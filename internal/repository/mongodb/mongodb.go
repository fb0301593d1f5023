// Package mongodb implements the repository interfaces on MongoDB.
//
// COLLECTIONS:
//
//	users          unique index on email (stored lower-cased)
//	posts          comments are embedded, each with its own _id;
//	               likes and likedBy are changed together in one update
//	notifications  indexed on (recipient, createdAt)
//
// IDs are xid strings rather than ObjectIDs so both backends hand the same
// identifiers to the rest of the program.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/codeshare/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store implements repository.Store on one MongoDB database.
type Store struct {
	client        *mongo.Client
	users         *mongo.Collection
	posts         *mongo.Collection
	notifications *mongo.Collection
	now           func() time.Time
}

// New connects to uri, pings the server and ensures indexes.
// dbName falls back to "codeshare" when empty.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	if dbName == "" {
		dbName = "codeshare"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connecting: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: pinging: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:        client,
		users:         db.Collection("users"),
		posts:         db.Collection("posts"),
		notifications: db.Collection("notifications"),
		now:           func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}

	if err := s.ensureIndexes(connectCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: creating indexes: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("users: %w", err)
	}
	if _, err := s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("posts: %w", err)
	}
	if _, err := s.notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "createdAt", Value: -1}},
	}); err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	return nil
}

func clampPage(p repository.Page) (limit, offset int64) {
	limit = int64(p.Limit)
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = int64(p.Offset)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
