package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/repository"
)

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	if _, err := s.users.InsertOne(ctx, newUserDoc(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("Email already exists")
		}
		return fmt.Errorf("mongodb: creating user: %w", err)
	}
	return nil
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	var d userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("User")
		}
		return nil, fmt.Errorf("mongodb: getting user: %w", err)
	}
	u := d.toModel()
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = s.now()
	d := newUserDoc(user)

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"fullName":      d.FullName,
		"profilePic":    d.ProfilePic,
		"password":      d.Password,
		"role":          d.Role,
		"status":        d.Status,
		"statusReason":  d.StatusReason,
		"authProvider":  d.AuthProvider,
		"firebaseUid":   d.FirebaseUID,
		"lastLogin":     d.LastLogin,
		"loginAttempts": d.LoginAttempts,
		"lockUntil":     d.LockUntil,
		"updatedAt":     d.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("mongodb: updating user %s: %w", user.ID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("User")
	}
	return nil
}

// DeleteUser removes the user and everything that references them. MongoDB
// has no cascades, so each collection is cleaned explicitly.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb: deleting user %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("User")
	}

	if _, err := s.posts.DeleteMany(ctx, bson.M{"owner": id}); err != nil {
		return fmt.Errorf("mongodb: deleting posts of %s: %w", id, err)
	}
	// likedBy holds each user at most once, so pulling and decrementing
	// together keeps likes == len(likedBy).
	if _, err := s.posts.UpdateMany(ctx,
		bson.M{"likedBy": id},
		bson.M{"$pull": bson.M{"likedBy": id}, "$inc": bson.M{"likes": -1}},
	); err != nil {
		return fmt.Errorf("mongodb: removing likes of %s: %w", id, err)
	}
	if _, err := s.posts.UpdateMany(ctx,
		bson.M{"comments.author": id},
		bson.M{"$pull": bson.M{"comments": bson.M{"author": id}}},
	); err != nil {
		return fmt.Errorf("mongodb: removing comments of %s: %w", id, err)
	}
	if _, err := s.notifications.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"sender": id}, bson.M{"recipient": id},
	}}); err != nil {
		return fmt.Errorf("mongodb: deleting notifications of %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListUsersExcept(ctx context.Context, excludeID string) ([]model.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "fullName", Value: 1}}).
		SetCollation(&options.Collation{Locale: "en", Strength: 2})
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$ne": excludeID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: listing users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb: decoding users: %w", err)
	}

	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toModel())
	}
	return users, nil
}

func userFilter(f repository.UserFilter) bson.M {
	filter := bson.M{}
	if s := strings.TrimSpace(f.Search); s != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"fullName": re},
			bson.M{"email": re},
		}
	}
	if f.Role != "" {
		filter["role"] = string(f.Role)
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	return filter
}

// SearchUsers counts matches separately, then pages through them with a
// $lookup on posts for each user's post count.
func (s *Store) SearchUsers(ctx context.Context, f repository.UserFilter) ([]model.UserWithStats, int, error) {
	filter := userFilter(f)

	total, err := s.users.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongodb: counting users: %w", err)
	}

	limit, offset := clampPage(f.Page)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$skip", Value: offset}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.M{
			"from":         s.posts.Name(),
			"localField":   "_id",
			"foreignField": "owner",
			"as":           "posts",
		}}},
		{{Key: "$addFields", Value: bson.M{"postCount": bson.M{"$size": "$posts"}}}},
		{{Key: "$project", Value: bson.M{"posts": 0}}},
	}
	cur, err := s.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("mongodb: searching users: %w", err)
	}

	var rows []struct {
		User      userDoc `bson:",inline"`
		PostCount int     `bson:"postCount"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, 0, fmt.Errorf("mongodb: decoding users: %w", err)
	}

	users := make([]model.UserWithStats, 0, len(rows))
	for _, r := range rows {
		users = append(users, model.UserWithStats{User: r.User.toModel(), PostCount: r.PostCount})
	}
	return users, int(total), nil
}
