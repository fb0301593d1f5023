package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sakif/codeshare/internal/model"
)

func (s *Store) Dashboard(ctx context.Context, now time.Time) (*model.Dashboard, error) {
	now = now.UTC()
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)

	d := &model.Dashboard{}
	counts := []struct {
		coll   *mongo.Collection
		filter bson.M
		dst    *int
	}{
		{s.users, bson.M{}, &d.Stats.TotalUsers},
		{s.posts, bson.M{}, &d.Stats.TotalPosts},
		{s.users, bson.M{"role": string(model.RoleAdmin)}, &d.Stats.TotalAdmins},
		{s.users, bson.M{"role": string(model.RoleModerator)}, &d.Stats.TotalModerators},
		{s.users, bson.M{"createdAt": bson.M{"$gte": weekAgo}}, &d.Stats.NewUsersThisWeek},
		{s.posts, bson.M{"createdAt": bson.M{"$gte": weekAgo}}, &d.Stats.NewPostsThisWeek},
	}
	for _, c := range counts {
		n, err := c.coll.CountDocuments(ctx, c.filter)
		if err != nil {
			return nil, fmt.Errorf("mongodb: counting totals: %w", err)
		}
		*c.dst = int(n)
	}

	var err error
	if d.PostsByLanguage, err = s.postsByLanguage(ctx); err != nil {
		return nil, err
	}
	if d.UserRegistrationTrend, err = s.registrationTrend(ctx, monthAgo); err != nil {
		return nil, err
	}
	if d.MostActiveUsers, err = s.mostActiveUsers(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) postsByLanguage(ctx context.Context) ([]model.LanguageCount, error) {
	cur, err := s.posts.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$programmingLanguage", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: 10}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongodb: grouping posts by language: %w", err)
	}
	var rows []struct {
		Language string `bson:"_id"`
		Count    int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("mongodb: decoding language counts: %w", err)
	}

	out := make([]model.LanguageCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.LanguageCount{Language: r.Language, Count: r.Count})
	}
	return out, nil
}

func (s *Store) registrationTrend(ctx context.Context, since time.Time) ([]model.RegistrationDay, error) {
	cur, err := s.users.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"createdAt": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"year":  bson.M{"$year": "$createdAt"},
				"month": bson.M{"$month": "$createdAt"},
				"day":   bson.M{"$dayOfMonth": "$createdAt"},
			},
			"count": bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongodb: grouping registrations: %w", err)
	}
	var rows []struct {
		Date struct {
			Year  int `bson:"year"`
			Month int `bson:"month"`
			Day   int `bson:"day"`
		} `bson:"_id"`
		Count int `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("mongodb: decoding registrations: %w", err)
	}

	counts := make(map[model.RegistrationDate]int, len(rows))
	for _, r := range rows {
		counts[model.RegistrationDate{Year: r.Date.Year, Month: r.Date.Month, Day: r.Date.Day}] = r.Count
	}
	return model.RegistrationTrend(counts), nil
}

func (s *Store) mostActiveUsers(ctx context.Context) ([]model.ActiveUser, error) {
	cur, err := s.posts.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$owner", "postCount": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "postCount", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: 10}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongodb: ranking active users: %w", err)
	}
	var rows []struct {
		UserID    string `bson:"_id"`
		PostCount int    `bson:"postCount"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("mongodb: decoding active users: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	users, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.ActiveUser, 0, len(rows))
	for _, r := range rows {
		u, ok := users[r.UserID]
		if !ok {
			continue
		}
		out = append(out, model.ActiveUser{UserID: r.UserID, User: *u, PostCount: r.PostCount})
	}
	return out, nil
}
