package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/codeshare/internal/model"
)

// Documents as stored. model types carry JSON tags for the API; these carry
// bson tags for the database, and the two never share a struct.

type userDoc struct {
	ID            string     `bson:"_id"`
	FullName      string     `bson:"fullName"`
	Email         string     `bson:"email"`
	Password      string     `bson:"password"`
	ProfilePic    string     `bson:"profilePic"`
	Role          string     `bson:"role"`
	Status        string     `bson:"status"`
	StatusReason  string     `bson:"statusReason"`
	AuthProvider  string     `bson:"authProvider"`
	FirebaseUID   string     `bson:"firebaseUid,omitempty"`
	LastLogin     *time.Time `bson:"lastLogin"`
	LoginAttempts int        `bson:"loginAttempts"`
	LockUntil     *time.Time `bson:"lockUntil"`
	CreatedAt     time.Time  `bson:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt"`
}

func newUserDoc(u *model.User) userDoc {
	return userDoc{
		ID:            u.ID,
		FullName:      u.FullName,
		Email:         u.Email,
		Password:      u.PasswordHash,
		ProfilePic:    u.ProfilePic,
		Role:          string(u.Role),
		Status:        string(u.Status),
		StatusReason:  u.StatusReason,
		AuthProvider:  string(u.AuthProvider),
		FirebaseUID:   u.ProviderUID,
		LastLogin:     utcPtr(u.LastLogin),
		LoginAttempts: u.LoginAttempts,
		LockUntil:     utcPtr(u.LockUntil),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (d userDoc) toModel() model.User {
	return model.User{
		ID:            d.ID,
		FullName:      d.FullName,
		Email:         d.Email,
		PasswordHash:  d.Password,
		ProfilePic:    d.ProfilePic,
		Role:          model.Role(d.Role),
		Status:        model.Status(d.Status),
		StatusReason:  d.StatusReason,
		AuthProvider:  model.AuthProvider(d.AuthProvider),
		ProviderUID:   d.FirebaseUID,
		LastLogin:     utcPtr(d.LastLogin),
		LoginAttempts: d.LoginAttempts,
		LockUntil:     utcPtr(d.LockUntil),
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

type commentDoc struct {
	ID        string    `bson:"_id"`
	Text      string    `bson:"text"`
	Author    string    `bson:"author"`
	CreatedAt time.Time `bson:"createdAt"`
}

type postDoc struct {
	ID                  string       `bson:"_id"`
	Owner               string       `bson:"owner"`
	Privacy             string       `bson:"privacy"`
	ProgrammingLanguage string       `bson:"programmingLanguage"`
	ProjectCode         string       `bson:"projectCode"`
	ProjectName         string       `bson:"projectName"`
	Likes               int          `bson:"likes"`
	LikedBy             []string     `bson:"likedBy"`
	Comments            []commentDoc `bson:"comments"`
	CreatedAt           time.Time    `bson:"createdAt"`
	UpdatedAt           time.Time    `bson:"updatedAt"`
}

type notificationDoc struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	Message   string    `bson:"message"`
	Type      string    `bson:"type"`
	Priority  string    `bson:"priority"`
	Sender    string    `bson:"sender"`
	Recipient string    `bson:"recipient"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// summaries loads the public projection of every user in ids.
// Unknown IDs are simply absent from the map.
func (s *Store) summaries(ctx context.Context, ids []string) (map[string]*model.UserSummary, error) {
	out := make(map[string]*model.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("mongodb: loading users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb: decoding users: %w", err)
	}
	for _, d := range docs {
		u := d.toModel()
		out[d.ID] = u.Summary()
	}
	return out, nil
}

// summaryOr returns the loaded summary for id, or a bare one carrying only the ID.
func summaryOr(m map[string]*model.UserSummary, id string) *model.UserSummary {
	if s, ok := m[id]; ok {
		return s
	}
	return &model.UserSummary{ID: id}
}

// populatePosts converts docs to posts with owner and comment authors filled in.
func (s *Store) populatePosts(ctx context.Context, docs []postDoc) ([]model.Post, error) {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, d := range docs {
		add(d.Owner)
		for _, c := range d.Comments {
			add(c.Author)
		}
	}

	users, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	posts := make([]model.Post, 0, len(docs))
	for _, d := range docs {
		p := model.Post{
			ID:                  d.ID,
			OwnerID:             d.Owner,
			Owner:               summaryOr(users, d.Owner),
			Privacy:             model.Privacy(d.Privacy),
			ProgrammingLanguage: d.ProgrammingLanguage,
			ProjectCode:         d.ProjectCode,
			ProjectName:         d.ProjectName,
			Likes:               d.Likes,
			LikedBy:             d.LikedBy,
			Comments:            make([]model.Comment, 0, len(d.Comments)),
			CreatedAt:           d.CreatedAt.UTC(),
			UpdatedAt:           d.UpdatedAt.UTC(),
		}
		if p.LikedBy == nil {
			p.LikedBy = []string{}
		}
		for _, c := range d.Comments {
			p.Comments = append(p.Comments, model.Comment{
				ID:        c.ID,
				PostID:    d.ID,
				Text:      c.Text,
				AuthorID:  c.Author,
				Author:    commentAuthor(summaryOr(users, c.Author)),
				CreatedAt: c.CreatedAt.UTC(),
			})
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// commentAuthor drops the email: comment authors are shown by name and picture only.
func commentAuthor(s *model.UserSummary) *model.UserSummary {
	return &model.UserSummary{ID: s.ID, FullName: s.FullName, ProfilePic: s.ProfilePic}
}

func (s *Store) populateNotifications(ctx context.Context, docs []notificationDoc) ([]model.Notification, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, d := range docs {
		for _, id := range []string{d.Sender, d.Recipient} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	users, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.Notification{
			ID:          d.ID,
			Title:       d.Title,
			Message:     d.Message,
			Type:        model.NotificationType(d.Type),
			Priority:    model.Priority(d.Priority),
			SenderID:    d.Sender,
			Sender:      summaryOr(users, d.Sender),
			RecipientID: d.Recipient,
			Recipient:   summaryOr(users, d.Recipient),
			Read:        d.Read,
			CreatedAt:   d.CreatedAt.UTC(),
			UpdatedAt:   d.UpdatedAt.UTC(),
		})
	}
	return out, nil
}
