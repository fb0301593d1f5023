package model

import "time"

// PrivateCodePlaceholder replaces the code of a private post for every
// reader except its owner.
const PrivateCodePlaceholder = "This post is private | You don't have access to view the code. | Don't try to access it."

// Post is a shared code snippet.
//
// Likes always equals len(LikedBy): the stores update both in one atomic
// step. Comments are ordered oldest first and each has its own stable ID.
type Post struct {
	ID                  string       `json:"_id"`
	OwnerID             string       `json:"-"`
	Owner               *UserSummary `json:"senderId"`
	Privacy             Privacy      `json:"privacy"`
	ProgrammingLanguage string       `json:"programmingLanguage"`
	ProjectCode         string       `json:"projectCode"`
	ProjectName         string       `json:"projectName"`
	Likes               int          `json:"likes"`
	LikedBy             []string     `json:"likedBy"`
	Comments            []Comment    `json:"comments"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// IsOwnedBy reports whether userID created the post.
func (p *Post) IsOwnedBy(userID string) bool {
	return userID != "" && p.OwnerID == userID
}

// VisibleTo returns a copy of the post as viewerID may see it: private code
// is masked unless the viewer owns the post.
func (p Post) VisibleTo(viewerID string) Post {
	if p.Privacy == PrivacyPrivate && !p.IsOwnedBy(viewerID) {
		p.ProjectCode = PrivateCodePlaceholder
	}
	return p
}

// Comment belongs to exactly one post.
type Comment struct {
	ID        string       `json:"_id"`
	PostID    string       `json:"-"`
	Text      string       `json:"text"`
	AuthorID  string       `json:"-"`
	Author    *UserSummary `json:"author"`
	CreatedAt time.Time    `json:"createdAt"`
}

// LikeResult is the state of a post's likes after a toggle.
type LikeResult struct {
	Likes   int      `json:"likes"`
	LikedBy []string `json:"likedBy"`
	IsLiked bool     `json:"isLiked"`
}
