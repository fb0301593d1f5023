package model

import "time"

// Notification is a message from one user (usually staff) to another.
type Notification struct {
	ID          string           `json:"_id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Type        NotificationType `json:"type"`
	Priority    Priority         `json:"priority"`
	SenderID    string           `json:"-"`
	Sender      *UserSummary     `json:"sender"`
	RecipientID string           `json:"-"`
	Recipient   *UserSummary     `json:"recipient"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// RecipientType selects the audience of a broadcast notification.
type RecipientType string

const (
	RecipientsAll          RecipientType = "all"
	RecipientsContributors RecipientType = "contributors"
	RecipientsSpecific     RecipientType = "specific"
)

func (r RecipientType) Valid() bool {
	switch r {
	case RecipientsAll, RecipientsContributors, RecipientsSpecific:
		return true
	}
	return false
}
