package notifications

import "time"

type Notification struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	Type              string     `json:"type"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	RelatedObjectType string     `json:"relatedObjectType,omitempty"`
	RelatedObjectID   *string    `json:"relatedObjectId,omitempty"`
	EmailSent         bool       `json:"emailSent"`
	ReadAt            *time.Time `json:"readAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Message is a notification about to be delivered.
type Message struct {
	TenantID          string
	UserID            string
	Type              string
	Title             string
	Message           string
	RelatedObjectType string
	RelatedObjectID   string
}

type Preferences struct {
	EmailNotifications    bool       `json:"emailNotifications"`
	ReviewReminders       bool       `json:"reviewReminders"`
	PlanUpdates           bool       `json:"planUpdates"`
	FeedbackNotifications bool       `json:"feedbackNotifications"`
	ReminderFrequency     string     `json:"reminderFrequency"`
	LastRemindedAt        *time.Time `json:"lastRemindedAt,omitempty"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		EmailNotifications:    true,
		ReviewReminders:       true,
		PlanUpdates:           true,
		FeedbackNotifications: true,
		ReminderFrequency:     FrequencyWeekly,
	}
}

type Settings struct {
	EmailEnabled bool   `json:"emailEnabled"`
	EmailFrom    string `json:"emailFrom"`
}

// DueItem is something waiting on a user with a date inside the lookahead.
type DueItem struct {
	UserID     string
	ObjectType string
	ObjectID   string
	Title      string
	Message    string
	DueDate    time.Time
}

type ListFilter struct {
	UnreadOnly bool
	Type       string
}
