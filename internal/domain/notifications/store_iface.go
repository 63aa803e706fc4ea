package notifications

import (
	"context"
	"time"
)

type StoreAPI interface {
	CreateNotification(ctx context.Context, msg Message) (Notification, error)
	MarkEmailSent(ctx context.Context, tenantID, notificationID string) error
	UserEmail(ctx context.Context, tenantID, userID string) (string, error)
	ListNotifications(ctx context.Context, tenantID, userID string, filter ListFilter, limit, offset int) ([]Notification, error)
	CountNotifications(ctx context.Context, tenantID, userID string, filter ListFilter) (int, error)
	MarkRead(ctx context.Context, tenantID, userID, notificationID string) (bool, error)
	MarkAllRead(ctx context.Context, tenantID, userID string) (int64, error)
	EmailSettings(ctx context.Context, tenantID string) (Settings, error)
	UpdateSettings(ctx context.Context, tenantID string, settings Settings) error
	GetPreferences(ctx context.Context, tenantID, userID string) (Preferences, error)
	UpsertPreferences(ctx context.Context, tenantID, userID string, prefs Preferences) error
	TouchReminded(ctx context.Context, tenantID, userID string, at time.Time) error
}

// ReminderSource lists items awaiting users in a tenant up to a date.
type ReminderSource interface {
	DueItems(ctx context.Context, tenantID string, until time.Time) ([]DueItem, error)
}
