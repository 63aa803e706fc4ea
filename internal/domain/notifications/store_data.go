package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const notificationColumns = "id, user_id, type, title, message, related_object_type, related_object_id, email_sent, read_at, created_at"

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.RelatedObjectType, &n.RelatedObjectID, &n.EmailSent, &n.ReadAt, &n.CreatedAt)
	return n, err
}

func (s *Store) CreateNotification(ctx context.Context, msg Message) (Notification, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO notifications (tenant_id, user_id, type, title, message, related_object_type, related_object_id)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING `+notificationColumns+`
  `, msg.TenantID, msg.UserID, msg.Type, msg.Title, msg.Message, msg.RelatedObjectType, nullIfEmpty(msg.RelatedObjectID))
	return scanNotification(row)
}

func (s *Store) MarkEmailSent(ctx context.Context, tenantID, notificationID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE notifications SET email_sent = true WHERE tenant_id = $1 AND id = $2", tenantID, notificationID)
	return err
}

func (s *Store) UserEmail(ctx context.Context, tenantID, userID string) (string, error) {
	var email string
	if err := s.DB.QueryRow(ctx, "SELECT email FROM users WHERE tenant_id = $1 AND id = $2 AND status = 'active'", tenantID, userID).Scan(&email); err != nil {
		return "", err
	}
	return email, nil
}

func listWhere(filter ListFilter, args []any) (string, []any) {
	where := " WHERE tenant_id = $1 AND user_id = $2"
	if filter.UnreadOnly {
		where += " AND read_at IS NULL"
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	return where, args
}

func (s *Store) ListNotifications(ctx context.Context, tenantID, userID string, filter ListFilter, limit, offset int) ([]Notification, error) {
	where, args := listWhere(filter, []any{tenantID, userID})
	args = append(args, limit, offset)
	rows, err := s.DB.Query(ctx, `
    SELECT `+notificationColumns+`
    FROM notifications`+where+fmt.Sprintf(`
    ORDER BY created_at DESC
    LIMIT $%d OFFSET $%d
  `, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountNotifications(ctx context.Context, tenantID, userID string, filter ListFilter) (int, error) {
	where, args := listWhere(filter, []any{tenantID, userID})
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM notifications"+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) MarkRead(ctx context.Context, tenantID, userID, notificationID string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = COALESCE(read_at, now())
    WHERE tenant_id = $1 AND user_id = $2 AND id = $3
  `, tenantID, userID, notificationID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) MarkAllRead(ctx context.Context, tenantID, userID string) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = now()
    WHERE tenant_id = $1 AND user_id = $2 AND read_at IS NULL
  `, tenantID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) EmailSettings(ctx context.Context, tenantID string) (Settings, error) {
	var out Settings
	err := s.DB.QueryRow(ctx, `
    SELECT email_notifications_enabled, email_from
    FROM tenant_settings
    WHERE tenant_id = $1
  `, tenantID).Scan(&out.EmailEnabled, &out.EmailFrom)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, nil
	}
	return out, err
}

func (s *Store) UpdateSettings(ctx context.Context, tenantID string, settings Settings) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO tenant_settings (tenant_id, email_notifications_enabled, email_from)
    VALUES ($1,$2,$3)
    ON CONFLICT (tenant_id) DO UPDATE
      SET email_notifications_enabled = EXCLUDED.email_notifications_enabled,
          email_from = EXCLUDED.email_from,
          updated_at = now()
  `, tenantID, settings.EmailEnabled, settings.EmailFrom)
	return err
}

// GetPreferences lazily creates the default row.
func (s *Store) GetPreferences(ctx context.Context, tenantID, userID string) (Preferences, error) {
	defaults := DefaultPreferences()
	var p Preferences
	err := s.DB.QueryRow(ctx, `
    INSERT INTO notification_preferences (user_id, tenant_id, email_notifications, review_reminders, plan_updates, feedback_notifications, reminder_frequency)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
    RETURNING email_notifications, review_reminders, plan_updates, feedback_notifications, reminder_frequency, last_reminded_at
  `, userID, tenantID, defaults.EmailNotifications, defaults.ReviewReminders, defaults.PlanUpdates, defaults.FeedbackNotifications, defaults.ReminderFrequency).
		Scan(&p.EmailNotifications, &p.ReviewReminders, &p.PlanUpdates, &p.FeedbackNotifications, &p.ReminderFrequency, &p.LastRemindedAt)
	return p, err
}

func (s *Store) UpsertPreferences(ctx context.Context, tenantID, userID string, p Preferences) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO notification_preferences (user_id, tenant_id, email_notifications, review_reminders, plan_updates, feedback_notifications, reminder_frequency)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (user_id) DO UPDATE
      SET email_notifications = EXCLUDED.email_notifications,
          review_reminders = EXCLUDED.review_reminders,
          plan_updates = EXCLUDED.plan_updates,
          feedback_notifications = EXCLUDED.feedback_notifications,
          reminder_frequency = EXCLUDED.reminder_frequency,
          updated_at = now()
  `, userID, tenantID, p.EmailNotifications, p.ReviewReminders, p.PlanUpdates, p.FeedbackNotifications, p.ReminderFrequency)
	return err
}

func (s *Store) TouchReminded(ctx context.Context, tenantID, userID string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE notification_preferences SET last_reminded_at = $3
    WHERE tenant_id = $1 AND user_id = $2
  `, tenantID, userID, at)
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
