package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Outbox runs deferred work on a background worker. Enqueue reports false
// when the work was dropped.
type Outbox interface {
	Enqueue(kind, tenantID string, task func(context.Context) (any, error)) bool
}

const JobEmailDelivery = "email_delivery"

// Pusher delivers realtime events to a user's open connections.
type Pusher interface {
	Publish(tenantID, userID, eventType string, data any)
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	Push        Pusher
	Outbox      Outbox
	DefaultFrom string
	Sources     []ReminderSource
	now         func() time.Time
}

func New(store StoreAPI, mailer Mailer, push Pusher, defaultFrom string) *Service {
	if defaultFrom == "" {
		defaultFrom = "no-reply@example.com"
	}
	return &Service{store: store, Mailer: mailer, Push: push, DefaultFrom: defaultFrom, now: time.Now}
}

// AddReminderSource registers a provider of due items for the reminder job.
func (s *Service) AddReminderSource(src ReminderSource) {
	s.Sources = append(s.Sources, src)
}

// Notify persists the notification, pushes it and sends email best-effort.
// Types tied to an opt-out preference are skipped when the user opted out;
// the returned bool reports whether a notification was created.
func (s *Service) Notify(ctx context.Context, msg Message) (bool, error) {
	if strings.TrimSpace(msg.UserID) == "" {
		return false, nil
	}
	prefs, err := s.store.GetPreferences(ctx, msg.TenantID, msg.UserID)
	if err != nil {
		slog.Warn("notification preferences lookup failed", "userId", msg.UserID, "err", err)
		prefs = DefaultPreferences()
	}
	if !allowedByPreferences(msg.Type, prefs) {
		return false, nil
	}

	n, err := s.store.CreateNotification(ctx, msg)
	if err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	if s.Push != nil {
		s.Push.Publish(msg.TenantID, msg.UserID, EventNotification, n)
	}
	if prefs.EmailNotifications {
		s.sendEmail(ctx, msg, n.ID)
	}
	return true, nil
}

// NotifyMany sends the same message to each distinct recipient and logs
// failures instead of returning them.
func (s *Service) NotifyMany(ctx context.Context, userIDs []string, msg Message) {
	seen := map[string]bool{}
	for _, userID := range userIDs {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		m := msg
		m.UserID = userID
		if _, err := s.Notify(ctx, m); err != nil {
			slog.Warn("notification failed", "userId", userID, "type", msg.Type, "err", err)
		}
	}
}

func allowedByPreferences(ntype string, prefs Preferences) bool {
	switch ntype {
	case TypeFeedback:
		return prefs.FeedbackNotifications
	case TypePlanUpdate:
		return prefs.PlanUpdates
	case TypeReminder:
		return prefs.ReviewReminders
	default:
		return true
	}
}

func (s *Service) sendEmail(ctx context.Context, msg Message, notificationID string) {
	if s.Mailer == nil {
		return
	}
	settings, err := s.store.EmailSettings(ctx, msg.TenantID)
	if err != nil {
		slog.Warn("notification email settings lookup failed", "err", err)
		return
	}
	if !settings.EmailEnabled {
		return
	}
	from := settings.EmailFrom
	if from == "" {
		from = s.DefaultFrom
	}
	email, err := s.store.UserEmail(ctx, msg.TenantID, msg.UserID)
	if err != nil {
		slog.Warn("notification email lookup failed", "err", err)
		return
	}
	if email == "" {
		return
	}
	s.SendEmail(ctx, msg.TenantID, from, email, msg.Title, msg.Message, func(ctx context.Context) {
		if err := s.store.MarkEmailSent(ctx, msg.TenantID, notificationID); err != nil {
			slog.Warn("notification email flag update failed", "err", err)
		}
	})
}

// SendEmail hands the message to the outbox so SMTP latency never holds up
// a request. Without an outbox it sends inline. sent runs after the mail
// server accepted the message.
func (s *Service) SendEmail(ctx context.Context, tenantID, from, to, subject, body string, sent func(context.Context)) {
	if s.Mailer == nil || strings.TrimSpace(to) == "" {
		return
	}
	task := func(ctx context.Context) (any, error) {
		if err := s.Mailer.Send(ctx, from, to, subject, body); err != nil {
			return nil, err
		}
		if sent != nil {
			sent(ctx)
		}
		return map[string]string{"subject": subject}, nil
	}
	if s.Outbox == nil {
		if _, err := task(ctx); err != nil {
			slog.Warn("email send failed", "tenantId", tenantID, "err", err)
		}
		return
	}
	if !s.Outbox.Enqueue(JobEmailDelivery, tenantID, task) {
		slog.Warn("email dropped", "tenantId", tenantID, "subject", subject)
	}
}

func (s *Service) List(ctx context.Context, tenantID, userID string, filter ListFilter, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, tenantID, userID, filter, limit, offset)
}

func (s *Service) Count(ctx context.Context, tenantID, userID string, filter ListFilter) (int, error) {
	return s.store.CountNotifications(ctx, tenantID, userID, filter)
}

func (s *Service) UnreadCount(ctx context.Context, tenantID, userID string) (int, error) {
	return s.store.CountNotifications(ctx, tenantID, userID, ListFilter{UnreadOnly: true})
}

func (s *Service) MarkRead(ctx context.Context, tenantID, userID, notificationID string) error {
	ok, err := s.store.MarkRead(ctx, tenantID, userID, notificationID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, tenantID, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, tenantID, userID)
}

func (s *Service) GetSettings(ctx context.Context, tenantID string) (Settings, error) {
	return s.store.EmailSettings(ctx, tenantID)
}

func (s *Service) UpdateSettings(ctx context.Context, tenantID string, settings Settings) error {
	settings.EmailFrom = strings.TrimSpace(settings.EmailFrom)
	return s.store.UpdateSettings(ctx, tenantID, settings)
}

func (s *Service) GetPreferences(ctx context.Context, tenantID, userID string) (Preferences, error) {
	return s.store.GetPreferences(ctx, tenantID, userID)
}

func (s *Service) UpdatePreferences(ctx context.Context, tenantID, userID string, prefs Preferences) (Preferences, error) {
	prefs.ReminderFrequency = strings.ToUpper(strings.TrimSpace(prefs.ReminderFrequency))
	if prefs.ReminderFrequency == "" {
		prefs.ReminderFrequency = FrequencyWeekly
	}
	if !slices.Contains(Frequencies, prefs.ReminderFrequency) {
		return Preferences{}, ErrInvalidFrequency
	}
	if err := s.store.UpsertPreferences(ctx, tenantID, userID, prefs); err != nil {
		return Preferences{}, err
	}
	return s.store.GetPreferences(ctx, tenantID, userID)
}
