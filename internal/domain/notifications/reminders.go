package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

type ReminderSummary struct {
	Candidates int `json:"candidates"`
	Users      int `json:"users"`
	Sent       int `json:"sent"`
	Skipped    int `json:"skipped"`
}

// ReminderInterval is the minimum gap between reminder batches for a
// frequency setting.
func ReminderInterval(frequency string) time.Duration {
	switch frequency {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

func reminderDue(prefs Preferences, now time.Time) bool {
	if !prefs.ReviewReminders {
		return false
	}
	if prefs.LastRemindedAt == nil {
		return true
	}
	// one hour of slack so an hourly ticker doesn't skip a whole period
	return now.Sub(*prefs.LastRemindedAt) >= ReminderInterval(prefs.ReminderFrequency)-time.Hour
}

// SendDueReminders collects items due within lookahead from every source and
// sends one REMINDER per item to users whose frequency window has elapsed.
func (s *Service) SendDueReminders(ctx context.Context, tenantID string, now time.Time, lookahead time.Duration) (any, error) {
	until := now.Add(lookahead)
	byUser := map[string][]DueItem{}
	summary := ReminderSummary{}
	for _, src := range s.Sources {
		items, err := src.DueItems(ctx, tenantID, until)
		if err != nil {
			return summary, fmt.Errorf("collect due items: %w", err)
		}
		for _, item := range items {
			byUser[item.UserID] = append(byUser[item.UserID], item)
			summary.Candidates++
		}
	}

	users := make([]string, 0, len(byUser))
	for userID := range byUser {
		users = append(users, userID)
	}
	sort.Strings(users)

	for _, userID := range users {
		prefs, err := s.store.GetPreferences(ctx, tenantID, userID)
		if err != nil {
			slog.Warn("reminder preferences lookup failed", "userId", userID, "err", err)
			continue
		}
		if !reminderDue(prefs, now) {
			summary.Skipped += len(byUser[userID])
			continue
		}
		summary.Users++
		for _, item := range byUser[userID] {
			created, err := s.Notify(ctx, Message{
				TenantID:          tenantID,
				UserID:            userID,
				Type:              TypeReminder,
				Title:             item.Title,
				Message:           reminderMessage(item, now),
				RelatedObjectType: item.ObjectType,
				RelatedObjectID:   item.ObjectID,
			})
			if err != nil {
				slog.Warn("reminder send failed", "userId", userID, "err", err)
				continue
			}
			if created {
				summary.Sent++
			}
		}
		if err := s.store.TouchReminded(ctx, tenantID, userID, now); err != nil {
			slog.Warn("reminder timestamp update failed", "userId", userID, "err", err)
		}
	}
	return summary, nil
}

func reminderMessage(item DueItem, now time.Time) string {
	if item.DueDate.IsZero() {
		return item.Message
	}
	days := int(item.DueDate.Sub(now).Hours() / 24)
	due := item.DueDate.Format("2006-01-02")
	switch {
	case days < 0:
		return fmt.Sprintf("%s Overdue since %s.", item.Message, due)
	case days == 0:
		return fmt.Sprintf("%s Due today (%s).", item.Message, due)
	default:
		return fmt.Sprintf("%s Due in %d day(s) on %s.", item.Message, days, due)
	}
}
