package plans

import (
	"context"
	"time"

	"pmds/internal/domain/notifications"
)

// DueItems reports improvement items and development plans reaching their
// dates to the reminder job.
func (s *Service) DueItems(ctx context.Context, tenantID string, until time.Time) ([]notifications.DueItem, error) {
	rows, err := s.store.DueItems(ctx, tenantID, until)
	if err != nil {
		return nil, err
	}
	out := make([]notifications.DueItem, 0, len(rows))
	for _, r := range rows {
		item := notifications.DueItem{
			UserID:     r.UserID,
			ObjectType: r.ObjectType,
			ObjectID:   r.ObjectID,
			DueDate:    r.DueDate,
		}
		if r.ObjectType == notifications.ObjectDevelopmentPlan {
			item.Title = "Reminder: development plan"
			item.Message = "Your development plan for \"" + r.Title + "\" is nearing its end date."
		} else {
			item.Title = "Reminder: improvement plan"
			item.Message = "The improvement area \"" + r.Title + "\" is nearing its target date."
		}
		out = append(out, item)
	}
	return out, nil
}
