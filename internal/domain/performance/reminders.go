package performance

import (
	"context"
	"time"

	"pmds/internal/domain/notifications"
)

// DueItems feeds the reminder job with agreements and reviews waiting on
// someone and due before until.
func (s *Service) DueItems(ctx context.Context, tenantID string, until time.Time) ([]notifications.DueItem, error) {
	work, err := s.store.PendingWork(ctx, tenantID, "", &until)
	if err != nil {
		return nil, err
	}
	items := make([]notifications.DueItem, 0, len(work))
	for _, w := range work {
		items = append(items, notifications.DueItem{
			UserID:     w.UserID,
			ObjectType: w.ObjectType,
			ObjectID:   w.ObjectID,
			Title:      "Reminder: " + w.Title,
			Message:    w.Title + " is waiting for you (" + string(w.Status) + ").",
			DueDate:    w.DueDate,
		})
	}
	return items, nil
}
