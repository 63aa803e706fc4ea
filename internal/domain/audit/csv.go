package audit

import (
	"encoding/csv"
	"io"
	"time"
)

var csvHeader = []string{"id", "created_at", "actor_id", "impersonator_id", "action", "entity_type", "entity_id", "object_repr", "request_id", "ip", "user_agent"}

// WriteCSV streams events in the export column order.
func WriteCSV(w io.Writer, events []Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, evt := range events {
		if err := cw.Write([]string{
			evt.ID,
			evt.CreatedAt.UTC().Format(time.RFC3339),
			deref(evt.ActorID),
			deref(evt.ImpersonatorID),
			evt.Action,
			evt.EntityType,
			evt.EntityID,
			evt.ObjectRepr,
			evt.RequestID,
			evt.IP,
			evt.UserAgent,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
