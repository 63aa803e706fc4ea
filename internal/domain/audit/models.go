package audit

import (
	"encoding/json"
	"time"
)

// Entry is one audited change. Before and After are marshalled to JSON.
type Entry struct {
	TenantID       string
	ActorID        string
	ImpersonatorID string
	Action         string
	EntityType     string
	EntityID       string
	ObjectRepr     string
	RequestID      string
	IP             string
	UserAgent      string
	Before         any
	After          any
}

type Event struct {
	ID             string          `json:"id"`
	ActorID        *string         `json:"actorId"`
	ImpersonatorID *string         `json:"impersonatorId,omitempty"`
	Action         string          `json:"action"`
	EntityType     string          `json:"entityType"`
	EntityID       string          `json:"entityId"`
	ObjectRepr     string          `json:"objectRepr"`
	RequestID      string          `json:"requestId"`
	IP             string          `json:"ip"`
	UserAgent      string          `json:"userAgent"`
	CreatedAt      time.Time       `json:"createdAt"`
	Before         json.RawMessage `json:"before,omitempty"`
	After          json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorUser  string
	From       time.Time
	To         time.Time
}
