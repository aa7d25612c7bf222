// Package webhook receives and processes Strava push events.
package webhook

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"example.com/runsync/internal/domain"
)

// Object and aspect types the provider delivers.
const (
	ObjectActivity = "activity"
	ObjectAthlete  = "athlete"

	AspectCreate = "create"
	AspectUpdate = "update"
	AspectDelete = "delete"
)

// Event is one webhook delivery payload.
type Event struct {
	ObjectType     string                 `json:"object_type"`
	ObjectID       int64                  `json:"object_id"`
	AspectType     string                 `json:"aspect_type"`
	OwnerID        int64                  `json:"owner_id"`
	SubscriptionID int64                  `json:"subscription_id"`
	EventTime      int64                  `json:"event_time"`
	Updates        map[string]interface{} `json:"updates,omitempty"`
}

// Validate rejects structurally unusable events at the boundary. Delivery is
// still acknowledged 200 either way; invalid events are only logged.
func (e Event) Validate() error {
	if e.ObjectType != ObjectActivity && e.ObjectType != ObjectAthlete {
		return &domain.ValidationError{Field: "object_type", Detail: "unknown value " + e.ObjectType}
	}
	switch e.AspectType {
	case AspectCreate, AspectUpdate, AspectDelete:
	default:
		return &domain.ValidationError{Field: "aspect_type", Detail: "unknown value " + e.AspectType}
	}
	if e.ObjectID == 0 {
		return &domain.ValidationError{Field: "object_id", Detail: "missing"}
	}
	return nil
}

// Deauthorized reports whether an athlete update carries the explicit
// de-authorization signal. Strava encodes it as the string "false".
func (e Event) Deauthorized() bool {
	if e.ObjectType != ObjectAthlete || e.AspectType != AspectUpdate {
		return false
	}
	switch v := e.Updates["authorized"].(type) {
	case bool:
		return !v
	case string:
		return v == "false"
	default:
		return false
	}
}

// Delivery wraps an accepted event with a correlation id for logs.
type Delivery struct {
	ID         string
	Event      Event
	ReceivedAt time.Time
}

// NewDelivery assigns a correlation id to an accepted event.
func NewDelivery(event Event) Delivery {
	return Delivery{
		ID:         uuid.NewString(),
		Event:      event,
		ReceivedAt: time.Now().UTC(),
	}
}

func (d Delivery) String() string {
	raw, _ := json.Marshal(d.Event)
	return d.ID + " " + string(raw)
}
