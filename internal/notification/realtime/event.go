// Package realtime delivers invitation events to connected browsers.
package realtime

import (
	"encoding/json"
	"time"
)

const (
	EventInvitationCreated   = "invitation.created"
	EventInvitationResponded = "invitation.responded"
)

// Event is addressed to a single user. Payload is the JSON body pushed to the
// client.
type Event struct {
	Type       string          `json:"type"`
	UserID     string          `json:"userId"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func NewEvent(eventType, userID string, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:       eventType,
		UserID:     userID,
		Payload:    raw,
		OccurredAt: at,
	}, nil
}
