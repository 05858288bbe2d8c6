package types

import "time"

// EventType names a domain event published to the message queue.
type EventType string

const (
	EventUserRegistered EventType = "user.registered"
	EventEntryCreated   EventType = "entry.created"
	EventEntryDeleted   EventType = "entry.deleted"
)

// Event is the payload published when users or entries change.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type is the kind of change that happened.
	Type EventType `json:"type"`

	// UserID is the user the event concerns.
	UserID int `json:"user_id"`

	// EntryID is set for entry events.
	EntryID int `json:"entry_id,omitempty"`

	// OccurredAt is when the change was committed.
	OccurredAt time.Time `json:"occurred_at"`
}
