package types

import "time"

// Entry is one journal submission together with its annotation.
type Entry struct {
	// ID is the unique identifier of the entry.
	ID int `json:"id" db:"id"`

	// UserID identifies the user who owns the entry.
	UserID int `json:"user_id" db:"user_id"`

	// Text is the journal text as submitted by the user.
	Text string `json:"text" db:"text"`

	// Mood is a short description of the emotional state found in Text.
	Mood string `json:"mood" db:"mood"`

	// Reflection is a short supportive note about Text.
	Reflection string `json:"reflection" db:"reflection"`

	// CreatedAt is the server-assigned creation time. Lists are ordered by it, newest first.
	CreatedAt time.Time `json:"timestamp" db:"created_at"`
}

// Annotation is the mood and reflection pair derived from an entry's text.
type Annotation struct {
	Mood       string `json:"mood"`
	Reflection string `json:"reflection"`
}

// JournalExport is the document written to object storage by a journal export.
type JournalExport struct {
	Username   string    `json:"username"`
	ExportedAt time.Time `json:"exported_at"`
	Entries    []Entry   `json:"entries"`
}
