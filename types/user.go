package types

import "time"

// User represents a registered journal owner.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique, case-sensitive login name chosen by the user.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt digest of the user's password.
	// This field is never exposed in responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the account was registered.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
