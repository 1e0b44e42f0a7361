package domain

import "time"

// User represents a registered account.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Identity is the authenticated caller decoded from a session token.
type Identity struct {
	UserID string
}
