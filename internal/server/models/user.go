package models

import "time"

// User is a registered account. Email is stored normalised (trimmed,
// lower-case) and is unique. TokenVersion is embedded in issued session
// tokens; bumping it invalidates every token issued before.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	TokenVersion int64
	CreatedAt    time.Time
}
