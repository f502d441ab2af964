package domain

import "time"

// User is a local account on the self-hosted service, unrelated to the
// tracker's own accounts.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}
