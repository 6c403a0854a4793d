package domain

import "time"

// User represents an account that can log in and own mood entries.
type User struct {
	ID           int64
	Name         string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
