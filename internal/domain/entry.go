package domain

import (
	"errors"
	"time"
	"unicode/utf8"
)

const (
	MinMoodScore     = 1
	MaxMoodScore     = 5
	MaxCommentLength = 2000
)

var (
	// ErrInvalidMoodScore is returned for scores outside MinMoodScore..MaxMoodScore.
	ErrInvalidMoodScore = errors.New("mood score must be between 1 and 5")
	// ErrCommentTooLong is returned when a comment exceeds MaxCommentLength runes.
	ErrCommentTooLong = errors.New("comment is too long")
)

// Entry is a single mood record owned by a user.
type Entry struct {
	ID        int64
	UserID    int64
	MoodScore int
	Comment   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryInput carries the user-editable fields of an Entry.
type EntryInput struct {
	MoodScore int
	Comment   *string
}

// Validate checks the invariants an entry must satisfy before it is stored.
func (in EntryInput) Validate() error {
	if in.MoodScore < MinMoodScore || in.MoodScore > MaxMoodScore {
		return ErrInvalidMoodScore
	}
	if in.Comment != nil && utf8.RuneCountInString(*in.Comment) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}
