package repository

import (
	"context"

	"moodtrack/internal/domain"
)

// ListOptions bounds a list query. A zero Limit means no limit.
type ListOptions struct {
	Limit  int
	Offset int
}

// EntryRepository exposes persistence operations for mood entries.
// Every read and write is scoped by the owning user id.
type EntryRepository interface {
	Create(ctx context.Context, entry *domain.Entry) (int64, error)
	GetForUser(ctx context.Context, userID, id int64) (*domain.Entry, error)
	ListForUser(ctx context.Context, userID int64, opts ListOptions) ([]domain.Entry, error)
	UpdateForUser(ctx context.Context, entry *domain.Entry) error
	DeleteForUser(ctx context.Context, userID, id int64) error
}
