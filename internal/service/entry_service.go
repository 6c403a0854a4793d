package service

import (
	"context"
	"errors"

	"moodtrack/internal/domain"
	"moodtrack/internal/repository"
)

// ErrEntryNotFound is returned for entries that do not exist or belong to another user.
var ErrEntryNotFound = errors.New("entry not found")

// EntryService coordinates mood entry operations on behalf of a user.
type EntryService interface {
	Create(ctx context.Context, userID int64, input domain.EntryInput) (*domain.Entry, error)
	Get(ctx context.Context, userID, id int64) (*domain.Entry, error)
	List(ctx context.Context, userID int64, opts repository.ListOptions) ([]domain.Entry, error)
	Update(ctx context.Context, userID, id int64, input domain.EntryInput) (*domain.Entry, error)
	Delete(ctx context.Context, userID, id int64) error
}

type entryService struct {
	entries repository.EntryRepository
}

func NewEntryService(entries repository.EntryRepository) EntryService {
	return &entryService{entries: entries}
}

func (s *entryService) Create(ctx context.Context, userID int64, input domain.EntryInput) (*domain.Entry, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	entry := &domain.Entry{
		UserID:    userID,
		MoodScore: input.MoodScore,
		Comment:   input.Comment,
	}
	if _, err := s.entries.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *entryService) Get(ctx context.Context, userID, id int64) (*domain.Entry, error) {
	entry, err := s.entries.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return entry, nil
}

func (s *entryService) List(ctx context.Context, userID int64, opts repository.ListOptions) ([]domain.Entry, error) {
	return s.entries.ListForUser(ctx, userID, opts)
}

func (s *entryService) Update(ctx context.Context, userID, id int64, input domain.EntryInput) (*domain.Entry, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	err := s.entries.UpdateForUser(ctx, &domain.Entry{
		ID:        id,
		UserID:    userID,
		MoodScore: input.MoodScore,
		Comment:   input.Comment,
	})
	if err != nil {
		return nil, notFound(err)
	}
	return s.Get(ctx, userID, id)
}

func (s *entryService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.entries.DeleteForUser(ctx, userID, id); err != nil {
		return notFound(err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrEntryNotFound
	}
	return err
}
