package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"moodtrack/internal/domain"
	"moodtrack/internal/repository"
	"moodtrack/internal/storage"
)

type memUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]domain.User
	err    error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[int64]domain.User{}}
}

func (m *memUsers) Create(_ context.Context, user *domain.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == user.Username {
			return 0, fmt.Errorf("insert user: %w", repository.ErrDuplicate)
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now().UTC()
	m.byID[user.ID] = *user
	return user.ID, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.byID {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
	}
	return &u, nil
}

type memEntries struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]domain.Entry
	creates int
	updates int
}

func newMemEntries() *memEntries {
	return &memEntries{rows: map[int64]domain.Entry{}}
}

func (m *memEntries) Create(_ context.Context, entry *domain.Entry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	m.nextID++
	entry.ID = m.nextID
	entry.CreatedAt = time.Now().UTC()
	entry.UpdatedAt = entry.CreatedAt
	m.rows[entry.ID] = *entry
	return entry.ID, nil
}

func (m *memEntries) GetForUser(_ context.Context, userID, id int64) (*domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || e.UserID != userID {
		return nil, fmt.Errorf("entry %d: %w", id, repository.ErrNotFound)
	}
	return &e, nil
}

func (m *memEntries) ListForUser(_ context.Context, userID int64, _ repository.ListOptions) ([]domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Entry
	for id := m.nextID; id > 0; id-- {
		if e, ok := m.rows[id]; ok && e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEntries) UpdateForUser(_ context.Context, entry *domain.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	e, ok := m.rows[entry.ID]
	if !ok || e.UserID != entry.UserID {
		return fmt.Errorf("entry %d: %w", entry.ID, repository.ErrNotFound)
	}
	e.MoodScore = entry.MoodScore
	e.Comment = entry.Comment
	e.UpdatedAt = time.Now().UTC()
	m.rows[entry.ID] = e
	return nil
}

func (m *memEntries) DeleteForUser(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || e.UserID != userID {
		return fmt.Errorf("entry %d: %w", id, repository.ErrNotFound)
	}
	delete(m.rows, id)
	return nil
}

type memStorage struct {
	objects map[string]string
	deleted []string
}

func (m *memStorage) Upload(_ context.Context, body io.Reader, opts storage.UploadOptions) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if m.objects == nil {
		m.objects = map[string]string{}
	}
	m.objects[opts.Key] = string(b)
	return "s3://" + opts.Bucket + "/" + opts.Key, nil
}

func (m *memStorage) ListObjects(_ context.Context, _ string, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memStorage) DeletePrefix(_ context.Context, _ string, prefix string) error {
	m.deleted = append(m.deleted, prefix)
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
		}
	}
	return nil
}

func (m *memStorage) GetObjectURL(_ context.Context, bucket, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("https://%s.example/%s?expires=%d", bucket, key, int(expires.Seconds())), nil
}
