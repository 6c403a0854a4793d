package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"moodtrack/internal/repository"
	"moodtrack/internal/storage"
)

// ErrExportDisabled is returned when no object storage is configured.
var ErrExportDisabled = errors.New("entry export is not configured")

// Export describes an uploaded snapshot of a user's entries.
type Export struct {
	Key      string
	Location string
	URL      string
	Count    int
}

// ExportService snapshots a user's entries into object storage.
type ExportService interface {
	Export(ctx context.Context, userID int64) (*Export, error)
	List(ctx context.Context, userID int64) ([]storage.ObjectInfo, error)
	Purge(ctx context.Context, userID int64) error
}

type ExportConfig struct {
	Bucket    string
	KeyPrefix string
	URLTTL    time.Duration
}

type exportService struct {
	entries repository.EntryRepository
	store   storage.Service
	cfg     ExportConfig
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewExportService returns an ExportService. With a nil store or an empty
// bucket every operation fails with ErrExportDisabled.
func NewExportService(entries repository.EntryRepository, store storage.Service, cfg ExportConfig, log logrus.FieldLogger) ExportService {
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 15 * time.Minute
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &exportService{
		entries: entries,
		store:   store,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

type exportDocument struct {
	UserID     int64         `json:"user_id"`
	ExportedAt time.Time     `json:"exported_at"`
	Entries    []exportEntry `json:"entries"`
}

type exportEntry struct {
	ID        int64     `json:"id"`
	MoodScore int       `json:"mood_score"`
	Comment   *string   `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *exportService) enabled() bool {
	return s.store != nil && s.cfg.Bucket != ""
}

func (s *exportService) userPrefix(userID int64) string {
	prefix := fmt.Sprintf("user-%d/", userID)
	if s.cfg.KeyPrefix != "" {
		prefix = s.cfg.KeyPrefix + "/" + prefix
	}
	return prefix
}

func (s *exportService) Export(ctx context.Context, userID int64) (*Export, error) {
	if !s.enabled() {
		return nil, ErrExportDisabled
	}

	entries, err := s.entries.ListForUser(ctx, userID, repository.ListOptions{})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	doc := exportDocument{
		UserID:     userID,
		ExportedAt: now,
		Entries:    make([]exportEntry, len(entries)),
	}
	for i, e := range entries {
		doc.Entries[i] = exportEntry{
			ID:        e.ID,
			MoodScore: e.MoodScore,
			Comment:   e.Comment,
			CreatedAt: e.CreatedAt.UTC(),
			UpdatedAt: e.UpdatedAt.UTC(),
		}
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	key := fmt.Sprintf("%s%s-%s.json", s.userPrefix(userID), now.Format("20060102T150405Z"), uuid.NewString())
	location, err := s.store.Upload(ctx, bytes.NewReader(payload), storage.UploadOptions{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		ContentType: "application/json",
	})
	if err != nil {
		return nil, err
	}

	url, err := s.store.GetObjectURL(ctx, s.cfg.Bucket, key, s.cfg.URLTTL)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"entries": len(entries),
		"key":     key,
	}).Info("entries exported")

	return &Export{
		Key:      key,
		Location: location,
		URL:      url,
		Count:    len(entries),
	}, nil
}

func (s *exportService) List(ctx context.Context, userID int64) ([]storage.ObjectInfo, error) {
	if !s.enabled() {
		return nil, ErrExportDisabled
	}
	return s.store.ListObjects(ctx, s.cfg.Bucket, s.userPrefix(userID))
}

func (s *exportService) Purge(ctx context.Context, userID int64) error {
	if !s.enabled() {
		return ErrExportDisabled
	}
	return s.store.DeletePrefix(ctx, s.cfg.Bucket, s.userPrefix(userID))
}
