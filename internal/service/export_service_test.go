package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moodtrack/internal/domain"
)

func TestExportService_Disabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	for name, svc := range map[string]ExportService{
		"nil store":    NewExportService(newMemEntries(), nil, ExportConfig{Bucket: "b"}, logger),
		"empty bucket": NewExportService(newMemEntries(), &memStorage{}, ExportConfig{}, logger),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Export(ctx, 1)
			assert.ErrorIs(t, err, ErrExportDisabled)
			_, err = svc.List(ctx, 1)
			assert.ErrorIs(t, err, ErrExportDisabled)
			assert.ErrorIs(t, svc.Purge(ctx, 1), ErrExportDisabled)
		})
	}
}

func TestExportService_ExportListPurge(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	entries := newMemEntries()
	store := &memStorage{}
	svc := NewExportService(entries, store, ExportConfig{
		Bucket:    "exports",
		KeyPrefix: "/moodtrack-exports/",
		URLTTL:    10 * time.Minute,
	}, logger)

	_, err := entries.Create(ctx, &domain.Entry{UserID: 1, MoodScore: 4, Comment: ptr("ok")})
	require.NoError(t, err)
	_, err = entries.Create(ctx, &domain.Entry{UserID: 1, MoodScore: 2})
	require.NoError(t, err)
	_, err = entries.Create(ctx, &domain.Entry{UserID: 2, MoodScore: 5})
	require.NoError(t, err)

	export, err := svc.Export(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, export.Count)
	assert.True(t, strings.HasPrefix(export.Key, "moodtrack-exports/user-1/"), export.Key)
	assert.True(t, strings.HasSuffix(export.Key, ".json"))
	assert.Equal(t, "s3://exports/"+export.Key, export.Location)
	assert.Contains(t, export.URL, "expires=600")

	var doc struct {
		UserID  int64 `json:"user_id"`
		Entries []struct {
			MoodScore int     `json:"mood_score"`
			Comment   *string `json:"comment"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(store.objects[export.Key]), &doc))
	assert.Equal(t, int64(1), doc.UserID)
	require.Len(t, doc.Entries, 2)
	for _, e := range doc.Entries {
		assert.NotEqual(t, 5, e.MoodScore, "other users' entries must not be exported")
	}

	_, err = svc.Export(ctx, 2)
	require.NoError(t, err)

	listed, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, export.Key, listed[0].Key)

	require.NoError(t, svc.Purge(ctx, 1))
	assert.Equal(t, []string{"moodtrack-exports/user-1/"}, store.deleted)
	remaining, err := svc.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
