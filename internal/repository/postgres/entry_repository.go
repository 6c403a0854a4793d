package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moodtrack/internal/domain"
	"moodtrack/internal/repository"
)

const selectEntryColumns = `SELECT id, user_id, mood_score, comment, created_at, updated_at FROM entries`

type EntryRepository struct {
	db *sql.DB
}

func NewEntryRepository(db *sql.DB) repository.EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) Create(ctx context.Context, entry *domain.Entry) (int64, error) {
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, `
INSERT INTO entries (user_id, mood_score, comment, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		entry.UserID,
		entry.MoodScore,
		nullString(entry.Comment),
		entry.CreatedAt,
		entry.UpdatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	return entry.ID, nil
}

func (r *EntryRepository) GetForUser(ctx context.Context, userID, id int64) (*domain.Entry, error) {
	row := r.db.QueryRowContext(ctx, selectEntryColumns+`
WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entry %d: %w", id, repository.ErrNotFound)
		}
		return nil, err
	}
	return entry, nil
}

func (r *EntryRepository) ListForUser(ctx context.Context, userID int64, opts repository.ListOptions) ([]domain.Entry, error) {
	// LIMIT NULL is LIMIT ALL in PostgreSQL.
	var limit any
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	rows, err := r.db.QueryContext(ctx, selectEntryColumns+`
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`,
		userID,
		limit,
		max(opts.Offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func (r *EntryRepository) UpdateForUser(ctx context.Context, entry *domain.Entry) error {
	entry.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE entries
SET mood_score=$1, comment=$2, updated_at=$3
WHERE id=$4 AND user_id=$5`,
		entry.MoodScore,
		nullString(entry.Comment),
		entry.UpdatedAt,
		entry.ID,
		entry.UserID,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return expectOneRow(res, entry.ID)
}

func (r *EntryRepository) DeleteForUser(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("entry rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entry %d: %w", id, repository.ErrNotFound)
	}
	return nil
}

func scanEntry(row interface {
	Scan(dest ...any) error
}) (*domain.Entry, error) {
	var (
		entry   domain.Entry
		comment sql.NullString
	)
	if err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.MoodScore,
		&comment,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	if comment.Valid {
		entry.Comment = &comment.String
	}
	return &entry, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
