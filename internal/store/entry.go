package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mindsight/journal/types"
)

// EntryRepository handles persistence for journal entries.
type EntryRepository struct {
	db *sql.DB
}

func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) Create(ctx context.Context, entry types.Entry) (types.Entry, error) {
	entry.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO entries (user_id, text, mood, reflection, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		entry.UserID,
		entry.Text,
		entry.Mood,
		entry.Reflection,
		entry.CreatedAt,
	).Scan(&entry.ID); err != nil {
		return types.Entry{}, err
	}
	return entry, nil
}

func (r *EntryRepository) Get(ctx context.Context, id int) (types.Entry, error) {
	const query = `
		SELECT id, user_id, text, mood, reflection, created_at
		FROM entries
		WHERE id = $1`
	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Entry{}, ErrNotFound
		}
		return types.Entry{}, err
	}
	return entry, nil
}

// ListByUser returns the user's entries, newest first.
func (r *EntryRepository) ListByUser(ctx context.Context, userID int) ([]types.Entry, error) {
	const query = `
		SELECT id, user_id, text, mood, reflection, created_at
		FROM entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *EntryRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM entries WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (types.Entry, error) {
	var entry types.Entry
	var mood, reflection sql.NullString
	if err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Text,
		&mood,
		&reflection,
		&entry.CreatedAt,
	); err != nil {
		return types.Entry{}, err
	}
	entry.Mood = mood.String
	entry.Reflection = reflection.String
	return entry, nil
}
