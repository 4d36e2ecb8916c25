package note

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "hearth/pkg/domain"
	"hearth/pkg/platform/sentinel"
	txcontext "hearth/pkg/platform/tx"
)

// PostgresStore persists note rows in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed note store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) CreateNote(ctx context.Context, n *Note) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO notes (id, contributor_id, title, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(n.ID), uuid.UUID(n.ContributorID), n.Title, n.Body, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindNote(ctx context.Context, noteID id.NoteID) (*Note, error) {
	var n Note
	var noteRaw, contributorRaw uuid.UUID
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, contributor_id, title, body, created_at, updated_at
		FROM notes WHERE id = $1
	`, uuid.UUID(noteID)).Scan(&noteRaw, &contributorRaw, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", noteID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find note: %w", err)
	}
	n.ID = id.NoteID(noteRaw)
	n.ContributorID = id.ContributorID(contributorRaw)
	return &n, nil
}

func (s *PostgresStore) ListByContributor(ctx context.Context, contributorID id.ContributorID) ([]*Note, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, contributor_id, title, body, created_at, updated_at
		FROM notes WHERE contributor_id = $1 ORDER BY created_at
	`, uuid.UUID(contributorID))
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		var n Note
		var noteRaw, contributorRaw uuid.UUID
		if err := rows.Scan(&noteRaw, &contributorRaw, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.ID = id.NoteID(noteRaw)
		n.ContributorID = id.ContributorID(contributorRaw)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return out, nil
}
