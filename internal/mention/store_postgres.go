package mention

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "hearth/pkg/domain"
	"hearth/pkg/platform/sentinel"
	txcontext "hearth/pkg/platform/tx"
)

// PostgresStore persists mentions in PostgreSQL. Status transitions use
// conditional updates so the pending check and the write are one statement.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed mention store.
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

const mentionColumns = `id, note_id, mention_text, display_label, status, promoted_person_id, promoted_reference_id, created_at, updated_at`

func (s *PostgresStore) CreateMention(ctx context.Context, m *Mention) error {
	var personID, refID uuid.NullUUID
	if m.PromotedPersonID != nil {
		personID = uuid.NullUUID{UUID: uuid.UUID(*m.PromotedPersonID), Valid: true}
	}
	if m.PromotedReferenceID != nil {
		refID = uuid.NullUUID{UUID: uuid.UUID(*m.PromotedReferenceID), Valid: true}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO mentions (`+mentionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(m.ID), uuid.UUID(m.NoteID), m.Text, m.DisplayLabel, string(m.Status),
		personID, refID, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert mention: %w", err)
	}
	return nil
}

func scanMention(scan func(dest ...any) error) (*Mention, error) {
	var m Mention
	var mentionRaw, noteRaw uuid.UUID
	var status string
	var personID, refID uuid.NullUUID
	if err := scan(&mentionRaw, &noteRaw, &m.Text, &m.DisplayLabel, &status,
		&personID, &refID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.ID = id.MentionID(mentionRaw)
	m.NoteID = id.NoteID(noteRaw)
	m.Status = Status(status)
	if personID.Valid {
		promoted := id.PersonID(personID.UUID)
		m.PromotedPersonID = &promoted
	}
	if refID.Valid {
		promoted := id.ReferenceID(refID.UUID)
		m.PromotedReferenceID = &promoted
	}
	return &m, nil
}

func (s *PostgresStore) FindMention(ctx context.Context, mentionID id.MentionID) (*Mention, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+mentionColumns+` FROM mentions WHERE id = $1
	`, uuid.UUID(mentionID))
	m, err := scanMention(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mention %s: %w", mentionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find mention: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListByNote(ctx context.Context, noteID id.NoteID) ([]*Mention, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+mentionColumns+` FROM mentions WHERE note_id = $1 ORDER BY created_at
	`, uuid.UUID(noteID))
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}
	defer rows.Close()

	var out []*Mention
	for rows.Next() {
		m, err := scanMention(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentions: %w", err)
	}
	return out, nil
}

// transition runs a guarded status update and translates an ineffective
// update into the precise sentinel.
func (s *PostgresStore) transition(ctx context.Context, mentionID id.MentionID, query string, args ...any) error {
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update mention: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update mention: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var status string
	err = s.execer(ctx).QueryRowContext(ctx, `SELECT status FROM mentions WHERE id = $1`, uuid.UUID(mentionID)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("mention %s: %w", mentionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("inspect mention: %w", err)
	}
	return fmt.Errorf("mention %s is %s: %w", mentionID, status, sentinel.ErrInvalidState)
}

func (s *PostgresStore) MarkPromoted(ctx context.Context, mentionID id.MentionID, personID id.PersonID, refID id.ReferenceID, now time.Time) error {
	return s.transition(ctx, mentionID, `
		UPDATE mentions
		SET status = 'promoted', promoted_person_id = $2, promoted_reference_id = $3, updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(mentionID), uuid.UUID(personID), uuid.UUID(refID), now)
}

func (s *PostgresStore) MarkIgnored(ctx context.Context, mentionID id.MentionID, now time.Time) error {
	return s.transition(ctx, mentionID, `
		UPDATE mentions
		SET status = 'ignored', updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(mentionID), now)
}

func (s *PostgresStore) Annotate(ctx context.Context, mentionID id.MentionID, label string, now time.Time) error {
	return s.transition(ctx, mentionID, `
		UPDATE mentions
		SET display_label = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(mentionID), label, now)
}
