package claim

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

// PostgresStore persists invites and claim tokens in PostgreSQL. Methods
// honor a transaction carried in the context so token consumption commits
// together with the visibility writes.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed claim store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) CreateInvite(ctx context.Context, invite *Invite) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO invites (id, note_id, person_id, reference_id, contributor_id, recipient_name, recipient_phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(invite.ID), uuid.UUID(invite.NoteID), uuid.UUID(invite.PersonID), uuid.UUID(invite.ReferenceID),
		uuid.UUID(invite.ContributorID), invite.RecipientName, invite.RecipientPhone, invite.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindInvite(ctx context.Context, inviteID id.InviteID) (*Invite, error) {
	var invite Invite
	var rawID, noteRaw, personRaw, refRaw, contributorRaw uuid.UUID
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, note_id, person_id, reference_id, contributor_id, recipient_name, recipient_phone, created_at
		FROM invites WHERE id = $1
	`, uuid.UUID(inviteID)).Scan(&rawID, &noteRaw, &personRaw, &refRaw, &contributorRaw,
		&invite.RecipientName, &invite.RecipientPhone, &invite.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invite %s: %w", inviteID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find invite: %w", err)
	}
	invite.ID = id.InviteID(rawID)
	invite.NoteID = id.NoteID(noteRaw)
	invite.PersonID = id.PersonID(personRaw)
	invite.ReferenceID = id.ReferenceID(refRaw)
	invite.ContributorID = id.ContributorID(contributorRaw)
	return &invite, nil
}

func (s *PostgresStore) CreateToken(ctx context.Context, token *Token) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO claim_tokens
			(token_hash, invite_id, note_id, person_id, reference_id, recipient_name, recipient_phone, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, $9)
	`, token.TokenHash, uuid.UUID(token.InviteID), uuid.UUID(token.NoteID), uuid.UUID(token.PersonID),
		uuid.UUID(token.ReferenceID), token.RecipientName, token.RecipientPhone, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert claim token: %w", err)
	}
	return nil
}

// ConsumeToken performs the single atomic conditional update; the WHERE
// clause is the entire race protection, never a read-then-write.
func (s *PostgresStore) ConsumeToken(ctx context.Context, tokenHash string, now time.Time) (*Token, error) {
	var token Token
	var inviteRaw, noteRaw, personRaw, refRaw uuid.UUID
	var usedAt sql.NullTime
	err := s.execer(ctx).QueryRowContext(ctx, `
		UPDATE claim_tokens
		SET used_at = $2
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING token_hash, invite_id, note_id, person_id, reference_id,
		          recipient_name, recipient_phone, expires_at, used_at, created_at
	`, tokenHash, now).Scan(&token.TokenHash, &inviteRaw, &noteRaw, &personRaw, &refRaw,
		&token.RecipientName, &token.RecipientPhone, &token.ExpiresAt, &usedAt, &token.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.consumeFailure(ctx, tokenHash, now)
	}
	if err != nil {
		return nil, fmt.Errorf("consume claim token: %w", err)
	}
	token.InviteID = id.InviteID(inviteRaw)
	token.NoteID = id.NoteID(noteRaw)
	token.PersonID = id.PersonID(personRaw)
	token.ReferenceID = id.ReferenceID(refRaw)
	if usedAt.Valid {
		token.UsedAt = &usedAt.Time
	}
	return &token, nil
}

// consumeFailure distinguishes the failure sentinel for logging and metrics,
// and returns the stale token on replay so callers can log the attempt. The
// distinction never reaches the caller-facing error; the service collapses
// every variant into the same generic response.
func (s *PostgresStore) consumeFailure(ctx context.Context, tokenHash string, now time.Time) (*Token, error) {
	var token Token
	var inviteRaw, noteRaw, personRaw, refRaw uuid.UUID
	var usedAt sql.NullTime
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT token_hash, invite_id, note_id, person_id, reference_id,
		       recipient_name, recipient_phone, expires_at, used_at, created_at
		FROM claim_tokens WHERE token_hash = $1
	`, tokenHash).Scan(&token.TokenHash, &inviteRaw, &noteRaw, &personRaw, &refRaw,
		&token.RecipientName, &token.RecipientPhone, &token.ExpiresAt, &usedAt, &token.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim token: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("inspect claim token: %w", err)
	}
	token.InviteID = id.InviteID(inviteRaw)
	token.NoteID = id.NoteID(noteRaw)
	token.PersonID = id.PersonID(personRaw)
	token.ReferenceID = id.ReferenceID(refRaw)
	if usedAt.Valid {
		token.UsedAt = &usedAt.Time
		return &token, fmt.Errorf("claim token: %w", sentinel.ErrAlreadyUsed)
	}
	if !token.ExpiresAt.After(now) {
		return nil, fmt.Errorf("claim token: %w", sentinel.ErrExpired)
	}
	return nil, fmt.Errorf("claim token: %w", sentinel.ErrInvalidState)
}
