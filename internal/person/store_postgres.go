package person

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	id "hearth/pkg/domain"
	"hearth/pkg/platform/sentinel"
	txcontext "hearth/pkg/platform/tx"
)

// PostgresStore persists persons, preferences, and references in PostgreSQL.
// All methods honor a transaction carried in the context so claim consumption
// can update preferences and references atomically with the token write.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed person store.
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

// placeholders renders "$off, $off+1, ..." for expanded IN clauses.
func placeholders(n, offset int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", offset+i)
	}
	return strings.Join(parts, ", ")
}

func (s *PostgresStore) CreatePerson(ctx context.Context, p *Person) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO persons (id, canonical_name, visibility, claimed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(p.ID), p.CanonicalName, string(p.Visibility), p.Claimed, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	for _, alias := range p.Aliases {
		if err := s.AddAlias(ctx, p.ID, alias); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) scanAliases(ctx context.Context, personID id.PersonID) ([]string, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT alias FROM person_aliases WHERE person_id = $1 ORDER BY alias
	`, uuid.UUID(personID))
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()
	var aliases []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

func (s *PostgresStore) FindPerson(ctx context.Context, personID id.PersonID) (*Person, error) {
	var p Person
	var rawID uuid.UUID
	var visibility string
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, canonical_name, visibility, claimed, created_at, updated_at
		FROM persons WHERE id = $1
	`, uuid.UUID(personID)).Scan(&rawID, &p.CanonicalName, &visibility, &p.Claimed, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("person %s: %w", personID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find person: %w", err)
	}
	p.ID = id.PersonID(rawID)
	p.Visibility = id.Visibility(visibility)
	if p.Aliases, err = s.scanAliases(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) SearchByName(ctx context.Context, name string) ([]*Person, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT DISTINCT p.id
		FROM persons p
		LEFT JOIN person_aliases a ON a.person_id = p.id
		WHERE lower(p.canonical_name) = lower(btrim($1))
		   OR lower(a.alias) = lower(btrim($1))
	`, name)
	if err != nil {
		return nil, fmt.Errorf("search persons: %w", err)
	}
	defer rows.Close()
	var ids []id.PersonID
	for rows.Next() {
		var rawID uuid.UUID
		if err := rows.Scan(&rawID); err != nil {
			return nil, fmt.Errorf("scan person id: %w", err)
		}
		ids = append(ids, id.PersonID(rawID))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.PersonsFor(ctx, ids)
}

func (s *PostgresStore) AddAlias(ctx context.Context, personID id.PersonID, alias string) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO person_aliases (person_id, alias)
		VALUES ($1, $2)
		ON CONFLICT (person_id, alias) DO NOTHING
	`, uuid.UUID(personID), alias)
	if err != nil {
		return fmt.Errorf("add alias: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdatePersonVisibility(ctx context.Context, personID id.PersonID, v id.Visibility, claimed bool, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE persons
		SET visibility = $2, claimed = claimed OR $3, updated_at = $4
		WHERE id = $1
	`, uuid.UUID(personID), string(v), claimed, now)
	if err != nil {
		return fmt.Errorf("update person visibility: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update person visibility: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("person %s: %w", personID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) UpsertPreference(ctx context.Context, pref *VisibilityPreference) error {
	var contributorID any
	if pref.ContributorID != nil {
		contributorID = uuid.UUID(*pref.ContributorID)
	}
	// The version guard in the ON CONFLICT clause makes last-write-wins a
	// database-enforced invariant instead of a clock comparison.
	var stored int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO visibility_preferences (person_id, contributor_id, visibility, initials_only, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (person_id, contributor_id) DO UPDATE
		SET visibility = EXCLUDED.visibility,
		    initials_only = EXCLUDED.initials_only,
		    version = EXCLUDED.version,
		    updated_at = EXCLUDED.updated_at
		WHERE visibility_preferences.version < EXCLUDED.version
		RETURNING version
	`, uuid.UUID(pref.PersonID), contributorID, string(pref.Visibility), pref.InitialsOnly, pref.Version, pref.UpdatedAt).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("preference version %d not newest: %w", pref.Version, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

func scanPreference(rows *sql.Rows) (*VisibilityPreference, error) {
	var pref VisibilityPreference
	var personRaw uuid.UUID
	var contributorRaw uuid.NullUUID
	var visibility string
	if err := rows.Scan(&personRaw, &contributorRaw, &visibility, &pref.InitialsOnly, &pref.Version, &pref.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan preference: %w", err)
	}
	pref.PersonID = id.PersonID(personRaw)
	pref.Visibility = id.Visibility(visibility)
	if contributorRaw.Valid {
		scoped := id.ContributorID(contributorRaw.UUID)
		pref.ContributorID = &scoped
	}
	return &pref, nil
}

func (s *PostgresStore) ActivePreference(ctx context.Context, personID id.PersonID, contributorID *id.ContributorID) (*VisibilityPreference, error) {
	var contributorArg any
	if contributorID != nil {
		contributorArg = uuid.UUID(*contributorID)
	}
	// Contributor-scoped rows sort before the global row; one query resolves
	// the precedence.
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT person_id, contributor_id, visibility, initials_only, version, updated_at
		FROM visibility_preferences
		WHERE person_id = $1 AND (contributor_id = $2 OR contributor_id IS NULL)
		ORDER BY contributor_id NULLS LAST
		LIMIT 1
	`, uuid.UUID(personID), contributorArg)
	if err != nil {
		return nil, fmt.Errorf("active preference: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("preference for %s: %w", personID, sentinel.ErrNotFound)
	}
	return scanPreference(rows)
}

func (s *PostgresStore) PreferencesFor(ctx context.Context, personIDs []id.PersonID) ([]*VisibilityPreference, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(personIDs))
	for i, personID := range personIDs {
		args[i] = uuid.UUID(personID)
	}
	rows, err := s.execer(ctx).QueryContext(ctx, fmt.Sprintf(`
		SELECT person_id, contributor_id, visibility, initials_only, version, updated_at
		FROM visibility_preferences
		WHERE person_id IN (%s)
	`, placeholders(len(args), 1)), args...)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()
	var out []*VisibilityPreference
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pref)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateReference(ctx context.Context, ref *PersonReference) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO person_references
			(id, note_id, person_id, role, relationship_to_subject, note, visibility, author_label, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.UUID(ref.ID), uuid.UUID(ref.NoteID), uuid.UUID(ref.PersonID), string(ref.Role),
		ref.RelationshipToSubject, ref.Note, string(ref.Visibility), ref.AuthorLabel, ref.CreatedAt, ref.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reference: %w", err)
	}
	return nil
}

func scanReference(rows *sql.Rows) (*PersonReference, error) {
	var ref PersonReference
	var refRaw, noteRaw, personRaw uuid.UUID
	var role, visibility string
	if err := rows.Scan(&refRaw, &noteRaw, &personRaw, &role, &ref.RelationshipToSubject,
		&ref.Note, &visibility, &ref.AuthorLabel, &ref.CreatedAt, &ref.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan reference: %w", err)
	}
	ref.ID = id.ReferenceID(refRaw)
	ref.NoteID = id.NoteID(noteRaw)
	ref.PersonID = id.PersonID(personRaw)
	ref.Role = Role(role)
	ref.Visibility = id.Visibility(visibility)
	return &ref, nil
}

const referenceColumns = `id, note_id, person_id, role, relationship_to_subject, note, visibility, author_label, created_at, updated_at`

func (s *PostgresStore) FindReference(ctx context.Context, refID id.ReferenceID) (*PersonReference, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+referenceColumns+` FROM person_references WHERE id = $1
	`, uuid.UUID(refID))
	if err != nil {
		return nil, fmt.Errorf("find reference: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("reference %s: %w", refID, sentinel.ErrNotFound)
	}
	return scanReference(rows)
}

func (s *PostgresStore) listReferences(ctx context.Context, query string, arg any) ([]*PersonReference, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer rows.Close()
	var out []*PersonReference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListReferencesByNote(ctx context.Context, noteID id.NoteID) ([]*PersonReference, error) {
	return s.listReferences(ctx, `
		SELECT `+referenceColumns+` FROM person_references WHERE note_id = $1 ORDER BY created_at
	`, uuid.UUID(noteID))
}

func (s *PostgresStore) ListReferencesByPerson(ctx context.Context, personID id.PersonID) ([]*PersonReference, error) {
	return s.listReferences(ctx, `
		SELECT `+referenceColumns+` FROM person_references WHERE person_id = $1 ORDER BY created_at
	`, uuid.UUID(personID))
}

func (s *PostgresStore) UpdateReferenceVisibility(ctx context.Context, refID id.ReferenceID, v id.Visibility, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE person_references SET visibility = $2, updated_at = $3 WHERE id = $1
	`, uuid.UUID(refID), string(v), now)
	if err != nil {
		return fmt.Errorf("update reference visibility: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reference visibility: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reference %s: %w", refID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) PersonsFor(ctx context.Context, personIDs []id.PersonID) ([]*Person, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(personIDs))
	for i, personID := range personIDs {
		args[i] = uuid.UUID(personID)
	}
	rows, err := s.execer(ctx).QueryContext(ctx, fmt.Sprintf(`
		SELECT id, canonical_name, visibility, claimed, created_at, updated_at
		FROM persons WHERE id IN (%s)
	`, placeholders(len(args), 1)), args...)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()
	var out []*Person
	for rows.Next() {
		var p Person
		var rawID uuid.UUID
		var visibility string
		if err := rows.Scan(&rawID, &p.CanonicalName, &visibility, &p.Claimed, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		p.ID = id.PersonID(rawID)
		p.Visibility = id.Visibility(visibility)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range out {
		if p.Aliases, err = s.scanAliases(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}
