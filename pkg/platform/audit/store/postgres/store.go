package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "hearth/pkg/domain"
	audit "hearth/pkg/platform/audit"
	txcontext "hearth/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table inside the caller's transaction and
// published to Kafka by the outbox worker, so a claim consumption and its
// audit record commit or roll back together.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event so the consumer side deserializes without a mapping layer.
type outboxPayload struct {
	ID          string `json:"ID"`
	Category    string `json:"Category"`
	Timestamp   string `json:"Timestamp"`
	Action      string `json:"Action"`
	PersonID    string `json:"PersonID,omitempty"`
	ReferenceID string `json:"ReferenceID,omitempty"`
	NoteID      string `json:"NoteID,omitempty"`
	ActorID     string `json:"ActorID,omitempty"`
	Decision    string `json:"Decision,omitempty"`
	Reason      string `json:"Reason,omitempty"`
	RequestID   string `json:"RequestID,omitempty"`
	Device      string `json:"Device,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := audit.Action(event.Action).Category()

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    event.Action,
		ActorID:   event.ActorID,
		Decision:  event.Decision,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		Device:    event.Device,
	}
	if !event.PersonID.IsNil() {
		payload.PersonID = event.PersonID.String()
	}
	if !event.ReferenceID.IsNil() {
		payload.ReferenceID = event.ReferenceID.String()
	}
	if !event.NoteID.IsNil() {
		payload.NoteID = event.NoteID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.PersonID.IsNil() {
		aggregateType = "person"
		aggregateID = event.PersonID.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByPerson reads materialized audit events for one person. The query side
// is served from audit_events, which the Kafka consumer keeps up to date.
func (s *Store) ListByPerson(ctx context.Context, personID id.PersonID) ([]audit.Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT action, person_id, reference_id, note_id, actor_id, decision, reason, request_id, device, created_at
		FROM audit_events
		WHERE person_id = $1
		ORDER BY created_at
	`, uuid.UUID(personID))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var event audit.Event
		var personRaw uuid.UUID
		var refRaw, noteRaw uuid.NullUUID
		if err := rows.Scan(&event.Action, &personRaw, &refRaw, &noteRaw, &event.ActorID,
			&event.Decision, &event.Reason, &event.RequestID, &event.Device, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.PersonID = id.PersonID(personRaw)
		if refRaw.Valid {
			event.ReferenceID = id.ReferenceID(refRaw.UUID)
		}
		if noteRaw.Valid {
			event.NoteID = id.NoteID(noteRaw.UUID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// AppendWithID materializes a consumed Kafka event into audit_events.
// Idempotent: duplicate deliveries are ignored via ON CONFLICT DO NOTHING.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	var personID, refID, noteID uuid.NullUUID
	if !event.PersonID.IsNil() {
		personID = uuid.NullUUID{UUID: uuid.UUID(event.PersonID), Valid: true}
	}
	if !event.ReferenceID.IsNil() {
		refID = uuid.NullUUID{UUID: uuid.UUID(event.ReferenceID), Valid: true}
	}
	if !event.NoteID.IsNil() {
		noteID = uuid.NullUUID{UUID: uuid.UUID(event.NoteID), Valid: true}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_events
			(id, action, person_id, reference_id, note_id, actor_id, decision, reason, request_id, device, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`, eventID, event.Action, personID, refID, noteID, event.ActorID,
		event.Decision, event.Reason, event.RequestID, event.Device, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// PendingOutbox returns unpublished outbox rows in insertion order.
func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("select outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var entry audit.OutboxEntry
		if err := rows.Scan(&entry.ID, &entry.EventType, &entry.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps outbox rows after a successful Kafka produce.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, entryID := range ids {
		strIDs[i] = entryID.String()
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE outbox SET published_at = $2 WHERE id = ANY($1::uuid[]) AND published_at IS NULL
	`, strIDs, time.Now())
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New("mark outbox published: no rows updated")
	}
	return nil
}
