package audit

import "github.com/google/uuid"

// OutboxEntry is a pending outbox row awaiting publication to Kafka.
type OutboxEntry struct {
	ID        uuid.UUID
	EventType string
	Payload   []byte
}
