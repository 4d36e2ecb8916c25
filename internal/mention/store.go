package mention

import (
	"context"
	"time"

	id "hearth/pkg/domain"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the mention does not exist
// - Return sentinel.ErrInvalidState from MarkPromoted / MarkIgnored when the
//   mention already left pending; callers read back the winner's result
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// Store persists mentions.
type Store interface {
	CreateMention(ctx context.Context, m *Mention) error
	FindMention(ctx context.Context, mentionID id.MentionID) (*Mention, error)
	ListByNote(ctx context.Context, noteID id.NoteID) ([]*Mention, error)
	// MarkPromoted transitions pending -> promoted and records the linkage.
	// The status check and the write are one atomic operation; a mention
	// that already left pending yields sentinel.ErrInvalidState.
	MarkPromoted(ctx context.Context, mentionID id.MentionID, personID id.PersonID, refID id.ReferenceID, now time.Time) error
	// MarkIgnored transitions pending -> ignored under the same guard.
	MarkIgnored(ctx context.Context, mentionID id.MentionID, now time.Time) error
	// Annotate sets the display label of a pending mention without
	// resolving it.
	Annotate(ctx context.Context, mentionID id.MentionID, label string, now time.Time) error
}
