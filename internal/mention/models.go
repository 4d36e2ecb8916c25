// Package mention holds detected-name candidates awaiting an explicit
// contributor decision. A mention is plain text until someone promotes it;
// nothing in this package creates identity on its own.
package mention

import (
	"time"

	id "hearth/pkg/domain"
)

// Status is the lifecycle state of a mention. Promoted and ignored are
// terminal and never reopen.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPromoted Status = "promoted"
	StatusIgnored  Status = "ignored"
)

// Mention is a name detected in a note's text. It carries no linkage until a
// contributor resolves it.
type Mention struct {
	ID     id.MentionID
	NoteID id.NoteID
	// Text is the name exactly as detected in the note.
	Text string
	// DisplayLabel annotates a kept-as-context mention; empty otherwise.
	DisplayLabel string
	Status       Status
	// Set only once, when the mention is promoted.
	PromotedPersonID    *id.PersonID
	PromotedReferenceID *id.ReferenceID
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Resolved reports whether the mention reached a terminal state.
func (m *Mention) Resolved() bool {
	return m.Status == StatusPromoted || m.Status == StatusIgnored
}
