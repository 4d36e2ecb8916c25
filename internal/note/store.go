package note

import (
	"context"

	id "hearth/pkg/domain"
)

// Store persists note rows.
type Store interface {
	CreateNote(ctx context.Context, n *Note) error
	FindNote(ctx context.Context, noteID id.NoteID) (*Note, error)
	ListByContributor(ctx context.Context, contributorID id.ContributorID) ([]*Note, error)
}
