// Package note is the boundary to the note-authoring subsystem. Authoring
// forms and the name-detection collaborator live elsewhere; this package
// accepts their output and serves the redacted read path.
package note

import (
	"time"

	id "hearth/pkg/domain"
)

// Note is the minimal note row this subsystem needs: ownership and the text
// the mention scanner already processed. Rich content stays external.
type Note struct {
	ID            id.NoteID
	ContributorID id.ContributorID
	Title         string
	Body          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OwnedBy reports whether the contributor authored this note. Ownership is
// the single bypass that unlocks unredacted labels.
func (n *Note) OwnedBy(contributorID id.ContributorID) bool {
	return n.ContributorID == contributorID
}
