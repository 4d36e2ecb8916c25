package projection

import (
	"hearth/internal/person"
	id "hearth/pkg/domain"
)

// Viewer is the context a projection is scoped to. IsOwner means the viewer
// authored the note the references belong to; it is the only role that
// unlocks the author payload.
type Viewer struct {
	IsOwner       bool
	ContributorID *id.ContributorID
}

// AuthorPayload carries the un-redacted label as the note's author entered
// it. Present only on owner projections.
type AuthorPayload struct {
	AuthorLabel string `json:"author_label"`
}

// RedactedReference is the only reference shape that crosses the service
// boundary. It is deliberately disjoint from person.PersonReference (the raw
// storage shape): downstream code physically cannot read an un-redacted
// field, because the type does not have one outside AuthorPayload.
type RedactedReference struct {
	ID   id.ReferenceID `json:"id"`
	Type string         `json:"type"`
	// Visibility is the resolved identity state, not the stored default.
	Visibility  id.Visibility `json:"visibility"`
	RenderLabel string        `json:"render_label"`
	// RelationshipToSubject is nil unless the identity state is approved.
	RelationshipToSubject *string        `json:"relationship_to_subject"`
	Note                  string         `json:"note,omitempty"`
	Role                  person.Role    `json:"role"`
	AuthorPayload         *AuthorPayload `json:"author_payload,omitempty"`
}

// CompareResult pairs the owner and public projections of the same reference
// set for internal QA. The two slices are built independently; nothing from
// the owner channel is reachable through the public one.
type CompareResult struct {
	Owner  []RedactedReference `json:"owner"`
	Public []RedactedReference `json:"public"`
}
