// Package visibility is the policy deciding what string of text a viewer may
// see for a reference to a named person. Everything here is pure: no I/O, no
// clock, no randomness. The projector feeds it already-fetched rows and the
// policy either answers deterministically or raises an invariant violation.
package visibility

import (
	"hearth/internal/person"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
)

// Placeholder is the literal rendered for pending and blurred references.
// It is the only fallback; the policy never degrades to the real name.
const Placeholder = "someone"

// IdentityState resolves the visibility tier a reference renders under.
// pref is the preference already scoped to the viewer (contributor-scoped
// beats global; the store resolves that precedence). Rule order:
//  1. A removed reference is removed, terminally; no preference resurrects it.
//  2. The person's own preference wins over the reference's stored default.
//  3. The reference's stored visibility.
//  4. Absent any signal: pending.
func IdentityState(ref *person.PersonReference, pref *person.VisibilityPreference) id.Visibility {
	if ref.Visibility == id.VisibilityRemoved {
		return id.VisibilityRemoved
	}
	if pref != nil && pref.Visibility.Valid() {
		return pref.Visibility
	}
	if ref.Visibility.Valid() {
		return ref.Visibility
	}
	return id.VisibilityPending
}

// RenderLabel returns the text the viewer is allowed to see for a reference.
//
// The owner (the contributor who authored the note) always gets the label
// exactly as they wrote it: redaction protects third parties, not the
// author's own record-keeping. This is the policy's single bypass path; do
// not add viewer roles to it.
//
// Non-owners see the canonical name only in the approved state. Blurred
// references render initials when the person opted into that variant,
// otherwise the placeholder. Removed references must have been filtered
// upstream; asking for their label is a privacy bug, not a user error.
func RenderLabel(state id.Visibility, p *person.Person, ref *person.PersonReference, pref *person.VisibilityPreference, viewerIsOwner bool) (string, error) {
	if state == id.VisibilityRemoved {
		return "", dErrors.New(dErrors.CodeInvariantViolation,
			"render label requested for removed reference "+ref.ID.String())
	}
	if viewerIsOwner {
		return ref.AuthorLabel, nil
	}
	switch state {
	case id.VisibilityApproved:
		if p == nil || p.CanonicalName == "" {
			// No identity to disclose; the placeholder is the only safe
			// answer even in the approved state.
			return Placeholder, nil
		}
		return p.CanonicalName, nil
	case id.VisibilityBlurred:
		if pref != nil && pref.InitialsOnly && p != nil && p.CanonicalName != "" {
			return p.Initials(), nil
		}
		return Placeholder, nil
	case id.VisibilityPending:
		return Placeholder, nil
	}
	return "", dErrors.New(dErrors.CodeInvariantViolation,
		"unknown identity state "+string(state)+" for reference "+ref.ID.String())
}

// RelationshipVisible reports whether the relationship-to-subject
// parenthetical may be shown. Only approved references expose it; a
// relationship like "cousin" next to a blurred name deanonymizes by
// elimination.
func RelationshipVisible(state id.Visibility) bool {
	return state == id.VisibilityApproved
}
