package domain

import dErrors "hearth/pkg/domain-errors"

// Visibility is the identity tier a person or reference renders under.
// Invariant: the value is always one of the four states below. Construct via
// ParseVisibility at trust boundaries; direct casting bypasses validation.
type Visibility string

const (
	// VisibilityPending means no signal yet from the person; render redacted.
	VisibilityPending Visibility = "pending"
	// VisibilityApproved means the person consented to disclosure.
	VisibilityApproved Visibility = "approved"
	// VisibilityBlurred means the person restricted disclosure; render the
	// placeholder, or initials when they opted into that variant.
	VisibilityBlurred Visibility = "blurred"
	// VisibilityRemoved soft-deletes the reference. Removed references must
	// never reach any viewer, including the note owner.
	VisibilityRemoved Visibility = "removed"
)

// ParseVisibility enforces the allowlist.
func ParseVisibility(raw string) (Visibility, error) {
	switch Visibility(raw) {
	case VisibilityPending, VisibilityApproved, VisibilityBlurred, VisibilityRemoved:
		return Visibility(raw), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid visibility: "+raw)
}

// Valid reports whether v is one of the four supported states.
func (v Visibility) Valid() bool {
	_, err := ParseVisibility(string(v))
	return err == nil
}

// Terminal reports whether the state never transitions again.
func (v Visibility) Terminal() bool { return v == VisibilityRemoved }
