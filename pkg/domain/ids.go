// Package domain holds typed identifiers and domain values shared across
// features. Typed IDs prevent cross-entity assignment at compile time;
// construct them via the Parse functions at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "hearth/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID; distinct types keep a PersonID from
// ever being passed where a NoteID is expected.
type (
	PersonID      uuid.UUID
	NoteID        uuid.UUID
	ReferenceID   uuid.UUID
	MentionID     uuid.UUID
	InviteID      uuid.UUID
	ContributorID uuid.UUID
)

func (id PersonID) String() string      { return uuid.UUID(id).String() }
func (id NoteID) String() string        { return uuid.UUID(id).String() }
func (id ReferenceID) String() string   { return uuid.UUID(id).String() }
func (id MentionID) String() string     { return uuid.UUID(id).String() }
func (id InviteID) String() string      { return uuid.UUID(id).String() }
func (id ContributorID) String() string { return uuid.UUID(id).String() }

// The text forms below make the IDs render as canonical UUID strings in JSON
// and log output instead of raw byte arrays.

func (id PersonID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id NoteID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id ReferenceID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id MentionID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id InviteID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ContributorID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *PersonID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = PersonID(u)
	return err
}

func (id *NoteID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = NoteID(u)
	return err
}

func (id *ReferenceID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = ReferenceID(u)
	return err
}

func (id *MentionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = MentionID(u)
	return err
}

func (id *InviteID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = InviteID(u)
	return err
}

func (id *ContributorID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = ContributorID(u)
	return err
}

func (id PersonID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id NoteID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ReferenceID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id MentionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id InviteID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ContributorID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewPersonID returns a fresh random PersonID.
func NewPersonID() PersonID { return PersonID(uuid.New()) }

// NewNoteID returns a fresh random NoteID.
func NewNoteID() NoteID { return NoteID(uuid.New()) }

// NewReferenceID returns a fresh random ReferenceID.
func NewReferenceID() ReferenceID { return ReferenceID(uuid.New()) }

// NewMentionID returns a fresh random MentionID.
func NewMentionID() MentionID { return MentionID(uuid.New()) }

// NewInviteID returns a fresh random InviteID.
func NewInviteID() InviteID { return InviteID(uuid.New()) }

// NewContributorID returns a fresh random ContributorID.
func NewContributorID() ContributorID { return ContributorID(uuid.New()) }

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. Rejections carry CodeInvalidInput for trust-boundary callers.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID must not be the nil UUID")
	}
	return parsed, nil
}

// ParsePersonID validates and converts a raw string into a PersonID.
func ParsePersonID(raw string) (PersonID, error) {
	u, err := parseUUID(raw, "person")
	return PersonID(u), err
}

// ParseNoteID validates and converts a raw string into a NoteID.
func ParseNoteID(raw string) (NoteID, error) {
	u, err := parseUUID(raw, "note")
	return NoteID(u), err
}

// ParseReferenceID validates and converts a raw string into a ReferenceID.
func ParseReferenceID(raw string) (ReferenceID, error) {
	u, err := parseUUID(raw, "reference")
	return ReferenceID(u), err
}

// ParseMentionID validates and converts a raw string into a MentionID.
func ParseMentionID(raw string) (MentionID, error) {
	u, err := parseUUID(raw, "mention")
	return MentionID(u), err
}

// ParseInviteID validates and converts a raw string into an InviteID.
func ParseInviteID(raw string) (InviteID, error) {
	u, err := parseUUID(raw, "invite")
	return InviteID(u), err
}

// ParseContributorID validates and converts a raw string into a ContributorID.
func ParseContributorID(raw string) (ContributorID, error) {
	u, err := parseUUID(raw, "contributor")
	return ContributorID(u), err
}
