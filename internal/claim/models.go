package claim

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	id "hearth/pkg/domain"
)

// Choice is the disclosure level a claimant selects when consuming a token.
type Choice string

const (
	// ChoiceFullName consents to full disclosure of the canonical name.
	ChoiceFullName Choice = "full_name"
	// ChoiceInitials restricts rendering to initials.
	ChoiceInitials Choice = "initials_only"
	// ChoiceHidden restricts rendering to the placeholder.
	ChoiceHidden Choice = "hidden"
	// ChoiceRemove soft-deletes the bound reference entirely.
	ChoiceRemove Choice = "remove"
)

// Valid reports whether c is a supported claim choice.
func (c Choice) Valid() bool {
	switch c {
	case ChoiceFullName, ChoiceInitials, ChoiceHidden, ChoiceRemove:
		return true
	}
	return false
}

// PreferenceVisibility is the visibility the claimant's platform-wide
// preference records.
func (c Choice) PreferenceVisibility() id.Visibility {
	if c == ChoiceFullName {
		return id.VisibilityApproved
	}
	return id.VisibilityBlurred
}

// ReferenceVisibility is the visibility applied to the bound reference.
func (c Choice) ReferenceVisibility() id.Visibility {
	switch c {
	case ChoiceFullName:
		return id.VisibilityApproved
	case ChoiceRemove:
		return id.VisibilityRemoved
	}
	return id.VisibilityBlurred
}

// InitialsOnly reports whether the claimant opted into the initials variant.
func (c Choice) InitialsOnly() bool { return c == ChoiceInitials }

// Invite connects a contributor's outreach to a specific note and recipient.
// Not itself privacy-sensitive, but it is the parent of claim tokens.
type Invite struct {
	ID             id.InviteID
	NoteID         id.NoteID
	PersonID       id.PersonID
	ReferenceID    id.ReferenceID
	ContributorID  id.ContributorID
	RecipientName  string
	RecipientPhone string
	CreatedAt      time.Time
}

// Token is a single-use, time-boxed credential letting the mentioned person
// assert control over their visibility. Only the SHA-256 hash is stored; the
// raw token exists once, in the claim URL.
// Invariant: the used_at null to non-null transition happens exactly once,
// atomically, and only before expires_at.
type Token struct {
	TokenHash      string
	InviteID       id.InviteID
	NoteID         id.NoteID
	PersonID       id.PersonID
	ReferenceID    id.ReferenceID
	RecipientName  string
	RecipientPhone string
	ExpiresAt      time.Time
	UsedAt         *time.Time
	CreatedAt      time.Time
}

// Consumable reports whether the token can still be consumed at now.
func (t *Token) Consumable(now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now)
}

// rawTokenBytes gives 256 bits of entropy; tokens are opaque and
// non-sequential by construction.
const rawTokenBytes = 32

// NewRawToken mints a cryptographically random claim token and its storage
// hash.
func NewRawToken() (raw string, hash string, err error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate claim token: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashToken(raw), nil
}

// HashToken derives the storage hash for a raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
