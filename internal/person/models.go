package person

import (
	"strings"
	"time"

	id "hearth/pkg/domain"
)

// Role describes how a referenced person relates to the note's content.
type Role string

const (
	RoleWitness   Role = "witness"
	RoleHeardFrom Role = "heard_from"
	RoleSource    Role = "source"
	RoleRelated   Role = "related"
)

// ValidRole reports whether r is one of the supported reference roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleWitness, RoleHeardFrom, RoleSource, RoleRelated:
		return true
	}
	return false
}

// Person is a real individual who may or may not have claimed their identity.
// Persons are owned by the archive, not by the contributor who first named
// them: once claimed, the person controls their own visibility. Persons are
// never hard-deleted; VisibilityRemoved preserves reference integrity.
type Person struct {
	ID            id.PersonID
	CanonicalName string
	Aliases       []string
	Visibility    id.Visibility
	Claimed       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Matches reports whether name matches the canonical name or any alias,
// case-insensitively. Used by mention promotion to find candidates.
func (p *Person) Matches(name string) bool {
	name = strings.TrimSpace(name)
	if strings.EqualFold(p.CanonicalName, name) {
		return true
	}
	for _, alias := range p.Aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}

// Initials returns an initials-only label ("B. J.") derived from the
// canonical name, for people who chose the initials variant of blurring.
func (p *Person) Initials() string {
	fields := strings.Fields(p.CanonicalName)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		runes := []rune(f)
		parts = append(parts, strings.ToUpper(string(runes[0]))+".")
	}
	return strings.Join(parts, " ")
}

// VisibilityPreference is a person's own instruction about how references to
// them render. A nil ContributorID scope means "global default for everyone".
// Invariant: at most one active global preference per person; conflicts
// resolve by the explicit Version, most recent write wins.
type VisibilityPreference struct {
	PersonID      id.PersonID
	ContributorID *id.ContributorID
	Visibility    id.Visibility
	// InitialsOnly applies when Visibility is blurred: render initials
	// instead of the generic placeholder.
	InitialsOnly bool
	// Version makes last-write-wins auditable: a write is accepted only when
	// its version is strictly greater than the stored one.
	Version   int64
	UpdatedAt time.Time
}

// Global reports whether the preference applies to all viewers.
func (p *VisibilityPreference) Global() bool { return p.ContributorID == nil }

// PersonReference is a directed edge from a note to a person. Its visibility
// defaults from the person's at creation time unless overridden, and can be
// replaced later by the person's own preference at render time.
// Invariant: Visibility is always one of the four states; removed references
// are soft-deleted and must never be rendered to any viewer.
type PersonReference struct {
	ID                    id.ReferenceID
	NoteID                id.NoteID
	PersonID              id.PersonID
	Role                  Role
	RelationshipToSubject string
	Note                  string
	Visibility            id.Visibility
	// AuthorLabel is the name exactly as the note's author entered it. Only
	// the redaction projector may release it, and only to the owner.
	AuthorLabel string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
