package person

import (
	"context"
	"time"

	id "hearth/pkg/domain"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the requested entity does not exist
// - Return sentinel.ErrConflict when a version compare-and-set loses a race
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// Store persists persons, their visibility preferences, and per-note
// references. Services depend on this interface; postgres and in-memory
// implementations exist.
type Store interface {
	CreatePerson(ctx context.Context, p *Person) error
	FindPerson(ctx context.Context, personID id.PersonID) (*Person, error)
	// SearchByName returns every person whose canonical name or alias
	// matches, case-insensitively. Multiple matches drive the ambiguous
	// promotion flow.
	SearchByName(ctx context.Context, name string) ([]*Person, error)
	AddAlias(ctx context.Context, personID id.PersonID, alias string) error
	// UpdatePersonVisibility sets the person's default visibility and the
	// claimed flag when the update comes from claim consumption.
	UpdatePersonVisibility(ctx context.Context, personID id.PersonID, v id.Visibility, claimed bool, now time.Time) error

	// UpsertPreference accepts the write only when pref.Version is strictly
	// greater than the stored version for the same (person, scope) pair;
	// otherwise it returns sentinel.ErrConflict and the caller re-reads.
	UpsertPreference(ctx context.Context, pref *VisibilityPreference) error
	// ActivePreference resolves the preference for a viewer: a preference
	// scoped to contributorID wins over the global one. Returns
	// sentinel.ErrNotFound when the person has expressed nothing.
	ActivePreference(ctx context.Context, personID id.PersonID, contributorID *id.ContributorID) (*VisibilityPreference, error)
	// PreferencesFor returns all preferences for the given persons in one
	// round trip so projection never fetches per reference.
	PreferencesFor(ctx context.Context, personIDs []id.PersonID) ([]*VisibilityPreference, error)

	CreateReference(ctx context.Context, ref *PersonReference) error
	FindReference(ctx context.Context, refID id.ReferenceID) (*PersonReference, error)
	ListReferencesByNote(ctx context.Context, noteID id.NoteID) ([]*PersonReference, error)
	ListReferencesByPerson(ctx context.Context, personID id.PersonID) ([]*PersonReference, error)
	UpdateReferenceVisibility(ctx context.Context, refID id.ReferenceID, v id.Visibility, now time.Time) error
	// PersonsFor returns the persons behind the given references in one
	// round trip.
	PersonsFor(ctx context.Context, personIDs []id.PersonID) ([]*Person, error)
}
