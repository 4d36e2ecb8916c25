package person

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "hearth/pkg/domain"
	"hearth/pkg/platform/sentinel"
)

// InMemoryStore keeps persons, preferences, and references in maps for
// tests and fixture mode.
type InMemoryStore struct {
	mu      sync.RWMutex
	persons map[id.PersonID]*Person
	// prefs is keyed by person, then by scope ("" for global, contributor
	// UUID string otherwise).
	prefs map[id.PersonID]map[string]*VisibilityPreference
	refs  map[id.ReferenceID]*PersonReference
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		persons: make(map[id.PersonID]*Person),
		prefs:   make(map[id.PersonID]map[string]*VisibilityPreference),
		refs:    make(map[id.ReferenceID]*PersonReference),
	}
}

func copyPerson(p *Person) *Person {
	c := *p
	c.Aliases = append([]string(nil), p.Aliases...)
	return &c
}

func copyPreference(p *VisibilityPreference) *VisibilityPreference {
	c := *p
	if p.ContributorID != nil {
		scoped := *p.ContributorID
		c.ContributorID = &scoped
	}
	return &c
}

func copyReference(r *PersonReference) *PersonReference {
	c := *r
	return &c
}

func scopeKey(contributorID *id.ContributorID) string {
	if contributorID == nil {
		return ""
	}
	return contributorID.String()
}

func (s *InMemoryStore) CreatePerson(_ context.Context, p *Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.persons[p.ID]; exists {
		return fmt.Errorf("person %s: %w", p.ID, sentinel.ErrConflict)
	}
	s.persons[p.ID] = copyPerson(p)
	return nil
}

func (s *InMemoryStore) FindPerson(_ context.Context, personID id.PersonID) (*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[personID]
	if !ok {
		return nil, fmt.Errorf("person %s: %w", personID, sentinel.ErrNotFound)
	}
	return copyPerson(p), nil
}

func (s *InMemoryStore) SearchByName(_ context.Context, name string) ([]*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []*Person
	for _, p := range s.persons {
		if p.Matches(name) {
			matches = append(matches, copyPerson(p))
		}
	}
	return matches, nil
}

func (s *InMemoryStore) AddAlias(_ context.Context, personID id.PersonID, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[personID]
	if !ok {
		return fmt.Errorf("person %s: %w", personID, sentinel.ErrNotFound)
	}
	for _, existing := range p.Aliases {
		if existing == alias {
			return nil
		}
	}
	p.Aliases = append(p.Aliases, alias)
	return nil
}

func (s *InMemoryStore) UpdatePersonVisibility(_ context.Context, personID id.PersonID, v id.Visibility, claimed bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[personID]
	if !ok {
		return fmt.Errorf("person %s: %w", personID, sentinel.ErrNotFound)
	}
	p.Visibility = v
	if claimed {
		p.Claimed = true
	}
	p.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) UpsertPreference(_ context.Context, pref *VisibilityPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scopes, ok := s.prefs[pref.PersonID]
	if !ok {
		scopes = make(map[string]*VisibilityPreference)
		s.prefs[pref.PersonID] = scopes
	}
	key := scopeKey(pref.ContributorID)
	if current, exists := scopes[key]; exists && pref.Version <= current.Version {
		return fmt.Errorf("preference version %d behind stored %d: %w",
			pref.Version, current.Version, sentinel.ErrConflict)
	}
	scopes[key] = copyPreference(pref)
	return nil
}

func (s *InMemoryStore) ActivePreference(_ context.Context, personID id.PersonID, contributorID *id.ContributorID) (*VisibilityPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scopes, ok := s.prefs[personID]
	if !ok {
		return nil, fmt.Errorf("preference for %s: %w", personID, sentinel.ErrNotFound)
	}
	if contributorID != nil {
		if pref, exists := scopes[scopeKey(contributorID)]; exists {
			return copyPreference(pref), nil
		}
	}
	if pref, exists := scopes[""]; exists {
		return copyPreference(pref), nil
	}
	return nil, fmt.Errorf("preference for %s: %w", personID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) PreferencesFor(_ context.Context, personIDs []id.PersonID) ([]*VisibilityPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*VisibilityPreference
	for _, personID := range personIDs {
		for _, pref := range s.prefs[personID] {
			out = append(out, copyPreference(pref))
		}
	}
	return out, nil
}

func (s *InMemoryStore) CreateReference(_ context.Context, ref *PersonReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.refs[ref.ID]; exists {
		return fmt.Errorf("reference %s: %w", ref.ID, sentinel.ErrConflict)
	}
	s.refs[ref.ID] = copyReference(ref)
	return nil
}

func (s *InMemoryStore) FindReference(_ context.Context, refID id.ReferenceID) (*PersonReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.refs[refID]
	if !ok {
		return nil, fmt.Errorf("reference %s: %w", refID, sentinel.ErrNotFound)
	}
	return copyReference(ref), nil
}

func (s *InMemoryStore) ListReferencesByNote(_ context.Context, noteID id.NoteID) ([]*PersonReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*PersonReference
	for _, ref := range s.refs {
		if ref.NoteID == noteID {
			out = append(out, copyReference(ref))
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListReferencesByPerson(_ context.Context, personID id.PersonID) ([]*PersonReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*PersonReference
	for _, ref := range s.refs {
		if ref.PersonID == personID {
			out = append(out, copyReference(ref))
		}
	}
	return out, nil
}

func (s *InMemoryStore) UpdateReferenceVisibility(_ context.Context, refID id.ReferenceID, v id.Visibility, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.refs[refID]
	if !ok {
		return fmt.Errorf("reference %s: %w", refID, sentinel.ErrNotFound)
	}
	ref.Visibility = v
	ref.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) PersonsFor(_ context.Context, personIDs []id.PersonID) ([]*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Person, 0, len(personIDs))
	seen := make(map[id.PersonID]bool, len(personIDs))
	for _, personID := range personIDs {
		if seen[personID] {
			continue
		}
		seen[personID] = true
		if p, ok := s.persons[personID]; ok {
			out = append(out, copyPerson(p))
		}
	}
	return out, nil
}
