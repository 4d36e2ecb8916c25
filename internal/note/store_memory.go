package note

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "hearth/pkg/domain"
	"hearth/pkg/platform/sentinel"
)

// InMemoryStore keeps notes in a map for tests and fixture mode.
type InMemoryStore struct {
	mu    sync.RWMutex
	notes map[id.NoteID]*Note
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{notes: make(map[id.NoteID]*Note)}
}

func copyNote(n *Note) *Note {
	c := *n
	return &c
}

func (s *InMemoryStore) CreateNote(_ context.Context, n *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.notes[n.ID]; exists {
		return fmt.Errorf("note %s: %w", n.ID, sentinel.ErrConflict)
	}
	s.notes[n.ID] = copyNote(n)
	return nil
}

func (s *InMemoryStore) FindNote(_ context.Context, noteID id.NoteID) (*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[noteID]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", noteID, sentinel.ErrNotFound)
	}
	return copyNote(n), nil
}

func (s *InMemoryStore) ListByContributor(_ context.Context, contributorID id.ContributorID) ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Note
	for _, n := range s.notes {
		if n.ContributorID == contributorID {
			out = append(out, copyNote(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
