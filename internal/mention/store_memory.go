package mention

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	id "hearth/pkg/domain"
	"hearth/pkg/platform/sentinel"
)

// InMemoryStore keeps mentions in a map for tests and fixture mode.
type InMemoryStore struct {
	mu       sync.RWMutex
	mentions map[id.MentionID]*Mention
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{mentions: make(map[id.MentionID]*Mention)}
}

func copyMention(m *Mention) *Mention {
	c := *m
	if m.PromotedPersonID != nil {
		personID := *m.PromotedPersonID
		c.PromotedPersonID = &personID
	}
	if m.PromotedReferenceID != nil {
		refID := *m.PromotedReferenceID
		c.PromotedReferenceID = &refID
	}
	return &c
}

func (s *InMemoryStore) CreateMention(_ context.Context, m *Mention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.mentions[m.ID]; exists {
		return fmt.Errorf("mention %s: %w", m.ID, sentinel.ErrConflict)
	}
	s.mentions[m.ID] = copyMention(m)
	return nil
}

func (s *InMemoryStore) FindMention(_ context.Context, mentionID id.MentionID) (*Mention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mentions[mentionID]
	if !ok {
		return nil, fmt.Errorf("mention %s: %w", mentionID, sentinel.ErrNotFound)
	}
	return copyMention(m), nil
}

func (s *InMemoryStore) ListByNote(_ context.Context, noteID id.NoteID) ([]*Mention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Mention
	for _, m := range s.mentions {
		if m.NoteID == noteID {
			out = append(out, copyMention(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) MarkPromoted(_ context.Context, mentionID id.MentionID, personID id.PersonID, refID id.ReferenceID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mentions[mentionID]
	if !ok {
		return fmt.Errorf("mention %s: %w", mentionID, sentinel.ErrNotFound)
	}
	if m.Status != StatusPending {
		return fmt.Errorf("mention %s is %s: %w", mentionID, m.Status, sentinel.ErrInvalidState)
	}
	m.Status = StatusPromoted
	m.PromotedPersonID = &personID
	m.PromotedReferenceID = &refID
	m.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) MarkIgnored(_ context.Context, mentionID id.MentionID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mentions[mentionID]
	if !ok {
		return fmt.Errorf("mention %s: %w", mentionID, sentinel.ErrNotFound)
	}
	if m.Status != StatusPending {
		return fmt.Errorf("mention %s is %s: %w", mentionID, m.Status, sentinel.ErrInvalidState)
	}
	m.Status = StatusIgnored
	m.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) Annotate(_ context.Context, mentionID id.MentionID, label string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mentions[mentionID]
	if !ok {
		return fmt.Errorf("mention %s: %w", mentionID, sentinel.ErrNotFound)
	}
	if m.Status != StatusPending {
		return fmt.Errorf("mention %s is %s: %w", mentionID, m.Status, sentinel.ErrInvalidState)
	}
	m.DisplayLabel = label
	m.UpdatedAt = now
	return nil
}
