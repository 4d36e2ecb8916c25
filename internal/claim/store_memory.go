package claim

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "hearth/pkg/domain"
	"hearth/pkg/platform/sentinel"
)

// InMemoryStore stores invites and claim tokens in memory for tests and
// fixture mode.
type InMemoryStore struct {
	mu      sync.Mutex
	invites map[id.InviteID]*Invite
	tokens  map[string]*Token
}

// NewInMemoryStore constructs an empty in-memory claim store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		invites: make(map[id.InviteID]*Invite),
		tokens:  make(map[string]*Token),
	}
}

func (s *InMemoryStore) CreateInvite(_ context.Context, invite *Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.invites[invite.ID]; exists {
		return fmt.Errorf("invite %s: %w", invite.ID, sentinel.ErrConflict)
	}
	copied := *invite
	s.invites[invite.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindInvite(_ context.Context, inviteID id.InviteID) (*Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invite, ok := s.invites[inviteID]
	if !ok {
		return nil, fmt.Errorf("invite %s: %w", inviteID, sentinel.ErrNotFound)
	}
	copied := *invite
	return &copied, nil
}

func (s *InMemoryStore) CreateToken(_ context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[token.TokenHash]; exists {
		return fmt.Errorf("claim token: %w", sentinel.ErrConflict)
	}
	copied := *token
	s.tokens[token.TokenHash] = &copied
	return nil
}

// ConsumeToken validates and marks the token used under one lock, so the
// check and the write are a single atomic step.
func (s *InMemoryStore) ConsumeToken(_ context.Context, tokenHash string, now time.Time) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("claim token: %w", sentinel.ErrNotFound)
	}
	if token.UsedAt != nil {
		copied := *token
		return &copied, fmt.Errorf("claim token: %w", sentinel.ErrAlreadyUsed)
	}
	if !token.ExpiresAt.After(now) {
		return nil, fmt.Errorf("claim token: %w", sentinel.ErrExpired)
	}

	used := now
	token.UsedAt = &used
	copied := *token
	return &copied, nil
}
