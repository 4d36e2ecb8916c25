package claim

import (
	"context"
	"time"

	id "hearth/pkg/domain"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the token or invite does not exist
// - Return sentinel.ErrExpired / sentinel.ErrAlreadyUsed from ConsumeToken;
//   callers collapse both into one generic caller-facing error
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// Store persists invites and claim tokens.
type Store interface {
	CreateInvite(ctx context.Context, invite *Invite) error
	FindInvite(ctx context.Context, inviteID id.InviteID) (*Invite, error)
	CreateToken(ctx context.Context, token *Token) error
	// ConsumeToken atomically checks "unused and not expired" and marks the
	// token used at now. Two concurrent calls with the same hash yield
	// exactly one success; the check and the write are never separate
	// operations. The token is returned even on ErrAlreadyUsed so callers
	// can log replay attempts.
	ConsumeToken(ctx context.Context, tokenHash string, now time.Time) (*Token, error)
}
