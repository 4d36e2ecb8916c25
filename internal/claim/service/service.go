package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"hearth/internal/claim"
	"hearth/internal/person"
	"hearth/internal/platform/metrics"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/audit"
	"hearth/pkg/platform/sentinel"
	"hearth/pkg/requestcontext"
)

// TokenStore is the slice of the claim store the service needs.
type TokenStore interface {
	CreateInvite(ctx context.Context, invite *claim.Invite) error
	CreateToken(ctx context.Context, token *claim.Token) error
	ConsumeToken(ctx context.Context, tokenHash string, now time.Time) (*claim.Token, error)
}

// PersonStore is the slice of the person store the claim flow mutates.
type PersonStore interface {
	FindPerson(ctx context.Context, personID id.PersonID) (*person.Person, error)
	FindReference(ctx context.Context, refID id.ReferenceID) (*person.PersonReference, error)
	UpdatePersonVisibility(ctx context.Context, personID id.PersonID, v id.Visibility, claimed bool, now time.Time) error
	UpdateReferenceVisibility(ctx context.Context, refID id.ReferenceID, v id.Visibility, now time.Time) error
	UpsertPreference(ctx context.Context, pref *person.VisibilityPreference) error
	ActivePreference(ctx context.Context, personID id.PersonID, contributorID *id.ContributorID) (*person.VisibilityPreference, error)
}

// Auditor records privacy actions. During consumption it is called inside the
// claim transaction so the audit record commits with the visibility writes.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the claim token lifecycle: issuing invites with single-use
// tokens, and consuming a token into the claimant's visibility decision.
type Service struct {
	tokens   TokenStore
	persons  PersonStore
	boundary Boundary
	auditor  Auditor
	metrics  *metrics.Metrics
	logger   *slog.Logger

	baseURL  string
	tokenTTL time.Duration
}

func NewService(tokens TokenStore, persons PersonStore, boundary Boundary, auditor Auditor, m *metrics.Metrics, logger *slog.Logger, baseURL string, tokenTTL time.Duration) *Service {
	return &Service{
		tokens:   tokens,
		persons:  persons,
		boundary: boundary,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
		baseURL:  baseURL,
		tokenTTL: tokenTTL,
	}
}

// IssueInput identifies the reference the invite is about and who it goes to.
type IssueInput struct {
	NoteID         id.NoteID
	PersonID       id.PersonID
	ReferenceID    id.ReferenceID
	ContributorID  id.ContributorID
	RecipientName  string
	RecipientPhone string
}

// Issued carries the one-time claim URL back to the caller. The raw token is
// never stored and never appears again.
type Issued struct {
	InviteID  id.InviteID
	ClaimURL  string
	ExpiresAt time.Time
}

// Issue records an invite and mints its single-use claim token.
func (s *Service) Issue(ctx context.Context, in IssueInput) (*Issued, error) {
	if in.RecipientName == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "recipient name must not be empty")
	}
	ref, err := s.persons.FindReference(ctx, in.ReferenceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "reference not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue invite")
	}
	if ref.PersonID != in.PersonID || ref.NoteID != in.NoteID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "reference does not belong to the given note and person")
	}

	now := requestcontext.Now(ctx)
	raw, hash, err := claim.NewRawToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue invite")
	}

	invite := &claim.Invite{
		ID:             id.NewInviteID(),
		NoteID:         in.NoteID,
		PersonID:       in.PersonID,
		ReferenceID:    in.ReferenceID,
		ContributorID:  in.ContributorID,
		RecipientName:  in.RecipientName,
		RecipientPhone: in.RecipientPhone,
		CreatedAt:      now,
	}
	token := &claim.Token{
		TokenHash:      hash,
		InviteID:       invite.ID,
		NoteID:         in.NoteID,
		PersonID:       in.PersonID,
		ReferenceID:    in.ReferenceID,
		RecipientName:  in.RecipientName,
		RecipientPhone: in.RecipientPhone,
		ExpiresAt:      now.Add(s.tokenTTL),
		CreatedAt:      now,
	}

	err = s.boundary.RunInTx(ctx, hash, func(ctx context.Context) error {
		if err := s.tokens.CreateInvite(ctx, invite); err != nil {
			return err
		}
		return s.tokens.CreateToken(ctx, token)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue invite")
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Timestamp:   now,
		Action:      string(audit.ActionClaimIssued),
		PersonID:    in.PersonID,
		ReferenceID: in.ReferenceID,
		NoteID:      in.NoteID,
		ActorID:     in.ContributorID.String(),
		RequestID:   requestcontext.RequestID(ctx),
	}); err != nil {
		s.logger.Error("claim issue audit failed", "error", err)
	}

	return &Issued{
		InviteID:  invite.ID,
		ClaimURL:  s.claimURL(raw),
		ExpiresAt: token.ExpiresAt,
	}, nil
}

func (s *Service) claimURL(raw string) string {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return s.baseURL + "/claim/" + raw
	}
	return u.JoinPath("claim", raw).String()
}

// ConsumeResult reports what the claimant's choice applied.
type ConsumeResult struct {
	PersonID          id.PersonID
	VisibilityApplied id.Visibility
	InitialsOnly      bool
}

// errTokenInvalid is the single caller-facing failure for consumption.
// Whether the token was unknown, expired, or replayed is logged and audited
// but never disclosed, so the endpoint cannot be used to probe tokens.
func errTokenInvalid() error {
	return dErrors.New(dErrors.CodeTokenInvalid, "invalid or expired token")
}

// Consume redeems a raw claim token for the claimant's visibility choice.
// Exactly one concurrent call per token succeeds. The token-used mark, the
// preference write, and the person and reference visibility updates commit
// together.
func (s *Service) Consume(ctx context.Context, rawToken string, choice claim.Choice) (*ConsumeResult, error) {
	if rawToken == "" || !choice.Valid() {
		s.rejectClaim(ctx, "", "malformed request")
		return nil, errTokenInvalid()
	}

	hash := claim.HashToken(rawToken)
	now := requestcontext.Now(ctx)

	var result *ConsumeResult
	err := s.boundary.RunInTx(ctx, hash, func(ctx context.Context) error {
		token, err := s.tokens.ConsumeToken(ctx, hash, now)
		if err != nil {
			return err
		}

		pref := &person.VisibilityPreference{
			PersonID:     token.PersonID,
			Visibility:   choice.PreferenceVisibility(),
			InitialsOnly: choice.InitialsOnly(),
			UpdatedAt:    now,
		}
		if err := s.writePreference(ctx, pref); err != nil {
			return err
		}

		if err := s.persons.UpdatePersonVisibility(ctx, token.PersonID, choice.PreferenceVisibility(), true, now); err != nil {
			return err
		}
		if err := s.persons.UpdateReferenceVisibility(ctx, token.ReferenceID, choice.ReferenceVisibility(), now); err != nil {
			return err
		}

		if err := s.auditor.Emit(ctx, audit.Event{
			Timestamp:   now,
			Action:      string(audit.ActionClaimConsumed),
			PersonID:    token.PersonID,
			ReferenceID: token.ReferenceID,
			NoteID:      token.NoteID,
			ActorID:     "claimant",
			Decision:    string(choice),
			RequestID:   requestcontext.RequestID(ctx),
			Device:      s.device(ctx),
		}); err != nil {
			return fmt.Errorf("audit claim consumption: %w", err)
		}

		result = &ConsumeResult{
			PersonID:          token.PersonID,
			VisibilityApplied: choice.ReferenceVisibility(),
			InitialsOnly:      choice.InitialsOnly(),
		}
		return nil
	})
	if err != nil {
		s.rejectClaim(ctx, hash, rejectionReason(err))
		return nil, errTokenInvalid()
	}

	s.metrics.ClaimsConsumed.Inc()
	s.logger.Info("claim token consumed",
		"person_id", result.PersonID.String(),
		"choice", string(choice),
		"request_id", requestcontext.RequestID(ctx))
	return result, nil
}

// writePreference performs the version compare-and-set: read the current
// global preference, write version+1, and retry once if another writer got
// there first. The claimant's own later choice always supersedes.
func (s *Service) writePreference(ctx context.Context, pref *person.VisibilityPreference) error {
	for attempt := 0; attempt < 2; attempt++ {
		current, err := s.persons.ActivePreference(ctx, pref.PersonID, nil)
		switch {
		case err == nil:
			pref.Version = current.Version + 1
		case errors.Is(err, sentinel.ErrNotFound):
			pref.Version = 1
		default:
			return err
		}
		err = s.persons.UpsertPreference(ctx, pref)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("preference write: %w", sentinel.ErrConflict)
}

func (s *Service) rejectClaim(ctx context.Context, hash, reason string) {
	s.metrics.ClaimsRejected.Inc()
	s.logger.Warn("claim token rejected",
		"reason", reason,
		"token_hash_prefix", hashPrefix(hash),
		"request_id", requestcontext.RequestID(ctx))
	if err := s.auditor.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    string(audit.ActionClaimRejected),
		ActorID:   "claimant",
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		Device:    s.device(ctx),
	}); err != nil {
		s.logger.Error("claim rejection audit failed", "error", err)
	}
}

// hashPrefix keeps enough of the hash to correlate log lines without making
// the log a token oracle.
func hashPrefix(hash string) string {
	if len(hash) < 8 {
		return hash
	}
	return hash[:8]
}

// rejectionReason names the internal failure for the audit trail only.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return "unknown token"
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return "token replay"
	case errors.Is(err, sentinel.ErrExpired):
		return "token expired"
	default:
		return "internal failure"
	}
}

func (s *Service) device(ctx context.Context) string {
	device := requestcontext.UserAgent(ctx)
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		if device != "" {
			device += " "
		}
		device += "[" + ip + "]"
	}
	return device
}
