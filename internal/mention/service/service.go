// Package service resolves mentions into identity, one explicit contributor
// decision at a time.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"hearth/internal/mention"
	"hearth/internal/person"
	"hearth/internal/platform/metrics"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/audit"
	"hearth/pkg/platform/sentinel"
	"hearth/pkg/requestcontext"
)

// Store is the slice of the mention store the service needs.
type Store interface {
	FindMention(ctx context.Context, mentionID id.MentionID) (*mention.Mention, error)
	MarkPromoted(ctx context.Context, mentionID id.MentionID, personID id.PersonID, refID id.ReferenceID, now time.Time) error
	MarkIgnored(ctx context.Context, mentionID id.MentionID, now time.Time) error
	Annotate(ctx context.Context, mentionID id.MentionID, label string, now time.Time) error
}

// PersonStore is the slice of the person store promotion touches.
type PersonStore interface {
	CreatePerson(ctx context.Context, p *person.Person) error
	FindPerson(ctx context.Context, personID id.PersonID) (*person.Person, error)
	SearchByName(ctx context.Context, name string) ([]*person.Person, error)
	AddAlias(ctx context.Context, personID id.PersonID, alias string) error
	CreateReference(ctx context.Context, ref *person.PersonReference) error
}

// Boundary scopes a promotion: the person row, the reference, and the
// mention's status change commit or fail together.
type Boundary interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Auditor records privacy actions.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	mentions Store
	persons  PersonStore
	boundary Boundary
	auditor  Auditor
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(mentions Store, persons PersonStore, boundary Boundary, auditor Auditor, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		mentions: mentions,
		persons:  persons,
		boundary: boundary,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
	}
}

// PromoteInput carries the contributor's resolution of a mention.
type PromoteInput struct {
	// PersonID links to an existing person; nil means resolve by name.
	PersonID *id.PersonID
	// Role defaults to related when empty.
	Role                  person.Role
	RelationshipToSubject string
}

// PromoteResult is the linkage a promotion produced, or the linkage that
// already existed when the mention was promoted before.
type PromoteResult struct {
	PersonID      id.PersonID
	ReferenceID   id.ReferenceID
	CreatedPerson bool
}

// Promote turns a pending mention into a person reference. Promoting an
// already-promoted mention returns the existing linkage; two racing promotes
// produce exactly one person and one reference, and the loser observes the
// winner's result.
func (s *Service) Promote(ctx context.Context, mentionID id.MentionID, in PromoteInput) (*PromoteResult, error) {
	m, err := s.mentions.FindMention(ctx, mentionID)
	if err != nil {
		return nil, translateLookup(err, "mention not found")
	}
	if existing := promotedResult(m); existing != nil {
		return existing, nil
	}
	if m.Status == mention.StatusIgnored {
		return nil, dErrors.New(dErrors.CodeConflict, "mention was already ignored")
	}

	role := in.Role
	if role == "" {
		role = person.RoleRelated
	}
	if !person.ValidRole(role) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown reference role: "+string(role))
	}

	now := requestcontext.Now(ctx)

	var (
		target  *person.Person
		created bool
		refID   id.ReferenceID
		settled *PromoteResult
	)
	err = s.boundary.RunInTx(ctx, mentionID.String(), func(ctx context.Context) error {
		// Re-read under the transaction: a racing promote may have settled
		// the mention between the first read and here, and nothing may be
		// created for a mention that already left pending.
		m, err = s.mentions.FindMention(ctx, mentionID)
		if err != nil {
			return err
		}
		if m.Status != mention.StatusPending {
			settled = promotedResult(m)
			return nil
		}

		target, created, err = s.resolvePerson(ctx, m, in.PersonID)
		if err != nil {
			return err
		}
		if created {
			target.CreatedAt = now
			target.UpdatedAt = now
			if err := s.persons.CreatePerson(ctx, target); err != nil {
				return err
			}
		} else if !target.Matches(m.Text) {
			if err := s.persons.AddAlias(ctx, target.ID, m.Text); err != nil {
				return err
			}
		}

		ref := &person.PersonReference{
			ID:                    id.NewReferenceID(),
			NoteID:                m.NoteID,
			PersonID:              target.ID,
			Role:                  role,
			RelationshipToSubject: in.RelationshipToSubject,
			// A new reference starts at the person's current visibility, so
			// a blurred person never pops back to full name via promotion.
			Visibility:  target.Visibility,
			AuthorLabel: m.Text,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.persons.CreateReference(ctx, ref); err != nil {
			return err
		}
		refID = ref.ID
		return s.mentions.MarkPromoted(ctx, mentionID, target.ID, ref.ID, now)
	})
	if errors.Is(err, sentinel.ErrInvalidState) {
		// Lost the race at the final guard; the transaction rolled back and
		// the winner's linkage is the answer.
		return s.settledResult(ctx, mentionID)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "mention not found")
		}
		if code := dErrors.CodeOf(err); code != dErrors.CodeInternal {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to promote mention")
	}
	if settled != nil {
		return settled, nil
	}
	if target == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "mention was already ignored")
	}

	s.metrics.MentionsPromoted.Inc()
	if created {
		s.metrics.PersonsCreated.Inc()
		s.audit(ctx, audit.ActionPersonCreated, target.ID, refID, m.NoteID, "", now)
	}
	s.audit(ctx, audit.ActionMentionPromoted, target.ID, refID, m.NoteID, string(target.Visibility), now)
	s.logger.Info("mention promoted",
		"mention_id", mentionID.String(),
		"person_id", target.ID.String(),
		"created_person", created,
		"request_id", requestcontext.RequestID(ctx))

	return &PromoteResult{PersonID: target.ID, ReferenceID: refID, CreatedPerson: created}, nil
}

// resolvePerson picks or builds the person a mention should link to.
func (s *Service) resolvePerson(ctx context.Context, m *mention.Mention, explicit *id.PersonID) (*person.Person, bool, error) {
	if explicit != nil {
		target, err := s.persons.FindPerson(ctx, *explicit)
		if err != nil {
			return nil, false, translateLookup(err, "person not found")
		}
		return target, false, nil
	}

	matches, err := s.persons.SearchByName(ctx, m.Text)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to promote mention")
	}
	switch len(matches) {
	case 0:
		return &person.Person{
			ID:            id.NewPersonID(),
			CanonicalName: m.Text,
			Visibility:    id.VisibilityPending,
		}, true, nil
	case 1:
		return matches[0], false, nil
	default:
		return nil, false, dErrors.New(dErrors.CodeAmbiguousPerson, "multiple people match this name; pick one explicitly")
	}
}

// settledResult reads back the linkage after losing a promotion race or when
// re-promoting a resolved mention.
func (s *Service) settledResult(ctx context.Context, mentionID id.MentionID) (*PromoteResult, error) {
	m, err := s.mentions.FindMention(ctx, mentionID)
	if err != nil {
		return nil, translateLookup(err, "mention not found")
	}
	if existing := promotedResult(m); existing != nil {
		return existing, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "mention was already ignored")
}

func promotedResult(m *mention.Mention) *PromoteResult {
	if m.Status != mention.StatusPromoted || m.PromotedPersonID == nil || m.PromotedReferenceID == nil {
		return nil
	}
	return &PromoteResult{PersonID: *m.PromotedPersonID, ReferenceID: *m.PromotedReferenceID}
}

// Ignore resolves a mention as plain text forever. Ignoring twice is a no-op;
// ignoring a promoted mention is a conflict.
func (s *Service) Ignore(ctx context.Context, mentionID id.MentionID) error {
	now := requestcontext.Now(ctx)
	err := s.mentions.MarkIgnored(ctx, mentionID, now)
	if errors.Is(err, sentinel.ErrInvalidState) {
		m, findErr := s.mentions.FindMention(ctx, mentionID)
		if findErr != nil {
			return translateLookup(findErr, "mention not found")
		}
		if m.Status == mention.StatusIgnored {
			return nil
		}
		return dErrors.New(dErrors.CodeConflict, "mention was already promoted")
	}
	if err != nil {
		return translateLookup(err, "mention not found")
	}

	s.metrics.MentionsIgnored.Inc()
	m, err := s.mentions.FindMention(ctx, mentionID)
	if err == nil {
		s.audit(ctx, audit.ActionMentionIgnored, id.PersonID{}, id.ReferenceID{}, m.NoteID, "", now)
	}
	return nil
}

// KeepAsContext annotates a pending mention with a display label without
// resolving it. The mention keeps appearing as plain text.
func (s *Service) KeepAsContext(ctx context.Context, mentionID id.MentionID, label string) error {
	if label == "" {
		return dErrors.New(dErrors.CodeBadRequest, "display label must not be empty")
	}
	err := s.mentions.Annotate(ctx, mentionID, label, requestcontext.Now(ctx))
	if errors.Is(err, sentinel.ErrInvalidState) {
		return dErrors.New(dErrors.CodeConflict, "mention is already resolved")
	}
	if err != nil {
		return translateLookup(err, "mention not found")
	}
	return nil
}

// Candidates lists the people a mention's text could refer to, for the
// disambiguation prompt after an ambiguous promote.
func (s *Service) Candidates(ctx context.Context, mentionID id.MentionID) ([]*person.Person, error) {
	m, err := s.mentions.FindMention(ctx, mentionID)
	if err != nil {
		return nil, translateLookup(err, "mention not found")
	}
	matches, err := s.persons.SearchByName(ctx, m.Text)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list candidates")
	}
	return matches, nil
}

func (s *Service) audit(ctx context.Context, action audit.Action, personID id.PersonID, refID id.ReferenceID, noteID id.NoteID, decision string, now time.Time) {
	if err := s.auditor.Emit(ctx, audit.Event{
		Timestamp:   now,
		Action:      string(action),
		PersonID:    personID,
		ReferenceID: refID,
		NoteID:      noteID,
		ActorID:     requestcontext.ContributorID(ctx).String(),
		Decision:    decision,
		RequestID:   requestcontext.RequestID(ctx),
	}); err != nil {
		s.logger.Error("mention audit failed", "action", string(action), "error", err)
	}
}

func translateLookup(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "store failure")
}
