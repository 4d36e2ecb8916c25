// Package service owns the note boundary: accepting authored notes with
// their raw reference tuples and serving the redacted read path.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"hearth/internal/mention"
	"hearth/internal/note"
	"hearth/internal/person"
	"hearth/internal/platform/metrics"
	"hearth/internal/projection"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/sentinel"
	hstrings "hearth/pkg/platform/strings"
	"hearth/pkg/requestcontext"
)

var tracer = otel.Tracer("hearth/internal/note")

// PersonStore is the slice of the person store the note boundary uses.
type PersonStore interface {
	CreatePerson(ctx context.Context, p *person.Person) error
	SearchByName(ctx context.Context, name string) ([]*person.Person, error)
	CreateReference(ctx context.Context, ref *person.PersonReference) error
	ListReferencesByNote(ctx context.Context, noteID id.NoteID) ([]*person.PersonReference, error)
	PersonsFor(ctx context.Context, personIDs []id.PersonID) ([]*person.Person, error)
	PreferencesFor(ctx context.Context, personIDs []id.PersonID) ([]*person.VisibilityPreference, error)
}

// MentionStore receives pending mention rows from the name-detection
// collaborator.
type MentionStore interface {
	CreateMention(ctx context.Context, m *mention.Mention) error
}

// Boundary scopes a note submission: the note row, its references, and its
// mention candidates commit together.
type Boundary interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type Service struct {
	notes    note.Store
	persons  PersonStore
	mentions MentionStore
	boundary Boundary
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(notes note.Store, persons PersonStore, mentions MentionStore, boundary Boundary, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		notes:    notes,
		persons:  persons,
		mentions: mentions,
		boundary: boundary,
		metrics:  m,
		logger:   logger,
	}
}

// ReferenceInput is a raw person-reference tuple from the authoring forms.
type ReferenceInput struct {
	Name                  string
	RelationshipToSubject string
	Role                  person.Role
	Phone                 string
}

// SubmitInput is everything the authoring collaborator hands over for one
// note: the text, the explicit reference tuples, and the free-text mention
// candidates the scanner detected.
type SubmitInput struct {
	Title      string
	Body       string
	References []ReferenceInput
	Mentions   []string
}

// SubmitResult reports what a submission created.
type SubmitResult struct {
	NoteID       id.NoteID
	ReferenceIDs []id.ReferenceID
	MentionIDs   []id.MentionID
}

// SubmitNote records an authored note. Explicit reference tuples resolve to
// existing people by name or create pending ones; a name matching several
// people is rejected rather than guessed. Detected mentions land as pending
// rows awaiting explicit resolution.
func (s *Service) SubmitNote(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	contributorID := requestcontext.ContributorID(ctx)
	if contributorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "submitting a note requires a contributor")
	}
	for _, ref := range in.References {
		if ref.Name == "" {
			return nil, dErrors.New(dErrors.CodeBadRequest, "reference name must not be empty")
		}
		if ref.Role != "" && !person.ValidRole(ref.Role) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "unknown reference role: "+string(ref.Role))
		}
	}

	now := requestcontext.Now(ctx)
	n := &note.Note{
		ID:            id.NewNoteID(),
		ContributorID: contributorID,
		Title:         in.Title,
		Body:          in.Body,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	result := &SubmitResult{NoteID: n.ID}
	err := s.boundary.RunInTx(ctx, n.ID.String(), func(ctx context.Context) error {
		if err := s.notes.CreateNote(ctx, n); err != nil {
			return err
		}
		for _, in := range in.References {
			refID, err := s.createReference(ctx, n.ID, in, now)
			if err != nil {
				return err
			}
			result.ReferenceIDs = append(result.ReferenceIDs, refID)
		}
		for _, text := range hstrings.DedupeAndTrim(in.Mentions) {
			m := &mention.Mention{
				ID:        id.NewMentionID(),
				NoteID:    n.ID,
				Text:      text,
				Status:    mention.StatusPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.mentions.CreateMention(ctx, m); err != nil {
				return err
			}
			result.MentionIDs = append(result.MentionIDs, m.ID)
		}
		return nil
	})
	if err != nil {
		if code := dErrors.CodeOf(err); code != dErrors.CodeInternal {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to submit note")
	}

	s.logger.Info("note submitted",
		"note_id", n.ID.String(),
		"references", len(result.ReferenceIDs),
		"mentions", len(result.MentionIDs),
		"request_id", requestcontext.RequestID(ctx))
	return result, nil
}

func (s *Service) createReference(ctx context.Context, noteID id.NoteID, in ReferenceInput, now time.Time) (id.ReferenceID, error) {
	matches, err := s.persons.SearchByName(ctx, in.Name)
	if err != nil {
		return id.ReferenceID{}, err
	}

	var target *person.Person
	switch len(matches) {
	case 0:
		target = &person.Person{
			ID:            id.NewPersonID(),
			CanonicalName: in.Name,
			Visibility:    id.VisibilityPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.persons.CreatePerson(ctx, target); err != nil {
			return id.ReferenceID{}, err
		}
		s.metrics.PersonsCreated.Inc()
	case 1:
		target = matches[0]
	default:
		return id.ReferenceID{}, dErrors.New(dErrors.CodeAmbiguousPerson,
			"multiple people match the name "+in.Name+"; resolve via mention promotion")
	}

	role := in.Role
	if role == "" {
		role = person.RoleRelated
	}
	ref := &person.PersonReference{
		ID:                    id.NewReferenceID(),
		NoteID:                noteID,
		PersonID:              target.ID,
		Role:                  role,
		RelationshipToSubject: in.RelationshipToSubject,
		Visibility:            target.Visibility,
		AuthorLabel:           in.Name,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.persons.CreateReference(ctx, ref); err != nil {
		return id.ReferenceID{}, err
	}
	return ref.ID, nil
}

// References serves the redacted read path for one note. Persons and
// preferences are prefetched in bulk, never per reference, and the rows go
// through the projector exactly once.
func (s *Service) References(ctx context.Context, noteID id.NoteID) ([]projection.RedactedReference, error) {
	ctx, span := tracer.Start(ctx, "note.References",
		trace.WithAttributes(attribute.String("note.id", noteID.String())))
	defer span.End()

	n, refs, persons, prefs, err := s.fetchProjectionRows(ctx, noteID)
	if err != nil {
		return nil, err
	}

	viewer := s.viewerFor(ctx, n)
	out, err := projection.Project(refs, persons, prefs, viewer)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			s.metrics.InvariantViolations.Inc()
			s.logger.ErrorContext(ctx, "projection invariant violation",
				"note_id", noteID.String(),
				"error", err,
				"request_id", requestcontext.RequestID(ctx))
		}
		return nil, err
	}

	s.metrics.ReferencesProjected.Add(float64(len(out)))
	span.SetAttributes(attribute.Int("note.references", len(out)))
	return out, nil
}

// Compare returns the owner and public projections side by side. The caller
// must already have gated access; the owner viewer is the note's author
// regardless of who asks.
func (s *Service) Compare(ctx context.Context, noteID id.NoteID) (*projection.CompareResult, error) {
	ctx, span := tracer.Start(ctx, "note.Compare",
		trace.WithAttributes(attribute.String("note.id", noteID.String())))
	defer span.End()

	n, refs, persons, prefs, err := s.fetchProjectionRows(ctx, noteID)
	if err != nil {
		return nil, err
	}

	owner := projection.Viewer{IsOwner: true, ContributorID: &n.ContributorID}
	result, err := projection.Compare(refs, persons, prefs, owner)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			s.metrics.InvariantViolations.Inc()
		}
		return nil, err
	}
	return result, nil
}

// fetchProjectionRows loads the note, its references, and the person and
// preference rows projection needs, with the two bulk lookups in flight
// concurrently.
func (s *Service) fetchProjectionRows(ctx context.Context, noteID id.NoteID) (*note.Note, []*person.PersonReference, []*person.Person, []*person.VisibilityPreference, error) {
	n, err := s.notes.FindNote(ctx, noteID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, nil, nil, dErrors.New(dErrors.CodeNotFound, "note not found")
		}
		return nil, nil, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load note")
	}

	refs, err := s.persons.ListReferencesByNote(ctx, noteID)
	if err != nil {
		return nil, nil, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load references")
	}

	personIDs := make([]id.PersonID, 0, len(refs))
	seen := make(map[id.PersonID]struct{}, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref.PersonID]; ok {
			continue
		}
		seen[ref.PersonID] = struct{}{}
		personIDs = append(personIDs, ref.PersonID)
	}

	var (
		persons []*person.Person
		prefs   []*person.VisibilityPreference
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		persons, err = s.persons.PersonsFor(gctx, personIDs)
		return err
	})
	g.Go(func() error {
		var err error
		prefs, err = s.persons.PreferencesFor(gctx, personIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load projection rows")
	}
	return n, refs, persons, prefs, nil
}

func (s *Service) viewerFor(ctx context.Context, n *note.Note) projection.Viewer {
	contributorID := requestcontext.ContributorID(ctx)
	if contributorID.IsNil() {
		return projection.Viewer{}
	}
	return projection.Viewer{
		IsOwner:       n.OwnedBy(contributorID),
		ContributorID: &contributorID,
	}
}
