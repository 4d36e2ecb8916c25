package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	claimservice "hearth/internal/claim/service"
	"hearth/internal/mention"
	"hearth/internal/note"
	"hearth/internal/note/service/mocks"
	"hearth/internal/person"
	"hearth/internal/platform/metrics"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	notes    *note.InMemoryStore
	persons  *person.InMemoryStore
	mentions *mention.InMemoryStore
	service  *Service

	now    time.Time
	author id.ContributorID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.notes = note.NewInMemoryStore()
	s.persons = person.NewInMemoryStore()
	s.mentions = mention.NewInMemoryStore()
	s.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.author = id.NewContributorID()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(
		s.notes,
		s.persons,
		s.mentions,
		claimservice.NewMemoryBoundary(),
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
	)
}

func (s *ServiceSuite) authorCtx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	return requestcontext.WithContributorID(ctx, s.author)
}

func (s *ServiceSuite) publicCtx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TestSubmitNote() {
	s.Run("creates pending person for an unknown name", func() {
		result, err := s.service.SubmitNote(s.authorCtx(), SubmitInput{
			Title:      "Sunday at the lake",
			Body:       "Rosa brought the canoe.",
			References: []ReferenceInput{{Name: "Rosa Delgado", RelationshipToSubject: "aunt"}},
		})
		s.Require().NoError(err)
		s.Require().Len(result.ReferenceIDs, 1)

		matches, err := s.persons.SearchByName(s.authorCtx(), "rosa delgado")
		s.Require().NoError(err)
		s.Require().Len(matches, 1)
		s.Equal(id.VisibilityPending, matches[0].Visibility)

		refs, err := s.persons.ListReferencesByNote(s.authorCtx(), result.NoteID)
		s.Require().NoError(err)
		s.Require().Len(refs, 1)
		s.Equal(matches[0].ID, refs[0].PersonID)
		s.Equal("Rosa Delgado", refs[0].AuthorLabel)
		s.Equal(person.RoleRelated, refs[0].Role)
	})

	s.Run("links the single matching person", func() {
		existing := &person.Person{
			ID: id.NewPersonID(), CanonicalName: "Miguel Torres",
			Visibility: id.VisibilityApproved, CreatedAt: s.now, UpdatedAt: s.now,
		}
		s.Require().NoError(s.persons.CreatePerson(s.authorCtx(), existing))

		result, err := s.service.SubmitNote(s.authorCtx(), SubmitInput{
			Body:       "miguel torres told this one at dinner.",
			References: []ReferenceInput{{Name: "miguel torres", Role: person.RoleHeardFrom}},
		})
		s.Require().NoError(err)

		refs, err := s.persons.ListReferencesByNote(s.authorCtx(), result.NoteID)
		s.Require().NoError(err)
		s.Require().Len(refs, 1)
		s.Equal(existing.ID, refs[0].PersonID)
		s.Equal(id.VisibilityApproved, refs[0].Visibility)
	})

	s.Run("ambiguous name is rejected, never guessed", func() {
		for range 2 {
			p := &person.Person{
				ID: id.NewPersonID(), CanonicalName: "Sam Reyes",
				Visibility: id.VisibilityPending, CreatedAt: s.now, UpdatedAt: s.now,
			}
			s.Require().NoError(s.persons.CreatePerson(s.authorCtx(), p))
		}

		_, err := s.service.SubmitNote(s.authorCtx(), SubmitInput{
			Body:       "Sam fixed the roof.",
			References: []ReferenceInput{{Name: "Sam Reyes"}},
		})
		s.Require().Error(err)
		s.Equal(dErrors.CodeAmbiguousPerson, dErrors.CodeOf(err))
	})

	s.Run("records detected mentions as pending rows, deduplicated", func() {
		result, err := s.service.SubmitNote(s.authorCtx(), SubmitInput{
			Body:     "Later Tía Carmen joined us. Tía Carmen laughed.",
			Mentions: []string{"Tía Carmen", "  Tía Carmen ", ""},
		})
		s.Require().NoError(err)
		s.Require().Len(result.MentionIDs, 1)

		rows, err := s.mentions.ListByNote(s.authorCtx(), result.NoteID)
		s.Require().NoError(err)
		s.Require().Len(rows, 1)
		s.Equal(mention.StatusPending, rows[0].Status)
		s.Equal("Tía Carmen", rows[0].Text)
	})

	s.Run("rejects anonymous submission", func() {
		_, err := s.service.SubmitNote(s.publicCtx(), SubmitInput{Body: "x"})
		s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	})

	s.Run("rejects unknown role", func() {
		_, err := s.service.SubmitNote(s.authorCtx(), SubmitInput{
			Body:       "x",
			References: []ReferenceInput{{Name: "Ana", Role: person.Role("bystander")}},
		})
		s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
	})
}

// A freshly referenced person is only ever "someone" to the public, while the
// author keeps seeing the label they typed.
func (s *ServiceSuite) TestReferences_PendingPersonIsRedactedForPublic() {
	result, err := s.service.SubmitNote(s.authorCtx(), SubmitInput{
		Body:       "Rosa brought the canoe.",
		References: []ReferenceInput{{Name: "Rosa Delgado", RelationshipToSubject: "aunt"}},
	})
	s.Require().NoError(err)

	public, err := s.service.References(s.publicCtx(), result.NoteID)
	s.Require().NoError(err)
	s.Require().Len(public, 1)
	s.Equal("someone", public[0].RenderLabel)
	s.Equal(id.VisibilityPending, public[0].Visibility)
	s.Nil(public[0].RelationshipToSubject)
	s.Nil(public[0].AuthorPayload)

	owner, err := s.service.References(s.authorCtx(), result.NoteID)
	s.Require().NoError(err)
	s.Require().Len(owner, 1)
	s.Require().NotNil(owner[0].AuthorPayload)
	s.Equal("Rosa Delgado", owner[0].AuthorPayload.AuthorLabel)
}

func (s *ServiceSuite) TestReferences_OtherContributorGetsPublicView() {
	result, err := s.service.SubmitNote(s.authorCtx(), SubmitInput{
		Body:       "Rosa brought the canoe.",
		References: []ReferenceInput{{Name: "Rosa Delgado"}},
	})
	s.Require().NoError(err)

	other := requestcontext.WithContributorID(s.publicCtx(), id.NewContributorID())
	out, err := s.service.References(other, result.NoteID)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal("someone", out[0].RenderLabel)
	s.Nil(out[0].AuthorPayload)
}

func (s *ServiceSuite) TestReferences_UnknownNote() {
	_, err := s.service.References(s.publicCtx(), id.NewNoteID())
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestCompare_PairsOwnerAndPublicProjections() {
	result, err := s.service.SubmitNote(s.authorCtx(), SubmitInput{
		Body:       "Rosa brought the canoe.",
		References: []ReferenceInput{{Name: "Rosa Delgado", RelationshipToSubject: "aunt"}},
	})
	s.Require().NoError(err)

	// No contributor on the context: the owner side must still come out as
	// the note's author.
	cmp, err := s.service.Compare(s.publicCtx(), result.NoteID)
	s.Require().NoError(err)
	s.Require().Len(cmp.Owner, 1)
	s.Require().Len(cmp.Public, 1)
	s.Require().NotNil(cmp.Owner[0].AuthorPayload)
	s.Equal("Rosa Delgado", cmp.Owner[0].AuthorPayload.AuthorLabel)
	s.Nil(cmp.Public[0].AuthorPayload)
	s.Equal("someone", cmp.Public[0].RenderLabel)
}

// Store failures must come back as internal errors, not as the raw driver
// error or a partial projection.

type MockSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	persons  *mocks.MockPersonStore
	mentions *mocks.MockMentionStore
	notes    *note.InMemoryStore
	service  *Service
	author   id.ContributorID
}

func TestMockSuite(t *testing.T) {
	suite.Run(t, new(MockSuite))
}

func (s *MockSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.persons = mocks.NewMockPersonStore(s.ctrl)
	s.mentions = mocks.NewMockMentionStore(s.ctrl)
	s.notes = note.NewInMemoryStore()
	s.author = id.NewContributorID()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(
		s.notes,
		s.persons,
		s.mentions,
		claimservice.NewMemoryBoundary(),
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
	)
}

func (s *MockSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *MockSuite) ctx() context.Context {
	return requestcontext.WithContributorID(context.Background(), s.author)
}

func (s *MockSuite) TestSubmitNote_SearchFailureIsInternal() {
	s.persons.EXPECT().
		SearchByName(gomock.Any(), "Rosa Delgado").
		Return(nil, errors.New("connection reset"))

	_, err := s.service.SubmitNote(s.ctx(), SubmitInput{
		Body:       "x",
		References: []ReferenceInput{{Name: "Rosa Delgado"}},
	})
	s.Require().Error(err)
	s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
	s.NotContains(dErrors.Message(err), "connection reset")
}

func (s *MockSuite) TestReferences_PrefetchFailureIsInternal() {
	n := &note.Note{ID: id.NewNoteID(), ContributorID: s.author}
	s.Require().NoError(s.notes.CreateNote(s.ctx(), n))

	refs := []*person.PersonReference{{
		ID: id.NewReferenceID(), NoteID: n.ID, PersonID: id.NewPersonID(),
		Role: person.RoleRelated, Visibility: id.VisibilityPending, AuthorLabel: "Rosa",
	}}
	s.persons.EXPECT().ListReferencesByNote(gomock.Any(), n.ID).Return(refs, nil)
	s.persons.EXPECT().PersonsFor(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout")).AnyTimes()
	s.persons.EXPECT().PreferencesFor(gomock.Any(), gomock.Any()).Return([]*person.VisibilityPreference{}, nil).AnyTimes()

	_, err := s.service.References(s.ctx(), n.ID)
	s.Require().Error(err)
	s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
}

// An approved reference whose person row went missing has no identity to
// disclose; the projection falls back to the placeholder instead of failing
// the whole read.
func (s *MockSuite) TestReferences_OrphanReferenceRendersPlaceholder() {
	n := &note.Note{ID: id.NewNoteID(), ContributorID: id.NewContributorID()}
	s.Require().NoError(s.notes.CreateNote(s.ctx(), n))

	orphan := &person.PersonReference{
		ID: id.NewReferenceID(), NoteID: n.ID, PersonID: id.NewPersonID(),
		Role: person.RoleRelated, Visibility: id.VisibilityApproved, AuthorLabel: "Rosa",
	}
	s.persons.EXPECT().ListReferencesByNote(gomock.Any(), n.ID).
		Return([]*person.PersonReference{orphan}, nil)
	s.persons.EXPECT().PersonsFor(gomock.Any(), gomock.Any()).Return(nil, nil)
	s.persons.EXPECT().PreferencesFor(gomock.Any(), gomock.Any()).Return(nil, nil)

	out, err := s.service.References(s.ctx(), n.ID)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal("someone", out[0].RenderLabel)
}
