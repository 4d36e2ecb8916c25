package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"hearth/internal/claim"
	"hearth/internal/person"
	"hearth/internal/platform/metrics"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/audit"
	auditmemory "hearth/pkg/platform/audit/store/memory"
	"hearth/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	tokens     *claim.InMemoryStore
	persons    *person.InMemoryStore
	auditStore *auditmemory.InMemoryStore
	service    *Service

	now time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.tokens = claim.NewInMemoryStore()
	s.persons = person.NewInMemoryStore()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(
		s.tokens,
		s.persons,
		NewMemoryBoundary(),
		audit.NewPublisher(s.auditStore),
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
		"https://hearth.example",
		14*24*time.Hour,
	)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

// seedReference creates a person plus one reference to them and returns both.
func (s *ServiceSuite) seedReference(name string) (*person.Person, *person.PersonReference) {
	p := &person.Person{
		ID:            id.NewPersonID(),
		CanonicalName: name,
		Visibility:    id.VisibilityPending,
		CreatedAt:     s.now,
		UpdatedAt:     s.now,
	}
	s.Require().NoError(s.persons.CreatePerson(s.ctx(), p))

	ref := &person.PersonReference{
		ID:          id.NewReferenceID(),
		NoteID:      id.NewNoteID(),
		PersonID:    p.ID,
		Role:        person.RoleWitness,
		Visibility:  id.VisibilityPending,
		AuthorLabel: name,
		CreatedAt:   s.now,
		UpdatedAt:   s.now,
	}
	s.Require().NoError(s.persons.CreateReference(s.ctx(), ref))
	return p, ref
}

func (s *ServiceSuite) issue(ref *person.PersonReference) *Issued {
	issued, err := s.service.Issue(s.ctx(), IssueInput{
		NoteID:        ref.NoteID,
		PersonID:      ref.PersonID,
		ReferenceID:   ref.ID,
		ContributorID: id.NewContributorID(),
		RecipientName: "Aunt June",
	})
	s.Require().NoError(err)
	return issued
}

// rawTokenFrom extracts the raw token from the claim URL, the way the
// recipient's browser would.
func rawTokenFrom(claimURL string) string {
	parts := strings.Split(claimURL, "/")
	return parts[len(parts)-1]
}

func (s *ServiceSuite) TestIssue() {
	s.Run("mints a claim URL under the base URL", func() {
		_, ref := s.seedReference("June Alvarez")
		issued := s.issue(ref)

		s.True(strings.HasPrefix(issued.ClaimURL, "https://hearth.example/claim/"))
		s.Equal(s.now.Add(14*24*time.Hour), issued.ExpiresAt)
	})

	s.Run("rejects a reference bound to a different note", func() {
		_, ref := s.seedReference("June Alvarez")
		_, err := s.service.Issue(s.ctx(), IssueInput{
			NoteID:        id.NewNoteID(),
			PersonID:      ref.PersonID,
			ReferenceID:   ref.ID,
			ContributorID: id.NewContributorID(),
			RecipientName: "Aunt June",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("rejects an unknown reference", func() {
		_, err := s.service.Issue(s.ctx(), IssueInput{
			NoteID:        id.NewNoteID(),
			PersonID:      id.NewPersonID(),
			ReferenceID:   id.NewReferenceID(),
			ContributorID: id.NewContributorID(),
			RecipientName: "Aunt June",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("records an issuance audit event", func() {
		p, ref := s.seedReference("June Alvarez")
		s.issue(ref)

		events, err := s.auditStore.ListByPerson(s.ctx(), p.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.ActionClaimIssued), events[0].Action)
	})
}

func (s *ServiceSuite) TestConsume_AppliesChoice() {
	s.Run("full_name approves person, reference, and preference", func() {
		p, ref := s.seedReference("June Alvarez")
		issued := s.issue(ref)

		result, err := s.service.Consume(s.ctx(), rawTokenFrom(issued.ClaimURL), claim.ChoiceFullName)
		s.Require().NoError(err)
		s.Equal(p.ID, result.PersonID)
		s.Equal(id.VisibilityApproved, result.VisibilityApplied)

		stored, err := s.persons.FindPerson(s.ctx(), p.ID)
		s.Require().NoError(err)
		s.True(stored.Claimed)
		s.Equal(id.VisibilityApproved, stored.Visibility)

		storedRef, err := s.persons.FindReference(s.ctx(), ref.ID)
		s.Require().NoError(err)
		s.Equal(id.VisibilityApproved, storedRef.Visibility)

		pref, err := s.persons.ActivePreference(s.ctx(), p.ID, nil)
		s.Require().NoError(err)
		s.Equal(id.VisibilityApproved, pref.Visibility)
		s.Equal(int64(1), pref.Version)
	})

	s.Run("hidden blurs the reference and sets a blurred preference", func() {
		p, ref := s.seedReference("June Alvarez")
		issued := s.issue(ref)

		result, err := s.service.Consume(s.ctx(), rawTokenFrom(issued.ClaimURL), claim.ChoiceHidden)
		s.Require().NoError(err)
		s.Equal(id.VisibilityBlurred, result.VisibilityApplied)

		pref, err := s.persons.ActivePreference(s.ctx(), p.ID, nil)
		s.Require().NoError(err)
		s.Equal(id.VisibilityBlurred, pref.Visibility)
		s.False(pref.InitialsOnly)
	})

	s.Run("initials_only blurs with the initials variant", func() {
		p, ref := s.seedReference("June Alvarez")
		issued := s.issue(ref)

		result, err := s.service.Consume(s.ctx(), rawTokenFrom(issued.ClaimURL), claim.ChoiceInitials)
		s.Require().NoError(err)
		s.True(result.InitialsOnly)

		pref, err := s.persons.ActivePreference(s.ctx(), p.ID, nil)
		s.Require().NoError(err)
		s.True(pref.InitialsOnly)
	})

	s.Run("remove soft-deletes the reference while the preference stays blurred", func() {
		p, ref := s.seedReference("June Alvarez")
		issued := s.issue(ref)

		result, err := s.service.Consume(s.ctx(), rawTokenFrom(issued.ClaimURL), claim.ChoiceRemove)
		s.Require().NoError(err)
		s.Equal(id.VisibilityRemoved, result.VisibilityApplied)

		storedRef, err := s.persons.FindReference(s.ctx(), ref.ID)
		s.Require().NoError(err)
		s.Equal(id.VisibilityRemoved, storedRef.Visibility)

		pref, err := s.persons.ActivePreference(s.ctx(), p.ID, nil)
		s.Require().NoError(err)
		s.Equal(id.VisibilityBlurred, pref.Visibility)
	})
}

func (s *ServiceSuite) TestConsume_SingleUse() {
	_, ref := s.seedReference("June Alvarez")
	issued := s.issue(ref)
	raw := rawTokenFrom(issued.ClaimURL)

	_, err := s.service.Consume(s.ctx(), raw, claim.ChoiceFullName)
	s.Require().NoError(err)

	_, err = s.service.Consume(s.ctx(), raw, claim.ChoiceFullName)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))
}

func (s *ServiceSuite) TestConsume_ConcurrentExactlyOneWins() {
	_, ref := s.seedReference("June Alvarez")
	issued := s.issue(ref)
	raw := rawTokenFrom(issued.ClaimURL)

	const attempts = 16
	var wg sync.WaitGroup
	successes := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.service.Consume(s.ctx(), raw, claim.ChoiceFullName); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	s.Equal(1, count)
}

func (s *ServiceSuite) TestConsume_FailuresAreIndistinguishable() {
	_, ref := s.seedReference("June Alvarez")
	issued := s.issue(ref)
	raw := rawTokenFrom(issued.ClaimURL)
	_, err := s.service.Consume(s.ctx(), raw, claim.ChoiceFullName)
	s.Require().NoError(err)

	cases := map[string]func() error{
		"unknown token": func() error {
			_, err := s.service.Consume(s.ctx(), "not-a-token", claim.ChoiceFullName)
			return err
		},
		"replayed token": func() error {
			_, err := s.service.Consume(s.ctx(), raw, claim.ChoiceFullName)
			return err
		},
		"invalid choice": func() error {
			_, err := s.service.Consume(s.ctx(), raw, claim.Choice("shout"))
			return err
		},
	}

	var messages []string
	for name, fn := range cases {
		err := fn()
		s.Require().Error(err, name)
		s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid), name)
		messages = append(messages, dErrors.Message(err))
	}
	for _, msg := range messages {
		s.Equal(messages[0], msg)
	}
}

func (s *ServiceSuite) TestConsume_ExpiredToken() {
	_, ref := s.seedReference("June Alvarez")
	issued := s.issue(ref)
	raw := rawTokenFrom(issued.ClaimURL)

	late := requestcontext.WithTime(context.Background(), s.now.Add(15*24*time.Hour))
	_, err := s.service.Consume(late, raw, claim.ChoiceFullName)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))

	// The reference is untouched.
	storedRef, err := s.persons.FindReference(s.ctx(), ref.ID)
	s.Require().NoError(err)
	s.Equal(id.VisibilityPending, storedRef.Visibility)
}

func (s *ServiceSuite) TestConsume_RejectionIsAudited() {
	_, err := s.service.Consume(s.ctx(), "not-a-token", claim.ChoiceFullName)
	s.Require().Error(err)

	events, err := s.auditStore.ListByPerson(s.ctx(), id.PersonID{})
	s.Require().NoError(err)
	s.Require().NotEmpty(events)
	s.Equal(string(audit.ActionClaimRejected), events[len(events)-1].Action)
	s.Equal("unknown token", events[len(events)-1].Reason)
}

func (s *ServiceSuite) TestConsume_LaterChoiceSupersedes() {
	p, ref := s.seedReference("June Alvarez")

	first := s.issue(ref)
	_, err := s.service.Consume(s.ctx(), rawTokenFrom(first.ClaimURL), claim.ChoiceFullName)
	s.Require().NoError(err)

	second := s.issue(ref)
	_, err = s.service.Consume(s.ctx(), rawTokenFrom(second.ClaimURL), claim.ChoiceHidden)
	s.Require().NoError(err)

	pref, err := s.persons.ActivePreference(s.ctx(), p.ID, nil)
	s.Require().NoError(err)
	s.Equal(id.VisibilityBlurred, pref.Visibility)
	s.Equal(int64(2), pref.Version)
}

// failingPersonStore wraps the memory store and fails preference writes, to
// verify the whole consumption rolls up into the generic error.
type failingPersonStore struct {
	*person.InMemoryStore
}

func (f *failingPersonStore) UpsertPreference(context.Context, *person.VisibilityPreference) error {
	return errors.New("disk on fire")
}

func TestConsume_StoreFailureYieldsGenericError(t *testing.T) {
	tokens := claim.NewInMemoryStore()
	persons := person.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(
		tokens,
		&failingPersonStore{InMemoryStore: persons},
		NewMemoryBoundary(),
		audit.NewPublisher(auditmemory.NewInMemoryStore()),
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
		"https://hearth.example",
		time.Hour,
	)

	now := time.Now()
	ctx := requestcontext.WithTime(context.Background(), now)
	p := &person.Person{ID: id.NewPersonID(), CanonicalName: "June Alvarez", Visibility: id.VisibilityPending}
	require.NoError(t, persons.CreatePerson(ctx, p))
	ref := &person.PersonReference{
		ID: id.NewReferenceID(), NoteID: id.NewNoteID(), PersonID: p.ID,
		Role: person.RoleWitness, Visibility: id.VisibilityPending,
	}
	require.NoError(t, persons.CreateReference(ctx, ref))

	issued, err := svc.Issue(ctx, IssueInput{
		NoteID: ref.NoteID, PersonID: p.ID, ReferenceID: ref.ID,
		ContributorID: id.NewContributorID(), RecipientName: "Aunt June",
	})
	require.NoError(t, err)

	_, err = svc.Consume(ctx, rawTokenFrom(issued.ClaimURL), claim.ChoiceFullName)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeTokenInvalid))
	require.Equal(t, "invalid or expired token", dErrors.Message(err))
}
