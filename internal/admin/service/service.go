// Package service implements the moderation surface: direct visibility
// overrides that bypass the claim flow, available to administrators only.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"hearth/internal/person"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/audit"
	"hearth/pkg/platform/sentinel"
	"hearth/pkg/requestcontext"
)

// PersonStore is the slice of the person store moderation needs.
type PersonStore interface {
	FindPerson(ctx context.Context, personID id.PersonID) (*person.Person, error)
	UpdatePersonVisibility(ctx context.Context, personID id.PersonID, v id.Visibility, claimed bool, now time.Time) error
	FindReference(ctx context.Context, refID id.ReferenceID) (*person.PersonReference, error)
	UpdateReferenceVisibility(ctx context.Context, refID id.ReferenceID, v id.Visibility, now time.Time) error
	ActivePreference(ctx context.Context, personID id.PersonID, contributorID *id.ContributorID) (*person.VisibilityPreference, error)
	UpsertPreference(ctx context.Context, pref *person.VisibilityPreference) error
}

// Auditor receives the override trail. Every override is written down; an
// unaudited override must not happen.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Boundary interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type Service struct {
	persons  PersonStore
	boundary Boundary
	auditor  Auditor
	trail    audit.Store
	logger   *slog.Logger
}

func NewService(persons PersonStore, boundary Boundary, auditor Auditor, trail audit.Store, logger *slog.Logger) *Service {
	return &Service{persons: persons, boundary: boundary, auditor: auditor, trail: trail, logger: logger}
}

// OverrideInput names the new state and the operator's reason. The reason is
// mandatory; it is the only record of why the override happened.
type OverrideInput struct {
	Visibility id.Visibility
	Reason     string
}

func (in OverrideInput) validate() error {
	if !in.Visibility.Valid() {
		return dErrors.New(dErrors.CodeBadRequest, "unknown visibility state: "+string(in.Visibility))
	}
	if in.Reason == "" {
		return dErrors.New(dErrors.CodeBadRequest, "an override requires a reason")
	}
	return nil
}

// OverrideReference forces one reference into the given state without
// touching the person's default or their preference.
func (s *Service) OverrideReference(ctx context.Context, refID id.ReferenceID, in OverrideInput) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}
	if err := in.validate(); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	err := s.boundary.RunInTx(ctx, refID.String(), func(ctx context.Context) error {
		ref, err := s.persons.FindReference(ctx, refID)
		if err != nil {
			return err
		}
		if err := s.persons.UpdateReferenceVisibility(ctx, refID, in.Visibility, now); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			Timestamp:   now,
			Action:      string(audit.ActionVisibilityOverridden),
			PersonID:    ref.PersonID,
			ReferenceID: refID,
			NoteID:      ref.NoteID,
			ActorID:     "admin",
			Decision:    string(in.Visibility),
			Reason:      in.Reason,
			RequestID:   requestcontext.RequestID(ctx),
		})
	})
	if err != nil {
		return s.translate(err, "reference not found")
	}

	s.logger.Info("reference visibility overridden",
		"reference_id", refID.String(),
		"visibility", string(in.Visibility),
		"request_id", requestcontext.RequestID(ctx))
	return nil
}

// OverridePerson forces a person's default visibility and records it as a
// versioned global preference, so the override participates in the same
// last-write-wins ordering a later claim does.
func (s *Service) OverridePerson(ctx context.Context, personID id.PersonID, in OverrideInput) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}
	if err := in.validate(); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	err := s.boundary.RunInTx(ctx, personID.String(), func(ctx context.Context) error {
		if _, err := s.persons.FindPerson(ctx, personID); err != nil {
			return err
		}
		if err := s.persons.UpdatePersonVisibility(ctx, personID, in.Visibility, false, now); err != nil {
			return err
		}
		pref := &person.VisibilityPreference{
			PersonID:   personID,
			Visibility: in.Visibility,
			UpdatedAt:  now,
		}
		if err := s.writePreference(ctx, pref); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			Timestamp: now,
			Action:    string(audit.ActionVisibilityOverridden),
			PersonID:  personID,
			ActorID:   "admin",
			Decision:  string(in.Visibility),
			Reason:    in.Reason,
			RequestID: requestcontext.RequestID(ctx),
		})
	})
	if err != nil {
		return s.translate(err, "person not found")
	}

	s.logger.Info("person visibility overridden",
		"person_id", personID.String(),
		"visibility", string(in.Visibility),
		"request_id", requestcontext.RequestID(ctx))
	return nil
}

// AuditTrail returns the recorded events for one person, oldest first.
func (s *Service) AuditTrail(ctx context.Context, personID id.PersonID) ([]audit.Event, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	events, err := s.trail.ListByPerson(ctx, personID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	return events, nil
}

func (s *Service) authorize(ctx context.Context) error {
	if !requestcontext.IsAdmin(ctx) {
		return dErrors.New(dErrors.CodeForbidden, "overrides require an admin session")
	}
	return nil
}

// writePreference is the same version compare-and-set the claim flow uses:
// read the current global preference, write version+1, retry once.
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
	return dErrors.New(dErrors.CodeConflict, "preference write lost the version race twice")
}

func (s *Service) translate(err error, notFoundMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	if code := dErrors.CodeOf(err); code != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "override failed")
}
