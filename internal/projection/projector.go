// Package projection transforms raw reference rows into viewer-safe
// RedactedReference values. It is the single conversion point between the
// storage shape and anything that leaves the boundary; no other code may
// build a RedactedReference from raw rows.
package projection

import (
	"hearth/internal/person"
	"hearth/internal/visibility"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
)

// Project converts raw rows into redacted references for one viewer.
//
// Guarantees:
//   - the output never contains a removed reference;
//   - it performs no writes and no I/O (persons and preferences are
//     already-fetched rows, never fetched per reference);
//   - for the same input and viewer the output is identical, in input order.
//
// A removed reference that would survive projection is a privacy bug and
// raises CodeInvariantViolation instead of being rendered.
func Project(refs []*person.PersonReference, persons []*person.Person, prefs []*person.VisibilityPreference, viewer Viewer) ([]RedactedReference, error) {
	personsByID := make(map[id.PersonID]*person.Person, len(persons))
	for _, p := range persons {
		personsByID[p.ID] = p
	}
	prefIndex := indexPreferences(prefs)

	out := make([]RedactedReference, 0, len(refs))
	for _, ref := range refs {
		pref := prefIndex.forViewer(ref.PersonID, viewer.ContributorID)
		state := visibility.IdentityState(ref, pref)
		if state == id.VisibilityRemoved {
			continue
		}

		label, err := visibility.RenderLabel(state, personsByID[ref.PersonID], ref, pref, viewer.IsOwner)
		if err != nil {
			return nil, err
		}

		redacted := RedactedReference{
			ID:          ref.ID,
			Type:        "person",
			Visibility:  state,
			RenderLabel: label,
			Note:        ref.Note,
			Role:        ref.Role,
		}
		if visibility.RelationshipVisible(state) && ref.RelationshipToSubject != "" {
			rel := ref.RelationshipToSubject
			redacted.RelationshipToSubject = &rel
		}
		if viewer.IsOwner {
			redacted.AuthorPayload = &AuthorPayload{AuthorLabel: ref.AuthorLabel}
		}
		out = append(out, redacted)
	}

	if err := checkProjected(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Compare produces the owner and public projections of one reference set in
// a single call, for internal QA only. The public slice is re-checked so the
// owner payload cannot leak through it.
func Compare(refs []*person.PersonReference, persons []*person.Person, prefs []*person.VisibilityPreference, owner Viewer) (*CompareResult, error) {
	if !owner.IsOwner {
		return nil, dErrors.New(dErrors.CodeBadRequest, "compare requires the owner viewer")
	}
	ownerOut, err := Project(refs, persons, prefs, owner)
	if err != nil {
		return nil, err
	}
	publicOut, err := Project(refs, persons, prefs, Viewer{IsOwner: false})
	if err != nil {
		return nil, err
	}
	for i := range publicOut {
		if publicOut[i].AuthorPayload != nil {
			return nil, dErrors.New(dErrors.CodeInvariantViolation,
				"author payload leaked into public projection for reference "+publicOut[i].ID.String())
		}
	}
	return &CompareResult{Owner: ownerOut, Public: publicOut}, nil
}

// checkProjected is the loud invariant gate: a removed reference present in
// projector output indicates a privacy-leak bug, never a user error.
func checkProjected(out []RedactedReference) error {
	for i := range out {
		if out[i].Visibility == id.VisibilityRemoved {
			return dErrors.New(dErrors.CodeInvariantViolation,
				"removed reference "+out[i].ID.String()+" present in projector output")
		}
		if out[i].RelationshipToSubject != nil && out[i].Visibility != id.VisibilityApproved {
			return dErrors.New(dErrors.CodeInvariantViolation,
				"relationship visible on non-approved reference "+out[i].ID.String())
		}
	}
	return nil
}

// preferenceIndex resolves which preference applies to a viewer: a
// contributor-scoped row beats the global one.
type preferenceIndex struct {
	global map[id.PersonID]*person.VisibilityPreference
	scoped map[id.PersonID]map[id.ContributorID]*person.VisibilityPreference
}

func indexPreferences(prefs []*person.VisibilityPreference) preferenceIndex {
	idx := preferenceIndex{
		global: make(map[id.PersonID]*person.VisibilityPreference),
		scoped: make(map[id.PersonID]map[id.ContributorID]*person.VisibilityPreference),
	}
	for _, pref := range prefs {
		if pref.Global() {
			if current, ok := idx.global[pref.PersonID]; !ok || pref.Version > current.Version {
				idx.global[pref.PersonID] = pref
			}
			continue
		}
		byScope, ok := idx.scoped[pref.PersonID]
		if !ok {
			byScope = make(map[id.ContributorID]*person.VisibilityPreference)
			idx.scoped[pref.PersonID] = byScope
		}
		if current, ok := byScope[*pref.ContributorID]; !ok || pref.Version > current.Version {
			byScope[*pref.ContributorID] = pref
		}
	}
	return idx
}

func (idx preferenceIndex) forViewer(personID id.PersonID, contributorID *id.ContributorID) *person.VisibilityPreference {
	if contributorID != nil {
		if pref, ok := idx.scoped[personID][*contributorID]; ok {
			return pref
		}
	}
	return idx.global[personID]
}
