package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearth/internal/person"
	"hearth/internal/visibility"
	id "hearth/pkg/domain"
)

func buildFixture() (refs []*person.PersonReference, persons []*person.Person) {
	bob := &person.Person{ID: id.NewPersonID(), CanonicalName: "Bob Jones"}
	ana := &person.Person{ID: id.NewPersonID(), CanonicalName: "Ana Silva"}
	noteID := id.NewNoteID()

	refs = []*person.PersonReference{
		{
			ID: id.NewReferenceID(), NoteID: noteID, PersonID: bob.ID,
			Role: person.RoleWitness, RelationshipToSubject: "cousin",
			Visibility: id.VisibilityPending, AuthorLabel: "Bobby",
		},
		{
			ID: id.NewReferenceID(), NoteID: noteID, PersonID: ana.ID,
			Role: person.RoleHeardFrom, RelationshipToSubject: "neighbor",
			Visibility: id.VisibilityApproved, AuthorLabel: "Ana from next door",
		},
		{
			ID: id.NewReferenceID(), NoteID: noteID, PersonID: ana.ID,
			Role: person.RoleRelated, Visibility: id.VisibilityRemoved,
			AuthorLabel: "Ana again",
		},
	}
	return refs, []*person.Person{bob, ana}
}

func TestProject_RemovedNeverEscapes(t *testing.T) {
	refs, persons := buildFixture()

	for _, viewer := range []Viewer{{IsOwner: true}, {IsOwner: false}} {
		out, err := Project(refs, persons, nil, viewer)
		require.NoError(t, err)
		require.Len(t, out, 2, "removed reference must be dropped for every viewer")
		for _, r := range out {
			assert.NotEqual(t, id.VisibilityRemoved, r.Visibility)
		}
	}
}

func TestProject_PublicViewer(t *testing.T) {
	refs, persons := buildFixture()

	out, err := Project(refs, persons, nil, Viewer{IsOwner: false})
	require.NoError(t, err)
	require.Len(t, out, 2)

	pending := out[0]
	assert.Equal(t, visibility.Placeholder, pending.RenderLabel)
	assert.Nil(t, pending.RelationshipToSubject, "pending relationship must be nulled")
	assert.Nil(t, pending.AuthorPayload)

	approved := out[1]
	assert.Equal(t, "Ana Silva", approved.RenderLabel)
	require.NotNil(t, approved.RelationshipToSubject)
	assert.Equal(t, "neighbor", *approved.RelationshipToSubject)
	assert.Nil(t, approved.AuthorPayload)
}

func TestProject_OwnerSeesAuthorPayload(t *testing.T) {
	refs, persons := buildFixture()

	out, err := Project(refs, persons, nil, Viewer{IsOwner: true})
	require.NoError(t, err)
	require.Len(t, out, 2)

	for _, r := range out {
		require.NotNil(t, r.AuthorPayload)
		assert.Equal(t, r.AuthorPayload.AuthorLabel, r.RenderLabel,
			"owner render label must equal the author payload regardless of state")
	}
}

func TestProject_PreferenceChangesPublicRendering(t *testing.T) {
	refs, persons := buildFixture()
	bobID := refs[0].PersonID

	// Scenario B: Bob claims and chooses full-name disclosure.
	prefs := []*person.VisibilityPreference{
		{PersonID: bobID, Visibility: id.VisibilityApproved, Version: 1},
	}

	out, err := Project(refs, persons, prefs, Viewer{IsOwner: false})
	require.NoError(t, err)
	assert.Equal(t, "Bob Jones", out[0].RenderLabel)
	require.NotNil(t, out[0].RelationshipToSubject)
	assert.Equal(t, "cousin", *out[0].RelationshipToSubject)
}

func TestProject_ScopedPreferenceBeatsGlobal(t *testing.T) {
	refs, persons := buildFixture()
	bobID := refs[0].PersonID
	trusted := id.NewContributorID()

	prefs := []*person.VisibilityPreference{
		{PersonID: bobID, Visibility: id.VisibilityBlurred, Version: 2},
		{PersonID: bobID, ContributorID: &trusted, Visibility: id.VisibilityApproved, Version: 1},
	}

	trustedOut, err := Project(refs, persons, prefs, Viewer{IsOwner: false, ContributorID: &trusted})
	require.NoError(t, err)
	assert.Equal(t, "Bob Jones", trustedOut[0].RenderLabel)

	publicOut, err := Project(refs, persons, prefs, Viewer{IsOwner: false})
	require.NoError(t, err)
	assert.Equal(t, visibility.Placeholder, publicOut[0].RenderLabel)
}

func TestProject_HighestVersionGlobalPreferenceWins(t *testing.T) {
	refs, persons := buildFixture()
	bobID := refs[0].PersonID

	prefs := []*person.VisibilityPreference{
		{PersonID: bobID, Visibility: id.VisibilityApproved, Version: 1},
		{PersonID: bobID, Visibility: id.VisibilityBlurred, Version: 3},
		{PersonID: bobID, Visibility: id.VisibilityApproved, Version: 2},
	}

	out, err := Project(refs, persons, prefs, Viewer{IsOwner: false})
	require.NoError(t, err)
	assert.Equal(t, visibility.Placeholder, out[0].RenderLabel)
}

func TestProject_InitialsVariant(t *testing.T) {
	refs, persons := buildFixture()
	bobID := refs[0].PersonID

	prefs := []*person.VisibilityPreference{
		{PersonID: bobID, Visibility: id.VisibilityBlurred, InitialsOnly: true, Version: 1},
	}

	out, err := Project(refs, persons, prefs, Viewer{IsOwner: false})
	require.NoError(t, err)
	assert.Equal(t, "B. J.", out[0].RenderLabel)
}

func TestProject_Deterministic(t *testing.T) {
	refs, persons := buildFixture()
	viewer := Viewer{IsOwner: false}

	first, err := Project(refs, persons, nil, viewer)
	require.NoError(t, err)
	second, err := Project(refs, persons, nil, viewer)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// Scenario E: owner and public projections for the same blurred reference in
// one response cycle, with no cross-leak.
func TestCompare_DevMode(t *testing.T) {
	refs, persons := buildFixture()
	bobID := refs[0].PersonID
	prefs := []*person.VisibilityPreference{
		{PersonID: bobID, Visibility: id.VisibilityBlurred, Version: 1},
	}

	result, err := Compare(refs, persons, prefs, Viewer{IsOwner: true})
	require.NoError(t, err)

	assert.Equal(t, "Bobby", result.Owner[0].RenderLabel)
	assert.Equal(t, visibility.Placeholder, result.Public[0].RenderLabel)
	for _, r := range result.Public {
		assert.Nil(t, r.AuthorPayload, "owner payload must not leak into the public channel")
	}
}

func TestCompare_RequiresOwnerViewer(t *testing.T) {
	refs, persons := buildFixture()
	_, err := Compare(refs, persons, nil, Viewer{IsOwner: false})
	require.Error(t, err)
}
