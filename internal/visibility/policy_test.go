package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearth/internal/person"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
)

func ref(v id.Visibility) *person.PersonReference {
	return &person.PersonReference{
		ID:          id.NewReferenceID(),
		Visibility:  v,
		AuthorLabel: "Bobby (my cousin)",
	}
}

func pref(v id.Visibility) *person.VisibilityPreference {
	return &person.VisibilityPreference{Visibility: v, Version: 1}
}

var bob = &person.Person{ID: id.NewPersonID(), CanonicalName: "Bob Jones"}

func TestIdentityState_Precedence(t *testing.T) {
	tests := []struct {
		name string
		ref  *person.PersonReference
		pref *person.VisibilityPreference
		want id.Visibility
	}{
		{"removed is terminal even with approving preference", ref(id.VisibilityRemoved), pref(id.VisibilityApproved), id.VisibilityRemoved},
		{"preference beats stored default", ref(id.VisibilityPending), pref(id.VisibilityApproved), id.VisibilityApproved},
		{"preference can restrict an approved reference", ref(id.VisibilityApproved), pref(id.VisibilityBlurred), id.VisibilityBlurred},
		{"stored visibility when no preference", ref(id.VisibilityBlurred), nil, id.VisibilityBlurred},
		{"absent signal falls back to pending", ref(""), nil, id.VisibilityPending},
		{"invalid preference value is ignored", ref(id.VisibilityApproved), pref("garbage"), id.VisibilityApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IdentityState(tt.ref, tt.pref))
		})
	}
}

func TestRenderLabel_OwnerAlwaysSeesAuthorLabel(t *testing.T) {
	for _, state := range []id.Visibility{id.VisibilityPending, id.VisibilityApproved, id.VisibilityBlurred} {
		r := ref(state)
		label, err := RenderLabel(state, bob, r, nil, true)
		require.NoError(t, err)
		assert.Equal(t, r.AuthorLabel, label, "owner label must be author payload in state %s", state)
	}
}

func TestRenderLabel_PublicViewer(t *testing.T) {
	t.Run("approved shows canonical name", func(t *testing.T) {
		label, err := RenderLabel(id.VisibilityApproved, bob, ref(id.VisibilityApproved), nil, false)
		require.NoError(t, err)
		assert.Equal(t, "Bob Jones", label)
	})

	t.Run("pending shows placeholder", func(t *testing.T) {
		label, err := RenderLabel(id.VisibilityPending, bob, ref(id.VisibilityPending), nil, false)
		require.NoError(t, err)
		assert.Equal(t, Placeholder, label)
	})

	t.Run("blurred shows placeholder by default", func(t *testing.T) {
		label, err := RenderLabel(id.VisibilityBlurred, bob, ref(id.VisibilityBlurred), pref(id.VisibilityBlurred), false)
		require.NoError(t, err)
		assert.Equal(t, Placeholder, label)
	})

	t.Run("blurred with initials opt-in shows initials", func(t *testing.T) {
		p := pref(id.VisibilityBlurred)
		p.InitialsOnly = true
		label, err := RenderLabel(id.VisibilityBlurred, bob, ref(id.VisibilityBlurred), p, false)
		require.NoError(t, err)
		assert.Equal(t, "B. J.", label)
	})

	t.Run("approved with missing person still redacts", func(t *testing.T) {
		label, err := RenderLabel(id.VisibilityApproved, nil, ref(id.VisibilityApproved), nil, false)
		require.NoError(t, err)
		assert.Equal(t, Placeholder, label)
	})
}

func TestRenderLabel_RemovedIsInvariantViolation(t *testing.T) {
	_, err := RenderLabel(id.VisibilityRemoved, bob, ref(id.VisibilityRemoved), nil, false)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	// The owner bypass does not extend to removed references either.
	_, err = RenderLabel(id.VisibilityRemoved, bob, ref(id.VisibilityRemoved), nil, true)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestRelationshipVisible(t *testing.T) {
	assert.True(t, RelationshipVisible(id.VisibilityApproved))
	assert.False(t, RelationshipVisible(id.VisibilityPending))
	assert.False(t, RelationshipVisible(id.VisibilityBlurred))
	assert.False(t, RelationshipVisible(id.VisibilityRemoved))
}
