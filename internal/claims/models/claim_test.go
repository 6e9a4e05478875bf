package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vitae/pkg/domain"
	dErrors "vitae/pkg/domain-errors"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input   string
		want    Category
		wantErr bool
	}{
		{"work_history", CategoryWorkHistory, false},
		{"work-history", CategoryWorkHistory, false},
		{"Education", CategoryEducation, false},
		{"expertise", CategoryExpertise, false},
		{"good-deed", CategoryGoodDeed, false},
		{"intellectual-property", CategoryIntellectualProperty, false},
		{"", CategoryUnknown, true},
		{"unknown", CategoryUnknown, true},
		{"work history", CategoryUnknown, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			got, err := ParseCategory(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategories_ResumeOrder(t *testing.T) {
	assert.Equal(t, []Category{
		CategoryWorkHistory,
		CategoryEducation,
		CategoryExpertise,
		CategoryGoodDeed,
		CategoryIntellectualProperty,
	}, Categories())
}

func TestCategory_Derived(t *testing.T) {
	for _, c := range Categories() {
		if c == CategoryIntellectualProperty {
			assert.False(t, c.Derived())
		} else {
			assert.True(t, c.Derived(), c.String())
		}
	}
	assert.False(t, CategoryUnknown.Derived())
}

func TestNew_SeedsClaimantWithoutCounting(t *testing.T) {
	claimant := id.NewAccountID()
	content := []byte("Built the municipal permit pipeline")
	fp := id.DeriveFingerprint(claimant, content)

	claim := New(CategoryWorkHistory, claimant, content, []byte("https://example.org/ref"), fp)

	assert.Equal(t, []id.AccountID{claimant}, claim.Endorsers)
	assert.Equal(t, uint64(0), claim.EndorserCount, "self-endorsement must not count")
	assert.True(t, claim.Visible)
	assert.True(t, claim.OwnedBy(claimant))
	assert.False(t, claim.IsAbsent())
}

func TestClaim_Endorse(t *testing.T) {
	claimant := id.NewAccountID()
	newClaim := func() Claim {
		content := []byte("content")
		return New(CategoryExpertise, claimant, content, nil, id.DeriveFingerprint(claimant, content))
	}

	t.Run("records third party and increments count", func(t *testing.T) {
		claim := newClaim()
		endorser := id.NewAccountID()

		recorded, err := claim.Endorse(endorser)
		require.NoError(t, err)
		assert.True(t, recorded)
		assert.Equal(t, uint64(1), claim.EndorserCount)
		assert.True(t, claim.HasEndorser(endorser))
	})

	t.Run("rejects repeat endorsement", func(t *testing.T) {
		claim := newClaim()
		endorser := id.NewAccountID()

		_, err := claim.Endorse(endorser)
		require.NoError(t, err)

		_, err = claim.Endorse(endorser)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateEndorsement))
		assert.Equal(t, uint64(1), claim.EndorserCount)
	})

	t.Run("rejects claimant self-endorsement as duplicate", func(t *testing.T) {
		claim := newClaim()

		_, err := claim.Endorse(claimant)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateEndorsement))
	})

	t.Run("full list accepts without recording", func(t *testing.T) {
		claim := newClaim()
		for len(claim.Endorsers) < MaxEndorsers {
			recorded, err := claim.Endorse(id.NewAccountID())
			require.NoError(t, err)
			require.True(t, recorded)
		}
		require.Equal(t, uint64(MaxEndorsers-1), claim.EndorserCount)

		recorded, err := claim.Endorse(id.NewAccountID())
		require.NoError(t, err, "capacity is not an error to the caller")
		assert.False(t, recorded)
		assert.Len(t, claim.Endorsers, MaxEndorsers)
		assert.Equal(t, uint64(MaxEndorsers-1), claim.EndorserCount)
	})
}

func TestAbsent_Sentinel(t *testing.T) {
	sentinel := Absent()

	assert.True(t, sentinel.IsAbsent())
	assert.True(t, sentinel.Visible, "sentinel is visible by default")
	assert.True(t, sentinel.Claimant.IsZero())
	assert.Empty(t, sentinel.Endorsers)
	assert.Equal(t, uint64(0), sentinel.EndorserCount)
}

func TestMatching_UTF8Degradation(t *testing.T) {
	claimant := id.NewAccountID()
	textual := New(CategoryEducation, claimant, []byte("M.Sc. Applied Mathematics, 2016"),
		nil, id.DeriveFingerprint(claimant, []byte("M.Sc. Applied Mathematics, 2016")))
	binary := New(CategoryEducation, claimant, []byte{0xff, 0xfe, 0x01},
		nil, id.DeriveFingerprint(claimant, []byte{0xff, 0xfe, 0x01}))

	t.Run("substring match on decoded content", func(t *testing.T) {
		assert.True(t, textual.Matches("Mathematics"))
		assert.False(t, textual.Matches("Physics"))
	})

	t.Run("match is case sensitive", func(t *testing.T) {
		assert.False(t, textual.Matches("mathematics"))
	})

	t.Run("undecodable content degrades to empty string", func(t *testing.T) {
		assert.Equal(t, "", binary.ContentText())
		assert.False(t, binary.Matches("anything"))
	})

	t.Run("empty query matches every claim", func(t *testing.T) {
		assert.True(t, textual.Matches(""))
		assert.True(t, binary.Matches(""), "empty string contains empty string")
	})

	t.Run("undecodable query degrades to match-all", func(t *testing.T) {
		q := DecodeText([]byte{0xc0, 0x80})
		assert.Equal(t, "", q)
		assert.True(t, textual.Matches(q))
	})
}

func TestAccountActivity(t *testing.T) {
	var activity AccountActivity
	activity.Set(CategoryWorkHistory, 3)
	activity.Set(CategoryGoodDeed, 2)
	activity.Set(CategoryIntellectualProperty, 1)

	assert.Equal(t, 3, activity.WorkHistory)
	assert.Equal(t, 2, activity.GoodDeeds)
	assert.Equal(t, 1, activity.IntellectualProperty)
	assert.Equal(t, 6, activity.Total())
}
