package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLibraryType(t *testing.T) {
	lt, err := ParseLibraryType("group")
	require.NoError(t, err)
	assert.Equal(t, LibraryGroup, lt)

	_, err = ParseLibraryType("users")
	assert.Error(t, err)
}

func TestScope_String(t *testing.T) {
	assert.Equal(t, "user/42", NewScope(LibraryUser, "42").String())
	assert.Equal(t, Scope{Type: LibraryGroup, ID: "7"}, Library{ID: "7", Type: LibraryGroup, Name: "Lab"}.Scope())
}

func TestSnapshot_MergeAndCounts(t *testing.T) {
	user := NewScope(LibraryUser, "1")
	group := NewScope(LibraryGroup, "2")

	var snap Snapshot
	snap.Merge(Snapshot{
		Collections: []Collection{{Scope: user, ID: "C1", Name: "Reading"}},
		Items:       []Item{{Scope: user, ID: "I1", Title: "Paper"}},
	})
	snap.Merge(Snapshot{
		Items:       []Item{{Scope: group, ID: "I2"}},
		Memberships: []Membership{{Scope: group, ItemID: "I2", CollectionID: "C9"}},
	})

	assert.Equal(t, Counts{Collections: 1, Items: 2, Memberships: 1}, snap.Counts())
}
