package cache

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zotairo/zotairo-server/internal/domain"
)

type listing struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

func newTestCache(t *testing.T) *FileCache {
	t.Helper()
	c, err := New(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestItemsFileName(t *testing.T) {
	user := domain.NewScope(domain.LibraryUser, "1001")
	group := domain.NewScope(domain.LibraryGroup, "77")

	assert.Equal(t, "items_user_1001.json", ItemsFileName(user, ""))
	assert.Equal(t, "items_group_77_collection_ABCD1234.json", ItemsFileName(group, "ABCD1234"))

	// Deterministic.
	assert.Equal(t, ItemsFileName(group, "K"), ItemsFileName(group, "K"))
}

func TestItemsFileName_NoCollisions(t *testing.T) {
	tests := []struct {
		a, b       domain.Scope
		aKey, bKey string
	}{
		// Without escaping both would be items_user_1_collection_2.json.
		{domain.NewScope(domain.LibraryUser, "1_collection_2"), domain.NewScope(domain.LibraryUser, "1"), "", "2"},
		{domain.NewScope(domain.LibraryUser, "a_b"), domain.NewScope(domain.LibraryUser, "a"), "", ""},
		{domain.NewScope(domain.LibraryUser, "1"), domain.NewScope(domain.LibraryGroup, "1"), "K", "K"},
		{domain.NewScope(domain.LibraryUser, "../x"), domain.NewScope(domain.LibraryUser, "%2E%2E%2Fx"), "", ""},
	}
	for _, tt := range tests {
		a := ItemsFileName(tt.a, tt.aKey)
		b := ItemsFileName(tt.b, tt.bKey)
		assert.NotEqual(t, a, b)
		assert.Equal(t, a, filepath.Base(a), "file name must not contain separators")
	}
}

func TestItems_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	scope := domain.NewScope(domain.LibraryUser, "1001")
	want := []listing{{Key: "A", Title: "First"}, {Key: "B", Title: "Second"}}

	var miss []listing
	assert.False(t, c.Items(scope, "", &miss))

	require.NoError(t, c.PutItems(scope, "", want))

	var got []listing
	require.True(t, c.Items(scope, "", &got))
	assert.Equal(t, want, got)

	// Collection listing is a separate file.
	assert.False(t, c.Items(scope, "COLL", &got))
}

func TestItems_CorruptFileIsAbsent(t *testing.T) {
	c := newTestCache(t)
	scope := domain.NewScope(domain.LibraryGroup, "77")
	require.NoError(t, os.WriteFile(c.ItemsPath(scope, ""), []byte(`[{"key":`), 0o644))

	var got []listing
	assert.False(t, c.Items(scope, "", &got))

	// A rewrite replaces the corrupt file.
	require.NoError(t, c.PutItems(scope, "", []listing{{Key: "Z"}}))
	assert.True(t, c.Items(scope, "", &got))
}

func TestLibraries_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	_, ok := c.Libraries()
	assert.False(t, ok)

	libs := []domain.Library{
		{ID: "1001", Type: domain.LibraryUser, Name: domain.PersonalLibraryName},
		{ID: "77", Type: domain.LibraryGroup, Name: "Lab"},
	}
	require.NoError(t, c.PutLibraries(libs))

	got, ok := c.Libraries()
	require.True(t, ok)
	assert.Equal(t, libs, got)
}

func TestInvalidateItems_KeepsLibraries(t *testing.T) {
	c := newTestCache(t)
	user := domain.NewScope(domain.LibraryUser, "1001")

	require.NoError(t, c.PutLibraries([]domain.Library{{ID: "1001", Type: domain.LibraryUser}}))
	require.NoError(t, c.PutItems(user, "", []listing{}))
	require.NoError(t, c.PutItems(user, "C1", []listing{}))
	require.NoError(t, c.PutItems(domain.NewScope(domain.LibraryGroup, "9"), "", []listing{}))

	n, err := c.InvalidateItems()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, ok := c.Libraries()
	assert.True(t, ok)

	entries, err := os.ReadDir(c.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, librariesFile, entries[0].Name())
}
