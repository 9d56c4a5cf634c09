package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zotairo/zotairo-server/internal/cache"
	"github.com/zotairo/zotairo-server/internal/domain"
	"github.com/zotairo/zotairo-server/internal/store/sqldb"
	"github.com/zotairo/zotairo-server/internal/zotero"
)

var (
	userScope  = domain.NewScope(domain.LibraryUser, "1001")
	groupScope = domain.NewScope(domain.LibraryGroup, "77")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeZotero serves canned libraries. Maps are keyed by scope.String()+"/"+key
// where a key applies; fail forces a method to error.
type fakeZotero struct {
	mu sync.Mutex

	groups          []zotero.Group
	collections     map[string][]zotero.Collection
	subcollections  map[string][]zotero.Collection
	topItems        map[string][]zotero.Item
	collectionItems map[string][]zotero.Item
	attachments     map[string][]zotero.Item
	items           map[string]zotero.Item
	children        map[string][]zotero.Item
	files           map[string][]byte

	fail  map[string]error
	calls map[string]int
}

func newFakeZotero() *fakeZotero {
	return &fakeZotero{
		collections:     make(map[string][]zotero.Collection),
		subcollections:  make(map[string][]zotero.Collection),
		topItems:        make(map[string][]zotero.Item),
		collectionItems: make(map[string][]zotero.Item),
		attachments:     make(map[string][]zotero.Item),
		items:           make(map[string]zotero.Item),
		children:        make(map[string][]zotero.Item),
		files:           make(map[string][]byte),
		fail:            make(map[string]error),
		calls:           make(map[string]int),
	}
}

func k(scope domain.Scope, key string) string {
	return scope.String() + "/" + key
}

var errFakeNotFound = &zotero.Error{Op: "fake", Err: zotero.ErrNotFound}

func (f *fakeZotero) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	return f.fail[method]
}

func (f *fakeZotero) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeZotero) setFail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = err
}

func (f *fakeZotero) UserScope() domain.Scope { return userScope }

func (f *fakeZotero) ListGroups(context.Context) ([]zotero.Group, error) {
	if err := f.record("ListGroups"); err != nil {
		return nil, err
	}
	return f.groups, nil
}

func (f *fakeZotero) ListCollections(_ context.Context, scope domain.Scope) ([]zotero.Collection, error) {
	if err := f.record("ListCollections"); err != nil {
		return nil, err
	}
	return append([]zotero.Collection(nil), f.collections[scope.String()]...), nil
}

func (f *fakeZotero) ListSubcollections(_ context.Context, scope domain.Scope, key string) ([]zotero.Collection, error) {
	if err := f.record("ListSubcollections"); err != nil {
		return nil, err
	}
	return append([]zotero.Collection(nil), f.subcollections[k(scope, key)]...), nil
}

func (f *fakeZotero) ListTopItems(_ context.Context, scope domain.Scope, _ string) ([]zotero.Item, error) {
	if err := f.record("ListTopItems"); err != nil {
		return nil, err
	}
	return f.topItems[scope.String()], nil
}

func (f *fakeZotero) ListCollectionItems(_ context.Context, scope domain.Scope, key, _ string) ([]zotero.Item, error) {
	if err := f.record("ListCollectionItems"); err != nil {
		return nil, err
	}
	return f.collectionItems[k(scope, key)], nil
}

func (f *fakeZotero) ListItemsByType(_ context.Context, scope domain.Scope, _ string) ([]zotero.Item, error) {
	if err := f.record("ListItemsByType"); err != nil {
		return nil, err
	}
	return f.attachments[scope.String()], nil
}

func (f *fakeZotero) GetItem(_ context.Context, scope domain.Scope, key string) (*zotero.Item, error) {
	if err := f.record("GetItem"); err != nil {
		return nil, err
	}
	it, ok := f.items[k(scope, key)]
	if !ok {
		return nil, errFakeNotFound
	}
	return &it, nil
}

func (f *fakeZotero) ListChildren(_ context.Context, scope domain.Scope, key string) ([]zotero.Item, error) {
	if err := f.record("ListChildren"); err != nil {
		return nil, err
	}
	return f.children[k(scope, key)], nil
}

func (f *fakeZotero) DownloadFile(_ context.Context, scope domain.Scope, key string, w io.Writer) (int64, error) {
	if err := f.record("DownloadFile"); err != nil {
		return 0, err
	}
	data, ok := f.files[k(scope, key)]
	if !ok {
		return 0, errFakeNotFound
	}
	n, err := w.Write(data)
	return int64(n), err
}

var _ ZoteroAPI = (*fakeZotero)(nil)

func article(key, title string, collections ...string) zotero.Item {
	return zotero.Item{
		Key: key,
		Data: zotero.ItemData{
			Key:         key,
			ItemType:    "journalArticle",
			Title:       title,
			Date:        "2017",
			Collections: collections,
			Creators:    []zotero.Creator{{CreatorType: "author", FirstName: "Ada", LastName: "Lovelace"}},
			Tags:        []zotero.Tag{{Tag: "ml"}},
		},
	}
}

func attachment(key, parent, filename, contentType string) zotero.Item {
	return zotero.Item{
		Key: key,
		Data: zotero.ItemData{
			Key:         key,
			ItemType:    zotero.ItemTypeAttachment,
			ParentItem:  parent,
			Filename:    filename,
			ContentType: contentType,
		},
	}
}

func collection(key, name, parent string) zotero.Collection {
	return zotero.Collection{Key: key, Data: zotero.CollectionData{Key: key, Name: name, ParentCollection: zotero.ParentRef(parent)}}
}

func newTestStore(t *testing.T) *sqldb.Store {
	t.Helper()
	s, err := sqldb.Open(sqldb.DriverSQLite, filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestCache(t *testing.T) *cache.FileCache {
	t.Helper()
	fc, err := cache.New(filepath.Join(t.TempDir(), "cache"), testLogger())
	require.NoError(t, err)
	return fc
}

var errUpstream = errors.New("upstream down")
