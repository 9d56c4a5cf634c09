package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/zotairo/zotairo-server/internal/annotation"
	"github.com/zotairo/zotairo-server/internal/cache"
	"github.com/zotairo/zotairo-server/internal/domain"
	"github.com/zotairo/zotairo-server/internal/llm"
	"github.com/zotairo/zotairo-server/internal/search"
	"github.com/zotairo/zotairo-server/internal/service"
	"github.com/zotairo/zotairo-server/internal/store/sqldb"
	"github.com/zotairo/zotairo-server/internal/validation"
	"github.com/zotairo/zotairo-server/internal/zotero"
)

var userScope = domain.NewScope(domain.LibraryUser, "1001")

// stubZotero serves one personal library from memory.
type stubZotero struct {
	mu sync.Mutex

	collections []zotero.Collection
	subs        map[string][]zotero.Collection
	top         []zotero.Item
	byColl      map[string][]zotero.Item
	attachments []zotero.Item
	items       map[string]zotero.Item
	children    map[string][]zotero.Item
	files       map[string][]byte
	downloads   int
}

func newStubZotero() *stubZotero {
	return &stubZotero{
		subs:     make(map[string][]zotero.Collection),
		byColl:   make(map[string][]zotero.Item),
		items:    make(map[string]zotero.Item),
		children: make(map[string][]zotero.Item),
		files:    make(map[string][]byte),
	}
}

var errStubNotFound = &zotero.Error{Op: "stub", Err: zotero.ErrNotFound}

func (z *stubZotero) UserScope() domain.Scope { return userScope }

func (z *stubZotero) ListGroups(context.Context) ([]zotero.Group, error) { return nil, nil }

func (z *stubZotero) ListCollections(context.Context, domain.Scope) ([]zotero.Collection, error) {
	return append([]zotero.Collection(nil), z.collections...), nil
}

func (z *stubZotero) ListSubcollections(_ context.Context, _ domain.Scope, key string) ([]zotero.Collection, error) {
	return append([]zotero.Collection(nil), z.subs[key]...), nil
}

func (z *stubZotero) ListTopItems(context.Context, domain.Scope, string) ([]zotero.Item, error) {
	return z.top, nil
}

func (z *stubZotero) ListCollectionItems(_ context.Context, _ domain.Scope, key, _ string) ([]zotero.Item, error) {
	return z.byColl[key], nil
}

func (z *stubZotero) ListItemsByType(context.Context, domain.Scope, string) ([]zotero.Item, error) {
	return z.attachments, nil
}

func (z *stubZotero) GetItem(_ context.Context, _ domain.Scope, key string) (*zotero.Item, error) {
	it, ok := z.items[key]
	if !ok {
		return nil, errStubNotFound
	}
	return &it, nil
}

func (z *stubZotero) ListChildren(_ context.Context, _ domain.Scope, key string) ([]zotero.Item, error) {
	return z.children[key], nil
}

func (z *stubZotero) DownloadFile(_ context.Context, _ domain.Scope, key string, w io.Writer) (int64, error) {
	z.mu.Lock()
	z.downloads++
	z.mu.Unlock()
	data, ok := z.files[key]
	if !ok {
		return 0, errStubNotFound
	}
	n, err := w.Write(data)
	return int64(n), err
}

var _ service.ZoteroAPI = (*stubZotero)(nil)

// echoProvider answers every request with the last user turn.
type echoProvider struct{}

func (echoProvider) Name() string            { return "google" }
func (echoProvider) SupportsDocuments() bool { return true }

func (echoProvider) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	return &llm.Response{Text: "echo: " + req.Messages[len(req.Messages)-1].Content}, nil
}

type testServer struct {
	*Server
	api       humatest.TestAPI
	zotero    *stubZotero
	downloads string
}

func article(key, title string, collections ...string) zotero.Item {
	return zotero.Item{
		Key: key,
		Data: zotero.ItemData{
			Key:         key,
			ItemType:    "journalArticle",
			Title:       title,
			Date:        "2017-06-12",
			Collections: collections,
			Creators:    []zotero.Creator{{CreatorType: "author", FirstName: "Ashish", LastName: "Vaswani"}},
		},
	}
}

func pdfAttachment(key, parent, filename string) zotero.Item {
	return zotero.Item{
		Key: key,
		Data: zotero.ItemData{
			Key:         key,
			ItemType:    zotero.ItemTypeAttachment,
			ParentItem:  parent,
			Filename:    filename,
			ContentType: "application/pdf",
		},
	}
}

// seedLibrary builds Root→Child collections, with A in Root, B in Child and P an attachment of A.
func seedLibrary(z *stubZotero) {
	z.collections = []zotero.Collection{
		{Key: "ROOT", Data: zotero.CollectionData{Key: "ROOT", Name: "Root"}},
		{Key: "CHILD", Data: zotero.CollectionData{Key: "CHILD", Name: "child", ParentCollection: "ROOT"}},
	}
	z.subs["ROOT"] = []zotero.Collection{z.collections[1]}

	a := article("A", "Attention Is All You Need", "ROOT")
	b := article("B", "Graph Attention Networks", "CHILD")
	z.top = []zotero.Item{a, b}
	z.byColl["ROOT"] = []zotero.Item{a}
	z.items["A"] = a
	z.items["B"] = b

	p := pdfAttachment("P", "A", "attention.pdf")
	z.attachments = []zotero.Item{p}
	z.items["P"] = p
	z.children["A"] = []zotero.Item{p}
	z.files["P"] = []byte("%PDF-1.4 fake")
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dataDir := t.TempDir()
	downloads := filepath.Join(dataDir, "downloaded_pdfs")

	z := newStubZotero()
	seedLibrary(z)

	st, err := sqldb.Open(sqldb.DriverSQLite, filepath.Join(dataDir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.NewSearchIndex(search.Options{DataPath: filepath.Join(dataDir, "search"), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	fc, err := cache.New(filepath.Join(dataDir, "cache"), logger)
	require.NoError(t, err)

	annotations, err := annotation.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = annotations.Close() })

	searchService := service.NewSearchService(index, logger)
	mirror := service.NewMirrorService(z, st, searchService, logger)
	extraction := service.NewExtractionService(downloads, logger)

	attachments, err := service.NewAttachmentService(z, []service.AttachmentSource{service.NewZoteroSource(z)}, downloads, extraction, logger)
	require.NoError(t, err)

	qa := service.NewQAService(llm.NewRegistry(echoProvider{}), downloads, map[string]string{"google": "env-key"}, validation.New(), logger)

	services := &Services{
		Library:     service.NewLibraryService(z, fc, service.NewLibraryList(), mirror, logger),
		Item:        service.NewItemService(z, fc, st, searchService, logger),
		Attachment:  attachments,
		Extraction:  extraction,
		QA:          qa,
		Annotations: annotations,
	}

	s := NewServer(services, Options{Store: st, Index: index}, logger)
	return &testServer{
		Server:    s,
		api:       humatest.Wrap(t, s.api),
		zotero:    z,
		downloads: downloads,
	}
}

// decodeData unmarshals the envelope's data field into dst.
func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Version int             `json:"v"`
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	require.True(t, env.Success, resp.Body.String())
	require.Equal(t, EnvelopeVersion, env.Version)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

// decodeError unmarshals a coded error envelope.
func decodeError(t *testing.T, resp *httptest.ResponseRecorder) APIErrorEnvelope {
	t.Helper()
	var env APIErrorEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	require.False(t, env.Success)
	return env
}
