package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zotairo/zotairo-server/internal/domain"
	domainerrors "github.com/zotairo/zotairo-server/internal/errors"
	"github.com/zotairo/zotairo-server/internal/webdav"
)

// partialSource writes some bytes and then fails.
type partialSource struct{}

func (partialSource) Name() string { return "partial" }

func (partialSource) Fetch(_ context.Context, _ domain.Scope, _, _ string, w io.Writer) (int64, error) {
	n, _ := w.Write([]byte("%PDF-trunc"))
	return int64(n), errors.New("connection reset")
}

type recordingScheduler struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingScheduler) Enqueue(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return true
}

func (r *recordingScheduler) queued() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func missingMirror(t *testing.T) *webdav.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)
	return webdav.New(webdav.Config{URL: server.URL, User: "me", Password: "pw", TempDir: t.TempDir()}, testLogger())
}

func setupAttachments(t *testing.T, sources func(z *fakeZotero) []AttachmentSource) (*AttachmentService, *fakeZotero, *recordingScheduler) {
	t.Helper()
	z := newFakeZotero()
	z.items[k(userScope, "A1")] = attachment("A1", "A", "paper.pdf", "application/pdf")
	z.files[k(userScope, "A1")] = []byte("%PDF-1.7 full")
	sched := &recordingScheduler{}
	svc, err := NewAttachmentService(z, sources(z), filepath.Join(t.TempDir(), "downloads"), sched, testLogger())
	require.NoError(t, err)
	return svc, z, sched
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestResolve_FallsBackFromWebDAVToZotero(t *testing.T) {
	svc, z, sched := setupAttachments(t, func(z *fakeZotero) []AttachmentSource {
		return []AttachmentSource{NewWebDAVSource(missingMirror(t)), NewZoteroSource(z)}
	})

	file, err := svc.Resolve(context.Background(), userScope, "A1")
	require.NoError(t, err)
	assert.Equal(t, "paper.pdf", file.Filename)
	assert.Equal(t, "application/pdf", file.ContentType)

	data, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 full", string(data))
	assert.Equal(t, []string{"paper.pdf"}, dirNames(t, svc.DownloadsDir()))
	assert.Equal(t, 1, z.count("DownloadFile"))
	assert.Equal(t, []string{file.Path}, sched.queued())
}

func TestResolve_FailedSourceLeavesNoPartialFile(t *testing.T) {
	svc, _, _ := setupAttachments(t, func(z *fakeZotero) []AttachmentSource {
		return []AttachmentSource{partialSource{}, NewZoteroSource(z)}
	})

	file, err := svc.Resolve(context.Background(), userScope, "A1")
	require.NoError(t, err)
	data, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 full", string(data))
	assert.Equal(t, []string{"paper.pdf"}, dirNames(t, svc.DownloadsDir()))
}

func TestResolve_AllSourcesFail(t *testing.T) {
	svc, z, sched := setupAttachments(t, func(z *fakeZotero) []AttachmentSource {
		return []AttachmentSource{partialSource{}, NewZoteroSource(z)}
	})
	z.setFail("DownloadFile", errUpstream)

	_, err := svc.Resolve(context.Background(), userScope, "A1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Empty(t, dirNames(t, svc.DownloadsDir()))
	assert.Empty(t, sched.queued())
}

func TestResolve_ServesExistingFileWithoutFetching(t *testing.T) {
	svc, z, _ := setupAttachments(t, func(z *fakeZotero) []AttachmentSource {
		return []AttachmentSource{NewZoteroSource(z)}
	})
	local := filepath.Join(svc.DownloadsDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(local, []byte("cached"), 0o644))

	file, err := svc.Resolve(context.Background(), userScope, "A1")
	require.NoError(t, err)
	assert.Equal(t, local, file.Path)
	assert.Equal(t, 0, z.count("DownloadFile"))
}

func TestResolve_SkipsExtractionWhenTextExists(t *testing.T) {
	svc, _, sched := setupAttachments(t, func(z *fakeZotero) []AttachmentSource {
		return []AttachmentSource{NewZoteroSource(z)}
	})
	require.NoError(t, os.WriteFile(filepath.Join(svc.DownloadsDir(), "paper.pdf"), []byte("cached"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(svc.DownloadsDir(), "paper.txt"), []byte("text"), 0o644))

	_, err := svc.Resolve(context.Background(), userScope, "A1")
	require.NoError(t, err)
	assert.Empty(t, sched.queued())
}

func TestResolve_MissingMetadata(t *testing.T) {
	svc, z, _ := setupAttachments(t, func(z *fakeZotero) []AttachmentSource {
		return []AttachmentSource{NewZoteroSource(z)}
	})
	z.items[k(userScope, "L1")] = attachment("L1", "A", "", "")

	_, err := svc.Resolve(context.Background(), userScope, "L1")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = svc.Resolve(context.Background(), userScope, "nope")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestResolve_StripsDirectoriesFromFilename(t *testing.T) {
	svc, z, _ := setupAttachments(t, func(z *fakeZotero) []AttachmentSource {
		return []AttachmentSource{NewZoteroSource(z)}
	})
	z.items[k(userScope, "E1")] = attachment("E1", "A", "../../etc/evil.pdf", "application/pdf")
	z.files[k(userScope, "E1")] = []byte("x")

	file, err := svc.Resolve(context.Background(), userScope, "E1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(svc.DownloadsDir(), "evil.pdf"), file.Path)
}

func TestClearDownloads(t *testing.T) {
	svc, _, _ := setupAttachments(t, func(z *fakeZotero) []AttachmentSource { return nil })
	dir := svc.DownloadsDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	res, err := svc.ClearDownloads()
	require.NoError(t, err)
	assert.Equal(t, 2, res.DeletedCount)
	assert.Empty(t, res.Errors)
	assert.Contains(t, res.Message, "2")
	assert.Equal(t, []string{"sub"}, dirNames(t, dir))
}

func TestListLocalDocuments(t *testing.T) {
	svc, _, _ := setupAttachments(t, func(z *fakeZotero) []AttachmentSource { return nil })
	dir := svc.DownloadsDir()
	for _, name := range []string{"b.PDF", "a.pdf", "a.txt", "notes.md", ".tmp-123"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	docs, err := svc.ListLocalDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].Filename)
	assert.True(t, docs[0].HasText)
	assert.Equal(t, "b.PDF", docs[1].Filename)
	assert.False(t, docs[1].HasText)
}
