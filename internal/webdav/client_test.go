package webdav

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebdav "golang.org/x/net/webdav"
)

// newMirror serves an in-memory WebDAV tree behind basic auth.
func newMirror(t *testing.T, archives map[string]map[string]string) string {
	t.Helper()
	ctx := context.Background()
	fs := xwebdav.NewMemFS()
	require.NoError(t, fs.Mkdir(ctx, "/zotero", 0o755))

	for key, entries := range archives {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		for name, content := range entries {
			w, err := zw.Create(name)
			require.NoError(t, err)
			_, err = w.Write([]byte(content))
			require.NoError(t, err)
		}
		require.NoError(t, zw.Close())

		f, err := fs.OpenFile(ctx, "/zotero/"+key+".zip", os.O_CREATE|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, err = f.Write(buf.Bytes())
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	dav := &xwebdav.Handler{FileSystem: fs, LockSystem: xwebdav.NewMemLS()}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "me" || pass != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		dav.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func newTestClient(t *testing.T, baseURL, pass string) *Client {
	return New(Config{
		URL:      baseURL,
		User:     "me",
		Password: pass,
		TempDir:  t.TempDir(),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetch_ExtractsNamedEntry(t *testing.T) {
	base := newMirror(t, map[string]map[string]string{
		"ABCD1234": {"paper.pdf": "%PDF wanted", "other.pdf": "%PDF other"},
	})
	client := newTestClient(t, base, "pw")

	var buf bytes.Buffer
	n, err := client.Fetch(context.Background(), "ABCD1234", "paper.pdf", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len("%PDF wanted")), n)
	assert.Equal(t, "%PDF wanted", buf.String())

	leftovers, err := os.ReadDir(client.tempDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp archive should be removed")
}

func TestFetch_Errors(t *testing.T) {
	base := newMirror(t, map[string]map[string]string{
		"ABCD1234": {"renamed.pdf": "%PDF"},
	})

	tests := []struct {
		name     string
		pass     string
		key      string
		filename string
		wantErr  error
	}{
		{"missing archive", "pw", "NOPE0000", "paper.pdf", ErrNotFound},
		{"entry name mismatch", "pw", "ABCD1234", "paper.pdf", ErrEntryNotFound},
		{"bad credentials", "wrong", "ABCD1234", "renamed.pdf", ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, base, tt.pass)
			var buf bytes.Buffer
			_, err := client.Fetch(context.Background(), tt.key, tt.filename, &buf)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, buf.Len())
		})
	}
}

func TestArchiveURL(t *testing.T) {
	c := New(Config{URL: "https://dav.example.com/remote.php/dav"}, nil)
	assert.Equal(t, "https://dav.example.com/remote.php/dav/zotero/ABCD1234.zip", c.ArchiveURL("ABCD1234"))

	c = New(Config{URL: "https://dav.example.com/remote.php/dav/"}, nil)
	assert.Equal(t, "https://dav.example.com/remote.php/dav/zotero/ABCD1234.zip", c.ArchiveURL("ABCD1234"))
}
