// Package webdav fetches attachment files from a WebDAV mirror laid out the way
// Zotero file sync writes it: one {key}.zip per attachment under /zotero.
package webdav

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Sentinel errors for mirror lookups.
var (
	ErrNotFound      = errors.New("webdav: archive not found")
	ErrEntryNotFound = errors.New("webdav: file not found in archive")
	ErrUnauthorized  = errors.New("webdav: authentication failed")
)

// Config holds mirror credentials.
type Config struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
	// TempDir receives the downloaded archive while it is searched. Defaults to os.TempDir.
	TempDir string
}

// Client downloads and unpacks attachment archives.
type Client struct {
	http    *http.Client
	baseURL string
	user    string
	pass    string
	tempDir string
	logger  *slog.Logger
}

// New creates a client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.URL, "/"),
		user:    cfg.User,
		pass:    cfg.Password,
		tempDir: cfg.TempDir,
		logger:  logger,
	}
}

// ArchiveURL returns the location of an attachment's archive.
func (c *Client) ArchiveURL(key string) string {
	return c.baseURL + "/zotero/" + url.PathEscape(key) + ".zip"
}

// Fetch downloads {key}.zip and copies the entry named filename into w.
func (c *Client) Fetch(ctx context.Context, key, filename string, w io.Writer) (int64, error) {
	archive, err := c.downloadArchive(ctx, key)
	if err != nil {
		return 0, err
	}
	defer os.Remove(archive)

	zr, err := zip.OpenReader(archive)
	if err != nil {
		return 0, fmt.Errorf("open archive %s.zip: %w", key, err)
	}
	defer zr.Close()

	rc, err := openEntry(zr, filename)
	if err != nil {
		return 0, fmt.Errorf("%s.zip: %w", key, err)
	}
	defer rc.Close()

	n, err := io.Copy(w, rc)
	if err != nil {
		return n, fmt.Errorf("extract %s from %s.zip: %w", filename, key, err)
	}

	c.logger.Debug("webdav file extracted", "key", key, "filename", filename, "bytes", n)
	return n, nil
}

// openEntry finds an entry whose name equals filename exactly.
func openEntry(zr *zip.ReadCloser, filename string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == filename {
			return f.Open()
		}
	}
	return nil, ErrEntryNotFound
}

// downloadArchive stores the archive in a temp file and returns its path.
func (c *Client) downloadArchive(ctx context.Context, key string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ArchiveURL(key), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.user, c.pass)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("webdav: unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(c.tempDir, "webdav-*.zip")
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp archive: %w", err)
	}
	return tmp.Name(), nil
}
