// Package cache persists remote listings as JSON files so repeat reads skip the network.
//
// Layout under the cache directory:
//
//	libraries.json
//	items_<type>_<id>.json
//	items_<type>_<id>_collection_<key>.json
//
// Components are percent-escaped, so an underscore inside an id can never be
// mistaken for a separator and two scopes never share a file.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zotairo/zotairo-server/internal/domain"
)

const (
	librariesFile = "libraries.json"
	itemsPrefix   = "items_"
)

// FileCache reads and writes cache files. Safe for concurrent use; the last writer wins.
type FileCache struct {
	dir    string
	logger *slog.Logger
}

// New creates the cache directory if needed.
func New(dir string, logger *slog.Logger) (*FileCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir, logger: logger}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}

// LibrariesPath returns the library list file.
func (c *FileCache) LibrariesPath() string {
	return filepath.Join(c.dir, librariesFile)
}

// ItemsPath returns the file for a library listing, or a collection listing when collectionKey is set.
func (c *FileCache) ItemsPath(scope domain.Scope, collectionKey string) string {
	return filepath.Join(c.dir, ItemsFileName(scope, collectionKey))
}

// ItemsFileName is the pure naming function behind ItemsPath.
func ItemsFileName(scope domain.Scope, collectionKey string) string {
	var b strings.Builder
	b.WriteString(itemsPrefix)
	b.WriteString(escape(string(scope.Type)))
	b.WriteByte('_')
	b.WriteString(escape(scope.ID))
	if collectionKey != "" {
		b.WriteString("_collection_")
		b.WriteString(escape(collectionKey))
	}
	b.WriteString(".json")
	return b.String()
}

// escape keeps [A-Za-z0-9.-] and percent-encodes every other byte, including '_'.
func escape(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-':
			b.WriteByte(ch)
		case ch == '.' && i > 0:
			b.WriteByte(ch)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[ch>>4])
			b.WriteByte(hex[ch&0x0F])
		}
	}
	return b.String()
}

// Libraries returns the cached library list. ok is false when absent or unreadable.
func (c *FileCache) Libraries() (libs []domain.Library, ok bool) {
	if !c.read(c.LibrariesPath(), &libs) {
		return nil, false
	}
	return libs, true
}

// PutLibraries replaces the cached library list.
func (c *FileCache) PutLibraries(libs []domain.Library) error {
	return c.write(c.LibrariesPath(), libs)
}

// Items decodes a cached listing into dst. ok is false when absent or unreadable.
func (c *FileCache) Items(scope domain.Scope, collectionKey string, dst any) bool {
	return c.read(c.ItemsPath(scope, collectionKey), dst)
}

// PutItems writes a listing for later Items calls.
func (c *FileCache) PutItems(scope domain.Scope, collectionKey string, v any) error {
	return c.write(c.ItemsPath(scope, collectionKey), v)
}

// InvalidateItems deletes every item listing and leaves libraries.json alone.
// Returns the number of files removed.
func (c *FileCache) InvalidateItems() (int, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, itemsPrefix+"*.json"))
	if err != nil {
		return 0, fmt.Errorf("glob cache: %w", err)
	}

	removed := 0
	var errs []error
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// read reports false for missing files and for corrupt JSON, which is logged.
func (c *FileCache) read(path string, dst any) bool {
	data, err := os.ReadFile(path) //#nosec G304 -- path is built from escaped components
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("cache read failed", "path", path, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("cache file corrupt, ignoring", "path", path, "error", err)
		return false
	}
	return true
}

// write stores v via a temp file and rename so readers never see a partial file.
func (c *FileCache) write(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
