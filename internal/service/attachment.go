package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zotairo/zotairo-server/internal/domain"
	domainerrors "github.com/zotairo/zotairo-server/internal/errors"
	"github.com/zotairo/zotairo-server/internal/textextract"
	"github.com/zotairo/zotairo-server/internal/webdav"
)

const defaultContentType = "application/octet-stream"

// tempPrefix marks in-flight downloads. The watcher and document listing skip dotfiles.
const tempPrefix = ".tmp-"

// AttachmentSource is one place an attachment's bytes can come from.
type AttachmentSource interface {
	Name() string
	Fetch(ctx context.Context, scope domain.Scope, key, filename string, w io.Writer) (int64, error)
}

type webdavSource struct {
	client *webdav.Client
}

// NewWebDAVSource fetches from the {key}.zip archives of a WebDAV mirror.
func NewWebDAVSource(client *webdav.Client) AttachmentSource {
	return webdavSource{client: client}
}

func (webdavSource) Name() string { return "webdav" }

func (s webdavSource) Fetch(ctx context.Context, _ domain.Scope, key, filename string, w io.Writer) (int64, error) {
	return s.client.Fetch(ctx, key, filename, w)
}

type zoteroSource struct {
	zotero ZoteroAPI
}

// NewZoteroSource fetches from Zotero's own file storage.
func NewZoteroSource(z ZoteroAPI) AttachmentSource {
	return zoteroSource{zotero: z}
}

func (zoteroSource) Name() string { return "zotero" }

func (s zoteroSource) Fetch(ctx context.Context, scope domain.Scope, key, _ string, w io.Writer) (int64, error) {
	return s.zotero.DownloadFile(ctx, scope, key, w)
}

// ExtractionScheduler queues a PDF for text extraction.
type ExtractionScheduler interface {
	Enqueue(path string) bool
}

// AttachmentFile is a materialized attachment ready to serve.
type AttachmentFile struct {
	Path        string
	Filename    string
	ContentType string
}

// ClearResult reports a downloads purge.
type ClearResult struct {
	Message      string   `json:"message"`
	DeletedCount int      `json:"deleted_count"`
	Errors       []string `json:"errors,omitempty"`
}

// LocalDocument is one PDF in the downloads dir.
type LocalDocument struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	HasText  bool   `json:"hasText"`
}

// AttachmentService materializes attachment files in the downloads dir.
// Concurrent fetches of one file are not coordinated; the rename makes the last one win.
type AttachmentService struct {
	zotero       ZoteroAPI
	sources      []AttachmentSource
	downloadsDir string
	extractor    ExtractionScheduler
	logger       *slog.Logger
}

// NewAttachmentService creates the service and its downloads dir.
// sources are tried in order; extractor may be nil.
func NewAttachmentService(z ZoteroAPI, sources []AttachmentSource, downloadsDir string, extractor ExtractionScheduler, logger *slog.Logger) (*AttachmentService, error) {
	if err := os.MkdirAll(downloadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create downloads dir: %w", err)
	}
	return &AttachmentService{
		zotero:       z,
		sources:      sources,
		downloadsDir: downloadsDir,
		extractor:    extractor,
		logger:       logger,
	}, nil
}

// DownloadsDir returns the directory attachments are stored in.
func (s *AttachmentService) DownloadsDir() string {
	return s.downloadsDir
}

// localName reduces a remote filename to a safe base name.
func localName(filename string) (string, bool) {
	name := filepath.Base(filepath.FromSlash(filename))
	if name == "." || name == ".." || name == string(filepath.Separator) || strings.HasPrefix(name, tempPrefix) {
		return "", false
	}
	return name, true
}

// Resolve returns the local copy of an attachment, fetching it when absent.
func (s *AttachmentService) Resolve(ctx context.Context, scope domain.Scope, key string) (*AttachmentFile, error) {
	item, err := s.zotero.GetItem(ctx, scope, key)
	if err != nil {
		return nil, domainerrors.NotFoundf("attachment %s not found", key).WithCause(err)
	}
	filename := item.Data.Filename
	if filename == "" {
		return nil, domainerrors.NotFoundf("attachment %s has no file", key)
	}
	name, ok := localName(filename)
	if !ok {
		return nil, domainerrors.NotFoundf("attachment %s has an unusable filename", key)
	}

	file := &AttachmentFile{
		Path:        filepath.Join(s.downloadsDir, name),
		Filename:    name,
		ContentType: cmp.Or(item.Data.ContentType, defaultContentType),
	}

	if info, err := os.Stat(file.Path); err == nil && info.Mode().IsRegular() {
		s.logger.Debug("serving local attachment", "key", key, "path", file.Path)
		s.scheduleExtraction(file.Path)
		return file, nil
	}

	if err := s.fetch(ctx, scope, key, filename, file.Path); err != nil {
		s.logger.Warn("attachment unavailable from every source", "scope", scope.String(), "key", key, "error", err)
		return nil, domainerrors.NotFoundf("attachment %s could not be fetched", key).WithCause(err)
	}
	s.scheduleExtraction(file.Path)
	return file, nil
}

func (s *AttachmentService) scheduleExtraction(path string) {
	if s.extractor == nil || !textextract.IsPDF(path) || textextract.HasSibling(path) {
		return
	}
	s.extractor.Enqueue(path)
}

// fetch tries each source in order until one yields the file.
func (s *AttachmentService) fetch(ctx context.Context, scope domain.Scope, key, filename, target string) error {
	if len(s.sources) == 0 {
		return errors.New("no attachment sources configured")
	}

	var errs []error
	for _, src := range s.sources {
		n, err := s.fetchFrom(ctx, src, scope, key, filename, target)
		if err == nil {
			s.logger.Info("attachment downloaded", "source", src.Name(), "key", key, "bytes", n, "path", target)
			return nil
		}
		s.logger.Info("attachment source failed", "source", src.Name(), "key", key, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

// fetchFrom streams one source into a temp file and renames it onto target.
// The temp file never survives a failure.
func (s *AttachmentService) fetchFrom(ctx context.Context, src AttachmentSource, scope domain.Scope, key, filename, target string) (int64, error) {
	tmp, err := os.CreateTemp(s.downloadsDir, tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := src.Fetch(ctx, scope, key, filename, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close temp file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return n, err
	}

	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return n, fmt.Errorf("move into place: %w", err)
	}
	return n, nil
}

// ClearDownloads deletes every regular file in the downloads dir. Per-file
// failures are collected; an unreadable directory is an error.
func (s *AttachmentService) ClearDownloads() (*ClearResult, error) {
	entries, err := os.ReadDir(s.downloadsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ClearResult{Message: "downloads directory does not exist"}, nil
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "read downloads dir")
	}

	res := &ClearResult{}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(s.downloadsDir, e.Name())); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("delete %s: %v", e.Name(), err))
			continue
		}
		res.DeletedCount++
	}

	if len(res.Errors) > 0 {
		res.Message = fmt.Sprintf("completed with errors, %d files deleted", res.DeletedCount)
		s.logger.Warn("downloads cleared with errors", "deleted", res.DeletedCount, "errors", len(res.Errors))
	} else {
		res.Message = fmt.Sprintf("all files (%d) in the downloads directory were deleted", res.DeletedCount)
		s.logger.Info("downloads cleared", "deleted", res.DeletedCount)
	}
	return res, nil
}

// ListLocalDocuments lists the PDFs in the downloads dir, sorted by name.
func (s *AttachmentService) ListLocalDocuments() ([]LocalDocument, error) {
	entries, err := os.ReadDir(s.downloadsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []LocalDocument{}, nil
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "read downloads dir")
	}

	docs := []LocalDocument{}
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") || !textextract.IsPDF(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(s.downloadsDir, e.Name())
		docs = append(docs, LocalDocument{Filename: e.Name(), Size: info.Size(), HasText: textextract.HasSibling(path)})
	}
	slices.SortFunc(docs, func(a, b LocalDocument) int { return strings.Compare(a.Filename, b.Filename) })
	return docs, nil
}
