package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	domainerrors "github.com/zotairo/zotairo-server/internal/errors"
	"github.com/zotairo/zotairo-server/internal/id"
	"github.com/zotairo/zotairo-server/internal/textextract"
	"github.com/zotairo/zotairo-server/internal/watcher"
)

const extractionQueueSize = 64

// ExtractResult reports one synchronous extraction.
type ExtractResult struct {
	Status  string `json:"status"`
	TxtFile string `json:"txt_file"`
}

// ExtractFailure names a PDF that could not be converted.
type ExtractFailure struct {
	PDF   string `json:"pdf"`
	Error string `json:"error"`
}

// ExtractAllResult reports a bulk extraction.
type ExtractAllResult struct {
	Converted []string         `json:"converted"`
	Errors    []ExtractFailure `json:"errors"`
}

// ExtractionService writes .txt siblings for PDFs in the downloads dir, either
// on request or from a background queue.
type ExtractionService struct {
	downloadsDir string
	logger       *slog.Logger

	queue   chan string
	mu      sync.Mutex
	pending map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExtractionService creates the service. Call Start to run the worker.
func NewExtractionService(downloadsDir string, logger *slog.Logger) *ExtractionService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ExtractionService{
		downloadsDir: downloadsDir,
		logger:       logger,
		queue:        make(chan string, extractionQueueSize),
		pending:      make(map[string]struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the background worker.
func (s *ExtractionService) Start() {
	s.wg.Add(1)
	go s.worker()
}

// Stop cancels the worker and any watcher feed, and waits for them to exit.
func (s *ExtractionService) Stop() {
	s.logger.Info("stopping extraction service")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("extraction service stopped")
}

// Enqueue schedules path for background extraction. It returns false when the
// file already has text, is already queued, or the queue is full.
func (s *ExtractionService) Enqueue(path string) bool {
	if !textextract.IsPDF(path) || textextract.HasSibling(path) {
		return false
	}

	s.mu.Lock()
	if _, queued := s.pending[path]; queued {
		s.mu.Unlock()
		return false
	}
	s.pending[path] = struct{}{}
	s.mu.Unlock()

	select {
	case s.queue <- path:
		return true
	default:
		s.done(path)
		s.logger.Warn("extraction queue full, dropping", "path", path)
		return false
	}
}

func (s *ExtractionService) done(path string) {
	s.mu.Lock()
	delete(s.pending, path)
	s.mu.Unlock()
}

func (s *ExtractionService) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case path := <-s.queue:
			s.extract(path)
			s.done(path)
		}
	}
}

// extract runs one background job. Failures are logged only.
func (s *ExtractionService) extract(path string) {
	if textextract.HasSibling(path) {
		return
	}
	jobID := id.MustGenerate(id.PrefixExtraction)
	name, err := textextract.WriteSibling(path)
	if err != nil {
		s.logger.Warn("background extraction failed", "job_id", jobID, "path", path, "error", err)
		return
	}
	s.logger.Info("text extracted", "job_id", jobID, "pdf", filepath.Base(path), "txt", name)
}

// Feed enqueues PDFs reported by a downloads watcher until Stop.
func (s *ExtractionService) Feed(w *watcher.Watcher) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case ev, ok := <-w.Events():
				if !ok {
					return
				}
				if ev.Type == watcher.EventRemoved {
					continue
				}
				s.Enqueue(ev.Path)
			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				s.logger.Warn("downloads watcher error", "error", err)
			}
		}
	}()
}

// resolveDocument maps a client-supplied name to a file in the downloads dir.
func resolveDocument(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", domainerrors.Validationf("invalid file name %q", name)
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", domainerrors.NotFoundf("file not found: %s", name)
	}
	return path, nil
}

// GenerateForFile extracts one PDF now, overwriting any existing text.
func (s *ExtractionService) GenerateForFile(name string) (*ExtractResult, error) {
	path, err := resolveDocument(s.downloadsDir, name)
	if err != nil {
		return nil, err
	}
	if !textextract.IsPDF(path) {
		return nil, domainerrors.Validationf("not a pdf: %s", name)
	}

	txt, err := textextract.WriteSibling(path)
	if err != nil {
		if errors.Is(err, textextract.ErrTooLarge) {
			return nil, domainerrors.PayloadTooLargef("%s exceeds the extraction size limit", name)
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "convert %s", name)
	}
	s.logger.Info("text extracted", "pdf", name, "txt", txt)
	return &ExtractResult{Status: "success", TxtFile: txt}, nil
}

// GenerateAll extracts every PDF in the downloads dir that has no text yet.
func (s *ExtractionService) GenerateAll() (*ExtractAllResult, error) {
	entries, err := os.ReadDir(s.downloadsDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "read downloads dir")
	}

	res := &ExtractAllResult{Converted: []string{}, Errors: []ExtractFailure{}}
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || !textextract.IsPDF(name) {
			continue
		}
		path := filepath.Join(s.downloadsDir, name)
		if textextract.HasSibling(path) {
			continue
		}
		txt, err := textextract.WriteSibling(path)
		if err != nil {
			res.Errors = append(res.Errors, ExtractFailure{PDF: name, Error: err.Error()})
			continue
		}
		res.Converted = append(res.Converted, txt)
	}
	slices.Sort(res.Converted)

	s.logger.Info("bulk extraction finished", "converted", len(res.Converted), "errors", len(res.Errors))
	return res, nil
}
