package api

import (
	"context"
	"mime"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/zotairo/zotairo-server/internal/domain"
	domainerrors "github.com/zotairo/zotairo-server/internal/errors"
	"github.com/zotairo/zotairo-server/internal/http/response"
	"github.com/zotairo/zotairo-server/internal/service"
)

func (s *Server) registerAttachmentRoutes() {
	// File bodies bypass huma so ranges and conditional requests come from http.ServeContent.
	s.router.Get("/api/libraries/{libType}/{libID}/attachments/{key}/file", s.handleAttachmentFile)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearDownloads",
		Method:      http.MethodPost,
		Path:        "/api/clear-downloads",
		Summary:     "Clear downloads",
		Description: "Deletes every materialized attachment and extracted text file",
		Tags:        []string{"Attachments"},
	}, s.handleClearDownloads)

	huma.Register(s.api, huma.Operation{
		OperationID: "listDocuments",
		Method:      http.MethodGet,
		Path:        "/api/documents",
		Summary:     "List local documents",
		Description: "Lists PDFs in the downloads directory with size and whether text was extracted",
		Tags:        []string{"Attachments"},
	}, s.handleListDocuments)

	huma.Register(s.api, huma.Operation{
		OperationID: "listLocalPDFs",
		Method:      http.MethodGet,
		Path:        "/api/{provider}/list-local-pdfs",
		Summary:     "List local PDFs",
		Description: "Lists the PDF filenames a provider can be asked about",
		Tags:        []string{"QA"},
	}, s.handleListLocalPDFs)
}

// handleAttachmentFile materializes an attachment and streams it.
// GET /api/libraries/{libType}/{libID}/attachments/{key}/file
func (s *Server) handleAttachmentFile(w http.ResponseWriter, r *http.Request) {
	libType, err := domain.ParseLibraryType(chi.URLParam(r, "libType"))
	if err != nil {
		response.HandleError(w, domainerrors.Validation(err.Error()), s.logger)
		return
	}
	scope := domain.NewScope(libType, chi.URLParam(r, "libID"))
	key := chi.URLParam(r, "key")

	file, err := s.services.Attachment.Resolve(r.Context(), scope, key)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	f, err := os.Open(file.Path)
	if err != nil {
		s.logger.Error("Failed to open attachment", "path", file.Path, "error", err)
		response.NotFound(w, "attachment file not found", s.logger)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.InternalError(w, "failed to read attachment", s.logger)
		return
	}

	if file.ContentType != "" {
		w.Header().Set("Content-Type", file.ContentType)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": file.Filename}))
	w.Header().Set("Cache-Control", CachePrivateOneHour)
	http.ServeContent(w, r, file.Filename, info.ModTime(), f)
}

// ClearDownloadsOutput contains the deletion report.
type ClearDownloadsOutput struct {
	Body *service.ClearResult
}

// ListDocumentsOutput contains the local documents.
type ListDocumentsOutput struct {
	Body []service.LocalDocument
}

// ProviderPath names an LLM provider.
type ProviderPath struct {
	Provider string `path:"provider" minLength:"1" doc:"Provider name: google, openai, openrouter or deepseek"`
}

// ListLocalPDFsOutput contains PDF filenames.
type ListLocalPDFsOutput struct {
	Body []string
}

func (s *Server) handleClearDownloads(_ context.Context, _ *struct{}) (*ClearDownloadsOutput, error) {
	result, err := s.services.Attachment.ClearDownloads()
	if err != nil {
		return nil, err
	}
	return &ClearDownloadsOutput{Body: result}, nil
}

func (s *Server) handleListDocuments(_ context.Context, _ *struct{}) (*ListDocumentsOutput, error) {
	docs, err := s.services.Attachment.ListLocalDocuments()
	if err != nil {
		return nil, err
	}
	return &ListDocumentsOutput{Body: docs}, nil
}

func (s *Server) handleListLocalPDFs(_ context.Context, input *ProviderPath) (*ListLocalPDFsOutput, error) {
	if s.services.QA == nil || !s.services.QA.HasProvider(input.Provider) {
		return nil, domainerrors.NotFoundf("unknown provider %q", input.Provider)
	}
	docs, err := s.services.Attachment.ListLocalDocuments()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Filename)
	}
	return &ListLocalPDFsOutput{Body: names}, nil
}
