package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/zotairo/zotairo-server/internal/service"
)

func (s *Server) registerMarkdownRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "generateTextForDocument",
		Method:      http.MethodPost,
		Path:        "/api/markdown/generate-md-for-pdf",
		Summary:     "Extract text from one PDF",
		Description: "Writes the PDF's text beside it as a .txt file, replacing any earlier extraction",
		Tags:        []string{"Markdown"},
	}, s.handleGenerateForDocument)

	huma.Register(s.api, huma.Operation{
		OperationID: "generateTextForAll",
		Method:      http.MethodPost,
		Path:        "/api/markdown/generate-md-for-all-pdfs",
		Summary:     "Extract text from every PDF",
		Description: "Converts each downloaded PDF that has no .txt file yet and reports failures per file",
		Tags:        []string{"Markdown"},
	}, s.handleGenerateForAll)
}

// GenerateForDocumentInput names the PDF to convert.
type GenerateForDocumentInput struct {
	Filename string `query:"pdf_filename" required:"true" minLength:"1" doc:"PDF filename in the downloads directory"`
}

// GenerateForDocumentOutput reports one extraction.
type GenerateForDocumentOutput struct {
	Body *service.ExtractResult
}

// GenerateForAllOutput reports a bulk extraction.
type GenerateForAllOutput struct {
	Body *service.ExtractAllResult
}

func (s *Server) handleGenerateForDocument(_ context.Context, input *GenerateForDocumentInput) (*GenerateForDocumentOutput, error) {
	result, err := s.services.Extraction.GenerateForFile(input.Filename)
	if err != nil {
		return nil, err
	}
	return &GenerateForDocumentOutput{Body: result}, nil
}

func (s *Server) handleGenerateForAll(_ context.Context, _ *struct{}) (*GenerateForAllOutput, error) {
	result, err := s.services.Extraction.GenerateAll()
	if err != nil {
		return nil, err
	}
	return &GenerateForAllOutput{Body: result}, nil
}
