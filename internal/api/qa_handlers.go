package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/zotairo/zotairo-server/internal/service"
)

func (s *Server) registerQARoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/api/{provider}/chat",
		Summary:     "Chat with a provider",
		Description: "Sends a conversation, which must end on a user turn, to the named LLM provider",
		Tags:        []string{"QA"},
	}, s.handleChat)

	huma.Register(s.api, huma.Operation{
		OperationID: "processDocument",
		Method:      http.MethodPost,
		Path:        "/api/{provider}/process-pdf",
		Summary:     "Ask about a document",
		Description: "Sends a downloaded PDF, or its extracted text, with a prompt to the named LLM provider",
		Tags:        []string{"QA"},
	}, s.handleProcessDocument)
}

// ChatInput is the chat request.
type ChatInput struct {
	ProviderPath
	Body service.ChatRequest
}

// DocumentInput is the document question request.
type DocumentInput struct {
	ProviderPath
	Body service.DocumentRequest
}

// QAOutput contains the provider's answer.
type QAOutput struct {
	Body *service.QAResponse
}

func (s *Server) handleChat(ctx context.Context, input *ChatInput) (*QAOutput, error) {
	resp, err := s.services.QA.Chat(ctx, input.Provider, input.Body)
	if err != nil {
		return nil, err
	}
	return &QAOutput{Body: resp}, nil
}

func (s *Server) handleProcessDocument(ctx context.Context, input *DocumentInput) (*QAOutput, error) {
	resp, err := s.services.QA.ProcessDocument(ctx, input.Provider, input.Body)
	if err != nil {
		return nil, err
	}
	return &QAOutput{Body: resp}, nil
}
