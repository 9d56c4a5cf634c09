package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	domainerrors "github.com/zotairo/zotairo-server/internal/errors"
	"github.com/zotairo/zotairo-server/internal/id"
	"github.com/zotairo/zotairo-server/internal/llm"
	"github.com/zotairo/zotairo-server/internal/textextract"
	"github.com/zotairo/zotairo-server/internal/validation"
)

// Document size limits for the QA bridge.
const (
	InlineDocumentLimit = 20 * 1024 * 1024
	MaxDocumentSize     = 100 * 1024 * 1024
)

// ChatRequest is a plain conversation turn.
type ChatRequest struct {
	APIKey  string        `json:"api_key,omitempty"`
	Model   string        `json:"model" validate:"required"`
	History []llm.Message `json:"history" validate:"required,min=1"`
}

// DocumentRequest asks a question about a file in the downloads dir.
type DocumentRequest struct {
	APIKey   string        `json:"api_key,omitempty"`
	Model    string        `json:"model" validate:"required"`
	Filename string        `json:"pdf_filename" validate:"required,basename"`
	Prompt   string        `json:"prompt" validate:"required"`
	History  []llm.Message `json:"history,omitempty"`
}

// QAResponse is a provider's answer.
type QAResponse struct {
	RequestID string `json:"request_id"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Response  string `json:"response"`
}

// QAService forwards conversations and documents to LLM providers.
type QAService struct {
	registry     *llm.Registry
	downloadsDir string
	keys         map[string]string
	validator    *validation.Validator
	logger       *slog.Logger
}

// NewQAService creates the service. keys maps provider names to default API keys.
func NewQAService(registry *llm.Registry, downloadsDir string, keys map[string]string, v *validation.Validator, logger *slog.Logger) *QAService {
	return &QAService{
		registry:     registry,
		downloadsDir: downloadsDir,
		keys:         keys,
		validator:    v,
		logger:       logger,
	}
}

// Providers lists the registered provider names.
func (s *QAService) Providers() []string {
	return s.registry.Names()
}

// HasProvider reports whether provider is registered.
func (s *QAService) HasProvider(provider string) bool {
	return s.registry.Has(provider)
}

// HasKey reports whether a default API key is configured for provider.
func (s *QAService) HasKey(provider string) bool {
	return s.keys[strings.ToLower(provider)] != ""
}

func (s *QAService) provider(name string) (llm.Provider, error) {
	p, ok := s.registry.Get(name)
	if !ok {
		return nil, domainerrors.NotFoundf("unknown provider %q", name)
	}
	return p, nil
}

// apiKey prefers the request's key over the configured default.
func (s *QAService) apiKey(provider, requested string) (string, error) {
	if key := cmp.Or(strings.TrimSpace(requested), s.keys[provider]); key != "" {
		return key, nil
	}
	return "", domainerrors.Unauthorized(provider + " API key is required")
}

// Chat sends a conversation that must end on a user turn.
func (s *QAService) Chat(ctx context.Context, providerName string, req ChatRequest) (*QAResponse, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	key, err := s.apiKey(p.Name(), req.APIKey)
	if err != nil {
		return nil, err
	}

	history := llm.NormalizeHistory(req.History)
	if !llm.EndsWithUser(history) {
		return nil, domainerrors.Validation("history must end with a user message")
	}

	return s.complete(ctx, p, &llm.Request{APIKey: key, Model: req.Model, Messages: history})
}

// ProcessDocument asks a question about a downloaded file. Text files are
// wrapped into the prompt; binary files go inline or through the provider's upload API.
func (s *QAService) ProcessDocument(ctx context.Context, providerName string, req DocumentRequest) (*QAResponse, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	key, err := s.apiKey(p.Name(), req.APIKey)
	if err != nil {
		return nil, err
	}

	path, err := resolveDocument(s.downloadsDir, req.Filename)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, domainerrors.NotFoundf("file not found: %s", req.Filename)
	}
	if info.Size() > MaxDocumentSize {
		return nil, domainerrors.PayloadTooLargef("%s is %d bytes, the limit is %d", req.Filename, info.Size(), MaxDocumentSize)
	}

	history := llm.NormalizeHistory(req.History)

	if strings.EqualFold(filepath.Ext(path), textextract.TextExt) {
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "read %s", req.Filename)
		}
		history = append(history, llm.Message{Role: llm.RoleUser, Content: wrapDocument(string(text), req.Prompt)})
		return s.complete(ctx, p, &llm.Request{APIKey: key, Model: req.Model, Messages: history})
	}

	if !p.SupportsDocuments() {
		return nil, domainerrors.Validationf("%s accepts text documents only, extract %s first", p.Name(), req.Filename)
	}

	att, err := s.attachment(ctx, p, key, path, info.Size())
	if err != nil {
		return nil, err
	}
	history = append(history, llm.Message{Role: llm.RoleUser, Content: req.Prompt})
	return s.complete(ctx, p, &llm.Request{APIKey: key, Model: req.Model, Messages: history, Attachment: att})
}

// wrapDocument embeds a text document ahead of the question.
func wrapDocument(text, prompt string) string {
	return "[DOCUMENT]\n" + text + "\n[/DOCUMENT]\n\n" + prompt
}

func documentMIMEType(path string) string {
	if textextract.IsPDF(path) {
		return "application/pdf"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return defaultContentType
}

// attachment inlines small files and uploads larger ones.
func (s *QAService) attachment(ctx context.Context, p llm.Provider, key, path string, size int64) (*llm.Attachment, error) {
	att := &llm.Attachment{Filename: filepath.Base(path), MIMEType: documentMIMEType(path)}

	if size <= InlineDocumentLimit {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "read %s", att.Filename)
		}
		att.Data = data
		return att, nil
	}

	up, ok := llm.AsUploader(p)
	if !ok {
		return nil, domainerrors.PayloadTooLargef("%s is over the %d byte inline limit and %s has no upload API", att.Filename, InlineDocumentLimit, p.Name())
	}
	ref, err := up.Upload(ctx, key, path, att.MIMEType)
	if err != nil {
		return nil, mapProviderError(p.Name(), err)
	}
	s.logger.Info("document uploaded", "provider", p.Name(), "file", att.Filename, "bytes", size)
	att.FileRef = ref
	return att, nil
}

func (s *QAService) complete(ctx context.Context, p llm.Provider, req *llm.Request) (*QAResponse, error) {
	requestID := id.MustGenerate(id.PrefixQA)
	logger := s.logger.With("request_id", requestID, "provider", p.Name(), "model", req.Model)
	logger.Info("llm request", "turns", len(req.Messages), "attachment", req.Attachment != nil)

	resp, err := p.Complete(ctx, req)
	if err != nil {
		logger.Warn("llm request failed", "error", err)
		return nil, mapProviderError(p.Name(), err)
	}

	logger.Info("llm response", "finish_reason", resp.FinishReason, "chars", len(resp.Text))
	return &QAResponse{RequestID: requestID, Provider: p.Name(), Model: req.Model, Response: resp.Text}, nil
}

// mapProviderError translates llm failures into domain errors.
func mapProviderError(provider string, err error) error {
	var (
		blocked   *llm.BlockedError
		apiErr    *llm.APIError
		transport *llm.TransportError
	)
	switch {
	case errors.As(err, &blocked):
		return domainerrors.Blocked(blocked.Reason).WithCause(err)
	case errors.As(err, &apiErr):
		if apiErr.Temporary() {
			return domainerrors.RemoteUnavailable(provider, err)
		}
		return domainerrors.UpstreamRejected(fmt.Sprintf("%s: %s", provider, apiErr.Message)).WithCause(err)
	case errors.As(err, &transport), errors.Is(err, llm.ErrNoContent):
		return domainerrors.RemoteUnavailable(provider, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domainerrors.RemoteUnavailable(provider, err)
	default:
		return domainerrors.Wrap(err, domainerrors.CodeInternal, provider+" request failed")
	}
}
