package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/zotairo/zotairo-server/internal/errors"
	"github.com/zotairo/zotairo-server/internal/llm"
	"github.com/zotairo/zotairo-server/internal/validation"
)

type fakeProvider struct {
	name      string
	documents bool
	upload    bool
	err       error

	mu       sync.Mutex
	requests []*llm.Request
	uploads  []string
}

func (p *fakeProvider) Name() string            { return p.name }
func (p *fakeProvider) SupportsDocuments() bool { return p.documents }
func (p *fakeProvider) SupportsUpload() bool    { return p.upload }

func (p *fakeProvider) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Text: "answer", FinishReason: "stop"}, nil
}

func (p *fakeProvider) Upload(_ context.Context, _, path, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads = append(p.uploads, path)
	return "file-123", nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakeProvider) last() *llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

func setupQA(t *testing.T, providers ...*fakeProvider) (*QAService, string) {
	t.Helper()
	dir := t.TempDir()
	list := make([]llm.Provider, 0, len(providers))
	for _, p := range providers {
		list = append(list, p)
	}
	keys := map[string]string{"google": "env-key"}
	return NewQAService(llm.NewRegistry(list...), dir, keys, validation.New(), testLogger()), dir
}

func userTurn(content string) []llm.Message {
	return []llm.Message{{Role: llm.RoleUser, Content: content}}
}

func TestChat_HistoryMustEndWithUser(t *testing.T) {
	p := &fakeProvider{name: "google", documents: true}
	svc, _ := setupQA(t, p)

	_, err := svc.Chat(context.Background(), "google", ChatRequest{
		Model: "gemini",
		History: []llm.Message{
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hello"},
		},
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Equal(t, 0, p.calls())
}

func TestChat_DropsUnknownRolesAndEmptyTurns(t *testing.T) {
	p := &fakeProvider{name: "google", documents: true}
	svc, _ := setupQA(t, p)

	res, err := svc.Chat(context.Background(), "google", ChatRequest{
		Model: "gemini",
		History: []llm.Message{
			{Role: "model", Content: "earlier"},
			{Role: "tool", Content: "ignored"},
			{Role: llm.RoleUser, Content: "   "},
			{Role: llm.RoleUser, Content: "question"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", res.Response)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleAssistant, Content: "earlier"},
		{Role: llm.RoleUser, Content: "question"},
	}, p.last().Messages)
}

func TestChat_APIKeyResolution(t *testing.T) {
	google := &fakeProvider{name: "google", documents: true}
	openai := &fakeProvider{name: "openai", documents: true}
	svc, _ := setupQA(t, google, openai)
	ctx := context.Background()

	_, err := svc.Chat(ctx, "google", ChatRequest{Model: "m", History: userTurn("q")})
	require.NoError(t, err)
	assert.Equal(t, "env-key", google.last().APIKey)

	_, err = svc.Chat(ctx, "google", ChatRequest{APIKey: "mine", Model: "m", History: userTurn("q")})
	require.NoError(t, err)
	assert.Equal(t, "mine", google.last().APIKey)

	_, err = svc.Chat(ctx, "openai", ChatRequest{Model: "m", History: userTurn("q")})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestChat_UnknownProvider(t *testing.T) {
	svc, _ := setupQA(t)
	_, err := svc.Chat(context.Background(), "nope", ChatRequest{Model: "m", History: userTurn("q")})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestChat_ProviderErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"blocked", &llm.BlockedError{Provider: "google", Reason: "SAFETY"}, domainerrors.ErrBlocked},
		{"rejected", &llm.APIError{Provider: "google", StatusCode: 400, Message: "bad model"}, domainerrors.ErrUpstreamRejected},
		{"server", &llm.APIError{Provider: "google", StatusCode: 503, Message: "overloaded"}, domainerrors.ErrRemoteUnavailable},
		{"rate limited", &llm.APIError{Provider: "google", StatusCode: 429, Message: "slow down"}, domainerrors.ErrRemoteUnavailable},
		{"transport", &llm.TransportError{Provider: "google", Err: errUpstream}, domainerrors.ErrRemoteUnavailable},
		{"empty", llm.ErrNoContent, domainerrors.ErrRemoteUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{name: "google", documents: true, err: tt.err}
			svc, _ := setupQA(t, p)
			_, err := svc.Chat(context.Background(), "google", ChatRequest{Model: "m", History: userTurn("q")})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProcessDocument_WrapsTextFiles(t *testing.T) {
	p := &fakeProvider{name: "google"}
	svc, dir := setupQA(t, p)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper.txt"), []byte("body text"), 0o644))

	_, err := svc.ProcessDocument(context.Background(), "google", DocumentRequest{
		Model: "m", Filename: "paper.txt", Prompt: "Summarize",
	})
	require.NoError(t, err)

	req := p.last()
	assert.Nil(t, req.Attachment)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "[DOCUMENT]\nbody text\n[/DOCUMENT]\n\nSummarize", req.Messages[0].Content)
}

func TestProcessDocument_InlinesSmallPDF(t *testing.T) {
	p := &fakeProvider{name: "google", documents: true, upload: true}
	svc, dir := setupQA(t, p)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper.pdf"), []byte("%PDF"), 0o644))

	_, err := svc.ProcessDocument(context.Background(), "google", DocumentRequest{
		Model: "m", Filename: "paper.pdf", Prompt: "Summarize",
		History: userTurn("earlier question"),
	})
	require.NoError(t, err)

	req := p.last()
	require.NotNil(t, req.Attachment)
	assert.Equal(t, []byte("%PDF"), req.Attachment.Data)
	assert.Equal(t, "application/pdf", req.Attachment.MIMEType)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "Summarize", req.Messages[1].Content)
	assert.Empty(t, p.uploads)
}

func sparseFile(t *testing.T, path string, size int64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
}

func TestProcessDocument_UploadsLargePDF(t *testing.T) {
	p := &fakeProvider{name: "google", documents: true, upload: true}
	svc, dir := setupQA(t, p)
	sparseFile(t, filepath.Join(dir, "big.pdf"), InlineDocumentLimit+1)

	_, err := svc.ProcessDocument(context.Background(), "google", DocumentRequest{Model: "m", Filename: "big.pdf", Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "file-123", p.last().Attachment.FileRef)
	assert.Nil(t, p.last().Attachment.Data)
}

func TestProcessDocument_Limits(t *testing.T) {
	inlineOnly := &fakeProvider{name: "google", documents: true}
	textOnly := &fakeProvider{name: "deepseek"}
	svc, dir := setupQA(t, inlineOnly, textOnly)
	ctx := context.Background()
	sparseFile(t, filepath.Join(dir, "big.pdf"), InlineDocumentLimit+1)
	sparseFile(t, filepath.Join(dir, "huge.pdf"), MaxDocumentSize+1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small.pdf"), []byte("%PDF"), 0o644))

	_, err := svc.ProcessDocument(ctx, "google", DocumentRequest{Model: "m", Filename: "huge.pdf", Prompt: "q"})
	assert.ErrorIs(t, err, domainerrors.ErrPayloadTooLarge)

	_, err = svc.ProcessDocument(ctx, "google", DocumentRequest{Model: "m", Filename: "big.pdf", Prompt: "q"})
	assert.ErrorIs(t, err, domainerrors.ErrPayloadTooLarge, "no upload API")

	_, err = svc.ProcessDocument(ctx, "deepseek", DocumentRequest{APIKey: "k", Model: "m", Filename: "small.pdf", Prompt: "q"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = svc.ProcessDocument(ctx, "google", DocumentRequest{Model: "m", Filename: "missing.pdf", Prompt: "q"})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = svc.ProcessDocument(ctx, "google", DocumentRequest{Model: "m", Filename: "../small.pdf", Prompt: "q"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	assert.Equal(t, 0, inlineOnly.calls()+textOnly.calls())
}
