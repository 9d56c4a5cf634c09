package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zotairo/zotairo-server/internal/service"
)

func TestChat(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/google/chat", map[string]any{
		"model": "gemini-2.0-flash",
		"history": []map[string]string{
			{"role": "user", "content": "hi"},
			{"role": "model", "content": "hello"},
			{"role": "user", "content": "summarize"},
		},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out service.QAResponse
	decodeData(t, resp, &out)
	assert.Equal(t, "echo: summarize", out.Response)
	assert.Equal(t, "google", out.Provider)
	assert.NotEmpty(t, out.RequestID)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		body     map[string]any
		want     int
		code     string
	}{
		{
			name:     "ends on assistant turn",
			provider: "google",
			body: map[string]any{"model": "m", "history": []map[string]string{
				{"role": "user", "content": "hi"},
				{"role": "assistant", "content": "hello"},
			}},
			want: http.StatusBadRequest,
			code: "VALIDATION",
		},
		{
			name:     "empty history",
			provider: "google",
			body:     map[string]any{"model": "m", "history": []map[string]string{}},
			want:     http.StatusBadRequest,
			code:     "VALIDATION",
		},
		{
			name:     "missing model field",
			provider: "google",
			body:     map[string]any{"history": []map[string]string{{"role": "user", "content": "hi"}}},
			want:     http.StatusUnprocessableEntity,
			code:     "VALIDATION",
		},
		{
			name:     "unknown provider",
			provider: "claude",
			body:     map[string]any{"model": "m", "history": []map[string]string{{"role": "user", "content": "hi"}}},
			want:     http.StatusNotFound,
			code:     "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t)
			resp := ts.api.Post("/api/"+tt.provider+"/chat", tt.body)
			assert.Equal(t, tt.want, resp.Code, resp.Body.String())
			assert.Equal(t, tt.code, decodeError(t, resp).Code)
		})
	}
}

func TestProcessDocument_TextFile(t *testing.T) {
	ts := setupTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(ts.downloads, "paper.txt"), []byte("body text"), 0o644))

	resp := ts.api.Post("/api/google/process-pdf", map[string]any{
		"model":        "gemini-2.0-flash",
		"pdf_filename": "paper.txt",
		"prompt":       "What is this about?",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out service.QAResponse
	decodeData(t, resp, &out)
	assert.Equal(t, "echo: [DOCUMENT]\nbody text\n[/DOCUMENT]\n\nWhat is this about?", out.Response)
}

func TestProcessDocument_MissingFile(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/google/process-pdf", map[string]any{
		"model":        "m",
		"pdf_filename": "absent.pdf",
		"prompt":       "q",
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestProcessDocument_RejectsPaths(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/google/process-pdf", map[string]any{
		"model":        "m",
		"pdf_filename": "../etc/passwd",
		"prompt":       "q",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
