package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultGeminiBaseURL is the Generative Language API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Gemini calls the generateContent endpoint and uploads large files through the Files API.
type Gemini struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewGemini creates the "google" provider.
func NewGemini(cfg GeminiConfig, logger *slog.Logger) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		http:    newHTTPClient(cfg.Timeout),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// Name implements Provider.
func (g *Gemini) Name() string { return "google" }

// SupportsDocuments implements Provider.
func (g *Gemini) SupportsDocuments() bool { return true }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
	FileData   *geminiFileData   `json:"file_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiFileData struct {
	MIMEType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// buildGeminiRequest maps assistant turns to "model" and folds system turns
// into the system instruction.
func buildGeminiRequest(req *Request) geminiRequest {
	var out geminiRequest
	var system []geminiPart
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, geminiPart{Text: m.Content})
		case RoleAssistant:
			out.Contents = append(out.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		case RoleUser:
			out.Contents = append(out.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		out.SystemInstruction = &geminiContent{Parts: system}
	}

	if a := req.Attachment; a != nil && len(out.Contents) > 0 {
		last := &out.Contents[len(out.Contents)-1]
		var part geminiPart
		if a.FileRef != "" {
			part.FileData = &geminiFileData{MIMEType: a.MIMEType, FileURI: a.FileRef}
		} else {
			part.InlineData = &geminiInlineData{MIMEType: a.MIMEType, Data: base64.StdEncoding.EncodeToString(a.Data)}
		}
		last.Parts = append([]geminiPart{part}, last.Parts...)
	}
	return out
}

// Complete implements Provider.
func (g *Gemini) Complete(ctx context.Context, req *Request) (*Response, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(req.Model))
	httpReq, err := newJSONRequest(ctx, http.MethodPost, endpoint, buildGeminiRequest(req))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-goog-api-key", req.APIKey)

	var resp geminiResponse
	if err := sendJSON(g.http, g.Name(), httpReq, &resp); err != nil {
		return nil, err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, &BlockedError{Provider: g.Name(), Reason: resp.PromptFeedback.BlockReason}
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrNoContent
	}

	cand := resp.Candidates[0]
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		if cand.FinishReason == "SAFETY" || cand.FinishReason == "PROHIBITED_CONTENT" {
			return nil, &BlockedError{Provider: g.Name(), Reason: cand.FinishReason}
		}
		return nil, ErrNoContent
	}
	return &Response{Text: text, FinishReason: cand.FinishReason}, nil
}

// Upload implements Uploader with the resumable protocol: a start request
// returns an upload URL, then the bytes are sent and finalized in one call.
// The returned reference is the file URI.
func (g *Gemini) Upload(ctx context.Context, apiKey, path, mimeType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat upload: %w", err)
	}

	start, err := newJSONRequest(ctx, http.MethodPost, g.baseURL+"/upload/v1beta/files",
		map[string]any{"file": map[string]string{"display_name": filepath.Base(path)}})
	if err != nil {
		return "", err
	}
	start.Header.Set("x-goog-api-key", apiKey)
	start.Header.Set("X-Goog-Upload-Protocol", "resumable")
	start.Header.Set("X-Goog-Upload-Command", "start")
	start.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(info.Size(), 10))
	start.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := g.http.Do(start)
	if err != nil {
		return "", &TransportError{Provider: g.Name(), Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Provider: g.Name(), StatusCode: resp.StatusCode, Message: "upload start rejected"}
	}
	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return "", &TransportError{Provider: g.Name(), Err: fmt.Errorf("upload start returned no upload URL")}
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, f)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	put.ContentLength = info.Size()
	put.Header.Set("x-goog-api-key", apiKey)
	put.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	put.Header.Set("X-Goog-Upload-Offset", "0")

	var uploaded struct {
		File struct {
			Name string `json:"name"`
			URI  string `json:"uri"`
		} `json:"file"`
	}
	if err := sendJSON(g.http, g.Name(), put, &uploaded); err != nil {
		return "", err
	}
	if uploaded.File.URI == "" {
		return "", &TransportError{Provider: g.Name(), Err: fmt.Errorf("upload returned no file uri")}
	}

	g.logger.Info("uploaded file to gemini", "name", uploaded.File.Name, "bytes", info.Size())
	return uploaded.File.URI, nil
}
