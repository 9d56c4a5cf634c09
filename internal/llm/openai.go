package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Base URLs of the OpenAI-compatible providers.
const (
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultDeepSeekBaseURL   = "https://api.deepseek.com"
)

// ChatCompletionsConfig configures an OpenAI-compatible provider.
type ChatCompletionsConfig struct {
	Name    string
	BaseURL string
	Timeout time.Duration

	// Documents enables binary attachments as inline "file" parts.
	Documents bool
	// Files enables the /files upload endpoint for large attachments.
	Files bool
}

// ChatCompletions speaks the /chat/completions dialect shared by OpenAI,
// OpenRouter and DeepSeek.
type ChatCompletions struct {
	cfg     ChatCompletionsConfig
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewChatCompletions creates a provider from cfg.
func NewChatCompletions(cfg ChatCompletionsConfig, logger *slog.Logger) *ChatCompletions {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatCompletions{
		cfg:     cfg,
		http:    newHTTPClient(cfg.Timeout),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// NewOpenAI creates the "openai" provider with inline and uploaded documents.
func NewOpenAI(baseURL string, timeout time.Duration, logger *slog.Logger) *ChatCompletions {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return NewChatCompletions(ChatCompletionsConfig{Name: "openai", BaseURL: baseURL, Timeout: timeout, Documents: true, Files: true}, logger)
}

// NewOpenRouter creates the "openrouter" provider with inline documents only.
func NewOpenRouter(baseURL string, timeout time.Duration, logger *slog.Logger) *ChatCompletions {
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	return NewChatCompletions(ChatCompletionsConfig{Name: "openrouter", BaseURL: baseURL, Timeout: timeout, Documents: true}, logger)
}

// NewDeepSeek creates the "deepseek" provider, which accepts text only.
func NewDeepSeek(baseURL string, timeout time.Duration, logger *slog.Logger) *ChatCompletions {
	if baseURL == "" {
		baseURL = DefaultDeepSeekBaseURL
	}
	return NewChatCompletions(ChatCompletionsConfig{Name: "deepseek", BaseURL: baseURL, Timeout: timeout}, logger)
}

// Name implements Provider.
func (c *ChatCompletions) Name() string { return c.cfg.Name }

// SupportsDocuments implements Provider.
func (c *ChatCompletions) SupportsDocuments() bool { return c.cfg.Documents }

// SupportsUpload reports whether Upload may be called.
func (c *ChatCompletions) SupportsUpload() bool { return c.cfg.Files }

type chatFile struct {
	Filename string `json:"filename,omitempty"`
	FileData string `json:"file_data,omitempty"`
	FileID   string `json:"file_id,omitempty"`
}

type chatPart struct {
	Type string    `json:"type"`
	Text string    `json:"text,omitempty"`
	File *chatFile `json:"file,omitempty"`
}

// chatMessage content is a string, or a part list for the turn carrying an attachment.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func buildChatRequest(req *Request) chatRequest {
	out := chatRequest{Model: req.Model, Messages: make([]chatMessage, 0, len(req.Messages))}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	if a := req.Attachment; a != nil && len(out.Messages) > 0 {
		last := &out.Messages[len(out.Messages)-1]
		text, _ := last.Content.(string)
		file := &chatFile{Filename: a.Filename}
		if a.FileRef != "" {
			file = &chatFile{FileID: a.FileRef}
		} else {
			file.FileData = "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
		}
		last.Content = []chatPart{
			{Type: "file", File: file},
			{Type: "text", Text: text},
		}
	}
	return out
}

// Complete implements Provider.
func (c *ChatCompletions) Complete(ctx context.Context, req *Request) (*Response, error) {
	if req.Attachment != nil && !c.cfg.Documents {
		return nil, &APIError{Provider: c.Name(), StatusCode: http.StatusBadRequest, Message: "provider does not accept documents"}
	}

	httpReq, err := newJSONRequest(ctx, http.MethodPost, c.baseURL+"/chat/completions", buildChatRequest(req))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	var resp chatResponse
	if err := sendJSON(c.http, c.Name(), httpReq, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoContent
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, &BlockedError{Provider: c.Name(), Reason: choice.FinishReason}
	}
	if choice.Message.Content == "" && choice.Message.Refusal != "" {
		return nil, &BlockedError{Provider: c.Name(), Reason: choice.Message.Refusal}
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, ErrNoContent
	}
	return &Response{Text: choice.Message.Content, FinishReason: choice.FinishReason}, nil
}

// Upload implements Uploader through POST /files with purpose "user_data".
// The body is streamed so large documents are never held in memory.
func (c *ChatCompletions) Upload(ctx context.Context, apiKey, path, mimeType string) (string, error) {
	if !c.cfg.Files {
		return "", fmt.Errorf("%s: file uploads not supported", c.Name())
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			if err := mw.WriteField("purpose", "user_data"); err != nil {
				return err
			}
			part, err := mw.CreateFormFile("file", filepath.Base(path))
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, f); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", pr)
	if err != nil {
		pr.Close()
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+apiKey)

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := sendJSON(c.http, c.Name(), req, &uploaded); err != nil {
		pr.Close()
		return "", err
	}
	if uploaded.ID == "" {
		return "", &TransportError{Provider: c.Name(), Err: fmt.Errorf("upload returned no file id")}
	}

	c.logger.Info("uploaded file", "provider", c.Name(), "file_id", uploaded.ID, "mime_type", mimeType)
	return uploaded.ID, nil
}
