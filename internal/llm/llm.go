// Package llm talks to the chat-completion APIs used for document question
// answering. Each provider translates the shared Request into its own wire
// shape and reports failures through the error types in errors.go.
package llm

import (
	"context"
	"sort"
	"strings"
)

// Role is a generic conversation role. Providers map it to their own vocabulary.
type Role string

// Roles accepted in conversation history.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Attachment is a binary document attached to the final user turn. Exactly
// one of Data (inline) or FileRef (an id returned by Uploader.Upload) is set.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
	FileRef  string
}

// Request is one completion call. Messages must already be normalized and end on a user turn.
type Request struct {
	APIKey     string
	Model      string
	Messages   []Message
	Attachment *Attachment
}

// Response is the provider's textual answer.
type Response struct {
	Text         string
	FinishReason string
}

// Provider is one chat-completion backend.
type Provider interface {
	Name() string
	// SupportsDocuments reports whether binary attachments are accepted.
	SupportsDocuments() bool
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Uploader is implemented by providers with an out-of-band file upload API.
type Uploader interface {
	Upload(ctx context.Context, apiKey, path, mimeType string) (fileRef string, err error)
}

// NormalizeHistory trims roles and drops turns with an unknown role or no content.
func NormalizeHistory(history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		role := Role(strings.ToLower(strings.TrimSpace(string(m.Role))))
		if role == "model" {
			role = RoleAssistant
		}
		switch role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	return out
}

// EndsWithUser reports whether the last turn is from the user.
func EndsWithUser(history []Message) bool {
	return len(history) > 0 && history[len(history)-1].Role == RoleUser
}

// Registry resolves providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry indexes the given providers by Name.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[strings.ToLower(name)]
	return p, ok
}

// Names lists registered providers in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// AsUploader returns p's upload capability, if it has one.
func AsUploader(p Provider) (Uploader, bool) {
	u, ok := p.(Uploader)
	if !ok {
		return nil, false
	}
	if s, ok := p.(interface{ SupportsUpload() bool }); ok && !s.SupportsUpload() {
		return nil, false
	}
	return u, true
}
