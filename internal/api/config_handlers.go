package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerConfigRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getConfig",
		Method:      http.MethodGet,
		Path:        "/api/config",
		Summary:     "Server capabilities",
		Description: "Reports which LLM providers have a default key and whether the WebDAV mirror is configured. Keys are never returned.",
		Tags:        []string{"Config"},
	}, s.handleGetConfig)
}

// ConfigResponse is the capability report.
type ConfigResponse struct {
	Providers     map[string]bool `json:"providers" doc:"Provider name to whether a default API key is configured"`
	WebDAVEnabled bool            `json:"webdav_enabled" doc:"Whether attachments are fetched from the WebDAV mirror first"`
}

// ConfigOutput wraps the capability report for Huma.
type ConfigOutput struct {
	Body ConfigResponse
}

func (s *Server) handleGetConfig(_ context.Context, _ *struct{}) (*ConfigOutput, error) {
	providers := make(map[string]bool)
	if qa := s.services.QA; qa != nil {
		for _, name := range qa.Providers() {
			providers[name] = qa.HasKey(name)
		}
	}
	return &ConfigOutput{Body: ConfigResponse{
		Providers:     providers,
		WebDAVEnabled: s.opts.WebDAVEnabled,
	}}, nil
}
