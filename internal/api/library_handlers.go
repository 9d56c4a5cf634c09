package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/zotairo/zotairo-server/internal/domain"
	"github.com/zotairo/zotairo-server/internal/service"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listLibraries",
		Method:      http.MethodGet,
		Path:        "/api/libraries",
		Summary:     "List libraries",
		Description: "Returns the personal library followed by every group library",
		Tags:        []string{"Libraries"},
	}, s.handleListLibraries)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshLibraries",
		Method:      http.MethodPost,
		Path:        "/api/refresh-libraries",
		Summary:     "Refresh libraries",
		Description: "Re-reads the library list, drops cached item listings and runs a full mirror sync",
		Tags:        []string{"Libraries"},
	}, s.handleRefreshLibraries)
}

// LibraryPath identifies a library in the URL.
type LibraryPath struct {
	LibType string `path:"libType" enum:"user,group" doc:"Library kind"`
	LibID   string `path:"libID" minLength:"1" doc:"Zotero user or group id"`
}

// Scope returns the library scope named by the path.
func (p LibraryPath) Scope() domain.Scope {
	return domain.NewScope(domain.LibraryType(p.LibType), p.LibID)
}

// ListLibrariesOutput contains the library list.
type ListLibrariesOutput struct {
	Body []domain.Library
}

// RefreshLibrariesOutput contains the refresh report.
type RefreshLibrariesOutput struct {
	Body *service.RefreshResult
}

func (s *Server) handleListLibraries(ctx context.Context, _ *struct{}) (*ListLibrariesOutput, error) {
	libs, err := s.services.Library.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	return &ListLibrariesOutput{Body: libs}, nil
}

func (s *Server) handleRefreshLibraries(ctx context.Context, _ *struct{}) (*RefreshLibrariesOutput, error) {
	result, err := s.services.Library.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return &RefreshLibrariesOutput{Body: result}, nil
}
