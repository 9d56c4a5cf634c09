package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zotairo/zotairo-server/internal/domain"
	domainerrors "github.com/zotairo/zotairo-server/internal/errors"
	"github.com/zotairo/zotairo-server/internal/search"
	"github.com/zotairo/zotairo-server/internal/zotero"
)

// SearchService bridges the full-text index with the mirror.
type SearchService struct {
	index  *search.SearchIndex
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, logger *slog.Logger) *SearchService {
	return &SearchService{index: index, logger: logger}
}

// Search runs a scoped full-text query. An empty query with no filters is a validation error.
func (s *SearchService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	if strings.TrimSpace(params.Query) == "" && params.ItemType == "" && params.MinYear == 0 && params.MaxYear == 0 {
		return nil, domainerrors.Validation("query is required")
	}
	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search failed")
	}
	return res, nil
}

// Rebuild replaces the index contents with the snapshot's items.
func (s *SearchService) Rebuild(snap *domain.Snapshot) error {
	docs := make([]*search.ItemDocument, 0, len(snap.Items))
	for _, it := range snap.Items {
		docs = append(docs, buildItemDocument(it))
	}
	if err := s.index.Replace(docs); err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	}
	s.logger.Debug("search index rebuilt", "documents", len(docs))
	return nil
}

// buildItemDocument converts a mirrored item to its index document.
func buildItemDocument(it domain.Item) *search.ItemDocument {
	var d zotero.ItemData
	if len(it.Metadata) > 0 {
		_ = json.Unmarshal(it.Metadata, &d)
	}
	title := it.Title
	if title == "" {
		title = d.Title
	}
	return &search.ItemDocument{
		ID:          search.DocumentID(it.Scope, it.ID),
		LibraryType: string(it.Type),
		LibraryID:   it.Scope.ID,
		Key:         it.ID,
		ItemType:    d.ItemType,
		Title:       title,
		Creators:    FormatCreators(d.Creators),
		Abstract:    d.AbstractNote,
		Publication: publicationTitle(d),
		Tags:        tagNames(d.Tags),
		Year:        search.ParseYear(d.Date),
	}
}
