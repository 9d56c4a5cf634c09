package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/zotairo/zotairo-server/internal/service"
	"github.com/zotairo/zotairo-server/internal/zotero"
)

func (s *Server) registerItemRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listLibraryItems",
		Method:      http.MethodGet,
		Path:        "/api/libraries/{libType}/{libID}/items",
		Summary:     "List top-level items",
		Description: "Returns the library's top-level items, served from the file cache when present",
		Tags:        []string{"Items"},
	}, s.handleListLibraryItems)

	huma.Register(s.api, huma.Operation{
		OperationID: "getItem",
		Method:      http.MethodGet,
		Path:        "/api/libraries/{libType}/{libID}/items/{itemKey}",
		Summary:     "Get item",
		Description: "Returns one item with its PDF attachments",
		Tags:        []string{"Items"},
	}, s.handleGetItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "getItemNotes",
		Method:      http.MethodGet,
		Path:        "/api/libraries/{libType}/{libID}/items/{itemKey}/notes",
		Summary:     "Get item notes",
		Description: "Returns child notes, with markdown renderings, and child annotations",
		Tags:        []string{"Items"},
	}, s.handleGetItemNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "listCollections",
		Method:      http.MethodGet,
		Path:        "/api/libraries/{libType}/{libID}/collections",
		Summary:     "List collections",
		Tags:        []string{"Collections"},
	}, s.handleListCollections)

	huma.Register(s.api, huma.Operation{
		OperationID: "listSubcollections",
		Method:      http.MethodGet,
		Path:        "/api/libraries/{libType}/{libID}/collections/{collectionKey}/subcollections",
		Summary:     "List subcollections",
		Tags:        []string{"Collections"},
	}, s.handleListSubcollections)

	huma.Register(s.api, huma.Operation{
		OperationID: "listCollectionItems",
		Method:      http.MethodGet,
		Path:        "/api/libraries/{libType}/{libID}/collections/{collectionKey}/items",
		Summary:     "List collection items",
		Description: "Returns the collection's top-level items, served from the file cache when present",
		Tags:        []string{"Collections"},
	}, s.handleListCollectionItems)
}

// ItemPathInput names one item of a library.
type ItemPathInput struct {
	LibraryPath
	ItemKey string `path:"itemKey" minLength:"1" doc:"Zotero item key"`
}

// CollectionPathInput names one collection of a library.
type CollectionPathInput struct {
	LibraryPath
	CollectionKey string `path:"collectionKey" minLength:"1" doc:"Zotero collection key"`
}

// ItemListOutput contains a live item listing.
type ItemListOutput struct {
	Body []service.ItemSummary
}

// ItemDetailOutput contains one item.
type ItemDetailOutput struct {
	Body *service.ItemDetail
}

// NotesOutput contains an item's notes and annotations.
type NotesOutput struct {
	Body *service.NotesResult
}

// CollectionListOutput contains live collections.
type CollectionListOutput struct {
	Body []zotero.Collection
}

func (s *Server) handleListLibraryItems(ctx context.Context, input *LibraryPath) (*ItemListOutput, error) {
	items, err := s.services.Item.LibraryItems(ctx, input.Scope())
	if err != nil {
		return nil, err
	}
	return &ItemListOutput{Body: items}, nil
}

func (s *Server) handleGetItem(ctx context.Context, input *ItemPathInput) (*ItemDetailOutput, error) {
	item, err := s.services.Item.ItemDetail(ctx, input.Scope(), input.ItemKey)
	if err != nil {
		return nil, err
	}
	return &ItemDetailOutput{Body: item}, nil
}

func (s *Server) handleGetItemNotes(ctx context.Context, input *ItemPathInput) (*NotesOutput, error) {
	notes, err := s.services.Item.Notes(ctx, input.Scope(), input.ItemKey)
	if err != nil {
		return nil, err
	}
	return &NotesOutput{Body: notes}, nil
}

func (s *Server) handleListCollections(ctx context.Context, input *LibraryPath) (*CollectionListOutput, error) {
	colls, err := s.services.Item.Collections(ctx, input.Scope())
	if err != nil {
		return nil, err
	}
	return &CollectionListOutput{Body: colls}, nil
}

func (s *Server) handleListSubcollections(ctx context.Context, input *CollectionPathInput) (*CollectionListOutput, error) {
	colls, err := s.services.Item.Subcollections(ctx, input.Scope(), input.CollectionKey)
	if err != nil {
		return nil, err
	}
	return &CollectionListOutput{Body: colls}, nil
}

func (s *Server) handleListCollectionItems(ctx context.Context, input *CollectionPathInput) (*ItemListOutput, error) {
	items, err := s.services.Item.CollectionItems(ctx, input.Scope(), input.CollectionKey)
	if err != nil {
		return nil, err
	}
	return &ItemListOutput{Body: items}, nil
}
