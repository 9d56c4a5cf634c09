package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/zotairo/zotairo-server/internal/domain"
	"github.com/zotairo/zotairo-server/internal/search"
	"github.com/zotairo/zotairo-server/internal/service"
)

// mirrorPrefix serves reads from the relational mirror instead of Zotero.
const mirrorPrefix = "/api/sqlite/libraries/{libType}/{libID}"

func (s *Server) registerMirrorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listStoredCollections",
		Method:      http.MethodGet,
		Path:        mirrorPrefix + "/collections",
		Summary:     "List mirrored collections",
		Tags:        []string{"Mirror"},
	}, s.handleListStoredCollections)

	huma.Register(s.api, huma.Operation{
		OperationID: "listStoredItems",
		Method:      http.MethodGet,
		Path:        mirrorPrefix + "/items",
		Summary:     "List mirrored items",
		Description: "Returns every mirrored item of the library with display fields and attachment flags",
		Tags:        []string{"Mirror"},
	}, s.handleListStoredItems)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchStoredItems",
		Method:      http.MethodGet,
		Path:        mirrorPrefix + "/items/search",
		Summary:     "Search mirrored titles",
		Description: "Case-insensitive substring match on item titles",
		Tags:        []string{"Mirror"},
	}, s.handleSearchStoredItems)

	huma.Register(s.api, huma.Operation{
		OperationID: "fullTextSearch",
		Method:      http.MethodGet,
		Path:        mirrorPrefix + "/items/fulltext",
		Summary:     "Full-text search",
		Description: "Ranked search over titles, creators, abstracts and tags",
		Tags:        []string{"Mirror"},
	}, s.handleFullTextSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "getStoredItem",
		Method:      http.MethodGet,
		Path:        mirrorPrefix + "/items/{itemID}",
		Summary:     "Get mirrored item",
		Tags:        []string{"Mirror"},
	}, s.handleGetStoredItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "listStoredSubcollections",
		Method:      http.MethodGet,
		Path:        mirrorPrefix + "/collections/{collectionID}/subcollections",
		Summary:     "List mirrored subcollections",
		Tags:        []string{"Mirror"},
	}, s.handleListStoredSubcollections)

	huma.Register(s.api, huma.Operation{
		OperationID: "listStoredCollectionItems",
		Method:      http.MethodGet,
		Path:        mirrorPrefix + "/collections/{collectionID}/items",
		Summary:     "List mirrored collection items",
		Tags:        []string{"Mirror"},
	}, s.handleListStoredCollectionItems)

	huma.Register(s.api, huma.Operation{
		OperationID: "listStoredItemsRecursive",
		Method:      http.MethodGet,
		Path:        mirrorPrefix + "/collections/{collectionID}/items_recursive",
		Summary:     "List items of a collection tree",
		Description: "Returns the items of the collection and, by default, of every descendant, each item once",
		Tags:        []string{"Mirror"},
	}, s.handleListStoredItemsRecursive)
}

// StoredItemInput names one mirrored item.
type StoredItemInput struct {
	LibraryPath
	ItemID string `path:"itemID" minLength:"1" doc:"Mirrored item id (the Zotero key)"`
}

// StoredCollectionInput names one mirrored collection.
type StoredCollectionInput struct {
	LibraryPath
	CollectionID string `path:"collectionID" minLength:"1" doc:"Mirrored collection id (the Zotero key)"`
}

// RecursiveItemsInput controls descendant traversal.
type RecursiveItemsInput struct {
	StoredCollectionInput
	Recursive bool `query:"recursive" default:"true" doc:"Include items of every descendant collection"`
}

// TitleSearchInput carries the substring query.
type TitleSearchInput struct {
	LibraryPath
	Query string `query:"q" doc:"Title substring"`
}

// FullTextSearchInput carries the ranked search parameters.
type FullTextSearchInput struct {
	LibraryPath
	Query    string `query:"q" doc:"Search terms"`
	ItemType string `query:"item_type" doc:"Exact item type filter"`
	MinYear  int    `query:"min_year" minimum:"0" doc:"Earliest publication year"`
	MaxYear  int    `query:"max_year" minimum:"0" doc:"Latest publication year"`
	Limit    int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Page size"`
	Offset   int    `query:"offset" minimum:"0" doc:"Hits to skip"`
}

// StoredCollectionsOutput contains mirrored collections.
type StoredCollectionsOutput struct {
	Body []service.StoredCollection
}

// StoredItemsOutput contains mirrored items with display fields.
type StoredItemsOutput struct {
	Body []service.StoredItem
}

// ItemRowsOutput contains bare mirrored item rows.
type ItemRowsOutput struct {
	Body []service.ItemRow
}

// StoredItemOutput contains one mirrored item.
type StoredItemOutput struct {
	Body *service.StoredItemDetail
}

// SubcollectionsOutput contains child collection summaries.
type SubcollectionsOutput struct {
	Body []domain.SubcollectionInfo
}

// FullTextSearchOutput contains one page of hits.
type FullTextSearchOutput struct {
	Body *search.SearchResult
}

func (s *Server) handleListStoredCollections(ctx context.Context, input *LibraryPath) (*StoredCollectionsOutput, error) {
	colls, err := s.services.Item.StoredCollections(ctx, input.Scope())
	if err != nil {
		return nil, err
	}
	return &StoredCollectionsOutput{Body: colls}, nil
}

func (s *Server) handleListStoredItems(ctx context.Context, input *LibraryPath) (*StoredItemsOutput, error) {
	items, err := s.services.Item.StoredAllItems(ctx, input.Scope())
	if err != nil {
		return nil, err
	}
	return &StoredItemsOutput{Body: items}, nil
}

func (s *Server) handleSearchStoredItems(ctx context.Context, input *TitleSearchInput) (*ItemRowsOutput, error) {
	rows, err := s.services.Item.SearchStoredItems(ctx, input.Scope(), input.Query)
	if err != nil {
		return nil, err
	}
	return &ItemRowsOutput{Body: rows}, nil
}

func (s *Server) handleFullTextSearch(ctx context.Context, input *FullTextSearchInput) (*FullTextSearchOutput, error) {
	result, err := s.services.Item.FullTextSearch(ctx, search.SearchParams{
		Scope:    input.Scope(),
		Query:    input.Query,
		ItemType: input.ItemType,
		MinYear:  input.MinYear,
		MaxYear:  input.MaxYear,
		Limit:    input.Limit,
		Offset:   input.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &FullTextSearchOutput{Body: result}, nil
}

func (s *Server) handleGetStoredItem(ctx context.Context, input *StoredItemInput) (*StoredItemOutput, error) {
	item, err := s.services.Item.StoredItemDetail(ctx, input.Scope(), input.ItemID)
	if err != nil {
		return nil, err
	}
	return &StoredItemOutput{Body: item}, nil
}

func (s *Server) handleListStoredSubcollections(ctx context.Context, input *StoredCollectionInput) (*SubcollectionsOutput, error) {
	subs, err := s.services.Item.StoredSubcollections(ctx, input.Scope(), input.CollectionID)
	if err != nil {
		return nil, err
	}
	return &SubcollectionsOutput{Body: subs}, nil
}

func (s *Server) handleListStoredCollectionItems(ctx context.Context, input *StoredCollectionInput) (*ItemRowsOutput, error) {
	rows, err := s.services.Item.StoredCollectionItems(ctx, input.Scope(), input.CollectionID)
	if err != nil {
		return nil, err
	}
	return &ItemRowsOutput{Body: rows}, nil
}

func (s *Server) handleListStoredItemsRecursive(ctx context.Context, input *RecursiveItemsInput) (*StoredItemsOutput, error) {
	items, err := s.services.Item.ItemsRecursive(ctx, input.Scope(), input.CollectionID, input.Recursive)
	if err != nil {
		return nil, err
	}
	return &StoredItemsOutput{Body: items}, nil
}
