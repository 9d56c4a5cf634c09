package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/zotairo/zotairo-server/internal/cache"
	"github.com/zotairo/zotairo-server/internal/domain"
	domainerrors "github.com/zotairo/zotairo-server/internal/errors"
	"github.com/zotairo/zotairo-server/internal/search"
	"github.com/zotairo/zotairo-server/internal/store"
	"github.com/zotairo/zotairo-server/internal/zotero"
)

// NoteView is a note child with its HTML also rendered as Markdown.
type NoteView struct {
	Key      string          `json:"key"`
	Data     zotero.ItemData `json:"data"`
	Meta     zotero.ItemMeta `json:"meta"`
	Markdown string          `json:"markdown"`
}

// NotesResult splits an item's children into notes and annotations.
type NotesResult struct {
	Notes       []NoteView    `json:"notes"`
	Annotations []zotero.Item `json:"annotations"`
}

// StoredCollection is a mirrored collection as served.
type StoredCollection struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

// ItemService serves item and collection reads, live from Zotero through the
// file cache, or from the relational mirror.
type ItemService struct {
	zotero  ZoteroAPI
	cache   *cache.FileCache
	store   store.Reader
	search  *SearchService
	checker attachmentChecker
	logger  *slog.Logger
}

// NewItemService creates the service. search may be nil.
func NewItemService(z ZoteroAPI, fc *cache.FileCache, r store.Reader, search *SearchService, logger *slog.Logger) *ItemService {
	return &ItemService{
		zotero:  z,
		cache:   fc,
		store:   r,
		search:  search,
		checker: attachmentChecker{zotero: z, logger: logger},
		logger:  logger,
	}
}

// LibraryItems returns a library's top-level items.
func (s *ItemService) LibraryItems(ctx context.Context, scope domain.Scope) ([]ItemSummary, error) {
	return s.cachedItems(ctx, scope, "")
}

// CollectionItems returns the items of one collection.
func (s *ItemService) CollectionItems(ctx context.Context, scope domain.Scope, collectionKey string) ([]ItemSummary, error) {
	return s.cachedItems(ctx, scope, collectionKey)
}

// cachedItems serves a cache hit as stored; on a miss it fetches, formats and writes through.
func (s *ItemService) cachedItems(ctx context.Context, scope domain.Scope, collectionKey string) ([]ItemSummary, error) {
	var cached []ItemSummary
	if s.cache.Items(scope, collectionKey, &cached) {
		return cached, nil
	}

	var (
		items []zotero.Item
		err   error
	)
	if collectionKey == "" {
		items, err = s.zotero.ListTopItems(ctx, scope, zotero.TopLevelFilter)
	} else {
		items, err = s.zotero.ListCollectionItems(ctx, scope, collectionKey, zotero.TopLevelFilter)
	}
	if err != nil {
		s.logger.Error("failed to fetch items", "scope", scope.String(), "collection", collectionKey, "error", err)
		return nil, domainerrors.RemoteUnavailable("zotero", err)
	}

	result := s.checker.summarize(ctx, scope, items)
	if err := s.cache.PutItems(scope, collectionKey, result); err != nil {
		s.logger.Warn("failed to write item cache", "scope", scope.String(), "collection", collectionKey, "error", err)
	}
	return result, nil
}

// ItemDetail fetches one item and its attachments live. Any remote failure is reported as not found.
func (s *ItemService) ItemDetail(ctx context.Context, scope domain.Scope, key string) (*ItemDetail, error) {
	item, err := s.zotero.GetItem(ctx, scope, key)
	if err != nil {
		s.logger.Debug("item lookup failed", "scope", scope.String(), "key", key, "error", err)
		return nil, domainerrors.NotFound("item not found").WithCause(err)
	}
	children, err := s.zotero.ListChildren(ctx, scope, key)
	if err != nil {
		return nil, domainerrors.NotFound("item not found").WithCause(err)
	}

	d := item.Data
	return &ItemDetail{
		Key:          cmp.Or(d.Key, item.Key),
		Title:        d.Title,
		ItemType:     d.ItemType,
		Creators:     FormatCreators(d.Creators),
		Date:         d.Date,
		Tags:         tagNames(d.Tags),
		Attachments:  attachmentsOf(children),
		AbstractNote: d.AbstractNote,
		URL:          d.URL,
	}, nil
}

// Notes returns an item's notes (with Markdown) and annotations.
func (s *ItemService) Notes(ctx context.Context, scope domain.Scope, key string) (*NotesResult, error) {
	children, err := s.zotero.ListChildren(ctx, scope, key)
	if err != nil {
		if zotero.IsNotFound(err) {
			return nil, domainerrors.NotFound("item not found").WithCause(err)
		}
		return nil, domainerrors.RemoteUnavailable("zotero", err)
	}

	res := &NotesResult{Notes: []NoteView{}, Annotations: []zotero.Item{}}
	for _, c := range children {
		switch c.Data.ItemType {
		case zotero.ItemTypeNote:
			res.Notes = append(res.Notes, NoteView{Key: c.Key, Data: c.Data, Meta: c.Meta, Markdown: noteMarkdown(c.Data.Note)})
		case zotero.ItemTypeAnnotation:
			res.Annotations = append(res.Annotations, c)
		}
	}
	return res, nil
}

func sortCollections(colls []zotero.Collection) []zotero.Collection {
	slices.SortStableFunc(colls, func(a, b zotero.Collection) int {
		return strings.Compare(strings.ToLower(a.Data.Name), strings.ToLower(b.Data.Name))
	})
	return colls
}

// Collections lists a library's collections live, sorted by lower-cased name.
func (s *ItemService) Collections(ctx context.Context, scope domain.Scope) ([]zotero.Collection, error) {
	colls, err := s.zotero.ListCollections(ctx, scope)
	if err != nil {
		s.logger.Error("failed to fetch collections", "scope", scope.String(), "error", err)
		return nil, domainerrors.RemoteUnavailable("zotero", err)
	}
	return sortCollections(colls), nil
}

// Subcollections lists a collection's children live, sorted by lower-cased name.
func (s *ItemService) Subcollections(ctx context.Context, scope domain.Scope, key string) ([]zotero.Collection, error) {
	colls, err := s.zotero.ListSubcollections(ctx, scope, key)
	if err != nil {
		s.logger.Error("failed to fetch subcollections", "scope", scope.String(), "key", key, "error", err)
		return nil, domainerrors.RemoteUnavailable("zotero", err)
	}
	return sortCollections(colls), nil
}

// StoredCollections lists every mirrored collection of a library.
func (s *ItemService) StoredCollections(ctx context.Context, scope domain.Scope) ([]StoredCollection, error) {
	colls, err := s.store.ListCollections(ctx, scope)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list collections")
	}
	out := make([]StoredCollection, 0, len(colls))
	for _, c := range colls {
		sc := StoredCollection{ID: c.ID, Name: c.Name}
		if c.ParentID != "" {
			sc.ParentID = &c.ParentID
		}
		out = append(out, sc)
	}
	return out, nil
}

// StoredSubcollections lists a mirrored collection's children with their own child counts.
func (s *ItemService) StoredSubcollections(ctx context.Context, scope domain.Scope, parentID string) ([]domain.SubcollectionInfo, error) {
	subs, err := s.store.ListSubcollections(ctx, scope, parentID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list subcollections")
	}
	return subs, nil
}

// StoredCollectionItems returns the bare rows of a collection's direct members.
func (s *ItemService) StoredCollectionItems(ctx context.Context, scope domain.Scope, collectionID string) ([]ItemRow, error) {
	items, err := s.store.ListItems(ctx, scope, collectionID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list collection items")
	}
	return itemRows(items), nil
}

// StoredAllItems returns every mirrored item of a library, formatted, with attachment presence.
func (s *ItemService) StoredAllItems(ctx context.Context, scope domain.Scope) ([]StoredItem, error) {
	items, err := s.store.ListAllItems(ctx, scope)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list items")
	}
	return s.checker.storedItems(ctx, scope, items), nil
}

// SearchStoredItems matches titles by substring, case-insensitively.
func (s *ItemService) SearchStoredItems(ctx context.Context, scope domain.Scope, query string) ([]ItemRow, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domainerrors.Validation("query is required")
	}
	items, err := s.store.SearchItems(ctx, scope, query)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search items")
	}
	return itemRows(items), nil
}

// FullTextSearch queries the full-text index, scoped to one library.
func (s *ItemService) FullTextSearch(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	if s.search == nil {
		return nil, domainerrors.Internal("full-text search is not configured")
	}
	return s.search.Search(ctx, params)
}

// StoredItemDetail returns a mirrored item with its live attachment list.
// A failed attachment lookup leaves the list empty.
func (s *ItemService) StoredItemDetail(ctx context.Context, scope domain.Scope, itemID string) (*StoredItemDetail, error) {
	it, err := s.store.GetItem(ctx, scope, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("item not found in mirror").WithCause(err)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "get item")
	}

	attachments := []AttachmentInfo{}
	children, err := s.zotero.ListChildren(ctx, scope, itemID)
	if err != nil {
		s.logger.Warn("attachment lookup failed", "scope", scope.String(), "item", itemID, "error", err)
	} else {
		attachments = attachmentsOf(children)
	}

	detail := &StoredItemDetail{StoredItem: storedItem(*it), Attachments: attachments}
	detail.HasAttachment = len(attachments) > 0
	return detail, nil
}

// visitSet tracks what a recursive collection walk has already seen.
type visitSet struct {
	items       map[string]struct{}
	collections map[string]struct{}
}

func newVisitSet() *visitSet {
	return &visitSet{items: make(map[string]struct{}), collections: make(map[string]struct{})}
}

// collectItems appends the items of collectionID not yet in seen, then descends
// into child collections when recursive. Each collection is visited once.
func collectItems(ctx context.Context, r store.Reader, scope domain.Scope, collectionID string, recursive bool, seen *visitSet, out []domain.Item) ([]domain.Item, error) {
	if _, done := seen.collections[collectionID]; done {
		return out, nil
	}
	seen.collections[collectionID] = struct{}{}

	items, err := r.ListItems(ctx, scope, collectionID)
	if err != nil {
		return out, err
	}
	for _, it := range items {
		if _, dup := seen.items[it.ID]; dup {
			continue
		}
		seen.items[it.ID] = struct{}{}
		out = append(out, it)
	}

	if !recursive {
		return out, nil
	}
	children, err := r.ListChildCollectionIDs(ctx, scope, collectionID)
	if err != nil {
		return out, err
	}
	for _, child := range children {
		if out, err = collectItems(ctx, r, scope, child, recursive, seen, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

// ItemsRecursive returns the items of a collection and, when recursive, of all
// its descendants, each item once.
func (s *ItemService) ItemsRecursive(ctx context.Context, scope domain.Scope, rootID string, recursive bool) ([]StoredItem, error) {
	items, err := collectItems(ctx, s.store, scope, rootID, recursive, newVisitSet(), nil)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "collect collection items")
	}
	return s.checker.storedItems(ctx, scope, items), nil
}
