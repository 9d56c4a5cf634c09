package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/zotairo/zotairo-server/internal/cache"
	"github.com/zotairo/zotairo-server/internal/domain"
	domainerrors "github.com/zotairo/zotairo-server/internal/errors"
)

// LibraryList is the process-wide last known library list. Readers get a
// copy; concurrent writers are not serialized and the last one wins.
type LibraryList struct {
	mu   sync.RWMutex
	libs []domain.Library
}

// NewLibraryList creates an empty list.
func NewLibraryList() *LibraryList {
	return &LibraryList{}
}

// Get returns a copy of the current list.
func (l *LibraryList) Get() []domain.Library {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.libs)
}

// Set replaces the list.
func (l *LibraryList) Set(libs []domain.Library) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.libs = slices.Clone(libs)
}

// Len returns the number of known libraries.
func (l *LibraryList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.libs)
}

// enumerateLibraries returns the personal library followed by every group.
// When the group listing fails the personal library is still returned, with the error.
func enumerateLibraries(ctx context.Context, z ZoteroAPI) ([]domain.Library, error) {
	user := z.UserScope()
	libs := []domain.Library{{ID: user.ID, Type: domain.LibraryUser, Name: domain.PersonalLibraryName}}

	groups, err := z.ListGroups(ctx)
	if err != nil {
		return libs, fmt.Errorf("list groups: %w", err)
	}
	for _, g := range groups {
		libs = append(libs, domain.Library{ID: g.IDString(), Type: domain.LibraryGroup, Name: g.Data.Name})
	}
	return libs, nil
}

// RefreshResult reports what a refresh did.
type RefreshResult struct {
	Libraries         []domain.Library `json:"libraries"`
	LibrariesError    string           `json:"libraries_error,omitempty"`
	InvalidatedCaches int              `json:"invalidated_caches"`
	Sync              *SyncReport      `json:"sync"`
}

// LibraryService owns the library list and the refresh action.
type LibraryService struct {
	zotero ZoteroAPI
	cache  *cache.FileCache
	list   *LibraryList
	mirror *MirrorService
	logger *slog.Logger
}

// NewLibraryService creates the service. mirror may be nil, in which case Refresh skips the sync.
func NewLibraryService(z ZoteroAPI, fc *cache.FileCache, list *LibraryList, mirror *MirrorService, logger *slog.Logger) *LibraryService {
	return &LibraryService{
		zotero: z,
		cache:  fc,
		list:   list,
		mirror: mirror,
		logger: logger,
	}
}

// Load fills the list from the cache file, fetching from Zotero when the cache is absent or unreadable.
func (s *LibraryService) Load(ctx context.Context) error {
	if libs, ok := s.cache.Libraries(); ok {
		s.list.Set(libs)
		s.logger.Info("libraries loaded from cache", "count", len(libs))
		return nil
	}
	_, err := s.FetchLibraries(ctx)
	return err
}

// Libraries returns the current list, fetching it first when empty.
func (s *LibraryService) Libraries(ctx context.Context) ([]domain.Library, error) {
	if s.list.Len() > 0 {
		return s.list.Get(), nil
	}
	if _, err := s.FetchLibraries(ctx); err != nil {
		return nil, err
	}
	return s.list.Get(), nil
}

// FetchLibraries reads the library list from Zotero, stores it and writes the cache file.
// On failure the previous list is kept.
func (s *LibraryService) FetchLibraries(ctx context.Context) ([]domain.Library, error) {
	libs, err := enumerateLibraries(ctx, s.zotero)
	if err != nil {
		s.logger.Error("failed to fetch libraries, keeping previous list", "error", err)
		return nil, domainerrors.RemoteUnavailable("zotero", err)
	}

	s.list.Set(libs)
	if err := s.cache.PutLibraries(libs); err != nil {
		s.logger.Warn("failed to write library cache", "error", err)
	}
	s.logger.Info("libraries fetched", "count", len(libs))
	return libs, nil
}

// Refresh refetches the library list, purges every item-list cache file and
// re-runs the mirror sync. A failed list fetch keeps the previous list and is
// reported in the result; invalidation and sync still run.
func (s *LibraryService) Refresh(ctx context.Context) (*RefreshResult, error) {
	result := &RefreshResult{}
	libs, err := s.FetchLibraries(ctx)
	if err != nil {
		libs = s.list.Get()
		result.LibrariesError = err.Error()
	}
	result.Libraries = libs

	removed, err := s.cache.InvalidateItems()
	if err != nil {
		s.logger.Warn("item cache invalidation incomplete", "removed", removed, "error", err)
	}
	result.InvalidatedCaches = removed

	if s.mirror != nil {
		report, err := s.mirror.Run(ctx)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "mirror sync failed")
		}
		result.Sync = report
	}
	return result, nil
}
