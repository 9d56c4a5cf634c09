// Package di provides dependency injection configuration for the zotairo server.
package di

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/zotairo/zotairo-server/internal/cache"
	"github.com/zotairo/zotairo-server/internal/config"
	"github.com/zotairo/zotairo-server/internal/di/providers"
	"github.com/zotairo/zotairo-server/internal/llm"
	"github.com/zotairo/zotairo-server/internal/logger"
	"github.com/zotairo/zotairo-server/internal/service"
	"github.com/zotairo/zotairo-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideFileCache)
	do.Provide(injector, providers.ProvideAnnotationStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Remote clients
	do.Provide(injector, providers.ProvideZoteroClient)
	do.Provide(injector, providers.ProvideWebDAVClient)
	do.Provide(injector, providers.ProvideLLMRegistry)

	// Business services
	do.Provide(injector, providers.ProvideLibraryList)
	do.Provide(injector, providers.ProvideMirrorService)
	do.Provide(injector, providers.ProvideLibraryService)
	do.Provide(injector, providers.ProvideItemService)
	do.Provide(injector, providers.ProvideExtractionService)
	do.Provide(injector, providers.ProvideAttachmentService)
	do.Provide(injector, providers.ProvideQAService)

	// Workers
	do.Provide(injector, providers.ProvideFileWatcher)
	do.Provide(injector, providers.ProvideStartupSyncJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	log := do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*cache.FileCache](injector)
	_ = do.MustInvoke[*providers.AnnotationStoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*providers.ZoteroClientHandle](injector)
	_ = do.MustInvoke[*providers.WebDAVClientHandle](injector)
	_ = do.MustInvoke[*llm.Registry](injector)

	// Business services
	_ = do.MustInvoke[*service.LibraryList](injector)
	_ = do.MustInvoke[*service.MirrorService](injector)
	libraries := do.MustInvoke[*service.LibraryService](injector)
	_ = do.MustInvoke[*service.ItemService](injector)
	_ = do.MustInvoke[*providers.ExtractionServiceHandle](injector)
	_ = do.MustInvoke[*service.AttachmentService](injector)
	_ = do.MustInvoke[*service.QAService](injector)

	// The library list must be known before the first request. A remote
	// failure is not fatal: the list is fetched again on demand.
	if err := libraries.Load(context.Background()); err != nil {
		log.Warn("Initial library load failed", "error", err)
	}

	// Workers
	_ = do.MustInvoke[*providers.FileWatcherHandle](injector)
	_ = do.MustInvoke[*providers.StartupSyncJob](injector)

	// Server
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	return nil
}
