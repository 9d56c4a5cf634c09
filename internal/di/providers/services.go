package providers

import (
	"github.com/samber/do/v2"

	"github.com/zotairo/zotairo-server/internal/cache"
	"github.com/zotairo/zotairo-server/internal/config"
	"github.com/zotairo/zotairo-server/internal/llm"
	"github.com/zotairo/zotairo-server/internal/logger"
	"github.com/zotairo/zotairo-server/internal/service"
	"github.com/zotairo/zotairo-server/internal/validation"
)

// ProvideLibraryList provides the shared in-memory library list.
func ProvideLibraryList(i do.Injector) (*service.LibraryList, error) {
	return service.NewLibraryList(), nil
}

// ProvideMirrorService provides the relational mirror sync.
func ProvideMirrorService(i do.Injector) (*service.MirrorService, error) {
	zoteroHandle := do.MustInvoke[*ZoteroClientHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewMirrorService(zoteroHandle.Client, storeHandle.Store, searchService, log.Component("mirror")), nil
}

// ProvideLibraryService provides library enumeration and refresh.
func ProvideLibraryService(i do.Injector) (*service.LibraryService, error) {
	zoteroHandle := do.MustInvoke[*ZoteroClientHandle](i)
	fc := do.MustInvoke[*cache.FileCache](i)
	list := do.MustInvoke[*service.LibraryList](i)
	mirror := do.MustInvoke[*service.MirrorService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLibraryService(zoteroHandle.Client, fc, list, mirror, log.Logger), nil
}

// ProvideItemService provides the cached Zotero proxy and the mirror queries.
func ProvideItemService(i do.Injector) (*service.ItemService, error) {
	zoteroHandle := do.MustInvoke[*ZoteroClientHandle](i)
	fc := do.MustInvoke[*cache.FileCache](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewItemService(zoteroHandle.Client, fc, storeHandle.Store, searchService, log.Logger), nil
}

// ExtractionServiceHandle wraps the extraction worker with shutdown capability.
type ExtractionServiceHandle struct {
	*service.ExtractionService
}

// Shutdown implements do.Shutdownable.
func (h *ExtractionServiceHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideExtractionService starts the background text extraction worker.
func ProvideExtractionService(i do.Injector) (*ExtractionServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewExtractionService(cfg.Storage.DownloadsDir, log.Component("extraction"))
	svc.Start()

	log.Info("Extraction service started")

	return &ExtractionServiceHandle{ExtractionService: svc}, nil
}

// ProvideAttachmentService provides the attachment fetch chain: WebDAV first when
// configured, then Zotero file storage.
func ProvideAttachmentService(i do.Injector) (*service.AttachmentService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	zoteroHandle := do.MustInvoke[*ZoteroClientHandle](i)
	webdavHandle := do.MustInvoke[*WebDAVClientHandle](i)
	extraction := do.MustInvoke[*ExtractionServiceHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	var sources []service.AttachmentSource
	if webdavHandle.Client != nil {
		sources = append(sources, service.NewWebDAVSource(webdavHandle.Client))
	}
	sources = append(sources, service.NewZoteroSource(zoteroHandle.Client))

	return service.NewAttachmentService(zoteroHandle.Client, sources, cfg.Storage.DownloadsDir, extraction.ExtractionService, log.Component("attachments"))
}

// ProvideQAService provides the LLM question-answering bridge.
func ProvideQAService(i do.Injector) (*service.QAService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	registry := do.MustInvoke[*llm.Registry](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewQAService(registry, cfg.Storage.DownloadsDir, providerKeys(cfg), v, log.Component("qa")), nil
}
