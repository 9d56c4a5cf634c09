package providers

import (
	"github.com/samber/do/v2"

	"github.com/zotairo/zotairo-server/internal/annotation"
	"github.com/zotairo/zotairo-server/internal/cache"
	"github.com/zotairo/zotairo-server/internal/config"
	"github.com/zotairo/zotairo-server/internal/logger"
)

// ProvideFileCache provides the JSON response cache.
func ProvideFileCache(i do.Injector) (*cache.FileCache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	fc, err := cache.New(cfg.Storage.CacheDir, log.Logger)
	if err != nil {
		return nil, err
	}
	log.Info("File cache ready", "path", cfg.Storage.CacheDir)
	return fc, nil
}

// AnnotationStoreHandle wraps the annotation store with shutdown capability.
type AnnotationStoreHandle struct {
	*annotation.Store
}

// Shutdown implements do.Shutdownable.
func (h *AnnotationStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideAnnotationStore opens the badger store for saved PDF annotations.
func ProvideAnnotationStore(i do.Injector) (*AnnotationStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, err := annotation.Open(cfg.AnnotationsPath(), log.Logger)
	if err != nil {
		return nil, err
	}
	log.Info("Annotation store opened", "path", cfg.AnnotationsPath())
	return &AnnotationStoreHandle{Store: st}, nil
}
