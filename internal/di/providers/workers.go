package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/zotairo/zotairo-server/internal/config"
	"github.com/zotairo/zotairo-server/internal/logger"
	"github.com/zotairo/zotairo-server/internal/service"
	"github.com/zotairo/zotairo-server/internal/textextract"
	"github.com/zotairo/zotairo-server/internal/watcher"
)

// FileWatcherHandle wraps the downloads watcher with shutdown capability.
// Watcher is nil when watching is disabled.
type FileWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideFileWatcher watches the downloads directory and feeds new PDFs to the extraction worker.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	extraction := do.MustInvoke[*ExtractionServiceHandle](i)

	if !cfg.Sync.WatchDownloads {
		log.Info("Downloads watcher disabled by configuration")
		return &FileWatcherHandle{}, nil
	}

	if err := os.MkdirAll(cfg.Storage.DownloadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create downloads dir: %w", err)
	}

	w, err := watcher.New(log.Component("watcher"), watcher.Options{
		IgnoreHidden: true,
		Extensions:   []string{textextract.PDFExt},
	})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(cfg.Storage.DownloadsDir); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("Downloads watcher error", "error", err)
		}
	}()

	extraction.Feed(w)

	log.Info("Downloads watcher started", "path", cfg.Storage.DownloadsDir)

	return &FileWatcherHandle{
		Watcher: w,
		cancel:  cancel,
	}, nil
}

// StartupSyncJob runs one mirror sync in the background after boot.
type StartupSyncJob struct {
	mirror *service.MirrorService
}

// Shutdown implements do.Shutdownable. It cancels an in-flight sync.
func (j *StartupSyncJob) Shutdown() error {
	j.mirror.Stop()
	return nil
}

// ProvideStartupSyncJob starts the initial mirror sync when enabled.
func ProvideStartupSyncJob(i do.Injector) (*StartupSyncJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	mirror := do.MustInvoke[*service.MirrorService](i)

	job := &StartupSyncJob{mirror: mirror}
	if !cfg.Sync.OnStartup {
		log.Info("Startup sync disabled by configuration")
		return job, nil
	}

	go func() {
		report, err := mirror.Run(context.Background())
		if err != nil {
			log.Error("Startup sync failed", "error", err)
			return
		}
		log.Info("Startup sync completed",
			"applied", report.Applied,
			"collections", report.Counts.Collections,
			"items", report.Counts.Items,
			"memberships", report.Counts.Memberships,
		)
	}()

	log.Info("Startup sync scheduled")

	return job, nil
}
