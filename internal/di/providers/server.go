package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/zotairo/zotairo-server/internal/api"
	"github.com/zotairo/zotairo-server/internal/config"
	"github.com/zotairo/zotairo-server/internal/logger"
	"github.com/zotairo/zotairo-server/internal/ratelimit"
	"github.com/zotairo/zotairo-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	qaLimiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.qaLimiter.Stop()
	return err
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	annotations := do.MustInvoke[*AnnotationStoreHandle](i)
	extraction := do.MustInvoke[*ExtractionServiceHandle](i)

	services := &api.Services{
		Library:     do.MustInvoke[*service.LibraryService](i),
		Item:        do.MustInvoke[*service.ItemService](i),
		Attachment:  do.MustInvoke[*service.AttachmentService](i),
		Extraction:  extraction.ExtractionService,
		QA:          do.MustInvoke[*service.QAService](i),
		Annotations: annotations.Store,
	}

	qaLimiter := api.NewQARateLimiter(cfg.LLM.RequestsPerMinute)

	handler := api.NewServer(services, api.Options{
		Store:         storeHandle.Store,
		Index:         indexHandle.SearchIndex,
		WebDAVEnabled: cfg.WebDAV.Enabled(),
		StaticDir:     cfg.Storage.StaticDir,
		QALimiter:     qaLimiter,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv, qaLimiter: qaLimiter}, nil
}
