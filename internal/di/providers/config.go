// Package providers contains dependency injection providers for the zotairo server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/zotairo/zotairo-server/internal/config"
	"github.com/zotairo/zotairo-server/internal/logger"
	"github.com/zotairo/zotairo-server/internal/validation"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Zotairo Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
		"downloads_dir", cfg.Storage.DownloadsDir,
		"database_driver", cfg.Database.Driver,
		"webdav_enabled", cfg.WebDAV.Enabled(),
	)

	return log, nil
}

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
