package providers

import (
	"github.com/samber/do/v2"

	"github.com/zotairo/zotairo-server/internal/config"
	"github.com/zotairo/zotairo-server/internal/logger"
	"github.com/zotairo/zotairo-server/internal/store/sqldb"
)

// StoreHandle wraps the relational mirror with shutdown capability.
type StoreHandle struct {
	*sqldb.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the relational mirror for the configured driver.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqldb.Open(cfg.Database.Driver, cfg.Database.URL, log.Logger)
	if err != nil {
		return nil, err
	}

	// DSNs may carry credentials, so only the sqlite path is logged.
	if cfg.Database.Driver == sqldb.DriverSQLite {
		log.Info("Database initialized", "driver", cfg.Database.Driver, "path", cfg.Database.URL)
	} else {
		log.Info("Database initialized", "driver", cfg.Database.Driver)
	}

	return &StoreHandle{Store: db}, nil
}
