// store/open.go
package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/maous26/GG2-sub000/config"
)

// Open builds the backend selected in cfg.
func Open(cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "badger":
		return OpenBadger(BadgerConfig{
			Path:       cfg.BadgerPath,
			InMemory:   cfg.InMemory,
			SyncWrites: true,
			Logger:     logger,
			GCInterval: 5 * time.Minute,
		})
	case "consul":
		return NewConsulStore(ConsulConfig{
			Addr:          cfg.ConsulAddr,
			Prefix:        cfg.KeyPrefix,
			Logger:        logger,
			SweepInterval: 10 * time.Minute,
		})
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
