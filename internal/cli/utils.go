package cli

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/beesaferoot/rentals/internal/config"
	"github.com/beesaferoot/rentals/internal/logging"
	"github.com/beesaferoot/rentals/internal/store"
)

func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(logging.ParseLevel(cfg.LogLevel)), nil
}

// getDB opens the configured database. Callers close it with store.Close.
func getDB() (*gorm.DB, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := store.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}
	return db, nil
}
