package main

import (
	"fmt"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/db"
	"github.com/zulandar/signalbox/internal/store"
)

// openStore loads the config file and opens the release store it points at.
func openStore(configPath string) (*config.Config, *store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.New(gormDB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}
