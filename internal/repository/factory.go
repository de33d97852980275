package repository

import (
	"fmt"

	"zelyx-order-tracker/internal/client"
	"zelyx-order-tracker/internal/config"
)

// CreateDeadlineRepository picks the deadline backend from configuration and
// returns a closer for the underlying connection.
func CreateDeadlineRepository(cfg *config.Storage) (DeadlineRepository, func() error, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryDeadlineRepository(), func() error { return nil }, nil

	case "sqlite", "mysql":
		db, err := client.InitDatabaseClient(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return NewDeadlineRepository(db), sqlDB.Close, nil

	case "redis":
		rdb, err := client.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisDeadlineRepository(rdb, cfg.KeyPrefix), rdb.Close, nil

	case "bolt":
		db, err := client.NewBoltClient(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		repo, err := NewBoltDeadlineRepository(db, cfg.KeyPrefix)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, db.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
