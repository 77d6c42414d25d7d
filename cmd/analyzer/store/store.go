// Package store selects the report storage backend from configuration.
package store

import (
	"fmt"
	"log/slog"

	"github.com/riiali/green-microbench/cmd/analyzer/config"
	"github.com/riiali/green-microbench/pkg/storage"
)

// New builds the configured storage backend.
func New(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage {
	case "redis":
		logger.Info("using redis report store", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
		s, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		return s, nil

	case "memory":
		logger.Info("using in-memory report store")
		return storage.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
