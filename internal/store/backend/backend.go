// Package backend opens the record store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/nadmax/failscope/internal/config"
	"github.com/nadmax/failscope/internal/store"
	"github.com/nadmax/failscope/internal/store/postgres"
	"github.com/nadmax/failscope/internal/store/redisstore"
)

func Open(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		s, err := postgres.New(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case config.BackendRedis:
		return redisstore.New(ctx, cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}
