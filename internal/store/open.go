package store

import (
	"context"
	"fmt"

	"petling/internal/config"
	"petling/internal/pet"
)

// Open builds the configured document store. The returned closer is a no-op
// for the file backend.
func Open(ctx context.Context, cfg config.Config) (pet.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pg, err := NewPGStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case config.StoreFile:
		return NewFileStore(cfg.DataFile), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
