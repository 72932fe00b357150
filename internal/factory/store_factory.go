package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mikey/llm-smart-labels/internal/adapters/store"
	"github.com/mikey/llm-smart-labels/internal/config"
	"go.uber.org/zap"
)

// StoreFactory opens the SQL store
type StoreFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	closers *Closers
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger, closers *Closers) *StoreFactory {
	return &StoreFactory{
		cfg:     cfg,
		logger:  logger,
		closers: closers,
	}
}

// CreateStore opens the configured database
func (f *StoreFactory) CreateStore(ctx context.Context) (*store.SQLStore, error) {
	storeCfg := f.cfg.GetStore()
	dialect := store.Dialect(storeCfg.Driver)

	if dialect == store.DialectSQLite && !strings.HasPrefix(storeCfg.DSN, ":memory:") && !strings.HasPrefix(storeCfg.DSN, "file:") {
		if err := os.MkdirAll(filepath.Dir(storeCfg.DSN), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
	}

	s, err := store.Open(ctx, dialect, storeCfg.DSN, f.logger)
	if err != nil {
		return nil, err
	}
	f.closers.Add(s.Close)
	return s, nil
}
