package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/trustmesh/internal/credential"
	"github.com/jmerrifield20/trustmesh/internal/ledger"
	"github.com/jmerrifield20/trustmesh/internal/sqlitedb"
	"go.uber.org/zap"
)

// backend bundles the ledger and credential store chosen by store.backend.
type backend struct {
	ledger     ledger.Ledger
	store      credential.Store
	persistent bool
	close      func()
}

func openBackend(ctx context.Context, cfg *config, logger *zap.Logger) (*backend, error) {
	switch cfg.Backend {
	case "memory":
		return &backend{
			ledger: ledger.New(),
			store:  credential.MemoryStore{},
			close:  func() {},
		}, nil

	case "file":
		// The chain lives in memory; only credentials survive a restart.
		logger.Warn("file backend keeps the ledger in memory; devices must re-register after a restart",
			zap.String("path", cfg.FilePath),
		)
		return &backend{
			ledger: ledger.New(),
			store:  credential.NewFileStore(cfg.FilePath),
			close:  func() {},
		}, nil

	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create dir %q: %w", dir, err)
			}
		}
		db, err := sqlitedb.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		l, err := ledger.NewSQLiteLedger(ctx, db, logger)
		if err != nil {
			db.Close() //nolint:errcheck
			return nil, err
		}
		logger.Info("sqlite backend ready", zap.String("path", db.Path()))
		return &backend{
			ledger:     l,
			store:      credential.NewSQLiteStore(db),
			persistent: true,
			close:      func() { db.Close() }, //nolint:errcheck
		}, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")
		l, err := ledger.NewPostgresLedger(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &backend{
			ledger:     l,
			store:      credential.NewPostgresStore(pool),
			persistent: true,
			close:      pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
