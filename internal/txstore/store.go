// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package txstore persists the schema to transaction-id mapping used when
// starting conversion jobs. The mapping lives on the backend by default; a
// shared PostgreSQL table or a local JSON file can be configured instead.
package txstore

import (
	"context"
	"fmt"
	"path/filepath"

	"convtrack/cli/internal/config"
	"convtrack/cli/internal/xdg"
)

// Store maps schema names to transaction ids.
type Store interface {
	// Lookup returns the id stored for schema. found is false when none is stored.
	Lookup(ctx context.Context, schema string) (id string, found bool, err error)
	// Save stores id for schema, replacing any previous id.
	Save(ctx context.Context, schema, id string) error
	Close() error
}

// TransactionAPI is the part of the backend API BackendStore needs.
type TransactionAPI interface {
	GetSchemaTransactionID(ctx context.Context, schema string) (string, error)
	PutSchemaTransactionID(ctx context.Context, schema, txID string) error
}

// Open returns the store selected by cfg.Store.Kind.
func Open(ctx context.Context, cfg config.Config, api TransactionAPI) (Store, error) {
	switch cfg.Store.Kind {
	case "", config.StoreBackend:
		if api == nil {
			return nil, fmt.Errorf("backend store requires a backend client")
		}
		return NewBackendStore(api), nil
	case config.StorePostgres:
		if cfg.Store.DSN == "" {
			return nil, fmt.Errorf("postgres store requires a DSN; run 'convtrack connect' or set CONVTRACK_STORE_DSN")
		}
		return NewPostgresStore(ctx, cfg.Store.DSN)
	case config.StoreFile:
		path := cfg.Store.Path
		if path == "" {
			dir, err := xdg.StateDir()
			if err != nil {
				return nil, fmt.Errorf("resolve state dir: %w", err)
			}
			path = filepath.Join(dir, DefaultFileName)
		}
		return NewFileStore(path), nil
	}
	return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
}
