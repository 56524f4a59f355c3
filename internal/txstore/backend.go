package txstore

import (
	"context"
	"errors"

	"convtrack/cli/internal/backend"
)

// BackendStore keeps the mapping on the conversion backend.
type BackendStore struct {
	api TransactionAPI
}

// NewBackendStore wraps api.
func NewBackendStore(api TransactionAPI) *BackendStore {
	return &BackendStore{api: api}
}

func (s *BackendStore) Lookup(ctx context.Context, schema string) (string, bool, error) {
	id, err := s.api.GetSchemaTransactionID(ctx, schema)
	if errors.Is(err, backend.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *BackendStore) Save(ctx context.Context, schema, id string) error {
	return s.api.PutSchemaTransactionID(ctx, schema, id)
}

func (s *BackendStore) Close() error { return nil }
