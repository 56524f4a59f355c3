package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"convtrack/cli/internal/manifest"
)

type schemaTransaction struct {
	Schema        string `json:"schema"`
	TransactionID string `json:"transaction_id"`
}

// GetSchemaTransactionID returns the transaction id assigned to schema, or
// ErrNotFound when none has been assigned yet.
func (h *HTTP) GetSchemaTransactionID(ctx context.Context, schema string) (string, error) {
	var out schemaTransaction
	path := manifest.Expand(h.endpoints.SchemaTransaction, map[string]string{"schema": schema})
	if err := h.call(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return "", err
	}
	id := strings.TrimSpace(out.TransactionID)
	if id == "" {
		return "", errors.Join(ErrNotFound, errors.New("empty transaction id"))
	}
	return id, nil
}

// PutSchemaTransactionID stores the transaction id of schema.
func (h *HTTP) PutSchemaTransactionID(ctx context.Context, schema, txID string) error {
	path := manifest.Expand(h.endpoints.SchemaTransaction, map[string]string{"schema": schema})
	return h.call(ctx, http.MethodPut, path, nil, schemaTransaction{Schema: schema, TransactionID: txID}, nil)
}
