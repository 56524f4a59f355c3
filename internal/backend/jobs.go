// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/manifest"
)

const maxStatusBody = 8 << 20

type startJobRequest struct {
	SourceType    string   `json:"source_type"`
	Schema        string   `json:"schema"`
	ObjectType    string   `json:"object_type"`
	Targets       []string `json:"targets"`
	TransactionID string   `json:"transaction_id"`
}

// StartJob posts the job to the start endpoint when the manifest names one.
func (h *HTTP) StartJob(ctx context.Context, spec conversion.JobSpec, txID string) error {
	if h.endpoints.StartJob == "" {
		return nil
	}
	path := manifest.Expand(h.endpoints.StartJob, map[string]string{
		"source": string(spec.SourceType),
		"schema": spec.Schema,
		"tx":     txID,
	})
	targets := spec.Targets
	if targets == nil {
		targets = []string{}
	}
	return h.call(ctx, http.MethodPost, path, nil, startJobRequest{
		SourceType:    string(spec.SourceType),
		Schema:        spec.Schema,
		ObjectType:    string(spec.ObjectType),
		Targets:       targets,
		TransactionID: txID,
	}, nil)
}

// GetStatus calls GET /migration-status/{tx} and decodes the snapshot.
func (h *HTTP) GetStatus(ctx context.Context, txID, sourceType, schema string) (conversion.StatusSnapshot, error) {
	path := manifest.Expand(h.endpoints.Status, map[string]string{"tx": txID})
	q := url.Values{}
	q.Set("source_type", sourceType)
	q.Set("schema", schema)
	q.Set("prefer_maximo_meta", "true")

	resp, err := h.send(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return conversion.StatusSnapshot{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return conversion.StatusSnapshot{}, fmt.Errorf("read status: %w", err)
	}
	snap, err := conversion.DecodeSnapshot(data)
	if err != nil {
		return conversion.StatusSnapshot{}, err
	}
	if snap.TransactionID == "" {
		snap.TransactionID = txID
	}
	return snap, nil
}

// CurrentMigration calls GET /current-migration.
func (h *HTTP) CurrentMigration(ctx context.Context) (CurrentMigration, error) {
	var cm CurrentMigration
	err := h.call(ctx, http.MethodGet, h.endpoints.CurrentMigration, nil, nil, &cm)
	return cm, err
}

func decodeBody(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
