// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package stream reads the live progress stream of a conversion job.
//
// A Transport connects to the backend and yields raw data units. The Reader
// turns them into classified ProgressEvents on a Handle, closes the stream
// shortly after the job reports completion, and reports a lost connection
// as one synthetic disconnect event.
package stream

import (
	"context"
	"fmt"
	"net/url"

	"convtrack/cli/internal/config"
	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/manifest"
)

// Conn is one open progress stream.
type Conn interface {
	// Next blocks until the next data unit arrives. It returns io.EOF when
	// the server ends the stream.
	Next() (string, error)
	// Close releases the connection and unblocks a pending Next.
	Close() error
}

// Transport opens progress streams.
type Transport interface {
	Connect(ctx context.Context, spec conversion.JobSpec, txID string) (Conn, error)
}

// Options describes where streams are opened.
type Options struct {
	BaseURL  string
	Manifest *manifest.Manifest
	Session  string
	// GRPCAddress overrides the manifest's gRPC address.
	GRPCAddress string
}

// NewTransport returns the transport named by kind.
func NewTransport(kind string, opts Options) (Transport, error) {
	if opts.Manifest == nil {
		opts.Manifest = manifest.Default()
	}
	switch kind {
	case "", config.TransportSSE:
		return &SSETransport{BaseURL: opts.BaseURL, Manifest: opts.Manifest, Session: opts.Session}, nil
	case config.TransportWebSocket:
		return &WebSocketTransport{BaseURL: opts.BaseURL, Manifest: opts.Manifest, Session: opts.Session}, nil
	case config.TransportGRPC:
		addr := opts.GRPCAddress
		if addr == "" {
			addr = opts.Manifest.GRPC.Address
		}
		if addr == "" {
			u, err := url.Parse(opts.BaseURL)
			if err != nil || u.Hostname() == "" {
				return nil, fmt.Errorf("cannot derive gRPC address from %q", opts.BaseURL)
			}
			addr = u.Hostname() + ":" + defaultGRPCPort
		}
		return &GRPCTransport{
			Address: addr,
			Method:  opts.Manifest.GRPC.Method,
			TLS:     opts.Manifest.GRPC.TLS,
			Session: opts.Session,
		}, nil
	}
	return nil, fmt.Errorf("unknown transport %q", kind)
}

// StreamURL builds the stream URL of spec on baseURL.
func StreamURL(baseURL string, m *manifest.Manifest, spec conversion.JobSpec, txID string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse backend URL: %w", err)
	}
	ep := m.StreamFor(spec.ObjectType)
	path := manifest.Expand(ep.Path, map[string]string{
		"source": string(spec.SourceType),
		"schema": spec.Schema,
		"tx":     txID,
	})
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse stream path: %w", err)
	}
	u := base.ResolveReference(ref)

	q := url.Values{}
	q.Set("source_type", string(spec.SourceType))
	q.Set("schema", spec.Schema)
	q.Set("transaction_id", txID)
	if ep.TargetParam != "" {
		for _, t := range spec.Targets {
			q.Add(ep.TargetParam, t)
		}
	}
	for k, v := range ep.Extra {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
