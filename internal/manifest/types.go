// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package manifest handles backend endpoint configuration.
//
// Every route the CLI calls is described here with a built-in default. A
// backend may publish /cli-endpoints.json to override some of them; the
// published manifest is merged over the defaults and cached in RAM.
package manifest

import (
	"net/url"
	"strings"

	"convtrack/cli/internal/conversion"
)

// Manifest represents the endpoint configuration of one backend.
type Manifest struct {
	Version int                       `json:"version"`
	HTTP    HTTPEndpoints             `json:"http"`
	Streams map[string]StreamEndpoint `json:"streams"`
	GRPC    GRPCEndpoints             `json:"grpc"`
}

// HTTPEndpoints contains REST API endpoint paths. Paths may contain {name}
// placeholders filled in by Expand.
type HTTPEndpoints struct {
	Login             string `json:"auth_login"`         // e.g., "/auth/login"
	Logout            string `json:"auth_logout"`        // e.g., "/auth/logout"
	Account           string `json:"auth_account"`       // e.g., "/auth/account"
	Health            string `json:"health"`             // e.g., "/auth/ping"
	StartJob          string `json:"start_job"`          // empty when opening the stream starts the job
	Status            string `json:"migration_status"`   // e.g., "/migration-status/{tx}"
	SchemaTransaction string `json:"schema_transaction"` // e.g., "/schema-transaction-id/{schema}"
	CurrentMigration  string `json:"current_migration"`  // e.g., "/current-migration"
}

// StreamEndpoint describes the progress stream of one object type.
type StreamEndpoint struct {
	Path string `json:"path"`
	// TargetParam is the repeated query parameter carrying target names.
	TargetParam string `json:"target_param"`
	// Extra holds fixed query parameters.
	Extra map[string]string `json:"extra,omitempty"`
}

// GRPCEndpoints describes the optional gRPC progress service.
type GRPCEndpoints struct {
	Address string `json:"address"` // host:port; empty means the HTTP host on port 50051
	Method  string `json:"method"`
	TLS     bool   `json:"tls"`
}

const fallbackStream = "default"

// Default returns the endpoints served by the conversion backend out of the box.
func Default() *Manifest {
	return &Manifest{
		Version: 1,
		HTTP: HTTPEndpoints{
			Login:             "/auth/login",
			Logout:            "/auth/logout",
			Account:           "/auth/account",
			Health:            "/auth/ping",
			Status:            "/migration-status/{tx}",
			SchemaTransaction: "/schema-transaction-id/{schema}",
			CurrentMigration:  "/current-migration",
		},
		Streams: map[string]StreamEndpoint{
			string(conversion.ObjectFullSchema): {Path: "/full-migration/all/stream"},
			string(conversion.ObjectTable): {
				Path:        "/migrate-tables/{source}/{schema}/stream",
				TargetParam: "tables",
				Extra:       map[string]string{"include_empty": "true"},
			},
			string(conversion.ObjectSequence): {Path: "/sequences/migrate/stream", TargetParam: "sequence_names"},
			string(conversion.ObjectTrigger):  {Path: "/triggers/migrate/stream", TargetParam: "trigger_names"},
			string(conversion.ObjectView):     {Path: "/views/migrate/stream", TargetParam: "view_names"},
			fallbackStream:                    {Path: "/progress-stream", TargetParam: "targets"},
		},
		GRPC: GRPCEndpoints{Method: "/conversion.ProgressService/StreamProgress"},
	}
}

// StreamFor returns the stream endpoint of an object type, falling back to
// the generic progress stream.
func (m *Manifest) StreamFor(t conversion.ObjectType) StreamEndpoint {
	if ep, ok := m.Streams[string(t)]; ok && ep.Path != "" {
		return ep
	}
	return m.Streams[fallbackStream]
}

// merge overlays the non-empty fields of o onto m.
func (m *Manifest) merge(o *Manifest) {
	if o.Version != 0 {
		m.Version = o.Version
	}
	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&m.HTTP.Login, o.HTTP.Login)
	setIf(&m.HTTP.Logout, o.HTTP.Logout)
	setIf(&m.HTTP.Account, o.HTTP.Account)
	setIf(&m.HTTP.Health, o.HTTP.Health)
	setIf(&m.HTTP.StartJob, o.HTTP.StartJob)
	setIf(&m.HTTP.Status, o.HTTP.Status)
	setIf(&m.HTTP.SchemaTransaction, o.HTTP.SchemaTransaction)
	setIf(&m.HTTP.CurrentMigration, o.HTTP.CurrentMigration)
	for k, v := range o.Streams {
		m.Streams[k] = v
	}
	setIf(&m.GRPC.Address, o.GRPC.Address)
	setIf(&m.GRPC.Method, o.GRPC.Method)
	m.GRPC.TLS = m.GRPC.TLS || o.GRPC.TLS
}

// Expand replaces {name} placeholders in path with path-escaped values.
func Expand(path string, vars map[string]string) string {
	out := path
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", url.PathEscape(v))
	}
	return out
}
