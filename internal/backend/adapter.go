// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package backend provides interfaces and implementations for communicating with the conversion backend.
// It defines the API contract for authentication, job status and the schema transaction mapping.
// The package includes both interface definitions and an HTTP-based implementation.
package backend

import (
	"context"
	"errors"

	"convtrack/cli/internal/conversion"
)

// SessionCookie is the name of the cookie carrying the backend session.
const SessionCookie = "AuthSession"

// ErrNotFound is returned when the backend answers 404.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned when the backend rejects the session.
var ErrUnauthorized = errors.New("unauthorized")

// Account describes the user behind a session.
type Account struct {
	Email string `json:"email"`
}

// CurrentMigration is the most recent job still running on the backend.
type CurrentMigration struct {
	TransactionID string `json:"transaction_id"`
	Schema        string `json:"schema"`
	SourceType    string `json:"source_type"`
	Status        string `json:"status"`
}

// API defines backend operations the CLI depends on.
// Implementations may call real HTTP endpoints or provide fakes for tests.
type API interface {
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Login opens a session and returns its cookie value and the user name.
	Login(ctx context.Context, email, password string) (session string, name string, err error)
	// Logout ends the current session on the backend.
	Logout(ctx context.Context) error
	// Account returns the user of the current session.
	Account(ctx context.Context) (Account, error)
	// StartJob asks the backend to start a job. It is a no-op when the
	// backend starts jobs from the progress stream.
	StartJob(ctx context.Context, spec conversion.JobSpec, txID string) error
	// GetStatus fetches the aggregate status of a job.
	GetStatus(ctx context.Context, txID, sourceType, schema string) (conversion.StatusSnapshot, error)
	GetSchemaTransactionID(ctx context.Context, schema string) (string, error)
	PutSchemaTransactionID(ctx context.Context, schema, txID string) error
	// CurrentMigration returns the running job, or ErrNotFound.
	CurrentMigration(ctx context.Context) (CurrentMigration, error)
}
