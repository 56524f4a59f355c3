package backend_test

import (
	"context"
	"errors"
	"testing"

	"convtrack/cli/internal/backend"
	"convtrack/cli/internal/backend/backendtest"
	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/httperrors"
	"convtrack/cli/internal/manifest"
)

func newClient(t *testing.T) (*backend.HTTP, *backendtest.Server) {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	return backend.New(srv.URL, manifest.Default().HTTP), srv
}

func TestLoginAccountLogout(t *testing.T) {
	api, srv := newClient(t)
	srv.AddUser("ana@example.com", "pw")
	ctx := context.Background()

	if _, err := api.Account(ctx); !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("Account() without session = %v, want ErrUnauthorized", err)
	}
	if _, _, err := api.Login(ctx, "ana@example.com", "wrong"); !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("Login(wrong) = %v, want ErrUnauthorized", err)
	}

	session, name, err := api.Login(ctx, "ana@example.com", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if session == "" || name != "ana@example.com" {
		t.Fatalf("Login() = %q, %q", session, name)
	}

	acc, err := api.Account(ctx)
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if acc.Email != "ana@example.com" {
		t.Errorf("Account().Email = %q", acc.Email)
	}

	// A second client reusing the session sees the same account.
	other := backend.New(srv.URL, manifest.Default().HTTP, backend.WithSession(session))
	if acc, err := other.Account(ctx); err != nil || acc.Email != "ana@example.com" {
		t.Errorf("Account() with stored session = %+v, %v", acc, err)
	}

	if err := api.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if api.Session() != "" {
		t.Error("Logout() must forget the session")
	}
	if _, err := other.Account(ctx); !errors.Is(err, backend.ErrUnauthorized) {
		t.Errorf("Account() after logout = %v, want ErrUnauthorized", err)
	}
}

func TestPing(t *testing.T) {
	api, _ := newClient(t)
	if err := api.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestGetStatus(t *testing.T) {
	api, srv := newClient(t)
	srv.SetSnapshot(conversion.StatusSnapshot{
		TransactionID: "tx-1",
		Schema:        "HR",
		Overall:       conversion.Overall{Done: 3, Total: 4, Percentage: 75},
		DoneCounts: map[string]conversion.ObjectTypeCount{
			"table": {Type: "table", SuccessCount: 3, ErrorCount: 1, Total: 4, Percentage: 75, Errors: []string{"EMP: ORA-00942"}},
		},
	})

	snap, err := api.GetStatus(context.Background(), "tx-1", "oracle", "HR")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if snap.TransactionID != "tx-1" || snap.Overall.Percentage != 75 {
		t.Errorf("GetStatus() = %+v", snap)
	}
	if got := snap.DoneCounts["table"]; got.ErrorCount != 1 || len(got.Errors) != 1 {
		t.Errorf("table counts = %+v", got)
	}
	if srv.StatusCalls("tx-1") != 1 {
		t.Errorf("status calls = %d, want 1", srv.StatusCalls("tx-1"))
	}
}

func TestGetStatus_Errors(t *testing.T) {
	api, srv := newClient(t)
	ctx := context.Background()

	if _, err := api.GetStatus(ctx, "missing", "oracle", "HR"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("GetStatus(missing) = %v, want ErrNotFound", err)
	}

	srv.FailStatus(1)
	_, err := api.GetStatus(ctx, "tx-1", "oracle", "HR")
	if httperrors.StatusCode(err) != 500 {
		t.Errorf("GetStatus() status = %d, want 500 (err %v)", httperrors.StatusCode(err), err)
	}
}

func TestSchemaTransactionID(t *testing.T) {
	api, srv := newClient(t)
	ctx := context.Background()

	if _, err := api.GetSchemaTransactionID(ctx, "HR"); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("GetSchemaTransactionID() = %v, want ErrNotFound", err)
	}
	if err := api.PutSchemaTransactionID(ctx, "HR", "tx-9"); err != nil {
		t.Fatalf("PutSchemaTransactionID() error = %v", err)
	}
	id, err := api.GetSchemaTransactionID(ctx, "HR")
	if err != nil || id != "tx-9" {
		t.Fatalf("GetSchemaTransactionID() = %q, %v", id, err)
	}
	if srv.TransactionID("HR") != "tx-9" {
		t.Errorf("server stored %q", srv.TransactionID("HR"))
	}
}

func TestCurrentMigration(t *testing.T) {
	api, srv := newClient(t)
	ctx := context.Background()

	if _, err := api.CurrentMigration(ctx); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("CurrentMigration() = %v, want ErrNotFound", err)
	}
	srv.SetCurrent(map[string]string{"transaction_id": "tx-2", "schema": "MAXIMO", "source_type": "sql", "status": "running"})
	cm, err := api.CurrentMigration(ctx)
	if err != nil {
		t.Fatalf("CurrentMigration() error = %v", err)
	}
	if cm.TransactionID != "tx-2" || cm.Schema != "MAXIMO" || cm.SourceType != "sql" {
		t.Errorf("CurrentMigration() = %+v", cm)
	}
}

func TestStartJob(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	spec := conversion.JobSpec{SourceType: conversion.SourceOracle, Schema: "HR", ObjectType: conversion.ObjectTable, Targets: []string{"EMP"}}
	ctx := context.Background()

	// The default manifest starts jobs from the stream.
	if err := backend.New(srv.URL, manifest.Default().HTTP).StartJob(ctx, spec, "tx-1"); err != nil {
		t.Fatalf("StartJob() error = %v", err)
	}
	if len(srv.Started()) != 0 {
		t.Fatal("StartJob() must not post without a start endpoint")
	}

	eps := manifest.Default().HTTP
	eps.StartJob = "/jobs/start"
	if err := backend.New(srv.URL, eps).StartJob(ctx, spec, "tx-1"); err != nil {
		t.Fatalf("StartJob() error = %v", err)
	}
	started := srv.Started()
	if len(started) != 1 {
		t.Fatalf("started = %d, want 1", len(started))
	}
	if started[0]["transaction_id"] != "tx-1" || started[0]["object_type"] != "table" || started[0]["source_type"] != "oracle" {
		t.Errorf("start body = %v", started[0])
	}
}
