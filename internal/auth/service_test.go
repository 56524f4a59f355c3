package auth

import (
	"context"
	"testing"

	"github.com/99designs/keyring"

	"convtrack/cli/internal/backend"
	"convtrack/cli/internal/backend/backendtest"
	"convtrack/cli/internal/keychain"
	"convtrack/cli/internal/manifest"
)

func setup(t *testing.T) (*Service, *backendtest.Server, *keychain.Manager) {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	srv.AddUser("ana@example.com", "pw")
	km := keychain.NewManagerWithRing(keyring.NewArrayKeyring(nil))
	be := backend.New(srv.URL, manifest.Default().HTTP)
	return NewService(be, km, srv.URL), srv, km
}

func TestLoginWhoAmILogout(t *testing.T) {
	svc, _, km := setup(t)
	ctx := context.Background()

	if _, ok, err := svc.WhoAmI(ctx); ok || err != nil {
		t.Fatalf("WhoAmI() before login = %v, %v", ok, err)
	}

	name, err := svc.Login(ctx, "ana@example.com", "pw")
	if err != nil || name != "ana@example.com" {
		t.Fatalf("Login() = %q, %v", name, err)
	}
	if ok, _ := IsLoggedIn(km); !ok {
		t.Error("state must record the login")
	}

	who, ok, err := svc.WhoAmI(ctx)
	if err != nil || !ok || who != "ana@example.com" {
		t.Fatalf("WhoAmI() = %q, %v, %v", who, ok, err)
	}

	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := km.LoadSession(); err == nil {
		t.Error("Logout() must clear the session")
	}
	if ok, _ := IsLoggedIn(km); ok {
		t.Error("Logout() must clear the state")
	}
}

func TestLogin_BadPassword(t *testing.T) {
	svc, _, km := setup(t)
	if _, err := svc.Login(context.Background(), "ana@example.com", "nope"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := km.LoadSession(); err == nil {
		t.Error("failed login must not store a session")
	}
}

func TestWhoAmI_RejectedSessionIsCleared(t *testing.T) {
	svc, _, km := setup(t)
	_ = km.SaveSession("stale")
	_ = Save(km, State{LoggedIn: true, Account: "ana@example.com"})

	if _, ok, err := svc.WhoAmI(context.Background()); ok || err != nil {
		t.Fatalf("WhoAmI() = %v, %v; want not logged in", ok, err)
	}
	if _, err := km.LoadSession(); err == nil {
		t.Error("rejected session must be cleared")
	}
}

func TestWhoAmI_OfflineUsesStoredState(t *testing.T) {
	km := keychain.NewManagerWithRing(keyring.NewArrayKeyring(nil))
	_ = km.SaveSession("s1")
	_ = Save(km, State{LoggedIn: true, Account: "ana@example.com"})

	srv := backendtest.New()
	url := srv.URL
	srv.Close()

	svc := NewService(backend.New(url, manifest.Default().HTTP), km, url)
	who, ok, err := svc.WhoAmI(context.Background())
	if err != nil || !ok || who != "ana@example.com" {
		t.Errorf("WhoAmI() offline = %q, %v, %v", who, ok, err)
	}
}
