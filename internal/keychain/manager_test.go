package keychain

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func newTestManager() *Manager {
	return NewManagerWithRing(keyring.NewArrayKeyring(nil))
}

func TestSessionRoundTrip(t *testing.T) {
	m := newTestManager()
	if _, err := m.LoadSession(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadSession() on empty ring = %v, want ErrNotFound", err)
	}
	if err := m.SaveSession("abc"); err != nil {
		t.Fatal(err)
	}
	if got, err := m.LoadSession(); err != nil || got != "abc" {
		t.Fatalf("LoadSession() = %q, %v", got, err)
	}
}

func TestClearAuthKeepsDSN(t *testing.T) {
	m := newTestManager()
	_ = m.SaveSession("abc")
	_ = m.SaveAuthState([]byte(`{"logged_in":true}`))
	_ = m.SaveStoreDSN("postgres://u:p@db/x")

	if err := m.ClearAuth(); err != nil {
		t.Fatalf("ClearAuth() error = %v", err)
	}
	if _, err := m.LoadSession(); !errors.Is(err, ErrNotFound) {
		t.Error("session must be cleared")
	}
	if _, err := m.LoadAuthState(); !errors.Is(err, ErrNotFound) {
		t.Error("auth state must be cleared")
	}
	if dsn, err := m.LoadStoreDSN(); err != nil || dsn == "" {
		t.Errorf("DSN must survive ClearAuth: %q, %v", dsn, err)
	}

	if err := m.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	if _, err := m.LoadStoreDSN(); !errors.Is(err, ErrNotFound) {
		t.Error("ClearAll must remove the DSN")
	}
}

func TestRemoveMissingKey(t *testing.T) {
	if err := newTestManager().Remove("nope"); err != nil {
		t.Errorf("Remove() missing key = %v", err)
	}
}

func TestSetManager(t *testing.T) {
	m := newTestManager()
	SetManager(m)
	defer SetManager(nil)
	got, err := GetManager()
	if err != nil || got != m {
		t.Errorf("GetManager() = %p, %v; want %p", got, err, m)
	}
}
