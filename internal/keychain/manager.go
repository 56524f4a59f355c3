// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for convtrack.
// This module manages all interactions with the OS keychain/credential store,
// providing a unified interface for storing and retrieving sensitive data such as
// the backend session cookie and the PostgreSQL DSN of the transaction-id store.
//
// The native stores of macOS, Windows and Linux desktops are preferred. Headless
// machines fall back to an encrypted file in the XDG state directory whose
// passphrase comes from CONVTRACK_KEYRING_PASSWORD or an interactive prompt.
package keychain

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/99designs/keyring"

	"convtrack/cli/internal/xdg"
)

// Global keychain manager instance
var (
	globalManager *Manager
	mu            sync.Mutex
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "convtrack"

// PasswordEnv holds the passphrase of the file keyring.
const PasswordEnv = "CONVTRACK_KEYRING_PASSWORD"

// Keys used for storing secrets in the OS keychain.
const (
	KeySession   = "session"
	KeyAuthState = "auth_state"
	KeyStoreDSN  = "store_dsn"
)

// ErrNotFound is returned when a key holds no secret.
var ErrNotFound = errors.New("secret not found in keychain")

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager() (*Manager, error) {
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewManagerWithRing wraps an already opened keyring.
func NewManagerWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the global keychain manager instance.
// If not initialized, it will be created on first call.
// If initialization fails, it will retry on subsequent calls.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return globalManager, nil
}

// SetManager replaces the global manager. Passing nil resets it.
func SetManager(m *Manager) {
	mu.Lock()
	defer mu.Unlock()
	globalManager = m
}

// openRing opens the native keyring of the platform, falling back to the
// encrypted file backend.
func openRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	default:
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	}
	allowed = append(allowed, keyring.FileBackend)

	dir, err := xdg.StateDir()
	if err != nil {
		return nil, err
	}

	cfg := keyring.Config{
		ServiceName:      ServiceName,
		AllowedBackends:  allowed,
		PassPrefix:       ServiceName,
		WinCredPrefix:    ServiceName,
		KeychainName:     "login",
		FileDir:          filepath.Join(dir, "keyring"),
		FilePasswordFunc: filePassword,
	}
	return keyring.Open(cfg)
}

func filePassword(prompt string) (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return keyring.FixedStringPrompt(pw)(prompt)
	}
	return keyring.TerminalPrompt(prompt)
}

// Set stores value under key.
// This method is thread-safe.
func (m *Manager) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: ServiceName + " " + key})
}

// Get retrieves the value of key, or ErrNotFound.
// This method is thread-safe.
func (m *Manager) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, err := m.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNotFound
	}
	return string(it.Data), nil
}

// Remove deletes key; a missing key is not an error.
// This method is thread-safe.
func (m *Manager) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

// SaveSession stores the backend session cookie.
func (m *Manager) SaveSession(session string) error { return m.Set(KeySession, session) }

// LoadSession retrieves the backend session cookie.
func (m *Manager) LoadSession() (string, error) { return m.Get(KeySession) }

// SaveAuthState stores serialized auth state.
func (m *Manager) SaveAuthState(data []byte) error { return m.Set(KeyAuthState, string(data)) }

// LoadAuthState retrieves serialized auth state.
func (m *Manager) LoadAuthState() ([]byte, error) {
	s, err := m.Get(KeyAuthState)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// ClearAuth removes the session and auth state.
func (m *Manager) ClearAuth() error {
	return errors.Join(m.Remove(KeySession), m.Remove(KeyAuthState))
}

// SaveStoreDSN stores the DSN of the PostgreSQL transaction-id store.
func (m *Manager) SaveStoreDSN(dsn string) error { return m.Set(KeyStoreDSN, dsn) }

// LoadStoreDSN retrieves the DSN of the PostgreSQL transaction-id store.
func (m *Manager) LoadStoreDSN() (string, error) { return m.Get(KeyStoreDSN) }

// ClearStoreDSN removes the stored DSN.
func (m *Manager) ClearStoreDSN() error { return m.Remove(KeyStoreDSN) }

// ClearAll removes every secret convtrack stores.
func (m *Manager) ClearAll() error {
	return errors.Join(m.ClearAuth(), m.ClearStoreDSN())
}
