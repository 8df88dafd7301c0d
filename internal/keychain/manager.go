// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for airplan.
// It keeps database profile passwords in the OS credential store (Windows Credential
// Manager, macOS Keychain, or the Secret Service on Linux) so that profiles.toml only
// carries non-secret connection settings.
//
// Manager implements profile.SecretStore.
package keychain

import (
	"errors"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	globalError   error
	mu            sync.Mutex
)

// ErrNotFound is returned by backends when a key has no stored value.
var ErrNotFound = errors.New("keychain: key not found")

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu      sync.RWMutex
	ring    keyring.Keyring
	backend keychainBackend
}

// keychainBackend defines the interface for keychain operations.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "airplan"

// profileKeyPrefix namespaces profile passwords inside the service.
const profileKeyPrefix = "profile/"

func profileKey(name string) string { return profileKeyPrefix + name }

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager() (*Manager, error) {
	// Try native security backend first on macOS
	if runtime.GOOS == "darwin" {
		backend, err := newSecurityBackend()
		if err == nil {
			return &Manager{backend: backend}, nil
		}
	}

	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return NewManagerWithRing(ring), nil
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

	globalManager, globalError = NewManager()
	if globalError != nil {
		return nil, globalError
	}
	return globalManager, nil
}

// openRing opens the OS keyring using native platform backends only.
func openRing() (keyring.Keyring, error) {
	var allowedBackends []keyring.BackendType
	switch runtime.GOOS {
	case "windows":
		allowedBackends = []keyring.BackendType{keyring.WinCredBackend}
	case "darwin":
		allowedBackends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "linux", "freebsd":
		allowedBackends = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, errors.New("secure storage not supported on this OS")
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowedBackends,
		PassPrefix:      ServiceName,
	}
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = ServiceName
	}

	return keyring.Open(cfg)
}

// SaveProfilePassword stores the password for a database profile.
// This method is thread-safe.
func (m *Manager) SaveProfilePassword(name, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Set(profileKey(name), password)
	}
	return m.ring.Set(keyring.Item{
		Key:         profileKey(name),
		Data:        []byte(password),
		Label:       "airplan database profile " + name,
		Description: "database password",
	})
}

// LoadProfilePassword retrieves the password for a database profile.
// A profile without a stored password yields "" and a nil error.
// This method is thread-safe.
func (m *Manager) LoadProfilePassword(name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.backend != nil {
		pw, err := m.backend.Get(profileKey(name))
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return pw, err
	}

	it, err := m.ring.Get(profileKey(name))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", err
	}
	return string(it.Data), nil
}

// DeleteProfilePassword removes the password for a database profile.
// Deleting a missing entry is not an error.
// This method is thread-safe.
func (m *Manager) DeleteProfilePassword(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Delete(profileKey(name))
	}
	if err := m.ring.Remove(profileKey(name)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
