// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tab_monitor/internal/platform"
)

// ErrStorage wraps every read or write failure of the backing file
var ErrStorage = errors.New("storage failure")

// Manager is a file-backed namespaced key/value store, the host-side
// counterpart of the extension's local storage area. Values are read and
// written whole.
type Manager struct {
	stateFile string
	data      map[string]json.RawMessage
	mu        sync.RWMutex
}

// NewManager creates a new state manager
// If stateFile is empty, uses automatic location resolution
func NewManager(stateFile string) *Manager {
	return &Manager{
		stateFile: stateFile,
		data:      make(map[string]json.RawMessage),
	}
}

// Load loads state from file
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.resolveStatePath()
	if path == "" {
		// No state file found, start fresh
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No state yet, start fresh
		}
		return fmt.Errorf("%w: failed to read state file: %v", ErrStorage, err)
	}

	loaded := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("%w: failed to parse state file: %v", ErrStorage, err)
	}

	m.data = loaded
	m.stateFile = path
	return nil
}

// Save persists state to file
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.stateFile
	if path == "" {
		path = m.findWritablePath()
		if path == "" {
			return fmt.Errorf("%w: no writable state location", ErrStorage)
		}
		m.stateFile = path
	}

	data, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal state: %v", ErrStorage, err)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create state directory: %v", ErrStorage, err)
	}

	// Write to a sibling file and rename so readers never see a torn file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("%w: failed to write state file: %v", ErrStorage, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: failed to replace state file: %v", ErrStorage, err)
	}

	return nil
}

// Get decodes the value stored under key into v.
// Returns false if the key is absent.
func (m *Manager) Get(key string, v any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("%w: failed to decode %q: %v", ErrStorage, key, err)
	}
	return true, nil
}

// Set replaces the value stored under key. Call Save to persist.
func (m *Manager) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: failed to encode %q: %v", ErrStorage, key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = raw
	return nil
}

// resolveStatePath finds an existing state file
func (m *Manager) resolveStatePath() string {
	// 1. Explicit path from config/flag
	if m.stateFile != "" {
		return m.stateFile
	}

	// 2. Per-user config location
	centralPath := getCentralStatePath()
	if centralPath != "" {
		if _, err := os.Stat(centralPath); err == nil {
			return centralPath
		}
	}

	// 3. Temp location
	tempPath := getTempStatePath()
	if _, err := os.Stat(tempPath); err == nil {
		return tempPath
	}

	return ""
}

// findWritablePath finds a location where we can write state
func (m *Manager) findWritablePath() string {
	// 1. Explicit path from config/flag
	if m.stateFile != "" {
		return m.stateFile
	}

	// 2. Per-user config location
	centralPath := getCentralStatePath()
	if centralPath != "" && canWrite(filepath.Dir(centralPath)) {
		return centralPath
	}

	// 3. Temp location
	return getTempStatePath()
}

// getCentralStatePath returns the per-user state file path for the current OS
func getCentralStatePath() string {
	home, _ := os.UserHomeDir()

	switch platform.CurrentOS() {
	case platform.Linux:
		if home != "" {
			return filepath.Join(home, ".config/tab_monitor/storage.json")
		}

	case platform.Windows:
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" && home != "" {
			localAppData = filepath.Join(home, "AppData", "Local")
		}
		if localAppData != "" {
			return filepath.Join(localAppData, "tab_monitor", "storage.json")
		}

	case platform.Darwin:
		if home != "" {
			return filepath.Join(home, "Library/Application Support/tab_monitor/storage.json")
		}
	}

	return ""
}

// getTempStatePath returns the temp state file path
func getTempStatePath() string {
	return filepath.Join(os.TempDir(), "tab_monitor_storage.json")
}

// canWrite checks if we can write to a directory
func canWrite(dir string) bool {
	// Try to create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false
	}

	// Try to create a temp file
	testFile := filepath.Join(dir, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(testFile)
	return true
}

// GetStateFilePath returns the current state file path
func (m *Manager) GetStateFilePath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateFile
}

// Keys returns all stored keys (for debugging)
func (m *Manager) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}
