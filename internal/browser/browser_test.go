// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tab_monitor/internal/platform"
)

const chromeID = "fgiajiopnnaiglhakioljbohcemblmop"

func TestExtensionIDSplit(t *testing.T) {
	ids := []string{chromeID, "tab_monitor@example.org", "", "{8a1f0c2e-1111-2222-3333-444455556666}"}

	assert.Equal(t, []string{chromeID}, ChromiumIDs(ids))
	assert.Equal(t, []string{"tab_monitor@example.org", "{8a1f0c2e-1111-2222-3333-444455556666}"}, GeckoIDs(ids))
}

func TestChromiumManifest(t *testing.T) {
	m := NewChrome().Manifest("/opt/tab_monitor/host.sh", []string{chromeID, "tab_monitor@example.org"})

	assert.Equal(t, HostName, m.Name)
	assert.Equal(t, "stdio", m.Type)
	assert.Equal(t, "/opt/tab_monitor/host.sh", m.Path)
	assert.Equal(t, []string{"chrome-extension://" + chromeID + "/"}, m.AllowedOrigins)
	assert.Empty(t, m.AllowedExtensions)
}

func TestFirefoxManifest(t *testing.T) {
	m := NewFirefox().Manifest("/opt/tab_monitor/host.sh", []string{chromeID, "tab_monitor@example.org"})

	assert.Equal(t, []string{"tab_monitor@example.org"}, m.AllowedExtensions)
	assert.Empty(t, m.AllowedOrigins)
}

func TestByName(t *testing.T) {
	for _, name := range SupportedBrowserNames() {
		b := ByName(name)
		require.NotNil(t, b, name)
		assert.Equal(t, name, b.Name())
		assert.NotEmpty(t, b.RegistryKey())
	}
	assert.Nil(t, ByName("netscape"))
}

func TestDetectedAndManifestDir(t *testing.T) {
	if platform.CurrentOS() == platform.Windows {
		t.Skip("manifest directories are replaced by registry keys on Windows")
	}

	home := t.TempDir()
	user := platform.User{Username: "alice", HomeDir: home}
	chrome := NewChrome()

	assert.False(t, chrome.Detected(user))

	base := filepath.Join(home, ".config", "google-chrome")
	if platform.CurrentOS() == platform.Darwin {
		base = filepath.Join(home, "Library", "Application Support", "Google", "Chrome")
	}
	require.NoError(t, os.MkdirAll(base, 0755))

	assert.True(t, chrome.Detected(user))
	assert.Equal(t, filepath.Join(base, "NativeMessagingHosts"), chrome.ManifestDir(user))
	assert.NotEmpty(t, NewFirefox().ManifestDir(user))
}
