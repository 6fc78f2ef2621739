// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package browser

import (
	"os"
	"path/filepath"

	"tab_monitor/internal/platform"
)

// FirefoxBrowser registers the host with Firefox
type FirefoxBrowser struct{}

// NewFirefox creates the Firefox registration target
func NewFirefox() *FirefoxBrowser {
	return &FirefoxBrowser{}
}

// Name returns the browser name
func (f *FirefoxBrowser) Name() string {
	return "firefox"
}

// Detected reports whether a Firefox profiles directory exists
func (f *FirefoxBrowser) Detected(user platform.User) bool {
	dir := f.getProfilesDir(user)
	if dir == "" {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// ManifestDir returns the per-user native-messaging-hosts directory
func (f *FirefoxBrowser) ManifestDir(user platform.User) string {
	switch platform.CurrentOS() {
	case platform.Linux:
		return filepath.Join(user.HomeDir, ".mozilla", "native-messaging-hosts")
	case platform.Darwin:
		return filepath.Join(user.HomeDir, "Library", "Application Support", "Mozilla", "NativeMessagingHosts")
	default:
		return ""
	}
}

// RegistryKey returns the HKCU registration key
func (f *FirefoxBrowser) RegistryKey() string {
	return "Software\\Mozilla\\NativeMessagingHosts"
}

// Manifest builds a manifest admitting the Firefox add-on ids
func (f *FirefoxBrowser) Manifest(path string, extensionIDs []string) Manifest {
	return Manifest{
		Name:              HostName,
		Description:       HostDescription,
		Path:              path,
		Type:              "stdio",
		AllowedExtensions: GeckoIDs(extensionIDs),
	}
}

// getProfilesDir returns the Firefox profiles directory for a user
func (f *FirefoxBrowser) getProfilesDir(user platform.User) string {
	switch platform.CurrentOS() {
	case platform.Linux:
		return filepath.Join(user.HomeDir, ".mozilla", "firefox")

	case platform.Darwin:
		return filepath.Join(user.HomeDir, "Library", "Application Support", "Firefox")

	case platform.Windows:
		appData := user.AppDataDir(true)
		if appData == "" {
			return ""
		}
		return filepath.Join(appData, "Mozilla", "Firefox")

	default:
		return ""
	}
}
