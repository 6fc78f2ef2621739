// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package browser

import (
	"os"
	"path/filepath"

	"tab_monitor/internal/platform"
)

// ChromiumPaths defines where a Chromium-based browser keeps its data
type ChromiumPaths struct {
	Linux   string // Path relative to home dir on Linux
	Darwin  string // Path relative to home dir on macOS
	Windows string // Path relative to LOCALAPPDATA

	// RegistryKey is the HKCU key for host registrations on Windows
	RegistryKey string
}

// ChromiumBrowser is a base implementation for Chromium-based browsers
type ChromiumBrowser struct {
	name  string
	paths ChromiumPaths
}

// NewChromiumBrowser creates a new Chromium-based browser
func NewChromiumBrowser(name string, paths ChromiumPaths) *ChromiumBrowser {
	return &ChromiumBrowser{
		name:  name,
		paths: paths,
	}
}

// Name returns the browser name
func (c *ChromiumBrowser) Name() string {
	return c.name
}

// Detected reports whether the browser's data directory exists
func (c *ChromiumBrowser) Detected(user platform.User) bool {
	baseDir := c.getBaseDir(user)
	if baseDir == "" {
		return false
	}
	info, err := os.Stat(baseDir)
	return err == nil && info.IsDir()
}

// ManifestDir returns the NativeMessagingHosts directory next to the
// browser's profiles
func (c *ChromiumBrowser) ManifestDir(user platform.User) string {
	if platform.CurrentOS() == platform.Windows {
		return ""
	}
	baseDir := c.getBaseDir(user)
	if baseDir == "" {
		return ""
	}
	return filepath.Join(baseDir, "NativeMessagingHosts")
}

// RegistryKey returns the HKCU registration key
func (c *ChromiumBrowser) RegistryKey() string {
	return c.paths.RegistryKey
}

// Manifest builds a manifest admitting the Chromium extension ids
func (c *ChromiumBrowser) Manifest(path string, extensionIDs []string) Manifest {
	var origins []string
	for _, id := range ChromiumIDs(extensionIDs) {
		origins = append(origins, "chrome-extension://"+id+"/")
	}
	return Manifest{
		Name:           HostName,
		Description:    HostDescription,
		Path:           path,
		Type:           "stdio",
		AllowedOrigins: origins,
	}
}

// getBaseDir returns the base directory for browser data
func (c *ChromiumBrowser) getBaseDir(user platform.User) string {
	switch platform.CurrentOS() {
	case platform.Linux:
		if c.paths.Linux == "" {
			return ""
		}
		return filepath.Join(user.HomeDir, c.paths.Linux)

	case platform.Darwin:
		if c.paths.Darwin == "" {
			return ""
		}
		return filepath.Join(user.HomeDir, c.paths.Darwin)

	case platform.Windows:
		if c.paths.Windows == "" {
			return ""
		}
		base := user.AppDataDir(false)
		if base == "" {
			return ""
		}
		return filepath.Join(base, c.paths.Windows)

	default:
		return ""
	}
}
