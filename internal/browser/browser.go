// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package browser

import (
	"regexp"

	"tab_monitor/internal/platform"
)

// HostName is the native messaging host name the extension connects to
const HostName = "com.tab_monitor.native_host"

// HostDescription is shown by browsers that list registered hosts
const HostDescription = "Tab Monitor native host"

// Manifest is a native messaging host manifest. Chromium browsers use
// AllowedOrigins, Firefox uses AllowedExtensions.
type Manifest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Path              string   `json:"path"`
	Type              string   `json:"type"`
	AllowedOrigins    []string `json:"allowed_origins,omitempty"`
	AllowedExtensions []string `json:"allowed_extensions,omitempty"`
}

// Browser defines what the installer needs to register the host with one browser
type Browser interface {
	// Name returns the browser name (e.g., "chrome", "firefox")
	Name() string

	// Detected reports whether the browser has a data directory for user
	Detected(user platform.User) bool

	// ManifestDir returns the directory browsers scan for host manifests.
	// Empty on Windows, where registration goes through the registry.
	ManifestDir(user platform.User) string

	// RegistryKey returns the HKCU key holding host registrations on Windows
	RegistryKey() string

	// Manifest builds the host manifest for the given launcher path
	Manifest(path string, extensionIDs []string) Manifest
}

// chromeIDPattern matches Chrome Web Store style extension ids
var chromeIDPattern = regexp.MustCompile(`^[a-p]{32}$`)

// ChromiumIDs returns the ids that belong to Chromium extensions
func ChromiumIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if chromeIDPattern.MatchString(id) {
			out = append(out, id)
		}
	}
	return out
}

// GeckoIDs returns the ids that belong to Firefox add-ons
func GeckoIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id != "" && !chromeIDPattern.MatchString(id) {
			out = append(out, id)
		}
	}
	return out
}

// All returns all supported browsers
func All() []Browser {
	return []Browser{
		NewChrome(),
		NewChromium(),
		NewEdge(),
		NewVivaldi(),
		NewFirefox(),
	}
}

// ByName returns a browser by name, or nil if not found
func ByName(name string) Browser {
	for _, b := range All() {
		if b.Name() == name {
			return b
		}
	}
	return nil
}

// SupportedBrowserNames returns names of all supported browsers
func SupportedBrowserNames() []string {
	browsers := All()
	names := make([]string, len(browsers))
	for i, b := range browsers {
		names[i] = b.Name()
	}
	return names
}
