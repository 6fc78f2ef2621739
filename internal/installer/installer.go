// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package installer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"tab_monitor/internal/browser"
	"tab_monitor/internal/config"
	"tab_monitor/internal/platform"
)

// ErrNoExtensionIDs is returned when there is no extension to admit
var ErrNoExtensionIDs = errors.New("no extension ids configured (set extension_ids)")

// ErrNoBrowsers is returned when no supported browser was detected
var ErrNoBrowsers = errors.New("no supported browser found")

// Installer registers the native host with the user's browsers
type Installer interface {
	// Install copies the binary, writes config and launcher, and registers
	// the host. Returns the names of the browsers it registered with.
	Install(cfg *config.Config) ([]string, error)
	Uninstall() error
	IsInstalled() bool
}

// New creates a platform-specific installer for the current user
func New() (Installer, error) {
	if err := platform.CheckSupported(); err != nil {
		return nil, err
	}
	user, err := platform.GetCurrentUser()
	if err != nil {
		return nil, err
	}
	return newPlatformInstaller(user, browser.All()), nil
}

// InstallPaths contains the installation paths for one user
type InstallPaths struct {
	BinaryPath   string
	ConfigPath   string
	LauncherPath string // What browsers execute; forwards to "host"
	ManifestDir  string // Windows only: manifests referenced from the registry
}

// GetInstallPaths returns the installation paths for user on the current platform
func GetInstallPaths(user platform.User) InstallPaths {
	switch platform.CurrentOS() {
	case platform.Linux:
		base := filepath.Join(user.HomeDir, ".local", "share", "tab_monitor")
		return InstallPaths{
			BinaryPath:   filepath.Join(base, "tab_monitor"),
			ConfigPath:   filepath.Join(user.HomeDir, ".config", "tab_monitor", "config.yaml"),
			LauncherPath: filepath.Join(base, "tab_monitor_host.sh"),
		}
	case platform.Windows:
		base := filepath.Join(user.AppDataDir(false), "tab_monitor")
		return InstallPaths{
			BinaryPath:   filepath.Join(base, "tab_monitor.exe"),
			ConfigPath:   filepath.Join(base, "config.yaml"),
			LauncherPath: filepath.Join(base, "tab_monitor_host.bat"),
			ManifestDir:  filepath.Join(base, "manifests"),
		}
	case platform.Darwin:
		base := filepath.Join(user.HomeDir, "Library", "Application Support", "tab_monitor")
		return InstallPaths{
			BinaryPath:   filepath.Join(base, "tab_monitor"),
			ConfigPath:   filepath.Join(base, "config.yaml"),
			LauncherPath: filepath.Join(base, "tab_monitor_host.sh"),
		}
	default:
		return InstallPaths{}
	}
}

// Browsers start the host with the caller's origin as an argument, so the
// launcher pins the subcommand and config and passes the rest through.
const unixLauncherTemplate = `#!/bin/sh
exec "{{.BinaryPath}}" host --config "{{.ConfigPath}}" "$@"
`

const windowsLauncherTemplate = "@echo off\r\n\"{{.BinaryPath}}\" host --config \"{{.ConfigPath}}\" %*\r\n"

// installFiles puts the binary, config and launcher in place
func installFiles(cfg *config.Config, paths InstallPaths) error {
	if len(cfg.ExtensionIDs) == 0 {
		return ErrNoExtensionIDs
	}

	if err := CopyBinary(paths.BinaryPath); err != nil {
		return fmt.Errorf("failed to copy binary: %w", err)
	}

	if err := WriteConfig(cfg, paths.ConfigPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := WriteLauncher(paths); err != nil {
		return fmt.Errorf("failed to write launcher: %w", err)
	}

	return nil
}

// removeFiles deletes what installFiles created
func removeFiles(paths InstallPaths) {
	RemoveFile(paths.LauncherPath)
	RemoveFile(paths.BinaryPath)
	RemoveFile(paths.ConfigPath)
	RemoveDir(filepath.Dir(paths.BinaryPath))
	RemoveDir(filepath.Dir(paths.ConfigPath))
}

// CopyBinary copies the current executable to the installation path
func CopyBinary(dstPath string) error {
	// Get current executable path
	srcPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get current executable: %w", err)
	}

	// Resolve symlinks
	srcPath, err = filepath.EvalSymlinks(srcPath)
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	// Reinstalling from the installed copy
	if dst, err := filepath.EvalSymlinks(dstPath); err == nil && dst == srcPath {
		return nil
	}

	dstDir := filepath.Dir(dstPath)
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dstDir, err)
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read source binary: %w", err)
	}

	if err := os.WriteFile(dstPath, data, 0755); err != nil {
		return fmt.Errorf("failed to write binary: %w", err)
	}

	return nil
}

// WriteConfig writes the configuration file with restricted permissions
func WriteConfig(cfg *config.Config, configPath string) error {
	return cfg.SaveToFile(configPath)
}

// WriteLauncher writes the script browsers execute for the host
func WriteLauncher(paths InstallPaths) error {
	text := unixLauncherTemplate
	if platform.CurrentOS() == platform.Windows {
		text = windowsLauncherTemplate
	}

	tmpl, err := template.New("launcher").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse launcher template: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(paths.LauncherPath), 0755); err != nil {
		return fmt.Errorf("failed to create launcher directory: %w", err)
	}

	f, err := os.OpenFile(paths.LauncherPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
	if err != nil {
		return fmt.Errorf("failed to create launcher: %w", err)
	}
	defer f.Close()

	return tmpl.Execute(f, paths)
}

// WriteManifest writes m as the host manifest at path
func WriteManifest(path string, m browser.Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// manifestFile is the file name browsers look up for the host
func manifestFile() string {
	return browser.HostName + ".json"
}

// RemoveFile removes a file if it exists
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveDir removes a directory if it's empty
func RemoveDir(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		// Ignore "directory not empty" errors
		return nil
	}
	return nil
}
