//go:build windows

// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package installer

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"tab_monitor/internal/browser"
	"tab_monitor/internal/config"
	"tab_monitor/internal/platform"
)

// newPlatformInstaller creates the Windows installer
func newPlatformInstaller(user platform.User, browsers []browser.Browser) Installer {
	return &WindowsInstaller{
		user:     user,
		paths:    GetInstallPaths(user),
		browsers: browsers,
	}
}

// WindowsInstaller registers the host through HKCU registry keys that
// point at manifest files
type WindowsInstaller struct {
	user     platform.User
	paths    InstallPaths
	browsers []browser.Browser
}

func hostKey(b browser.Browser) string {
	return `HKCU\` + b.RegistryKey() + `\` + browser.HostName
}

// Install registers the host with every detected browser
func (i *WindowsInstaller) Install(cfg *config.Config) ([]string, error) {
	if err := installFiles(cfg, i.paths); err != nil {
		return nil, err
	}

	var registered []string
	for _, b := range i.browsers {
		if !b.Detected(i.user) {
			continue
		}

		manifestPath := filepath.Join(i.paths.ManifestDir, b.Name()+".json")
		if err := WriteManifest(manifestPath, b.Manifest(i.paths.LauncherPath, cfg.ExtensionIDs)); err != nil {
			return registered, fmt.Errorf("%s: %w", b.Name(), err)
		}

		cmd := exec.Command("reg", "add", hostKey(b), "/ve", "/t", "REG_SZ", "/d", manifestPath, "/f")
		if output, err := cmd.CombinedOutput(); err != nil {
			return registered, fmt.Errorf("failed to register with %s: %w\n%s", b.Name(), err, output)
		}
		registered = append(registered, b.Name())
	}

	if len(registered) == 0 {
		return nil, ErrNoBrowsers
	}
	return registered, nil
}

// Uninstall removes the registry keys, manifests and installed files
func (i *WindowsInstaller) Uninstall() error {
	for _, b := range i.browsers {
		cmd := exec.Command("reg", "delete", hostKey(b), "/f")
		cmd.Run() // Ignore errors
		RemoveFile(filepath.Join(i.paths.ManifestDir, b.Name()+".json"))
	}
	RemoveDir(i.paths.ManifestDir)

	removeFiles(i.paths)
	return nil
}

// IsInstalled checks if any browser has the host registered
func (i *WindowsInstaller) IsInstalled() bool {
	for _, b := range i.browsers {
		if exec.Command("reg", "query", hostKey(b)).Run() == nil {
			return true
		}
	}
	return false
}
