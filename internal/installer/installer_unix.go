//go:build !windows

// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package installer

import (
	"fmt"
	"os"
	"path/filepath"

	"tab_monitor/internal/browser"
	"tab_monitor/internal/config"
	"tab_monitor/internal/platform"
)

// newPlatformInstaller creates the Linux/macOS installer
func newPlatformInstaller(user platform.User, browsers []browser.Browser) Installer {
	return &UnixInstaller{
		user:     user,
		paths:    GetInstallPaths(user),
		browsers: browsers,
	}
}

// UnixInstaller registers the host by dropping manifests into each
// browser's NativeMessagingHosts directory
type UnixInstaller struct {
	user     platform.User
	paths    InstallPaths
	browsers []browser.Browser
}

// Install registers the host with every detected browser
func (i *UnixInstaller) Install(cfg *config.Config) ([]string, error) {
	if err := installFiles(cfg, i.paths); err != nil {
		return nil, err
	}

	var registered []string
	for _, b := range i.browsers {
		dir := b.ManifestDir(i.user)
		if dir == "" || !b.Detected(i.user) {
			continue
		}

		path := filepath.Join(dir, manifestFile())
		if err := WriteManifest(path, b.Manifest(i.paths.LauncherPath, cfg.ExtensionIDs)); err != nil {
			return registered, fmt.Errorf("%s: %w", b.Name(), err)
		}
		registered = append(registered, b.Name())
	}

	if len(registered) == 0 {
		return nil, ErrNoBrowsers
	}
	return registered, nil
}

// Uninstall removes every manifest and the installed files
func (i *UnixInstaller) Uninstall() error {
	for _, b := range i.browsers {
		if dir := b.ManifestDir(i.user); dir != "" {
			RemoveFile(filepath.Join(dir, manifestFile()))
		}
	}

	removeFiles(i.paths)
	return nil
}

// IsInstalled checks if any browser has the host manifest
func (i *UnixInstaller) IsInstalled() bool {
	for _, b := range i.browsers {
		dir := b.ManifestDir(i.user)
		if dir == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, manifestFile())); err == nil {
			return true
		}
	}
	return false
}
