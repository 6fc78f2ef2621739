// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

// Package platform describes the operating system and user the native host
// is registered for.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// OS is an operating system host registration is implemented for
type OS string

const (
	Linux   OS = "linux"
	Windows OS = "windows"
	Darwin  OS = "darwin"
)

// ErrUnsupportedOS is returned where browsers cannot be registered with
var ErrUnsupportedOS = errors.New("unsupported operating system")

// User is the account browsers launch the host as
type User struct {
	Username string
	HomeDir  string
	UID      string
}

// CurrentOS returns the running operating system
func CurrentOS() OS {
	return OS(runtime.GOOS)
}

// CheckSupported fails with ErrUnsupportedOS outside Linux, Windows and macOS
func CheckSupported() error {
	switch CurrentOS() {
	case Linux, Windows, Darwin:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
	}
}

// AppDataDir returns the user's Windows AppData\Local or AppData\Roaming
// directory, or "" when neither the home directory nor the environment
// names it
func (u User) AppDataDir(roaming bool) string {
	name, env := "Local", "LOCALAPPDATA"
	if roaming {
		name, env = "Roaming", "APPDATA"
	}
	if u.HomeDir != "" {
		return filepath.Join(u.HomeDir, "AppData", name)
	}
	return os.Getenv(env)
}
