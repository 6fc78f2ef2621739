// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package platform

import (
	"fmt"
	"os"
	"os/user"
)

// GetCurrentUser returns the user the host is registered for. Browsers
// launch native hosts as the logged-in user, so registration is per user.
func GetCurrentUser() (User, error) {
	u, err := user.Current()
	if err != nil {
		// Some containers have no passwd entry for the running uid
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return User{}, fmt.Errorf("failed to determine current user: %w", err)
		}
		return User{Username: os.Getenv("USER"), HomeDir: home}, nil
	}

	return User{
		Username: u.Username,
		HomeDir:  u.HomeDir,
		UID:      u.Uid,
	}, nil
}
