// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package browser

// NewVivaldi creates the Vivaldi registration target. On Windows Vivaldi
// reads Chrome's registry key.
func NewVivaldi() *ChromiumBrowser {
	return NewChromiumBrowser("vivaldi", ChromiumPaths{
		Linux:       ".config/vivaldi",
		Darwin:      "Library/Application Support/Vivaldi",
		Windows:     "Vivaldi\\User Data",
		RegistryKey: "Software\\Google\\Chrome\\NativeMessagingHosts",
	})
}
