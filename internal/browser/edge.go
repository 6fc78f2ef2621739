// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package browser

// NewEdge creates the Microsoft Edge registration target
func NewEdge() *ChromiumBrowser {
	return NewChromiumBrowser("edge", ChromiumPaths{
		Linux:       ".config/microsoft-edge",
		Darwin:      "Library/Application Support/Microsoft Edge",
		Windows:     "Microsoft\\Edge\\User Data",
		RegistryKey: "Software\\Microsoft\\Edge\\NativeMessagingHosts",
	})
}
