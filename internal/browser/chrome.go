// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package browser

// NewChrome creates the Google Chrome registration target
func NewChrome() *ChromiumBrowser {
	return NewChromiumBrowser("chrome", ChromiumPaths{
		Linux:       ".config/google-chrome",
		Darwin:      "Library/Application Support/Google/Chrome",
		Windows:     "Google\\Chrome\\User Data",
		RegistryKey: "Software\\Google\\Chrome\\NativeMessagingHosts",
	})
}

// NewChromium creates the open source Chromium registration target
func NewChromium() *ChromiumBrowser {
	return NewChromiumBrowser("chromium", ChromiumPaths{
		Linux:       ".config/chromium",
		Darwin:      "Library/Application Support/Chromium",
		Windows:     "Chromium\\User Data",
		RegistryKey: "Software\\Chromium\\NativeMessagingHosts",
	})
}
