// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package notify

import "log"

// UnsafeTitle is the fixed title of unsafe-site notifications
const UnsafeTitle = "Unsafe Website Detected"

// Notification is a user-facing system notification
type Notification struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	IconURL  string `json:"iconUrl"`
	Priority int    `json:"priority"`
}

// Unsafe builds the alert shown when a site fails its reputation check
func Unsafe(message string) Notification {
	return Notification{
		Title:    UnsafeTitle,
		Message:  message,
		IconURL:  "icon.png",
		Priority: 2,
	}
}

// Notifier surfaces notifications to the user
type Notifier interface {
	Notify(n Notification) error
}

// LogNotifier writes notifications to a logger, for runs without a browser
type LogNotifier struct {
	Logger *log.Logger
}

// Notify logs n
func (l LogNotifier) Notify(n Notification) error {
	l.Logger.Printf("NOTIFY [%s] %s", n.Title, n.Message)
	return nil
}
