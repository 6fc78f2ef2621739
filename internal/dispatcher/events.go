// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package dispatcher

// Event is a browser tab notification. Events for the same tab are handled
// in the order they are dispatched.
type Event interface {
	Tab() int
}

// TabActivated fires when the user focuses a different tab
type TabActivated struct {
	TabID    int
	WindowID int
	URL      string
	Title    string
}

// NavigationCommitted fires when a frame of a tab commits a new document
type NavigationCommitted struct {
	TabID   int
	FrameID int
	URL     string
}

// TabRemoved fires when a tab is closed
type TabRemoved struct {
	TabID int
}

// TitleUpdated fires when a tab's title changes
type TitleUpdated struct {
	TabID int
	Title string
}

func (e TabActivated) Tab() int        { return e.TabID }
func (e NavigationCommitted) Tab() int { return e.TabID }
func (e TabRemoved) Tab() int          { return e.TabID }
func (e TitleUpdated) Tab() int        { return e.TabID }
