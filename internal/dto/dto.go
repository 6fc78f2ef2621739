// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package dto

import "time"

// Action tags the kind of activity carried by an ActivityRecord
type Action string

const (
	ActionSaveActivity Action = "save_activity"
	ActionTabSwitch    Action = "log_tab_switch"
	ActionMouseClick   Action = "log_mouse_click"
	ActionLinkClick    Action = "log_link_click"
	ActionKeyPress     Action = "log_key_press"
)

// TimeFormat matches JavaScript's Date.toISOString output
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in UTC using TimeFormat
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// Valid reports whether a is one of the known actions
func (a Action) Valid() bool {
	switch a {
	case ActionSaveActivity, ActionTabSwitch, ActionMouseClick, ActionLinkClick, ActionKeyPress:
		return true
	}
	return false
}

// ActivityRecord is one reported event sent to the collection endpoint.
// Only the fields relevant to Action are populated.
type ActivityRecord struct {
	Action Action `json:"action"`

	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Referrer string `json:"referrer,omitempty"`

	EnterTime       string   `json:"enter_time,omitempty"`
	ExitTime        string   `json:"exit_time,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`

	X          *int   `json:"x,omitempty"`
	Y          *int   `json:"y,omitempty"`
	ElementTag string `json:"element_tag,omitempty"`
	Key        string `json:"key,omitempty"`

	TabID    *int `json:"tab_id,omitempty"`
	WindowID *int `json:"window_id,omitempty"`

	Timestamp string `json:"timestamp,omitempty"`
}

// NewSaveActivity creates a dwell-time record for a finished tab session
func NewSaveActivity(url, title string, enter, exit time.Time) ActivityRecord {
	duration := exit.Sub(enter).Seconds()
	return ActivityRecord{
		Action:          ActionSaveActivity,
		URL:             url,
		Title:           title,
		EnterTime:       FormatTime(enter),
		ExitTime:        FormatTime(exit),
		DurationSeconds: &duration,
	}
}

// NewTabSwitch creates a record for a tab activation on a safe site
func NewTabSwitch(url, domain string, tabID, windowID int, at time.Time) ActivityRecord {
	return ActivityRecord{
		Action:    ActionTabSwitch,
		URL:       url,
		Domain:    domain,
		TabID:     &tabID,
		WindowID:  &windowID,
		Timestamp: FormatTime(at),
	}
}

// NewMouseClick creates a record for a click anywhere on a page
func NewMouseClick(pageURL string, x, y int, elementTag string, at time.Time) ActivityRecord {
	return ActivityRecord{
		Action:     ActionMouseClick,
		URL:        pageURL,
		X:          &x,
		Y:          &y,
		ElementTag: elementTag,
		Timestamp:  FormatTime(at),
	}
}

// NewLinkClick creates a record for a click on an anchor with an href
func NewLinkClick(href, referrer string, at time.Time) ActivityRecord {
	return ActivityRecord{
		Action:    ActionLinkClick,
		URL:       href,
		Referrer:  referrer,
		Timestamp: FormatTime(at),
	}
}

// NewKeyPress creates a record for a keydown on a page
func NewKeyPress(pageURL, key string, at time.Time) ActivityRecord {
	return ActivityRecord{
		Action:    ActionKeyPress,
		URL:       pageURL,
		Key:       key,
		Timestamp: FormatTime(at),
	}
}

// SiteSafetyRecord is the verdict of a reputation check
type SiteSafetyRecord struct {
	Safe    bool   `json:"safe"`
	Message string `json:"message,omitempty"`
}

// VisitedSiteEntry is one entry of the recent-sites list
type VisitedSiteEntry struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Safe      bool      `json:"safe"`
	Message   string    `json:"message,omitempty"`
	VisitedAt time.Time `json:"visitedAt"`
}
