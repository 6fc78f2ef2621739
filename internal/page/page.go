// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

// Package page reports pointer and keyboard activity forwarded from the
// content script of each loaded page.
package page

import (
	"strings"
	"time"

	"tab_monitor/internal/dto"
)

// Reporter delivers activity records
type Reporter interface {
	Report(record dto.ActivityRecord)
}

// Click is a pointer click observed on a page
type Click struct {
	PageURL  string
	X        int
	Y        int
	Tag      string
	Href     string // set when the clicked element is a link
	Referrer string
}

// KeyDown is a key press observed on a page
type KeyDown struct {
	PageURL string
	Key     string
}

// EventReporter turns page events into activity records. Every event is
// reported on its own; repeated events are not collapsed.
type EventReporter struct {
	reporter Reporter
	now      func() time.Time
}

// NewEventReporter creates a reporter sending through reporter
func NewEventReporter(reporter Reporter) *EventReporter {
	return &EventReporter{
		reporter: reporter,
		now:      time.Now,
	}
}

// SetClock replaces the time source, for tests
func (r *EventReporter) SetClock(now func() time.Time) {
	r.now = now
}

// HandleClick reports a mouse click, plus a link click for anchors with an href
func (r *EventReporter) HandleClick(c Click) {
	at := r.now()
	r.reporter.Report(dto.NewMouseClick(c.PageURL, c.X, c.Y, c.Tag, at))

	if strings.EqualFold(c.Tag, "A") && c.Href != "" {
		r.reporter.Report(dto.NewLinkClick(c.Href, c.Referrer, at))
	}
}

// HandleKeyDown reports a key press
func (r *EventReporter) HandleKeyDown(k KeyDown) {
	r.reporter.Report(dto.NewKeyPress(k.PageURL, k.Key, r.now()))
}
