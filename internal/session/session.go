// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

// Package session measures how long each tab stays on a page and reports the
// dwell time when the tab leaves it.
package session

import (
	"sync"
	"time"

	"tab_monitor/internal/dto"
)

// UnknownTitle is used when a tab's title was never observed
const UnknownTitle = "Unknown"

// Reporter receives finished-session records
type Reporter interface {
	Report(record dto.ActivityRecord)
}

type visit struct {
	url       string
	title     string
	enteredAt time.Time
}

// Tracker holds one open visit per tab and the last title seen for each tab
type Tracker struct {
	reporter Reporter
	now      func() time.Time

	mu     sync.Mutex
	visits map[int]visit
	titles map[int]string
}

// NewTracker creates a tracker reporting through reporter
func NewTracker(reporter Reporter) *Tracker {
	return &Tracker{
		reporter: reporter,
		now:      time.Now,
		visits:   make(map[int]visit),
		titles:   make(map[int]string),
	}
}

// SetClock replaces the time source, for tests
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// Enter starts a visit of url in tabID, replacing any open visit without
// reporting it. A non-empty title also refreshes the title cache.
func (t *Tracker) Enter(tabID int, url, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enter(tabID, url, title)
}

// Exit closes the open visit of tabID and reports its duration.
// Does nothing when the tab has no open visit.
func (t *Tracker) Exit(tabID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exit(tabID)
}

// Switch closes the open visit of tabID and starts one for url in a single
// step, using the cached title of the tab
func (t *Tracker) Switch(tabID int, url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exit(tabID)
	t.enter(tabID, url, "")
}

// ExitOthers closes the open visits of every tab except keep
func (t *Tracker) ExitOthers(keep int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for tabID := range t.visits {
		if tabID != keep {
			t.exit(tabID)
		}
	}
}

// ExitAll closes every open visit
func (t *Tracker) ExitAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for tabID := range t.visits {
		t.exit(tabID)
	}
}

// SetTitle caches the latest title of tabID
func (t *Tracker) SetTitle(tabID int, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.titles[tabID] = title
}

// Title returns the cached title of tabID or UnknownTitle
func (t *Tracker) Title(tabID int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title(tabID)
}

// Forget drops the cached title of tabID
func (t *Tracker) Forget(tabID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.titles, tabID)
}

func (t *Tracker) enter(tabID int, url, title string) {
	if title != "" {
		t.titles[tabID] = title
	}
	t.visits[tabID] = visit{
		url:       url,
		title:     t.title(tabID),
		enteredAt: t.now(),
	}
}

func (t *Tracker) exit(tabID int) {
	v, ok := t.visits[tabID]
	if !ok {
		return
	}
	delete(t.visits, tabID)

	t.reporter.Report(dto.NewSaveActivity(v.url, v.title, v.enteredAt, t.now()))
}

func (t *Tracker) title(tabID int) string {
	if title, ok := t.titles[tabID]; ok && title != "" {
		return title
	}
	return UnknownTitle
}
