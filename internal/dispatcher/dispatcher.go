// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

// Package dispatcher turns browser tab notifications into reputation checks,
// recent-site entries, alerts and activity records.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"tab_monitor/internal/dto"
	"tab_monitor/internal/notify"
	"tab_monitor/internal/session"
)

// UnknownPage is the recent-sites title used when a tab has none
const UnknownPage = "Unknown Page"

// queueSize is the per-tab event backlog before Dispatch blocks
const queueSize = 32

// ErrInvalidURL is returned for tab URLs that cannot be parsed
var ErrInvalidURL = errors.New("invalid tab url")

// Checker produces a safety verdict for a URL
type Checker interface {
	Check(ctx context.Context, rawURL string) dto.SiteSafetyRecord
}

// SiteRecorder stores recent-site entries
type SiteRecorder interface {
	Record(entry dto.VisitedSiteEntry) error
}

// Reporter delivers activity records
type Reporter interface {
	Report(record dto.ActivityRecord)
}

// Dispatcher owns the per-tab session state and serializes handling per tab.
// Dispatch must be called from a single goroutine.
type Dispatcher struct {
	checker  Checker
	sites    SiteRecorder
	reporter Reporter
	notifier notify.Notifier
	tracker  *session.Tracker
	logger   *log.Logger
	now      func() time.Time

	mu        sync.Mutex
	queues    map[int]chan Event
	titles    map[int]string // latest title per tab not yet applied
	activeTab int
	hasActive bool
	closed    bool
	wg        sync.WaitGroup
}

// New creates a dispatcher
func New(checker Checker, sites SiteRecorder, reporter Reporter, notifier notify.Notifier, tracker *session.Tracker, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		checker:  checker,
		sites:    sites,
		reporter: reporter,
		notifier: notifier,
		tracker:  tracker,
		logger:   logger,
		now:      time.Now,
		queues:   make(map[int]chan Event),
		titles:   make(map[int]string),
	}
}

// SetClock replaces the time source, for tests
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Dispatch queues ev on its tab's worker, starting one if needed.
// The worker of a removed tab exits once its backlog is drained.
// Title updates waiting in a queue are merged into one and never block.
func (d *Dispatcher) Dispatch(ev Event) {
	tabID := ev.Tab()
	_, removal := ev.(TabRemoved)
	title, retitle := ev.(TitleUpdated)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Printf("Warning: dropping %T for tab %d after shutdown", ev, tabID)
		return
	}
	if retitle {
		_, pending := d.titles[tabID]
		d.titles[tabID] = title.Title
		if pending {
			d.mu.Unlock()
			return
		}
	}
	q, ok := d.queues[tabID]
	if !ok {
		q = make(chan Event, queueSize)
		d.queues[tabID] = q
		d.wg.Add(1)
		go d.worker(tabID, q)
	}
	if removal {
		delete(d.queues, tabID)
	}
	d.mu.Unlock()

	if retitle {
		select {
		case q <- ev:
		default:
			// Backlog full: apply now rather than stall every other tab
			d.tracker.SetTitle(tabID, d.takeTitle(title).Title)
		}
		return
	}

	q <- ev
	if removal {
		close(q)
	}
}

// takeTitle swaps e for the latest pending title of its tab
func (d *Dispatcher) takeTitle(e TitleUpdated) TitleUpdated {
	d.mu.Lock()
	defer d.mu.Unlock()
	if title, ok := d.titles[e.TabID]; ok {
		e.Title = title
		delete(d.titles, e.TabID)
	}
	return e
}

// Close stops accepting events and waits for queued ones to finish
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	queues := d.queues
	d.queues = make(map[int]chan Event)
	d.mu.Unlock()

	for _, q := range queues {
		close(q)
	}
	d.wg.Wait()
}

func (d *Dispatcher) worker(tabID int, q <-chan Event) {
	defer d.wg.Done()
	for ev := range q {
		if e, ok := ev.(TitleUpdated); ok {
			ev = d.takeTitle(e)
		}
		d.handleSafely(ev)
	}
}

// handleSafely keeps one bad event from taking down the tab's worker
func (d *Dispatcher) handleSafely(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("Error: panic handling %T for tab %d: %v", ev, ev.Tab(), r)
		}
	}()

	if err := d.Handle(context.Background(), ev); err != nil {
		d.logger.Printf("Error: %T for tab %d: %v", ev, ev.Tab(), err)
	}
}

// Handle processes ev synchronously on the calling goroutine
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case TabActivated:
		return d.handleActivated(ctx, e)
	case NavigationCommitted:
		return d.handleNavigation(e)
	case TabRemoved:
		d.handleRemoved(e)
		return nil
	case TitleUpdated:
		d.tracker.SetTitle(e.TabID, e.Title)
		return nil
	default:
		return fmt.Errorf("unknown event %T", ev)
	}
}

func (d *Dispatcher) handleActivated(ctx context.Context, e TabActivated) error {
	// Focus moves even to pages that are not tracked
	d.setActive(e.TabID)

	u, ok, err := parseWebURL(e.URL)
	if err != nil {
		return err
	}
	if !ok {
		// Extension pages, settings, blank tabs
		return nil
	}

	// Earlier visits stop accumulating time now
	d.tracker.ExitAll()
	if e.Title != "" {
		d.tracker.SetTitle(e.TabID, e.Title)
	}

	verdict := d.checker.Check(ctx, e.URL)

	title := e.Title
	if title == "" {
		title = d.tracker.Title(e.TabID)
	}
	if title == session.UnknownTitle {
		title = UnknownPage
	}
	entry := dto.VisitedSiteEntry{
		URL:       e.URL,
		Title:     title,
		Safe:      verdict.Safe,
		Message:   verdict.Message,
		VisitedAt: d.now(),
	}
	if err := d.sites.Record(entry); err != nil {
		d.logger.Printf("Error: failed to record visit of %s: %v", e.URL, err)
	}

	if !verdict.Safe {
		if err := d.notifier.Notify(notify.Unsafe(verdict.Message)); err != nil {
			d.logger.Printf("Error: failed to show unsafe-site alert for %s: %v", e.URL, err)
		}
		// Nothing about flagged destinations leaves the machine
		return nil
	}

	d.reporter.Report(dto.NewTabSwitch(e.URL, u.Hostname(), e.TabID, e.WindowID, d.now()))
	d.tracker.Enter(e.TabID, e.URL, e.Title)
	return nil
}

func (d *Dispatcher) handleNavigation(e NavigationCommitted) error {
	if e.FrameID != 0 {
		return nil
	}

	_, web, err := parseWebURL(e.URL)
	if err != nil || !web || !d.isActive(e.TabID) {
		d.tracker.Exit(e.TabID)
		return err
	}

	d.tracker.ExitOthers(e.TabID)
	d.tracker.Switch(e.TabID, e.URL)
	return nil
}

func (d *Dispatcher) handleRemoved(e TabRemoved) {
	d.tracker.Exit(e.TabID)
	d.tracker.Forget(e.TabID)

	d.mu.Lock()
	if d.hasActive && d.activeTab == e.TabID {
		d.hasActive = false
	}
	d.mu.Unlock()
}

// setActive marks tabID as focused
func (d *Dispatcher) setActive(tabID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activeTab = tabID
	d.hasActive = true
}

func (d *Dispatcher) isActive(tabID int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasActive && d.activeTab == tabID
}

// parseWebURL reports whether raw is an http(s) URL.
// An empty raw is not an error, just not browsable.
func parseWebURL(raw string) (*url.URL, bool, error) {
	if raw == "" {
		return nil, false, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return u, false, nil
	}
	return u, true, nil
}
