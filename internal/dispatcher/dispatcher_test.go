// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tab_monitor/internal/dto"
	"tab_monitor/internal/notify"
	"tab_monitor/internal/session"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeChecker struct {
	mu       sync.Mutex
	verdicts map[string]dto.SiteSafetyRecord
	checked  []string
	delay    map[string]time.Duration
}

func (f *fakeChecker) Check(ctx context.Context, rawURL string) dto.SiteSafetyRecord {
	f.mu.Lock()
	f.checked = append(f.checked, rawURL)
	d := f.delay[rawURL]
	v, ok := f.verdicts[rawURL]
	f.mu.Unlock()

	if d > 0 {
		time.Sleep(d)
	}
	if !ok {
		return dto.SiteSafetyRecord{Safe: true}
	}
	return v
}

func (f *fakeChecker) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.checked...)
}

type fakeSites struct {
	mu      sync.Mutex
	entries []dto.VisitedSiteEntry
	err     error
}

func (f *fakeSites) Record(entry dto.VisitedSiteEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append([]dto.VisitedSiteEntry{entry}, f.entries...)
	return nil
}

type fakeReporter struct {
	mu      sync.Mutex
	records []dto.ActivityRecord
}

func (f *fakeReporter) Report(record dto.ActivityRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
}

func (f *fakeReporter) byAction(action dto.Action) []dto.ActivityRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []dto.ActivityRecord
	for _, r := range f.records {
		if r.Action == action {
			out = append(out, r)
		}
	}
	return out
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (f *fakeNotifier) Notify(n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) read() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	d        *Dispatcher
	clock    *clock
	checker  *fakeChecker
	sites    *fakeSites
	reporter *fakeReporter
	notifier *fakeNotifier
	logs     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		checker:  &fakeChecker{verdicts: map[string]dto.SiteSafetyRecord{}, delay: map[string]time.Duration{}},
		sites:    &fakeSites{},
		reporter: &fakeReporter{},
		notifier: &fakeNotifier{},
		logs:     &bytes.Buffer{},
		clock:    &clock{now: t0},
	}
	logger := log.New(h.logs, "", 0)
	tracker := session.NewTracker(h.reporter)
	tracker.SetClock(h.clock.read)
	h.d = New(h.checker, h.sites, h.reporter, h.notifier, tracker, logger)
	h.d.SetClock(h.clock.read)
	return h
}

func (h *harness) handle(t *testing.T, ev Event) {
	t.Helper()
	require.NoError(t, h.d.Handle(context.Background(), ev))
}

func TestActivation_SafeSite(t *testing.T) {
	h := newHarness(t)

	h.handle(t, TabActivated{TabID: 7, WindowID: 2, URL: "https://example.com", Title: "Example"})

	require.Len(t, h.sites.entries, 1)
	assert.Equal(t, dto.VisitedSiteEntry{
		URL:       "https://example.com",
		Title:     "Example",
		Safe:      true,
		VisitedAt: t0,
	}, h.sites.entries[0])

	switches := h.reporter.byAction(dto.ActionTabSwitch)
	require.Len(t, switches, 1)
	rec := switches[0]
	assert.Equal(t, "https://example.com", rec.URL)
	assert.Equal(t, "example.com", rec.Domain)
	assert.Equal(t, 7, *rec.TabID)
	assert.Equal(t, 2, *rec.WindowID)
	assert.Equal(t, "2025-03-01T12:00:00.000Z", rec.Timestamp)

	assert.Empty(t, h.notifier.sent)
}

func TestActivation_UnsafeSite(t *testing.T) {
	h := newHarness(t)
	h.checker.verdicts["https://evil.test"] = dto.SiteSafetyRecord{Safe: false, Message: "This URL is flagged as MALWARE"}

	h.handle(t, TabActivated{TabID: 1, WindowID: 1, URL: "https://evil.test"})

	require.Len(t, h.sites.entries, 1)
	assert.Equal(t, dto.VisitedSiteEntry{
		URL:       "https://evil.test",
		Title:     UnknownPage,
		Safe:      false,
		Message:   "This URL is flagged as MALWARE",
		VisitedAt: t0,
	}, h.sites.entries[0])

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, notify.Unsafe("This URL is flagged as MALWARE"), h.notifier.sent[0])
	assert.Equal(t, "Unsafe Website Detected", h.notifier.sent[0].Title)

	assert.Empty(t, h.reporter.byAction(dto.ActionTabSwitch))

	// No dwell time is tracked for flagged sites either
	h.handle(t, TabRemoved{TabID: 1})
	assert.Empty(t, h.reporter.byAction(dto.ActionSaveActivity))
}

func TestActivation_NonWebURLIsIgnored(t *testing.T) {
	for _, raw := range []string{"", "chrome://settings", "chrome-extension://abc/popup.html", "about:blank", "file:///etc/hosts"} {
		t.Run(raw, func(t *testing.T) {
			h := newHarness(t)
			h.handle(t, TabActivated{TabID: 1, WindowID: 1, URL: raw, Title: "Settings"})

			assert.Empty(t, h.checker.calls())
			assert.Empty(t, h.sites.entries)
			assert.Empty(t, h.reporter.records)
			assert.Empty(t, h.notifier.sent)
		})
	}
}

func TestActivation_MalformedURL(t *testing.T) {
	h := newHarness(t)
	err := h.d.Handle(context.Background(), TabActivated{TabID: 1, URL: "http://[::1"})
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.Empty(t, h.checker.calls())
}

func TestActivation_StorageFailureStillReports(t *testing.T) {
	h := newHarness(t)
	h.sites.err = errors.New("quota exceeded")

	h.handle(t, TabActivated{TabID: 1, WindowID: 1, URL: "https://example.com"})

	assert.Contains(t, h.logs.String(), "quota exceeded")
	assert.Len(t, h.reporter.byAction(dto.ActionTabSwitch), 1)
}

func TestActivation_ExitsPreviousTab(t *testing.T) {
	h := newHarness(t)

	h.handle(t, TabActivated{TabID: 1, WindowID: 1, URL: "https://a.test", Title: "A"})
	h.handle(t, TabActivated{TabID: 2, WindowID: 1, URL: "https://b.test", Title: "B"})

	saves := h.reporter.byAction(dto.ActionSaveActivity)
	require.Len(t, saves, 1)
	assert.Equal(t, "https://a.test", saves[0].URL)
	assert.Equal(t, "A", saves[0].Title)
}

func TestNavigation_TopFrameExitsThenEnters(t *testing.T) {
	h := newHarness(t)

	h.handle(t, TabActivated{TabID: 1, WindowID: 1, URL: "https://a.test", Title: "A"})
	h.handle(t, TitleUpdated{TabID: 1, Title: "B page"})
	h.handle(t, NavigationCommitted{TabID: 1, FrameID: 0, URL: "https://b.test"})
	h.handle(t, TabRemoved{TabID: 1})

	saves := h.reporter.byAction(dto.ActionSaveActivity)
	require.Len(t, saves, 2)
	assert.Equal(t, "https://a.test", saves[0].URL)
	assert.Equal(t, "https://b.test", saves[1].URL)
	assert.Equal(t, "B page", saves[1].Title)
}

func TestNavigation_InNewTabIsTimed(t *testing.T) {
	h := newHarness(t)

	h.handle(t, TabActivated{TabID: 1, WindowID: 1, URL: "https://example.com", Title: "Example"})
	h.handle(t, TabActivated{TabID: 2, WindowID: 1, URL: "chrome://newtab/"})
	assert.Empty(t, h.reporter.byAction(dto.ActionSaveActivity))

	h.handle(t, NavigationCommitted{TabID: 2, FrameID: 0, URL: "https://news.test/"})
	h.clock.advance(60 * time.Second)
	h.handle(t, TabRemoved{TabID: 2})
	h.handle(t, TabRemoved{TabID: 1})

	saves := h.reporter.byAction(dto.ActionSaveActivity)
	require.Len(t, saves, 2)
	assert.Equal(t, "https://example.com", saves[0].URL)
	assert.Equal(t, 0.0, *saves[0].DurationSeconds)
	assert.Equal(t, "https://news.test/", saves[1].URL)
	assert.Equal(t, 60.0, *saves[1].DurationSeconds)
}

func TestActivation_AfterNonWebTabExitsEarlierVisit(t *testing.T) {
	h := newHarness(t)

	h.handle(t, TabActivated{TabID: 1, WindowID: 1, URL: "https://a.test", Title: "A"})
	h.handle(t, TabActivated{TabID: 2, WindowID: 1, URL: "chrome://settings"})
	h.clock.advance(10 * time.Second)
	h.handle(t, TabActivated{TabID: 3, WindowID: 1, URL: "https://c.test", Title: "C"})

	saves := h.reporter.byAction(dto.ActionSaveActivity)
	require.Len(t, saves, 1)
	assert.Equal(t, "https://a.test", saves[0].URL)
	assert.Equal(t, 10.0, *saves[0].DurationSeconds)
}

func TestActivation_UsesCachedTitle(t *testing.T) {
	h := newHarness(t)

	h.handle(t, TitleUpdated{TabID: 4, Title: "Cached"})
	h.handle(t, TabActivated{TabID: 4, WindowID: 1, URL: "https://example.com"})

	require.Len(t, h.sites.entries, 1)
	assert.Equal(t, "Cached", h.sites.entries[0].Title)
}

func TestNavigation_SubFrameIgnored(t *testing.T) {
	h := newHarness(t)

	h.handle(t, TabActivated{TabID: 1, WindowID: 1, URL: "https://a.test"})
	h.handle(t, NavigationCommitted{TabID: 1, FrameID: 3, URL: "https://ads.test/frame"})

	assert.Empty(t, h.reporter.byAction(dto.ActionSaveActivity))
}

func TestNavigation_ToNonWebOnlyExits(t *testing.T) {
	h := newHarness(t)

	h.handle(t, TabActivated{TabID: 1, WindowID: 1, URL: "https://a.test"})
	h.handle(t, NavigationCommitted{TabID: 1, URL: "chrome://newtab"})
	h.handle(t, TabRemoved{TabID: 1})

	saves := h.reporter.byAction(dto.ActionSaveActivity)
	require.Len(t, saves, 1)
	assert.Equal(t, "https://a.test", saves[0].URL)
}

func TestNavigation_BackgroundTabDoesNotStartVisit(t *testing.T) {
	h := newHarness(t)

	h.handle(t, TabActivated{TabID: 1, WindowID: 1, URL: "https://a.test"})
	h.handle(t, NavigationCommitted{TabID: 2, URL: "https://background.test"})
	h.handle(t, TabRemoved{TabID: 2})

	assert.Empty(t, h.reporter.byAction(dto.ActionSaveActivity))
}

func TestRemoved_WithoutVisitIsNoop(t *testing.T) {
	h := newHarness(t)
	h.handle(t, TabRemoved{TabID: 9})
	assert.Empty(t, h.reporter.records)
}

func TestTitleUpdated_NoTelemetry(t *testing.T) {
	h := newHarness(t)
	h.handle(t, TitleUpdated{TabID: 1, Title: "New"})
	assert.Empty(t, h.reporter.records)
	assert.Equal(t, "New", h.d.tracker.Title(1))
}

func TestDispatch_SerializesPerTab(t *testing.T) {
	h := newHarness(t)
	h.checker.delay["https://slow.test"] = 50 * time.Millisecond

	h.d.Dispatch(TabActivated{TabID: 1, WindowID: 1, URL: "https://slow.test", Title: "Slow"})
	h.d.Dispatch(TitleUpdated{TabID: 1, Title: "Renamed"})
	h.d.Dispatch(TabRemoved{TabID: 1})
	h.d.Close()

	// Removal ran after the slow activation finished, so the visit was closed
	saves := h.reporter.byAction(dto.ActionSaveActivity)
	require.Len(t, saves, 1)
	assert.Equal(t, "https://slow.test", saves[0].URL)
	assert.Equal(t, "Slow", saves[0].Title)
}

func TestDispatch_TitleBurstDoesNotBlock(t *testing.T) {
	h := newHarness(t)
	h.checker.delay["https://slow.test"] = 500 * time.Millisecond

	h.d.Dispatch(TabActivated{TabID: 1, WindowID: 1, URL: "https://slow.test"})

	start := time.Now()
	for i := 0; i < 2*queueSize; i++ {
		h.d.Dispatch(TitleUpdated{TabID: 1, Title: fmt.Sprintf("title %d", i)})
	}
	assert.Less(t, time.Since(start), 250*time.Millisecond)

	h.d.Close()
	assert.Equal(t, fmt.Sprintf("title %d", 2*queueSize-1), h.d.tracker.Title(1))
}

func TestDispatch_TabsProceedIndependently(t *testing.T) {
	h := newHarness(t)
	h.checker.delay["https://slow.test"] = 100 * time.Millisecond

	h.d.Dispatch(TabActivated{TabID: 1, WindowID: 1, URL: "https://slow.test"})
	h.d.Dispatch(TitleUpdated{TabID: 2, Title: "Fast"})

	assert.Eventually(t, func() bool {
		return h.d.tracker.Title(2) == "Fast"
	}, 50*time.Millisecond, time.Millisecond)

	h.d.Close()
	assert.Len(t, h.reporter.byAction(dto.ActionTabSwitch), 1)
}

type panickyChecker struct{}

func (panickyChecker) Check(context.Context, string) dto.SiteSafetyRecord { panic("boom") }

func TestDispatch_PanicIsContained(t *testing.T) {
	h := newHarness(t)
	h.d.checker = panickyChecker{}

	h.d.Dispatch(TabActivated{TabID: 1, WindowID: 1, URL: "https://a.test"})
	h.d.Dispatch(TitleUpdated{TabID: 1, Title: "still alive"})
	h.d.Close()

	assert.Contains(t, h.logs.String(), "panic")
	assert.Equal(t, "still alive", h.d.tracker.Title(1))
}

func TestDispatch_AfterCloseDropped(t *testing.T) {
	h := newHarness(t)
	h.d.Close()
	h.d.Dispatch(TitleUpdated{TabID: 1, Title: "late"})
	assert.Contains(t, h.logs.String(), "after shutdown")
}
