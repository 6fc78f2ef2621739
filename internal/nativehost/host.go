// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package nativehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"tab_monitor/internal/dispatcher"
	"tab_monitor/internal/dto"
	"tab_monitor/internal/notify"
	"tab_monitor/internal/page"
)

// Inbound message types sent by the extension shim
const (
	TypeTabActivated        = "tab_activated"
	TypeNavigationCommitted = "navigation_committed"
	TypeTabRemoved          = "tab_removed"
	TypeTitleUpdated        = "title_updated"
	TypePageClick           = "page_click"
	TypePageKeyDown         = "page_keydown"
	TypeRecentSites         = "recent_sites"
	TypePing                = "ping"
)

// Outbound message types
const (
	TypeNotification = "notification"
	TypePong         = "pong"
	TypeError        = "error"
)

// inbound is the flat envelope of every browser message
type inbound struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	TabID    *int   `json:"tab_id"`
	WindowID int    `json:"window_id"`
	FrameID  int    `json:"frame_id"`
	URL      string `json:"url"`
	Title    string `json:"title"`

	X        int    `json:"x"`
	Y        int    `json:"y"`
	Tag      string `json:"tag"`
	Href     string `json:"href"`
	Referrer string `json:"referrer"`
	Key      string `json:"key"`
}

type notificationMessage struct {
	Type         string              `json:"type"`
	Notification notify.Notification `json:"notification"`
}

type recentSitesMessage struct {
	Type  string                 `json:"type"`
	ID    string                 `json:"id,omitempty"`
	Sites []dto.VisitedSiteEntry `json:"sites"`
}

type replyMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Writer serializes outgoing messages from concurrent handlers
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter wraps out, normally stdout
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Send frames and writes v
func (w *Writer) Send(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WriteMessage(w.out, v)
}

// Notify asks the extension to show n
func (w *Writer) Notify(n notify.Notification) error {
	return w.Send(notificationMessage{Type: TypeNotification, Notification: n})
}

// Dispatcher receives tab events
type Dispatcher interface {
	Dispatch(ev dispatcher.Event)
}

// PageReporter receives page events
type PageReporter interface {
	HandleClick(c page.Click)
	HandleKeyDown(k page.KeyDown)
}

// SiteReader lists recent sites for the popup
type SiteReader interface {
	ReadAll() ([]dto.VisitedSiteEntry, error)
}

// Stats counts what a Run processed
type Stats struct {
	Received  int
	Malformed int
}

// Host routes browser messages to the monitor components
type Host struct {
	in         io.Reader
	writer     *Writer
	dispatcher Dispatcher
	pages      PageReporter
	sites      SiteReader
	logger     *log.Logger
}

// New creates a host reading framed messages from in
func New(in io.Reader, writer *Writer, d Dispatcher, pages PageReporter, sites SiteReader, logger *log.Logger) *Host {
	return &Host{
		in:         in,
		writer:     writer,
		dispatcher: d,
		pages:      pages,
		sites:      sites,
		logger:     logger,
	}
}

// Run handles messages until the browser closes the port or ctx is done.
// A nil error means the port was closed cleanly.
func (h *Host) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	type frame struct {
		data []byte
		err  error
	}
	frames := make(chan frame)
	done := make(chan struct{})
	defer close(done)

	// Reads block on stdin, so they run apart from the cancellation select
	go func() {
		for {
			data, err := ReadMessage(h.in)
			select {
			case frames <- frame{data: data, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case f := <-frames:
			if f.err != nil {
				if errors.Is(f.err, io.EOF) {
					return stats, nil
				}
				if errors.Is(f.err, ErrMessageTooLarge) {
					stats.Malformed++
				}
				return stats, f.err
			}

			stats.Received++
			if err := h.handle(f.data); err != nil {
				stats.Malformed++
				h.logger.Printf("Error: %v", err)
				h.reply(replyMessage{Type: TypeError, Error: err.Error()})
			}
		}
	}
}

func (h *Host) handle(data []byte) error {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.Type {
	case TypeTabActivated, TypeNavigationCommitted, TypeTabRemoved, TypeTitleUpdated:
		if msg.TabID == nil {
			return fmt.Errorf("%w: %s without tab_id", ErrMalformedMessage, msg.Type)
		}
		h.dispatcher.Dispatch(tabEvent(msg))

	case TypePageClick:
		h.pages.HandleClick(page.Click{
			PageURL:  msg.URL,
			X:        msg.X,
			Y:        msg.Y,
			Tag:      msg.Tag,
			Href:     msg.Href,
			Referrer: msg.Referrer,
		})

	case TypePageKeyDown:
		h.pages.HandleKeyDown(page.KeyDown{PageURL: msg.URL, Key: msg.Key})

	case TypeRecentSites:
		sites, err := h.sites.ReadAll()
		if err != nil {
			h.logger.Printf("Error: failed to read recent sites: %v", err)
			h.reply(replyMessage{Type: TypeError, ID: msg.ID, Error: "recent sites unavailable"})
			return nil
		}
		if sites == nil {
			sites = []dto.VisitedSiteEntry{}
		}
		h.reply(recentSitesMessage{Type: TypeRecentSites, ID: msg.ID, Sites: sites})

	case TypePing:
		h.reply(replyMessage{Type: TypePong, ID: msg.ID})

	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, msg.Type)
	}
	return nil
}

func tabEvent(msg inbound) dispatcher.Event {
	tabID := *msg.TabID
	switch msg.Type {
	case TypeTabActivated:
		return dispatcher.TabActivated{TabID: tabID, WindowID: msg.WindowID, URL: msg.URL, Title: msg.Title}
	case TypeNavigationCommitted:
		return dispatcher.NavigationCommitted{TabID: tabID, FrameID: msg.FrameID, URL: msg.URL}
	case TypeTabRemoved:
		return dispatcher.TabRemoved{TabID: tabID}
	default:
		return dispatcher.TitleUpdated{TabID: tabID, Title: msg.Title}
	}
}

func (h *Host) reply(v any) {
	if err := h.writer.Send(v); err != nil {
		h.logger.Printf("Error: failed to reply to browser: %v", err)
	}
}
