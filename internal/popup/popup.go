// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

// Package popup renders the recent-sites list for the terminal.
package popup

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"tab_monitor/internal/dto"
)

const (
	// EmptyMessage is shown when no sites have been recorded
	EmptyMessage = "No browsing data available."

	unknownTitle = "Unknown Page"
)

var (
	colorSafe   = lipgloss.Color("#22c55e")
	colorUnsafe = lipgloss.Color("#ef4444")
	colorLink   = lipgloss.Color("#60a5fa")
	colorMuted  = lipgloss.Color("#6b7280")
)

// styles are bound to a renderer so colors follow the output's capabilities
type styles struct {
	title  lipgloss.Style
	link   lipgloss.Style
	muted  lipgloss.Style
	safe   lipgloss.Style
	unsafe lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	badge := r.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#ffffff"))
	return styles{
		title:  r.NewStyle().Bold(true),
		link:   r.NewStyle().Foreground(colorLink),
		muted:  r.NewStyle().Foreground(colorMuted),
		safe:   badge.Background(colorSafe),
		unsafe: badge.Background(colorUnsafe),
	}
}

// Render writes entries, newest first, to w
func Render(w io.Writer, entries []dto.VisitedSiteEntry, now time.Time) error {
	st := newStyles(lipgloss.NewRenderer(w))

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, st.muted.Render(EmptyMessage))
		return err
	}

	var b strings.Builder
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = unknownTitle
		}

		badge := st.safe.Render("Safe")
		if !e.Safe {
			badge = st.unsafe.Render("Unsafe")
		}

		b.WriteString(badge + " " + st.title.Render(title) + "\n")

		details := st.link.Render(e.URL)
		if !e.VisitedAt.IsZero() {
			details += st.muted.Render(" · " + humanize.RelTime(e.VisitedAt, now, "ago", "from now"))
		}
		b.WriteString("    " + details + "\n")

		if !e.Safe && e.Message != "" {
			b.WriteString("    " + st.muted.Render(e.Message) + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
