// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package page

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tab_monitor/internal/dto"
)

type recordingReporter struct {
	records []dto.ActivityRecord
}

func (r *recordingReporter) Report(record dto.ActivityRecord) {
	r.records = append(r.records, record)
}

var at = time.Date(2025, 3, 1, 12, 0, 0, 250*int(time.Millisecond), time.UTC)

func newTestReporter() (*EventReporter, *recordingReporter) {
	rec := &recordingReporter{}
	r := NewEventReporter(rec)
	r.SetClock(func() time.Time { return at })
	return r, rec
}

func TestHandleClick_PlainElement(t *testing.T) {
	r, rec := newTestReporter()

	r.HandleClick(Click{PageURL: "https://example.com/a", X: 10, Y: 20, Tag: "DIV"})

	require.Len(t, rec.records, 1)
	got := rec.records[0]
	assert.Equal(t, dto.ActionMouseClick, got.Action)
	assert.Equal(t, "https://example.com/a", got.URL)
	assert.Equal(t, 10, *got.X)
	assert.Equal(t, 20, *got.Y)
	assert.Equal(t, "DIV", got.ElementTag)
	assert.Equal(t, "2025-03-01T12:00:00.250Z", got.Timestamp)
}

func TestHandleClick_AnchorAlsoLogsLink(t *testing.T) {
	r, rec := newTestReporter()

	r.HandleClick(Click{
		PageURL:  "https://example.com/a",
		X:        1,
		Y:        2,
		Tag:      "A",
		Href:     "https://other.test/b",
		Referrer: "https://search.test",
	})

	require.Len(t, rec.records, 2)
	assert.Equal(t, dto.ActionMouseClick, rec.records[0].Action)

	link := rec.records[1]
	assert.Equal(t, dto.ActionLinkClick, link.Action)
	assert.Equal(t, "https://other.test/b", link.URL)
	assert.Equal(t, "https://search.test", link.Referrer)
	assert.Equal(t, rec.records[0].Timestamp, link.Timestamp)
}

func TestHandleClick_AnchorWithoutHref(t *testing.T) {
	r, rec := newTestReporter()

	r.HandleClick(Click{PageURL: "https://example.com", Tag: "A"})
	assert.Len(t, rec.records, 1)

	r.HandleClick(Click{PageURL: "https://example.com", Tag: "BUTTON", Href: "https://ignored.test"})
	assert.Len(t, rec.records, 2)
}

func TestHandleKeyDown_NoDedup(t *testing.T) {
	r, rec := newTestReporter()

	for i := 0; i < 3; i++ {
		r.HandleKeyDown(KeyDown{PageURL: "https://example.com", Key: "j"})
	}

	require.Len(t, rec.records, 3)
	for _, got := range rec.records {
		assert.Equal(t, dto.ActionKeyPress, got.Action)
		assert.Equal(t, "j", got.Key)
		assert.Equal(t, "https://example.com", got.URL)
	}
}
