// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tab_monitor/internal/dto"
)

// receivedFormat sorts lexicographically in time order
const receivedFormat = "2006-01-02T15:04:05.000000000Z"

// MaxListLimit caps the rows returned by ListActivity
const MaxListLimit = 1000

// Activity is a stored activity record
type Activity struct {
	ID         string             `json:"id"`
	ReceivedAt time.Time          `json:"received_at"`
	Record     dto.ActivityRecord `json:"record"`
}

// InsertActivity stores a
func (d *DB) InsertActivity(ctx context.Context, a Activity) error {
	r := a.Record
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO activity (id, action, url, title, domain, referrer, enter_time, exit_time,
			duration_seconds, x, y, element_tag, key, tab_id, window_id, timestamp, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, string(r.Action),
		nullString(r.URL), nullString(r.Title), nullString(r.Domain), nullString(r.Referrer),
		nullString(r.EnterTime), nullString(r.ExitTime),
		nullFloat(r.DurationSeconds), nullInt(r.X), nullInt(r.Y),
		nullString(r.ElementTag), nullString(r.Key),
		nullInt(r.TabID), nullInt(r.WindowID),
		nullString(r.Timestamp),
		a.ReceivedAt.UTC().Format(receivedFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// ListActivity returns up to limit records, newest first. An empty action
// matches every action.
func (d *DB) ListActivity(ctx context.Context, action dto.Action, limit int) ([]Activity, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT id, action, url, title, domain, referrer, enter_time, exit_time,
			duration_seconds, x, y, element_tag, key, tab_id, window_id, timestamp, received_at
		FROM activity`
	args := []any{}
	if action != "" {
		query += " WHERE action = ?"
		args = append(args, string(action))
	}
	query += " ORDER BY received_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountActivity returns the number of stored records
func (d *DB) CountActivity(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activity: %w", err)
	}
	return n, nil
}

func scanActivity(rows *sql.Rows) (Activity, error) {
	var (
		a                                Activity
		action, received                 string
		url, title, domain, referrer     sql.NullString
		enter, exit, tag, key, timestamp sql.NullString
		duration                         sql.NullFloat64
		x, y, tabID, windowID            sql.NullInt64
	)
	err := rows.Scan(&a.ID, &action, &url, &title, &domain, &referrer, &enter, &exit,
		&duration, &x, &y, &tag, &key, &tabID, &windowID, &timestamp, &received)
	if err != nil {
		return Activity{}, fmt.Errorf("failed to scan activity: %w", err)
	}

	a.ReceivedAt, err = time.Parse(receivedFormat, received)
	if err != nil {
		return Activity{}, fmt.Errorf("bad received_at %q: %w", received, err)
	}

	a.Record = dto.ActivityRecord{
		Action:     dto.Action(action),
		URL:        url.String,
		Title:      title.String,
		Domain:     domain.String,
		Referrer:   referrer.String,
		EnterTime:  enter.String,
		ExitTime:   exit.String,
		ElementTag: tag.String,
		Key:        key.String,
		Timestamp:  timestamp.String,
	}
	if duration.Valid {
		a.Record.DurationSeconds = &duration.Float64
	}
	a.Record.X = intPtr(x)
	a.Record.Y = intPtr(y)
	a.Record.TabID = intPtr(tabID)
	a.Record.WindowID = intPtr(windowID)

	return a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
