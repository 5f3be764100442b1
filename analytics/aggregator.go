// Package analytics computes grouped statistics over the response store
// for a form and trailing window. All queries are read-only and
// recomputed from source rows on every call.
package analytics

import (
	"context"
	"database/sql"
	"time"
)

type Aggregator struct {
	db *sql.DB
}

func NewAggregator(db *sql.DB) *Aggregator {
	return &Aggregator{db}
}

type Overview struct {
	EventCounts      []EventCount   `json:"eventCounts"`
	ResponsesByDay   []DayCount     `json:"responsesByDay"`
	DeviceBreakdown  []DeviceCount  `json:"deviceBreakdown"`
	CountryBreakdown []CountryCount `json:"countryBreakdown"`
}

type EventCount struct {
	EventType string `json:"event_type"`
	Count     int    `json:"count"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DeviceCount struct {
	DeviceType *string `json:"device_type"`
	Count      int     `json:"count"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// Overview aggregates the trailing windowDays of events and responses:
// event counts by type, responses per UTC calendar day (ascending, the
// only ordered series besides countries), device breakdown including the
// unknown bucket, and the top 10 countries by count.
func (a *Aggregator) Overview(ctx context.Context, formID string, windowDays int) (ov Overview, err error) {
	since := time.Now().Unix() - int64(windowDays)*86400

	ov.EventCounts = []EventCount{}
	rows, err := a.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) AS count
		FROM analytics_events
		WHERE form_id = ? AND created_at >= ?
		GROUP BY event_type`,
		formID, since,
	)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var ec EventCount
		if err = rows.Scan(&ec.EventType, &ec.Count); err != nil {
			return
		}
		ov.EventCounts = append(ov.EventCounts, ec)
	}
	if err = rows.Err(); err != nil {
		return
	}

	ov.ResponsesByDay = []DayCount{}
	rows, err = a.db.QueryContext(ctx, `
		SELECT date(created_at, 'unixepoch') AS date, COUNT(*) AS count
		FROM responses
		WHERE form_id = ? AND created_at >= ?
		GROUP BY date
		ORDER BY date`,
		formID, since,
	)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var dc DayCount
		if err = rows.Scan(&dc.Date, &dc.Count); err != nil {
			return
		}
		ov.ResponsesByDay = append(ov.ResponsesByDay, dc)
	}
	if err = rows.Err(); err != nil {
		return
	}

	ov.DeviceBreakdown = []DeviceCount{}
	rows, err = a.db.QueryContext(ctx, `
		SELECT device_type, COUNT(*) AS count
		FROM responses
		WHERE form_id = ? AND created_at >= ?
		GROUP BY device_type`,
		formID, since,
	)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var dc DeviceCount
		if err = rows.Scan(&dc.DeviceType, &dc.Count); err != nil {
			return
		}
		ov.DeviceBreakdown = append(ov.DeviceBreakdown, dc)
	}
	if err = rows.Err(); err != nil {
		return
	}

	ov.CountryBreakdown = []CountryCount{}
	rows, err = a.db.QueryContext(ctx, `
		SELECT country, COUNT(*) AS count
		FROM responses
		WHERE form_id = ? AND created_at >= ? AND country IS NOT NULL
		GROUP BY country
		ORDER BY count DESC
		LIMIT 10`,
		formID, since,
	)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var cc CountryCount
		if err = rows.Scan(&cc.Country, &cc.Count); err != nil {
			return
		}
		ov.CountryBreakdown = append(ov.CountryBreakdown, cc)
	}
	err = rows.Err()
	return
}
