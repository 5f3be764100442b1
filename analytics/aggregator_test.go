package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astracat/catform/config"
	"github.com/astracat/catform/database"
	"github.com/astracat/catform/model"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(config.Config{DBUrl: filepath.Join(t.TempDir(), "test.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedForm(t *testing.T, db *sql.DB) string {
	t.Helper()
	formID := model.NewID("form")
	now := time.Now().Unix()
	_, err := db.Exec(`
		INSERT INTO forms (id, user_id, title, status, created_at, updated_at)
		VALUES (?, ?, 'Test form', 'published', ?, ?)`,
		formID, model.DemoUserID, now, now,
	)
	require.NoError(t, err)
	return formID
}

func insertResponse(t *testing.T, db *sql.DB, formID string, createdAt int64, country, device any) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO responses (id, form_id, country, device_type, completed, created_at)
		VALUES (?, ?, ?, ?, 1, ?)`,
		model.NewID("resp"), formID, country, device, createdAt,
	)
	require.NoError(t, err)
}

func insertEvent(t *testing.T, db *sql.DB, formID string, eventType model.EventType, createdAt int64) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO analytics_events (id, form_id, event_type, created_at)
		VALUES (?, ?, ?, ?)`,
		model.NewID("evt"), formID, eventType, createdAt,
	)
	require.NoError(t, err)
}

func TestOverviewIsIdempotent(t *testing.T) {
	db := testDB(t)
	formID := seedForm(t, db)
	now := time.Now().Unix()

	insertEvent(t, db, formID, model.EventView, now)
	insertEvent(t, db, formID, model.EventView, now-3600)
	insertEvent(t, db, formID, model.EventSubmit, now)
	insertResponse(t, db, formID, now, "US", "desktop")
	insertResponse(t, db, formID, now-86400, nil, nil)

	agg := NewAggregator(db)
	first, err := agg.Overview(context.Background(), formID, 30)
	require.NoError(t, err)
	second, err := agg.Overview(context.Background(), formID, 30)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEventCountsGroupByType(t *testing.T) {
	db := testDB(t)
	formID := seedForm(t, db)
	now := time.Now().Unix()

	insertEvent(t, db, formID, model.EventView, now)
	insertEvent(t, db, formID, model.EventView, now)
	insertEvent(t, db, formID, model.EventStart, now)
	insertEvent(t, db, formID, model.EventSubmit, now)

	ov, err := NewAggregator(db).Overview(context.Background(), formID, 30)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, ec := range ov.EventCounts {
		counts[ec.EventType] = ec.Count
	}
	assert.Equal(t, map[string]int{"view": 2, "start": 1, "submit": 1}, counts)
}

func TestResponsesByDaySortedAscendingNoDuplicates(t *testing.T) {
	db := testDB(t)
	formID := seedForm(t, db)
	now := time.Now().Unix()

	insertResponse(t, db, formID, now, nil, nil)
	insertResponse(t, db, formID, now-2*86400, nil, nil)
	insertResponse(t, db, formID, now-2*86400, nil, nil)
	insertResponse(t, db, formID, now-5*86400, nil, nil)

	ov, err := NewAggregator(db).Overview(context.Background(), formID, 30)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i, dc := range ov.ResponsesByDay {
		assert.False(t, seen[dc.Date], "duplicate date %s", dc.Date)
		seen[dc.Date] = true
		if i > 0 {
			assert.Less(t, ov.ResponsesByDay[i-1].Date, dc.Date)
		}
	}
	assert.Equal(t, 2, countFor(ov.ResponsesByDay, time.Unix(now-2*86400, 0).UTC().Format("2006-01-02")))
}

func countFor(days []DayCount, date string) int {
	for _, dc := range days {
		if dc.Date == date {
			return dc.Count
		}
	}
	return 0
}

func TestDeviceBreakdownIncludesUnknownBucket(t *testing.T) {
	db := testDB(t)
	formID := seedForm(t, db)
	now := time.Now().Unix()

	insertResponse(t, db, formID, now, nil, "mobile")
	insertResponse(t, db, formID, now, nil, "mobile")
	insertResponse(t, db, formID, now, nil, nil)

	ov, err := NewAggregator(db).Overview(context.Background(), formID, 30)
	require.NoError(t, err)
	require.Len(t, ov.DeviceBreakdown, 2)

	var nullSeen bool
	for _, dc := range ov.DeviceBreakdown {
		if dc.DeviceType == nil {
			nullSeen = true
			assert.Equal(t, 1, dc.Count)
		} else {
			assert.Equal(t, "mobile", *dc.DeviceType)
			assert.Equal(t, 2, dc.Count)
		}
	}
	assert.True(t, nullSeen)
}

func TestCountryBreakdownTop10Descending(t *testing.T) {
	db := testDB(t)
	formID := seedForm(t, db)
	now := time.Now().Unix()

	for i := 1; i <= 12; i++ {
		country := fmt.Sprintf("C%02d", i)
		for j := 0; j < i; j++ {
			insertResponse(t, db, formID, now, country, nil)
		}
	}
	insertResponse(t, db, formID, now, nil, nil) // null country excluded

	ov, err := NewAggregator(db).Overview(context.Background(), formID, 30)
	require.NoError(t, err)

	require.Len(t, ov.CountryBreakdown, 10)
	assert.Equal(t, "C12", ov.CountryBreakdown[0].Country)
	assert.Equal(t, 12, ov.CountryBreakdown[0].Count)
	for i := 1; i < len(ov.CountryBreakdown); i++ {
		assert.GreaterOrEqual(t, ov.CountryBreakdown[i-1].Count, ov.CountryBreakdown[i].Count)
	}
}

func TestWindowExcludesOlderRows(t *testing.T) {
	db := testDB(t)
	formID := seedForm(t, db)
	now := time.Now().Unix()

	insertResponse(t, db, formID, now-40*86400, "US", "desktop")
	insertEvent(t, db, formID, model.EventView, now-40*86400)

	ov, err := NewAggregator(db).Overview(context.Background(), formID, 30)
	require.NoError(t, err)

	assert.Empty(t, ov.EventCounts)
	assert.Empty(t, ov.ResponsesByDay)
	assert.Empty(t, ov.DeviceBreakdown)
	assert.Empty(t, ov.CountryBreakdown)
}
