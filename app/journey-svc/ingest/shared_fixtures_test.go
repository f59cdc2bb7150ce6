package ingest

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/openmobilitytools/journeycast/business/data/stops"
	"github.com/openmobilitytools/journeycast/foundation/database"
)

// testNow is a Wednesday morning, 10:00 UTC.
var testNow = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// rfc3339At formats an instant offset seconds after testNow for the arrivals
// feed.
func rfc3339At(offsetSeconds int64) string {
	return testNow.Add(time.Duration(offsetSeconds) * time.Second).Format(time.RFC3339)
}

// fakeArrivalsFeed serves canned arrivals per mode.
type fakeArrivalsFeed struct {
	arrivals map[string][]Arrival
	err      error
}

func (f *fakeArrivalsFeed) Arrivals(mode string) ([]Arrival, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.arrivals[mode], nil
}

// fakeBoardsFeed serves canned station boards.
type fakeBoardsFeed struct {
	boards map[string]*railBoard
	status int
	err    error
}

func (f *fakeBoardsFeed) Board(stopId string) (*railBoard, int, error) {
	if f.err != nil {
		return nil, f.status, f.err
	}
	board, present := f.boards[stopId]
	if !present {
		board = &railBoard{}
	}
	return board, f.status, nil
}

// testDirectory builds a stop directory over an in-memory database.
func testDirectory(t *testing.T, points []stops.Stop) *stops.Directory {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening sqlite memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = database.CreateStopTables(db); err != nil {
		t.Fatalf("creating tables: %v", err)
	}
	for _, point := range points {
		_, err = db.Exec(db.Rebind(
			"insert into point (point_id, latitude, longitude, name, mode) values (?, ?, ?, ?, ?)"),
			point.Id, point.Lat, point.Lon, point.Name, point.Mode)
		if err != nil {
			t.Fatalf("inserting point %s: %v", point.Id, err)
		}
	}
	return stops.MakeDirectory(db)
}
