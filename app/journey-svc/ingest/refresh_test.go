package ingest

import (
	"testing"
	"time"

	"github.com/openmobilitytools/journeycast/business/data/statictt"
	"github.com/openmobilitytools/journeycast/business/data/stops"
	"github.com/openmobilitytools/journeycast/business/timetable"
)

func testRefresher(t *testing.T) *Refresher {
	t.Helper()
	directory := testDirectory(t, []stops.Stop{
		{Id: oxfordCircus, Lat: 51.5152, Lon: -0.1415, Name: "Oxford Circus Underground Station", Mode: "tube"},
		{Id: victoria, Lat: 51.4965, Lon: -0.1447, Name: "Victoria Underground Station", Mode: "tube"},
	})
	arrivals := &fakeArrivalsFeed{arrivals: map[string][]Arrival{
		"bus": busTestFeed().arrivals["bus"],
	}}
	return &Refresher{
		log:           testLogger(),
		tube:          makeTubeIngestor(testLogger(), arrivals, statictt.TubeTimetable{}, directory),
		bus:           makeBusIngestor(testLogger(), arrivals, busTestTimetable()),
		tram:          makeTramIngestor(testLogger(), arrivals, statictt.TramTimetable{}),
		rail:          makeRailIngestor(testLogger(), &fakeBoardsFeed{}, directory, 2),
		publisher:     timetable.MakePublisher(timetable.MakeBuilder(nil).Snapshot(time.Time{})),
		summary:       makeCycleSummaryPublisher(testLogger(), nil),
		warmPlatforms: map[string]string{"1234567/VIC": "9"},
		loopDuration:  30 * time.Second,
	}
}

func TestRunCyclePublishesSnapshot(t *testing.T) {
	refresher := testRefresher(t)

	refresher.RunCycle(testNow)

	snapshot := refresher.publisher.Current()
	if !snapshot.BuiltAt.Equal(testNow) {
		t.Errorf("BuiltAt = %v, want %v", snapshot.BuiltAt, testNow)
	}
	if stops := snapshot.TripStops("88", "LTZ1"); len(stops) != 4 {
		t.Errorf("bus trip has %d stops, want 4", len(stops))
	}
	if platform, present := snapshot.Platform("1234567", "VIC"); !present || platform != "9" {
		t.Errorf("warm platform = %q (%v), want 9", platform, present)
	}
}

func TestRunCycleReplacesPreviousSnapshot(t *testing.T) {
	refresher := testRefresher(t)

	refresher.RunCycle(testNow)
	first := refresher.publisher.Current()

	later := testNow.Add(30 * time.Second)
	refresher.RunCycle(later)
	second := refresher.publisher.Current()

	if first == second {
		t.Fatalf("expected a fresh snapshot per cycle")
	}
	if !second.BuiltAt.Equal(later) {
		t.Errorf("BuiltAt = %v, want %v", second.BuiltAt, later)
	}
}
