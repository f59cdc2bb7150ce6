package ingest

import (
	"reflect"
	"sync"
	"testing"

	"github.com/openmobilitytools/journeycast/business/data/stops"
	"github.com/openmobilitytools/journeycast/business/timetable"
)

func railTestDirectory(t *testing.T, points ...stops.Stop) *stops.Directory {
	t.Helper()
	return testDirectory(t, points)
}

func railStation(id, name string, lat, lon float64) stops.Stop {
	return stops.Stop{Id: id, Lat: lat, Lon: lon, Name: name, Mode: "rail"}
}

// clockUnix converts an "HH:MM" clock on testNow's day to unix seconds.
func clockUnix(t *testing.T, clock string) int64 {
	t.Helper()
	unix, err := clockToUnix(clock, startOfDay(testNow))
	if err != nil {
		t.Fatalf("bad clock %q: %v", clock, err)
	}
	return unix
}

func TestRailIngestBuildsServiceTrips(t *testing.T) {
	directory := railTestDirectory(t, railStation("VIC", "London Victoria Rail Station", 51.4952, -0.1441))
	feed := &fakeBoardsFeed{boards: map[string]*railBoard{
		"VIC": {TrainServices: []railService{{
			ServiceID:   "1234567_890",
			Platform:    "3",
			Operator:    "SN",
			Sta:         "10:25",
			Eta:         "10:30",
			Destination: []railLocation{{Crs: "CLJ"}},
			PreviousCallingPoints: []callingPointGroup{{CallingPoint: []callingPoint{
				{Crs: "ECR", St: "09:38", At: "09:40"},
			}}},
			SubsequentCallingPoints: []callingPointGroup{{CallingPoint: []callingPoint{
				{Crs: "CLJ", St: "10:43", Et: "10:45"},
			}}},
		}}},
	}}
	ingestor := makeRailIngestor(testLogger(), feed, directory, 2)
	builder := timetable.MakeBuilder(nil)

	ingestor.ingest(builder, testNow, nil)
	snapshot := builder.Snapshot(testNow)

	// East Croydon was called before now and must be dropped
	want := []timetable.StopTime{
		{StopId: "VIC", Arrival: clockUnix(t, "10:30")},
		{StopId: "CLJ", Arrival: clockUnix(t, "10:45")},
	}
	got := snapshot.TripStops("SN/CLJ", "1234567")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rail trip = %+v, want %+v", got, want)
	}

	platform, present := snapshot.Platform("1234567", "VIC")
	if !present || platform != "3" {
		t.Errorf("platform = %q (%v), want 3", platform, present)
	}
}

// recordingBoardsFeed notes which stations were requested.
type recordingBoardsFeed struct {
	mu        sync.Mutex
	requested []string
}

func (f *recordingBoardsFeed) Board(stopId string) (*railBoard, int, error) {
	f.mu.Lock()
	f.requested = append(f.requested, stopId)
	f.mu.Unlock()
	return &railBoard{}, 200, nil
}

func TestRailIngestSkipsOutOfBoundsStations(t *testing.T) {
	directory := railTestDirectory(t,
		railStation("VIC", "London Victoria Rail Station", 51.4952, -0.1441),
		railStation("ABD", "Aberdeen Rail Station", 57.1437, -2.0981),
	)
	feed := &recordingBoardsFeed{}
	ingestor := makeRailIngestor(testLogger(), feed, directory, 2)

	ingestor.ingest(timetable.MakeBuilder(nil), testNow, nil)

	if len(feed.requested) != 1 || feed.requested[0] != "VIC" {
		t.Errorf("requested stations = %v, want only VIC", feed.requested)
	}
}

func TestRailIngestTimePreferences(t *testing.T) {
	directory := railTestDirectory(t, railStation("VIC", "London Victoria Rail Station", 51.4952, -0.1441))
	feed := &fakeBoardsFeed{boards: map[string]*railBoard{
		"VIC": {TrainServices: []railService{{
			ServiceID:   "2222222",
			Operator:    "SN",
			Eta:         "Delayed",
			Ata:         "10:20",
			Sta:         "10:05",
			Destination: []railLocation{{Crs: "CLJ"}},
			SubsequentCallingPoints: []callingPointGroup{{CallingPoint: []callingPoint{
				// actual "On time" text falls back to the scheduled time
				{Crs: "CLJ", St: "10:40", At: "On time"},
				{Crs: "ECR", St: "10:50", Et: "On time"},
				// no actual or estimate at all drops the calling point
				{Crs: "GTW", St: "10:55"},
			}}},
		}}},
	}}
	ingestor := makeRailIngestor(testLogger(), feed, directory, 1)
	builder := timetable.MakeBuilder(nil)

	ingestor.ingest(builder, testNow, nil)
	snapshot := builder.Snapshot(testNow)

	want := []timetable.StopTime{
		{StopId: "VIC", Arrival: clockUnix(t, "10:20")},
		{StopId: "CLJ", Arrival: clockUnix(t, "10:40")},
		{StopId: "ECR", Arrival: clockUnix(t, "10:50")},
	}
	got := snapshot.TripStops("SN/CLJ", "2222222")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rail trip = %+v, want %+v", got, want)
	}
}

func TestRailIngestSkipsCancelledAndDestinationless(t *testing.T) {
	directory := railTestDirectory(t, railStation("VIC", "London Victoria Rail Station", 51.4952, -0.1441))
	feed := &fakeBoardsFeed{boards: map[string]*railBoard{
		"VIC": {TrainServices: []railService{
			{ServiceID: "3333333", IsCancelled: true, Operator: "SN",
				Eta: "10:30", Destination: []railLocation{{Crs: "CLJ"}}},
			{ServiceID: "4444444", Operator: "SN", Eta: "10:35"},
		}}},
	}
	ingestor := makeRailIngestor(testLogger(), feed, directory, 1)
	builder := timetable.MakeBuilder(nil)

	ingestor.ingest(builder, testNow, nil)
	snapshot := builder.Snapshot(testNow)

	if snapshot.TripCount() != 0 {
		t.Errorf("expected no trips, got %d", snapshot.TripCount())
	}
}

func TestRailIngestDeduplicatesAcrossStations(t *testing.T) {
	directory := railTestDirectory(t,
		railStation("VIC", "London Victoria Rail Station", 51.4952, -0.1441),
		railStation("CLJ", "Clapham Junction Rail Station", 51.4645, -0.1705),
	)
	// both boards describe the same service from their own vantage point
	feed := &fakeBoardsFeed{boards: map[string]*railBoard{
		"VIC": {TrainServices: []railService{{
			ServiceID:   "5555555",
			Operator:    "SN",
			Eta:         "10:30",
			Destination: []railLocation{{Crs: "CLJ"}},
			SubsequentCallingPoints: []callingPointGroup{{CallingPoint: []callingPoint{
				{Crs: "CLJ", St: "10:43", Et: "10:45"},
			}}},
		}}},
		"CLJ": {TrainServices: []railService{{
			ServiceID:   "5555555",
			Operator:    "SN",
			Eta:         "10:45",
			Destination: []railLocation{{Crs: "CLJ"}},
			PreviousCallingPoints: []callingPointGroup{{CallingPoint: []callingPoint{
				{Crs: "VIC", St: "10:28", Et: "10:30"},
			}}},
		}}},
	}}
	ingestor := makeRailIngestor(testLogger(), feed, directory, 2)
	builder := timetable.MakeBuilder(nil)

	ingestor.ingest(builder, testNow, nil)
	snapshot := builder.Snapshot(testNow)

	vehicles := snapshot.Timetable["SN/CLJ"]
	if len(vehicles) != 1 {
		t.Fatalf("expected one deduplicated service, got %d", len(vehicles))
	}
	want := []timetable.StopTime{
		{StopId: "VIC", Arrival: clockUnix(t, "10:30")},
		{StopId: "CLJ", Arrival: clockUnix(t, "10:45")},
	}
	if got := snapshot.TripStops("SN/CLJ", "5555555"); !reflect.DeepEqual(got, want) {
		t.Errorf("deduplicated trip = %+v, want %+v", got, want)
	}
}
