package ingest

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/openmobilitytools/journeycast/business/data/statictt"
	"github.com/openmobilitytools/journeycast/business/timetable"
)

func busTestTimetable() statictt.BusTimetable {
	return statictt.BusTimetable{
		"88": {
			"outbound": {
				"A:D": &statictt.FlatPattern{
					Intervals: statictt.Interval{
						{StopId: "A", Offset: 0},
						{StopId: "B", Offset: 2},
						{StopId: "C", Offset: 5},
						{StopId: "D", Offset: 9},
					},
					// seconds since midnight; testNow is 36000
					StartTimes: []int{36400, 37000},
				},
			},
		},
	}
}

func busTestFeed() *fakeArrivalsFeed {
	return &fakeArrivalsFeed{arrivals: map[string][]Arrival{
		"bus": {
			{LineId: "88", VehicleId: "LTZ1", NaptanId: "A", Direction: "outbound", ExpectedArrival: rfc3339At(0)},
			{LineId: "88", VehicleId: "LTZ1", NaptanId: "B", Direction: "outbound", ExpectedArrival: rfc3339At(150)},
		},
	}}
}

func TestBusIngestExtrapolatesRemainingStops(t *testing.T) {
	ingestor := makeBusIngestor(testLogger(), busTestFeed(), busTestTimetable())
	builder := timetable.MakeBuilder(nil)

	ingestor.ingest(builder, testNow, nil)
	snapshot := builder.Snapshot(testNow)

	base := testNow.Unix()
	want := []timetable.StopTime{
		{StopId: "A", Arrival: base},
		{StopId: "B", Arrival: base + 150},
		// B ran 30s late off a zero first delta, so the median delay is 15s.
		// Predictions chain from the anchor stop A.
		{StopId: "C", Arrival: base + 315},
		{StopId: "D", Arrival: base + 570},
	}
	got := snapshot.TripStops("88", "LTZ1")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extrapolated trip = %+v, want %+v", got, want)
	}
}

func TestBusIngestFutureTrips(t *testing.T) {
	ingestor := makeBusIngestor(testLogger(), busTestFeed(), busTestTimetable())
	builder := timetable.MakeBuilder(nil)

	ingestor.ingest(builder, testNow, nil)
	snapshot := builder.Snapshot(testNow)

	dayStart := startOfDay(testNow).Unix()

	// latest live arrival is base+150; the 36400 start is inside the 300s
	// lead and must be skipped
	earlyId := syntheticVehicleId(dayStart + 36400)
	if stops := snapshot.TripStops("88", earlyId); stops != nil {
		t.Errorf("start inside the lead window produced trip %+v", stops)
	}

	futureStart := dayStart + 37000
	futureId := syntheticVehicleId(futureStart)
	got := snapshot.TripStops("88", futureId)
	if len(got) == 0 {
		t.Fatalf("expected a future trip for start %d", futureStart)
	}
	if got[0].StopId != "A" || got[0].Arrival != futureStart {
		t.Errorf("future trip starts with %+v, want stop A at %d", got[0], futureStart)
	}
	last := got[len(got)-1]
	if last.StopId != "D" || last.Arrival != futureStart+9*60 {
		t.Errorf("future trip ends with %+v, want stop D at %d", last, futureStart+9*60)
	}
}

func TestBusIngestDeterministic(t *testing.T) {
	runOnce := func() map[string][]timetable.StopTime {
		ingestor := makeBusIngestor(testLogger(), busTestFeed(), busTestTimetable())
		builder := timetable.MakeBuilder(nil)
		ingestor.ingest(builder, testNow, nil)
		snapshot := builder.Snapshot(testNow)

		trips := make(map[string][]timetable.StopTime)
		for routeId, vehicles := range snapshot.Timetable {
			for vehicleId, trip := range vehicles {
				trips[fmt.Sprintf("%s/%s", routeId, vehicleId)] = trip.Stops
			}
		}
		return trips
	}

	first := runOnce()
	for i := 0; i < 5; i++ {
		if next := runOnce(); !reflect.DeepEqual(first, next) {
			t.Fatalf("ingest is not deterministic:\nfirst: %+v\nnext: %+v", first, next)
		}
	}
}

func TestBusIngestSkipsUnknownDirections(t *testing.T) {
	feed := &fakeArrivalsFeed{arrivals: map[string][]Arrival{
		"bus": {
			{LineId: "88", VehicleId: "LTZ2", NaptanId: "A", Direction: "inbound", ExpectedArrival: rfc3339At(0)},
		},
	}}
	ingestor := makeBusIngestor(testLogger(), feed, busTestTimetable())
	builder := timetable.MakeBuilder(nil)

	ingestor.ingest(builder, testNow, nil)
	snapshot := builder.Snapshot(testNow)

	// observation is still recorded, but nothing is extrapolated
	got := snapshot.TripStops("88", "LTZ2")
	if len(got) != 1 || got[0].StopId != "A" {
		t.Errorf("trip = %+v, want only the raw observation at A", got)
	}
}

func TestBusIngestFeedFailureLeavesBuilderUntouched(t *testing.T) {
	feed := &fakeArrivalsFeed{err: fmt.Errorf("upstream unavailable")}
	ingestor := makeBusIngestor(testLogger(), feed, busTestTimetable())
	builder := timetable.MakeBuilder(nil)

	ingestor.ingest(builder, testNow, nil)
	snapshot := builder.Snapshot(testNow)

	if snapshot.TripCount() != 0 {
		t.Errorf("expected no trips after a feed failure, got %d", snapshot.TripCount())
	}
}
