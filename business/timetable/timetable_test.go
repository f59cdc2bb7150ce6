package timetable

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestBuilderSnapshotSortsStops(t *testing.T) {
	is := is.New(t)

	builder := MakeBuilder(nil)
	builder.Append("victoria", "204", "B", 300)
	builder.Append("victoria", "204", "A", 100)
	builder.Append("victoria", "204", "C", 200)

	snapshot := builder.Snapshot(time.Now())

	trip := snapshot.Timetable["victoria"]["204"]
	is.True(trip != nil)
	is.True(trip.IsMonotonic())
	is.Equal(trip.Stops[0].StopId, "A")
	is.Equal(trip.Stops[1].StopId, "C")
	is.Equal(trip.Stops[2].StopId, "B")
}

func TestBuilderSnapshotDropsEmptyTrips(t *testing.T) {
	is := is.New(t)

	builder := MakeBuilder(nil)
	builder.SetTrip("Southern/VIC", "1234567", nil)
	builder.Append("victoria", "204", "A", 100)

	snapshot := builder.Snapshot(time.Now())

	is.Equal(snapshot.TripCount(), 1)
	_, present := snapshot.Timetable["Southern/VIC"]
	is.True(!present)
}

func TestBuilderPlatformWarmCacheAndOverride(t *testing.T) {
	is := is.New(t)

	warm := map[string]string{
		"1234567/VIC": "3",
		"7654321/CLJ": "12",
	}
	builder := MakeBuilder(warm)
	builder.SetPlatform("1234567", "VIC", "5")

	snapshot := builder.Snapshot(time.Now())

	platform, present := snapshot.Platform("1234567", "VIC")
	is.True(present)
	is.Equal(platform, "5") // live platform wins over the warm cache

	platform, present = snapshot.Platform("7654321", "CLJ")
	is.True(present)
	is.Equal(platform, "12")

	// the warm cache map itself is untouched
	is.Equal(warm["1234567/VIC"], "3")
}

func TestBuilderSetTripReplacesStops(t *testing.T) {
	is := is.New(t)

	builder := MakeBuilder(nil)
	builder.SetTrip("Southern/VIC", "1234567", []StopTime{{StopId: "CLJ", Arrival: 100}})
	builder.SetTrip("Southern/VIC", "1234567", []StopTime{{StopId: "VIC", Arrival: 200}})

	stops := builder.TripStops("Southern/VIC", "1234567")
	is.Equal(len(stops), 1)
	is.Equal(stops[0].StopId, "VIC")
}

func TestPublisherSwapsWholeSnapshots(t *testing.T) {
	is := is.New(t)

	first := MakeBuilder(nil).Snapshot(time.Unix(100, 0))
	publisher := MakePublisher(first)
	is.Equal(publisher.Current(), first)

	builder := MakeBuilder(nil)
	builder.Append("victoria", "204", "A", 100)
	second := builder.Snapshot(time.Unix(200, 0))

	publisher.Publish(second)
	is.Equal(publisher.Current(), second)
	is.Equal(publisher.Current().TripCount(), 1)
}

func TestPlatformKey(t *testing.T) {
	if got := PlatformKey("1234567", "VIC"); got != "1234567/VIC" {
		t.Errorf("PlatformKey = %q, want %q", got, "1234567/VIC")
	}
}
