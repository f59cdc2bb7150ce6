package ingest

import (
	"log"
	"time"

	"github.com/openmobilitytools/journeycast/business/data/statictt"
	"github.com/openmobilitytools/journeycast/business/timetable"
	"github.com/openmobilitytools/journeycast/foundation/metrics"
)

// tramIngestor records live tram arrivals unchanged and synthesizes future
// trips from the static tram timetable. Trams get no per-vehicle
// extrapolation: the network is small enough that the live feed plus
// scheduled starts cover it.
type tramIngestor struct {
	log       *log.Logger
	feed      arrivalsFeed
	timetable statictt.TramTimetable
}

func makeTramIngestor(log *log.Logger, feed arrivalsFeed, tt statictt.TramTimetable) *tramIngestor {
	return &tramIngestor{log: log, feed: feed, timetable: tt}
}

// ingest loads the live arrivals and writes this cycle's tram trips into the
// builder.
func (t *tramIngestor) ingest(builder *timetable.Builder, now time.Time, recorder *metrics.Recorder) {
	arrivals, err := t.feed.Arrivals("tram")
	if err != nil {
		t.log.Printf("tram ingest: %v", err)
		return
	}

	latestByLine := make(map[string]int64)
	recorded := 0
	for i := range arrivals {
		arrival := &arrivals[i]
		arrivalUnix, err := arrival.ExpectedArrivalUnix()
		if err != nil {
			t.log.Printf("tram ingest: skipping arrival on line %s: %v", arrival.LineId, err)
			continue
		}
		builder.Append(arrival.LineId, arrival.VehicleId, arrival.NaptanId, arrivalUnix)
		recorded++
		if latest, present := latestByLine[arrival.LineId]; !present || arrivalUnix > latest {
			latestByLine[arrival.LineId] = arrivalUnix
		}
	}

	dayStart := startOfDay(now).Unix()
	futureAdded := 0
	for lineId, patterns := range t.timetable {
		latest, present := latestByLine[lineId]
		if !present {
			continue
		}
		for _, pattern := range patterns {
			if len(pattern.StartTimes) == 0 {
				continue
			}
			for _, startTime := range pattern.StartTimes {
				unixStart := dayStart + int64(startTime)
				if unixStart <= latest {
					continue
				}
				vehicleId := syntheticVehicleId(unixStart)
				for _, intervalStop := range pattern.Intervals {
					builder.Append(lineId, vehicleId, intervalStop.StopId,
						unixStart+int64(intervalStop.Offset*60))
				}
				futureAdded++
			}
		}
	}

	recorder.Count("tram_data", "times", recorded)
	recorder.Count("tram_data", "future", futureAdded)
	t.log.Printf("tram ingest: %d live times, %d future trips", recorded, futureAdded)
}
