package ingest

import (
	"log"
	"time"

	"github.com/openmobilitytools/journeycast/business/data/statictt"
	"github.com/openmobilitytools/journeycast/business/timetable"
	"github.com/openmobilitytools/journeycast/foundation/metrics"
)

// futureTripLeadSeconds is how far beyond the latest live arrival on a line a
// scheduled start must be before a synthetic future trip is added for it.
const futureTripLeadSeconds = 300

// defaultBusDelaySeconds is the per-stop delay assumed when a vehicle yields
// no usable delay samples.
const defaultBusDelaySeconds = 60

// busIngestor fuses the live bus arrivals snapshot with the static bus
// timetable: observed stops are recorded as-is, unobserved stops are
// extrapolated per vehicle, and future trips are synthesized from scheduled
// start times.
type busIngestor struct {
	log       *log.Logger
	feed      arrivalsFeed
	timetable statictt.BusTimetable
}

func makeBusIngestor(log *log.Logger, feed arrivalsFeed, tt statictt.BusTimetable) *busIngestor {
	return &busIngestor{log: log, feed: feed, timetable: tt}
}

// busVehicle collects one vehicle's observations from the live feed.
type busVehicle struct {
	line      string
	direction string
	stops     []timetable.StopTime
}

// ingest loads the live arrivals and writes this cycle's bus trips into the
// builder. A failed feed leaves the builder untouched; a malformed vehicle is
// skipped without affecting the others.
func (b *busIngestor) ingest(builder *timetable.Builder, now time.Time, recorder *metrics.Recorder) {
	arrivals, err := b.feed.Arrivals("bus")
	if err != nil {
		b.log.Printf("bus ingest: %v", err)
		return
	}
	b.log.Printf("bus ingest: loaded %d arrival times", len(arrivals))

	vehicles := make(map[string]*busVehicle)
	vehicleOrder := make([]string, 0)
	latestByLine := make(map[string]int64)

	for i := range arrivals {
		arrival := &arrivals[i]
		arrivalUnix, err := arrival.ExpectedArrivalUnix()
		if err != nil {
			b.log.Printf("bus ingest: skipping arrival on line %s: %v", arrival.LineId, err)
			continue
		}
		builder.Append(arrival.LineId, arrival.VehicleId, arrival.NaptanId, arrivalUnix)
		if latest, present := latestByLine[arrival.LineId]; !present || arrivalUnix > latest {
			latestByLine[arrival.LineId] = arrivalUnix
		}
		vehicle, present := vehicles[arrival.VehicleId]
		if !present {
			vehicle = &busVehicle{line: arrival.LineId, direction: arrival.Direction}
			vehicles[arrival.VehicleId] = vehicle
			vehicleOrder = append(vehicleOrder, arrival.VehicleId)
		}
		vehicle.stops = append(vehicle.stops, timetable.StopTime{StopId: arrival.NaptanId, Arrival: arrivalUnix})
	}

	predictions := 0
	for _, vehicleId := range vehicleOrder {
		predictions += b.extrapolateVehicle(builder, vehicleId, vehicles[vehicleId])
	}

	futureAdded := b.addFutureTrips(builder, now, latestByLine)

	recorder.Count("bus_data", "vehicles", len(vehicles))
	recorder.Count("bus_data", "times", len(arrivals))
	recorder.Count("bus_data", "future", futureAdded)
	recorder.Count("bus_data", "predictions", predictions)
	b.log.Printf("bus ingest: %d predictions, %d future trips", predictions, futureAdded)
}

// extrapolateVehicle predicts the unobserved stops of one vehicle when the
// static timetable has exactly one route pattern for its line and direction.
// Returns the number of predicted stops appended.
func (b *busIngestor) extrapolateVehicle(builder *timetable.Builder, vehicleId string, vehicle *busVehicle) int {
	directions, present := b.timetable[vehicle.line]
	if !present {
		return 0
	}
	patterns := directions[vehicle.direction]
	if len(patterns) != 1 {
		return 0
	}
	var pattern *statictt.FlatPattern
	for _, p := range patterns {
		pattern = p
	}
	if len(pattern.Intervals) == 0 {
		return 0
	}

	sortedByTime := make([]timetable.StopTime, len(vehicle.stops))
	copy(sortedByTime, vehicle.stops)
	sortStopTimes(sortedByTime)

	offsets := pattern.Intervals.OffsetMap()

	// Anchor on the earliest observed stop that belongs to the pattern.
	anchorIdx := -1
	for i, stop := range sortedByTime {
		if _, present := offsets[stop.StopId]; present {
			anchorIdx = i
			break
		}
	}
	if anchorIdx < 0 {
		return 0
	}
	anchor := sortedByTime[anchorIdx]
	anchorOffset := offsets[anchor.StopId]

	// Expected-vs-actual deltas chained through the observed stops.
	var deltas []float64
	observed := make(map[string]bool)
	lastActual := anchor.Arrival
	lastOffset := anchorOffset
	for _, stop := range sortedByTime {
		offset, present := offsets[stop.StopId]
		if !present {
			continue
		}
		observed[stop.StopId] = true
		expected := lastActual + int64((offset-lastOffset)*60)
		deltas = append(deltas, float64(stop.Arrival-expected))
		lastActual = stop.Arrival
		lastOffset = offset
	}

	delaySeconds := int64(defaultBusDelaySeconds)
	if len(deltas) > 0 {
		delaySeconds = int64(median(deltas))
		if delaySeconds < 0 {
			delaySeconds = 0
		}
	}

	// Walk the interval forward from the anchor, predicting every stop not
	// already observed.
	predictions := 0
	lastActual = anchor.Arrival
	lastOffset = anchorOffset
	emitted := make(map[string]bool)
	for _, intervalStop := range pattern.Intervals {
		if emitted[intervalStop.StopId] {
			continue
		}
		emitted[intervalStop.StopId] = true
		if observed[intervalStop.StopId] || intervalStop.Offset <= anchorOffset {
			continue
		}
		predicted := lastActual + int64((intervalStop.Offset-lastOffset)*60) + delaySeconds
		builder.Append(vehicle.line, vehicleId, intervalStop.StopId, predicted)
		lastActual = predicted
		lastOffset = intervalStop.Offset
		predictions++
	}
	return predictions
}

// addFutureTrips synthesizes trips for scheduled starts beyond the live
// prediction horizon of each line. Lines with no live arrivals are skipped:
// without a live reference there is no way to know the feed covers them.
func (b *busIngestor) addFutureTrips(builder *timetable.Builder, now time.Time, latestByLine map[string]int64) int {
	dayStart := startOfDay(now).Unix()
	futureAdded := 0
	for lineId, directions := range b.timetable {
		latest, present := latestByLine[lineId]
		if !present {
			continue
		}
		for _, patterns := range directions {
			for routeCode, pattern := range patterns {
				if len(pattern.StartTimes) == 0 {
					continue
				}
				startStop, _ := statictt.SplitRouteCode(routeCode)
				for _, startTime := range pattern.StartTimes {
					unixStart := dayStart + int64(startTime)
					if unixStart <= latest+futureTripLeadSeconds {
						continue
					}
					vehicleId := syntheticVehicleId(unixStart)
					builder.Append(lineId, vehicleId, startStop, unixStart)
					for _, intervalStop := range pattern.Intervals {
						builder.Append(lineId, vehicleId, intervalStop.StopId,
							unixStart+int64(intervalStop.Offset*60))
					}
					futureAdded++
				}
			}
		}
	}
	return futureAdded
}
