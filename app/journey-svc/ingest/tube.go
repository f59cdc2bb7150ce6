package ingest

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openmobilitytools/journeycast/business/data/statictt"
	"github.com/openmobilitytools/journeycast/business/data/stops"
	"github.com/openmobilitytools/journeycast/business/timetable"
	"github.com/openmobilitytools/journeycast/foundation/metrics"
)

// scheduleWindowMinutes is how far back from now a scheduled start is still a
// candidate for a vehicle's current trip.
const scheduleWindowMinutes = 120

// maxIntervalCandidates bounds how many candidate intervals are aggregated
// before a vehicle is left unresolved.
const maxIntervalCandidates = 5

// fallbackDelayMinutes is the assumed delay when fewer than two observed
// stops align with a candidate interval.
const fallbackDelayMinutes = 0.5

// tubeIngestor identifies each live tube vehicle's route pattern and the
// scheduled interval it is executing, then predicts every remaining stop.
// The upstream feed only reports stops within its short prediction horizon,
// so most of a trip has to be reconstructed from the static timetable.
type tubeIngestor struct {
	log       *log.Logger
	feed      arrivalsFeed
	timetable statictt.TubeTimetable
	directory *stops.Directory
}

func makeTubeIngestor(log *log.Logger, feed arrivalsFeed, tt statictt.TubeTimetable, directory *stops.Directory) *tubeIngestor {
	return &tubeIngestor{log: log, feed: feed, timetable: tt, directory: directory}
}

// tubeVehicle collects one vehicle's observations, keyed vehicleId/lineId to
// disambiguate vehicle ids reused across lines.
type tubeVehicle struct {
	line    string
	towards string
	stops   []timetable.StopTime
}

// ingest loads the live arrivals, resolves each vehicle, and writes this
// cycle's tube trips into the builder. Unresolved vehicles publish their raw
// observations only and never pollute resolved trips.
func (t *tubeIngestor) ingest(builder *timetable.Builder, now time.Time, recorder *metrics.Recorder) {
	arrivals, err := t.feed.Arrivals("tube")
	if err != nil {
		t.log.Printf("tube ingest: %v", err)
		return
	}

	vehicles, vehicleOrder := t.groupVehicles(arrivals)

	singleRoute := 0
	knownRoutes := make(map[string]string)
	for _, vehicleKey := range vehicleOrder {
		if routeCode, ok := t.identifyRoute(vehicles[vehicleKey]); ok {
			knownRoutes[vehicleKey] = routeCode
			singleRoute++
		}
	}
	t.log.Printf("tube ingest: %d/%d vehicles with one possible route", singleRoute, len(vehicles))

	day := statictt.ScheduleDay(now)
	nowMinutes := float64(now.Unix()-startOfDay(now).Unix()) / 60

	singleInterval := 0
	multiInterval := 0
	predicted := 0
	for _, vehicleKey := range vehicleOrder {
		vehicle := vehicles[vehicleKey]
		routeCode, known := knownRoutes[vehicleKey]
		if !known {
			t.publishUnresolved(builder, vehicleKey, vehicle, t.timetable.LineReachableStops(vehicle.line))
			continue
		}
		pattern := t.timetable[vehicle.line][routeCode]
		routeStops := pattern.ReachableStops()

		candidates := candidateIntervals(pattern, day, nowMinutes)
		switch {
		case len(candidates) == 1:
			if t.predictWithInterval(builder, vehicleKey, vehicle, pattern, routeStops, candidates[0]) {
				singleInterval++
				predicted++
			} else {
				t.publishUnresolved(builder, vehicleKey, vehicle, routeStops)
			}
		case len(candidates) > 1 && len(candidates) <= maxIntervalCandidates:
			if t.predictWithManyIntervals(builder, vehicleKey, vehicle, pattern, routeStops, candidates) {
				multiInterval++
				predicted++
			} else {
				t.publishUnresolved(builder, vehicleKey, vehicle, routeStops)
			}
		default:
			t.publishUnresolved(builder, vehicleKey, vehicle, routeStops)
		}
	}

	recorder.Count("tube_data", "vehicles", len(vehicles))
	recorder.Count("tube_data", "single_interval_vehicles", singleInterval)
	recorder.Count("tube_data", "single_route_vehicles", singleRoute)
	recorder.Count("tube_data", "predicted_tube_count", predicted)
	t.log.Printf("tube ingest: %d single-interval, %d multi-interval, %d predicted of %d vehicles",
		singleInterval, multiInterval, predicted, len(vehicles))
}

// groupVehicles folds the arrivals feed into per-vehicle observation lists.
// Records without a destination are dropped, as are records whose timestamp
// fails to parse.
func (t *tubeIngestor) groupVehicles(arrivals []Arrival) (map[string]*tubeVehicle, []string) {
	vehicles := make(map[string]*tubeVehicle)
	order := make([]string, 0)
	for i := range arrivals {
		arrival := &arrivals[i]
		if arrival.DestinationNaptanId == "" {
			continue
		}
		arrivalUnix, err := arrival.ExpectedArrivalUnix()
		if err != nil {
			t.log.Printf("tube ingest: skipping arrival on line %s: %v", arrival.LineId, err)
			continue
		}
		vehicleKey := fmt.Sprintf("%s/%s", arrival.VehicleId, arrival.LineId)
		vehicle, present := vehicles[vehicleKey]
		if !present {
			vehicle = &tubeVehicle{line: arrival.LineId, towards: arrival.Towards}
			vehicles[vehicleKey] = vehicle
			order = append(order, vehicleKey)
		}
		vehicle.stops = append(vehicle.stops, timetable.StopTime{StopId: arrival.NaptanId, Arrival: arrivalUnix})
	}
	return vehicles, order
}

// identifyRoute narrows a vehicle to a single route pattern. Patterns whose
// destination name matches the vehicle's "towards" text take precedence; when
// none match, patterns whose interval sequences contain the observed stop
// sequence remain. ok is false unless exactly one pattern survives.
func (t *tubeIngestor) identifyRoute(vehicle *tubeVehicle) (string, bool) {
	observedIds := make([]string, 0, len(vehicle.stops))
	for _, stop := range vehicle.stops {
		observedIds = append(observedIds, stop.StopId)
	}

	var towardsMatched []string
	var sequenceMatched []string
	for routeCode, pattern := range t.timetable[vehicle.line] {
		if t.towardsMatches(vehicle.towards, routeCode) {
			towardsMatched = append(towardsMatched, routeCode)
			continue
		}
		for _, interval := range pattern.Intervals {
			if interval.ContainsSubsequence(observedIds) {
				sequenceMatched = append(sequenceMatched, routeCode)
				break
			}
		}
	}

	candidates := towardsMatched
	if len(candidates) == 0 {
		candidates = sequenceMatched
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}
	return "", false
}

// towardsMatches reports whether the first word of the vehicle's "towards"
// text occurs in the name of the route's destination stop.
func (t *tubeIngestor) towardsMatches(towards, routeCode string) bool {
	firstWord := strings.ToLower(strings.TrimSpace(strings.SplitN(towards, " ", 2)[0]))
	if firstWord == "" {
		return false
	}
	_, destStop := statictt.SplitRouteCode(routeCode)
	destName := strings.ToLower(strings.TrimSpace(t.directory.Name(destStop)))
	return strings.Contains(destName, firstWord)
}

// candidateIntervals returns the interval ids of scheduled starts within the
// last scheduleWindowMinutes, deduplicated in schedule order.
func candidateIntervals(pattern *statictt.RoutePattern, day string, nowMinutes float64) []int {
	starts, present := pattern.SchedulesFor(day)
	if !present {
		return nil
	}
	lower := nowMinutes - scheduleWindowMinutes
	seen := make(map[int]bool)
	var candidates []int
	for _, start := range starts {
		if start.StartMinutes <= lower || start.StartMinutes >= nowMinutes {
			continue
		}
		if start.IntervalId < 0 || start.IntervalId >= len(pattern.Intervals) {
			continue
		}
		if seen[start.IntervalId] {
			continue
		}
		seen[start.IntervalId] = true
		candidates = append(candidates, start.IntervalId)
	}
	return candidates
}

// orderedRouteStops returns the vehicle's observations restricted to the
// route's reachable stops, in observation order, deduplicated by stop id.
func orderedRouteStops(vehicle *tubeVehicle, routeStops map[string]bool) []timetable.StopTime {
	seen := make(map[string]bool)
	var ordered []timetable.StopTime
	for _, stop := range vehicle.stops {
		if !routeStops[stop.StopId] || seen[stop.StopId] {
			continue
		}
		seen[stop.StopId] = true
		ordered = append(ordered, stop)
	}
	return ordered
}

// intervalPrediction aligns the vehicle's ordered observations to one
// interval variant and emits every interval stop: observed stops keep their
// observed time, later unobserved stops get
// (offset - firstOffset)*60 + medianDelay + firstObservedTime.
// Returns nil when the interval cannot anchor the first observed stop.
func intervalPrediction(pattern *statictt.RoutePattern, ordered []timetable.StopTime, intervalId int) []timetable.StopTime {
	if len(ordered) == 0 {
		return nil
	}
	interval := pattern.Intervals[intervalId]
	offsets := interval.OffsetMap()
	firstOffset, present := offsets[ordered[0].StopId]
	if !present {
		return nil
	}

	// Observed times expressed as minute offsets relative to the first
	// observation's scheduled offset.
	actualOffsets := make(map[string]float64, len(ordered))
	actualTimes := make(map[string]int64, len(ordered))
	for _, stop := range ordered {
		actualOffsets[stop.StopId] = float64(stop.Arrival-ordered[0].Arrival)/60 + firstOffset
		actualTimes[stop.StopId] = stop.Arrival
	}

	var deltas []float64
	for _, intervalStop := range interval {
		if actual, present := actualOffsets[intervalStop.StopId]; present {
			deltas = append(deltas, actual-intervalStop.Offset)
		}
	}
	delayMinutes := median(deltas)
	if len(deltas) < 2 {
		delayMinutes = fallbackDelayMinutes
	}
	delaySeconds := int64(delayMinutes * 60)

	var emitted []timetable.StopTime
	seen := make(map[string]bool)
	for _, intervalStop := range interval {
		if seen[intervalStop.StopId] {
			continue
		}
		seen[intervalStop.StopId] = true
		if actual, present := actualTimes[intervalStop.StopId]; present {
			emitted = append(emitted, timetable.StopTime{StopId: intervalStop.StopId, Arrival: actual})
			continue
		}
		if intervalStop.Offset <= firstOffset {
			continue
		}
		predicted := int64((intervalStop.Offset-firstOffset)*60) + delaySeconds + ordered[0].Arrival
		emitted = append(emitted, timetable.StopTime{StopId: intervalStop.StopId, Arrival: predicted})
	}
	return emitted
}

// predictWithInterval resolves a vehicle against a single candidate interval.
func (t *tubeIngestor) predictWithInterval(builder *timetable.Builder, vehicleKey string,
	vehicle *tubeVehicle, pattern *statictt.RoutePattern, routeStops map[string]bool, intervalId int) bool {

	ordered := orderedRouteStops(vehicle, routeStops)
	emitted := intervalPrediction(pattern, ordered, intervalId)
	if len(emitted) == 0 {
		return false
	}
	builder.SetTrip(vehicle.line, vehicleKey, emitted)
	return true
}

// predictWithManyIntervals predicts under each candidate interval
// independently and emits the per-stop median over candidates.
func (t *tubeIngestor) predictWithManyIntervals(builder *timetable.Builder, vehicleKey string,
	vehicle *tubeVehicle, pattern *statictt.RoutePattern, routeStops map[string]bool, intervalIds []int) bool {

	ordered := orderedRouteStops(vehicle, routeStops)
	if len(ordered) == 0 {
		return false
	}

	predictionsByStop := make(map[string][]float64)
	var stopOrder []string
	for _, intervalId := range intervalIds {
		for _, stop := range intervalPrediction(pattern, ordered, intervalId) {
			if _, present := predictionsByStop[stop.StopId]; !present {
				stopOrder = append(stopOrder, stop.StopId)
			}
			predictionsByStop[stop.StopId] = append(predictionsByStop[stop.StopId], float64(stop.Arrival))
		}
	}
	if len(stopOrder) == 0 {
		return false
	}

	emitted := make([]timetable.StopTime, 0, len(stopOrder))
	for _, stopId := range stopOrder {
		emitted = append(emitted, timetable.StopTime{
			StopId:  stopId,
			Arrival: int64(median(predictionsByStop[stopId])),
		})
	}
	builder.SetTrip(vehicle.line, vehicleKey, emitted)
	return true
}

// publishUnresolved records a vehicle's raw observations, restricted to stops
// the static timetable knows for the line or route.
func (t *tubeIngestor) publishUnresolved(builder *timetable.Builder, vehicleKey string,
	vehicle *tubeVehicle, knownStops map[string]bool) {
	for _, stop := range vehicle.stops {
		if knownStops[stop.StopId] {
			builder.Append(vehicle.line, vehicleKey, stop.StopId, stop.Arrival)
		}
	}
}
