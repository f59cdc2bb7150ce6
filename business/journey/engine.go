// Package journey implements the multi-criteria round-based journey engine.
// Each round may add one transit leg; labels trade earliest arrival against
// leg count and every Pareto-optimal journey is returned with its path.
package journey

import (
	"sort"

	"github.com/openmobilitytools/journeycast/business/data/walking"
	"github.com/openmobilitytools/journeycast/business/timetable"
)

// WalkRoute is the route id recorded on walking segments.
const WalkRoute = "WALK"

// DefaultMaxRounds bounds the number of transit legs considered.
const DefaultMaxRounds = 5

// walkSpeed converts walking seconds to an estimated distance in meters.
const walkSpeed = 1.4

// Segment is one leg of a reconstructed journey. Type is "walk" or "trip".
type Segment struct {
	Type        string
	From        string
	To          string
	RouteId     string
	VehicleId   string
	BoardTime   int64
	AlightTime  int64
	RideTime    int64
	WalkSeconds int64
	WalkMeters  float64
}

// Journey is one Pareto-optimal result.
type Journey struct {
	Arrival     int64
	Legs        int
	JourneyTime int64
	Path        []Segment
}

// Engine answers journey queries against a single timetable snapshot. It is
// CPU-bound and performs no I/O; a fresh Engine is cheap enough to build per
// refresh cycle.
type Engine struct {
	snapshot *timetable.Snapshot
	walking  *walking.Graph
	maxWalk  float64

	// tripsAtStop indexes every trip serving each stop.
	tripsAtStop map[string][]tripRef
}

type tripRef struct {
	routeId   string
	vehicleId string
}

// MakeEngine builds an Engine over a snapshot and walking graph, with walks
// capped at maxWalkSeconds.
func MakeEngine(snapshot *timetable.Snapshot, walkingGraph *walking.Graph, maxWalkSeconds float64) *Engine {
	tripsAtStop := make(map[string][]tripRef)
	for routeId, vehicles := range snapshot.Timetable {
		for vehicleId, trip := range vehicles {
			ref := tripRef{routeId: routeId, vehicleId: vehicleId}
			seen := make(map[string]bool, len(trip.Stops))
			for _, stop := range trip.Stops {
				if seen[stop.StopId] {
					continue
				}
				seen[stop.StopId] = true
				tripsAtStop[stop.StopId] = append(tripsAtStop[stop.StopId], ref)
			}
		}
	}
	return &Engine{
		snapshot:    snapshot,
		walking:     walkingGraph,
		maxWalk:     maxWalkSeconds,
		tripsAtStop: tripsAtStop,
	}
}

// TripStops exposes the stop list of a trip for segment enrichment.
func (e *Engine) TripStops(routeId, vehicleId string) []timetable.StopTime {
	return e.snapshot.TripStops(routeId, vehicleId)
}

// Route computes the Pareto-optimal journeys from origin to destination
// leaving at departureTime, using at most maxRounds transit legs. Results are
// ordered by leg count then arrival. An empty result means no path exists.
func (e *Engine) Route(origin, destination string, departureTime int64, maxRounds int) []Journey {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	labels := make(map[string]paretoSet)
	originLabel := &label{arrival: departureTime, legs: 0}
	labels[origin] = paretoSet{originLabel}

	marked := map[string]bool{origin: true}

	// Seed stops walkable from the origin. Walking before the first ride
	// costs no legs.
	for _, neighbor := range e.walking.Neighbors(origin, e.maxWalk) {
		walkSeconds := int64(neighbor.Seconds)
		seeded := &label{
			arrival: departureTime + walkSeconds,
			legs:    0,
			prev:    originLabel,
			edge: &edge{
				walk:        true,
				fromStop:    origin,
				toStop:      neighbor.StopId,
				routeId:     WalkRoute,
				walkSeconds: walkSeconds,
				walkMeters:  neighbor.Seconds * walkSpeed,
			},
		}
		labels[neighbor.StopId] = paretoSet{seeded}
		marked[neighbor.StopId] = true
	}

	for k := 1; k <= maxRounds; k++ {
		vehicleMarked := e.scanRoutes(labels, marked, k)
		walkingMarked := e.scanTransfers(labels, vehicleMarked, k)

		marked = make(map[string]bool, len(vehicleMarked)+len(walkingMarked))
		for stopId := range vehicleMarked {
			marked[stopId] = true
		}
		for stopId := range walkingMarked {
			marked[stopId] = true
		}
	}

	destinationLabels := labels[destination]
	results := make([]Journey, 0, len(destinationLabels))
	for _, destLabel := range destinationLabels {
		results = append(results, Journey{
			Arrival:     destLabel.arrival,
			Legs:        destLabel.legs,
			JourneyTime: destLabel.arrival - departureTime,
			Path:        reconstruct(destLabel),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Legs != results[j].Legs {
			return results[i].Legs < results[j].Legs
		}
		return results[i].Arrival < results[j].Arrival
	})
	return results
}

// scanRoutes runs the round-k route scan: every trip serving a marked stop is
// scanned once, boarded at the earliest stop holding a round k-1 label that
// precedes the vehicle, and each later stop is offered the resulting label.
// Returns the stops improved by riding.
func (e *Engine) scanRoutes(labels map[string]paretoSet, marked map[string]bool, k int) map[string]bool {
	tripsToScan := make(map[tripRef]bool)
	for stopId := range marked {
		for _, ref := range e.tripsAtStop[stopId] {
			tripsToScan[ref] = true
		}
	}

	vehicleMarked := make(map[string]bool)
	for ref := range tripsToScan {
		tripStops := e.snapshot.TripStops(ref.routeId, ref.vehicleId)

		// Earliest index at which the vehicle can be boarded with k-1 legs.
		boardIdx := -1
		var boardLabel *label
		var boardStop string
		var boardTime int64
		for i, stop := range tripStops {
			if boardIdx >= 0 {
				break
			}
			for _, candidate := range labels[stop.StopId] {
				if candidate.legs == k-1 && candidate.arrival <= stop.Arrival {
					boardIdx = i
					boardLabel = candidate
					boardStop = stop.StopId
					boardTime = stop.Arrival
					break
				}
			}
		}
		if boardIdx < 0 {
			continue
		}

		for i := boardIdx + 1; i < len(tripStops); i++ {
			stop := tripStops[i]
			if stop.Arrival < boardTime {
				continue
			}
			if labels[stop.StopId].dominated(stop.Arrival, k) {
				continue
			}
			ridden := &label{
				arrival: stop.Arrival,
				legs:    k,
				prev:    boardLabel,
				edge: &edge{
					fromStop:   boardStop,
					toStop:     stop.StopId,
					routeId:    ref.routeId,
					vehicleId:  ref.vehicleId,
					boardTime:  boardTime,
					alightTime: stop.Arrival,
				},
			}
			labels[stop.StopId] = labels[stop.StopId].insert(ridden)
			vehicleMarked[stop.StopId] = true
		}
	}
	return vehicleMarked
}

// scanTransfers relaxes walking edges from every stop the round-k route scan
// improved. Walking does not consume a leg, so transferred labels keep leg
// count k and seed the next round's route scan.
func (e *Engine) scanTransfers(labels map[string]paretoSet, vehicleMarked map[string]bool, k int) map[string]bool {
	walkingMarked := make(map[string]bool)
	for stopId := range vehicleMarked {
		best := labels[stopId].bestWithLegs(k)
		if best == nil {
			continue
		}
		for _, neighbor := range e.walking.Neighbors(stopId, e.maxWalk) {
			walkSeconds := int64(neighbor.Seconds)
			arrival := best.arrival + walkSeconds
			if labels[neighbor.StopId].dominated(arrival, k) {
				continue
			}
			walked := &label{
				arrival: arrival,
				legs:    k,
				prev:    best,
				edge: &edge{
					walk:        true,
					fromStop:    stopId,
					toStop:      neighbor.StopId,
					routeId:     WalkRoute,
					walkSeconds: walkSeconds,
					walkMeters:  neighbor.Seconds * walkSpeed,
				},
			}
			labels[neighbor.StopId] = labels[neighbor.StopId].insert(walked)
			walkingMarked[neighbor.StopId] = true
		}
	}
	return walkingMarked
}

// reconstruct follows prev pointers back to the origin and emits segments in
// travel order, merging runs of adjacent walks into a single segment.
func reconstruct(destLabel *label) []Segment {
	var reversed []Segment
	for current := destLabel; current != nil && current.edge != nil; current = current.prev {
		move := current.edge
		if move.walk {
			reversed = append(reversed, Segment{
				Type:        "walk",
				From:        move.fromStop,
				To:          move.toStop,
				RouteId:     WalkRoute,
				WalkSeconds: move.walkSeconds,
				WalkMeters:  move.walkMeters,
			})
		} else {
			reversed = append(reversed, Segment{
				Type:       "trip",
				From:       move.fromStop,
				To:         move.toStop,
				RouteId:    move.routeId,
				VehicleId:  move.vehicleId,
				BoardTime:  move.boardTime,
				AlightTime: move.alightTime,
				RideTime:   move.alightTime - move.boardTime,
			})
		}
	}

	path := make([]Segment, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}

	merged := make([]Segment, 0, len(path))
	for i := 0; i < len(path); {
		segment := path[i]
		if segment.Type != "walk" {
			merged = append(merged, segment)
			i++
			continue
		}
		j := i + 1
		for j < len(path) && path[j].Type == "walk" {
			segment.WalkSeconds += path[j].WalkSeconds
			segment.WalkMeters += path[j].WalkMeters
			segment.To = path[j].To
			j++
		}
		merged = append(merged, segment)
		i = j
	}
	return merged
}
