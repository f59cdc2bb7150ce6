// Package timetable holds the fused live timetable snapshot published after
// each refresh cycle.
package timetable

import (
	"fmt"
	"sort"
	"time"
)

// StopTime is one (stop, arrival) entry of a trip. Arrival is unix seconds.
type StopTime struct {
	StopId  string
	Arrival int64
}

// Trip is a single concrete execution of a route by one vehicle. Arrival
// times are non-decreasing along Stops. A stop id never repeats within a
// trip.
type Trip struct {
	RouteId   string
	VehicleId string
	Stops     []StopTime
}

// IsMonotonic reports whether the trip's arrival times are non-decreasing.
func (t *Trip) IsMonotonic() bool {
	for i := 1; i < len(t.Stops); i++ {
		if t.Stops[i].Arrival < t.Stops[i-1].Arrival {
			return false
		}
	}
	return true
}

// Snapshot is an immutable bundle of live timetable and platform data.
// A snapshot is never mutated after publication; refresh cycles build a new
// one and swap it in whole.
type Snapshot struct {
	// Timetable maps route id -> vehicle id -> trip.
	Timetable map[string]map[string]*Trip
	// Platforms maps "<serviceId>/<stopId>" -> platform string.
	Platforms map[string]string
	BuiltAt   time.Time
}

// TripStops returns the stop list for a trip, or nil when unknown.
func (s *Snapshot) TripStops(routeId, vehicleId string) []StopTime {
	vehicles, present := s.Timetable[routeId]
	if !present {
		return nil
	}
	trip, present := vehicles[vehicleId]
	if !present {
		return nil
	}
	return trip.Stops
}

// Platform returns the platform recorded for a service at a stop.
func (s *Snapshot) Platform(vehicleId, stopId string) (string, bool) {
	platform, present := s.Platforms[PlatformKey(vehicleId, stopId)]
	return platform, present
}

// TripCount returns the total number of trips across all routes.
func (s *Snapshot) TripCount() int {
	count := 0
	for _, vehicles := range s.Timetable {
		count += len(vehicles)
	}
	return count
}

// PlatformKey builds the platform map key for a service at a stop.
func PlatformKey(vehicleId, stopId string) string {
	return fmt.Sprintf("%s/%s", vehicleId, stopId)
}

// Builder accumulates trips and platforms during one refresh cycle. It is
// per-cycle state: each cycle constructs a fresh Builder whose only published
// output is the snapshot.
type Builder struct {
	trips     map[string]map[string]*Trip
	platforms map[string]string
}

// MakeBuilder builds an empty Builder, seeded with warmPlatforms as fallback
// platform entries.
func MakeBuilder(warmPlatforms map[string]string) *Builder {
	platforms := make(map[string]string, len(warmPlatforms))
	for key, platform := range warmPlatforms {
		platforms[key] = platform
	}
	return &Builder{
		trips:     make(map[string]map[string]*Trip),
		platforms: platforms,
	}
}

// Append adds one stop time to a trip, creating the trip if needed.
func (b *Builder) Append(routeId, vehicleId, stopId string, arrival int64) {
	trip := b.ensureTrip(routeId, vehicleId)
	trip.Stops = append(trip.Stops, StopTime{StopId: stopId, Arrival: arrival})
}

// AppendAll adds stop times to a trip, creating the trip if needed.
func (b *Builder) AppendAll(routeId, vehicleId string, stops []StopTime) {
	trip := b.ensureTrip(routeId, vehicleId)
	trip.Stops = append(trip.Stops, stops...)
}

// SetTrip replaces a trip's stop list outright.
func (b *Builder) SetTrip(routeId, vehicleId string, stops []StopTime) {
	trip := b.ensureTrip(routeId, vehicleId)
	trip.Stops = stops
}

// TripStops returns the stops recorded so far for a trip.
func (b *Builder) TripStops(routeId, vehicleId string) []StopTime {
	if vehicles, present := b.trips[routeId]; present {
		if trip, present := vehicles[vehicleId]; present {
			return trip.Stops
		}
	}
	return nil
}

// SetPlatform records the platform for a service at a stop.
func (b *Builder) SetPlatform(vehicleId, stopId, platform string) {
	b.platforms[PlatformKey(vehicleId, stopId)] = platform
}

func (b *Builder) ensureTrip(routeId, vehicleId string) *Trip {
	vehicles, present := b.trips[routeId]
	if !present {
		vehicles = make(map[string]*Trip)
		b.trips[routeId] = vehicles
	}
	trip, present := vehicles[vehicleId]
	if !present {
		trip = &Trip{RouteId: routeId, VehicleId: vehicleId}
		vehicles[vehicleId] = trip
	}
	return trip
}

// Snapshot freezes the builder into a publishable snapshot. Trips with no
// stops are dropped and every trip's stop list is sorted by arrival so the
// non-decreasing invariant holds regardless of ingest order.
func (b *Builder) Snapshot(builtAt time.Time) *Snapshot {
	for routeId, vehicles := range b.trips {
		for vehicleId, trip := range vehicles {
			if len(trip.Stops) == 0 {
				delete(vehicles, vehicleId)
				continue
			}
			sort.SliceStable(trip.Stops, func(i, j int) bool {
				return trip.Stops[i].Arrival < trip.Stops[j].Arrival
			})
		}
		if len(vehicles) == 0 {
			delete(b.trips, routeId)
		}
	}
	return &Snapshot{
		Timetable: b.trips,
		Platforms: b.platforms,
		BuiltAt:   builtAt,
	}
}
