// Package statictt provides the static route pattern timetables loaded at
// startup for each mode.
package statictt

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// IntervalStop is one entry of an interval: a stop and its minute offset from
// the start of the trip. Serialized upstream as a [stopId, offset] pair.
type IntervalStop struct {
	StopId string
	Offset float64
}

// UnmarshalJSON decodes the [stopId, offsetMinutes] pair form.
func (s *IntervalStop) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("interval stop has %d elements, want 2", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.StopId); err != nil {
		return fmt.Errorf("unmarshaling interval stop id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &s.Offset); err != nil {
		return fmt.Errorf("unmarshaling interval stop offset: %w", err)
	}
	return nil
}

// Interval is an ordered sequence of stops with minute offsets.
type Interval []IntervalStop

// StopIds returns the ordered stop ids of the interval.
func (i Interval) StopIds() []string {
	ids := make([]string, 0, len(i))
	for _, stop := range i {
		ids = append(ids, stop.StopId)
	}
	return ids
}

// OffsetMap returns the interval as a stop id to minute offset map.
// The first offset wins when a stop id repeats.
func (i Interval) OffsetMap() map[string]float64 {
	offsets := make(map[string]float64, len(i))
	for _, stop := range i {
		if _, present := offsets[stop.StopId]; !present {
			offsets[stop.StopId] = stop.Offset
		}
	}
	return offsets
}

// ContainsSubsequence reports whether the observed stop ids occur in order as
// a subsequence of the interval's stop sequence.
func (i Interval) ContainsSubsequence(observed []string) bool {
	pos := 0
	for _, obs := range observed {
		found := false
		for pos < len(i) {
			if i[pos].StopId == obs {
				found = true
				pos++
				break
			}
			pos++
		}
		if !found {
			return false
		}
	}
	return true
}

// ScheduledStart is a scheduled trip start: the index of the interval variant
// it executes and its start expressed as minutes since local midnight.
// Serialized upstream as an [intervalId, startMinutes] pair.
type ScheduledStart struct {
	IntervalId   int
	StartMinutes float64
}

// UnmarshalJSON decodes the [intervalId, startMinutes] pair form.
func (s *ScheduledStart) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("scheduled start has %d elements, want 2", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.IntervalId); err != nil {
		return fmt.Errorf("unmarshaling scheduled start interval id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &s.StartMinutes); err != nil {
		return fmt.Errorf("unmarshaling scheduled start minutes: %w", err)
	}
	return nil
}

// RoutePattern is a static start:end travel pattern for a tube route, holding
// its interval variants and per-weekday schedules of starts.
type RoutePattern struct {
	Intervals []Interval                  `json:"intervals"`
	Schedules map[string][]ScheduledStart `json:"schedules,omitempty"`
}

// ReachableStops returns the set of stop ids appearing in any interval
// variant of the pattern.
func (p *RoutePattern) ReachableStops() map[string]bool {
	reachable := make(map[string]bool)
	for _, interval := range p.Intervals {
		for _, stop := range interval {
			reachable[stop.StopId] = true
		}
	}
	return reachable
}

// SchedulesFor returns the scheduled starts for a weekday name such as
// "Monday". ok is false when the pattern has no schedule for that day.
func (p *RoutePattern) SchedulesFor(day string) ([]ScheduledStart, bool) {
	starts, present := p.Schedules[day]
	return starts, present
}

// FlatPattern is a static route pattern for bus and tram routes: a single
// interval plus the trip start times, in seconds since local midnight.
type FlatPattern struct {
	Intervals  Interval `json:"intervals"`
	StartTimes []int    `json:"start_times"`
}

// SplitRouteCode splits a "start:end" route pattern key into its terminal
// stop ids.
func SplitRouteCode(routeCode string) (startStop, endStop string) {
	parts := strings.SplitN(routeCode, ":", 2)
	if len(parts) != 2 {
		return routeCode, ""
	}
	return parts[0], parts[1]
}

// TubeTimetable holds tube route patterns keyed line -> routeCode.
type TubeTimetable map[string]map[string]*RoutePattern

// LineReachableStops returns the set of stop ids appearing in any interval of
// any pattern on the line.
func (t TubeTimetable) LineReachableStops(lineId string) map[string]bool {
	reachable := make(map[string]bool)
	for _, pattern := range t[lineId] {
		for stopId := range pattern.ReachableStops() {
			reachable[stopId] = true
		}
	}
	return reachable
}

// BusTimetable holds bus route patterns keyed line -> direction -> routeCode.
type BusTimetable map[string]map[string]map[string]*FlatPattern

// TramTimetable holds tram route patterns keyed line -> pattern name.
type TramTimetable map[string]map[string]*FlatPattern

// LoadTubeTimetable reads a tube timetable JSON file.
func LoadTubeTimetable(path string) (TubeTimetable, error) {
	var tt TubeTimetable
	if err := loadJson(path, &tt); err != nil {
		return nil, err
	}
	return tt, nil
}

// LoadBusTimetable reads a bus timetable JSON file.
func LoadBusTimetable(path string) (BusTimetable, error) {
	var tt BusTimetable
	if err := loadJson(path, &tt); err != nil {
		return nil, err
	}
	return tt, nil
}

// LoadTramTimetable reads a tram timetable JSON file.
func LoadTramTimetable(path string) (TramTimetable, error) {
	var tt TramTimetable
	if err := loadJson(path, &tt); err != nil {
		return nil, err
	}
	return tt, nil
}

func loadJson(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading timetable %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshaling timetable %s: %w", path, err)
	}
	return nil
}
