package ingest

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/openmobilitytools/journeycast/business/data/stops"
	"github.com/openmobilitytools/journeycast/business/timetable"
	"github.com/openmobilitytools/journeycast/foundation/metrics"
)

// defaultRailWorkers is the size of the worker pool issuing station board
// requests.
const defaultRailWorkers = 8

// serviceIdLength truncates upstream service ids to their stable prefix.
const serviceIdLength = 7

// boundingBox limits rail ingest to stations inside the served region.
type boundingBox struct {
	minLon, maxLon float64
	minLat, maxLat float64
}

func (b boundingBox) contains(lon, lat float64) bool {
	return lon >= b.minLon && lon <= b.maxLon && lat >= b.minLat && lat <= b.maxLat
}

// defaultBoundingBox covers the served urban region.
var defaultBoundingBox = boundingBox{minLon: -0.75, maxLon: 0.55, minLat: 51.10, maxLat: 51.85}

// railIngestor fans out to the per-station boards API and merges the results
// into per-service trips. Any station's board carries a service's whole
// trajectory, so services seen at multiple stations collapse by service id
// with last-writer-wins on the stop list.
type railIngestor struct {
	log       *log.Logger
	feed      boardsFeed
	directory *stops.Directory
	workers   int
	bounds    boundingBox
}

func makeRailIngestor(log *log.Logger, feed boardsFeed, directory *stops.Directory, workers int) *railIngestor {
	if workers <= 0 {
		workers = defaultRailWorkers
	}
	return &railIngestor{
		log:       log,
		feed:      feed,
		directory: directory,
		workers:   workers,
		bounds:    defaultBoundingBox,
	}
}

// railServiceEntry is one deduplicated service with its merged stop list.
type railServiceEntry struct {
	operator       string
	destinationCrs string
	stops          []timetable.StopTime
}

// ingest requests every in-bounds rail station's board through the worker
// pool and writes the deduplicated services into the builder. A failed
// station affects only that station's board.
func (r *railIngestor) ingest(builder *timetable.Builder, now time.Time, recorder *metrics.Recorder) {
	railStops, err := r.directory.ByMode("rail")
	if err != nil {
		r.log.Printf("rail ingest: loading rail stops: %v", err)
		return
	}

	var inBounds []stops.Stop
	for _, stop := range railStops {
		if r.bounds.contains(stop.Lon, stop.Lat) {
			inBounds = append(inBounds, stop)
		}
	}
	r.log.Printf("rail ingest: processing %d stations", len(inBounds))

	dayStart := startOfDay(now)

	var mu sync.Mutex
	services := make(map[string]*railServiceEntry)
	statusCounts := make(map[int]int)

	stations := make(chan stops.Stop)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for station := range stations {
				r.processStation(builder, station, dayStart, &mu, services, statusCounts)
			}
		}()
	}
	for _, station := range inBounds {
		stations <- station
	}
	close(stations)
	wg.Wait()

	nowUnix := now.Unix()
	trainCount := 0
	for serviceId, service := range services {
		routeId := fmt.Sprintf("%s/%s", service.operator, service.destinationCrs)
		var future []timetable.StopTime
		for _, stop := range service.stops {
			if stop.Arrival > nowUnix {
				future = append(future, stop)
			}
		}
		builder.SetTrip(routeId, serviceId, future)
		trainCount++
	}

	for status, count := range statusCounts {
		recorder.CountTagged("rail_data", "http_status_codes", count, "status_code", fmt.Sprintf("%d", status))
	}
	recorder.Count("rail_data", "train_count", trainCount)
	r.log.Printf("rail ingest: %d unique services", trainCount)
}

// processStation requests one station board and merges its services under the
// shared lock. The critical section covers only the merge.
func (r *railIngestor) processStation(builder *timetable.Builder, station stops.Stop, dayStart time.Time,
	mu *sync.Mutex, services map[string]*railServiceEntry, statusCounts map[int]int) {

	board, status, err := r.feed.Board(station.Id)
	if status != 0 {
		mu.Lock()
		statusCounts[status]++
		mu.Unlock()
	}
	if err != nil {
		r.log.Printf("rail ingest: station %s: %v", station.Id, err)
		return
	}

	for i := range board.TrainServices {
		service := &board.TrainServices[i]
		if service.IsCancelled {
			continue
		}
		serviceId := service.ServiceID
		if len(serviceId) > serviceIdLength {
			serviceId = serviceId[:serviceIdLength]
		}
		if len(service.Destination) == 0 {
			continue
		}

		stationTime := stationCallTime(service, dayStart)
		stopList := []timetable.StopTime{{StopId: station.Id, Arrival: stationTime}}
		stopList = append(stopList, callingPointTimes(service.PreviousCallingPoints, dayStart)...)
		stopList = append(stopList, callingPointTimes(service.SubsequentCallingPoints, dayStart)...)

		platform := service.Platform
		if platform == "" {
			platform = "?"
		}

		mu.Lock()
		services[serviceId] = &railServiceEntry{
			operator:       service.Operator,
			destinationCrs: service.Destination[0].Crs,
			stops:          stopList,
		}
		builder.SetPlatform(serviceId, station.Id, platform)
		mu.Unlock()
	}
}

// stationCallTime resolves the service's time at the boarded station,
// preferring estimated over actual over scheduled. Returns -1 when no clock
// time is available so the stop is dropped as already past.
func stationCallTime(service *railService, dayStart time.Time) int64 {
	for _, clock := range []string{service.Eta, service.Ata, service.Sta} {
		if !strings.Contains(clock, ":") {
			continue
		}
		if unix, err := clockToUnix(clock, dayStart); err == nil {
			return unix
		}
	}
	return -1
}

// callingPointTimes flattens calling point groups into stop times, preferring
// actual over estimated times and falling back to the scheduled time when the
// preferred field carries non-clock text.
func callingPointTimes(groups []callingPointGroup, dayStart time.Time) []timetable.StopTime {
	if len(groups) == 0 {
		return nil
	}
	var result []timetable.StopTime
	for _, point := range groups[0].CallingPoint {
		clock := ""
		switch {
		case point.At != "":
			clock = point.At
			if !strings.Contains(clock, ":") {
				clock = point.St
			}
		case point.Et != "":
			clock = point.Et
			if !strings.Contains(clock, ":") {
				clock = point.St
			}
		default:
			continue
		}
		unix, err := clockToUnix(clock, dayStart)
		if err != nil {
			continue
		}
		result = append(result, timetable.StopTime{StopId: point.Crs, Arrival: unix})
	}
	return result
}
