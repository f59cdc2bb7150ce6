package journeysvc

import (
	"log"
	"sort"
	"strings"

	"github.com/openmobilitytools/journeycast/business/data/stops"
	"github.com/openmobilitytools/journeycast/business/data/walking"
	"github.com/openmobilitytools/journeycast/business/journey"
	"github.com/openmobilitytools/journeycast/business/timetable"
	"github.com/openmobilitytools/journeycast/foundation/geo"
	"github.com/pkg/errors"
)

// ErrNoPath indicates the engine found no journey between the two stops.
var ErrNoPath = errors.New("no route found")

// SegmentStop is one intermediate stop of a trip segment.
type SegmentStop struct {
	Id   string `json:"id"`
	Name string `json:"name"`
	Time int64  `json:"time"`
}

// SegmentResponse is one leg of the journey response.
type SegmentResponse struct {
	Type        string        `json:"type"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	FromId      string        `json:"from_id"`
	ToId        string        `json:"to_id"`
	StartTime   int64         `json:"start_time"`
	EndTime     int64         `json:"end_time"`
	Duration    int64         `json:"duration"`
	Distance    float64       `json:"distance"`
	Coordinates [][2]float64  `json:"coordinates"`
	Route       string        `json:"route,omitempty"`
	Vehicle     string        `json:"vehicle,omitempty"`
	Mode        string        `json:"mode,omitempty"`
	LineColor   string        `json:"line_color,omitempty"`
	TubeLine    string        `json:"tube_line,omitempty"`
	RailLine    string        `json:"rail_line,omitempty"`
	Platform    string        `json:"platform,omitempty"`
	Stops       []SegmentStop `json:"stops,omitempty"`
}

// RouteResponse is the full journey response for one request.
type RouteResponse struct {
	JourneyTime    int64             `json:"journey_time"`
	JourneyMinutes int64             `json:"journey_minutes"`
	NumLegs        int               `json:"num_legs"`
	ArrivalTime    int64             `json:"arrival_time"`
	DepartureTime  int64             `json:"departure_time"`
	Segments       []SegmentResponse `json:"segments"`
}

// LineInfo describes one line serving a stop in search results.
type LineInfo struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Type  string `json:"type"`
}

// SearchResult is one stop in the search response.
type SearchResult struct {
	Id    string     `json:"id"`
	Name  string     `json:"name"`
	Lat   float64    `json:"lat"`
	Lng   float64    `json:"lng"`
	Mode  string     `json:"mode"`
	Lines []LineInfo `json:"lines"`

	lineCount int
}

// Coordinator glues the journey engine to the HTTP surface: it takes the
// current snapshot, runs the engine, and enriches the best journey's segments
// with names, modes, colours, platforms, intermediate stops, and geometry.
type Coordinator struct {
	log            *log.Logger
	snapshots      *timetable.Publisher
	walking        *walking.Graph
	directory      *stops.Directory
	geometry       *geometryService
	maxWalkSeconds float64
}

// MakeCoordinator builds a Coordinator.
func MakeCoordinator(log *log.Logger,
	snapshots *timetable.Publisher,
	walkingGraph *walking.Graph,
	directory *stops.Directory,
	geometry *geometryService,
	maxWalkSeconds float64) *Coordinator {
	return &Coordinator{
		log:            log,
		snapshots:      snapshots,
		walking:        walkingGraph,
		directory:      directory,
		geometry:       geometry,
		maxWalkSeconds: maxWalkSeconds,
	}
}

// Route plans a journey from origin to destination leaving now. The whole
// request runs against the single snapshot taken at entry.
func (c *Coordinator) Route(origin, destination string, departureTime int64) (*RouteResponse, error) {
	snapshot := c.snapshots.Current()
	engine := journey.MakeEngine(snapshot, c.walking, c.maxWalkSeconds)

	results := engine.Route(origin, destination, departureTime, journey.DefaultMaxRounds)
	if len(results) == 0 {
		return nil, ErrNoPath
	}

	best := results[0]
	response := RouteResponse{
		JourneyTime:    best.JourneyTime,
		JourneyMinutes: best.JourneyTime / 60,
		NumLegs:        best.Legs,
		ArrivalTime:    best.Arrival,
		DepartureTime:  departureTime,
		Segments:       make([]SegmentResponse, 0, len(best.Path)),
	}

	currentTime := departureTime
	for _, segment := range best.Path {
		built := c.buildSegment(engine, snapshot, &segment, currentTime)
		currentTime = built.EndTime
		response.Segments = append(response.Segments, built)
	}
	return &response, nil
}

// buildSegment enriches one engine segment into its response form.
func (c *Coordinator) buildSegment(engine *journey.Engine, snapshot *timetable.Snapshot,
	segment *journey.Segment, startTime int64) SegmentResponse {

	built := SegmentResponse{
		Type:      segment.Type,
		From:      c.directory.Name(segment.From),
		To:        c.directory.Name(segment.To),
		FromId:    segment.From,
		ToId:      segment.To,
		StartTime: startTime,
	}

	originCoord, originKnown := c.stopCoord(segment.From)
	destCoord, destKnown := c.stopCoord(segment.To)

	if segment.Type == "walk" {
		var geometry *segmentGeometry
		if originKnown && destKnown {
			geometry = c.geometry.walk(originCoord, destCoord)
		} else {
			geometry = &segmentGeometry{Duration: segment.WalkSeconds, Distance: segment.WalkMeters}
		}
		built.Duration = geometry.Duration
		built.Distance = geometry.Distance
		built.Coordinates = geometry.Coordinates
		built.EndTime = startTime + built.Duration
		return built
	}

	built.Route = segment.RouteId
	built.Vehicle = segment.VehicleId
	straightLine := c.classifySegment(&built, segment, snapshot)
	built.Stops = c.intermediateStops(engine, segment)

	if originKnown && destKnown {
		geometry := c.geometry.trip(segment.RouteId, originCoord, destCoord, segment.RideTime, straightLine)
		built.Coordinates = geometry.Coordinates
		built.Distance = geometry.Distance
	}
	built.Duration = segment.RideTime
	built.EndTime = startTime + built.Duration
	return built
}

// classifySegment sets the segment's mode, colour, line name, and platform
// from the endpoint stop modes, preferring bus, then tube, then rail, then
// whatever the route id itself resolves to. Returns whether the segment
// should render as a straight line.
func (c *Coordinator) classifySegment(built *SegmentResponse, segment *journey.Segment,
	snapshot *timetable.Snapshot) bool {

	originMode := c.directory.Mode(segment.From)
	destMode := c.directory.Mode(segment.To)
	railRoute := strings.Contains(segment.RouteId, "/")

	switch {
	case originMode == "bus" || destMode == "bus":
		built.Mode = "bus"
		built.LineColor = defaultBusColor
		return false

	case isTubeMode(originMode) || isTubeMode(destMode):
		if name, color, ok := tubeLineInfo(segment.RouteId); ok {
			built.Mode = "tube"
			built.TubeLine = name
			built.LineColor = color
			return true
		}
		built.Mode = "bus"
		built.LineColor = defaultBusColor
		return false

	case (originMode == "rail" || destMode == "rail") && railRoute:
		name, color := railLineInfo(segment.RouteId, c.directory.Name)
		built.Mode = "rail"
		built.RailLine = name
		built.LineColor = color
		if platform, present := snapshot.Platform(segment.VehicleId, segment.From); present {
			built.Platform = platform
		} else {
			built.Platform = "?"
		}
		return true

	default:
		if name, color, ok := tubeLineInfo(segment.RouteId); ok {
			built.Mode = "tube"
			built.TubeLine = name
			built.LineColor = color
			return true
		}
		name, color := railLineInfo(segment.RouteId, c.directory.Name)
		built.Mode = "rail"
		built.RailLine = name
		built.LineColor = color
		return false
	}
}

func isTubeMode(mode string) bool {
	return mode == "tube" || mode == "underground"
}

// intermediateStops slices the trip's stop list between the segment's board
// and alight stops, inclusive, reversing when the indices are inverted.
func (c *Coordinator) intermediateStops(engine *journey.Engine, segment *journey.Segment) []SegmentStop {
	tripStops := engine.TripStops(segment.RouteId, segment.VehicleId)

	boardIdx, alightIdx := -1, -1
	for i, stop := range tripStops {
		if stop.StopId == segment.From {
			boardIdx = i
		}
		if stop.StopId == segment.To {
			alightIdx = i
		}
	}
	if boardIdx < 0 || alightIdx < 0 {
		return nil
	}

	var sliced []SegmentStop
	if boardIdx <= alightIdx {
		for i := boardIdx; i <= alightIdx; i++ {
			sliced = append(sliced, c.segmentStop(tripStops[i].StopId, tripStops[i].Arrival))
		}
	} else {
		for i := boardIdx; i >= alightIdx; i-- {
			sliced = append(sliced, c.segmentStop(tripStops[i].StopId, tripStops[i].Arrival))
		}
	}
	return sliced
}

func (c *Coordinator) segmentStop(stopId string, arrival int64) SegmentStop {
	return SegmentStop{Id: stopId, Name: c.directory.Name(stopId), Time: arrival}
}

func (c *Coordinator) stopCoord(stopId string) (geo.Coord, bool) {
	lon, lat, ok := c.directory.Coord(stopId)
	return geo.Coord{lon, lat}, ok
}

// maxSearchResults caps the search response size.
const maxSearchResults = 20

// maxLinesPerStop caps the lines listed per stop in search results.
const maxLinesPerStop = 10

// Search finds stops whose name contains query. Stations sharing a name
// collapse to one result, preferring rail entries then higher line counts,
// and rail and tube stations sort ahead of bus stops.
func (c *Coordinator) Search(query string) ([]SearchResult, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if len(query) < 2 {
		return []SearchResult{}, nil
	}

	matches, err := c.directory.SearchByName(query)
	if err != nil {
		return nil, errors.Wrap(err, "searching stops")
	}

	allResults := make([]SearchResult, 0, len(matches))
	for _, stop := range matches {
		lines, err := c.directory.LinesAt(stop.Id)
		if err != nil {
			c.log.Printf("search: loading lines at %s: %v", stop.Id, err)
			lines = map[string]map[string]bool{}
		}

		lineIds := make([]string, 0, len(lines))
		for lineId := range lines {
			lineIds = append(lineIds, lineId)
		}
		sort.Strings(lineIds)

		linesInfo := make([]LineInfo, 0, len(lineIds))
		for _, lineId := range lineIds {
			linesInfo = append(linesInfo, c.classifyLine(lineId, lines[lineId], stop.Mode))
		}
		if len(linesInfo) > maxLinesPerStop {
			linesInfo = linesInfo[:maxLinesPerStop]
		}

		allResults = append(allResults, SearchResult{
			Id:        stop.Id,
			Name:      stop.Name,
			Lat:       stop.Lat,
			Lng:       stop.Lon,
			Mode:      stop.Mode,
			Lines:     linesInfo,
			lineCount: len(lineIds),
		})
	}

	results := dedupeByName(allResults)

	sort.SliceStable(results, func(i, j int) bool {
		pi, pj := searchRank(results[i].Mode), searchRank(results[j].Mode)
		if pi != pj {
			return pi < pj
		}
		return results[i].lineCount > results[j].lineCount
	})

	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	return results, nil
}

// classifyLine labels one line at a stop from the modes of the stops it
// reaches, falling back to the line id itself when no modes are known.
func (c *Coordinator) classifyLine(lineId string, modes map[string]bool, stopMode string) LineInfo {
	if len(modes) > 0 {
		switch {
		case modes["bus"]:
			return busLineInfo(lineId)
		case modes["rail"]:
			name, color := railLineInfo(lineId, c.directory.Name)
			return LineInfo{Id: lineId, Name: name, Color: color, Type: "rail"}
		case modes["tube"] || modes["underground"]:
			if name, color, ok := tubeLineInfo(lineId); ok {
				return LineInfo{Id: lineId, Name: name, Color: color, Type: "tube"}
			}
			return busLineInfo(lineId)
		default:
			return busLineInfo(lineId)
		}
	}

	if name, color, ok := tubeLineInfo(lineId); ok {
		return LineInfo{Id: lineId, Name: name, Color: color, Type: "tube"}
	}
	if strings.Contains(lineId, "/") {
		name, color := railLineInfo(lineId, c.directory.Name)
		return LineInfo{Id: lineId, Name: name, Color: color, Type: "rail"}
	}
	if stopMode == "rail" {
		return LineInfo{
			Id:    strings.ToUpper(lineId),
			Name:  strings.ToUpper(lineId),
			Color: defaultRailColor,
			Type:  "rail",
		}
	}
	return busLineInfo(lineId)
}

func busLineInfo(lineId string) LineInfo {
	return LineInfo{
		Id:    strings.ToUpper(lineId),
		Name:  strings.ToUpper(lineId),
		Color: defaultBusColor,
		Type:  "bus",
	}
}

// dedupeByName collapses stops sharing a display name, preferring rail
// entries and then the entry with more lines.
func dedupeByName(results []SearchResult) []SearchResult {
	bestByName := make(map[string]int)
	deduped := make([]SearchResult, 0, len(results))
	for _, result := range results {
		existingIdx, present := bestByName[result.Name]
		if !present {
			bestByName[result.Name] = len(deduped)
			deduped = append(deduped, result)
			continue
		}
		existing := deduped[existingIdx]
		resultIsRail := result.Mode == "rail"
		existingIsRail := existing.Mode == "rail"
		switch {
		case resultIsRail && !existingIsRail:
			deduped[existingIdx] = result
		case !resultIsRail && existingIsRail:
			continue
		case result.lineCount > existing.lineCount:
			deduped[existingIdx] = result
		}
	}
	return deduped
}

// searchRank orders rail and tube stations ahead of everything else.
func searchRank(mode string) int {
	lower := strings.ToLower(mode)
	if strings.Contains(lower, "underground") || strings.Contains(lower, "tube") || lower == "rail" {
		return 0
	}
	return 1
}
