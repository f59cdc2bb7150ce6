package journeysvc

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/openmobilitytools/journeycast/foundation/geo"
	"github.com/openmobilitytools/journeycast/foundation/httpclient"
	"github.com/pkg/errors"
)

// segmentGeometry is the rendered polyline for one journey segment, with the
// duration and distance the caller should report for it.
type segmentGeometry struct {
	Coordinates [][2]float64
	Duration    int64
	Distance    float64
}

// walkRouter produces pedestrian geometry between two coordinates.
type walkRouter interface {
	WalkingRoute(origin, dest geo.Coord) (*segmentGeometry, error)
}

// osrmRoute mirrors the routing engine's /route/v1 response.
type osrmRoute struct {
	Code   string `json:"code"`
	Routes []struct {
		Duration float64 `json:"duration"`
		Distance float64 `json:"distance"`
		Geometry struct {
			Coordinates [][2]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// osrmWalkRouter is the live walkRouter over an OSRM instance.
type osrmWalkRouter struct {
	client  *httpclient.Client
	baseUrl string
}

// MakeOsrmWalkRouter builds an osrmWalkRouter with a short timeout, walking
// geometry is cosmetic and the caller falls back to a straight line.
func MakeOsrmWalkRouter(baseUrl string, timeout time.Duration) *osrmWalkRouter {
	return &osrmWalkRouter{
		client:  httpclient.MakeClient(timeout, nil),
		baseUrl: baseUrl,
	}
}

func (o *osrmWalkRouter) WalkingRoute(origin, dest geo.Coord) (*segmentGeometry, error) {
	requestUrl := fmt.Sprintf("%s/route/v1/walking/%f,%f;%f,%f",
		o.baseUrl, origin[0], origin[1], dest[0], dest[1])
	response := osrmRoute{}
	_, err := o.client.GetJson(requestUrl, map[string]string{
		"overview":   "full",
		"geometries": "geojson",
	}, &response)
	if err != nil {
		return nil, errors.Wrap(err, "requesting walking route")
	}
	if response.Code != "Ok" || len(response.Routes) == 0 {
		return nil, errors.Errorf("walking route unavailable, code %q", response.Code)
	}

	route := response.Routes[0]
	coordinates := make([][2]float64, 0, len(route.Geometry.Coordinates))
	for _, coord := range route.Geometry.Coordinates {
		coordinates = append(coordinates, [2]float64{coord[1], coord[0]})
	}
	return &segmentGeometry{
		Coordinates: coordinates,
		Duration:    int64(route.Duration),
		Distance:    route.Distance,
	}, nil
}

// LoadLinestrings reads the per-route polylines file. Each entry holds
// GeoJSON-style coordinate lists, sometimes double-encoded as a JSON string.
// A missing file is not an error, trips then render as straight lines.
func LoadLinestrings(path string) (map[string][]geo.Coord, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]geo.Coord{}, nil
		}
		return nil, errors.Wrapf(err, "reading linestrings file %s", path)
	}

	var raw map[string]json.RawMessage
	if err = json.Unmarshal(contents, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing linestrings file %s", path)
	}

	result := make(map[string][]geo.Coord, len(raw))
	for routeId, entry := range raw {
		coords, err := parseLinestring(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing linestring for route %s", routeId)
		}
		if len(coords) > 0 {
			result[routeId] = coords
		}
	}
	return result, nil
}

// parseLinestring unwraps one linestring entry to its first coordinate list.
func parseLinestring(entry json.RawMessage) ([]geo.Coord, error) {
	var encoded string
	if err := json.Unmarshal(entry, &encoded); err == nil {
		entry = json.RawMessage(encoded)
	}
	var lines [][]geo.Coord
	if err := json.Unmarshal(entry, &lines); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return lines[0], nil
}

// geometryService renders segment polylines. Walks go through the pedestrian
// router and fall back to a straight line priced at walking speed. Trips use
// the stretch of the route's polyline between the two stops when one is on
// file, otherwise a straight line, and always keep the ride time as duration.
type geometryService struct {
	log         *log.Logger
	router      walkRouter
	linestrings map[string][]geo.Coord
}

func MakeGeometryService(log *log.Logger, router walkRouter, linestrings map[string][]geo.Coord) *geometryService {
	if linestrings == nil {
		linestrings = map[string][]geo.Coord{}
	}
	return &geometryService{log: log, router: router, linestrings: linestrings}
}

const walkMetersPerSecond = 1.4

// walk renders a walking segment between two stop coordinates.
func (g *geometryService) walk(origin, dest geo.Coord) *segmentGeometry {
	if g.router != nil {
		result, err := g.router.WalkingRoute(origin, dest)
		if err == nil {
			return result
		}
		g.log.Printf("walking route failed, using straight line: %v", err)
	}
	meters := geo.Distance(origin, dest)
	return &segmentGeometry{
		Coordinates: geo.StraightLine(origin, dest),
		Duration:    int64(meters / walkMetersPerSecond),
		Distance:    meters,
	}
}

// trip renders a transit segment. straightLine forces a two point polyline,
// used for tube and rail where no street-level shape applies.
func (g *geometryService) trip(routeId string, origin, dest geo.Coord, rideTime int64, straightLine bool) *segmentGeometry {
	meters := geo.Distance(origin, dest)
	if !straightLine {
		if coords, present := g.linestrings[routeId]; present {
			return &segmentGeometry{
				Coordinates: geo.PartialLine(coords, origin, dest),
				Duration:    rideTime,
				Distance:    meters,
			}
		}
	}
	return &segmentGeometry{
		Coordinates: geo.StraightLine(origin, dest),
		Duration:    rideTime,
		Distance:    meters,
	}
}
