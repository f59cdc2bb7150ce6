package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/openmobilitytools/journeycast/business/data/stops"
	"github.com/openmobilitytools/journeycast/foundation/httpclient"
	"github.com/pkg/errors"
)

// bucketSizeDegrees is roughly 70 m at UK latitude.
const bucketSizeDegrees = 0.001

// unreachableDuration marks destinations the routing engine cannot reach.
const unreachableDuration = 1e10

type graphBuilderConfig struct {
	osrmUrl        string
	timeoutSeconds int
	tableChunkSize int
	outputFile     string
	radiusDegrees  float64
	saveInterval   int
}

// graphBuilder accumulates walking durations between nearby stops. Existing
// output is loaded first so interrupted runs resume where they left off.
type graphBuilder struct {
	log       *log.Logger
	cfg       graphBuilderConfig
	client    *httpclient.Client
	distances map[string]map[string]float64

	changesSinceSave int
}

func makeGraphBuilder(log *log.Logger, cfg graphBuilderConfig) *graphBuilder {
	return &graphBuilder{
		log:       log,
		cfg:       cfg,
		client:    httpclient.MakeClient(time.Duration(cfg.timeoutSeconds)*time.Second, nil),
		distances: make(map[string]map[string]float64),
	}
}

type bucketKey struct {
	lat int
	lon int
}

// build computes walking durations for every stop pair within the radius and
// writes the symmetric graph to the output file.
func (g *graphBuilder) build(allStops []stops.Stop) error {
	if err := g.loadExisting(); err != nil {
		return err
	}

	index := makeSpatialIndex(allStops)
	g.log.Printf("built spatial index with %d buckets", len(index))

	done := 0
	for i := range allStops {
		stop := &allStops[i]

		var candidates []*stops.Stop
		for _, nearby := range index.nearby(stop, g.cfg.radiusDegrees) {
			if _, present := g.distances[stop.Id][nearby.Id]; present {
				continue
			}
			if reverse, present := g.distances[nearby.Id][stop.Id]; present {
				g.record(stop.Id, nearby.Id, reverse)
				continue
			}
			candidates = append(candidates, nearby)
		}

		for start := 0; start < len(candidates); start += g.cfg.tableChunkSize {
			end := start + g.cfg.tableChunkSize
			if end > len(candidates) {
				end = len(candidates)
			}
			g.processChunk(stop, candidates[start:end])
		}

		done++
		if g.changesSinceSave > 0 && done%g.cfg.saveInterval == 0 {
			g.log.Printf("saving after %d stops, %d new edges", done, g.changesSinceSave)
			if err := g.save(); err != nil {
				return err
			}
		}
	}

	if g.changesSinceSave > 0 {
		if err := g.save(); err != nil {
			return err
		}
	}
	g.log.Printf("completed processing %d stops", done)
	return nil
}

func (g *graphBuilder) loadExisting() error {
	contents, err := os.ReadFile(g.cfg.outputFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading existing output %s", g.cfg.outputFile)
	}
	if err = json.Unmarshal(contents, &g.distances); err != nil {
		return errors.Wrapf(err, "parsing existing output %s", g.cfg.outputFile)
	}
	g.log.Printf("resuming with %d stops already present", len(g.distances))
	return nil
}

// record stores one directed edge.
func (g *graphBuilder) record(fromId, toId string, seconds float64) {
	if g.distances[fromId] == nil {
		g.distances[fromId] = make(map[string]float64)
	}
	g.distances[fromId][toId] = seconds
	g.changesSinceSave++
}

// recordBoth stores the edge in both directions, walking time is symmetric
// enough for transfer purposes.
func (g *graphBuilder) recordBoth(fromId, toId string, seconds float64) {
	g.record(fromId, toId, seconds)
	g.record(toId, fromId, seconds)
}

// tableResponse mirrors the routing engine's /table/v1 response. Durations
// hold nil for unreachable destinations.
type tableResponse struct {
	Code      string       `json:"code"`
	Durations [][]*float64 `json:"durations"`
}

// routeResponse mirrors the routing engine's /route/v1 response.
type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// processChunk prices the walks from origin to every candidate in one table
// request, falling back to individual route requests when the table call
// fails.
func (g *graphBuilder) processChunk(origin *stops.Stop, chunk []*stops.Stop) {
	coords := make([]string, 0, len(chunk)+1)
	coords = append(coords, fmt.Sprintf("%f,%f", origin.Lon, origin.Lat))
	for _, dest := range chunk {
		coords = append(coords, fmt.Sprintf("%f,%f", dest.Lon, dest.Lat))
	}

	requestUrl := fmt.Sprintf("%s/table/v1/walking/%s", g.cfg.osrmUrl, strings.Join(coords, ";"))
	response := tableResponse{}
	_, err := g.client.GetJson(requestUrl, map[string]string{
		"sources":     "0",
		"annotations": "duration",
	}, &response)
	if err == nil && (response.Code != "Ok" || len(response.Durations) == 0) {
		err = errors.Errorf("table response code %q", response.Code)
	}
	if err != nil {
		g.log.Printf("table request failed, falling back to individual routes: %v", err)
		for _, dest := range chunk {
			g.routeFallback(origin, dest)
		}
		return
	}

	durations := response.Durations[0]
	for i, dest := range chunk {
		// index 0 is the origin to itself
		if i+1 >= len(durations) {
			break
		}
		seconds := durations[i+1]
		if seconds == nil || *seconds >= unreachableDuration {
			g.log.Printf("no walking route %s -> %s", origin.Id, dest.Id)
			continue
		}
		g.recordBoth(origin.Id, dest.Id, *seconds)
	}
}

// routeFallback prices a single walk through the route API.
func (g *graphBuilder) routeFallback(origin, dest *stops.Stop) {
	requestUrl := fmt.Sprintf("%s/route/v1/walking/%f,%f;%f,%f",
		g.cfg.osrmUrl, origin.Lon, origin.Lat, dest.Lon, dest.Lat)
	response := routeResponse{}
	_, err := g.client.GetJson(requestUrl, map[string]string{
		"overview": "false",
		"steps":    "false",
	}, &response)
	if err == nil && (response.Code != "Ok" || len(response.Routes) == 0) {
		err = errors.Errorf("route response code %q", response.Code)
	}
	if err != nil {
		g.log.Printf("no walking route %s -> %s: %v", origin.Id, dest.Id, err)
		return
	}
	g.recordBoth(origin.Id, dest.Id, response.Routes[0].Duration)
}

// save writes the graph through a temp file so the output is never truncated
// mid-write.
func (g *graphBuilder) save() error {
	jsonData, err := json.MarshalIndent(g.distances, "", "    ")
	if err != nil {
		return errors.Wrap(err, "marshaling walking distances")
	}
	tmpPath := g.cfg.outputFile + ".tmp"
	if err = os.WriteFile(tmpPath, jsonData, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", tmpPath)
	}
	if err = os.Rename(tmpPath, g.cfg.outputFile); err != nil {
		return errors.Wrapf(err, "replacing %s", g.cfg.outputFile)
	}
	g.changesSinceSave = 0
	return nil
}

// spatialIndex buckets stops by coordinate for fast radius queries.
type spatialIndex map[bucketKey][]*stops.Stop

func makeSpatialIndex(allStops []stops.Stop) spatialIndex {
	index := make(spatialIndex)
	for i := range allStops {
		stop := &allStops[i]
		key := bucketKey{
			lat: int(stop.Lat / bucketSizeDegrees),
			lon: int(stop.Lon / bucketSizeDegrees),
		}
		index[key] = append(index[key], stop)
	}
	return index
}

// nearby returns the stops within radius degrees of center, excluding center
// itself.
func (s spatialIndex) nearby(center *stops.Stop, radius float64) []*stops.Stop {
	bucketRange := int(radius/bucketSizeDegrees) + 1
	centerLat := int(center.Lat / bucketSizeDegrees)
	centerLon := int(center.Lon / bucketSizeDegrees)

	var result []*stops.Stop
	for latOffset := -bucketRange; latOffset <= bucketRange; latOffset++ {
		for lonOffset := -bucketRange; lonOffset <= bucketRange; lonOffset++ {
			for _, stop := range s[bucketKey{lat: centerLat + latOffset, lon: centerLon + lonOffset}] {
				if stop.Id == center.Id {
					continue
				}
				if stop.Lat <= center.Lat-radius || stop.Lat >= center.Lat+radius {
					continue
				}
				if stop.Lon <= center.Lon-radius || stop.Lon >= center.Lon+radius {
					continue
				}
				result = append(result, stop)
			}
		}
	}
	return result
}
