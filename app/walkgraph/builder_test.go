package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openmobilitytools/journeycast/business/data/stops"
)

func builderTestLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestSpatialIndexNearby(t *testing.T) {
	allStops := []stops.Stop{
		{Id: "center", Lat: 51.5000, Lon: -0.1400},
		{Id: "close", Lat: 51.5020, Lon: -0.1410},
		{Id: "edge", Lat: 51.5090, Lon: -0.1400},
		{Id: "far", Lat: 51.6000, Lon: -0.1400},
	}
	index := makeSpatialIndex(allStops)

	result := index.nearby(&allStops[0], 0.009)

	found := make(map[string]bool)
	for _, stop := range result {
		found[stop.Id] = true
	}
	if !found["close"] {
		t.Errorf("expected close stop in %v", found)
	}
	if found["center"] {
		t.Errorf("center must be excluded")
	}
	// the radius interval is open, a stop exactly at the boundary is out
	if found["edge"] {
		t.Errorf("stop at the radius boundary must be excluded")
	}
	if found["far"] {
		t.Errorf("far stop must be excluded")
	}
}

func TestRecordBothIsSymmetric(t *testing.T) {
	builder := makeGraphBuilder(builderTestLogger(), graphBuilderConfig{})

	builder.recordBoth("A", "B", 120)

	if builder.distances["A"]["B"] != 120 || builder.distances["B"]["A"] != 120 {
		t.Errorf("distances = %+v, want symmetric 120s edge", builder.distances)
	}
	if builder.changesSinceSave != 2 {
		t.Errorf("changesSinceSave = %d, want 2", builder.changesSinceSave)
	}
}

func TestSaveAndResume(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "walking_distances.json")
	builder := makeGraphBuilder(builderTestLogger(), graphBuilderConfig{outputFile: outputFile})
	builder.recordBoth("A", "B", 90)

	if err := builder.save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if builder.changesSinceSave != 0 {
		t.Errorf("changesSinceSave = %d after save, want 0", builder.changesSinceSave)
	}
	if _, err := os.Stat(outputFile + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind")
	}

	resumed := makeGraphBuilder(builderTestLogger(), graphBuilderConfig{outputFile: outputFile})
	if err := resumed.loadExisting(); err != nil {
		t.Fatalf("loadExisting: %v", err)
	}
	if resumed.distances["A"]["B"] != 90 || resumed.distances["B"]["A"] != 90 {
		t.Errorf("resumed distances = %+v", resumed.distances)
	}
}

func TestBuildPricesNearbyPairs(t *testing.T) {
	duration := 150.0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/table/v1/walking/") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(tableResponse{
			Code:      "Ok",
			Durations: [][]*float64{{new(float64), &duration}},
		})
	}))
	defer server.Close()

	builder := makeGraphBuilder(builderTestLogger(), graphBuilderConfig{
		osrmUrl:        server.URL,
		timeoutSeconds: 5,
		tableChunkSize: 10,
		outputFile:     filepath.Join(t.TempDir(), "walking_distances.json"),
		radiusDegrees:  0.009,
		saveInterval:   100,
	})

	allStops := []stops.Stop{
		{Id: "A", Lat: 51.5000, Lon: -0.1400},
		{Id: "B", Lat: 51.5020, Lon: -0.1410},
	}
	if err := builder.build(allStops); err != nil {
		t.Fatalf("build: %v", err)
	}

	if builder.distances["A"]["B"] != duration || builder.distances["B"]["A"] != duration {
		t.Errorf("distances = %+v, want symmetric %.0fs edge", builder.distances, duration)
	}
}
