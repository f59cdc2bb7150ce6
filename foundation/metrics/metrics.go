// Package metrics records refresh-cycle measurements as InfluxDB points.
package metrics

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Config holds the connection details for the metrics sink. An empty Token
// disables recording entirely.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Recorder accumulates points during a refresh cycle and flushes them in one
// synchronous write. A nil Recorder is valid and records nothing, so callers
// never need to branch on whether metrics are configured.
type Recorder struct {
	client influxdb2.Client
	org    string
	bucket string
	points []*write.Point
}

// MakeRecorder builds a Recorder, or nil when no token is configured.
func MakeRecorder(cfg Config) *Recorder {
	if cfg.Token == "" {
		return nil
	}
	return &Recorder{
		client: influxdb2.NewClient(cfg.URL, cfg.Token),
		org:    cfg.Org,
		bucket: cfg.Bucket,
	}
}

// Count adds a point with a single integer field.
func (r *Recorder) Count(measurement, field string, value int) {
	if r == nil {
		return
	}
	r.points = append(r.points, influxdb2.NewPoint(measurement,
		nil, map[string]interface{}{field: value}, time.Now()))
}

// CountTagged adds a point with a single integer field and one tag.
func (r *Recorder) CountTagged(measurement, field string, value int, tagKey, tagValue string) {
	if r == nil {
		return
	}
	r.points = append(r.points, influxdb2.NewPoint(measurement,
		map[string]string{tagKey: tagValue},
		map[string]interface{}{field: value}, time.Now()))
}

// Duration adds a point recording elapsed seconds for a named phase.
func (r *Recorder) Duration(measurement string, took time.Duration) {
	if r == nil {
		return
	}
	r.points = append(r.points, influxdb2.NewPoint(measurement,
		nil, map[string]interface{}{"duration": took.Seconds()}, time.Now()))
}

// Flush writes all accumulated points and clears the buffer.
func (r *Recorder) Flush(ctx context.Context) error {
	if r == nil || len(r.points) == 0 {
		return nil
	}
	writeAPI := r.client.WriteAPIBlocking(r.org, r.bucket)
	err := writeAPI.WritePoint(ctx, r.points...)
	r.points = nil
	if err != nil {
		return fmt.Errorf("writing metrics points: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.client.Close()
}
