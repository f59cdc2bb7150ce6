package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/openmobilitytools/journeycast/business/data/statictt"
	"github.com/openmobilitytools/journeycast/business/data/stops"
	"github.com/openmobilitytools/journeycast/business/timetable"
	"github.com/openmobilitytools/journeycast/foundation/metrics"
)

// Config holds the upstream feed credentials and refresh cadence.
type Config struct {
	ArrivalsURL        string
	ArrivalsAPIKey     string
	BoardsURL          string
	BoardsAPIKey       string
	RefreshSeconds     int
	FeedTimeoutSeconds int
	RailWorkers        int
}

// Refresher rebuilds the fused timetable from all mode ingestors and
// publishes the result as an immutable snapshot each cycle.
type Refresher struct {
	log           *log.Logger
	tube          *tubeIngestor
	bus           *busIngestor
	tram          *tramIngestor
	rail          *railIngestor
	publisher     *timetable.Publisher
	recorder      *metrics.Recorder
	summary       *cycleSummaryPublisher
	warmPlatforms map[string]string
	loopDuration  time.Duration
}

// MakeRefresher wires live feed clients and per-mode ingestors from the
// configuration and static timetables. warmPlatforms seeds every cycle's
// builder with platforms loaded from disk, so a platform the live feeds have
// not mentioned yet still resolves.
func MakeRefresher(log *log.Logger,
	cfg Config,
	directory *stops.Directory,
	tubeTT statictt.TubeTimetable,
	busTT statictt.BusTimetable,
	tramTT statictt.TramTimetable,
	warmPlatforms map[string]string,
	publisher *timetable.Publisher,
	recorder *metrics.Recorder,
	natsConnection *nats.Conn) *Refresher {

	timeout := time.Duration(cfg.FeedTimeoutSeconds) * time.Second
	arrivals := makeArrivalsClient(cfg.ArrivalsURL, cfg.ArrivalsAPIKey, timeout)
	boards := makeBoardsClient(cfg.BoardsURL, cfg.BoardsAPIKey, timeout)

	refreshSeconds := cfg.RefreshSeconds
	if refreshSeconds <= 0 {
		refreshSeconds = 30
	}

	return &Refresher{
		log:           log,
		tube:          makeTubeIngestor(log, arrivals, tubeTT, directory),
		bus:           makeBusIngestor(log, arrivals, busTT),
		tram:          makeTramIngestor(log, arrivals, tramTT),
		rail:          makeRailIngestor(log, boards, directory, cfg.RailWorkers),
		publisher:     publisher,
		recorder:      recorder,
		summary:       makeCycleSummaryPublisher(log, natsConnection),
		warmPlatforms: warmPlatforms,
		loopDuration:  time.Duration(refreshSeconds) * time.Second,
	}
}

// RunRefreshLoop rebuilds and publishes the timetable until a shutdown signal
// arrives. The loop subtracts the time a cycle took from the sleep so cycles
// start on a steady cadence.
func (r *Refresher) RunRefreshLoop(shutdownSignal chan os.Signal) error {
	loopDuration := r.loopDuration

	sleepChan := make(chan bool)
	sleep := time.Duration(0) //run the first cycle immediately

	for {

		go func() {
			time.Sleep(sleep)
			sleepChan <- true
		}()

		select {
		case <-shutdownSignal:
			r.log.Printf("Exiting refresh loop on shutdown signal")
			return nil
		case <-sleepChan:
			break
		}

		start := time.Now()

		r.RunCycle(start)

		workTook := time.Now().Sub(start)
		r.log.Printf("refresh cycle took %s\n", fmtDuration(workTook))

		// if the cycle took longer than the cadence don't sleep at all
		if workTook >= loopDuration {
			sleep = time.Duration(0)
		} else {
			sleep = loopDuration - workTook
		}

	}
}

// RunCycle performs one full rebuild: every mode ingests into a fresh
// builder, the snapshot is published, and metrics are flushed.
func (r *Refresher) RunCycle(now time.Time) {
	builder := timetable.MakeBuilder(r.warmPlatforms)

	tubeStart := time.Now()
	r.tube.ingest(builder, now, r.recorder)
	r.recorder.Duration("tube_reload", time.Now().Sub(tubeStart))

	busStart := time.Now()
	r.bus.ingest(builder, now, r.recorder)
	r.tram.ingest(builder, now, r.recorder)
	r.recorder.Duration("bus_reload", time.Now().Sub(busStart))

	railStart := time.Now()
	r.rail.ingest(builder, now, r.recorder)
	r.recorder.Duration("rail_reload", time.Now().Sub(railStart))

	snapshot := builder.Snapshot(now)
	r.publisher.Publish(snapshot)

	r.summary.publish(snapshot)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.recorder.Flush(ctx); err != nil {
		r.log.Printf("error flushing metrics: %v", err)
	}
}

// cycleSummary is the NATS message describing one completed refresh cycle.
type cycleSummary struct {
	BuiltAt   time.Time `json:"builtAt"`
	TripCount int       `json:"tripCount"`
}

// cycleSummaryPublisher announces completed refresh cycles over NATS for
// downstream consumers. A nil connection disables publishing.
type cycleSummaryPublisher struct {
	log            *log.Logger
	natsConnection *nats.Conn
}

func makeCycleSummaryPublisher(log *log.Logger, natsConnection *nats.Conn) *cycleSummaryPublisher {
	return &cycleSummaryPublisher{log: log, natsConnection: natsConnection}
}

func (c *cycleSummaryPublisher) publish(snapshot *timetable.Snapshot) {
	if c.natsConnection == nil {
		return
	}
	summary := cycleSummary{BuiltAt: snapshot.BuiltAt, TripCount: snapshot.TripCount()}
	jsonData, err := json.Marshal(summary)
	if err != nil {
		c.log.Printf("failed to marshal cycle summary, error:%v", err)
		return
	}
	err = c.natsConnection.Publish("journeycast.cycle", jsonData)
	if err != nil {
		c.log.Printf("failed to send cycle summary, error:%v", err)
	}
}

// fmtDuration returns a string presentation of time.Duration for logging
func fmtDuration(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	mill := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d.%d", h, m, mill)
}
