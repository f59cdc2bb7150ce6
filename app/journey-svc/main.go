package main

import (
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openmobilitytools/journeycast/app/journey-svc/ingest"
	"github.com/openmobilitytools/journeycast/app/journey-svc/journeysvc"
	"github.com/openmobilitytools/journeycast/business/data/statictt"
	"github.com/openmobilitytools/journeycast/business/data/stops"
	"github.com/openmobilitytools/journeycast/business/data/walking"
	"github.com/openmobilitytools/journeycast/business/timetable"
	"github.com/openmobilitytools/journeycast/foundation/database"
	"github.com/openmobilitytools/journeycast/foundation/metrics"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "JOURNEY_SVC : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	// Optional .env file carries feed API keys during development.
	_ = godotenv.Load()

	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			Path       string `conf:"default:stops.db"`
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		Feeds struct {
			ArrivalsUrl        string `conf:"default:https://api.tfl.gov.uk"`
			ArrivalsApiKey     string `conf:"noprint"`
			BoardsUrl          string `conf:"default:https://api1.raildata.org.uk/1010-live-arrival-and-departure-boards---staff-version1_0/LDBSVWS/api/20220120"`
			BoardsApiKey       string `conf:"noprint"`
			RefreshSeconds     int    `conf:"default:30"`
			FeedTimeoutSeconds int    `conf:"default:30"`
			RailWorkers        int    `conf:"default:8"`
		}
		Files struct {
			WalkingDistances string `conf:"default:walking_distances.json"`
			Linestrings      string `conf:"default:linestrings.json"`
			Platforms        string `conf:"default:platforms.json"`
			TubeTimetable    string `conf:"default:tube_timetable.json"`
			BusTimetable     string `conf:"default:bus_timetable.json"`
			TramTimetable    string `conf:"default:tram_timetable.json"`
		}
		Web struct {
			Port           int     `conf:"default:4225"`
			OsrmUrl        string  `conf:"default:http://osrm:5000"`
			OsrmTimeoutMs  int     `conf:"default:2000"`
			MaxWalkSeconds float64 `conf:"default:1800"`
		}
		Metrics struct {
			Url    string `conf:"default:http://localhost:8086"`
			Token  string `conf:"noprint"`
			Org    string `conf:"default:journeycast"`
			Bucket string `conf:"default:journeycast"`
		}
		NATS struct {
			Url string
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Multi-modal journey planner over live-fused timetables"
	const prefix = "JOURNEY"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// Legacy environment names used by existing deployments.
	if cfg.Feeds.ArrivalsApiKey == "" {
		cfg.Feeds.ArrivalsApiKey = os.Getenv("TFL_API_KEY")
	}
	if cfg.Feeds.BoardsApiKey == "" {
		cfg.Feeds.BoardsApiKey = os.Getenv("RAIL_MARKETPLACE_API_KEY_1")
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	// =========================================================================
	// Start Database

	log.Println("main: Initializing database support")

	db, err := database.Open(database.Config{
		Path:       cfg.DB.Path,
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Println("main: Database Stopping")
		err = db.Close()
		if err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()

	directory := stops.MakeDirectory(db)

	// =========================================================================
	// Load static data

	log.Println("main: Loading static timetables and walking graph")

	tubeTT, err := statictt.LoadTubeTimetable(cfg.Files.TubeTimetable)
	if err != nil {
		return fmt.Errorf("loading tube timetable: %w", err)
	}
	busTT, err := statictt.LoadBusTimetable(cfg.Files.BusTimetable)
	if err != nil {
		return fmt.Errorf("loading bus timetable: %w", err)
	}
	tramTT, err := statictt.LoadTramTimetable(cfg.Files.TramTimetable)
	if err != nil {
		return fmt.Errorf("loading tram timetable: %w", err)
	}
	walkingGraph, err := walking.LoadFile(cfg.Files.WalkingDistances)
	if err != nil {
		return fmt.Errorf("loading walking distances: %w", err)
	}
	warmPlatforms, err := timetable.LoadPlatforms(cfg.Files.Platforms)
	if err != nil {
		return fmt.Errorf("loading platforms: %w", err)
	}
	linestrings, err := journeysvc.LoadLinestrings(cfg.Files.Linestrings)
	if err != nil {
		return fmt.Errorf("loading linestrings: %w", err)
	}
	log.Printf("main: loaded %d walking edges, %d linestrings", walkingGraph.Size(), len(linestrings))

	// =========================================================================
	// Metrics and NATS

	recorder := metrics.MakeRecorder(metrics.Config{
		URL:    cfg.Metrics.Url,
		Token:  cfg.Metrics.Token,
		Org:    cfg.Metrics.Org,
		Bucket: cfg.Metrics.Bucket,
	})
	defer recorder.Close()

	var natsConnection *nats.Conn
	if cfg.NATS.Url != "" {
		natsConnection, err = nats.Connect(cfg.NATS.Url)
		if err != nil {
			return fmt.Errorf("connecting to nats at %s: %w", cfg.NATS.Url, err)
		}
		defer natsConnection.Close()
	}

	// =========================================================================
	// Wire refresh loop and web service

	publisher := timetable.MakePublisher(timetable.MakeBuilder(warmPlatforms).Snapshot(time.Now()))

	refresher := ingest.MakeRefresher(log, ingest.Config{
		ArrivalsURL:        cfg.Feeds.ArrivalsUrl,
		ArrivalsAPIKey:     cfg.Feeds.ArrivalsApiKey,
		BoardsURL:          cfg.Feeds.BoardsUrl,
		BoardsAPIKey:       cfg.Feeds.BoardsApiKey,
		RefreshSeconds:     cfg.Feeds.RefreshSeconds,
		FeedTimeoutSeconds: cfg.Feeds.FeedTimeoutSeconds,
		RailWorkers:        cfg.Feeds.RailWorkers,
	}, directory, tubeTT, busTT, tramTT, warmPlatforms, publisher, recorder, natsConnection)

	walkRouter := journeysvc.MakeOsrmWalkRouter(cfg.Web.OsrmUrl,
		time.Duration(cfg.Web.OsrmTimeoutMs)*time.Millisecond)
	geometry := journeysvc.MakeGeometryService(log, walkRouter, linestrings)
	coordinator := journeysvc.MakeCoordinator(log, publisher, walkingGraph, directory,
		geometry, cfg.Web.MaxWalkSeconds)

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	webShutdown := make(chan bool)
	wg := sync.WaitGroup{}
	go journeysvc.RunWebService(log, &wg, coordinator, cfg.Web.Port, webShutdown)

	err = refresher.RunRefreshLoop(shutdown)

	close(webShutdown)
	wg.Wait()
	return err
}
