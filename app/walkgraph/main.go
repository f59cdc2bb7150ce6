// walkgraph builds the stop-to-stop walking duration graph consumed by the
// journey service. For every stop it finds nearby stops through a spatial
// bucket index and prices the walks with the pedestrian routing engine,
// writing the symmetric result to walking_distances.json.
package main

import (
	"fmt"
	logger "log"
	"os"

	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"
	"github.com/openmobilitytools/journeycast/business/data/stops"
	"github.com/openmobilitytools/journeycast/foundation/database"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "WALKGRAPH : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
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
		Osrm struct {
			Url            string `conf:"default:http://localhost:5001"`
			TimeoutSeconds int    `conf:"default:10"`
			TableChunkSize int    `conf:"default:1000"`
		}
		Output struct {
			File          string  `conf:"default:walking_distances.json"`
			RadiusDegrees float64 `conf:"default:0.009"`
			SaveInterval  int     `conf:"default:100"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Build walking duration graph between nearby stops"
	const prefix = "WALKGRAPH"
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

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

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
		err = db.Close()
		if err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()

	directory := stops.MakeDirectory(db)
	allStops, err := directory.All()
	if err != nil {
		return fmt.Errorf("loading stops: %w", err)
	}
	log.Printf("main: loaded %d stops", len(allStops))

	builder := makeGraphBuilder(log, graphBuilderConfig{
		osrmUrl:        cfg.Osrm.Url,
		timeoutSeconds: cfg.Osrm.TimeoutSeconds,
		tableChunkSize: cfg.Osrm.TableChunkSize,
		outputFile:     cfg.Output.File,
		radiusDegrees:  cfg.Output.RadiusDegrees,
		saveInterval:   cfg.Output.SaveInterval,
	})
	return builder.build(allStops)
}
