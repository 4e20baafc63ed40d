package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/tsiconverter/pkg/api"
	"github.com/travigo/tsiconverter/pkg/jobs"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("TSICONV_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("TSICONV_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "tsiconverter",
		Description: "Converts JSON transport documents into EDIFACT, GTFS and GTFS-Realtime",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML configuration file, environment variables override it",
				EnvVars: []string{"TSICONV_CONFIG"},
			},
		},

		Commands: append([]*cli.Command{
			api.RegisterCLI(),
		}, jobs.RegisterCLI()...),
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
