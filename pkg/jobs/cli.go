package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/travigo/tsiconverter/pkg/config"
	"github.com/travigo/tsiconverter/pkg/formats"
	"github.com/travigo/tsiconverter/pkg/gtfs"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "convert",
			Usage: "Convert a JSON transport document in process",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "input",
					Usage:    "path of the JSON transport document",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "format",
					Usage:    "output format: edifact-skdupd, edifact-tsdupd, gtfs or gtfs-realtime",
					Required: true,
				},
				&cli.StringFlag{
					Name:  "output",
					Value: ".",
					Usage: "directory the artifact files are written to",
				},
				&cli.StringFlag{
					Name:  "charset",
					Usage: "charset of the input when not UTF-8",
				},
				&cli.StringSliceFlag{
					Name:  "option",
					Usage: "job option as key=value, can be repeated",
				},
			},
			Action: func(c *cli.Context) error {
				cfg, err := config.Load(c.String("config"))
				if err != nil {
					return err
				}
				cfg.Queue.Backend = config.BackendMemory
				cfg.Artifacts.Backend = config.BackendMemory

				target, err := formats.ParseTarget(c.String("format"))
				if err != nil {
					return err
				}

				options, err := parseOptionFlags(c.StringSlice("option"))
				if err != nil {
					return err
				}

				payload, err := os.ReadFile(c.String("input"))
				if err != nil {
					return err
				}

				ctx, cancel := context.WithCancel(c.Context)
				defer cancel()

				orchestrator, err := NewFromConfig(ctx, cfg)
				if err != nil {
					return err
				}
				if err := orchestrator.Start(ctx); err != nil {
					return err
				}
				defer orchestrator.Stop()

				jobID, err := orchestrator.Submit(ctx, Request{
					Payload: payload,
					Charset: c.String("charset"),
					Target:  target,
					Options: options,
				})
				if err != nil {
					return err
				}

				status, err := orchestrator.Wait(ctx, jobID, DefaultTenant)
				if err != nil {
					return err
				}

				for _, warning := range status.Warnings {
					log.Warn().Str("code", warning.Code).Str("location", warning.Location).Msg(warning.Message)
				}

				if status.State == StateFailed {
					for _, issue := range status.Failure.Errors {
						log.Error().Str("code", issue.Code).Str("location", issue.Location).Msg(issue.Message)
					}
					return cli.Exit(status.Failure.Error(), 1)
				}

				artifact, err := orchestrator.Artifact(ctx, jobID, DefaultTenant)
				if err != nil {
					return err
				}

				return writeArtifact(artifact, c.String("output"))
			},
		},
		{
			Name:  "validate",
			Usage: "Validate a document, an EDIFACT interchange or a GTFS feed",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "input",
					Usage:    "JSON transport document, .edi file, GTFS zip or directory",
					Required: true,
				},
				&cli.StringFlag{
					Name:  "format",
					Value: string(formats.ValidationJSONTransport),
					Usage: "rule set: json-transport, edifact or gtfs",
				},
				&cli.StringFlag{
					Name:  "level",
					Value: string(formats.LevelStandard),
					Usage: "standard or strict",
				},
				&cli.BoolFlag{
					Name:  "pretty",
					Usage: "dump the report instead of printing JSON",
				},
			},
			Action: func(c *cli.Context) error {
				cfg, err := config.Load(c.String("config"))
				if err != nil {
					return err
				}
				cfg.Queue.Backend = config.BackendMemory
				cfg.Artifacts.Backend = config.BackendMemory

				format, err := formats.ParseValidation(c.String("format"))
				if err != nil {
					return err
				}
				level, err := formats.ParseLevel(c.String("level"))
				if err != nil {
					return err
				}

				request, err := ReadValidationInput(c.String("input"), format)
				if err != nil {
					return err
				}
				request.Level = level

				orchestrator, err := NewFromConfig(c.Context, cfg)
				if err != nil {
					return err
				}

				report, err := orchestrator.Validate(c.Context, request)
				if err != nil {
					return err
				}

				if c.Bool("pretty") {
					pretty.Println(report)
				} else {
					encoded, err := json.MarshalIndent(report, "", "  ")
					if err != nil {
						return err
					}
					fmt.Println(string(encoded))
				}

				if !report.Valid() {
					return cli.Exit(fmt.Sprintf("%d validation errors", len(report.Errors)), 1)
				}

				return nil
			},
		},
	}
}

func parseOptionFlags(values []string) (Options, error) {
	options := Options{}

	for _, value := range values {
		key, optionValue, found := strings.Cut(value, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("option %q is not key=value", value)
		}
		options[key] = optionValue
	}

	return options, nil
}

// ReadValidationInput picks the kind of input from the format and file type
func ReadValidationInput(path string, format formats.Validation) (ValidationRequest, error) {
	request := ValidationRequest{Format: format}

	info, err := os.Stat(path)
	if err != nil {
		return request, err
	}

	if info.IsDir() {
		if format != formats.ValidationGTFS {
			return request, fmt.Errorf("a directory can only be validated as gtfs")
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return request, err
		}

		request.Files = map[string][]byte{}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".txt" {
				continue
			}
			data, err := os.ReadFile(filepath.Join(path, entry.Name()))
			if err != nil {
				return request, err
			}
			request.Files[entry.Name()] = data
		}

		return request, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return request, err
	}

	switch {
	case format == formats.ValidationGTFS && filepath.Ext(path) == ".zip":
		request.Files, err = gtfs.ReadZip(data)
	case format == formats.ValidationEdifact && filepath.Ext(path) == ".edi":
		request.Content = string(data)
	default:
		request.Payload = data
	}

	return request, err
}

func writeArtifact(artifact *Artifact, directory string) error {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return err
	}

	for _, name := range artifact.Names() {
		target := filepath.Join(directory, name)
		if err := os.WriteFile(target, artifact.Files[name], 0o644); err != nil {
			return err
		}

		log.Info().Str("file", target).Int("bytes", len(artifact.Files[name])).Msg("Wrote artifact file")
	}

	return nil
}
