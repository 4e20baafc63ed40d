package api

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/travigo/tsiconverter/pkg/config"
	"github.com/travigo/tsiconverter/pkg/jobs"
	"github.com/travigo/tsiconverter/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the conversion web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen target for the web server, overrides the configuration",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if listen := c.String("listen"); listen != "" {
						cfg.Server.Listen = listen
					}

					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()

					orchestrator, err := jobs.NewFromConfig(ctx, cfg)
					if err != nil {
						return err
					}
					if err := orchestrator.Start(ctx); err != nil {
						return err
					}

					webApp := NewApp(orchestrator)

					go func() {
						<-ctx.Done()
						log.Info().Msg("Shutting down web api")

						if err := webApp.Shutdown(); err != nil {
							log.Error().Err(err).Msg("Failed to shut down web server")
						}
					}()

					log.Info().Str("listen", cfg.Server.Listen).Msg("Starting web api")
					err = webApp.Listen(cfg.Server.Listen)

					orchestrator.Stop()
					if cfg.UsesRedis() {
						if err := redis_client.Close(); err != nil {
							log.Error().Err(err).Msg("Failed to close redis connection")
						}
					}

					if err != nil && ctx.Err() == nil {
						return err
					}

					return nil
				},
			},
		},
	}
}
