package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itstheanurag/pyjudge/internal/server"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the evaluation HTTP service and worker pool",
		Action: func(ctx context.Context, c *cli.Command) error {
			conf, logger, err := loadConfig()
			if err != nil {
				return err
			}

			srv, err := server.New(conf, &logger)
			if err != nil {
				return err
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Fatal().Err(err).Msg("server crashed")
				}
			}()

			// graceful shutdown
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := srv.Stop(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("graceful shutdown failed")
			}
			return nil
		},
	}
}
