package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowbaker/automations/internal/initialization"
	"github.com/flowbaker/automations/internal/version"
)

func NewServeCommand(opts *rootOptions) *cobra.Command {
	var noWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, polling engines and run worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, noWorker)
		},
	}

	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "Do not execute queued runs in this process")

	return cmd
}

func runServe(opts *rootOptions, noWorker bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().Str("version", version.GetVersion()).Msg("Starting automations server")

	container, err := initialization.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Shutdown()

	if err := container.Start(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup

	if !noWorker {
		wg.Add(1)
		go func() {
			defer wg.Done()
			container.Worker.Run(ctx)
		}()
	}

	log.Info().Str("address", cfg.HTTP.Address).Msg("HTTP server listening")

	if err := container.App.Listen(cfg.HTTP.Address, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("HTTP server failed")
	}

	cancel()
	wg.Wait()

	log.Info().Msg("Automations server stopped")
	return nil
}
