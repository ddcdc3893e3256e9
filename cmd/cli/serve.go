package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowbaker/tgbridge/internal/initialization"
	"github.com/flowbaker/tgbridge/internal/server"
	"github.com/flowbaker/tgbridge/internal/version"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge HTTP server",
		Long:  `Start the HTTP server that registers webhooks and resolves incoming Telegram updates to flows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServe(cmd, migrate)
		},
	}

	cmd.Flags().Bool("migrate", false, "Apply the registry schema before serving")

	return cmd
}

func runServe(cmd *cobra.Command, migrate bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	config, err := initialization.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	applyLogLevel(cmd, config.LogLevel)

	log.Info().
		Str("version", version.GetVersion()).
		Str("registry_backend", config.RegistryBackend).
		Str("callback_url", config.CallbackURL()).
		Msg("Starting tgbridge")

	if migrate {
		if err := initialization.MigrateRegistry(ctx, config); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate registry")
		}
	}

	deps, err := initialization.BuildBridgeDependencies(ctx, config, initialization.BridgeDependencyOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build bridge dependencies")
	}
	defer deps.Close()

	app := server.NewHTTPServer(server.HTTPServerDependencies{
		ListenerController: deps.ListenerController,
		Verifier:           deps.Verifier,
	})

	log.Info().Str("address", config.HTTPAddress).Msg("HTTP server listening")

	if err := app.Listen(config.HTTPAddress, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}

	log.Info().Msg("tgbridge stopped")
	return nil
}
