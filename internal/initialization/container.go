package initialization

import (
	"context"
	"fmt"

	"github.com/flowbaker/tgbridge/internal/auth"
	"github.com/flowbaker/tgbridge/internal/controllers"
	"github.com/flowbaker/tgbridge/internal/domain"
	"github.com/flowbaker/tgbridge/internal/managers"
	"github.com/flowbaker/tgbridge/internal/middlewares"
	"github.com/flowbaker/tgbridge/internal/registry/postgres"
	registryredis "github.com/flowbaker/tgbridge/internal/registry/redis"
	"github.com/flowbaker/tgbridge/internal/secrettoken"
	"github.com/flowbaker/tgbridge/pkg/clients/telegram"

	"github.com/rs/zerolog/log"
)

type BridgeDependencies struct {
	ListenerController *controllers.ListenerController
	Verifier           middlewares.SignatureVerifier

	closeRegistry func()
}

// Close releases the registry connection.
func (d *BridgeDependencies) Close() {
	if d.closeRegistry != nil {
		d.closeRegistry()
	}
}

// BridgeDependencyOptions lets callers swap the outer edges of the graph, mostly in tests.
type BridgeDependencyOptions struct {
	Registry domain.ListenerRegistry
	Platform domain.BotPlatform
}

func BuildBridgeDependencies(ctx context.Context, config *Config, opts BridgeDependencyOptions) (*BridgeDependencies, error) {
	log.Info().Msg("Building bridge dependencies")

	cipher, err := secrettoken.NewCipherFromHex(config.StateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid state key: %w", err)
	}

	sealer := secrettoken.NewSealer(cipher)

	deps := &BridgeDependencies{}

	registry := opts.Registry
	if registry == nil {
		registry, deps.closeRegistry, err = OpenRegistry(ctx, config)
		if err != nil {
			return nil, err
		}
	}

	platform := opts.Platform
	if platform == nil {
		platform = telegram.NewClient(
			telegram.WithAPIEndpoint(config.TelegramAPIEndpoint),
			telegram.WithTimeout(config.TelegramTimeout),
		)
	}

	if config.APISigningPublicKey != "" {
		verifier, err := auth.NewRequestVerifier(config.APISigningPublicKey)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("invalid API signing public key: %w", err)
		}

		deps.Verifier = verifier
	} else {
		log.Warn().Msg("API_SIGNING_PUBLIC_KEY not set, management routes accept unsigned requests")
	}

	deps.ListenerController = controllers.NewListenerController(controllers.ListenerControllerDependencies{
		WebhookRegistrar: managers.NewWebhookRegistrar(managers.WebhookRegistrarDependencies{
			Registry:    registry,
			Platform:    platform,
			Sealer:      sealer,
			CallbackURL: config.CallbackURL(),
		}),
		EventResolver: managers.NewEventResolver(managers.EventResolverDependencies{
			Registry: registry,
			Sealer:   sealer,
		}),
		ConnectedBotsQuery: managers.NewConnectedBotsQuery(managers.ConnectedBotsQueryDependencies{
			Registry: registry,
			Platform: platform,
		}),
	})

	log.Info().Msg("Bridge dependencies ready")

	return deps, nil
}

// OpenRegistry connects the configured registry backend. The returned func closes it.
func OpenRegistry(ctx context.Context, config *Config) (domain.ListenerRegistry, func(), error) {
	switch config.RegistryBackend {
	case RegistryBackendPostgres:
		pool, err := postgres.Connect(ctx, config.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		log.Info().Msg("Connected to postgres listener registry")

		return postgres.NewListenerRegistry(pool), pool.Close, nil
	case RegistryBackendRedis:
		client, err := registryredis.Connect(ctx, config.RedisURL)
		if err != nil {
			return nil, nil, err
		}

		log.Info().Str("key_prefix", config.RedisKeyPrefix).Msg("Connected to redis listener registry")

		registry := registryredis.NewListenerRegistry(registryredis.ListenerRegistryDependencies{
			Client:    client,
			KeyPrefix: config.RedisKeyPrefix,
		})

		return registry, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q", config.RegistryBackend)
	}
}

// MigrateRegistry prepares the backend's storage. Redis needs no schema.
func MigrateRegistry(ctx context.Context, config *Config) error {
	if config.RegistryBackend != RegistryBackendPostgres {
		log.Info().Str("registry_backend", config.RegistryBackend).Msg("Registry backend has no schema to migrate")
		return nil
	}

	pool, err := postgres.Connect(ctx, config.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}

	log.Info().Msg("Listener schema is up to date")

	return nil
}
