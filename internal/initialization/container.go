package initialization

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/flowbaker/automations/internal/auth"
	"github.com/flowbaker/automations/internal/config"
	"github.com/flowbaker/automations/internal/controllers"
	"github.com/flowbaker/automations/internal/crypto"
	"github.com/flowbaker/automations/internal/durable"
	"github.com/flowbaker/automations/internal/server"
	"github.com/flowbaker/automations/internal/store/postgres"
	"github.com/flowbaker/automations/pkg/dispatcher"
	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/ingestion"
	"github.com/flowbaker/automations/pkg/integrations/telegram"
	"github.com/flowbaker/automations/pkg/lifecycle"
	"github.com/flowbaker/automations/pkg/polling"
)

const TokenIssuer = "automations"

// Container holds the fully wired server.
type Container struct {
	Config *config.Config

	Pool  *pgxpool.Pool
	Store *postgres.Store
	Redis *redis.Client

	Providers  Providers
	Engines    []*polling.Engine
	Dispatcher *dispatcher.Dispatcher
	Lifecycle  *lifecycle.Manager
	Receiver   *ingestion.Receiver
	Worker     *durable.Worker
	Tokens     *auth.TokenService
	App        *fiber.App
}

// ConnectStore opens the Postgres pool and wraps it in a store that encrypts
// tokens when an encryption key is configured.
func ConnectStore(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, *postgres.Store, error) {
	pool, err := postgres.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, err
	}

	deps := postgres.StoreDependencies{Pool: pool}

	if cfg.Credentials.EncryptionKey != "" {
		cipher, err := crypto.NewTokenCipher(cfg.Credentials.EncryptionKey)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to create token cipher: %w", err)
		}

		deps.Cipher = cipher
	} else {
		log.Warn().Msg("No credential encryption key configured, tokens are stored in plain text")
	}

	return pool, postgres.NewStore(deps), nil
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	pool, store, err := ConnectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	registrations := domain.NewInMemoryRegistrationStore()

	providers := RegisterProviders(RegisterProvidersParams{
		Config:        cfg,
		Registrations: registrations,
		Validator:     domain.NewSchemaValidator(),
		Credentials:   store,
	})

	durablePrefix := cfg.Redis.KeyPrefix + ":durable"

	runner := durable.NewRedisRunner(durable.RedisRunnerDependencies{
		Client:    redisClient,
		KeyPrefix: durablePrefix,
		Retention: cfg.Durable.Retention,
	})

	workflowDispatcher := dispatcher.New(dispatcher.DispatcherDependencies{
		Workflows:   store,
		Credentials: store,
		Executions:  store,
		Actions:     providers.Actions,
		Runner:      runner,
	})

	worker := durable.NewWorker(durable.WorkerDependencies{
		Client:    redisClient,
		KeyPrefix: durablePrefix,
		Retention: cfg.Durable.Retention,
		Executor: durable.NewActionRunner(durable.ActionRunnerDependencies{
			Executors:      providers.Executors,
			Credentials:    store,
			Authenticators: providers.Authenticators,
		}),
		Observer: workflowDispatcher,
		Policy: durable.RetryPolicy{
			MaxAttempts:    cfg.Durable.MaxAttempts,
			InitialBackoff: cfg.Durable.InitialBackoff,
			RunTimeout:     cfg.Durable.RunTimeout,
		},
	})

	engines := make([]*polling.Engine, 0, len(providers.Polling))
	reconcilers := map[domain.IntegrationType]ingestion.CredentialReconciler{}

	for _, provider := range providers.Polling {
		engine := polling.NewEngine(polling.EngineDependencies{
			Provider:      provider.Type,
			Interval:      cfg.Polling.IntervalFor(string(provider.Type)),
			Registrations: registrations,
			Workflows:     store,
			Credentials:   store,
			Authenticator: provider.Authenticator,
			Dispatcher:    workflowDispatcher,
			Checkers:      provider.Checkers,
		})

		engines = append(engines, engine)
		reconcilers[provider.Type] = engine
	}

	receiver := ingestion.NewReceiver(ingestion.ReceiverDependencies{
		Triggers:     providers.Triggers,
		Dispatcher:   workflowDispatcher,
		Deduplicator: ingestion.NewRedisDeduplicator(redisClient, cfg.Redis.KeyPrefix+":events", cfg.Webhooks.DedupeTTL),
		Credentials:  store,
		Normalizers: map[string]ingestion.Normalizer{
			telegram.NewMessageTrigger.Key(): telegram.NormalizePush,
		},
		Reconcilers: reconcilers,
	})

	manager := lifecycle.NewManager(lifecycle.ManagerDependencies{
		Workflows: store,
		Triggers:  providers.Triggers,
		Actions:   providers.Actions,
		Executor:  workflowDispatcher,
	})

	var tokens *auth.TokenService
	if cfg.Webhooks.JWTSecret != "" {
		tokens, err = auth.NewTokenService(cfg.Webhooks.JWTSecret, TokenIssuer)
		if err != nil {
			pool.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("failed to create token service: %w", err)
		}
	} else {
		log.Warn().Msg("No JWT secret configured, the workflow API and push webhooks are disabled")
	}

	serverDeps := server.HTTPServerDependencies{
		CatalogController: controllers.NewCatalogController(controllers.CatalogControllerDependencies{
			Triggers: providers.Triggers,
			Actions:  providers.Actions,
		}),
		WorkflowController: controllers.NewWorkflowController(controllers.WorkflowControllerDependencies{
			Lifecycle:  manager,
			Dispatcher: workflowDispatcher,
		}),
		WebhookController: controllers.NewWebhookController(controllers.WebhookControllerDependencies{
			Receiver:       receiver,
			GmailPushToken: cfg.Gmail.PushToken,
		}),
	}

	if tokens != nil {
		serverDeps.TokenVerifier = tokens
	}

	return &Container{
		Config:     cfg,
		Pool:       pool,
		Store:      store,
		Redis:      redisClient,
		Providers:  providers,
		Engines:    engines,
		Dispatcher: workflowDispatcher,
		Lifecycle:  manager,
		Receiver:   receiver,
		Worker:     worker,
		Tokens:     tokens,
		App:        server.NewHTTPServer(serverDeps),
	}, nil
}

// Start restores trigger registrations of active workflows, then starts the
// polling engines and background loops. Runs are picked up by Worker, which
// the caller runs on its own goroutine.
func (c *Container) Start(ctx context.Context) error {
	if _, err := c.Lifecycle.ReloadActiveWorkflows(ctx); err != nil {
		return fmt.Errorf("failed to reload active workflows: %w", err)
	}

	for _, engine := range c.Engines {
		engine.Start(ctx)
	}

	for _, loop := range c.Providers.Loops {
		loop.Start(ctx)
	}

	return nil
}

// Shutdown stops the schedulers, waits for running passes and closes the
// connections.
func (c *Container) Shutdown() {
	for _, engine := range c.Engines {
		<-engine.Stop().Done()
	}

	for _, loop := range c.Providers.Loops {
		<-loop.Stop().Done()
	}

	if err := c.Redis.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close redis client")
	}

	c.Pool.Close()
}
