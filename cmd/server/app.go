package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/daracheol/voxscribe/internal/config"
	"github.com/daracheol/voxscribe/internal/events"
	"github.com/daracheol/voxscribe/internal/messenger"
	"github.com/daracheol/voxscribe/internal/payment"
	"github.com/daracheol/voxscribe/internal/platform/mongodb"
	"github.com/daracheol/voxscribe/internal/platform/objstore"
	"github.com/daracheol/voxscribe/internal/service"
	"github.com/daracheol/voxscribe/internal/service/auth"
	"github.com/daracheol/voxscribe/internal/task"
)

// application bundles the web process dependencies: config, stores, the
// queue client, the bot service, and everything the router needs.
type application struct {
	config *config.Config
	logger *slog.Logger

	mongoClient *mongo.Client
	redisClient *redis.Client
	asynqClient *asynq.Client

	userStore          *mongodb.UserStore
	transcriptionStore *mongodb.TranscriptionStore
	statsStore         *mongodb.StatsStore
	objClient          *objstore.Client

	messengerClient *messenger.Client
	providers       *payment.Providers
	tokenService    auth.TokenService
	botService      *service.BotService
}

// newApplication wires the web process. Connections are established
// eagerly so a bad environment fails at startup, not on first request.
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	log := slog.Default()

	mongoClient, err := mongodb.Connect(ctx, cfg.Database.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	db := mongoClient.Database(mongodb.DatabaseName)

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	asynqOpts, err := asynq.ParseRedisURI(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL for queue client: %w", err)
	}
	asynqClient := asynq.NewClient(asynqOpts)

	providers, err := payment.New(cfg.Payment, cfg.Server, log)
	if err != nil {
		return nil, err
	}

	// Nil when no admin secret is configured; the router then leaves the
	// admin routes unregistered.
	var tokenService auth.TokenService
	if cfg.Admin.Enabled() {
		tokenService, err = auth.NewTokenService(cfg.Admin)
		if err != nil {
			return nil, fmt.Errorf("failed to create token service: %w", err)
		}
	}

	userStore := mongodb.NewUserStore(db, log)
	transcriptionStore := mongodb.NewTranscriptionStore(db, log)
	statsStore := mongodb.NewStatsStore(db, log)

	// Nil when archival is not configured. The admin handler tolerates
	// that, it only needs the client to purge archived media on erasure.
	objClient, err := objstore.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up object storage: %w", err)
	}

	messengerClient := messenger.NewClient(cfg.Messenger.PageAccessToken, log)

	// The bot emits task request events; the enqueuer turns them into
	// queue submissions.
	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(task.NewEnqueuer(asynqClient, log))

	botService := service.NewBotService(userStore, emitter, messengerClient, providers.Active, log)

	return &application{
		config:             cfg,
		logger:             log,
		mongoClient:        mongoClient,
		redisClient:        redisClient,
		asynqClient:        asynqClient,
		userStore:          userStore,
		transcriptionStore: transcriptionStore,
		statsStore:         statsStore,
		objClient:          objClient,
		messengerClient:    messengerClient,
		providers:          providers,
		tokenService:       tokenService,
		botService:         botService,
	}, nil
}

// cleanup releases connections during shutdown.
func (app *application) cleanup() {
	ctx := context.Background()
	if err := app.asynqClient.Close(); err != nil {
		app.logger.Error("failed to close queue client", "error", err)
	}
	if err := app.redisClient.Close(); err != nil {
		app.logger.Error("failed to close redis client", "error", err)
	}
	if err := app.mongoClient.Disconnect(ctx); err != nil {
		app.logger.Error("failed to disconnect from mongodb", "error", err)
	}
}
