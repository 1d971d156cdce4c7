package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/daracheol/voxscribe/internal/config"
	"github.com/daracheol/voxscribe/internal/domain"
	"github.com/daracheol/voxscribe/internal/media"
	"github.com/daracheol/voxscribe/internal/messenger"
	"github.com/daracheol/voxscribe/internal/platform/mongodb"
	"github.com/daracheol/voxscribe/internal/platform/objstore"
	"github.com/daracheol/voxscribe/internal/task"
	"github.com/daracheol/voxscribe/internal/transcription"
	"github.com/daracheol/voxscribe/internal/translation"
)

// workerApplication bundles the worker process dependencies: the queue
// server, the task processor, and the connections they share.
type workerApplication struct {
	config *config.Config
	logger *slog.Logger

	mongoClient *mongo.Client
	server      *asynq.Server
	mux         *asynq.ServeMux
}

// newWorkerApplication wires the worker process. Like the web process it
// connects eagerly so a bad environment fails at startup.
func newWorkerApplication(ctx context.Context, cfg *config.Config) (*workerApplication, error) {
	log := slog.Default()

	mongoClient, err := mongodb.Connect(ctx, cfg.Database.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	db := mongoClient.Database(mongodb.DatabaseName)

	redisOpts, err := asynq.ParseRedisURI(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	userStore := mongodb.NewUserStore(db, log)
	transcriptionStore := mongodb.NewTranscriptionStore(db, log)

	messengerClient := messenger.NewClient(cfg.Messenger.PageAccessToken, log)

	transcriber := transcription.NewTranscriber(cfg.Transcription, log)
	translator := translation.New(cfg.Transcription.OpenAIAPIKey, log)
	corrector := transcription.NewCorrector(cfg.Transcription.OpenAIAPIKey, log)
	pipeline := media.NewProcessor(media.NewAudioProcessor(), transcriber, translator, corrector, log)
	downloader := media.NewDownloader(domain.MaxMediaFileSize)

	// objstore.New returns a nil client when archival is not configured.
	// Only a non-nil client may be handed to the processor, otherwise the
	// nil check inside it would see a non-nil interface.
	var archive task.MediaArchiver
	objClient, err := objstore.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up object storage: %w", err)
	}
	if objClient != nil {
		archive = objClient
	}

	processor := task.NewProcessor(
		downloader,
		pipeline,
		archive,
		userStore,
		transcriptionStore,
		messengerClient,
		log,
	)

	server := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: task.WorkerConcurrency,
		RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
			return task.RetryDelay
		},
		Logger: newAsynqLogger(log),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(task.TypeTranscriptionProcess, processor.ProcessTask)

	return &workerApplication{
		config:      cfg,
		logger:      log,
		mongoClient: mongoClient,
		server:      server,
		mux:         mux,
	}, nil
}

// run starts the queue server and blocks until SIGINT or SIGTERM. Run
// handles the signals itself and waits for the in-flight task before
// returning.
func (app *workerApplication) run() error {
	app.logger.Info("Worker starting", "task_types", []string{task.TypeTranscriptionProcess})

	err := app.server.Run(app.mux)

	app.cleanup()
	return err
}

// cleanup releases connections after the queue server has stopped.
func (app *workerApplication) cleanup() {
	if err := app.mongoClient.Disconnect(context.Background()); err != nil {
		app.logger.Error("failed to disconnect from mongodb", "error", err)
	}
}
