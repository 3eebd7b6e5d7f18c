package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/artdirector-api/internal/config"
	"github.com/noah-isme/artdirector-api/internal/database"
	"github.com/noah-isme/artdirector-api/internal/grading"
	"github.com/noah-isme/artdirector-api/internal/handler"
	"github.com/noah-isme/artdirector-api/internal/queue"
	"github.com/noah-isme/artdirector-api/internal/repository"
	"github.com/noah-isme/artdirector-api/internal/service"
	"github.com/noah-isme/artdirector-api/pkg/ai"
	"github.com/noah-isme/artdirector-api/pkg/storage"
)

const statusChannelBase = "artdirector"

type application struct {
	sweeper           *grading.Sweeper
	pool              *queue.Pool
	submissionHandler *handler.SubmissionHandler
	userHandler       *handler.UserHandler
	healthProbes      map[string]handler.HealthProbe
	closers           []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// bootstrap wires the record store, status broker and sweeper. With full set it
// also builds the object store, job queue, inference provider, grading pipeline
// and HTTP handlers.
func bootstrap(ctx context.Context, cfg config.Config, logger zerolog.Logger, full bool) (*application, error) {
	app := &application{}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseDriver == "sqlite" {
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	app.closers = append(app.closers, func() { _ = sqlDB.Close() })
	app.healthProbes = map[string]handler.HealthProbe{"database": sqlDB.PingContext}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		app.Close()
		return nil, err
	}
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
		app.healthProbes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	broker := service.NewStatusBroker(redisClient, statusChannelBase, logger)
	broker.Start(ctx)

	submissionRepo := repository.NewSubmissionRepository(db)
	lifecycle := grading.NewLifecycle(submissionRepo, broker, logger)
	app.sweeper = grading.NewSweeper(lifecycle, cfg.SweepInterval, cfg.SweepStaleAfter, logger)

	if !full {
		return app, nil
	}

	store, err := newStore(ctx, cfg, logger, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	jobs, err := newQueue(cfg, logger, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	provider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	normalizer, err := grading.NewNormalizer()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("compile grade schema: %w", err)
	}

	stager := grading.NewStager(provider, grading.StagerConfig{
		PollInterval: cfg.Grading.PollInterval,
		MaxWait:      cfg.Grading.MaxWait,
		StagingDir:   cfg.Grading.StagingDir,
	}, logger)
	invoker := grading.NewInvoker(provider, cfg.Grading.CallTimeout, logger)
	pipeline := grading.NewPipeline(store, stager, invoker, normalizer, lifecycle, logger)

	app.pool = queue.NewPool(jobs, func(ctx context.Context, job queue.Job) error {
		return pipeline.Run(ctx, grading.Job{
			SubmissionID:  job.SubmissionID,
			StorageHandle: job.StorageHandle,
			ContentType:   job.ContentType,
		})
	}, queue.PoolConfig{Concurrency: cfg.WorkerConcurrency}, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())
	submissionService := service.NewSubmissionService(submissionRepo, store, jobs, lifecycle, redisClient, validate, logger, service.SubmissionServiceConfig{
		URLTTL: cfg.StorageURLTTL,
	})
	userService := service.NewUserService(repository.NewUserRepository(db), validate, logger)

	app.submissionHandler = handler.NewSubmissionHandler(submissionService, broker, logger, 0)
	app.userHandler = handler.NewUserHandler(userService, logger)

	return app, nil
}

func newStore(ctx context.Context, cfg config.Config, logger zerolog.Logger, app *application) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "minio":
		return storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		}, logger)
	case "gcs":
		store, err := storage.NewGCS(ctx, cfg.GCSBucket, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = store.Close() })
		return store, nil
	case "cloudinary":
		return storage.NewCloudinary(storage.CloudinaryConfig{
			CloudName: cfg.Cloudinary.CloudName,
			APIKey:    cfg.Cloudinary.APIKey,
			APISecret: cfg.Cloudinary.APISecret,
			Folder:    cfg.Cloudinary.Folder,
		}, logger)
	case "memory":
		logger.Warn().Msg("using in-memory object store; artifacts are lost on restart")
		return storage.NewMemory("memory://"), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

func newQueue(cfg config.Config, logger zerolog.Logger, app *application) (queue.Queue, error) {
	switch cfg.QueueBackend {
	case "memory":
		jobs := queue.NewMemory(cfg.QueueBuffer)
		app.closers = append(app.closers, func() { _ = jobs.Close() })
		return jobs, nil
	case "nats":
		conn, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		app.closers = append(app.closers, conn.Close)

		jobs, err := queue.NewNATS(conn, cfg.NATSSubject, cfg.QueueBuffer, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = jobs.Close() })
		return jobs, nil
	case "rabbitmq":
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		app.closers = append(app.closers, func() { _ = conn.Close() })

		jobs, err := queue.NewRabbitMQ(conn, queue.RabbitMQConfig{
			Exchange: cfg.RabbitMQExchange,
			Queue:    cfg.RabbitMQQueue,
			Prefetch: cfg.WorkerConcurrency,
		}, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = jobs.Close() })
		return jobs, nil
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.QueueBackend)
	}
}

func newProvider(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ai.Provider, error) {
	switch cfg.AIProvider {
	case "gemini":
		return ai.NewGemini(ctx, ai.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
			Logger: logger,
		})
	case "openai":
		return ai.NewOpenAI(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}
}
