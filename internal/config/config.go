package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service and grading workers.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string

	StorageBackend string
	StorageURLTTL  time.Duration
	Minio          MinioConfig
	GCSBucket      string
	Cloudinary     CloudinaryConfig

	AIProvider   string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	QueueBackend     string
	QueueBuffer      int
	NATSURL          string
	NATSSubject      string
	RabbitMQURL      string
	RabbitMQExchange string
	RabbitMQQueue    string

	WorkerConcurrency int
	Grading           GradingConfig

	SweepInterval   time.Duration
	SweepStaleAfter time.Duration

	UploadRateLimit  int
	CORSAllowOrigins string
}

// MinioConfig describes an S3-compatible object store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CloudinaryConfig contains credentials required to talk to Cloudinary.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// GradingConfig tunes the grading pipeline timing.
type GradingConfig struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	CallTimeout  time.Duration
	StagingDir   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ARTDIR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Art Director API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("storage.backend", "minio")
	v.SetDefault("storage.url_ttl", "1h")
	v.SetDefault("minio.bucket", "submissions")
	v.SetDefault("cloudinary.folder", "artdirector/submissions")
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.buffer", 64)
	v.SetDefault("nats.subject", "artdirector.grading.jobs")
	v.SetDefault("rabbitmq.exchange", "artdirector.grading")
	v.SetDefault("rabbitmq.queue", "artdirector.grading.jobs")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("grading.poll_interval", "2s")
	v.SetDefault("grading.max_wait", "5m")
	v.SetDefault("grading.call_timeout", "2m")
	v.SetDefault("sweeper.interval", "1m")
	v.SetDefault("sweeper.stale_after", "15m")
	v.SetDefault("upload.rate_limit", 10)
	v.SetDefault("cors.allow_origins", "*")

	durations := map[string]time.Duration{}
	for _, key := range []string{"storage.url_ttl", "grading.poll_interval", "grading.max_wait", "grading.call_timeout", "sweeper.interval", "sweeper.stale_after"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", key)
		}
		durations[key] = parsed
	}

	stagingDir := v.GetString("grading.staging_dir")
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}

	cfg := Config{
		AppName:        v.GetString("app.name"),
		AppEnv:         v.GetString("app.env"),
		AppPort:        v.GetString("app.port"),
		DatabaseDriver: strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:    v.GetString("database.url"),
		RedisURL:       v.GetString("redis.url"),
		JWTSecret:      v.GetString("jwt.secret"),
		StorageBackend: strings.ToLower(v.GetString("storage.backend")),
		StorageURLTTL:  durations["storage.url_ttl"],
		Minio: MinioConfig{
			Endpoint:  v.GetString("minio.endpoint"),
			AccessKey: v.GetString("minio.access_key"),
			SecretKey: v.GetString("minio.secret_key"),
			Bucket:    v.GetString("minio.bucket"),
			UseSSL:    v.GetBool("minio.use_ssl"),
		},
		GCSBucket: v.GetString("gcs.bucket"),
		Cloudinary: CloudinaryConfig{
			CloudName: v.GetString("cloudinary.cloud_name"),
			APIKey:    v.GetString("cloudinary.api_key"),
			APISecret: v.GetString("cloudinary.api_secret"),
			Folder:    v.GetString("cloudinary.folder"),
		},
		AIProvider:        strings.ToLower(v.GetString("ai.provider")),
		GeminiAPIKey:      v.GetString("gemini.api_key"),
		GeminiModel:       v.GetString("gemini.model"),
		OpenAIAPIKey:      v.GetString("openai.api_key"),
		OpenAIModel:       v.GetString("openai.model"),
		QueueBackend:      strings.ToLower(v.GetString("queue.backend")),
		QueueBuffer:       v.GetInt("queue.buffer"),
		NATSURL:           v.GetString("nats.url"),
		NATSSubject:       v.GetString("nats.subject"),
		RabbitMQURL:       v.GetString("rabbitmq.url"),
		RabbitMQExchange:  v.GetString("rabbitmq.exchange"),
		RabbitMQQueue:     v.GetString("rabbitmq.queue"),
		WorkerConcurrency: v.GetInt("worker.concurrency"),
		Grading: GradingConfig{
			PollInterval: durations["grading.poll_interval"],
			MaxWait:      durations["grading.max_wait"],
			CallTimeout:  durations["grading.call_timeout"],
			StagingDir:   stagingDir,
		},
		SweepInterval:    durations["sweeper.interval"],
		SweepStaleAfter:  durations["sweeper.stale_after"],
		UploadRateLimit:  v.GetInt("upload.rate_limit"),
		CORSAllowOrigins: v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 4
	}

	if cfg.QueueBuffer <= 0 {
		cfg.QueueBuffer = 64
	}

	if cfg.UploadRateLimit <= 0 {
		cfg.UploadRateLimit = 10
	}

	return cfg, nil
}
