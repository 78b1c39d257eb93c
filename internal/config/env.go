package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds configuration loaded from environment variables.
type EnvConfig struct {
	// DataDir is the data directory.
	// Env: DATA_DIR (default: ~/.semsearch)
	DataDir string `envconfig:"DATA_DIR"`

	// ModelDir holds local embedding models.
	// Env: MODEL_DIR (default: {DATA_DIR}/models)
	ModelDir string `envconfig:"MODEL_DIR"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// Backend selects the vector index (pinecone or sqlite).
	// Env: INDEX_BACKEND (default: pinecone)
	Backend string `envconfig:"INDEX_BACKEND" default:"pinecone"`

	// LocalDBURL is the database used by the sqlite backend.
	// Env: LOCAL_DB_URL (default: sqlite:///{DATA_DIR}/index.db)
	LocalDBURL string `envconfig:"LOCAL_DB_URL"`

	// Pinecone configures the hosted index.
	// Env: PINECONE_*
	Pinecone PineconeEnv `envconfig:"PINECONE"`

	// IndexMetric is the similarity metric for new indexes.
	// Env: INDEX_METRIC (default: cosine)
	IndexMetric string `envconfig:"INDEX_METRIC" default:"cosine"`

	// EmbeddingProvider selects local or openai embeddings.
	// Env: EMBEDDING_PROVIDER (default: local)
	EmbeddingProvider string `envconfig:"EMBEDDING_PROVIDER" default:"local"`

	// EmbeddingEndpoint configures the remote embedding service.
	// Env: EMBEDDING_ENDPOINT_*
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// EmbeddingDimension is the vector size.
	// Env: EMBEDDING_DIMENSION (default: 384)
	EmbeddingDimension int `envconfig:"EMBEDDING_DIMENSION" default:"384"`

	// EmbeddingBatchSize is the number of rows embedded per group.
	// Env: EMBEDDING_BATCH_SIZE (default: 100)
	EmbeddingBatchSize int `envconfig:"EMBEDDING_BATCH_SIZE" default:"100"`

	// EmbeddingParallelism bounds concurrent embed calls within a group.
	// Env: EMBEDDING_PARALLELISM (default: 10)
	EmbeddingParallelism int `envconfig:"EMBEDDING_PARALLELISM" default:"10"`

	// UpsertChunkSize is the number of vectors per upsert request.
	// Env: UPSERT_CHUNK_SIZE (default: 10)
	UpsertChunkSize int `envconfig:"UPSERT_CHUNK_SIZE" default:"10"`

	// UpsertConcurrency bounds concurrent upsert requests. 0 is unbounded.
	// Env: UPSERT_CONCURRENCY (default: 0)
	UpsertConcurrency int `envconfig:"UPSERT_CONCURRENCY" default:"0"`

	// UpsertRateLimit is the upsert requests per second. 0 disables it.
	// Env: UPSERT_RATE_LIMIT (default: 0)
	UpsertRateLimit float64 `envconfig:"UPSERT_RATE_LIMIT" default:"0"`

	// PollInterval is the wait between index readiness checks.
	// Env: INDEX_POLL_INTERVAL (default: 1s)
	PollInterval time.Duration `envconfig:"INDEX_POLL_INTERVAL" default:"1s"`

	// ReadyTimeout bounds the wait for a new index. 0 waits forever.
	// Env: INDEX_READY_TIMEOUT (default: 0)
	ReadyTimeout time.Duration `envconfig:"INDEX_READY_TIMEOUT" default:"0s"`

	// HTTPCacheDir caches remote embedding responses on disk.
	// Env: HTTP_CACHE_DIR
	HTTPCacheDir string `envconfig:"HTTP_CACHE_DIR"`
}

// PineconeEnv holds hosted index configuration from environment.
type PineconeEnv struct {
	// Env: PINECONE_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Env: PINECONE_INDEX
	Index string `envconfig:"INDEX"`

	// Env: PINECONE_NAMESPACE (default: default)
	Namespace string `envconfig:"NAMESPACE" default:"default"`

	// Environment selects a pod-based index.
	// Env: PINECONE_ENVIRONMENT
	Environment string `envconfig:"ENVIRONMENT"`

	// Env: PINECONE_POD_TYPE (default: p1.x1)
	PodType string `envconfig:"POD_TYPE" default:"p1.x1"`

	// Cloud and Region select a serverless index.
	// Env: PINECONE_CLOUD, PINECONE_REGION
	Cloud  string `envconfig:"CLOUD"`
	Region string `envconfig:"REGION"`
}

// EndpointEnv holds embedding endpoint configuration from environment.
type EndpointEnv struct {
	// Env: EMBEDDING_ENDPOINT_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Env: EMBEDDING_ENDPOINT_MODEL
	Model string `envconfig:"MODEL"`

	// Env: EMBEDDING_ENDPOINT_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the request timeout in seconds.
	// Env: EMBEDDING_ENDPOINT_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// Env: EMBEDDING_ENDPOINT_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the first retry delay in seconds.
	// Env: EMBEDDING_ENDPOINT_INITIAL_DELAY (default: 2.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	// Env: EMBEDDING_ENDPOINT_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToEndpoint converts EndpointEnv to an Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	return NewEndpointWithOptions(
		WithBaseURL(e.BaseURL),
		WithModel(e.Model),
		WithAPIKey(e.APIKey),
		WithTimeout(seconds(e.Timeout)),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(seconds(e.InitialDelay)),
		WithBackoffFactor(e.BackoffFactor),
	)
}

// ToPinecone converts PineconeEnv to Pinecone settings.
func (p PineconeEnv) ToPinecone() Pinecone {
	return NewPineconeWithOptions(
		WithPineconeAPIKey(p.APIKey),
		WithIndex(p.Index),
		WithNamespace(p.Namespace),
		WithEnvironment(p.Environment),
		WithPodType(p.PodType),
		WithServerless(p.Cloud, p.Region),
	)
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	opts := []AppConfigOption{
		WithLogLevel(e.LogLevel),
		WithLogFormat(parseLogFormat(e.LogFormat)),
		WithBackend(Backend(strings.ToLower(e.Backend))),
		WithPinecone(e.Pinecone.ToPinecone()),
		WithIndexMetric(e.IndexMetric),
		WithEmbeddingProvider(EmbeddingProvider(strings.ToLower(e.EmbeddingProvider))),
		WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint()),
		WithEmbeddingDimension(e.EmbeddingDimension),
		WithEmbeddingBatchSize(e.EmbeddingBatchSize),
		WithEmbeddingParallelism(e.EmbeddingParallelism),
		WithUpsertChunkSize(e.UpsertChunkSize),
		WithUpsertConcurrency(e.UpsertConcurrency),
		WithUpsertRateLimit(e.UpsertRateLimit),
		WithPollInterval(e.PollInterval),
		WithReadyTimeout(e.ReadyTimeout),
		WithHTTPCacheDir(e.HTTPCacheDir),
	}
	if e.DataDir != "" {
		opts = append(opts, WithDataDir(e.DataDir))
	}
	if e.ModelDir != "" {
		opts = append(opts, WithModelDir(e.ModelDir))
	}
	if e.LocalDBURL != "" {
		opts = append(opts, WithDBURL(e.LocalDBURL))
	}
	return NewAppConfigWithOptions(opts...)
}

func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
