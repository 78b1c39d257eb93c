// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultLogLevel              = "INFO"
	DefaultNamespace             = "default"
	DefaultPodType               = "p1.x1"
	DefaultEmbeddingDimension    = 384
	DefaultEmbeddingBatchSize    = 100
	DefaultEmbeddingParallelism  = 10
	DefaultUpsertChunkSize       = 10
	DefaultPollInterval          = time.Second
	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 5
	DefaultEndpointInitialDelay  = 2 * time.Second
	DefaultEndpointBackoffFactor = 2.0
	DefaultIndexMetric           = "cosine"
	DefaultModelSubdir           = "models"
	DefaultDBFile                = "index.db"
)

// Configuration errors.
var (
	ErrMissingEnv         = errors.New("environment variable not set")
	ErrUnsupportedBackend = errors.New("unsupported index backend")
	ErrUnsupportedEmbed   = errors.New("unsupported embedding provider")
	ErrInvalidValue       = errors.New("invalid configuration value")
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Backend selects where vectors are stored.
type Backend string

// Backend values.
const (
	BackendPinecone Backend = "pinecone"
	BackendLocal    Backend = "sqlite"
)

// EmbeddingProvider selects how text is embedded.
type EmbeddingProvider string

// EmbeddingProvider values.
const (
	EmbeddingLocal  EmbeddingProvider = "local"
	EmbeddingOpenAI EmbeddingProvider = "openai"
)

// Endpoint configures an OpenAI-compatible embedding service.
type Endpoint struct {
	baseURL       string
	model         string
	apiKey        string
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		timeout:       DefaultEndpointTimeout,
		maxRetries:    DefaultEndpointMaxRetries,
		initialDelay:  DefaultEndpointInitialDelay,
		backoffFactor: DefaultEndpointBackoffFactor,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Pinecone holds the hosted index settings.
type Pinecone struct {
	apiKey      string
	index       string
	namespace   string
	environment string
	podType     string
	cloud       string
	region      string
}

// NewPinecone creates Pinecone settings with defaults.
func NewPinecone() Pinecone {
	return Pinecone{
		namespace: DefaultNamespace,
		podType:   DefaultPodType,
	}
}

// APIKey returns the API key.
func (p Pinecone) APIKey() string { return p.apiKey }

// Index returns the index name.
func (p Pinecone) Index() string { return p.index }

// Namespace returns the namespace vectors are written to and queried from.
func (p Pinecone) Namespace() string { return p.namespace }

// Environment returns the pod environment. Empty means serverless.
func (p Pinecone) Environment() string { return p.environment }

// PodType returns the pod type used for pod-based indexes.
func (p Pinecone) PodType() string { return p.podType }

// Cloud returns the serverless cloud provider.
func (p Pinecone) Cloud() string { return p.cloud }

// Region returns the serverless region.
func (p Pinecone) Region() string { return p.region }

// PineconeOption is a functional option for Pinecone.
type PineconeOption func(*Pinecone)

// WithPineconeAPIKey sets the API key.
func WithPineconeAPIKey(key string) PineconeOption {
	return func(p *Pinecone) { p.apiKey = key }
}

// WithIndex sets the index name.
func WithIndex(name string) PineconeOption {
	return func(p *Pinecone) { p.index = name }
}

// WithNamespace sets the namespace. Empty values are ignored.
func WithNamespace(ns string) PineconeOption {
	return func(p *Pinecone) {
		if ns != "" {
			p.namespace = ns
		}
	}
}

// WithEnvironment selects a pod-based index in the given environment.
func WithEnvironment(env string) PineconeOption {
	return func(p *Pinecone) { p.environment = env }
}

// WithPodType sets the pod type. Empty values are ignored.
func WithPodType(podType string) PineconeOption {
	return func(p *Pinecone) {
		if podType != "" {
			p.podType = podType
		}
	}
}

// WithServerless selects a serverless index in cloud and region.
func WithServerless(cloud, region string) PineconeOption {
	return func(p *Pinecone) {
		p.cloud = cloud
		p.region = region
	}
}

// NewPineconeWithOptions creates Pinecone settings with functional options.
func NewPineconeWithOptions(opts ...PineconeOption) Pinecone {
	p := NewPinecone()
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// AppConfig is the immutable application configuration.
type AppConfig struct {
	dataDir              string
	modelDir             string
	dbURL                string
	logLevel             string
	logFormat            LogFormat
	backend              Backend
	pinecone             Pinecone
	indexMetric          string
	embeddingProvider    EmbeddingProvider
	embeddingEndpoint    Endpoint
	embeddingDimension   int
	embeddingBatchSize   int
	embeddingParallelism int
	upsertChunkSize      int
	upsertConcurrency    int
	upsertRateLimit      float64
	pollInterval         time.Duration
	readyTimeout         time.Duration
	httpCacheDir         string
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".semsearch"
	}
	return filepath.Join(home, ".semsearch")
}

// DefaultModelDir returns the model directory for a data directory.
func DefaultModelDir(dataDir string) string {
	return filepath.Join(dataDir, DefaultModelSubdir)
}

// DefaultDBURL returns the local index database URL for a data directory.
func DefaultDBURL(dataDir string) string {
	return "sqlite:///" + filepath.Join(dataDir, DefaultDBFile)
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		dataDir:              dataDir,
		logLevel:             DefaultLogLevel,
		logFormat:            LogFormatPretty,
		backend:              BackendPinecone,
		pinecone:             NewPinecone(),
		indexMetric:          DefaultIndexMetric,
		embeddingProvider:    EmbeddingLocal,
		embeddingEndpoint:    NewEndpoint(),
		embeddingDimension:   DefaultEmbeddingDimension,
		embeddingBatchSize:   DefaultEmbeddingBatchSize,
		embeddingParallelism: DefaultEmbeddingParallelism,
		upsertChunkSize:      DefaultUpsertChunkSize,
		pollInterval:         DefaultPollInterval,
	}
}

// DataDir returns the data directory.
func (c AppConfig) DataDir() string { return c.dataDir }

// ModelDir returns the local embedding model directory.
func (c AppConfig) ModelDir() string {
	if c.modelDir != "" {
		return c.modelDir
	}
	return DefaultModelDir(c.dataDir)
}

// DBURL returns the local index database URL.
func (c AppConfig) DBURL() string {
	if c.dbURL != "" {
		return c.dbURL
	}
	return DefaultDBURL(c.dataDir)
}

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log output format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// Backend returns the index backend.
func (c AppConfig) Backend() Backend { return c.backend }

// Pinecone returns the index settings.
func (c AppConfig) Pinecone() Pinecone { return c.pinecone }

// IndexMetric returns the similarity metric used when creating an index:
// cosine, dotproduct or euclidean.
func (c AppConfig) IndexMetric() string { return c.indexMetric }

// EmbeddingProvider returns the embedding provider.
func (c AppConfig) EmbeddingProvider() EmbeddingProvider { return c.embeddingProvider }

// EmbeddingEndpoint returns the remote embedding endpoint settings.
func (c AppConfig) EmbeddingEndpoint() Endpoint { return c.embeddingEndpoint }

// EmbeddingDimension returns the vector size.
func (c AppConfig) EmbeddingDimension() int { return c.embeddingDimension }

// EmbeddingBatchSize returns the number of texts per pipeline group.
func (c AppConfig) EmbeddingBatchSize() int { return c.embeddingBatchSize }

// EmbeddingParallelism returns the concurrent embed limit within a group.
func (c AppConfig) EmbeddingParallelism() int { return c.embeddingParallelism }

// UpsertChunkSize returns the number of vectors per upsert request.
func (c AppConfig) UpsertChunkSize() int { return c.upsertChunkSize }

// UpsertConcurrency returns the concurrent upsert limit. Zero is unbounded.
func (c AppConfig) UpsertConcurrency() int { return c.upsertConcurrency }

// UpsertRateLimit returns the upsert requests per second. Zero is unlimited.
func (c AppConfig) UpsertRateLimit() float64 { return c.upsertRateLimit }

// PollInterval returns the wait between index readiness checks.
func (c AppConfig) PollInterval() time.Duration { return c.pollInterval }

// ReadyTimeout returns how long to wait for a new index. Zero waits forever.
func (c AppConfig) ReadyTimeout() time.Duration { return c.readyTimeout }

// HTTPCacheDir returns the embedding response cache directory, if any.
func (c AppConfig) HTTPCacheDir() string { return c.httpCacheDir }

// EnsureDataDir creates the data directory if it does not exist.
func (c AppConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

// Validate checks that everything a command needs before touching the
// network or the input file is present.
func (c AppConfig) Validate() error {
	switch c.backend {
	case BackendPinecone:
		if c.pinecone.apiKey == "" {
			return missing("PINECONE_API_KEY")
		}
		if c.pinecone.environment == "" {
			if c.pinecone.cloud == "" && c.pinecone.region == "" {
				return missing("PINECONE_ENVIRONMENT")
			}
			if c.pinecone.cloud == "" {
				return missing("PINECONE_CLOUD")
			}
			if c.pinecone.region == "" {
				return missing("PINECONE_REGION")
			}
		}
	case BackendLocal:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedBackend, c.backend)
	}

	if c.pinecone.index == "" {
		return missing("PINECONE_INDEX")
	}

	switch c.indexMetric {
	case "cosine", "dotproduct", "euclidean":
	default:
		return invalid("INDEX_METRIC", c.indexMetric)
	}

	switch c.embeddingProvider {
	case EmbeddingLocal, EmbeddingOpenAI:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEmbed, c.embeddingProvider)
	}

	if c.embeddingDimension < 1 {
		return invalid("EMBEDDING_DIMENSION", c.embeddingDimension)
	}
	if c.embeddingBatchSize < 1 {
		return invalid("EMBEDDING_BATCH_SIZE", c.embeddingBatchSize)
	}
	if c.upsertChunkSize < 1 {
		return invalid("UPSERT_CHUNK_SIZE", c.upsertChunkSize)
	}
	return nil
}

func missing(name string) error {
	return fmt.Errorf("%s %w", name, ErrMissingEnv)
}

func invalid(name string, value any) error {
	return fmt.Errorf("%w: %s=%v", ErrInvalidValue, name, value)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.dataDir = dir }
}

// WithModelDir sets the local model directory.
func WithModelDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.modelDir = dir }
}

// WithDBURL sets the local index database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithBackend sets the index backend.
func WithBackend(b Backend) AppConfigOption {
	return func(c *AppConfig) { c.backend = b }
}

// WithPinecone sets the index settings.
func WithPinecone(p Pinecone) AppConfigOption {
	return func(c *AppConfig) { c.pinecone = p }
}

// WithPineconeOptions applies options to the current index settings.
func WithPineconeOptions(opts ...PineconeOption) AppConfigOption {
	return func(c *AppConfig) {
		for _, opt := range opts {
			opt(&c.pinecone)
		}
	}
}

// WithIndexMetric sets the metric for new indexes. Empty values are ignored.
func WithIndexMetric(metric string) AppConfigOption {
	return func(c *AppConfig) {
		if metric != "" {
			c.indexMetric = strings.ToLower(metric)
		}
	}
}

// WithEmbeddingProvider sets the embedding provider.
func WithEmbeddingProvider(p EmbeddingProvider) AppConfigOption {
	return func(c *AppConfig) { c.embeddingProvider = p }
}

// WithEmbeddingEndpoint sets the remote embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = e }
}

// WithEmbeddingDimension sets the vector size.
func WithEmbeddingDimension(n int) AppConfigOption {
	return func(c *AppConfig) { c.embeddingDimension = n }
}

// WithEmbeddingBatchSize sets the pipeline group size.
func WithEmbeddingBatchSize(n int) AppConfigOption {
	return func(c *AppConfig) { c.embeddingBatchSize = n }
}

// WithEmbeddingParallelism sets the concurrent embed limit.
func WithEmbeddingParallelism(n int) AppConfigOption {
	return func(c *AppConfig) { c.embeddingParallelism = n }
}

// WithUpsertChunkSize sets the vectors per upsert request.
func WithUpsertChunkSize(n int) AppConfigOption {
	return func(c *AppConfig) { c.upsertChunkSize = n }
}

// WithUpsertConcurrency sets the concurrent upsert limit.
func WithUpsertConcurrency(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n >= 0 {
			c.upsertConcurrency = n
		}
	}
}

// WithUpsertRateLimit sets the upsert requests per second.
func WithUpsertRateLimit(perSecond float64) AppConfigOption {
	return func(c *AppConfig) {
		if perSecond >= 0 {
			c.upsertRateLimit = perSecond
		}
	}
}

// WithPollInterval sets the wait between readiness checks.
func WithPollInterval(d time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithReadyTimeout sets the readiness timeout.
func WithReadyTimeout(d time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		if d >= 0 {
			c.readyTimeout = d
		}
	}
}

// WithHTTPCacheDir sets the embedding response cache directory.
func WithHTTPCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.httpCacheDir = dir }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Secrets are masked.
func (c AppConfig) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("backend", string(c.backend)),
		slog.String("index", c.pinecone.index),
		slog.String("namespace", c.pinecone.namespace),
		slog.String("index_metric", c.indexMetric),
		slog.String("pinecone_api_key", mask(c.pinecone.apiKey)),
		slog.String("embedding_provider", string(c.embeddingProvider)),
		slog.Int("embedding_dimension", c.embeddingDimension),
		slog.Int("embedding_batch_size", c.embeddingBatchSize),
		slog.Int("upsert_chunk_size", c.upsertChunkSize),
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
	}
	if c.backend == BackendLocal {
		attrs = append(attrs, slog.String("db_url", c.maskedDBURL()))
	}
	if c.embeddingProvider == EmbeddingOpenAI {
		attrs = append(attrs,
			slog.String("embedding_base_url", c.embeddingEndpoint.baseURL),
			slog.String("embedding_model", c.embeddingEndpoint.model),
		)
	}
	return attrs
}

func (c AppConfig) maskedDBURL() string {
	url := c.DBURL()
	if strings.HasPrefix(url, "sqlite:") {
		return url
	}
	return "postgres://***@***"
}

func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return "***"
}
