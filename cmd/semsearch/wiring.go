package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/helixml/semsearch/application/service"
	"github.com/helixml/semsearch/domain/vector"
	"github.com/helixml/semsearch/infrastructure/csvsource"
	"github.com/helixml/semsearch/infrastructure/persistence"
	"github.com/helixml/semsearch/infrastructure/pinecone"
	"github.com/helixml/semsearch/infrastructure/provider"
	"github.com/helixml/semsearch/internal/config"
	"github.com/helixml/semsearch/internal/database"
	"github.com/helixml/semsearch/internal/log"
)

type (
	storeFactory    func(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (vector.Store, func() error, error)
	embedderFactory func(cfg config.AppConfig, logger *slog.Logger) (vector.Embedder, func() error, error)
)

// factories builds the outside-world dependencies. Tests swap them for fakes.
type factories struct {
	store    storeFactory
	embedder embedderFactory
}

func defaultFactories() factories {
	return factories{
		store:    openStore,
		embedder: openEmbedder,
	}
}

type app struct {
	envFile   *string
	factories factories
}

// session holds everything one command run needs.
type session struct {
	cfg      config.AppConfig
	logger   *slog.Logger
	store    vector.Store
	embedder vector.Embedder
	closers  []func() error
}

// loadConfig reads and validates configuration. Nothing outside the process
// has been touched when it returns an error.
func (a *app) loadConfig(namespace string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(*a.envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	if namespace != "" {
		cfg = cfg.Apply(config.WithPineconeOptions(config.WithNamespace(namespace)))
	}
	if err := cfg.Validate(); err != nil {
		return config.AppConfig{}, err
	}
	return cfg, nil
}

// open validates configuration and connects the store. The embedder is only
// built when withEmbedder is set.
func (a *app) open(ctx context.Context, command, namespace string, withEmbedder bool) (context.Context, *session, error) {
	cfg, err := a.loadConfig(namespace)
	if err != nil {
		return ctx, nil, err
	}

	ctx = log.WithCommand(log.WithRunID(ctx, uuid.NewString()), command)
	logger := log.Configure(cfg).WithContext(ctx).Slog()
	logger.Debug("configuration loaded", attrsToArgs(cfg.LogAttrs())...)

	s := &session{cfg: cfg, logger: logger}

	store, closeStore, err := a.factories.store(ctx, cfg, logger)
	if err != nil {
		return ctx, nil, err
	}
	s.store = store
	s.closers = append(s.closers, closeStore)

	if withEmbedder {
		embedder, closeEmbedder, err := a.factories.embedder(cfg, logger)
		if err != nil {
			_ = s.Close()
			return ctx, nil, err
		}
		s.embedder = embedder
		s.closers = append(s.closers, closeEmbedder)
	}

	return ctx, s, nil
}

func (s *session) gateway() (*service.Gateway, error) {
	return service.NewGateway(s.store, s.logger,
		service.WithPollInterval(s.cfg.PollInterval()),
		service.WithReadyTimeout(s.cfg.ReadyTimeout()),
		service.WithUpsertConcurrency(s.cfg.UpsertConcurrency()),
		service.WithRateLimit(s.cfg.UpsertRateLimit()),
	)
}

func (s *session) loader() (*service.Loader, error) {
	pipeline, err := service.NewPipeline(s.embedder, s.cfg.EmbeddingParallelism(), s.logger)
	if err != nil {
		return nil, err
	}
	gateway, err := s.gateway()
	if err != nil {
		return nil, err
	}
	return service.NewLoader(csvsource.NewSource(), pipeline, gateway, s.logger)
}

func (s *session) searcher() (*service.Searcher, error) {
	p := s.cfg.Pinecone()
	return service.NewSearcher(s.embedder, s.store, p.Index(), p.Namespace())
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if s.closers[i] == nil {
			continue
		}
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (vector.Store, func() error, error) {
	switch cfg.Backend() {
	case config.BackendPinecone:
		p := cfg.Pinecone()
		client, err := pinecone.NewClient(p.APIKey(), pinecone.Placement{
			Environment: p.Environment(),
			PodType:     p.PodType(),
			Cloud:       p.Cloud(),
			Region:      p.Region(),
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil

	case config.BackendLocal:
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, nil, err
		}
		db, err := database.NewDatabase(ctx, cfg.DBURL(), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open local index: %w", err)
		}
		if err := persistence.AutoMigrate(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return persistence.NewStore(db, logger), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnsupportedBackend, cfg.Backend())
	}
}

func openEmbedder(cfg config.AppConfig, logger *slog.Logger) (vector.Embedder, func() error, error) {
	var (
		batch   provider.Embedder
		closeFn func() error
	)

	switch cfg.EmbeddingProvider() {
	case config.EmbeddingLocal:
		hugot := provider.NewHugotEmbedding(cfg.ModelDir())
		if !hugot.Available() {
			return nil, nil, fmt.Errorf("no embedding model in %s: run `semsearch model download`", cfg.ModelDir())
		}
		batch, closeFn = hugot, hugot.Close

	case config.EmbeddingOpenAI:
		ep := cfg.EmbeddingEndpoint()
		oc := provider.OpenAIConfig{
			APIKey:         ep.APIKey(),
			BaseURL:        ep.BaseURL(),
			EmbeddingModel: ep.Model(),
			Dimensions:     cfg.EmbeddingDimension(),
			Timeout:        ep.Timeout(),
			MaxRetries:     ep.MaxRetries(),
			InitialDelay:   ep.InitialDelay(),
			BackoffFactor:  ep.BackoffFactor(),
		}
		var cache *provider.CachingTransport
		if dir := cfg.HTTPCacheDir(); dir != "" {
			transport, err := provider.NewCachingTransport(dir, http.DefaultTransport)
			if err != nil {
				return nil, nil, err
			}
			cache = transport
			oc.Transport = transport
			logger.Debug("caching embedding responses", slog.String("dir", dir))
		}
		openai := provider.NewOpenAIProviderFromConfig(oc)
		batch, closeFn = openai, openai.Close
		if cache != nil {
			closeFn = func() error {
				hits, misses := cache.Stats()
				logger.Info("embedding cache",
					slog.Int64("hits", hits),
					slog.Int64("misses", misses),
				)
				return errors.Join(cache.Close(), openai.Close())
			}
		}

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnsupportedEmbed, cfg.EmbeddingProvider())
	}

	embedder, err := provider.NewTextEmbedder(batch, cfg.EmbeddingDimension())
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return embedder, closeFn, nil
}

func attrsToArgs(attrs []slog.Attr) []any {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return args
}
