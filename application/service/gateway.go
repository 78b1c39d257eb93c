package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/helixml/semsearch/domain/vector"
)

// DefaultPollInterval is the wait between readiness checks after creating
// an index.
const DefaultPollInterval = time.Second

// DefaultChunkSize is the number of vectors per upsert request.
const DefaultChunkSize = 10

// ChunkResult is the outcome of one upsert request.
type ChunkResult struct {
	Index int
	Size  int
	Err   error
}

// ChunkResults is the outcome of a chunked upsert, in chunk order.
type ChunkResults []ChunkResult

// Upserted returns how many vectors were written by successful chunks.
func (r ChunkResults) Upserted() int {
	n := 0
	for _, c := range r {
		if c.Err == nil {
			n += c.Size
		}
	}
	return n
}

// Failed returns the chunks that were not written.
func (r ChunkResults) Failed() ChunkResults {
	var failed ChunkResults
	for _, c := range r {
		if c.Err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

// Err joins every chunk error, or returns nil when all chunks succeeded.
func (r ChunkResults) Err() error {
	var errs []error
	for _, c := range r {
		if c.Err != nil {
			errs = append(errs, fmt.Errorf("chunk %d: %w", c.Index, c.Err))
		}
	}
	return errors.Join(errs...)
}

// Gateway wraps a vector.Store with the index lifecycle and write policies
// used by the commands.
type Gateway struct {
	store        vector.Store
	logger       *slog.Logger
	pollInterval time.Duration
	readyTimeout time.Duration
	concurrency  int
	limiter      *rate.Limiter
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithPollInterval sets the wait between readiness checks.
func WithPollInterval(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

// WithReadyTimeout bounds how long EnsureIndex waits for a new index.
// Zero waits forever.
func WithReadyTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d >= 0 {
			g.readyTimeout = d
		}
	}
}

// WithUpsertConcurrency bounds concurrent upsert requests. Zero dispatches
// every chunk at once.
func WithUpsertConcurrency(n int) GatewayOption {
	return func(g *Gateway) {
		if n >= 0 {
			g.concurrency = n
		}
	}
}

// WithRateLimit caps upsert requests per second. Zero disables the limiter.
func WithRateLimit(perSecond float64) GatewayOption {
	return func(g *Gateway) {
		if perSecond > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithClock replaces the time source and sleep used while polling.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// NewGateway creates a Gateway over store.
func NewGateway(store vector.Store, logger *slog.Logger, opts ...GatewayOption) (*Gateway, error) {
	if store == nil {
		return nil, errors.New("NewGateway: nil store")
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		store:        store,
		logger:       logger,
		pollInterval: DefaultPollInterval,
		now:          time.Now,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// EnsureIndex creates the index described by spec when it does not exist yet
// and waits for it to report ready. An existing index is returned as is,
// whatever its dimension or metric.
func (g *Gateway) EnsureIndex(ctx context.Context, spec vector.Spec) error {
	name := spec.Name()
	indexes, err := g.store.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name() == name {
			g.logger.Debug("index exists", slog.String("index", name))
			return nil
		}
	}

	if err := g.store.CreateIndex(ctx, spec); err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	g.logger.Info("creating index",
		slog.String("index", name),
		slog.Int("dimension", spec.Dimension()),
		slog.String("metric", string(spec.Metric())),
	)

	return g.waitReady(ctx, name)
}

func (g *Gateway) waitReady(ctx context.Context, name string) error {
	start := g.now()
	for {
		desc, err := g.store.DescribeIndex(ctx, name)
		if err != nil {
			return fmt.Errorf("describe index %s: %w", name, err)
		}
		if desc.Ready() {
			g.logger.Info("index ready", slog.String("index", name))
			return nil
		}

		if g.readyTimeout > 0 && g.now().Sub(start) >= g.readyTimeout {
			return fmt.Errorf("%w: %s after %s", ErrIndexNotReady, name, g.readyTimeout)
		}

		g.logger.Debug("waiting for index", slog.String("index", name), slog.String("state", string(desc.State())))
		if err := g.sleep(ctx, g.pollInterval); err != nil {
			return err
		}
	}
}

// Upsert writes vectors in chunks of at most chunkSize. Chunks are sent
// concurrently and a failed chunk is logged without cancelling the others.
// The returned error covers invalid arguments only; per-chunk failures are
// reported in the results.
func (g *Gateway) Upsert(ctx context.Context, index, namespace string, vectors []vector.Vector, chunkSize int) (ChunkResults, error) {
	chunks, err := vector.Partition(vectors, chunkSize)
	if err != nil {
		return nil, fmt.Errorf("partition vectors: %w", err)
	}

	results := make(ChunkResults, len(chunks))
	var eg errgroup.Group
	if g.concurrency > 0 {
		eg.SetLimit(g.concurrency)
	}

	for i, chunk := range chunks {
		eg.Go(func() error {
			results[i] = ChunkResult{Index: i, Size: len(chunk), Err: g.upsertChunk(ctx, index, namespace, chunk)}
			if results[i].Err != nil {
				g.logger.Error("Error upserting chunk",
					slog.Int("chunk", i),
					slog.Int("size", len(chunk)),
					slog.String("error", results[i].Err.Error()),
				)
			}
			return nil
		})
	}
	_ = eg.Wait()

	return results, nil
}

func (g *Gateway) upsertChunk(ctx context.Context, index, namespace string, chunk []vector.Vector) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return g.store.Upsert(ctx, index, namespace, chunk)
}

// DeleteIndex removes the named index.
func (g *Gateway) DeleteIndex(ctx context.Context, name string) error {
	if err := g.store.DeleteIndex(ctx, name); err != nil {
		return fmt.Errorf("delete index %s: %w", name, err)
	}
	return nil
}

// Count returns the number of vectors in a namespace of the named index.
func (g *Gateway) Count(ctx context.Context, name, namespace string) (int, error) {
	n, err := g.store.Count(ctx, name, namespace)
	if err != nil {
		return 0, fmt.Errorf("count %s/%s: %w", name, namespace, err)
	}
	return n, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
