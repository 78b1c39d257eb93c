// Package service orchestrates the load, query and delete flows over the
// domain types.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/helixml/semsearch/domain/vector"
)

// BatchFunc receives each embedded group, in input order.
type BatchFunc func(ctx context.Context, batch []vector.Vector) error

// Pipeline embeds texts group by group. Groups run one after another; the
// texts inside a group are embedded concurrently.
type Pipeline struct {
	embedder    vector.Embedder
	parallelism int
	logger      *slog.Logger
}

// NewPipeline creates a Pipeline. A parallelism of zero or less places no
// bound on concurrent embed calls within a group.
func NewPipeline(embedder vector.Embedder, parallelism int, logger *slog.Logger) (*Pipeline, error) {
	if embedder == nil {
		return nil, errors.New("NewPipeline: nil embedder")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder:    embedder,
		parallelism: parallelism,
		logger:      logger,
	}, nil
}

// Run splits texts into consecutive groups of at most batchSize and hands
// each embedded group to onBatchDone before starting the next one.
//
// A failed embed fails its group: onBatchDone is not called for it and Run
// returns the error without touching later groups.
func (p *Pipeline) Run(ctx context.Context, texts []string, batchSize int, onBatchDone BatchFunc) error {
	groups, err := vector.Partition(texts, batchSize)
	if err != nil {
		return fmt.Errorf("partition texts: %w", err)
	}

	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}

		vectors, err := p.embedGroup(ctx, group)
		if err != nil {
			return fmt.Errorf("embed batch %d: %w", i, err)
		}

		p.logger.Debug("embedded batch", slog.Int("batch", i), slog.Int("size", len(vectors)))

		if onBatchDone == nil {
			continue
		}
		if err := onBatchDone(ctx, vectors); err != nil {
			return fmt.Errorf("handle batch %d: %w", i, err)
		}
	}

	return nil
}

func (p *Pipeline) embedGroup(ctx context.Context, group []string) ([]vector.Vector, error) {
	g, gctx := errgroup.WithContext(ctx)
	if p.parallelism > 0 {
		g.SetLimit(p.parallelism)
	}

	results := make([]vector.Vector, len(group))
	for i, text := range group {
		g.Go(func() error {
			vec, err := p.embedder.Embed(gctx, text)
			if err != nil {
				return err
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
