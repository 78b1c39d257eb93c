package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/helixml/semsearch/domain/document"
	"github.com/helixml/semsearch/domain/vector"
)

// TableSource reads a delimited file into a Table.
type TableSource interface {
	Parse(path string) (document.Table, error)
}

// ProgressFunc is told how many of total documents have been embedded.
type ProgressFunc func(done, total int)

// LoadRequest describes one load run.
type LoadRequest struct {
	Path      string
	Column    string
	Index     string
	Namespace string
	Dimension int
	// Metric is used when the index has to be created. Empty means cosine.
	Metric    vector.Metric
	BatchSize int
	ChunkSize int
}

// LoadResult summarises a load run.
type LoadResult struct {
	Documents    int
	Upserted     int
	FailedChunks int
}

// Loader runs the CSV to index flow: read, extract, ensure the index,
// embed in groups and upsert each group.
type Loader struct {
	source   TableSource
	pipeline *Pipeline
	gateway  *Gateway
	logger   *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(source TableSource, pipeline *Pipeline, gateway *Gateway, logger *slog.Logger) (*Loader, error) {
	if source == nil {
		return nil, errors.New("NewLoader: nil source")
	}
	if pipeline == nil {
		return nil, errors.New("NewLoader: nil pipeline")
	}
	if gateway == nil {
		return nil, errors.New("NewLoader: nil gateway")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		source:   source,
		pipeline: pipeline,
		gateway:  gateway,
		logger:   logger,
	}, nil
}

// Load runs req. Input errors (unreadable file, unknown column) and embed
// failures are returned. Index creation and chunk upsert failures are logged
// and the run carries on.
func (l *Loader) Load(ctx context.Context, req LoadRequest, progress ProgressFunc) (LoadResult, error) {
	table, err := l.source.Parse(req.Path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("read %s: %w", req.Path, err)
	}

	texts, err := document.ExtractColumn(table, req.Column)
	if err != nil {
		return LoadResult{}, err
	}

	spec := vector.NewSpec(req.Index, req.Dimension)
	if req.Metric != "" {
		spec = spec.WithMetric(req.Metric)
	}
	if err := l.gateway.EnsureIndex(ctx, spec); err != nil {
		if ctx.Err() != nil {
			return LoadResult{}, ctx.Err()
		}
		l.logger.Error("Error creating index", slog.String("index", req.Index), slog.String("error", err.Error()))
	}

	chunkSize := req.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	result := LoadResult{Documents: len(texts)}
	done := 0
	if progress != nil {
		progress(0, len(texts))
	}

	err = l.pipeline.Run(ctx, texts, req.BatchSize, func(ctx context.Context, batch []vector.Vector) error {
		chunks, err := l.gateway.Upsert(ctx, req.Index, req.Namespace, batch, chunkSize)
		if err != nil {
			return err
		}
		result.Upserted += chunks.Upserted()
		result.FailedChunks += len(chunks.Failed())

		done += len(batch)
		if progress != nil {
			progress(done, len(texts))
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	return result, nil
}
