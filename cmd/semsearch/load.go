package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/helixml/semsearch/application/service"
	"github.com/helixml/semsearch/domain/vector"
	"github.com/helixml/semsearch/internal/console"
)

func loadCmd(a *app) *cobra.Command {
	var (
		csvPath   string
		column    string
		namespace string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:     "load",
		Aliases: []string{"l"},
		Short:   "Embed a CSV column and upsert it into the index",
		Long: `Embed every value of one CSV column and upsert the vectors into the index.

The index is created when it does not exist yet. Failed upsert chunks are
logged and skipped; the command reports how many rows were read.`,
		Example: "  semsearch load --csvPath questions.csv --column question1",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(cmd, "csvPath", "column"); err != nil {
				return err
			}

			ctx, s, err := a.open(cmd.Context(), "load", namespace, true)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			loader, err := s.loader()
			if err != nil {
				return err
			}

			if batchSize <= 0 {
				batchSize = s.cfg.EmbeddingBatchSize()
			}
			index := s.cfg.Pinecone().Index()

			bar := console.NewProgress(cmd.ErrOrStderr(), "Embedding")
			result, err := loader.Load(ctx, service.LoadRequest{
				Path:      csvPath,
				Column:    column,
				Index:     index,
				Namespace: s.cfg.Pinecone().Namespace(),
				Dimension: s.cfg.EmbeddingDimension(),
				Metric:    vector.Metric(s.cfg.IndexMetric()),
				BatchSize: batchSize,
				ChunkSize: s.cfg.UpsertChunkSize(),
			}, bar.Update)
			bar.Finish()
			if err != nil {
				return err
			}

			if result.FailedChunks > 0 {
				s.logger.Warn("some chunks were not upserted",
					slog.Int("failed_chunks", result.FailedChunks),
					slog.Int("upserted", result.Upserted),
				)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d documents into index %s\n", result.Documents, index)
			return err
		},
	}

	cmd.Flags().StringVarP(&csvPath, "csvPath", "p", "", "Path to the CSV file")
	cmd.Flags().StringVarP(&column, "column", "c", "", "Column whose values are embedded")
	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace to write to (default: PINECONE_NAMESPACE)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Rows embedded per batch (default: EMBEDDING_BATCH_SIZE)")
	_ = cmd.MarkFlagRequired("csvPath")
	_ = cmd.MarkFlagRequired("column")

	return cmd
}
