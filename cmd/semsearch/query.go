package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helixml/semsearch/domain/vector"
	"github.com/helixml/semsearch/internal/console"
)

type matchOutput struct {
	Text  string  `json:"text" yaml:"text"`
	Score float64 `json:"score" yaml:"score"`
}

func queryCmd(a *app) *cobra.Command {
	var (
		query     string
		topK      int
		namespace string
		format    string
	)

	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Find the rows most similar to a query",
		Example: `  semsearch query --query "how do I learn Go" --topK 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(cmd, "query", "topK"); err != nil {
				return err
			}
			switch format {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q: want text, json or yaml", format)
			}

			ctx, s, err := a.open(cmd.Context(), "query", namespace, true)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			searcher, err := s.searcher()
			if err != nil {
				return err
			}

			matches, err := searcher.Search(ctx, query, topK)
			if err != nil {
				return err
			}

			return writeMatches(cmd.OutOrStdout(), format, matches)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Text to search for")
	cmd.Flags().IntVarP(&topK, "topK", "k", 0, "Number of results")
	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace to search (default: PINECONE_NAMESPACE)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, yaml")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("topK")

	return cmd
}

func writeMatches(w io.Writer, format string, matches []vector.Match) error {
	out := make([]matchOutput, len(matches))
	for i, m := range matches {
		out[i] = matchOutput{Text: m.Text(), Score: m.Score()}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	default:
		styles := console.NewStyles(w)
		for _, m := range out {
			if _, err := fmt.Fprintln(w, styles.Match(m.Score, m.Text)); err != nil {
				return err
			}
		}
		return nil
	}
}
