package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statsCmd(a *app) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print how many vectors a namespace holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, s, err := a.open(cmd.Context(), "stats", namespace, false)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			gateway, err := s.gateway()
			if err != nil {
				return err
			}

			p := s.cfg.Pinecone()
			count, err := gateway.Count(ctx, p.Index(), p.Namespace())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Index %s namespace %s holds %d vectors\n", p.Index(), p.Namespace(), count)
			return err
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace to count (default: PINECONE_NAMESPACE)")

	return cmd
}
