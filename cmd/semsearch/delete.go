package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete",
		Aliases: []string{"d"},
		Short:   "Delete the index",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, s, err := a.open(cmd.Context(), "delete", "", false)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			gateway, err := s.gateway()
			if err != nil {
				return err
			}

			index := s.cfg.Pinecone().Index()
			if err := gateway.DeleteIndex(ctx, index); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Index is deleted: %s\n", index)
			return err
		},
	}
}
