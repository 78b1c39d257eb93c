package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixml/semsearch/infrastructure/provider"
	"github.com/helixml/semsearch/internal/config"
)

func modelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage the local embedding model",
	}
	cmd.AddCommand(modelDownloadCmd(a))
	return cmd
}

// modelDownloader is replaced in tests.
var modelDownloader = provider.DownloadHugotModel

func modelDownloadCmd(a *app) *cobra.Command {
	var (
		model    string
		onnxFile string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the sentence-transformer used for local embeddings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*a.envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			dir := cfg.ModelDir()
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Downloading %s to %s...\n", model, dir)

			path, err := modelDownloader(model, onnxFile, dir)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Model ready at %s\n", path)
			return err
		},
	}

	cmd.Flags().StringVar(&model, "model", provider.DefaultHugotModel, "Hugging Face model name")
	cmd.Flags().StringVar(&onnxFile, "onnx-file", provider.DefaultHugotOnnxFile, "ONNX file inside the model repository")

	return cmd
}
