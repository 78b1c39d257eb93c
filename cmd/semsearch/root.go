package main

import (
	"github.com/spf13/cobra"
)

const envHelp = `
Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  PINECONE_API_KEY             API key (required for the pinecone backend)
  PINECONE_INDEX               Index name (required)
  PINECONE_ENVIRONMENT         Pod environment, creates a pod-based index
  PINECONE_CLOUD               Serverless cloud, used with PINECONE_REGION
  PINECONE_REGION              Serverless region
  PINECONE_NAMESPACE           Namespace (default: default)
  INDEX_BACKEND                pinecone or sqlite (default: pinecone)
  INDEX_METRIC                 cosine, dotproduct or euclidean (default: cosine)
  LOCAL_DB_URL                 Database for the sqlite backend
  DATA_DIR                     Data directory (default: ~/.semsearch)
  MODEL_DIR                    Local model directory (default: {DATA_DIR}/models)
  EMBEDDING_PROVIDER           local or openai (default: local)
  EMBEDDING_DIMENSION          Vector size (default: 384)
  EMBEDDING_BATCH_SIZE         Rows per embedding batch (default: 100)
  EMBEDDING_PARALLELISM        Concurrent embeds per batch (default: 10)
  EMBEDDING_ENDPOINT_*         BASE_URL, MODEL, API_KEY, TIMEOUT, MAX_RETRIES
  UPSERT_CHUNK_SIZE            Vectors per upsert request (default: 10)
  UPSERT_CONCURRENCY           Concurrent upsert requests, 0 is unbounded
  UPSERT_RATE_LIMIT            Upsert requests per second, 0 is unlimited
  INDEX_POLL_INTERVAL          Wait between readiness checks (default: 1s)
  INDEX_READY_TIMEOUT          Give up waiting for a new index, 0 waits forever
  HTTP_CACHE_DIR               Cache remote embedding responses on disk
  LOG_LEVEL                    DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   pretty or json (default: pretty)`

func rootCmd(f factories) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "semsearch",
		Short:         "Load CSV rows into a vector index and search them",
		Long:          "semsearch embeds one column of a CSV file, stores the vectors in a Pinecone index\nand answers nearest-neighbour queries against it.\n" + envHelp,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	a := &app{envFile: &envFile, factories: f}

	cmd.AddCommand(loadCmd(a))
	cmd.AddCommand(queryCmd(a))
	cmd.AddCommand(deleteCmd(a))
	cmd.AddCommand(statsCmd(a))
	cmd.AddCommand(modelCmd(a))
	cmd.AddCommand(versionCmd())

	return cmd
}
