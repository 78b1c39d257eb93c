package config

import (
	"os"
	"testing"
)

var managedEnv = []string{
	"DATA_DIR", "MODEL_DIR", "LOG_LEVEL", "LOG_FORMAT", "INDEX_BACKEND", "INDEX_METRIC", "LOCAL_DB_URL",
	"PINECONE_API_KEY", "PINECONE_INDEX", "PINECONE_NAMESPACE", "PINECONE_ENVIRONMENT",
	"PINECONE_POD_TYPE", "PINECONE_CLOUD", "PINECONE_REGION",
	"EMBEDDING_PROVIDER", "EMBEDDING_DIMENSION", "EMBEDDING_BATCH_SIZE", "EMBEDDING_PARALLELISM",
	"EMBEDDING_ENDPOINT_BASE_URL", "EMBEDDING_ENDPOINT_MODEL", "EMBEDDING_ENDPOINT_API_KEY",
	"EMBEDDING_ENDPOINT_TIMEOUT", "EMBEDDING_ENDPOINT_MAX_RETRIES",
	"EMBEDDING_ENDPOINT_INITIAL_DELAY", "EMBEDDING_ENDPOINT_BACKOFF_FACTOR",
	"UPSERT_CHUNK_SIZE", "UPSERT_CONCURRENCY", "UPSERT_RATE_LIMIT",
	"INDEX_POLL_INTERVAL", "INDEX_READY_TIMEOUT", "HTTP_CACHE_DIR",
	"API_KEY", "INDEX", "NAMESPACE", "ENVIRONMENT", "POD_TYPE", "CLOUD", "REGION",
	"BASE_URL", "MODEL", "TIMEOUT", "MAX_RETRIES", "INITIAL_DELAY", "BACKOFF_FACTOR",
}

// clearEnv unsets every variable the loader reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range managedEnv {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
}
