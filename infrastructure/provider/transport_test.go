package provider

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &count
}

func post(t *testing.T, rt http.RoundTripper, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestCachingTransport_RepeatedInputServedFromDisk(t *testing.T) {
	srv, count := countingServer(t, http.StatusOK, `{"data":[]}`)
	transport, err := NewCachingTransport(t.TempDir(), srv.Client().Transport)
	require.NoError(t, err)

	for range 3 {
		status, body := post(t, transport, srv.URL+"/v1/embeddings", `{"model":"m","input":["What is Go?"]}`)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, `{"data":[]}`, body)
	}

	assert.Equal(t, int32(1), count.Load())
	hits, misses := transport.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachingTransport_KeyIgnoresUnrelatedFields(t *testing.T) {
	srv, count := countingServer(t, http.StatusOK, `{"data":[]}`)
	transport, err := NewCachingTransport(t.TempDir(), srv.Client().Transport)
	require.NoError(t, err)

	post(t, transport, srv.URL+"/v1/embeddings", `{"model":"m","input":["a", "b"],"user":"alice"}`)
	post(t, transport, srv.URL+"/v1/embeddings", `{"user":"bob","input":["a","b"],"model":"m","encoding_format":"float"}`)

	assert.Equal(t, int32(1), count.Load())
}

func TestCachingTransport_KeyCoversModelDimensionsAndInput(t *testing.T) {
	srv, count := countingServer(t, http.StatusOK, `{"data":[]}`)
	transport, err := NewCachingTransport(t.TempDir(), srv.Client().Transport)
	require.NoError(t, err)

	bodies := []string{
		`{"model":"m","input":["a"]}`,
		`{"model":"other","input":["a"]}`,
		`{"model":"m","input":["a"],"dimensions":384}`,
		`{"model":"m","input":["b"]}`,
	}
	for _, body := range bodies {
		post(t, transport, srv.URL+"/v1/embeddings", body)
	}

	assert.Equal(t, int32(len(bodies)), count.Load())
}

func TestCachingTransport_PassesThroughOtherRequests(t *testing.T) {
	srv, count := countingServer(t, http.StatusOK, `{"ok":true}`)
	transport, err := NewCachingTransport(t.TempDir(), srv.Client().Transport)
	require.NoError(t, err)

	post(t, transport, srv.URL+"/v1/chat/completions", `{"model":"m","input":["a"]}`)
	post(t, transport, srv.URL+"/v1/chat/completions", `{"model":"m","input":["a"]}`)
	post(t, transport, srv.URL+"/v1/embeddings", `not json`)
	post(t, transport, srv.URL+"/v1/embeddings", `not json`)

	assert.Equal(t, int32(4), count.Load())
	hits, misses := transport.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
}

func TestCachingTransport_FailuresNotCached(t *testing.T) {
	srv, count := countingServer(t, http.StatusTooManyRequests, `{"error":"slow down"}`)
	transport, err := NewCachingTransport(t.TempDir(), srv.Client().Transport)
	require.NoError(t, err)

	for range 2 {
		status, _ := post(t, transport, srv.URL+"/v1/embeddings", `{"model":"m","input":["a"]}`)
		assert.Equal(t, http.StatusTooManyRequests, status)
	}

	assert.Equal(t, int32(2), count.Load())
}

func TestCachingTransport_CorruptEntryRefetched(t *testing.T) {
	srv, count := countingServer(t, http.StatusOK, `{"data":[]}`)
	dir := t.TempDir()
	transport, err := NewCachingTransport(dir, srv.Client().Transport)
	require.NoError(t, err)

	body := `{"model":"m","input":["a"]}`
	key, ok := embeddingCacheKey([]byte(body))
	require.True(t, ok)
	path := transport.entryPath(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	_, got := post(t, transport, srv.URL+"/v1/embeddings", body)
	assert.Equal(t, `{"data":[]}`, got)
	assert.Equal(t, int32(1), count.Load())

	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"data":[]}`, string(stored))
}

func TestCachingTransport_InnerError(t *testing.T) {
	transport, err := NewCachingTransport(t.TempDir(), &failingTransport{})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, "http://example.invalid/v1/embeddings", strings.NewReader(`{"model":"m","input":["a"]}`))
	require.NoError(t, err)
	_, err = transport.RoundTrip(req)
	assert.Error(t, err)
}

func TestCachingTransport_ReloadSkipsUpstream(t *testing.T) {
	var count atomic.Int64
	srv := fakeEmbeddingServer(t, &count)
	defer srv.Close()

	dir := t.TempDir()
	newProvider := func() (*OpenAIProvider, *CachingTransport) {
		transport, err := NewCachingTransport(dir, srv.Client().Transport)
		require.NoError(t, err)
		return NewOpenAIProviderFromConfig(OpenAIConfig{
			APIKey:     "test-key",
			BaseURL:    srv.URL + "/v1",
			Dimensions: 3,
			MaxRetries: 1,
			Transport:  transport,
		}), transport
	}
	rows := []string{"What is Go?", "How do I bake bread?"}

	first, _ := newProvider()
	for _, row := range rows {
		_, err := first.Embed(t.Context(), NewEmbeddingRequest([]string{row}))
		require.NoError(t, err)
	}
	require.Equal(t, int64(2), count.Load())

	second, transport := newProvider()
	for _, row := range rows {
		resp, err := second.Embed(t.Context(), NewEmbeddingRequest([]string{row}))
		require.NoError(t, err)
		require.Len(t, resp.Embeddings(), 1)
	}

	assert.Equal(t, int64(2), count.Load(), "second load is answered from the cache")
	hits, misses := transport.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Zero(t, misses)
}

func TestNewCachingTransport_RequiresDir(t *testing.T) {
	_, err := NewCachingTransport("", nil)
	assert.Error(t, err)
}

// failingTransport always returns an error.
type failingTransport struct{}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, http.ErrServerClosed
}
