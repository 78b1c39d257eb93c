package provider

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
)

// CachingTransport serves repeated embedding requests from disk.
//
// Only POSTs to an ".../embeddings" endpoint are cached. The key is built
// from the model, the requested dimensions and the input texts, so the same
// CSV embedded against the same model is answered locally on the next load
// regardless of host, API key or unrelated request fields. Everything else
// passes straight to the inner transport.
type CachingTransport struct {
	inner  http.RoundTripper
	dir    string
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachingTransport creates a CachingTransport storing entries under dir.
// If inner is nil, http.DefaultTransport is used.
func NewCachingTransport(dir string, inner http.RoundTripper) (*CachingTransport, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if inner == nil {
		inner = http.DefaultTransport
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &CachingTransport{inner: inner, dir: dir}, nil
}

// Stats returns how many embedding requests were answered from disk and how
// many went upstream.
func (t *CachingTransport) Stats() (hits, misses int64) {
	return t.hits.Load(), t.misses.Load()
}

// Close releases nothing; entries persist across runs.
func (t *CachingTransport) Close() error {
	return nil
}

// embeddingBody is the part of an embeddings request that decides the result.
type embeddingBody struct {
	Model      string          `json:"model"`
	Dimensions int             `json:"dimensions"`
	Input      json.RawMessage `json:"input"`
}

// RoundTrip implements http.RoundTripper.
func (t *CachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || req.Body == nil || !strings.HasSuffix(req.URL.Path, "/embeddings") {
		return t.inner.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	key, ok := embeddingCacheKey(body)
	if !ok {
		return t.inner.RoundTrip(req)
	}
	path := t.entryPath(key)

	if cached, err := os.ReadFile(path); err == nil && json.Valid(cached) {
		t.hits.Add(1)
		return jsonResponse(req, cached), nil
	}
	t.misses.Add(1)

	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if json.Valid(respBody) {
		writeEntry(path, respBody)
	}

	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	return resp, nil
}

// embeddingCacheKey hashes model, dimensions and compacted input. It reports
// false for bodies that are not embedding requests.
func embeddingCacheKey(body []byte) (string, bool) {
	var eb embeddingBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Input) == 0 {
		return "", false
	}

	var input bytes.Buffer
	if err := json.Compact(&input, eb.Input); err != nil {
		return "", false
	}

	h := sha256.New()
	h.Write([]byte(eb.Model))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(eb.Dimensions)))
	h.Write([]byte{0})
	h.Write(input.Bytes())
	return hex.EncodeToString(h.Sum(nil)), true
}

// entryPath fans entries out over 256 subdirectories.
func (t *CachingTransport) entryPath(key string) string {
	return filepath.Join(t.dir, key[:2], key+".json")
}

func jsonResponse(req *http.Request, body []byte) *http.Response {
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// writeEntry writes through a temp file so concurrent loads never read a
// partial entry. Failures only cost a future cache miss.
func writeEntry(path string, body []byte) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return
	}
	_, werr := tmp.Write(body)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmp.Name())
		return
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
	}
}
