package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// hugotBatchMax caps the texts handed to one pipeline run.
const hugotBatchMax = 10

// DefaultHugotModel is the sentence-transformer fetched by DownloadHugotModel.
const DefaultHugotModel = "sentence-transformers/all-MiniLM-L6-v2"

// DefaultHugotOnnxFile is the ONNX export inside the model repository.
const DefaultHugotOnnxFile = "onnx/model.onnx"

// hugotDimension is the vector size produced by DefaultHugotModel.
const hugotDimension = 384

// ErrModelNotFound indicates no downloaded model exists in the model directory.
var ErrModelNotFound = errors.New("no embedding model found")

// HugotEmbedding generates sentence embeddings locally with a downloaded
// ONNX sentence-transformer. The session is created on first use and
// inference is serialized.
type HugotEmbedding struct {
	modelDir string

	mu       sync.Mutex
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
}

// NewHugotEmbedding creates a HugotEmbedding that loads its model from modelDir.
func NewHugotEmbedding(modelDir string) *HugotEmbedding {
	return &HugotEmbedding{modelDir: modelDir}
}

// Available reports whether a downloaded model exists in the model directory.
func (h *HugotEmbedding) Available() bool {
	_, err := FindHugotModel(h.modelDir)
	return err == nil
}

// FindHugotModel returns the model path inside dir. The directory written by
// DownloadHugotModel for DefaultHugotModel wins; otherwise the first
// subdirectory holding a tokenizer.json is used.
func FindHugotModel(dir string) (string, error) {
	preferred := filepath.Join(dir, strings.ReplaceAll(DefaultHugotModel, "/", "_"))
	if hasTokenizer(preferred) {
		return preferred, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read model directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(dir, entry.Name())
		if hasTokenizer(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w in %s: run `semsearch model download`", ErrModelNotFound, dir)
}

func hasTokenizer(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "tokenizer.json"))
	return err == nil && !info.IsDir()
}

// load creates the session and pipeline. Callers hold h.mu.
func (h *HugotEmbedding) load() error {
	if h.pipeline != nil {
		return nil
	}

	modelPath, err := FindHugotModel(h.modelDir)
	if err != nil {
		return err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return fmt.Errorf("create hugot session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "sentence-embeddings",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	})
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("create feature extraction pipeline: %w", err)
	}

	h.session = session
	h.pipeline = pipeline
	return nil
}

// Embed generates one normalized embedding per text. Large requests are run
// through the pipeline in batches.
func (h *HugotEmbedding) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	texts := req.Texts()
	if len(texts) == 0 {
		return NewEmbeddingResponse([][]float64{}, NewUsage(0, 0)), nil
	}

	if err := ctx.Err(); err != nil {
		return EmbeddingResponse{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.load(); err != nil {
		return EmbeddingResponse{}, fmt.Errorf("initialize hugot: %w", err)
	}

	embeddings := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += hugotBatchMax {
		if err := ctx.Err(); err != nil {
			return EmbeddingResponse{}, err
		}
		end := min(start+hugotBatchMax, len(texts))

		result, err := h.pipeline.RunPipeline(texts[start:end])
		if err != nil {
			return EmbeddingResponse{}, fmt.Errorf("run embedding pipeline: %w", err)
		}
		for _, vec32 := range result.Embeddings {
			vec64 := make([]float64, len(vec32))
			for j, v := range vec32 {
				vec64[j] = float64(v)
			}
			embeddings = append(embeddings, vec64)
		}
	}

	// Local inference has no token accounting.
	return NewEmbeddingResponse(embeddings, NewUsage(0, 0)), nil
}

// Close destroys the session. The embedder may be reused afterwards and
// reloads the model on the next Embed.
func (h *HugotEmbedding) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session == nil {
		return nil
	}
	err := h.session.Destroy()
	h.session = nil
	h.pipeline = nil
	if err != nil {
		return fmt.Errorf("destroy hugot session: %w", err)
	}
	return nil
}

// DownloadHugotModel fetches model from the Hugging Face hub into dir and
// returns the local model path. An existing download is reused.
func DownloadHugotModel(model, onnxFile, dir string) (string, error) {
	if model == "" {
		model = DefaultHugotModel
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	opts := hugot.NewDownloadOptions()
	if onnxFile != "" {
		opts.OnnxFilePath = onnxFile
	}

	path, err := hugot.DownloadModel(model, dir, opts)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", model, err)
	}
	return path, nil
}

var _ Embedder = (*HugotEmbedding)(nil)
