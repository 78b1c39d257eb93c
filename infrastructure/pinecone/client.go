// Package pinecone implements vector.Store on the Pinecone hosted vector
// database.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/helixml/semsearch/domain/vector"
)

// DefaultPodType is used for pod-based indexes.
const DefaultPodType = "p1.x1"

// metadataText is the metadata field holding the source text.
const metadataText = "text"

// ErrMissingPlacement indicates neither a pod environment nor a serverless
// cloud and region were configured.
var ErrMissingPlacement = errors.New("index placement requires an environment or a cloud and region")

// Placement selects where new indexes are created. A non-empty Environment
// creates a pod-based index; otherwise Cloud and Region create a serverless one.
type Placement struct {
	Environment string
	PodType     string
	Cloud       string
	Region      string
}

// Serverless reports whether new indexes are serverless.
func (p Placement) Serverless() bool { return p.Environment == "" }

// Validate checks that the placement can create an index.
func (p Placement) Validate() error {
	if p.Environment != "" {
		return nil
	}
	if p.Cloud == "" || p.Region == "" {
		return ErrMissingPlacement
	}
	return nil
}

// controlPlane is the index management subset of *pinecone.Client.
type controlPlane interface {
	ListIndexes(ctx context.Context) ([]*pinecone.Index, error)
	CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error)
	CreatePodIndex(ctx context.Context, in *pinecone.CreatePodIndexRequest) (*pinecone.Index, error)
	DescribeIndex(ctx context.Context, name string) (*pinecone.Index, error)
	DeleteIndex(ctx context.Context, name string) error
}

// dataPlane is the subset of *pinecone.IndexConnection used here.
type dataPlane interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

type connectFunc func(host, namespace string) (dataPlane, error)

type connKey struct {
	index     string
	namespace string
}

// Client implements vector.Store. Data-plane connections are opened on first
// use and cached per index and namespace.
type Client struct {
	control   controlPlane
	connect   connectFunc
	placement Placement
	logger    *slog.Logger

	mu    sync.Mutex
	hosts map[string]string
	conns map[connKey]dataPlane
}

// NewClient creates a Client authenticated with apiKey.
func NewClient(apiKey string, placement Placement, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("pinecone api key is required")
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}

	connect := func(host, namespace string) (dataPlane, error) {
		return pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: namespace})
	}
	return newClient(pc, connect, placement, logger), nil
}

func newClient(control controlPlane, connect connectFunc, placement Placement, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if placement.PodType == "" {
		placement.PodType = DefaultPodType
	}
	return &Client{
		control:   control,
		connect:   connect,
		placement: placement,
		logger:    logger,
		hosts:     map[string]string{},
		conns:     map[connKey]dataPlane{},
	}
}

// ListIndexes returns every index in the project.
func (c *Client) ListIndexes(ctx context.Context) ([]vector.Description, error) {
	indexes, err := c.control.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}

	out := make([]vector.Description, 0, len(indexes))
	for _, idx := range indexes {
		if idx == nil {
			continue
		}
		c.rememberHost(idx)
		out = append(out, toDescription(idx))
	}
	return out, nil
}

// CreateIndex creates a pod or serverless index depending on the placement.
func (c *Client) CreateIndex(ctx context.Context, spec vector.Spec) error {
	if err := c.placement.Validate(); err != nil {
		return err
	}

	metric := toMetric(spec.Metric())
	dimension := int32(spec.Dimension())

	var (
		idx *pinecone.Index
		err error
	)
	if c.placement.Serverless() {
		idx, err = c.control.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
			Name:      spec.Name(),
			Cloud:     pinecone.Cloud(c.placement.Cloud),
			Region:    c.placement.Region,
			Metric:    &metric,
			Dimension: &dimension,
		})
	} else {
		idx, err = c.control.CreatePodIndex(ctx, &pinecone.CreatePodIndexRequest{
			Name:        spec.Name(),
			Dimension:   dimension,
			Environment: c.placement.Environment,
			PodType:     c.placement.PodType,
			Metric:      &metric,
		})
	}
	if err != nil {
		return fmt.Errorf("create index %s: %w", spec.Name(), err)
	}

	if idx != nil {
		c.rememberHost(idx)
	}
	c.logger.Debug("requested index",
		slog.String("index", spec.Name()),
		slog.Bool("serverless", c.placement.Serverless()),
	)
	return nil
}

// DescribeIndex returns the state of the named index.
func (c *Client) DescribeIndex(ctx context.Context, name string) (vector.Description, error) {
	idx, err := c.control.DescribeIndex(ctx, name)
	if err != nil {
		return vector.Description{}, fmt.Errorf("describe index %s: %w", name, mapError(err))
	}
	c.rememberHost(idx)
	return toDescription(idx), nil
}

// DeleteIndex deletes the named index and drops its cached connections.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	if err := c.control.DeleteIndex(ctx, name); err != nil {
		return fmt.Errorf("delete index %s: %w", name, mapError(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.hosts, name)
	for key, conn := range c.conns {
		if key.index == name {
			_ = conn.Close()
			delete(c.conns, key)
		}
	}
	return nil
}

// Upsert writes vectors with their text as metadata.
func (c *Client) Upsert(ctx context.Context, index, namespace string, vectors []vector.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	conn, err := c.conn(ctx, index, namespace)
	if err != nil {
		return err
	}

	records := make([]*pinecone.Vector, len(vectors))
	for i, v := range vectors {
		metadata, err := structpb.NewStruct(map[string]any{metadataText: v.Text()})
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", v.ID(), err)
		}
		values := v.Values()
		records[i] = &pinecone.Vector{
			Id:       v.ID(),
			Values:   &values,
			Metadata: metadata,
		}
	}

	if _, err := conn.UpsertVectors(ctx, records); err != nil {
		return fmt.Errorf("upsert %d vectors: %w", len(records), err)
	}
	return nil
}

// Query returns the nearest vectors in store order.
func (c *Client) Query(ctx context.Context, index string, q vector.Query) ([]vector.Match, error) {
	if q.TopK < 1 {
		return nil, fmt.Errorf("%w, got %d", vector.ErrInvalidTopK, q.TopK)
	}

	conn, err := c.conn(ctx, index, q.Namespace)
	if err != nil {
		return nil, err
	}

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          q.Values,
		TopK:            uint32(q.TopK),
		IncludeValues:   q.IncludeValues,
		IncludeMetadata: q.IncludeMetadata,
	})
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if resp == nil {
		return []vector.Match{}, nil
	}

	matches := make([]vector.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		matches = append(matches, vector.NewMatch(m.Vector.Id, metadataString(m.Vector.Metadata), float64(m.Score)))
	}
	return matches, nil
}

// Count returns the vector count of a namespace from the index statistics.
func (c *Client) Count(ctx context.Context, index, namespace string) (int, error) {
	conn, err := c.conn(ctx, index, namespace)
	if err != nil {
		return 0, err
	}

	stats, err := conn.DescribeIndexStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("describe index stats: %w", err)
	}
	if stats == nil {
		return 0, nil
	}
	summary, ok := stats.Namespaces[namespace]
	if !ok || summary == nil {
		return 0, nil
	}
	return int(summary.VectorCount), nil
}

// Close closes every cached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for key, conn := range c.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.conns, key)
	}
	return errors.Join(errs...)
}

func (c *Client) conn(ctx context.Context, index, namespace string) (dataPlane, error) {
	key := connKey{index: index, namespace: namespace}

	c.mu.Lock()
	if conn, ok := c.conns[key]; ok {
		c.mu.Unlock()
		return conn, nil
	}
	host := c.hosts[index]
	c.mu.Unlock()

	if host == "" {
		idx, err := c.control.DescribeIndex(ctx, index)
		if err != nil {
			return nil, fmt.Errorf("describe index %s: %w", index, mapError(err))
		}
		host = idx.Host
	}
	if host == "" {
		return nil, fmt.Errorf("index %s has no host yet", index)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[key]; ok {
		return conn, nil
	}

	conn, err := c.connect(host, namespace)
	if err != nil {
		return nil, fmt.Errorf("connect to index %s: %w", index, err)
	}
	c.hosts[index] = host
	c.conns[key] = conn
	return conn, nil
}

func (c *Client) rememberHost(idx *pinecone.Index) {
	if idx == nil || idx.Host == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hosts[idx.Name] = idx.Host
}

func toDescription(idx *pinecone.Index) vector.Description {
	dimension := 0
	if idx.Dimension != nil {
		dimension = int(*idx.Dimension)
	}
	state := vector.StateCreating
	if idx.Status != nil && idx.Status.Ready {
		state = vector.StateReady
	}
	return vector.NewDescription(idx.Name, dimension, state)
}

func toMetric(m vector.Metric) pinecone.IndexMetric {
	switch m {
	case vector.MetricDotProduct:
		return pinecone.Dotproduct
	case vector.MetricEuclidean:
		return pinecone.Euclidean
	default:
		return pinecone.Cosine
	}
}

func metadataString(m *pinecone.Metadata) string {
	if m == nil {
		return ""
	}
	field, ok := m.Fields[metadataText]
	if !ok {
		return ""
	}
	return field.GetStringValue()
}

// mapError turns not-found responses into vector.ErrIndexNotFound.
func mapError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not found") || strings.Contains(msg, "404") {
		return fmt.Errorf("%w: %w", vector.ErrIndexNotFound, err)
	}
	return err
}

var _ vector.Store = (*Client)(nil)
