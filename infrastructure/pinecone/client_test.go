package pinecone

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/helixml/semsearch/domain/vector"
)

type fakeControl struct {
	mu         sync.Mutex
	indexes    map[string]*pinecone.Index
	serverless []*pinecone.CreateServerlessIndexRequest
	pods       []*pinecone.CreatePodIndexRequest
	describes  int
	deleteErr  error
}

func newFakeControl() *fakeControl {
	return &fakeControl{indexes: map[string]*pinecone.Index{}}
}

func (f *fakeControl) ListIndexes(_ context.Context) ([]*pinecone.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*pinecone.Index, 0, len(f.indexes))
	for _, idx := range f.indexes {
		out = append(out, idx)
	}
	return out, nil
}

func (f *fakeControl) CreateServerlessIndex(_ context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serverless = append(f.serverless, in)
	idx := &pinecone.Index{Name: in.Name, Host: in.Name + ".svc", Dimension: in.Dimension, Status: &pinecone.IndexStatus{Ready: false}}
	f.indexes[in.Name] = idx
	return idx, nil
}

func (f *fakeControl) CreatePodIndex(_ context.Context, in *pinecone.CreatePodIndexRequest) (*pinecone.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pods = append(f.pods, in)
	dim := in.Dimension
	idx := &pinecone.Index{Name: in.Name, Host: in.Name + ".svc", Dimension: &dim, Status: &pinecone.IndexStatus{Ready: false}}
	f.indexes[in.Name] = idx
	return idx, nil
}

func (f *fakeControl) DescribeIndex(_ context.Context, name string) (*pinecone.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describes++
	idx, ok := f.indexes[name]
	if !ok {
		return nil, errors.New("failed to describe index: 404 Not Found")
	}
	return idx, nil
}

func (f *fakeControl) DeleteIndex(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.indexes[name]; !ok {
		return errors.New("index not found")
	}
	delete(f.indexes, name)
	return nil
}

type fakeData struct {
	mu       sync.Mutex
	upserts  [][]*pinecone.Vector
	query    *pinecone.QueryByVectorValuesRequest
	response *pinecone.QueryVectorsResponse
	stats    *pinecone.DescribeIndexStatsResponse
	closed   bool
}

func (f *fakeData) UpsertVectors(_ context.Context, in []*pinecone.Vector) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, in)
	return uint32(len(in)), nil
}

func (f *fakeData) QueryByVectorValues(_ context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error) {
	f.query = in
	return f.response, nil
}

func (f *fakeData) DescribeIndexStats(_ context.Context) (*pinecone.DescribeIndexStatsResponse, error) {
	return f.stats, nil
}

func (f *fakeData) Close() error {
	f.closed = true
	return nil
}

type fakeConnector struct {
	mu    sync.Mutex
	data  *fakeData
	calls []connKey
}

func (f *fakeConnector) connect(host, namespace string) (dataPlane, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, connKey{index: host, namespace: namespace})
	return f.data, nil
}

func newTestClient(placement Placement) (*Client, *fakeControl, *fakeConnector) {
	control := newFakeControl()
	connector := &fakeConnector{data: &fakeData{}}
	return newClient(control, connector.connect, placement, nil), control, connector
}

func TestPlacement_Validate(t *testing.T) {
	assert.NoError(t, Placement{Environment: "us-west1-gcp"}.Validate())
	assert.NoError(t, Placement{Cloud: "aws", Region: "us-east-1"}.Validate())
	assert.ErrorIs(t, Placement{Cloud: "aws"}.Validate(), ErrMissingPlacement)
	assert.ErrorIs(t, Placement{}.Validate(), ErrMissingPlacement)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient("", Placement{Environment: "env"}, nil)
	require.Error(t, err)
}

func TestClient_CreateServerlessIndex(t *testing.T) {
	c, control, _ := newTestClient(Placement{Cloud: "aws", Region: "us-east-1"})

	require.NoError(t, c.CreateIndex(context.Background(), vector.NewSpec("questions", 384)))
	require.Len(t, control.serverless, 1)
	req := control.serverless[0]
	assert.Equal(t, "questions", req.Name)
	assert.Equal(t, pinecone.Cloud("aws"), req.Cloud)
	assert.Equal(t, "us-east-1", req.Region)
	assert.Equal(t, int32(384), *req.Dimension)
	assert.Equal(t, pinecone.Cosine, *req.Metric)
	assert.Empty(t, control.pods)
}

func TestClient_CreatePodIndex(t *testing.T) {
	c, control, _ := newTestClient(Placement{Environment: "us-west1-gcp"})

	require.NoError(t, c.CreateIndex(context.Background(), vector.NewSpec("questions", 384)))
	require.Len(t, control.pods, 1)
	req := control.pods[0]
	assert.Equal(t, int32(384), req.Dimension)
	assert.Equal(t, "us-west1-gcp", req.Environment)
	assert.Equal(t, DefaultPodType, req.PodType)
	assert.Empty(t, control.serverless)
}

func TestClient_CreateIndexMetric(t *testing.T) {
	tests := []struct {
		metric vector.Metric
		want   pinecone.IndexMetric
	}{
		{vector.MetricCosine, pinecone.Cosine},
		{vector.MetricDotProduct, pinecone.Dotproduct},
		{vector.MetricEuclidean, pinecone.Euclidean},
	}
	for _, tt := range tests {
		t.Run(string(tt.metric), func(t *testing.T) {
			c, control, _ := newTestClient(Placement{Environment: "us-west1-gcp"})

			spec := vector.NewSpec("questions", 384).WithMetric(tt.metric)
			require.NoError(t, c.CreateIndex(context.Background(), spec))
			require.Len(t, control.pods, 1)
			assert.Equal(t, tt.want, *control.pods[0].Metric)
		})
	}
}

func TestClient_CreateIndexWithoutPlacement(t *testing.T) {
	c, control, _ := newTestClient(Placement{})

	err := c.CreateIndex(context.Background(), vector.NewSpec("questions", 384))
	require.ErrorIs(t, err, ErrMissingPlacement)
	assert.Empty(t, control.serverless)
	assert.Empty(t, control.pods)
}

func TestClient_DescribeAndList(t *testing.T) {
	c, control, _ := newTestClient(Placement{Environment: "env"})
	ctx := context.Background()
	require.NoError(t, c.CreateIndex(ctx, vector.NewSpec("questions", 384)))

	desc, err := c.DescribeIndex(ctx, "questions")
	require.NoError(t, err)
	assert.False(t, desc.Ready())
	assert.Equal(t, 384, desc.Dimension())

	control.indexes["questions"].Status.Ready = true
	desc, err = c.DescribeIndex(ctx, "questions")
	require.NoError(t, err)
	assert.True(t, desc.Ready())

	list, err := c.ListIndexes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "questions", list[0].Name())

	_, err = c.DescribeIndex(ctx, "missing")
	require.ErrorIs(t, err, vector.ErrIndexNotFound)
}

func TestClient_UpsertCachesConnection(t *testing.T) {
	c, control, connector := newTestClient(Placement{Environment: "env"})
	ctx := context.Background()
	require.NoError(t, c.CreateIndex(ctx, vector.NewSpec("questions", 2)))

	vectors := []vector.Vector{
		vector.NewVector("a", []float32{1, 0}, vector.NewMetadata("How do I learn Go?")),
		vector.NewVector("b", []float32{0, 1}, vector.NewMetadata("What is a channel?")),
	}
	require.NoError(t, c.Upsert(ctx, "questions", "default", vectors))
	require.NoError(t, c.Upsert(ctx, "questions", "default", vectors[:1]))

	assert.Len(t, connector.calls, 1, "one connection per index and namespace")
	assert.Equal(t, connKey{index: "questions.svc", namespace: "default"}, connector.calls[0])
	assert.Zero(t, control.describes, "host is known from CreateIndex")

	data := connector.data
	require.Len(t, data.upserts, 2)
	first := data.upserts[0]
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].Id)
	assert.Equal(t, []float32{1, 0}, *first[0].Values)
	assert.Equal(t, "How do I learn Go?", first[0].Metadata.Fields["text"].GetStringValue())

	require.NoError(t, c.Upsert(ctx, "questions", "other", vectors))
	assert.Len(t, connector.calls, 2)
}

func TestClient_UpsertUnknownIndex(t *testing.T) {
	c, _, connector := newTestClient(Placement{Environment: "env"})

	err := c.Upsert(context.Background(), "missing", "default", []vector.Vector{
		vector.NewVector("a", []float32{1}, vector.NewMetadata("x")),
	})
	require.ErrorIs(t, err, vector.ErrIndexNotFound)
	assert.Empty(t, connector.calls)
}

func TestClient_Query(t *testing.T) {
	c, _, connector := newTestClient(Placement{Environment: "env"})
	ctx := context.Background()
	require.NoError(t, c.CreateIndex(ctx, vector.NewSpec("questions", 2)))

	meta, err := structpb.NewStruct(map[string]any{"text": "How do I learn Go?"})
	require.NoError(t, err)
	connector.data.response = &pinecone.QueryVectorsResponse{
		Matches: []*pinecone.ScoredVector{
			{Vector: &pinecone.Vector{Id: "a", Metadata: meta}, Score: 0.75},
			{Vector: &pinecone.Vector{Id: "b"}, Score: 0.5},
		},
	}

	matches, err := c.Query(ctx, "questions", vector.Query{
		Namespace:       "default",
		Values:          []float32{1, 0},
		TopK:            2,
		IncludeMetadata: true,
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "How do I learn Go?", matches[0].Text())
	assert.InDelta(t, 0.75, matches[0].Score(), 1e-6)
	assert.Empty(t, matches[1].Text())

	q := connector.data.query
	assert.Equal(t, uint32(2), q.TopK)
	assert.True(t, q.IncludeMetadata)
	assert.False(t, q.IncludeValues)

}

func TestClient_QueryRejectsTopKBelowOne(t *testing.T) {
	c, _, connector := newTestClient(Placement{Environment: "env"})
	ctx := context.Background()
	require.NoError(t, c.CreateIndex(ctx, vector.NewSpec("questions", 2)))

	for _, topK := range []int{0, -1} {
		_, err := c.Query(ctx, "questions", vector.Query{Namespace: "default", Values: []float32{1, 0}, TopK: topK})
		require.ErrorIs(t, err, vector.ErrInvalidTopK)
	}
	assert.Nil(t, connector.data.query, "nothing reaches Pinecone")
}

func TestClient_Count(t *testing.T) {
	c, _, connector := newTestClient(Placement{Environment: "env"})
	ctx := context.Background()
	require.NoError(t, c.CreateIndex(ctx, vector.NewSpec("questions", 2)))

	connector.data.stats = &pinecone.DescribeIndexStatsResponse{
		Namespaces: map[string]*pinecone.NamespaceSummary{"default": {VectorCount: 4}},
	}

	n, err := c.Count(ctx, "questions", "default")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = c.Count(ctx, "questions", "empty")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClient_DeleteIndexDropsConnections(t *testing.T) {
	c, _, connector := newTestClient(Placement{Environment: "env"})
	ctx := context.Background()
	require.NoError(t, c.CreateIndex(ctx, vector.NewSpec("questions", 1)))
	require.NoError(t, c.Upsert(ctx, "questions", "default", []vector.Vector{
		vector.NewVector("a", []float32{1}, vector.NewMetadata("x")),
	}))

	require.NoError(t, c.DeleteIndex(ctx, "questions"))
	assert.True(t, connector.data.closed)

	err := c.DeleteIndex(ctx, "questions")
	require.ErrorIs(t, err, vector.ErrIndexNotFound)
}

func TestClient_DeleteIndexError(t *testing.T) {
	c, control, _ := newTestClient(Placement{Environment: "env"})
	control.deleteErr = errors.New("permission denied")

	err := c.DeleteIndex(context.Background(), "questions")
	require.ErrorIs(t, err, control.deleteErr)
	assert.NotErrorIs(t, err, vector.ErrIndexNotFound)
}
