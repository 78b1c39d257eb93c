package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/helixml/semsearch/domain/document"
	"github.com/helixml/semsearch/domain/vector"
)

// fakeEmbedder embeds a text as [len(text), 1] and fails for texts listed in failOn.
type fakeEmbedder struct {
	failOn map[string]bool
	calls  atomic.Int64

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	block       chan struct{}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (vector.Vector, error) {
	f.calls.Add(1)

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return vector.Vector{}, ctx.Err()
		}
	}

	if f.failOn[text] {
		return vector.Vector{}, fmt.Errorf("embed %q: %w", text, errEmbed)
	}
	return vector.NewVector("id-"+text, []float32{float32(len(text)), 1}, vector.NewMetadata(text)), nil
}

var errEmbed = errors.New("embedding failed")

// fakeStore is an in-memory vector.Store that records every call.
type fakeStore struct {
	mu sync.Mutex

	indexes      map[string]vector.Description
	listErr      error
	createErr    error
	deleteErr    error
	readyAfter   int
	describes    int
	creates      int
	created      vector.Spec
	upsertCalls  [][]vector.Vector
	failUpsertID string
	matches      []vector.Match
	lastQuery    vector.Query
	count        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{indexes: map[string]vector.Description{}}
}

func (f *fakeStore) ListIndexes(_ context.Context) ([]vector.Description, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]vector.Description, 0, len(f.indexes))
	for _, d := range f.indexes {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeStore) CreateIndex(_ context.Context, spec vector.Spec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	f.created = spec
	f.indexes[spec.Name()] = vector.NewDescription(spec.Name(), spec.Dimension(), vector.StateCreating)
	return nil
}

func (f *fakeStore) DescribeIndex(_ context.Context, name string) (vector.Description, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.indexes[name]
	if !ok {
		return vector.Description{}, vector.ErrIndexNotFound
	}
	f.describes++
	if f.readyAfter >= 0 && f.describes > f.readyAfter {
		d = vector.NewDescription(d.Name(), d.Dimension(), vector.StateReady)
		f.indexes[name] = d
	}
	return d, nil
}

func (f *fakeStore) DeleteIndex(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.indexes[name]; !ok {
		return vector.ErrIndexNotFound
	}
	delete(f.indexes, name)
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, _, _ string, vectors []vector.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls = append(f.upsertCalls, vectors)
	for _, v := range vectors {
		if f.failUpsertID != "" && v.ID() == f.failUpsertID {
			return errors.New("upsert rejected")
		}
	}
	return nil
}

func (f *fakeStore) Query(_ context.Context, _ string, q vector.Query) ([]vector.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	return f.matches, nil
}

func (f *fakeStore) Count(_ context.Context, _, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

func (f *fakeStore) upserted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.upsertCalls {
		n += len(c)
	}
	return n
}

// fakeSource returns a fixed table or error.
type fakeSource struct {
	table document.Table
	err   error
}

func (f fakeSource) Parse(_ string) (document.Table, error) {
	return f.table, f.err
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text-%03d", i)
	}
	return out
}
