package vector

// State is the readiness state of an index.
type State string

// State values.
const (
	StateCreating State = "creating"
	StateReady    State = "ready"
)

// Metric is the similarity metric an index is built with.
type Metric string

// Metric values.
const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dotproduct"
	MetricEuclidean  Metric = "euclidean"
)

// Description describes an index as reported by the store.
type Description struct {
	name      string
	dimension int
	state     State
}

// NewDescription creates a new Description.
func NewDescription(name string, dimension int, state State) Description {
	return Description{
		name:      name,
		dimension: dimension,
		state:     state,
	}
}

// Name returns the index name.
func (d Description) Name() string { return d.name }

// Dimension returns the vector dimension of the index.
func (d Description) Dimension() int { return d.dimension }

// State returns the readiness state.
func (d Description) State() State { return d.state }

// Ready reports whether the index accepts reads and writes.
func (d Description) Ready() bool { return d.state == StateReady }

// Spec is a request to create an index.
type Spec struct {
	name      string
	dimension int
	metric    Metric
}

// NewSpec creates a Spec using the cosine metric.
func NewSpec(name string, dimension int) Spec {
	return Spec{
		name:      name,
		dimension: dimension,
		metric:    MetricCosine,
	}
}

// WithMetric returns a copy of the spec using the given metric.
func (s Spec) WithMetric(m Metric) Spec {
	s.metric = m
	return s
}

// Name returns the index name.
func (s Spec) Name() string { return s.name }

// Dimension returns the vector dimension.
func (s Spec) Dimension() int { return s.dimension }

// Metric returns the similarity metric.
func (s Spec) Metric() Metric { return s.metric }
