// Package vector provides the embedding and index domain types shared by the
// load, query and delete flows.
package vector

// Metadata is the payload stored alongside each vector.
type Metadata struct {
	text string
}

// NewMetadata creates Metadata carrying the source text.
func NewMetadata(text string) Metadata {
	return Metadata{text: text}
}

// Text returns the source text the vector was computed from.
func (m Metadata) Text() string { return m.text }

// Vector is an embedding ready to be written to an index.
type Vector struct {
	id       string
	values   []float32
	metadata Metadata
}

// NewVector creates a Vector. The values are copied.
func NewVector(id string, values []float32, metadata Metadata) Vector {
	cp := make([]float32, len(values))
	copy(cp, values)
	return Vector{
		id:       id,
		values:   cp,
		metadata: metadata,
	}
}

// ID returns the vector identifier.
func (v Vector) ID() string { return v.id }

// Values returns a copy of the embedding values.
func (v Vector) Values() []float32 {
	cp := make([]float32, len(v.values))
	copy(cp, v.values)
	return cp
}

// Dimension returns the number of values.
func (v Vector) Dimension() int { return len(v.values) }

// Metadata returns the attached metadata.
func (v Vector) Metadata() Metadata { return v.metadata }

// Text is shorthand for Metadata().Text().
func (v Vector) Text() string { return v.metadata.text }

// Match is a single nearest-neighbour hit.
type Match struct {
	id    string
	text  string
	score float64
}

// NewMatch creates a new Match.
func NewMatch(id, text string, score float64) Match {
	return Match{
		id:    id,
		text:  text,
		score: score,
	}
}

// ID returns the matched vector identifier.
func (m Match) ID() string { return m.id }

// Text returns the text stored in the matched vector's metadata.
func (m Match) Text() string { return m.text }

// Score returns the similarity score reported by the store.
func (m Match) Score() float64 { return m.score }
