package persistence

import (
	"math"
	"sort"

	"github.com/helixml/semsearch/domain/vector"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 if either vector has zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// DotProduct returns the inner product of two equal-length vectors.
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// SquaredEuclidean returns the squared L2 distance of two equal-length vectors.
func SquaredEuclidean(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

type scored struct {
	row   VectorModel
	score float64
}

// topK ranks rows against query. Cosine and dot product rank highest first;
// euclidean reports squared distance and ranks lowest first. Ties keep
// insertion order.
func topK(query []float32, rows []VectorModel, k int, metric vector.Metric) []vector.Match {
	if len(rows) == 0 || k <= 0 {
		return []vector.Match{}
	}

	results := make([]scored, len(rows))
	for i, row := range rows {
		var s float64
		switch metric {
		case vector.MetricDotProduct:
			s = DotProduct(query, row.Values)
		case vector.MetricEuclidean:
			s = SquaredEuclidean(query, row.Values)
		default:
			s = CosineSimilarity(query, row.Values)
		}
		results[i] = scored{row: row, score: s}
	}

	ascending := metric == vector.MetricEuclidean
	sort.SliceStable(results, func(i, j int) bool {
		if ascending {
			return results[i].score < results[j].score
		}
		return results[i].score > results[j].score
	})

	if k > len(results) {
		k = len(results)
	}

	matches := make([]vector.Match, k)
	for i, r := range results[:k] {
		matches[i] = vector.NewMatch(r.row.VectorID, r.row.Text, r.score)
	}
	return matches
}
