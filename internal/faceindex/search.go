package faceindex

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// DefaultTolerance is the conventional match threshold for dlib embeddings.
const DefaultTolerance = 0.6

// Match is a record within tolerance of a query.
type Match struct {
	Name     string
	Distance float64
	// Position is the record's insertion position in the searched index.
	Position int
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Search returns every record whose distance to query is <= tolerance,
// best match first. Ties keep insertion order. Search does not modify idx
// and may be called concurrently.
func Search(query Embedding, idx *Index, tolerance float64) ([]Match, error) {
	if tolerance < 0 || math.IsNaN(tolerance) {
		return nil, fmt.Errorf("%w: tolerance must be a non-negative number, got %v", ErrInvalidArgument, tolerance)
	}

	matches := []Match{}
	if idx.Len() == 0 {
		return matches, nil
	}

	for i, rec := range idx.Records {
		dist, err := Distance(query, rec.Embedding)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.Name, err)
		}
		if dist <= tolerance {
			matches = append(matches, Match{Name: rec.Name, Distance: dist, Position: i})
		}
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	return matches, nil
}
