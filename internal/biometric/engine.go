package biometric

import (
	"context"
	"log"
)

// cancelCheckInterval is how many candidates are scanned between context
// cancellation checks.
const cancelCheckInterval = 64

// Candidate is one enrolled identity offered to the engine for comparison.
// Candidates without a vector are skipped during scans.
type Candidate struct {
	ID     string
	Vector []float32
}

// Match describes a successful comparison. A nil *Match means no candidate
// came in under the threshold.
type Match struct {
	ID         string
	Distance   float64
	Similarity float64
}

// validateProbe checks the probe vector before any scan starts. A probe of
// the wrong length usually means the embedding service changed its model;
// that is a hard error, never a scan that quietly matches nothing.
func validateProbe(probe []float32) error {
	if len(probe) != VectorDim {
		return &DimensionMismatchError{LenA: len(probe), LenB: VectorDim}
	}
	return nil
}

// candidateDistance computes the distance to a single candidate.
// A candidate whose stored vector does not match the probe's length is
// reported as skippable: one corrupted record must not abort the whole scan.
func candidateDistance(probe []float32, c *Candidate) (float64, bool) {
	d, err := EuclideanDistance(probe, c.Vector)
	if err != nil {
		log.Printf("biometric: skipping candidate %s: %v", c.ID, err)
		return 0, false
	}
	return d, true
}

// FindDuplicate scans the population in order and returns the first candidate
// whose distance to the probe is strictly below threshold. Duplicate
// detection only needs a witness of conflict, not the closest one, so the
// scan short-circuits on the first hit. Returns nil when no candidate
// conflicts or the population is empty.
func FindDuplicate(ctx context.Context, probe []float32, population []Candidate, threshold float64) (*Match, error) {
	if err := validateProbe(probe); err != nil {
		return nil, err
	}

	for i := range population {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		c := &population[i]
		if len(c.Vector) == 0 {
			continue
		}
		d, ok := candidateDistance(probe, c)
		if !ok {
			continue
		}
		if d < threshold {
			return &Match{ID: c.ID, Distance: d, Similarity: Similarity(d)}, nil
		}
	}
	return nil, nil
}

// Identify scans the whole population and returns the candidate with the
// minimum distance, but only when that minimum is strictly below threshold.
// On an exact distance tie the first candidate in population order wins.
// Returns nil when nothing is close enough.
//
// This is deliberately a separate function from FindDuplicate: the two call
// modes have different tie-break contracts and must not be merged behind a
// flag.
func Identify(ctx context.Context, probe []float32, population []Candidate, threshold float64) (*Match, error) {
	if err := validateProbe(probe); err != nil {
		return nil, err
	}

	best := -1
	bestDist := 0.0
	for i := range population {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		c := &population[i]
		if len(c.Vector) == 0 {
			continue
		}
		d, ok := candidateDistance(probe, c)
		if !ok {
			continue
		}
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}

	if best < 0 || bestDist >= threshold {
		return nil, nil
	}
	return &Match{ID: population[best].ID, Distance: bestDist, Similarity: Similarity(bestDist)}, nil
}
