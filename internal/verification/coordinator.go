// Package verification coordinates access-gate identification: best-match
// lookup over the enrolled population plus membership status computation.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kozaktomas/gym-gate/internal/biometric"
	"github.com/kozaktomas/gym-gate/internal/database"
)

var (
	// ErrNoEnrollments is returned when nobody has a face vector enrolled yet.
	ErrNoEnrollments = errors.New("no enrolled members")

	// ErrNoMatch is returned when the probe matches no enrolled member.
	// The message deliberately leaks nothing about the population.
	ErrNoMatch = errors.New("no match found")
)

// Store is the subset of member storage the verifier needs.
type Store interface {
	GetMember(ctx context.Context, uid string) (*database.Member, error)
	ListEnrolled(ctx context.Context, excludeUID string) ([]database.Member, error)
}

// Result describes a successful gate identification.
type Result struct {
	Member        database.Member
	Distance      float64
	Similarity    float64
	IsActive      bool
	DaysRemaining int
}

// Verifier identifies probe vectors against the enrolled population. It is
// read-only and safe for concurrent use.
type Verifier struct {
	store     Store
	threshold float64
	now       func() time.Time // swapped in tests
}

// NewVerifier creates a verifier with the given identify distance threshold.
func NewVerifier(store Store, threshold float64) *Verifier {
	return &Verifier{store: store, threshold: threshold, now: time.Now}
}

// membershipStatus computes the active flag and remaining whole days.
func membershipStatus(m *database.Member, now time.Time) (bool, int) {
	if !m.HasActiveMembership(now) {
		return false, 0
	}
	days := int(math.Ceil(m.ExpiresAt.Sub(now).Hours() / 24))
	return true, days
}

// Verify identifies the probe vector and returns the matched member with
// membership status. Returns ErrNoEnrollments for an empty population and
// ErrNoMatch when nothing is within threshold; both are expected outcomes.
func (v *Verifier) Verify(ctx context.Context, probe []float32) (*Result, error) {
	population, err := v.store.ListEnrolled(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing enrolled members: %w", err)
	}
	if len(population) == 0 {
		return nil, ErrNoEnrollments
	}

	candidates := make([]biometric.Candidate, len(population))
	byUID := make(map[string]*database.Member, len(population))
	for i := range population {
		candidates[i] = biometric.Candidate{ID: population[i].UID, Vector: population[i].FaceVector}
		byUID[population[i].UID] = &population[i]
	}

	match, err := biometric.Identify(ctx, probe, candidates, v.threshold)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrNoMatch
	}

	matched := byUID[match.ID]
	now := v.now()
	active, days := membershipStatus(matched, now)

	return &Result{
		Member:        *matched,
		Distance:      match.Distance,
		Similarity:    match.Similarity,
		IsActive:      active,
		DaysRemaining: days,
	}, nil
}
