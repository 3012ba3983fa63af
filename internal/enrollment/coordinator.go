// Package enrollment coordinates biometric enrollment: duplicate detection
// against the enrolled population followed by a single vector write.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/gym-gate/internal/biometric"
	"github.com/kozaktomas/gym-gate/internal/database"
)

// ErrMemberNotFound is returned when the member UID does not exist in the store.
var ErrMemberNotFound = errors.New("member not found")

// Store is the subset of member storage the coordinator needs.
type Store interface {
	GetMember(ctx context.Context, uid string) (*database.Member, error)
	ListEnrolled(ctx context.Context, excludeUID string) ([]database.Member, error)
	SetFaceVector(ctx context.Context, uid string, vector []float32) error
	ClearFaceVector(ctx context.Context, uid string) error
}

// DuplicateError reports that the probe vector already matches another
// enrolled member. It carries the conflicting member's public attributes and
// the computed similarity so an operator can review the conflict; it never
// carries the stored vector. It is an expected business outcome, not a fault.
type DuplicateError struct {
	MemberUID   string
	Name        string
	ExternalRef string
	Distance    float64
	Similarity  float64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("face already enrolled for member %s (%s), similarity %.2f", e.Name, e.MemberUID, e.Similarity)
}

// Coordinator runs the duplicate-check-then-write sequence for face
// enrollment. The sequence is serialized by a coarse lock: two concurrent
// enrollments with near-identical vectors would otherwise both pass the
// duplicate check before either write lands. At gym-scale populations the
// full scan under the lock stays cheap.
type Coordinator struct {
	store     Store
	threshold float64
	mu        sync.Mutex
}

// NewCoordinator creates an enrollment coordinator with the given duplicate
// distance threshold.
func NewCoordinator(store Store, threshold float64) *Coordinator {
	return &Coordinator{store: store, threshold: threshold}
}

// toCandidates converts members to engine candidates, preserving store order.
func toCandidates(members []database.Member) []biometric.Candidate {
	candidates := make([]biometric.Candidate, len(members))
	for i := range members {
		candidates[i] = biometric.Candidate{ID: members[i].UID, Vector: members[i].FaceVector}
	}
	return candidates
}

// duplicateError builds a DuplicateError from an engine match.
func (c *Coordinator) duplicateError(ctx context.Context, match *biometric.Match) error {
	matched, err := c.store.GetMember(ctx, match.ID)
	if err != nil {
		return fmt.Errorf("fetching conflicting member %s: %w", match.ID, err)
	}
	dup := &DuplicateError{
		MemberUID:  match.ID,
		Distance:   match.Distance,
		Similarity: match.Similarity,
	}
	if matched != nil {
		dup.Name = matched.Name
		dup.ExternalRef = matched.ExternalRef
	}
	return dup
}

// checkDuplicate runs the duplicate scan excluding the given member.
// Returns a DuplicateError when the probe conflicts with someone else.
func (c *Coordinator) checkDuplicate(ctx context.Context, probe []float32, excludeUID string) error {
	population, err := c.store.ListEnrolled(ctx, excludeUID)
	if err != nil {
		return fmt.Errorf("listing enrolled members: %w", err)
	}

	match, err := biometric.FindDuplicate(ctx, probe, toCandidates(population), c.threshold)
	if err != nil {
		return err
	}
	if match != nil {
		return c.duplicateError(ctx, match)
	}
	return nil
}

// Enroll stores the face vector for a member after verifying it does not
// duplicate another enrolled member. The member's own stored vector is
// excluded from the check, so re-enrollment with a refreshed capture never
// self-conflicts. Exactly one write happens, and only on the no-duplicate
// path.
func (c *Coordinator) Enroll(ctx context.Context, memberUID string, vector []float32) error {
	member, err := c.store.GetMember(ctx, memberUID)
	if err != nil {
		return fmt.Errorf("fetching member %s: %w", memberUID, err)
	}
	if member == nil {
		return ErrMemberNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkDuplicate(ctx, vector, memberUID); err != nil {
		return err
	}

	if err := c.store.SetFaceVector(ctx, memberUID, vector); err != nil {
		return fmt.Errorf("storing face vector: %w", err)
	}
	return nil
}

// ValidateOnly runs the duplicate check without writing anything.
// excludeUID may be empty; when set, that member is excluded from the scan.
// Returns nil when the vector conflicts with nobody, a DuplicateError
// otherwise.
func (c *Coordinator) ValidateOnly(ctx context.Context, vector []float32, excludeUID string) error {
	return c.checkDuplicate(ctx, vector, excludeUID)
}

// Remove clears a member's biometric registration. The member record stays.
func (c *Coordinator) Remove(ctx context.Context, memberUID string) error {
	member, err := c.store.GetMember(ctx, memberUID)
	if err != nil {
		return fmt.Errorf("fetching member %s: %w", memberUID, err)
	}
	if member == nil {
		return ErrMemberNotFound
	}

	if err := c.store.ClearFaceVector(ctx, memberUID); err != nil {
		return fmt.Errorf("clearing face vector: %w", err)
	}
	return nil
}
