// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/gym-gate/internal/biometric"
	"github.com/kozaktomas/gym-gate/internal/database"
)

// MemberStore is an in-memory implementation of database.MemberWriter,
// database.PaymentWriter and database.CheckinWriter. Members keep insertion
// order so scan-order assertions in tests are deterministic.
type MemberStore struct {
	mu       sync.RWMutex
	members  map[string]*database.Member
	order    []string // insertion order of member UIDs
	payments []database.Payment
	checkins []database.Checkin

	// Error injection
	GetError          error
	ListError         error
	ListEnrolledError error
	CreateError       error
	UpdateError       error
	SetVectorError    error
	ClearVectorError  error

	// SetVectorDelay, when set, is waited inside SetFaceVector while the
	// store lock is NOT held. Used by concurrency tests to widen the
	// check-then-write window.
	SetVectorDelay time.Duration
}

// NewMemberStore creates a new empty mock store.
func NewMemberStore() *MemberStore {
	return &MemberStore{
		members: make(map[string]*database.Member),
	}
}

// AddMember inserts a member directly, bypassing error injection.
func (s *MemberStore) AddMember(m database.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.UID]; !ok {
		s.order = append(s.order, m.UID)
	}
	s.members[m.UID] = &m
}

// GetMember retrieves a member by UID, nil when not found.
func (s *MemberStore) GetMember(ctx context.Context, uid string) (*database.Member, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[uid]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

// ListMembers returns all members in insertion order.
func (s *MemberStore) ListMembers(ctx context.Context) ([]database.Member, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]database.Member, 0, len(s.order))
	for _, uid := range s.order {
		result = append(result, *s.members[uid])
	}
	return result, nil
}

// ListEnrolled returns members with a face vector, in insertion order.
func (s *MemberStore) ListEnrolled(ctx context.Context, excludeUID string) ([]database.Member, error) {
	if s.ListEnrolledError != nil {
		return nil, s.ListEnrolledError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []database.Member
	for _, uid := range s.order {
		m := s.members[uid]
		if uid == excludeUID || !m.FaceEnrolled {
			continue
		}
		result = append(result, *m)
	}
	return result, nil
}

// SearchMembersByName finds members whose normalized name contains the query.
func (s *MemberStore) SearchMembersByName(ctx context.Context, name string) ([]database.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	normalized := database.NormalizeMemberName(name)
	if normalized == "" {
		return nil, nil
	}
	var result []database.Member
	for _, uid := range s.order {
		m := s.members[uid]
		if strings.Contains(database.NormalizeMemberName(m.Name), normalized) {
			result = append(result, *m)
		}
	}
	return result, nil
}

// CountMembers returns the number of members.
func (s *MemberStore) CountMembers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members), nil
}

// CountEnrolled returns the number of members with a face vector.
func (s *MemberStore) CountEnrolled(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, m := range s.members {
		if m.FaceEnrolled {
			count++
		}
	}
	return count, nil
}

// FindSimilarFaces returns enrolled members ordered by exact Euclidean distance.
func (s *MemberStore) FindSimilarFaces(ctx context.Context, vector []float32, limit int) ([]database.Member, []float64, error) {
	enrolled, err := s.ListEnrolled(ctx, "")
	if err != nil {
		return nil, nil, err
	}

	type scored struct {
		member   database.Member
		distance float64
	}
	var results []scored
	for _, m := range enrolled {
		d, err := biometric.EuclideanDistance(vector, m.FaceVector)
		if err != nil {
			continue
		}
		results = append(results, scored{member: m, distance: d})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].distance < results[j].distance })

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	members := make([]database.Member, len(results))
	distances := make([]float64, len(results))
	for i, r := range results {
		members[i] = r.member
		distances[i] = r.distance
	}
	return members, distances, nil
}

// CreateMember inserts a new member.
func (s *MemberStore) CreateMember(ctx context.Context, m *database.Member) error {
	if s.CreateError != nil {
		return s.CreateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.UID]; ok {
		return fmt.Errorf("member %s already exists", m.UID)
	}
	cp := *m
	s.members[m.UID] = &cp
	s.order = append(s.order, m.UID)
	return nil
}

// UpdateMember updates member attributes.
func (s *MemberStore) UpdateMember(ctx context.Context, m *database.Member) error {
	if s.UpdateError != nil {
		return s.UpdateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.members[m.UID]
	if !ok {
		return fmt.Errorf("member %s not found", m.UID)
	}
	existing.Name = m.Name
	existing.ExternalRef = m.ExternalRef
	existing.Email = m.Email
	existing.Plan = m.Plan
	existing.ExpiresAt = m.ExpiresAt
	existing.UpdatedAt = time.Now()
	return nil
}

// SetFaceVector stores a face vector and sets the enrolled flag.
func (s *MemberStore) SetFaceVector(ctx context.Context, uid string, vector []float32) error {
	if s.SetVectorError != nil {
		return s.SetVectorError
	}
	if s.SetVectorDelay > 0 {
		time.Sleep(s.SetVectorDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[uid]
	if !ok {
		return fmt.Errorf("member %s not found", uid)
	}
	m.FaceVector = append([]float32(nil), vector...)
	m.FaceEnrolled = true
	m.UpdatedAt = time.Now()
	return nil
}

// ClearFaceVector removes the face vector and resets the enrolled flag.
func (s *MemberStore) ClearFaceVector(ctx context.Context, uid string) error {
	if s.ClearVectorError != nil {
		return s.ClearVectorError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[uid]
	if !ok {
		return fmt.Errorf("member %s not found", uid)
	}
	m.FaceVector = nil
	m.FaceEnrolled = false
	m.UpdatedAt = time.Now()
	return nil
}

// RecordPayment inserts a payment and extends the member's expiry.
func (s *MemberStore) RecordPayment(ctx context.Context, p *database.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[p.MemberUID]
	if !ok {
		return fmt.Errorf("member %s not found", p.MemberUID)
	}
	cp := *p
	cp.ID = int64(len(s.payments) + 1)
	s.payments = append(s.payments, cp)
	if m.ExpiresAt == nil || p.PeriodEnd.After(*m.ExpiresAt) {
		end := p.PeriodEnd
		m.ExpiresAt = &end
	}
	return nil
}

// ListPayments returns payments for a member, newest first.
func (s *MemberStore) ListPayments(ctx context.Context, memberUID string) ([]database.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []database.Payment
	for i := len(s.payments) - 1; i >= 0; i-- {
		if s.payments[i].MemberUID == memberUID {
			result = append(result, s.payments[i])
		}
	}
	return result, nil
}

// SumPayments returns total cents paid in the given unix window.
func (s *MemberStore) SumPayments(ctx context.Context, from, to int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, p := range s.payments {
		at := p.PaidAt.Unix()
		if at >= from && at < to {
			total += p.AmountCents
		}
	}
	return total, nil
}

// RecordCheckin inserts an attendance record.
func (s *MemberStore) RecordCheckin(ctx context.Context, c *database.Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.ID = int64(len(s.checkins) + 1)
	s.checkins = append(s.checkins, cp)
	return nil
}

// CountCheckins returns the number of check-ins in the given unix window.
func (s *MemberStore) CountCheckins(ctx context.Context, from, to int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, c := range s.checkins {
		at := c.CheckedInAt.Unix()
		if at >= from && at < to {
			count++
		}
	}
	return count, nil
}

// ListCheckins returns check-ins for a member, newest first.
func (s *MemberStore) ListCheckins(ctx context.Context, memberUID string, limit int) ([]database.Checkin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []database.Checkin
	for i := len(s.checkins) - 1; i >= 0; i-- {
		if s.checkins[i].MemberUID == memberUID {
			result = append(result, s.checkins[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}
