package database

import (
	"context"
)

// MemberReader provides read-only access to member records.
type MemberReader interface {
	// GetMember retrieves a member by UID, returns nil if not found
	GetMember(ctx context.Context, uid string) (*Member, error)
	// ListMembers returns all members ordered by creation time
	ListMembers(ctx context.Context) ([]Member, error)
	// ListEnrolled returns members with a face vector, in stable creation order.
	// excludeUID removes one member from the result (empty string excludes nobody),
	// so re-enrollment never compares a member against their own stored vector.
	ListEnrolled(ctx context.Context, excludeUID string) ([]Member, error)
	// SearchMembersByName finds members whose normalized name matches the query
	SearchMembersByName(ctx context.Context, name string) ([]Member, error)
	// CountMembers returns the total number of member records
	CountMembers(ctx context.Context) (int, error)
	// CountEnrolled returns the number of members with a face vector
	CountEnrolled(ctx context.Context) (int, error)
	// FindSimilarFaces returns up to limit enrolled members ordered by Euclidean
	// distance to the given vector, with distances. Backed by the HNSW index
	// when enabled, pgvector ordering otherwise.
	FindSimilarFaces(ctx context.Context, vector []float32, limit int) ([]Member, []float64, error)
}

// MemberWriter provides write access to member records.
type MemberWriter interface {
	MemberReader

	// CreateMember inserts a new member record
	CreateMember(ctx context.Context, m *Member) error
	// UpdateMember updates name, external reference, email, plan and expiry
	UpdateMember(ctx context.Context, m *Member) error
	// SetFaceVector stores the face vector for a member and sets the enrolled flag
	SetFaceVector(ctx context.Context, uid string, vector []float32) error
	// ClearFaceVector removes the face vector and resets the enrolled flag.
	// The member record itself stays.
	ClearFaceVector(ctx context.Context, uid string) error
}

// PaymentWriter provides access to membership payments.
type PaymentWriter interface {
	// RecordPayment inserts a payment and extends the member's expiry to the
	// covered period end when it is later than the current expiry
	RecordPayment(ctx context.Context, p *Payment) error
	// ListPayments returns payments for a member, newest first
	ListPayments(ctx context.Context, memberUID string) ([]Payment, error)
	// SumPayments returns total cents paid in the given window
	SumPayments(ctx context.Context, from, to int64) (int64, error)
}

// CheckinWriter provides access to the attendance log.
type CheckinWriter interface {
	// RecordCheckin inserts an attendance record
	RecordCheckin(ctx context.Context, c *Checkin) error
	// CountCheckins returns the number of check-ins in the given unix window
	CountCheckins(ctx context.Context, from, to int64) (int, error)
	// ListCheckins returns check-ins for a member, newest first
	ListCheckins(ctx context.Context, memberUID string, limit int) ([]Checkin, error)
}
