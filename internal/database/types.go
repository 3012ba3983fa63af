package database

import (
	"time"
)

// Member represents a gym member record. The face vector is optional: a
// member record exists before biometric enrollment and survives removal of
// the biometric registration.
type Member struct {
	UID          string
	Name         string
	ExternalRef  string // national id or other external identifier
	Email        string
	Plan         string
	ExpiresAt    *time.Time // membership expiry, nil when never set
	FaceVector   []float32  // 128-dim face embedding, empty when not enrolled
	FaceEnrolled bool       // true iff FaceVector is present
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasActiveMembership reports whether the membership is paid up at the given instant.
func (m *Member) HasActiveMembership(now time.Time) bool {
	return m.ExpiresAt != nil && m.ExpiresAt.After(now)
}

// Payment is one recorded membership payment.
type Payment struct {
	ID          int64
	MemberUID   string
	AmountCents int64
	Currency    string
	Plan        string
	PeriodStart time.Time
	PeriodEnd   time.Time
	PaidAt      time.Time
}

// Checkin is one attendance record written after a successful gate verification.
type Checkin struct {
	ID          int64
	MemberUID   string
	Similarity  float64
	CheckedInAt time.Time
}
