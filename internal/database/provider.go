package database

import (
	"context"
	"fmt"
)

// FaceIndexRebuilder is an interface for repositories that maintain an
// in-memory HNSW index over enrolled face vectors.
type FaceIndexRebuilder interface {
	// RebuildFaceIndex rebuilds the in-memory index from the store
	RebuildFaceIndex(ctx context.Context) error
	// FaceIndexCount returns the number of indexed members
	FaceIndexCount() int
	// IsFaceIndexEnabled returns whether the index is enabled
	IsFaceIndexEnabled() bool
	// SaveFaceIndex saves the current index to disk (if a path is configured)
	SaveFaceIndex() error
}

var (
	postgresMemberReader  func() MemberReader
	postgresMemberWriter  func() MemberWriter
	postgresPaymentWriter func() PaymentWriter
	postgresCheckinWriter func() CheckinWriter
	postgresFaceIndex     FaceIndexRebuilder
	postgresInitialized   bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(
	memberReader func() MemberReader,
	memberWriter func() MemberWriter,
	paymentWriter func() PaymentWriter,
	checkinWriter func() CheckinWriter,
) {
	postgresMemberReader = memberReader
	postgresMemberWriter = memberWriter
	postgresPaymentWriter = paymentWriter
	postgresCheckinWriter = checkinWriter
	postgresInitialized = true
}

// RegisterFaceIndexRebuilder registers the face index rebuilder so callers
// can rebuild or persist the index without knowing the concrete type.
func RegisterFaceIndexRebuilder(rebuilder FaceIndexRebuilder) {
	postgresFaceIndex = rebuilder
}

// GetFaceIndexRebuilder returns the registered rebuilder, or nil.
func GetFaceIndexRebuilder() FaceIndexRebuilder {
	return postgresFaceIndex
}

// ResetForTesting clears all registered backends. Tests only.
func ResetForTesting() {
	postgresMemberReader = nil
	postgresMemberWriter = nil
	postgresPaymentWriter = nil
	postgresCheckinWriter = nil
	postgresFaceIndex = nil
	postgresInitialized = false
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetMemberReader returns a MemberReader from the PostgreSQL backend
func GetMemberReader(ctx context.Context) (MemberReader, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresMemberReader == nil {
		return nil, fmt.Errorf("PostgreSQL member reader not registered")
	}
	return postgresMemberReader(), nil
}

// GetMemberWriter returns a MemberWriter from the PostgreSQL backend
func GetMemberWriter(ctx context.Context) (MemberWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresMemberWriter == nil {
		return nil, fmt.Errorf("PostgreSQL member writer not registered")
	}
	return postgresMemberWriter(), nil
}

// GetPaymentWriter returns a PaymentWriter from the PostgreSQL backend
func GetPaymentWriter(ctx context.Context) (PaymentWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresPaymentWriter == nil {
		return nil, fmt.Errorf("PostgreSQL payment writer not registered")
	}
	return postgresPaymentWriter(), nil
}

// GetCheckinWriter returns a CheckinWriter from the PostgreSQL backend
func GetCheckinWriter(ctx context.Context) (CheckinWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresCheckinWriter == nil {
		return nil, fmt.Errorf("PostgreSQL checkin writer not registered")
	}
	return postgresCheckinWriter(), nil
}
