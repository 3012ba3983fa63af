package verification

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kozaktomas/gym-gate/internal/biometric"
	"github.com/kozaktomas/gym-gate/internal/database"
	"github.com/kozaktomas/gym-gate/internal/database/mock"
)

const testThreshold = 0.35

func faceVec(x float64) []float32 {
	v := make([]float32, biometric.VectorDim)
	v[0] = float32(x)
	return v
}

func enrolledMember(uid, name string, x float64, expiresAt *time.Time) database.Member {
	return database.Member{
		UID:          uid,
		Name:         name,
		FaceVector:   faceVec(x),
		FaceEnrolled: true,
		ExpiresAt:    expiresAt,
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestVerify_NoEnrollments(t *testing.T) {
	store := mock.NewMemberStore()
	// A member without a vector does not count as an enrollment.
	store.AddMember(database.Member{UID: "x", Name: "X"})
	v := NewVerifier(store, testThreshold)

	_, err := v.Verify(context.Background(), faceVec(0))
	if !errors.Is(err, ErrNoEnrollments) {
		t.Errorf("expected ErrNoEnrollments, got %v", err)
	}
}

func TestVerify_NoMatch(t *testing.T) {
	store := mock.NewMemberStore()
	store.AddMember(enrolledMember("x", "X", 0.6, nil))
	v := NewVerifier(store, testThreshold)

	_, err := v.Verify(context.Background(), faceVec(0))
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestVerify_WrongLengthProbe(t *testing.T) {
	// A probe of the wrong length is a capture-side fault and must not be
	// softened into the "no match found" the gate shows for strangers.
	store := mock.NewMemberStore()
	store.AddMember(enrolledMember("x", "X", 0.1, nil))
	v := NewVerifier(store, testThreshold)

	_, err := v.Verify(context.Background(), make([]float32, 64))
	var dimErr *biometric.DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if errors.Is(err, ErrNoMatch) {
		t.Error("dimension mismatch must not be reported as no match")
	}
}

func TestVerify_ExactMatch(t *testing.T) {
	// Scenario: enroll X with V1, verify with V1: similarity 1.0.
	store := mock.NewMemberStore()
	expiry := time.Now().Add(30 * 24 * time.Hour)
	store.AddMember(enrolledMember("x", "Jan Novák", 0.4, &expiry))
	v := NewVerifier(store, testThreshold)

	result, err := v.Verify(context.Background(), faceVec(0.4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Member.UID != "x" {
		t.Errorf("expected member x, got %s", result.Member.UID)
	}
	if result.Similarity != 1 {
		t.Errorf("expected similarity 1, got %v", result.Similarity)
	}
	if !result.IsActive {
		t.Error("expected active membership")
	}
}

func TestVerify_BestMatchWins(t *testing.T) {
	store := mock.NewMemberStore()
	store.AddMember(enrolledMember("far", "Far", 0.3, nil))
	store.AddMember(enrolledMember("near", "Near", 0.1, nil))
	v := NewVerifier(store, testThreshold)

	result, err := v.Verify(context.Background(), faceVec(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Member.UID != "near" {
		t.Errorf("expected closest member near, got %s", result.Member.UID)
	}
	if math.Abs(result.Distance-0.1) > 1e-6 {
		t.Errorf("expected distance 0.1, got %v", result.Distance)
	}
}

func TestVerify_MembershipStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		expiresAt    *time.Time
		wantActive   bool
		wantDaysLeft int
	}{
		{"no expiry set", nil, false, 0},
		{"expired yesterday", timePtr(now.Add(-24 * time.Hour)), false, 0},
		{"expires in 12 hours rounds up to one day", timePtr(now.Add(12 * time.Hour)), true, 1},
		{"expires in exactly 10 days", timePtr(now.Add(10 * 24 * time.Hour)), true, 10},
		{"expires in 10.5 days rounds up", timePtr(now.Add(10*24*time.Hour + 12*time.Hour)), true, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mock.NewMemberStore()
			store.AddMember(enrolledMember("x", "X", 0, tt.expiresAt))
			v := NewVerifier(store, testThreshold)
			v.now = func() time.Time { return now }

			result, err := v.Verify(context.Background(), faceVec(0))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.IsActive != tt.wantActive {
				t.Errorf("IsActive = %v, want %v", result.IsActive, tt.wantActive)
			}
			if result.DaysRemaining != tt.wantDaysLeft {
				t.Errorf("DaysRemaining = %d, want %d", result.DaysRemaining, tt.wantDaysLeft)
			}
		})
	}
}

func TestVerify_ReadOnly(t *testing.T) {
	store := mock.NewMemberStore()
	store.AddMember(enrolledMember("x", "X", 0, nil))
	v := NewVerifier(store, testThreshold)

	if _, err := v.Verify(context.Background(), faceVec(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	x, _ := store.GetMember(context.Background(), "x")
	if len(x.FaceVector) != biometric.VectorDim || !x.FaceEnrolled {
		t.Error("verification must not modify stored members")
	}
}
