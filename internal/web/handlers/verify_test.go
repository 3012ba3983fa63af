package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/gym-gate/internal/database"
)

func setupGateHandler() *GateHandler {
	cfg := testConfig()
	faces := NewFaceHandler(cfg, nil)
	return NewGateHandler(cfg, nil, faces)
}

func TestGateHandler_Verify_Success(t *testing.T) {
	store := setupMemberStore(t)
	expires := time.Now().Add(10 * 24 * time.Hour)
	store.AddMember(database.Member{
		UID:          "m1",
		Name:         "Active Member",
		ExpiresAt:    &expires,
		FaceVector:   testVector(0.5),
		FaceEnrolled: true,
	})
	store.AddMember(database.Member{
		UID:          "m2",
		Name:         "Other Member",
		FaceVector:   testVector(3.0),
		FaceEnrolled: true,
	})
	handler := setupGateHandler()

	req := postVector(t, "/api/v1/verify", testVector(0.55), nil)
	recorder := httptest.NewRecorder()
	handler.Verify(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp VerifyResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Member.UID != "m1" {
		t.Errorf("expected match with 'm1', got '%s'", resp.Member.UID)
	}
	if !resp.Active || !resp.Allowed {
		t.Error("expected an active membership to be allowed")
	}
	if resp.DaysRemaining < 9 || resp.DaysRemaining > 10 {
		t.Errorf("expected around 10 days remaining, got %d", resp.DaysRemaining)
	}

	// A dry run must not record attendance.
	if n, _ := store.CountCheckins(t.Context(), 0, time.Now().Unix()+1); n != 0 {
		t.Errorf("expected no check-ins after dry run, got %d", n)
	}
}

func TestGateHandler_Verify_NoEnrollments(t *testing.T) {
	store := setupMemberStore(t)
	store.AddMember(database.Member{UID: "m1", Name: "Unenrolled Member"})
	handler := setupGateHandler()

	req := postVector(t, "/api/v1/verify", testVector(0.5), nil)
	recorder := httptest.NewRecorder()
	handler.Verify(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "no enrolled members")
}

func TestGateHandler_Verify_NoMatch(t *testing.T) {
	store := setupMemberStore(t)
	store.AddMember(database.Member{
		UID:          "m1",
		Name:         "Member",
		FaceVector:   testVector(3.0),
		FaceEnrolled: true,
	})
	handler := setupGateHandler()

	req := postVector(t, "/api/v1/verify", testVector(0.5), nil)
	recorder := httptest.NewRecorder()
	handler.Verify(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "no match found")
}

func TestGateHandler_Checkin_RecordsVisit(t *testing.T) {
	store := setupMemberStore(t)
	expires := time.Now().Add(24 * time.Hour)
	store.AddMember(database.Member{
		UID:          "m1",
		Name:         "Member",
		ExpiresAt:    &expires,
		FaceVector:   testVector(0.5),
		FaceEnrolled: true,
	})
	handler := setupGateHandler()

	req := postVector(t, "/api/v1/checkin", testVector(0.5), nil)
	recorder := httptest.NewRecorder()
	handler.Checkin(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	checkins, err := store.ListCheckins(t.Context(), "m1", 10)
	if err != nil {
		t.Fatalf("listing check-ins failed: %v", err)
	}
	if len(checkins) != 1 {
		t.Fatalf("expected 1 check-in, got %d", len(checkins))
	}
	if checkins[0].Similarity < 0.99 {
		t.Errorf("expected similarity near 1.0, got %f", checkins[0].Similarity)
	}
}

func TestGateHandler_Checkin_ExpiredStillRecorded(t *testing.T) {
	store := setupMemberStore(t)
	expired := time.Now().Add(-48 * time.Hour)
	store.AddMember(database.Member{
		UID:          "m1",
		Name:         "Lapsed Member",
		ExpiresAt:    &expired,
		FaceVector:   testVector(0.5),
		FaceEnrolled: true,
	})
	handler := setupGateHandler()

	req := postVector(t, "/api/v1/checkin", testVector(0.5), nil)
	recorder := httptest.NewRecorder()
	handler.Checkin(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp VerifyResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Allowed {
		t.Error("expected an expired membership to be denied")
	}
	if resp.DaysRemaining != 0 {
		t.Errorf("expected 0 days remaining, got %d", resp.DaysRemaining)
	}

	// Denied visits are still recorded so the operator sees the attempt.
	checkins, _ := store.ListCheckins(t.Context(), "m1", 10)
	if len(checkins) != 1 {
		t.Fatalf("expected the denied visit to be recorded, got %d check-ins", len(checkins))
	}
}
