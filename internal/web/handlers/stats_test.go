package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/gym-gate/internal/database"
)

func TestStatsHandler_Get(t *testing.T) {
	store := setupMemberStore(t)
	store.AddMember(database.Member{UID: "m1", Name: "Member One"})
	store.AddMember(database.Member{
		UID:          "m2",
		Name:         "Member Two",
		FaceVector:   testVector(0.5),
		FaceEnrolled: true,
	})

	now := time.Now().UTC()
	if err := store.RecordPayment(t.Context(), &database.Payment{
		MemberUID:   "m1",
		AmountCents: 49900,
		Currency:    "CZK",
		Plan:        "basic",
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 1, 0),
	}); err != nil {
		t.Fatalf("seeding payment failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.RecordCheckin(t.Context(), &database.Checkin{MemberUID: "m2", Similarity: 0.9}); err != nil {
			t.Fatalf("seeding check-in failed: %v", err)
		}
	}

	handler := NewStatsHandler(testConfig(), nil)

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var stats StatsResponse
	parseJSONResponse(t, recorder, &stats)
	if stats.TotalMembers != 2 {
		t.Errorf("expected 2 members, got %d", stats.TotalMembers)
	}
	if stats.EnrolledMembers != 1 {
		t.Errorf("expected 1 enrolled member, got %d", stats.EnrolledMembers)
	}
	if stats.CheckinsLast30d != 3 {
		t.Errorf("expected 3 check-ins, got %d", stats.CheckinsLast30d)
	}
	if stats.RevenueCents30d != 49900 {
		t.Errorf("expected revenue 49900, got %d", stats.RevenueCents30d)
	}
	if stats.FaceIndexEnabled {
		t.Error("expected the face index to be reported disabled without a rebuilder")
	}
}

func TestStatsHandler_Get_Cached(t *testing.T) {
	store := setupMemberStore(t)
	store.AddMember(database.Member{UID: "m1", Name: "Member"})
	handler := NewStatsHandler(testConfig(), nil)

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	// The second request is served from the cache and misses the new member.
	store.AddMember(database.Member{UID: "m2", Name: "Later Member"})

	recorder = httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest("GET", "/api/v1/stats", nil))

	var stats StatsResponse
	parseJSONResponse(t, recorder, &stats)
	if stats.TotalMembers != 1 {
		t.Errorf("expected the cached count of 1, got %d", stats.TotalMembers)
	}

	// After invalidation the fresh count comes through.
	handler.InvalidateCache()

	recorder = httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest("GET", "/api/v1/stats", nil))
	parseJSONResponse(t, recorder, &stats)
	if stats.TotalMembers != 2 {
		t.Errorf("expected a fresh count of 2, got %d", stats.TotalMembers)
	}
}
