package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/gym-gate/internal/database"
)

func paymentBody(t *testing.T, payload map[string]any) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payment request: %v", err)
	}
	return bytes.NewBuffer(data)
}

func TestPaymentsHandler_Record_Success(t *testing.T) {
	store := setupMemberStore(t)
	store.AddMember(database.Member{UID: "m1", Name: "Member", Plan: "standard"})
	handler := NewPaymentsHandler(testConfig(), nil)

	req := httptest.NewRequest("POST", "/api/v1/members/m1/payments", paymentBody(t, map[string]any{}))
	req = requestWithChiParams(req, map[string]string{"uid": "m1"})
	recorder := httptest.NewRecorder()
	handler.Record(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var resp paymentResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Plan != "standard" {
		t.Errorf("expected the member's plan to be used, got '%s'", resp.Plan)
	}
	if resp.AmountCents != 79900 {
		t.Errorf("expected the plan price 79900, got %d", resp.AmountCents)
	}
	if resp.Currency != "CZK" {
		t.Errorf("expected currency CZK, got '%s'", resp.Currency)
	}

	// Recording a payment extends the membership.
	member, _ := store.GetMember(t.Context(), "m1")
	if member.ExpiresAt == nil {
		t.Fatal("expected the payment to set an expiry")
	}
	expected := time.Now().UTC().AddDate(0, 1, 0)
	if diff := member.ExpiresAt.Sub(expected); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expected expiry around %s, got %s", expected, member.ExpiresAt)
	}
}

func TestPaymentsHandler_Record_MultipleMonths(t *testing.T) {
	store := setupMemberStore(t)
	store.AddMember(database.Member{UID: "m1", Name: "Member"})
	handler := NewPaymentsHandler(testConfig(), nil)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	req := httptest.NewRequest("POST", "/api/v1/members/m1/payments", paymentBody(t, map[string]any{
		"plan":         "basic",
		"months":       3,
		"period_start": start.Format(time.RFC3339),
	}))
	req = requestWithChiParams(req, map[string]string{"uid": "m1"})
	recorder := httptest.NewRecorder()
	handler.Record(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var resp paymentResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.PeriodEnd != start.AddDate(0, 3, 0).Format(time.RFC3339) {
		t.Errorf("expected a 3 month period, got end %s", resp.PeriodEnd)
	}
}

func TestPaymentsHandler_Record_Validation(t *testing.T) {
	store := setupMemberStore(t)
	store.AddMember(database.Member{UID: "m1", Name: "Member", Plan: "basic"})
	handler := NewPaymentsHandler(testConfig(), nil)

	cases := []struct {
		name    string
		payload map[string]any
		status  int
	}{
		{"UnknownPlan", map[string]any{"plan": "platinum"}, http.StatusBadRequest},
		{"NegativeAmount", map[string]any{"amount_cents": -100}, http.StatusBadRequest},
		{"TooManyMonths", map[string]any{"months": 36}, http.StatusBadRequest},
		{"BadPeriodStart", map[string]any{"period_start": "yesterday"}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/members/m1/payments", paymentBody(t, tc.payload))
			req = requestWithChiParams(req, map[string]string{"uid": "m1"})
			recorder := httptest.NewRecorder()
			handler.Record(recorder, req)

			assertStatusCode(t, recorder, tc.status)
		})
	}
}

func TestPaymentsHandler_Record_MemberNotFound(t *testing.T) {
	setupMemberStore(t)
	handler := NewPaymentsHandler(testConfig(), nil)

	req := httptest.NewRequest("POST", "/api/v1/members/missing/payments", paymentBody(t, map[string]any{"plan": "basic"}))
	req = requestWithChiParams(req, map[string]string{"uid": "missing"})
	recorder := httptest.NewRecorder()
	handler.Record(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestPaymentsHandler_List(t *testing.T) {
	store := setupMemberStore(t)
	store.AddMember(database.Member{UID: "m1", Name: "Member", Plan: "basic"})
	handler := NewPaymentsHandler(testConfig(), nil)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/v1/members/m1/payments", paymentBody(t, map[string]any{"plan": "basic"}))
		req = requestWithChiParams(req, map[string]string{"uid": "m1"})
		recorder := httptest.NewRecorder()
		handler.Record(recorder, req)
		assertStatusCode(t, recorder, http.StatusCreated)
	}

	req := httptest.NewRequest("GET", "/api/v1/members/m1/payments", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "m1"})
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Payments []paymentResponse `json:"payments"`
		Count    int               `json:"count"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Count != 2 {
		t.Errorf("expected 2 payments, got %d", resp.Count)
	}
}
