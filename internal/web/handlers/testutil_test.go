package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/database"
	"github.com/kozaktomas/gym-gate/internal/database/mock"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Embedding: config.EmbeddingConfig{
			URL: "http://localhost:8000",
			Dim: 128,
		},
		Biometric: config.BiometricConfig{
			DuplicateThreshold: 0.35,
			IdentifyThreshold:  0.35,
		},
		Admin: config.AdminConfig{
			Username: "admin",
			Password: "secret",
		},
		Plans: config.PlansConfig{
			Plans: map[string]config.PlanPricing{
				"basic":    {MonthlyCents: 49900, Currency: "CZK"},
				"standard": {MonthlyCents: 79900, Currency: "CZK"},
			},
		},
	}
}

// setupMemberStore registers a mock member store as the active backend.
// Cleanup deregisters it.
func setupMemberStore(t *testing.T) *mock.MemberStore {
	t.Helper()

	store := mock.NewMemberStore()
	database.RegisterPostgresBackend(
		func() database.MemberReader { return store },
		func() database.MemberWriter { return store },
		func() database.PaymentWriter { return store },
		func() database.CheckinWriter { return store },
	)
	t.Cleanup(database.ResetForTesting)

	return store
}

// testVector builds a 128-dim vector with the first component set, so the
// distance between two test vectors is the difference of their first
// components.
func testVector(x float32) []float32 {
	v := make([]float32, 128)
	v[0] = x
	return v
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
