package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("FACE_DUPLICATE_THRESHOLD")
	os.Unsetenv("FACE_IDENTIFY_THRESHOLD")
	os.Unsetenv("EMBEDDING_DIM")

	cfg := Load()

	if cfg.Biometric.DuplicateThreshold != 0.35 {
		t.Errorf("expected default duplicate threshold 0.35, got %v", cfg.Biometric.DuplicateThreshold)
	}
	if cfg.Biometric.IdentifyThreshold != 0.35 {
		t.Errorf("expected default identify threshold 0.35, got %v", cfg.Biometric.IdentifyThreshold)
	}
	if cfg.Embedding.Dim != 128 {
		t.Errorf("expected default embedding dim 128, got %d", cfg.Embedding.Dim)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestLoad_ThresholdOverride(t *testing.T) {
	t.Setenv("FACE_DUPLICATE_THRESHOLD", "0.30")
	t.Setenv("FACE_IDENTIFY_THRESHOLD", "0.40")

	cfg := Load()

	if cfg.Biometric.DuplicateThreshold != 0.30 {
		t.Errorf("expected duplicate threshold 0.30, got %v", cfg.Biometric.DuplicateThreshold)
	}
	if cfg.Biometric.IdentifyThreshold != 0.40 {
		t.Errorf("expected identify threshold 0.40, got %v", cfg.Biometric.IdentifyThreshold)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("FACE_DUPLICATE_THRESHOLD", "not-a-number")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "-3")

	cfg := Load()

	if cfg.Biometric.DuplicateThreshold != 0.35 {
		t.Errorf("expected fallback threshold 0.35, got %v", cfg.Biometric.DuplicateThreshold)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected fallback max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestGetPlanPricing(t *testing.T) {
	cfg := Load()

	pricing := cfg.GetPlanPricing("standard")
	if pricing.MonthlyCents == 0 {
		t.Error("expected non-zero pricing for standard plan")
	}
	if pricing.Currency == "" {
		t.Error("expected currency for standard plan")
	}

	unknown := cfg.GetPlanPricing("does-not-exist")
	if unknown.MonthlyCents != 0 {
		t.Errorf("expected zero pricing for unknown plan, got %d", unknown.MonthlyCents)
	}
}
