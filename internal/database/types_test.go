package database

import (
	"testing"
	"time"
)

func TestHasActiveMembership(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"future expiry", &future, true},
		{"past expiry", &past, false},
		{"exact instant", &now, false},
		{"never paid", nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := Member{UID: "m1", Name: "Member", ExpiresAt: tc.expiresAt}
			if got := m.HasActiveMembership(now); got != tc.want {
				t.Errorf("HasActiveMembership() = %v, want %v", got, tc.want)
			}
		})
	}
}
