//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

// faceVector builds a 128-dim vector with the first component set, so the
// Euclidean distance between two such vectors is the difference of their
// first components.
func faceVector(x float32) []float32 {
	v := make([]float32, 128)
	v[0] = x
	return v
}

func TestMemberRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewMemberRepository(pool)

	t.Run("CreateAndGet", func(t *testing.T) {
		m := &database.Member{
			Name:        "Jana Nováková",
			ExternalRef: "ID-1001",
			Email:       "jana@example.com",
			Plan:        "standard",
		}
		if err := repo.CreateMember(ctx, m); err != nil {
			t.Fatalf("Failed to create member: %v", err)
		}
		if m.UID == "" {
			t.Fatal("Expected generated UID")
		}

		got, err := repo.GetMember(ctx, m.UID)
		if err != nil {
			t.Fatalf("Failed to get member: %v", err)
		}
		if got == nil {
			t.Fatal("Expected member, got nil")
		}
		if got.Name != "Jana Nováková" {
			t.Errorf("Expected name 'Jana Nováková', got '%s'", got.Name)
		}
		if got.FaceEnrolled {
			t.Error("New member should not be enrolled")
		}
		if got.FaceVector != nil {
			t.Errorf("Expected nil face vector, got %d elements", len(got.FaceVector))
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := repo.GetMember(ctx, "does-not-exist")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil for missing member, got %+v", got)
		}
	})

	t.Run("SetAndClearFaceVector", func(t *testing.T) {
		m := &database.Member{Name: "Petr Svoboda"}
		if err := repo.CreateMember(ctx, m); err != nil {
			t.Fatalf("Failed to create member: %v", err)
		}

		if err := repo.SetFaceVector(ctx, m.UID, faceVector(0.5)); err != nil {
			t.Fatalf("Failed to set face vector: %v", err)
		}

		got, err := repo.GetMember(ctx, m.UID)
		if err != nil {
			t.Fatalf("Failed to get member: %v", err)
		}
		if !got.FaceEnrolled {
			t.Error("Expected member to be enrolled")
		}
		if len(got.FaceVector) != 128 {
			t.Fatalf("Expected 128-dim face vector, got %d", len(got.FaceVector))
		}
		if got.FaceVector[0] != 0.5 {
			t.Errorf("Expected first component 0.5, got %f", got.FaceVector[0])
		}

		if err := repo.ClearFaceVector(ctx, m.UID); err != nil {
			t.Fatalf("Failed to clear face vector: %v", err)
		}
		got, err = repo.GetMember(ctx, m.UID)
		if err != nil {
			t.Fatalf("Failed to get member: %v", err)
		}
		if got.FaceEnrolled {
			t.Error("Expected member to be unenrolled after clear")
		}
		if got.FaceVector != nil {
			t.Error("Expected face vector to be removed")
		}
	})

	t.Run("SetFaceVectorMissingMember", func(t *testing.T) {
		if err := repo.SetFaceVector(ctx, "does-not-exist", faceVector(0.1)); err == nil {
			t.Error("Expected error for missing member")
		}
	})

	t.Run("ListEnrolledExcludes", func(t *testing.T) {
		a := &database.Member{Name: "Enrolled A"}
		b := &database.Member{Name: "Enrolled B"}
		for _, m := range []*database.Member{a, b} {
			if err := repo.CreateMember(ctx, m); err != nil {
				t.Fatalf("Failed to create member: %v", err)
			}
			if err := repo.SetFaceVector(ctx, m.UID, faceVector(1.0)); err != nil {
				t.Fatalf("Failed to set face vector: %v", err)
			}
		}

		all, err := repo.ListEnrolled(ctx, "")
		if err != nil {
			t.Fatalf("Failed to list enrolled: %v", err)
		}

		without, err := repo.ListEnrolled(ctx, a.UID)
		if err != nil {
			t.Fatalf("Failed to list enrolled with exclusion: %v", err)
		}
		if len(without) != len(all)-1 {
			t.Errorf("Expected %d members after exclusion, got %d", len(all)-1, len(without))
		}
		for _, m := range without {
			if m.UID == a.UID {
				t.Error("Excluded member present in result")
			}
		}
	})

	t.Run("SearchByNameDiacritics", func(t *testing.T) {
		members, err := repo.SearchMembersByName(ctx, "novakova")
		if err != nil {
			t.Fatalf("Failed to search members: %v", err)
		}
		found := false
		for _, m := range members {
			if m.Name == "Jana Nováková" {
				found = true
			}
		}
		if !found {
			t.Error("Expected diacritics-insensitive search to find 'Jana Nováková'")
		}
	})

	t.Run("FindSimilarFaces", func(t *testing.T) {
		near := &database.Member{Name: "Near Face"}
		far := &database.Member{Name: "Far Face"}
		for m, x := range map[*database.Member]float32{near: 10.05, far: 12.0} {
			if err := repo.CreateMember(ctx, m); err != nil {
				t.Fatalf("Failed to create member: %v", err)
			}
			if err := repo.SetFaceVector(ctx, m.UID, faceVector(x)); err != nil {
				t.Fatalf("Failed to set face vector: %v", err)
			}
		}

		members, distances, err := repo.FindSimilarFaces(ctx, faceVector(10.0), 2)
		if err != nil {
			t.Fatalf("Failed to find similar faces: %v", err)
		}
		if len(members) != 2 {
			t.Fatalf("Expected 2 results, got %d", len(members))
		}
		if members[0].UID != near.UID {
			t.Errorf("Expected nearest member first, got %s", members[0].Name)
		}
		if distances[0] >= distances[1] {
			t.Errorf("Expected ascending distances, got %v", distances)
		}
		if distances[0] < 0.04 || distances[0] > 0.06 {
			t.Errorf("Expected nearest distance around 0.05, got %f", distances[0])
		}
	})

	t.Run("FaceIndexAcceleration", func(t *testing.T) {
		if err := repo.EnableFaceIndex(ctx, ""); err != nil {
			t.Fatalf("Failed to enable face index: %v", err)
		}
		defer repo.DisableFaceIndex()

		if !repo.IsFaceIndexEnabled() {
			t.Fatal("Expected face index to be enabled")
		}
		enrolled, err := repo.CountEnrolled(ctx)
		if err != nil {
			t.Fatalf("Failed to count enrolled: %v", err)
		}
		if repo.FaceIndexCount() != enrolled {
			t.Errorf("Expected index count %d, got %d", enrolled, repo.FaceIndexCount())
		}

		members, _, err := repo.FindSimilarFaces(ctx, faceVector(10.0), 1)
		if err != nil {
			t.Fatalf("Failed indexed search: %v", err)
		}
		if len(members) != 1 {
			t.Fatalf("Expected 1 result, got %d", len(members))
		}
		if members[0].Name != "Near Face" {
			t.Errorf("Expected 'Near Face', got '%s'", members[0].Name)
		}
	})
}

func TestPaymentRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	members := NewMemberRepository(pool)
	repo := NewPaymentRepository(pool)

	m := &database.Member{Name: "Paying Member", Plan: "basic"}
	if err := members.CreateMember(ctx, m); err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}

	t.Run("RecordExtendsExpiry", func(t *testing.T) {
		periodStart := time.Now().UTC().Truncate(time.Second)
		periodEnd := periodStart.AddDate(0, 1, 0)

		p := &database.Payment{
			MemberUID:   m.UID,
			AmountCents: 49900,
			Currency:    "CZK",
			Plan:        "basic",
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		}
		if err := repo.RecordPayment(ctx, p); err != nil {
			t.Fatalf("Failed to record payment: %v", err)
		}
		if p.ID == 0 {
			t.Error("Expected payment ID to be set")
		}

		got, err := members.GetMember(ctx, m.UID)
		if err != nil {
			t.Fatalf("Failed to get member: %v", err)
		}
		if got.ExpiresAt == nil {
			t.Fatal("Expected expiry to be set after payment")
		}
		if !got.ExpiresAt.Equal(periodEnd) {
			t.Errorf("Expected expiry %v, got %v", periodEnd, got.ExpiresAt)
		}
	})

	t.Run("EarlierPeriodDoesNotShrinkExpiry", func(t *testing.T) {
		before, err := members.GetMember(ctx, m.UID)
		if err != nil {
			t.Fatalf("Failed to get member: %v", err)
		}

		periodStart := time.Now().UTC().AddDate(0, -2, 0)
		p := &database.Payment{
			MemberUID:   m.UID,
			AmountCents: 49900,
			Currency:    "CZK",
			Plan:        "basic",
			PeriodStart: periodStart,
			PeriodEnd:   periodStart.AddDate(0, 1, 0),
		}
		if err := repo.RecordPayment(ctx, p); err != nil {
			t.Fatalf("Failed to record payment: %v", err)
		}

		after, err := members.GetMember(ctx, m.UID)
		if err != nil {
			t.Fatalf("Failed to get member: %v", err)
		}
		if !after.ExpiresAt.Equal(*before.ExpiresAt) {
			t.Errorf("Expected expiry unchanged, got %v", after.ExpiresAt)
		}
	})

	t.Run("ListAndSum", func(t *testing.T) {
		payments, err := repo.ListPayments(ctx, m.UID)
		if err != nil {
			t.Fatalf("Failed to list payments: %v", err)
		}
		if len(payments) != 2 {
			t.Fatalf("Expected 2 payments, got %d", len(payments))
		}

		from := time.Now().Add(-time.Hour).Unix()
		to := time.Now().Add(time.Hour).Unix()
		total, err := repo.SumPayments(ctx, from, to)
		if err != nil {
			t.Fatalf("Failed to sum payments: %v", err)
		}
		if total != 99800 {
			t.Errorf("Expected total 99800, got %d", total)
		}
	})
}

func TestCheckinRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	members := NewMemberRepository(pool)
	repo := NewCheckinRepository(pool)

	m := &database.Member{Name: "Visiting Member"}
	if err := members.CreateMember(ctx, m); err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}

	for i := 0; i < 3; i++ {
		c := &database.Checkin{MemberUID: m.UID, Similarity: 0.9}
		if err := repo.RecordCheckin(ctx, c); err != nil {
			t.Fatalf("Failed to record checkin: %v", err)
		}
		if c.ID == 0 {
			t.Error("Expected checkin ID to be set")
		}
	}

	from := time.Now().Add(-time.Hour).Unix()
	to := time.Now().Add(time.Hour).Unix()
	count, err := repo.CountCheckins(ctx, from, to)
	if err != nil {
		t.Fatalf("Failed to count checkins: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 checkins, got %d", count)
	}

	checkins, err := repo.ListCheckins(ctx, m.UID, 2)
	if err != nil {
		t.Fatalf("Failed to list checkins: %v", err)
	}
	if len(checkins) != 2 {
		t.Errorf("Expected limit of 2 checkins, got %d", len(checkins))
	}
}
