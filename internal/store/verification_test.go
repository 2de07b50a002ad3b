package store

import (
	"testing"
	"time"

	"github.com/hollis-dev/rollcall/internal/database"
	"github.com/hollis-dev/rollcall/internal/model"
)

const testSecret = "kiosk-device-secret"

func setupVerificationStore(t *testing.T) *VerificationStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewVerificationStore(db, testSecret)
}

func sampleResult(now time.Time) model.VerificationResult {
	return model.VerificationResult{
		Verified:   true,
		Confidence: 87.5,
		Coords:     model.Coordinates{Latitude: 41.0138, Longitude: 28.9497},
		Timestamp:  now,
		ExpiresAt:  now.Add(15 * time.Minute),
	}
}

func TestVerificationRoundTrip(t *testing.T) {
	vs := setupVerificationStore(t)
	now := time.Date(2026, 3, 2, 8, 45, 0, 0, time.UTC)
	vs.now = func() time.Time { return now }

	want := sampleResult(now)
	want.ExistingAttendanceID = 42
	if err := vs.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := vs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatal("expected result, got nil")
	}
	if !got.Verified || got.Confidence != want.Confidence {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.ExistingAttendanceID != 42 {
		t.Errorf("existing attendance id = %d, want 42", got.ExistingAttendanceID)
	}
	if !got.Timestamp.Equal(want.Timestamp) || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("timestamps differ: got %v/%v", got.Timestamp, got.ExpiresAt)
	}
}

func TestVerificationLoadAbsent(t *testing.T) {
	vs := setupVerificationStore(t)

	got, err := vs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestVerificationExpiresOnLoad(t *testing.T) {
	vs := setupVerificationStore(t)
	stored := time.Date(2026, 3, 2, 8, 45, 0, 0, time.UTC)
	vs.now = func() time.Time { return stored }

	if err := vs.Save(sampleResult(stored)); err != nil {
		t.Fatalf("save: %v", err)
	}

	// 16 minutes later the result must behave as if never stored.
	vs.now = func() time.Time { return stored.Add(16 * time.Minute) }
	got, err := vs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Errorf("expected expired result to be absent, got %+v", got)
	}

	// The expired row is deleted, not just hidden.
	vs.now = func() time.Time { return stored }
	got, err = vs.Load()
	if err != nil {
		t.Fatalf("load after expiry: %v", err)
	}
	if got != nil {
		t.Error("expected expired result to be deleted")
	}
}

func TestVerificationExpiryBoundary(t *testing.T) {
	vs := setupVerificationStore(t)
	stored := time.Date(2026, 3, 2, 8, 45, 0, 0, time.UTC)
	vs.now = func() time.Time { return stored }

	if err := vs.Save(sampleResult(stored)); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Exactly at expiresAt counts as expired.
	vs.now = func() time.Time { return stored.Add(15 * time.Minute) }
	got, err := vs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Error("result at exactly expiresAt should be absent")
	}
}

func TestVerificationConsumeDeletes(t *testing.T) {
	vs := setupVerificationStore(t)
	now := time.Date(2026, 3, 2, 8, 45, 0, 0, time.UTC)
	vs.now = func() time.Time { return now }

	if err := vs.Save(sampleResult(now)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := vs.Consume()
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got == nil {
		t.Fatal("expected result from consume")
	}

	second, err := vs.Load()
	if err != nil {
		t.Fatalf("load after consume: %v", err)
	}
	if second != nil {
		t.Error("expected nothing after consume")
	}
}

func TestVerificationCorruptPayloadTreatedAsAbsent(t *testing.T) {
	vs := setupVerificationStore(t)
	now := time.Date(2026, 3, 2, 8, 45, 0, 0, time.UTC)
	vs.now = func() time.Time { return now }

	_, err := vs.db.Exec(
		`INSERT INTO cache (key, value, updated_at) VALUES (?, ?, ?)`,
		verificationKey, []byte("not a sealed payload"), now,
	)
	if err != nil {
		t.Fatalf("insert garbage: %v", err)
	}

	got, err := vs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Errorf("corrupt payload should read as absent, got %+v", got)
	}

	// Self-healed: the garbage row is gone.
	var count int
	vs.db.QueryRow(`SELECT COUNT(*) FROM cache WHERE key = ?`, verificationKey).Scan(&count)
	if count != 0 {
		t.Errorf("expected corrupt row deleted, found %d", count)
	}
}

func TestVerificationWrongSecretTreatedAsAbsent(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, 3, 2, 8, 45, 0, 0, time.UTC)
	writer := NewVerificationStore(db, "old-secret")
	writer.now = func() time.Time { return now }
	if err := writer.Save(sampleResult(now)); err != nil {
		t.Fatalf("save: %v", err)
	}

	reader := NewVerificationStore(db, "new-secret")
	reader.now = func() time.Time { return now }
	got, err := reader.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Error("payload sealed under a different secret should read as absent")
	}
}

func TestVerificationSaveOverwrites(t *testing.T) {
	vs := setupVerificationStore(t)
	now := time.Date(2026, 3, 2, 8, 45, 0, 0, time.UTC)
	vs.now = func() time.Time { return now }

	first := sampleResult(now)
	first.Confidence = 60
	if err := vs.Save(first); err != nil {
		t.Fatalf("save first: %v", err)
	}

	second := sampleResult(now)
	second.Confidence = 91
	if err := vs.Save(second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	got, err := vs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.Confidence != 91 {
		t.Errorf("expected overwritten result with confidence 91, got %+v", got)
	}
}
