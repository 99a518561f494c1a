package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a unique in-memory database with the full schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestClaimMarker_SecondClaimIsRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)

	rec, err := ClaimMarker(ctx, db, "s1", "lesson-a", "2025-03-04", now, 24*time.Hour)
	if err != nil || rec == nil {
		t.Fatalf("first claim: rec=%v err=%v", rec, err)
	}
	if !rec.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", rec.ExpiresAt)
	}

	if _, err := ClaimMarker(ctx, db, "s1", "lesson-a", "2025-03-04", now.Add(time.Minute), 24*time.Hour); !errors.Is(err, ErrAlreadyMarked) {
		t.Fatalf("expected ErrAlreadyMarked, got %v", err)
	}

	// Other day, other lesson and other subscription are independent.
	for _, c := range [][3]string{{"s1", "lesson-a", "2025-03-05"}, {"s1", "lesson-b", "2025-03-04"}, {"s2", "lesson-a", "2025-03-04"}} {
		if _, err := ClaimMarker(ctx, db, c[0], c[1], c[2], now, time.Hour); err != nil {
			t.Fatalf("claim %v: %v", c, err)
		}
	}

	ok, err := HasMarker(ctx, db, "s1", "lesson-a", "2025-03-04", now)
	if err != nil || !ok {
		t.Fatalf("HasMarker = %v, %v; want true", ok, err)
	}
}

func TestClaimMarker_ExpiredMarkerIsReplaced(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)

	if _, err := ClaimMarker(ctx, db, "s1", "k", "2025-03-04", now, time.Hour); err != nil {
		t.Fatalf("claim: %v", err)
	}
	later := now.Add(2 * time.Hour)
	if ok, _ := HasMarker(ctx, db, "s1", "k", "2025-03-04", later); ok {
		t.Fatalf("marker should be expired at %v", later)
	}
	if _, err := ClaimMarker(ctx, db, "s1", "k", "2025-03-04", later, time.Hour); err != nil {
		t.Fatalf("re-claim after expiry: %v", err)
	}
}

func TestReleaseAndPurgeMarkers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)

	if _, err := ClaimMarker(ctx, db, "s1", "k", "d", now, time.Hour); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := ReleaseMarker(ctx, db, "s1", "k", "d"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := ClaimMarker(ctx, db, "s1", "k", "d", now, time.Hour); err != nil {
		t.Fatalf("claim after release: %v", err)
	}

	if _, err := ClaimMarker(ctx, db, "s2", "k", "d", now, 3*time.Hour); err != nil {
		t.Fatalf("claim s2: %v", err)
	}
	n, err := PurgeExpiredMarkers(ctx, db, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged marker, got %d", n)
	}
	if ok, _ := HasMarker(ctx, db, "s2", "k", "d", now.Add(2*time.Hour)); !ok {
		t.Fatalf("live marker must survive purge")
	}
}
