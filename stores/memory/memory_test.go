package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/veriden/idcore"
)

func TestIdentityLifecycle(t *testing.T) {
	store := New()
	repo := store.Identities()
	ctx := context.Background()
	now := time.Now()

	identity := &idcore.Identity{
		ID:               uuid.New(),
		NationalIDLookup: "lookup-1",
		Status:           idcore.StatusPending,
		AccountLevel:     idcore.LevelSOP1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repo.Create(ctx, identity); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, identity); !errors.Is(err, idcore.ErrIdentityExists) {
		t.Fatalf("duplicate err = %v, want ErrIdentityExists", err)
	}

	got, err := repo.ByLookupHash(ctx, "lookup-1")
	if err != nil {
		t.Fatalf("ByLookupHash: %v", err)
	}
	if got.ID != identity.ID {
		t.Errorf("id mismatch")
	}

	if _, err := repo.ByID(ctx, uuid.New()); !errors.Is(err, idcore.ErrIdentityNotFound) {
		t.Fatalf("missing err = %v, want ErrIdentityNotFound", err)
	}
}

func TestFailedOtpCycleWindow(t *testing.T) {
	store := New()
	repo := store.Identities()
	ctx := context.Background()
	now := time.Now()

	identity := &idcore.Identity{ID: uuid.New(), NationalIDLookup: "lookup-1", CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(ctx, identity); err != nil {
		t.Fatalf("Create: %v", err)
	}

	windowStart := now.Add(-time.Hour)
	for want := 1; want <= 3; want++ {
		cycles, err := repo.IncrementFailedOtpCycles(ctx, identity.ID, windowStart, now)
		if err != nil {
			t.Fatalf("IncrementFailedOtpCycles: %v", err)
		}
		if cycles != want {
			t.Fatalf("cycles = %d, want %d", cycles, want)
		}
	}

	// A cycle far outside the window restarts the count.
	later := now.Add(2 * time.Hour)
	cycles, err := repo.IncrementFailedOtpCycles(ctx, identity.ID, later.Add(-time.Hour), later)
	if err != nil {
		t.Fatalf("IncrementFailedOtpCycles: %v", err)
	}
	if cycles != 1 {
		t.Fatalf("cycles = %d after window reset, want 1", cycles)
	}
}

func TestDeviceTouchUpsert(t *testing.T) {
	store := New()
	repo := store.Devices()
	ctx := context.Background()
	identityID := uuid.New()
	now := time.Now()

	device, created, err := repo.Touch(ctx, identityID, "fp-1", "ua", "203.0.113.7", now)
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if !created || device.LoginCount != 1 {
		t.Fatalf("created=%v count=%d, want true/1", created, device.LoginCount)
	}

	device, created, err = repo.Touch(ctx, identityID, "fp-1", "ua", "203.0.113.8", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if created || device.LoginCount != 2 {
		t.Fatalf("created=%v count=%d, want false/2", created, device.LoginCount)
	}
	if device.LastIP != "203.0.113.8" {
		t.Errorf("last ip = %s", device.LastIP)
	}

	// A different fingerprint is a separate device.
	_, created, err = repo.Touch(ctx, identityID, "fp-2", "ua", "203.0.113.7", now)
	if err != nil || !created {
		t.Fatalf("Touch fp-2: created=%v err=%v", created, err)
	}
	devices, err := repo.ByIdentity(ctx, identityID)
	if err != nil || len(devices) != 2 {
		t.Fatalf("ByIdentity: %v (%d)", err, len(devices))
	}
}

func TestAuditPaging(t *testing.T) {
	store := New()
	repo := store.AuditLog()
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		err := repo.Append(ctx, &idcore.AuditEntry{
			ID:        uuid.New(),
			Sequence:  i,
			EventType: idcore.AuditOtpSent,
			PrevHash:  "p",
			ChainHash: "c",
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	page, err := repo.Page(ctx, 2, 2)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(page) != 2 || page[0].Sequence != 3 || page[1].Sequence != 4 {
		t.Fatalf("unexpected page: %+v", page)
	}

	latest, err := repo.Latest(ctx)
	if err != nil || latest == nil || latest.Sequence != 5 {
		t.Fatalf("Latest: %v %+v", err, latest)
	}
}
