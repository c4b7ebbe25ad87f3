package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"gatekeeper/internal/database"
	"gatekeeper/internal/store"
)

// failingDeletes wraps a store and fails activity deletion for chosen ids.
type failingDeletes struct {
	store.IdentityStore
	failIDs map[string]bool
}

func (s *failingDeletes) DeleteActivity(ctx context.Context, id string) error {
	if s.failIDs[id] {
		return fmt.Errorf("delete %s: %w", id, store.ErrUnavailable)
	}
	return s.IdentityStore.DeleteActivity(ctx, id)
}

func TestRemoveCompletelyScansForUndeclaredRecords(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	if err := st.PutAllowEntry(ctx, &database.AllowListEntry{
		Key: "c@gmail.com", Email: "c@gmail.com", Role: database.RoleStaff,
	}); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"u9", "u10"} {
		if err := st.PutActivity(ctx, &database.ActivityRecord{ID: id, Email: "c@gmail.com"}); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated record must survive.
	if err := st.PutActivity(ctx, &database.ActivityRecord{ID: "u11", Email: "other@gmail.com"}); err != nil {
		t.Fatal(err)
	}

	report, err := RemoveCompletely(ctx, st, "C@Gmail.com ", []string{"u9"})
	if err != nil {
		t.Fatal(err)
	}

	if !report.AllowListDeleted {
		t.Error("expected allow-list entry deleted")
	}
	deleted := append([]string(nil), report.DeletedIDs...)
	sort.Strings(deleted)
	if len(deleted) != 2 || deleted[0] != "u10" || deleted[1] != "u9" {
		t.Errorf("deleted ids = %v; want u9 and the undeclared u10", report.DeletedIDs)
	}

	if _, err := st.ActivityByID(ctx, "u9"); !errors.Is(err, store.ErrNotFound) {
		t.Error("u9 still present")
	}
	if _, err := st.ActivityByID(ctx, "u10"); !errors.Is(err, store.ErrNotFound) {
		t.Error("u10 still present")
	}
	if _, err := st.ActivityByID(ctx, "u11"); err != nil {
		t.Error("unrelated record u11 was deleted")
	}
	if _, err := st.AllowEntryByKey(ctx, "c@gmail.com"); !errors.Is(err, store.ErrNotFound) {
		t.Error("allow-list entry still present")
	}
}

func TestRemoveCompletelyAbsentEntryIsNotAnError(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	report, err := RemoveCompletely(ctx, st, "ghost@example.com", nil)
	if err != nil {
		t.Fatalf("removal of absent user failed: %v", err)
	}
	if !report.AllowListDeleted {
		t.Error("idempotent allow-list delete should report success")
	}
}

func TestRemoveCompletelyPartialFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	for _, id := range []string{"u1", "u2"} {
		if err := mem.PutActivity(ctx, &database.ActivityRecord{ID: id, Email: "c@gmail.com"}); err != nil {
			t.Fatal(err)
		}
	}

	st := &failingDeletes{IdentityStore: mem, failIDs: map[string]bool{"u2": true}}

	report, err := RemoveCompletely(ctx, st, "c@gmail.com", nil)
	if err == nil {
		t.Fatal("expected an error for the failed step")
	}
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("error should carry the step failure, got %v", err)
	}

	// The failing step does not block the others.
	if len(report.DeletedIDs) != 1 || report.DeletedIDs[0] != "u1" {
		t.Errorf("deleted ids = %v; want [u1]", report.DeletedIDs)
	}
	if len(report.FailedIDs) != 1 || report.FailedIDs[0] != "u2" {
		t.Errorf("failed ids = %v; want [u2]", report.FailedIDs)
	}
	if !report.AllowListDeleted {
		t.Error("allow-list deletion should have proceeded")
	}
}

func TestRemoveCompletelyDedupesKnownIDs(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	if err := st.PutActivity(ctx, &database.ActivityRecord{ID: "u1", Email: "c@gmail.com"}); err != nil {
		t.Fatal(err)
	}

	report, err := RemoveCompletely(ctx, st, "c@gmail.com", []string{"u1", "u1", ""})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.DeletedIDs) != 1 {
		t.Errorf("deleted ids = %v; want a single u1", report.DeletedIDs)
	}
}
