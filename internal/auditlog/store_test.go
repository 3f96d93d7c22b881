package auditlog_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/logrelay/logrelay/internal/auditlog"
)

func recordAt(id, actorID string, createdAt time.Time) auditlog.Record {
	return auditlog.Record{
		ID:        id,
		ActorID:   actorID,
		Action:    "test.action",
		SourceIP:  auditlog.UnknownSourceIP,
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
	}
}

// ---------------------------------------------------------------------------
// Ensure
// ---------------------------------------------------------------------------

func TestEnsure_CreatesDirectoryAndFile(t *testing.T) {
	root := t.TempDir()
	store := auditlog.NewStore(root)

	if err := store.Ensure(); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if _, err := os.Stat(store.Path()); err != nil {
		t.Fatalf("trail file missing after Ensure: %v", err)
	}
	if records := store.ReadAll(); len(records) != 0 {
		t.Errorf("fresh trail has %d records, want 0", len(records))
	}
}

func TestEnsure_Idempotent(t *testing.T) {
	store := auditlog.NewStore(t.TempDir())

	if err := store.Ensure(); err != nil {
		t.Fatalf("first Ensure() error: %v", err)
	}
	store.Append(recordAt("r1", "u1", time.Now()))
	before, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if err := store.Ensure(); err != nil {
		t.Fatalf("second Ensure() error: %v", err)
	}
	after, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(before) != string(after) {
		t.Error("Ensure() on an existing trail altered file contents")
	}
}

// ---------------------------------------------------------------------------
// WriteAll / ReadAll round trip
// ---------------------------------------------------------------------------

func TestWriteAllReadAll_RoundTrip(t *testing.T) {
	store := auditlog.NewStore(t.TempDir())
	now := time.Now()

	in := []auditlog.Record{
		recordAt("r1", "u1", now.Add(-time.Hour)),
		recordAt("r2", "u2", now),
	}
	if err := store.WriteAll(in); err != nil {
		t.Fatalf("WriteAll error: %v", err)
	}

	out := store.ReadAll()
	if len(out) != len(in) {
		t.Fatalf("got %d records, want %d", len(out), len(in))
	}
	for i := range in {
		got, want := out[i], in[i]
		if got.ID != want.ID || got.ActorID != want.ActorID ||
			got.Action != want.Action || got.SourceIP != want.SourceIP ||
			got.CreatedAt != want.CreatedAt {
			t.Errorf("record %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestWriteAll_EmptyList(t *testing.T) {
	store := auditlog.NewStore(t.TempDir())

	store.Append(recordAt("r1", "u1", time.Now()))
	if err := store.WriteAll(nil); err != nil {
		t.Fatalf("WriteAll(nil) error: %v", err)
	}
	if records := store.ReadAll(); len(records) != 0 {
		t.Errorf("got %d records after WriteAll(nil), want 0", len(records))
	}
}

// ---------------------------------------------------------------------------
// ReadAll — degraded content
// ---------------------------------------------------------------------------

func TestReadAll_LegacyArrayFile(t *testing.T) {
	store := auditlog.NewStore(t.TempDir())
	if err := store.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	legacy := `[{"id": "old-1", "admin_user_id": "u1", "action": "user.create", "created_at": "2026-01-01T00:00:00Z"}]`
	if err := os.WriteFile(store.Path(), []byte(legacy), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	records := store.ReadAll()
	if len(records) != 1 {
		t.Fatalf("got %d records from legacy file, want 1", len(records))
	}
	if records[0].ID != "old-1" {
		t.Errorf("ID = %q, want old-1", records[0].ID)
	}
}

func TestReadAll_MalformedFileReadsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"foreign object", `{"other": "data"}`},
		{"corrupt json", `{"logs": [`},
		{"plain text", `not json at all`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := auditlog.NewStore(t.TempDir())
			if err := store.Ensure(); err != nil {
				t.Fatalf("Ensure: %v", err)
			}
			if err := os.WriteFile(store.Path(), []byte(tt.content), 0600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if records := store.ReadAll(); len(records) != 0 {
				t.Errorf("got %d records, want 0", len(records))
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Append — ordering and bounded retention
// ---------------------------------------------------------------------------

func TestAppend_PreservesOrder(t *testing.T) {
	store := auditlog.NewStore(t.TempDir())
	now := time.Now()

	for i := 0; i < 5; i++ {
		store.Append(recordAt(fmt.Sprintf("r%d", i), "u1", now.Add(time.Duration(i)*time.Second)))
	}

	records := store.ReadAll()
	if len(records) != 5 {
		t.Fatalf("got %d records, want 5", len(records))
	}
	for i, rec := range records {
		if want := fmt.Sprintf("r%d", i); rec.ID != want {
			t.Errorf("position %d holds %q, want %q", i, rec.ID, want)
		}
	}
}

func TestAppend_EvictsOldestPastCap(t *testing.T) {
	store := auditlog.NewStoreAt(filepath.Join(t.TempDir(), "trail.json"), 10)
	now := time.Now()

	for i := 0; i < 15; i++ {
		store.Append(recordAt(fmt.Sprintf("r%d", i), "u1", now.Add(time.Duration(i)*time.Millisecond)))
	}

	records := store.ReadAll()
	if len(records) != 10 {
		t.Fatalf("got %d records, want cap of 10", len(records))
	}
	// Survivors are exactly the most recently appended 10, in append order.
	for i, rec := range records {
		if want := fmt.Sprintf("r%d", i+5); rec.ID != want {
			t.Errorf("position %d holds %q, want %q", i, rec.ID, want)
		}
	}
}

func TestAppend_NeverExceedsCapMidSequence(t *testing.T) {
	store := auditlog.NewStoreAt(filepath.Join(t.TempDir(), "trail.json"), 3)

	for i := 0; i < 7; i++ {
		store.Append(recordAt(fmt.Sprintf("r%d", i), "u1", time.Now()))
		if n := len(store.ReadAll()); n > 3 {
			t.Fatalf("after append %d the trail holds %d records, want <= 3", i, n)
		}
	}
}

func TestAppend_UnwritableRootDoesNotPanicOrError(t *testing.T) {
	// A file where the directory should be makes MkdirAll fail.
	root := t.TempDir()
	blocker := filepath.Join(root, "content")
	if err := os.WriteFile(blocker, []byte("in the way"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store := auditlog.NewStore(root)
	// Must complete without panicking; the failure is only reported on the
	// process log stream.
	store.Append(recordAt("r1", "u1", time.Now()))

	if records := store.ReadAll(); len(records) != 0 {
		t.Errorf("got %d records from unwritable store, want 0", len(records))
	}
}

// ---------------------------------------------------------------------------
// PruneOlderThan
// ---------------------------------------------------------------------------

func TestPruneOlderThan_RemovesOnlyAgedRecords(t *testing.T) {
	store := auditlog.NewStore(t.TempDir())
	now := time.Now()

	store.Append(recordAt("old", "u1", now.AddDate(0, 0, -30)))
	store.Append(recordAt("fresh", "u1", now))

	removed := store.PruneOlderThan(7)
	if removed != 1 {
		t.Errorf("PruneOlderThan(7) = %d, want 1", removed)
	}

	records := store.ReadAll()
	if len(records) != 1 {
		t.Fatalf("got %d records after prune, want 1", len(records))
	}
	if records[0].ID != "fresh" {
		t.Errorf("surviving record is %q, want fresh", records[0].ID)
	}
}

func TestPruneOlderThan_NothingToRemove(t *testing.T) {
	store := auditlog.NewStore(t.TempDir())
	store.Append(recordAt("r1", "u1", time.Now()))

	if removed := store.PruneOlderThan(7); removed != 0 {
		t.Errorf("PruneOlderThan(7) = %d, want 0", removed)
	}
	if records := store.ReadAll(); len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
}

func TestPruneOlderThan_MalformedTimestampIsPruned(t *testing.T) {
	store := auditlog.NewStore(t.TempDir())
	store.Append(auditlog.Record{ID: "bad", Action: "x", CreatedAt: "garbage"})
	store.Append(recordAt("good", "u1", time.Now()))

	if removed := store.PruneOlderThan(7); removed != 1 {
		t.Errorf("PruneOlderThan(7) = %d, want 1 (malformed timestamp counts as oldest)", removed)
	}
	records := store.ReadAll()
	if len(records) != 1 || records[0].ID != "good" {
		t.Errorf("got %+v, want only the good record", records)
	}
}

// ---------------------------------------------------------------------------
// Concurrency — appends from many goroutines must not lose updates
// ---------------------------------------------------------------------------

func TestAppend_ConcurrentAppendsAllSurvive(t *testing.T) {
	store := auditlog.NewStore(t.TempDir())

	const n = 25
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			store.Append(recordAt(fmt.Sprintf("r%d", i), "u1", time.Now()))
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}

	if got := len(store.ReadAll()); got != n {
		t.Errorf("got %d records after %d concurrent appends, want %d", got, n, n)
	}
}
