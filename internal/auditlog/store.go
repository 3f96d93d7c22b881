package auditlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/logrelay/logrelay/internal/telemetry"
)

const (
	// DefaultMaxRecords is the retention cap. When an append pushes the trail
	// past this size the oldest records are evicted first.
	DefaultMaxRecords = 1000

	// DefaultRelPath is the trail's location under the content root.
	DefaultRelPath = "content/auth/logs/admin-activity.json"
)

// Store owns the audit trail file. All mutation is a full read-modify-write of
// the file contents guarded by an internal mutex, so concurrent appends from
// goroutines in the same process never lose updates. Multiple processes
// sharing one file are out of contract and may race.
//
// The failure policy is absolute: recording an audit event must never crash or
// error out the caller. Append and PruneOlderThan swallow I/O failures,
// reporting them on the process log stream instead.
type Store struct {
	path string
	max  int

	mu sync.Mutex
}

// NewStore returns a store rooted at dir, using the default relative file path
// and retention cap.
func NewStore(dir string) *Store {
	return NewStoreAt(filepath.Join(dir, filepath.FromSlash(DefaultRelPath)), DefaultMaxRecords)
}

// NewStoreAt returns a store over an explicit file path. maxRecords values
// below 1 fall back to DefaultMaxRecords.
func NewStoreAt(path string, maxRecords int) *Store {
	if maxRecords < 1 {
		maxRecords = DefaultMaxRecords
	}
	return &Store{path: path, max: maxRecords}
}

// Path returns the absolute location of the trail file.
func (s *Store) Path() string { return s.path }

// Ensure guarantees the containing directory and the trail file exist,
// creating the file with an empty record list when absent. It is idempotent
// and safe to call before every operation.
func (s *Store) Ensure() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat audit log file: %w", err)
	}
	data, err := EncodeRecords(nil)
	if err != nil {
		return fmt.Errorf("failed to encode empty audit log: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to create audit log file: %w", err)
	}
	return nil
}

// ReadAll loads every record currently in the trail. A missing, unreadable, or
// malformed file reads as zero records.
func (s *Store) ReadAll() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAllLocked()
}

func (s *Store) readAllLocked() []Record {
	if err := s.Ensure(); err != nil {
		slog.Warn("audit log unavailable, reading as empty", "path", s.path, "error", err)
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		slog.Warn("failed to read audit log, reading as empty", "path", s.path, "error", err)
		return nil
	}
	return DecodeRecords(data)
}

// WriteAll replaces the trail contents in full (last writer wins, no merge).
func (s *Store) WriteAll(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAllLocked(records)
}

func (s *Store) writeAllLocked(records []Record) error {
	if err := s.Ensure(); err != nil {
		return err
	}
	data, err := EncodeRecords(records)
	if err != nil {
		return fmt.Errorf("failed to encode audit log: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Append persists rec at the end of the trail, evicting the oldest records
// when the cap is exceeded. Failures are reported on the process log stream
// and otherwise ignored; the caller always observes normal completion.
func (s *Store) Append(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := append(s.readAllLocked(), rec)
	if evicted := len(records) - s.max; evicted > 0 {
		records = records[evicted:]
		telemetry.AuditRecordsEvicted.Add(float64(evicted))
	}

	if err := s.writeAllLocked(records); err != nil {
		telemetry.AuditAppendFailures.Inc()
		slog.Error("failed to append audit record", "action", rec.Action, "error", err)
		return
	}
	telemetry.AuditRecordsAppended.Inc()
}

// PruneOlderThan removes records older than maxAgeDays and reports how many
// were removed. Like Append, it never surfaces failure to the caller.
func (s *Store) PruneOlderThan(maxAgeDays int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.readAllLocked()
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)

	kept := records[:0:0]
	for _, rec := range records {
		if rec.Created().After(cutoff) {
			kept = append(kept, rec)
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return 0
	}

	if err := s.writeAllLocked(kept); err != nil {
		slog.Error("failed to rotate audit log", "error", err)
		return 0
	}
	telemetry.AuditRecordsPruned.Add(float64(removed))
	return removed
}
