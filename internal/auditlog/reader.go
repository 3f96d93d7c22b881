package auditlog

import (
	"encoding/json"
	"fmt"
	"sort"
)

// CategoryAdminActivity is the single category the flat-file trail serves.
// External day-partitioned stores may carry more.
const CategoryAdminActivity = "admin-activity"

// dateLayout is the day-partition key format.
const dateLayout = "2006-01-02"

// TrailReader adapts the flat-file trail to the day-partitioned reader
// interface, so query surfaces built against that interface can run on the
// local store without an external log backend.
type TrailReader struct {
	src RecordSource
}

// NewTrailReader returns a reader backed by src.
func NewTrailReader(src RecordSource) *TrailReader {
	return &TrailReader{src: src}
}

// ReadLogs returns the records created on date (YYYY-MM-DD), newest first,
// optionally filtered to one actor ID. Categories other than admin-activity
// yield no entries. Records with unparseable timestamps belong to no date.
func (r *TrailReader) ReadLogs(category, date, userFilter string) ([]map[string]any, error) {
	if category != CategoryAdminActivity {
		return []map[string]any{}, nil
	}

	var matched []Record
	for _, rec := range sortNewestFirst(r.src.ReadAll()) {
		created := rec.Created()
		if created.IsZero() || created.Format(dateLayout) != date {
			continue
		}
		if userFilter != "" && rec.ActorID != userFilter {
			continue
		}
		matched = append(matched, rec)
	}

	entries := make([]map[string]any, 0, len(matched))
	for _, rec := range matched {
		entry, err := recordToEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("converting record %s: %w", rec.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListAvailableDates returns the distinct dates with at least one record,
// newest first. Categories other than admin-activity yield no dates.
func (r *TrailReader) ListAvailableDates(category string) ([]string, error) {
	if category != CategoryAdminActivity {
		return []string{}, nil
	}

	seen := make(map[string]struct{})
	for _, rec := range r.src.ReadAll() {
		created := rec.Created()
		if created.IsZero() {
			continue
		}
		seen[created.Format(dateLayout)] = struct{}{}
	}

	dates := make([]string, 0, len(seen))
	for date := range seen {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

// recordToEntry flattens a record into the generic entry shape through its
// wire representation, so field names match the on-disk format.
func recordToEntry(rec Record) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	return entry, nil
}
