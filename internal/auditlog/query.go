package auditlog

import (
	"sort"
	"time"
)

// DefaultQueryLimit bounds Recent and ByActor when the caller passes no limit.
const DefaultQueryLimit = 50

// RecordSource supplies the full record set for a query. *Store satisfies it;
// tests and alternative backings provide their own.
type RecordSource interface {
	ReadAll() []Record
}

// Queries provides read-only projections over a record source. Every query
// loads the full set and filters/sorts/paginates in memory — the trail is
// bounded, so no secondary index is kept.
type Queries struct {
	src RecordSource
}

// NewQueries returns a query layer over src.
func NewQueries(src RecordSource) *Queries {
	return &Queries{src: src}
}

// Recent returns up to limit records sorted newest first, skipping offset
// records. limit values below 1 use DefaultQueryLimit; negative offsets are
// treated as zero.
func (q *Queries) Recent(limit, offset int) []Record {
	if limit < 1 {
		limit = DefaultQueryLimit
	}
	if offset < 0 {
		offset = 0
	}

	records := sortNewestFirst(q.src.ReadAll())
	if offset >= len(records) {
		return nil
	}
	records = records[offset:]
	if len(records) > limit {
		records = records[:limit]
	}
	return records
}

// ByActor returns up to limit records for one actor, newest first.
func (q *Queries) ByActor(actorID string, limit int) []Record {
	if limit < 1 {
		limit = DefaultQueryLimit
	}

	var matched []Record
	for _, rec := range q.src.ReadAll() {
		if rec.ActorID == actorID {
			matched = append(matched, rec)
		}
	}
	matched = sortNewestFirst(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// ByResource returns every record targeting one resource, newest first.
// The result is unbounded; callers are expected to pass a narrow resource key.
func (q *Queries) ByResource(resourceType, resourceID string) []Record {
	var matched []Record
	for _, rec := range q.src.ReadAll() {
		if ptrEq(rec.ResourceType, resourceType) && ptrEq(rec.ResourceID, resourceID) {
			matched = append(matched, rec)
		}
	}
	return sortNewestFirst(matched)
}

// RecentWithinDays returns all records newer than now minus days, newest
// first. days values below 1 default to 7.
func (q *Queries) RecentWithinDays(days int) []Record {
	if days < 1 {
		days = 7
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	var matched []Record
	for _, rec := range q.src.ReadAll() {
		if rec.Created().After(cutoff) {
			matched = append(matched, rec)
		}
	}
	return sortNewestFirst(matched)
}

// sortNewestFirst sorts a copy of records by created_at descending. The sort
// is stable so records with equal timestamps keep their append order.
func sortNewestFirst(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created().After(out[j].Created())
	})
	return out
}

func ptrEq(p *string, want string) bool {
	return p != nil && *p == want
}
