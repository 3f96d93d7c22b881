// Package auditlog implements the persistent audit trail: a bounded, append-only
// record of privileged administrative actions backed by a single JSON file, plus
// in-memory query projections over it. Audit records are intentionally separate
// from application logs — application logs are ephemeral debug output, while the
// audit trail is a durable record consumed by administrators and may be subject
// to retention policies. The store is single-process by contract: all mutation
// goes through one Store instance which serializes the read-modify-write cycle
// internally.
package auditlog

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UnknownSourceIP is recorded when the caller cannot determine the client
// address (e.g. actions triggered from a local maintenance script).
const UnknownSourceIP = "127.0.0.1"

// Record represents one logged administrative action.
type Record struct {
	ID           string         `json:"id"`
	ActorID      string         `json:"admin_user_id"`
	ActorEmail   string         `json:"admin_email"`
	Action       string         `json:"action"`
	ResourceType *string        `json:"resource_type"`
	ResourceID   *string        `json:"resource_id"`
	SourceIP     string         `json:"ip_address"`
	ClientAgent  *string        `json:"user_agent"`
	Details      map[string]any `json:"details"`
	CreatedAt    string         `json:"created_at"`
}

// NewRecord builds a record for an action performed now, assigning a fresh ID.
// sourceIP may be empty; it is replaced with UnknownSourceIP.
func NewRecord(actorID, actorEmail, action, sourceIP string) Record {
	if sourceIP == "" {
		sourceIP = UnknownSourceIP
	}
	return Record{
		ID:         uuid.New().String(),
		ActorID:    actorID,
		ActorEmail: actorEmail,
		Action:     action,
		SourceIP:   sourceIP,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Created parses the record's created_at timestamp. A missing or malformed
// timestamp yields the zero time, which sorts oldest and is removed by any
// rotation — malformed data degrades, it never errors.
func (r Record) Created() time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, r.CreatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}

// fileContainer is the canonical on-disk shape: { "logs": [...] }.
type fileContainer struct {
	Logs []Record `json:"logs"`
}

// DecodeRecords normalizes the accepted on-disk shapes into a record slice.
//
// Three shapes are tolerated:
//   - the canonical object form {"logs": [...]}
//   - a bare top-level array (written by earlier releases)
//   - anything else, which decodes to zero records
//
// Content that parses as JSON but matches neither recognized shape is treated
// as an empty trail, never as an error.
func DecodeRecords(data []byte) []Record {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	var container fileContainer
	if err := json.Unmarshal(data, &container); err == nil && container.Logs != nil {
		return container.Logs
	}

	var bare []Record
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare
	}

	return nil
}

// EncodeRecords serializes records in the canonical container form,
// pretty-printed so the file stays inspectable with standard tooling.
func EncodeRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.MarshalIndent(fileContainer{Logs: records}, "", "  ")
}
