package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// timeLayout matches the state store so rows from both tables sort together.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(ctx context.Context, db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO provenance_log (version_id, device_key, trigger_type, reading_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.VersionID),
		entry.DeviceKey,
		entry.TriggerType,
		nullIfEmpty(entry.ReadingJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region recorder
// Recorder receives one provenance entry per tick.
type Recorder interface {
	Record(ctx context.Context, entry ProvenanceEntry) error
}

// SQLRecorder writes entries into a database carrying the provenance_log table.
type SQLRecorder struct {
	db *sql.DB
}

// NewSQLRecorder creates a recorder over db.
func NewSQLRecorder(db *sql.DB) *SQLRecorder {
	return &SQLRecorder{db: db}
}

func (r *SQLRecorder) Record(ctx context.Context, entry ProvenanceEntry) error {
	return LogDecision(ctx, r.db, entry)
}

// NopRecorder drops every entry. Used with backends that keep no history.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, ProvenanceEntry) error { return nil }

// EncodeRecord marshals rec for the reading_json column.
func EncodeRecord(rec TickRecord) string {
	b, err := json.Marshal(rec)
	if err != nil {
		return ""
	}
	return string(b)
}

// #endregion recorder

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
