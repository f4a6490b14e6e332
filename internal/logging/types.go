package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	VersionID   string
	DeviceKey   string
	TriggerType string // "tick" | "reset" | "rollback"
	ReadingJSON string
	Decision    string
	Reason      string
	CreatedAt   time.Time
}

// #endregion provenance-entry

// #region tick-record
// TickRecord captures what a tick saw and decided. Serialized as JSON into
// provenance_log.reading_json so a tick can be reconstructed later.
type TickRecord struct {
	Tag      string `json:"tag"`
	Device   string `json:"device"`
	Strategy string `json:"strategy"`
	Step     int    `json:"step"`
	Seed     uint64 `json:"seed"`

	Total     int     `json:"total"`
	Remaining int     `json:"remaining"`
	Buildable int     `json:"buildable"`
	Fitness   float64 `json:"fitness"`

	PreviousFitness float64 `json:"previous_fitness"`
	Applied         string  `json:"applied,omitempty"`
	Escalated       bool    `json:"escalated,omitempty"`

	Outcome string `json:"outcome"`
	Phase   string `json:"phase"`
}

// #endregion tick-record
