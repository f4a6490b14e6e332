package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS state_versions (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	device_key    TEXT NOT NULL,
	blob          TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES state_versions(version_id)
);

CREATE INDEX IF NOT EXISTS idx_state_versions_device ON state_versions(device_key, created_at);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT,
	device_key    TEXT NOT NULL,
	trigger_type  TEXT NOT NULL,
	reading_json  TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS active_state (
	device_key    TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES state_versions(version_id)
);
`

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #endregion schema

// #region store-struct
// Store keeps versioned search state per device in SQLite. Every Save appends a version
// whose parent is the previously active one, so any earlier tick can be restored.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region backend
// Load returns the active blob for deviceKey, or "" when the device has none.
func (s *Store) Load(ctx context.Context, deviceKey string) (string, error) {
	rec, err := s.GetCurrent(ctx, deviceKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.Blob, nil
}

// Save appends a new version for deviceKey and makes it active.
func (s *Store) Save(ctx context.Context, deviceKey, blob string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT version_id FROM active_state WHERE device_key = ?`, deviceKey,
	).Scan(&parent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get active: %w", err)
	}

	var parentPtr interface{}
	if parent.Valid {
		parentPtr = parent.String
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO state_versions (version_id, parent_id, device_key, blob, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, parentPtr, deviceKey, blob, now.Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_state (device_key, version_id) VALUES (?, ?)
		 ON CONFLICT(device_key) DO UPDATE SET version_id = excluded.version_id`,
		deviceKey, id,
	)
	if err != nil {
		return "", fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Delete clears the active pointer for deviceKey. History rows are kept.
func (s *Store) Delete(ctx context.Context, deviceKey string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM active_state WHERE device_key = ?`, deviceKey); err != nil {
		return fmt.Errorf("delete active: %w", err)
	}
	return nil
}

// #endregion backend

// #region get-current
// GetCurrent reads the active version for deviceKey. It wraps sql.ErrNoRows when the
// device has no active version.
func (s *Store) GetCurrent(ctx context.Context, deviceKey string) (StateRecord, error) {
	var versionID string
	err := s.db.QueryRowContext(ctx,
		`SELECT version_id FROM active_state WHERE device_key = ?`, deviceKey,
	).Scan(&versionID)
	if err != nil {
		return StateRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(ctx, versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a specific state version by ID.
func (s *Store) GetVersion(ctx context.Context, id string) (StateRecord, error) {
	var rec StateRecord
	var parentID sql.NullString
	var createdStr string

	err := s.db.QueryRowContext(ctx,
		`SELECT version_id, parent_id, device_key, blob, created_at
		 FROM state_versions WHERE version_id = ?`, id,
	).Scan(&rec.VersionID, &parentID, &rec.DeviceKey, &rec.Blob, &createdStr)
	if err != nil {
		return StateRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	rec.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return rec, nil
}

// #endregion get-version

// #region rollback
// Rollback makes a previous version of deviceKey active again.
func (s *Store) Rollback(ctx context.Context, deviceKey, targetVersionID string) error {
	var owner string
	err := s.db.QueryRowContext(ctx,
		`SELECT device_key FROM state_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("version %s not found", targetVersionID)
	}
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if owner != deviceKey {
		return fmt.Errorf("version %s belongs to %s, not %s", targetVersionID, owner, deviceKey)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO active_state (device_key, version_id) VALUES (?, ?)
		 ON CONFLICT(device_key) DO UPDATE SET version_id = excluded.version_id`,
		deviceKey, targetVersionID,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent versions for deviceKey, newest first.
func (s *Store) ListVersions(ctx context.Context, deviceKey string, limit int) ([]StateRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version_id, parent_id, device_key, blob, created_at
		 FROM state_versions WHERE device_key = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, deviceKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []StateRecord
	for rows.Next() {
		var rec StateRecord
		var parentID sql.NullString
		var createdStr string
		if err := rows.Scan(&rec.VersionID, &parentID, &rec.DeviceKey, &rec.Blob, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if parentID.Valid {
			rec.ParentID = parentID.String
		}
		rec.CreatedAt, _ = time.Parse(timeLayout, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list-versions

// #region list-versions-with-provenance
// ListVersionsWithProvenance returns versions joined with the decision that produced them.
func (s *Store) ListVersionsWithProvenance(ctx context.Context, deviceKey string, limit int) ([]VersionWithProvenance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sv.version_id, sv.parent_id, sv.device_key, sv.blob, sv.created_at,
		        COALESCE(pl.decision, ''), COALESCE(pl.reason, ''), COALESCE(pl.reading_json, '')
		 FROM state_versions sv
		 LEFT JOIN provenance_log pl ON pl.version_id = sv.version_id
		 WHERE sv.device_key = ?
		 ORDER BY sv.created_at DESC, sv.rowid DESC LIMIT ?`, deviceKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions with provenance: %w", err)
	}
	defer rows.Close()

	var out []VersionWithProvenance
	for rows.Next() {
		var v VersionWithProvenance
		var parentID sql.NullString
		var createdStr string
		if err := rows.Scan(&v.VersionID, &parentID, &v.DeviceKey, &v.Blob, &createdStr,
			&v.Decision, &v.Reason, &v.ReadingJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if parentID.Valid {
			v.ParentID = parentID.String
		}
		v.CreatedAt, _ = time.Parse(timeLayout, createdStr)
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVersionWithProvenance retrieves one version joined with its most recent provenance row.
func (s *Store) GetVersionWithProvenance(ctx context.Context, id string) (VersionWithProvenance, error) {
	var v VersionWithProvenance
	var parentID sql.NullString
	var createdStr string

	err := s.db.QueryRowContext(ctx,
		`SELECT sv.version_id, sv.parent_id, sv.device_key, sv.blob, sv.created_at,
		        COALESCE(pl.decision, ''), COALESCE(pl.reason, ''), COALESCE(pl.reading_json, '')
		 FROM state_versions sv
		 LEFT JOIN provenance_log pl ON pl.version_id = sv.version_id
		 WHERE sv.version_id = ?
		 ORDER BY pl.id DESC LIMIT 1`, id,
	).Scan(&v.VersionID, &parentID, &v.DeviceKey, &v.Blob, &createdStr,
		&v.Decision, &v.Reason, &v.ReadingJSON)
	if err != nil {
		return VersionWithProvenance{}, fmt.Errorf("get version %s: %w", id, err)
	}
	if parentID.Valid {
		v.ParentID = parentID.String
	}
	v.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return v, nil
}

// #endregion list-versions-with-provenance
