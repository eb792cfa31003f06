// services/recorder/store.go
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	device      TEXT NOT NULL,
	config      TEXT
);

CREATE TABLE IF NOT EXISTS readings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  INTEGER NOT NULL REFERENCES sessions(id),
	sensor_type TEXT NOT NULL,
	handle      INTEGER NOT NULL,
	ts_ms       INTEGER NOT NULL,
	payload     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_readings_session ON readings(session_id, ts_ms);
`

const insertReadingSQL = `
INSERT INTO readings (session_id, sensor_type, handle, ts_ms, payload)
VALUES (?, ?, ?, ?, ?)`

// Row is one recorded reading.
type Row struct {
	SensorType string
	Handle     int
	TsMs       int64
	Payload    any
}

// Store persists sensor readings to a SQLite database. Connections are
// opened lazily on first use.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewStore creates a store backed by the SQLite database at dbPath.
// Use ":memory:" for an ephemeral database.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.writeDB = db
	})
	return s.writeDB, s.writeDBErr
}

// CreateSession opens a recording session and returns its id. The config
// blob, when non-nil, is stored as JSON alongside the session.
func (s *Store) CreateSession(ctx context.Context, device string, config any) (int64, error) {
	db, err := s.getWriteDB()
	if err != nil {
		return 0, err
	}

	var configData sql.NullString
	if config != nil {
		b, err := json.Marshal(config)
		if err != nil {
			return 0, fmt.Errorf("encoding session config: %w", err)
		}
		configData.Valid = true
		configData.String = string(b)
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO sessions (device, config) VALUES (?, ?)`, device, configData)
	if err != nil {
		return 0, fmt.Errorf("creating session: %w", err)
	}
	return res.LastInsertId()
}

// WriteBatch inserts rows in a single transaction.
func (s *Store) WriteBatch(ctx context.Context, sessionID int64, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	db, err := s.getWriteDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encoding payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, sessionID, r.SensorType, r.Handle, r.TsMs, string(payload)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("inserting reading: %w", err)
		}
	}
	return tx.Commit()
}

// CountReadings returns how many readings a session holds.
func (s *Store) CountReadings(ctx context.Context, sessionID int64) (int64, error) {
	db, err := s.getWriteDB()
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM readings WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// Close releases the database connections.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.writeDB != nil {
			s.closeErr = s.writeDB.Close()
		}
	})
	return s.closeErr
}
