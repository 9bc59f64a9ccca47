package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"wavedaq/internal/config"
)

// ErrNotFound is returned when a lookup matches no catalog row.
var ErrNotFound = errors.New("not found")

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "catalog.db"))
}

// OpenPath opens the catalog at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the catalog database location.
func (s *Store) Path() string { return s.path }

// CreateSession inserts a newly started session.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (
            id, label, state, serial_port, sample_rate, channels,
            output_dir, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.Label,
		sess.State,
		sess.SerialPort,
		sess.SampleRate,
		sess.Channels,
		sess.OutputDir,
		sess.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FinishSession records the final state and counters of a session.
func (s *Store) FinishSession(ctx context.Context, sess Session) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET
            state = ?, stopped_at = ?, produced = ?, recorded = ?,
            dropped = ?, read_errors = ?, degraded = ?, error_message = ?
         WHERE id = ?`,
		sess.State,
		sess.StoppedAt.UTC().Format(time.RFC3339Nano),
		sess.Produced,
		sess.Recorded,
		sess.Dropped,
		sess.ReadErrors,
		boolToInt(sess.Degraded),
		nullableString(sess.Error),
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", sess.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", sess.ID, ErrNotFound)
	}
	return nil
}

// AddFile registers a recording file the moment it is opened.
func (s *Store) AddFile(ctx context.Context, sessionID string, seq int, path string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO files (session_id, seq, path, opened_at) VALUES (?, ?, ?, ?)`,
		sessionID, seq, path, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// CloseFile records the final row count once rotation seals a file.
func (s *Store) CloseFile(ctx context.Context, sessionID string, seq int, rowCount int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET row_count = ?, closed_at = ? WHERE session_id = ? AND seq = ?`,
		rowCount, time.Now().UTC().Format(time.RFC3339Nano), sessionID, seq,
	)
	if err != nil {
		return fmt.Errorf("close file %s/%d: %w", sessionID, seq, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("file %s/%d: %w", sessionID, seq, ErrNotFound)
	}
	return nil
}

const sessionColumns = "id, label, state, serial_port, sample_rate, channels, output_dir, started_at, stopped_at, produced, recorded, dropped, read_errors, degraded, error_message"

// GetSession looks a session up by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessions returns up to limit sessions, newest first. A non-positive
// limit returns everything.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

const fileColumns = "id, session_id, seq, path, row_count, opened_at, closed_at"

// ListFiles returns a session's files in sequence order.
func (s *Store) ListFiles(ctx context.Context, sessionID string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE session_id = ? ORDER BY seq", sessionID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}

// GetFile looks a recording file up by id.
func (s *Store) GetFile(ctx context.Context, id int64) (*File, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*Session, error) {
	var (
		sess       Session
		startedRaw string
		stoppedRaw sql.NullString
		degraded   int64
		errMsg     sql.NullString
	)
	if err := sc.Scan(
		&sess.ID,
		&sess.Label,
		&sess.State,
		&sess.SerialPort,
		&sess.SampleRate,
		&sess.Channels,
		&sess.OutputDir,
		&startedRaw,
		&stoppedRaw,
		&sess.Produced,
		&sess.Recorded,
		&sess.Dropped,
		&sess.ReadErrors,
		&degraded,
		&errMsg,
	); err != nil {
		return nil, err
	}
	sess.StartedAt = parseTimestamp(startedRaw)
	if stoppedRaw.Valid {
		sess.StoppedAt = parseTimestamp(stoppedRaw.String)
	}
	sess.Degraded = degraded != 0
	sess.Error = errMsg.String
	return &sess, nil
}

func scanFile(sc scanner) (*File, error) {
	var (
		file      File
		openedRaw string
		closedRaw sql.NullString
	)
	if err := sc.Scan(
		&file.ID,
		&file.SessionID,
		&file.Seq,
		&file.Path,
		&file.RowCount,
		&openedRaw,
		&closedRaw,
	); err != nil {
		return nil, err
	}
	file.OpenedAt = parseTimestamp(openedRaw)
	if closedRaw.Valid {
		file.ClosedAt = parseTimestamp(closedRaw.String)
	}
	return &file, nil
}

func parseTimestamp(raw string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
