// Package history persists build records in a SQLite database under the
// user's config directory. One row per pipeline run, successes and
// failures alike, so "stagehand history" can answer what was built when
// and why it failed.
package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stagehand-cli/stagehand/internal/model"
)

// Store handles build record persistence.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex // serialize write operations
}

// DefaultPath returns the standard history database location:
// <user config dir>/stagehand/history.db.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, "stagehand", "history.db"), nil
}

// Open opens (creating if necessary) the history database at the given
// path. The parent directory is created as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	// busy_timeout and WAL via the connection string so every pooled
	// connection gets them.
	dsn := path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		digest TEXT NOT NULL DEFAULT '',
		image_tag TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	CREATE INDEX IF NOT EXISTS idx_builds_status ON builds(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores a build record. An empty ID is replaced with a random
// one, which is also written back to the record.
func (s *Store) Insert(ctx context.Context, rec *model.BuildRecord) error {
	if rec.ID == "" {
		id, err := newRecordID()
		if err != nil {
			return err
		}
		rec.ID = id
	}
	if !rec.Status.IsValid() {
		return fmt.Errorf("invalid build status %q", rec.Status)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds (id, project, digest, image_tag, status, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Project, rec.Digest, rec.ImageTag, rec.Status.String(),
		rec.Error, rec.StartedAt.Unix(), rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert build record: %w", err)
	}

	return nil
}

// List returns build records, newest first. A non-empty status filters
// to records with that outcome; limit 0 means no limit.
func (s *Store) List(ctx context.Context, status model.BuildStatus, limit int) ([]model.BuildRecord, error) {
	query := `SELECT id, project, digest, image_tag, status, error, started_at, duration_ms
		FROM builds`
	args := []interface{}{}

	if status != "" {
		if !status.IsValid() {
			return nil, fmt.Errorf("invalid build status %q", status)
		}
		query += ` WHERE status = ?`
		args = append(args, status.String())
	}
	query += ` ORDER BY started_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.BuildRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}

	return result, rows.Err()
}

// Get returns a single record by ID. Returns a CLIError with
// ExitRecordNotFound when no such record exists.
func (s *Store) Get(ctx context.Context, id string) (*model.BuildRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project, digest, image_tag, status, error, started_at, duration_ms
		FROM builds WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, model.NewCLIError(
			model.ExitRecordNotFound,
			fmt.Sprintf("build record %q not found", id),
		)
	}
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Prune deletes records started before the cutoff and returns how many
// rows were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM builds WHERE started_at < ?
	`, cutoff.Unix())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// scanner abstracts *sql.Row and *sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*model.BuildRecord, error) {
	var rec model.BuildRecord
	var status string
	var startedAt, durationMS int64

	if err := row.Scan(&rec.ID, &rec.Project, &rec.Digest, &rec.ImageTag,
		&status, &rec.Error, &startedAt, &durationMS); err != nil {
		return nil, err
	}

	parsed, err := model.ParseBuildStatus(status)
	if err != nil {
		return nil, fmt.Errorf("corrupt build record %q: %w", rec.ID, err)
	}
	rec.Status = parsed
	rec.StartedAt = time.Unix(startedAt, 0).UTC()
	rec.Duration = time.Duration(durationMS) * time.Millisecond

	return &rec, nil
}

// newRecordID returns a random 16-hex-char record identifier.
func newRecordID() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate record ID: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}
