// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/l-messias/ragrelay/pkg/storage"
)

const (
	transcriptColumns = `id, client_id, query, turns, answer, frames, outcome, error, started_at, duration_ns`

	// timeLayout is fixed width so started_at sorts chronologically as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Driver implements storage.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new SQLite-backed driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every new connection to ":memory:" is a fresh database.
	db.SetMaxOpenConns(1)

	d := &Driver{db: db}
	if err := d.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return d, nil
}

// migrate creates the necessary tables if they don't exist.
func (d *Driver) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL DEFAULT '',
		query TEXT NOT NULL,
		turns TEXT NOT NULL DEFAULT '[]',
		answer TEXT NOT NULL DEFAULT '',
		frames INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		duration_ns INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_transcripts_client_id ON transcripts(client_id);
	CREATE INDEX IF NOT EXISTS idx_transcripts_started_at ON transcripts(started_at);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Put stores a transcript. If one with the same ID exists, this is a no-op.
func (d *Driver) Put(ctx context.Context, t *storage.Transcript) (bool, error) {
	if t == nil {
		return false, storage.ErrNilTranscript
	}

	turns, err := json.Marshal(t.Turns)
	if err != nil {
		return false, fmt.Errorf("failed to marshal turns: %w", err)
	}

	// INSERT OR IGNORE keeps Put idempotent per ID.
	query := `INSERT OR IGNORE INTO transcripts (` + transcriptColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := d.db.ExecContext(ctx, query,
		t.ID,
		t.ClientID,
		t.Query,
		string(turns),
		t.Answer,
		t.Frames,
		string(t.Outcome),
		t.Error,
		t.StartedAt.UTC().Format(timeLayout),
		int64(t.Duration),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert transcript: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return n == 1, nil
}

// Get retrieves a transcript by its ID.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Transcript, error) {
	query := `SELECT ` + transcriptColumns + ` FROM transcripts WHERE id = ?`

	t, err := scanTranscript(d.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}

	return t, nil
}

// List returns all transcripts, oldest first.
func (d *Driver) List(ctx context.Context) ([]*storage.Transcript, error) {
	query := `SELECT ` + transcriptColumns + ` FROM transcripts ORDER BY started_at, id`
	return d.query(ctx, query)
}

// ListByClient returns the transcripts of one client session, oldest first.
func (d *Driver) ListByClient(ctx context.Context, clientID string) ([]*storage.Transcript, error) {
	query := `SELECT ` + transcriptColumns + ` FROM transcripts WHERE client_id = ? ORDER BY started_at, id`
	return d.query(ctx, query, clientID)
}

// Close closes the database connection.
func (d *Driver) Close() error {
	return d.db.Close()
}

func (d *Driver) query(ctx context.Context, query string, args ...any) ([]*storage.Transcript, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	var result []*storage.Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcripts: %w", err)
	}

	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTranscript(row scanner) (*storage.Transcript, error) {
	var (
		t         storage.Transcript
		turns     string
		outcome   string
		startedAt string
		duration  int64
	)

	err := row.Scan(
		&t.ID,
		&t.ClientID,
		&t.Query,
		&turns,
		&t.Answer,
		&t.Frames,
		&outcome,
		&t.Error,
		&startedAt,
		&duration,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transcript: %w", err)
	}

	if err := json.Unmarshal([]byte(turns), &t.Turns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal turns: %w", err)
	}

	t.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}

	t.Outcome = storage.Outcome(outcome)
	t.Duration = time.Duration(duration)

	return &t, nil
}
