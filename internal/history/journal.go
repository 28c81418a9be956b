// Package history keeps a queryable journal of engine operations in SQLite.
//
// By default the database lives in memory and disappears with the process,
// matching the lifetime of the network it describes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// Operation kinds recorded in the journal.
const (
	OpLearn     = "learn"
	OpRecall    = "recall"
	OpRecallAll = "recall_all"
	OpReset     = "reset"
)

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    op TEXT NOT NULL,
    at TEXT NOT NULL,
    patterns INTEGER NOT NULL DEFAULT 0,  -- archive size after the operation
    energy INTEGER,                       -- recall only
    iterations INTEGER NOT NULL DEFAULT 0,
    converged INTEGER NOT NULL DEFAULT 0,
    error TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
CREATE INDEX IF NOT EXISTS idx_events_op ON events(op);
`

// Event is one journal row.
type Event struct {
	ID         string    `json:"id"`
	Op         string    `json:"op"`
	At         time.Time `json:"at"`
	Patterns   int       `json:"patterns"`
	Energy     *int64    `json:"energy,omitempty"`
	Iterations int       `json:"iterations,omitempty"`
	Converged  bool      `json:"converged,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Stats summarizes the journal.
type Stats struct {
	Counts         map[string]int `json:"counts"`
	Failures       int            `json:"failures"`
	MeanIterations float64        `json:"mean_iterations"` // over successful recalls
	ConvergedRate  float64        `json:"converged_rate"`  // over successful recalls
}

// Journal is a SQLite-backed event log. It is safe for concurrent use.
type Journal struct {
	mu  sync.RWMutex
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the journal at path. An empty path uses an
// in-memory database.
func Open(ctx context.Context, path string) (*Journal, error) {
	dsn := ":memory:"
	if path != "" {
		dsn = path + "?_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite works best with a single writer, and an
	// in-memory database exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Journal{db: db, now: time.Now}, nil
}

// Record stores e and returns its ID. Missing ID and At are filled in.
func (j *Journal) Record(ctx context.Context, e Event) (string, error) {
	if e.Op == "" {
		return "", fmt.Errorf("event op is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = j.now()
	}

	var energy sql.NullInt64
	if e.Energy != nil {
		energy = sql.NullInt64{Int64: *e.Energy, Valid: true}
	}
	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (id, op, at, patterns, energy, iterations, converged, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Op, e.At.UTC().Format(timeLayout), e.Patterns, energy,
		e.Iterations, boolToInt(e.Converged), errText)
	if err != nil {
		return "", fmt.Errorf("record %s event: %w", e.Op, err)
	}
	return e.ID, nil
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, op, at, patterns, energy, iterations, converged, error
		 FROM events ORDER BY at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var (
			e         Event
			at        string
			energy    sql.NullInt64
			converged int
			errText   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Op, &at, &e.Patterns, &energy, &e.Iterations, &converged, &errText); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.At, err = time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		if energy.Valid {
			v := energy.Int64
			e.Energy = &v
		}
		e.Converged = converged != 0
		e.Error = errText.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Stats aggregates the journal.
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	st := Stats{Counts: make(map[string]int)}

	rows, err := j.db.QueryContext(ctx,
		`SELECT op, COUNT(*), SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END)
		 FROM events GROUP BY op`)
	if err != nil {
		return Stats{}, fmt.Errorf("query op counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var op string
		var n, failed int
		if err := rows.Scan(&op, &n, &failed); err != nil {
			return Stats{}, fmt.Errorf("scan op count: %w", err)
		}
		st.Counts[op] = n
		st.Failures += failed
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate op counts: %w", err)
	}

	var meanIter, convRate sql.NullFloat64
	err = j.db.QueryRowContext(ctx,
		`SELECT AVG(iterations), AVG(converged) FROM events WHERE op = ? AND error IS NULL`,
		OpRecall).Scan(&meanIter, &convRate)
	if err != nil {
		return Stats{}, fmt.Errorf("query recall stats: %w", err)
	}
	st.MeanIterations = meanIter.Float64
	st.ConvergedRate = convRate.Float64

	return st, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
