// Package trace journals configure and frame transitions to SQLite so a
// session can be inspected after the fact.
package trace

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/1broseidon/winsync/internal/configure"
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/subsurface"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	backend    TEXT NOT NULL,
	title      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	at         INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	serial     INTEGER NOT NULL DEFAULT -1,
	viz_seq    INTEGER NOT NULL DEFAULT -1,
	detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS events_by_session ON events(session_id, id);
`

// Event kinds stored in the journal.
const (
	KindQueued       = "queued"
	KindApplied      = "applied"
	KindLatched      = "latched"
	KindGeometry     = "geometry"
	KindAck          = "ack"
	KindFrame        = "frame"
	KindProducerLost = "producer_lost"
)

const (
	queueSize = 1024
	batchSize = 128
)

// Event is one journal row.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Kind      string    `json:"kind"`
	Serial    int64     `json:"serial"`
	VizSeq    int64     `json:"viz_seq"`
	Detail    string    `json:"detail"`
}

// Session is one daemon run.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Backend   string    `json:"backend"`
	Title     string    `json:"title"`
	Events    int       `json:"events"`
}

// Journal records events for one session. Recording never blocks; events
// are written by Serve in batches and dropped when the buffer is full.
type Journal struct {
	db      *sql.DB
	session string
	logger  *slog.Logger
	now     func() time.Time

	events  chan Event
	dropped atomic.Int64
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(2000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to trace database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create trace schema: %w", err)
	}
	return db, nil
}

// NewJournal starts a new session in db.
func NewJournal(ctx context.Context, db *sql.DB, backend, title string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Journal{
		db:      db,
		session: uuid.NewString(),
		logger:  logger,
		now:     time.Now,
		events:  make(chan Event, queueSize),
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, backend, title) VALUES (?, ?, ?, ?)`,
		j.session, j.now().UnixNano(), backend, title)
	if err != nil {
		return nil, fmt.Errorf("failed to record trace session: %w", err)
	}
	return j, nil
}

// SessionID returns the UUID of the running session.
func (j *Journal) SessionID() string { return j.session }

// Dropped returns how many events were discarded because the buffer was full.
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

func (j *Journal) String() string { return "trace-journal" }

// Serve writes buffered events until ctx is cancelled, then flushes what is
// left.
func (j *Journal) Serve(ctx context.Context) error {
	writeCtx := context.WithoutCancel(ctx)
	batch := make([]Event, 0, batchSize)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-j.events:
					batch = append(batch, ev)
				default:
					if err := j.write(writeCtx, batch); err != nil {
						j.logger.Error("failed to flush trace events", "error", err)
					}
					return ctx.Err()
				}
			}
		case ev := <-j.events:
			batch = append(batch, ev)
		drain:
			for len(batch) < batchSize {
				select {
				case ev := <-j.events:
					batch = append(batch, ev)
				default:
					break drain
				}
			}
			if err := j.write(writeCtx, batch); err != nil {
				j.logger.Error("failed to write trace events", "count", len(batch), "error", err)
			}
			batch = batch[:0]
		}
	}
}

func (j *Journal) write(ctx context.Context, batch []Event) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (session_id, at, kind, serial, viz_seq, detail) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, ev := range batch {
		if _, err := stmt.ExecContext(ctx, j.session, ev.At.UnixNano(), ev.Kind, ev.Serial, ev.VizSeq, ev.Detail); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert: %w", err)
		}
	}
	return tx.Commit()
}

// Record queues an event.
func (j *Journal) Record(kind string, serial, vizSeq int64, detail string) {
	ev := Event{At: j.now(), Kind: kind, Serial: serial, VizSeq: vizSeq, Detail: detail}
	select {
	case j.events <- ev:
	default:
		j.dropped.Add(1)
	}
}

func (j *Journal) OnRequestQueued(req configure.Request) {
	j.Record(KindQueued, req.Serial, req.VizSeq, req.State.String())
}

func (j *Journal) OnApplied(req configure.Request) {
	j.Record(KindApplied, req.Serial, req.VizSeq, req.State.String())
}

func (j *Journal) OnLatched(req configure.Request) {
	j.Record(KindLatched, req.Serial, req.VizSeq, req.State.String())
}

func (j *Journal) OnGeometry(r geometry.Rect) {
	j.Record(KindGeometry, configure.NoSerial, configure.NoFrame, r.String())
}

func (j *Journal) OnAcked(serial int64) {
	j.Record(KindAck, serial, configure.NoFrame, "")
}

// OnFrame records a presented frame.
func (j *Journal) OnFrame(rec subsurface.FrameRecord) {
	j.Record(KindFrame, configure.NoSerial, rec.Metadata.VizSeq, rec.String())
}

// OnProducerLost records a frame producer loss.
func (j *Journal) OnProducerLost() {
	j.Record(KindProducerLost, configure.NoSerial, configure.SeqProducerLost, "")
}

var _ configure.Observer = (*Journal)(nil)

// Sessions lists recorded sessions, newest first.
func Sessions(ctx context.Context, db *sql.DB) ([]Session, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.id, s.started_at, s.backend, s.title, COUNT(e.id)
		FROM sessions s LEFT JOIN events e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var started int64
		if err := rows.Scan(&s.ID, &started, &s.Backend, &s.Title, &s.Events); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = time.Unix(0, started)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Events returns up to limit events of a session in order. A limit of zero
// returns all of them.
func Events(ctx context.Context, db *sql.DB, sessionID string, limit int) ([]Event, error) {
	query := `SELECT id, session_id, at, kind, serial, viz_seq, detail FROM events WHERE session_id = ? ORDER BY id`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var at int64
		if err := rows.Scan(&ev.ID, &ev.SessionID, &at, &ev.Kind, &ev.Serial, &ev.VizSeq, &ev.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.At = time.Unix(0, at)
		out = append(out, ev)
	}
	return out, rows.Err()
}
