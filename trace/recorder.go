// Package trace records pipeline events into a SQLite database. A recorder
// is attached to a pipeline as an Akita hook.
package trace

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/rvsim/timing/pipeline"
)

// ErrDatabaseExists is returned by Init when the trace file already exists.
var ErrDatabaseExists = errors.New("trace database already exists")

// ErrNotInitialized is returned when the database is used before Init.
var ErrNotInitialized = errors.New("trace database not initialized")

// Record is one row of the trace.
type Record struct {
	ID    string
	Cycle uint64
	Kind  string
	PC    uint32
	Op    string
}

// SQLiteRecorder buffers pipeline events and writes them to SQLite in
// batches.
type SQLiteRecorder struct {
	*sql.DB
	statement *sql.Stmt

	dbName    string
	buffer    []Record
	batchSize int
}

// NewSQLiteRecorder creates a recorder writing to path + ".sqlite3". An
// empty path picks a unique name.
func NewSQLiteRecorder(path string) *SQLiteRecorder {
	return &SQLiteRecorder{
		dbName:    path,
		batchSize: 10000,
	}
}

// Init creates the database and its table. Buffered records are flushed
// when the program exits through atexit.
func (r *SQLiteRecorder) Init() error {
	if r.dbName == "" {
		r.dbName = "rvsim_trace_" + xid.New().String()
	}

	filename := r.Path()
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("%w: %s", ErrDatabaseExists, filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return fmt.Errorf("failed to open trace database: %w", err)
	}
	r.DB = db

	if _, err := r.Exec(`
		create table trace
		(
			event_id varchar(32) not null primary key,
			cycle    integer     not null,
			kind     varchar(16) not null,
			pc       integer     not null,
			op       varchar(16) not null
		);
		create index trace_kind_index on trace (kind);
	`); err != nil {
		return fmt.Errorf("failed to create trace table: %w", err)
	}

	r.statement, err = r.Prepare(
		"insert into trace(event_id, cycle, kind, pc, op) values(?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare trace statement: %w", err)
	}

	atexit.Register(func() { _ = r.Flush() })

	return nil
}

// Path returns the database file name.
func (r *SQLiteRecorder) Path() string {
	return r.dbName + ".sqlite3"
}

// Func records a pipeline hook invocation.
func (r *SQLiteRecorder) Func(ctx sim.HookCtx) {
	event, ok := ctx.Item.(pipeline.Event)
	if !ok {
		return
	}

	r.buffer = append(r.buffer, Record{
		ID:    xid.New().String(),
		Cycle: event.Cycle,
		Kind:  ctx.Pos.Name,
		PC:    event.PC,
		Op:    event.Op.String(),
	})

	if len(r.buffer) >= r.batchSize {
		if err := r.Flush(); err != nil {
			panic(err)
		}
	}
}

// Flush writes all the buffered records to the database.
func (r *SQLiteRecorder) Flush() error {
	if r.DB == nil {
		return ErrNotInitialized
	}

	if len(r.buffer) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin trace transaction: %w", err)
	}

	stmt := tx.Stmt(r.statement)
	for _, rec := range r.buffer {
		if _, err := stmt.Exec(rec.ID, rec.Cycle, rec.Kind, rec.PC, rec.Op); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert trace record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace: %w", err)
	}

	r.buffer = nil
	return nil
}

// Close flushes the buffer and closes the database.
func (r *SQLiteRecorder) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}
	return r.DB.Close()
}

// Records returns the flushed records of the given kind in cycle order. An
// empty kind returns every record.
func (r *SQLiteRecorder) Records(kind string) ([]Record, error) {
	if r.DB == nil {
		return nil, ErrNotInitialized
	}

	query := "select event_id, cycle, kind, pc, op from trace"
	var args []any
	if kind != "" {
		query += " where kind = ?"
		args = append(args, kind)
	}
	query += " order by cycle, rowid"

	rows, err := r.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Cycle, &rec.Kind, &rec.PC, &rec.Op); err != nil {
			return nil, fmt.Errorf("failed to scan trace record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Counts returns the number of flushed records per kind.
func (r *SQLiteRecorder) Counts() (map[string]int, error) {
	if r.DB == nil {
		return nil, ErrNotInitialized
	}

	rows, err := r.Query("select kind, count(*) from trace group by kind")
	if err != nil {
		return nil, fmt.Errorf("failed to query trace: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan trace count: %w", err)
		}
		counts[kind] = n
	}

	return counts, rows.Err()
}
