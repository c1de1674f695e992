// Package proberec persists probe observations into a SQLite database
// so register hypotheses can be compared across attempts offline. Every
// attempt gets a fresh id; rows are buffered and flushed in one
// transaction at Flush, Close or process exit.
package proberec

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// SQLite driver for database/sql.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// Recorder buffers typed rows per table and writes them to SQLite.
type Recorder struct {
	db        *sql.DB
	path      string
	attempt   string
	batchSize int
	tables    map[string]*table
}

type table struct {
	structType reflect.Type
	entries    []any
}

// New opens (or creates) the database at path. Empty path derives a
// fresh name from the attempt id. The returned recorder is registered
// for flush at process exit.
func New(path string) (*Recorder, error) {
	attempt := xid.New().String()
	if path == "" {
		path = "mt7927_probe_" + attempt
	}
	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("proberec: open %s: %w", path, err)
	}
	r := &Recorder{
		db:        db,
		path:      path,
		attempt:   attempt,
		batchSize: 1000,
		tables:    make(map[string]*table),
	}
	atexit.Register(func() { r.Flush() })
	return r, nil
}

// AttemptID identifies this process's bring-up attempt in every row.
func (r *Recorder) AttemptID() string { return r.attempt }

// Path returns the database file path.
func (r *Recorder) Path() string { return r.path }

// CreateTable declares a table shaped like sampleEntry's fields.
// Creating an already-declared table is a no-op.
func (r *Recorder) CreateTable(name string, sampleEntry any) error {
	if _, ok := r.tables[name]; ok {
		return nil
	}
	typ := reflect.TypeOf(sampleEntry)
	cols := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		cols = append(cols, fmt.Sprintf("%s %s", strings.ToLower(f.Name), sqlType(f.Type)))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, strings.Join(cols, ", "))
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("proberec: create %s: %w", name, err)
	}
	r.tables[name] = &table{structType: typ}
	return nil
}

func sqlType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Bool:
		return "INTEGER"
	case reflect.Float32, reflect.Float64:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Insert buffers one row. The entry type must match the declared table.
func (r *Recorder) Insert(name string, entry any) error {
	t, ok := r.tables[name]
	if !ok {
		return fmt.Errorf("proberec: table %s not declared", name)
	}
	if reflect.TypeOf(entry) != t.structType {
		return fmt.Errorf("proberec: table %s expects %v", name, t.structType)
	}
	t.entries = append(t.entries, entry)
	if len(t.entries) >= r.batchSize {
		return r.flushTable(name, t)
	}
	return nil
}

// Flush writes all buffered rows.
func (r *Recorder) Flush() error {
	for name, t := range r.tables {
		if err := r.flushTable(name, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) flushTable(name string, t *table) error {
	if len(t.entries) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("proberec: begin: %w", err)
	}
	ph := "(" + strings.TrimSuffix(strings.Repeat("?,", t.structType.NumField()), ",") + ")"
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s VALUES %s", name, ph))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("proberec: prepare %s: %w", name, err)
	}
	for _, e := range t.entries {
		if _, err := stmt.Exec(structs.Values(e)...); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("proberec: insert into %s: %w", name, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("proberec: commit %s: %w", name, err)
	}
	t.entries = t.entries[:0]
	return nil
}

// Close flushes and closes the database.
func (r *Recorder) Close() error {
	ferr := r.Flush()
	cerr := r.db.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}

// Remove deletes the database file. Test helper.
func (r *Recorder) Remove() error {
	return os.Remove(r.path)
}
