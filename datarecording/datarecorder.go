// Package datarecording stores what a testbench run produced, such as signal
// changes and test results, in SQLite databases.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fatih/structs"
	"github.com/pkg/errors"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder buffers rows of typed tables and writes them in batches.
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of the
	// sample entry. Fields must be booleans, numbers or strings.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers a row. The entry must have the type of the sample
	// the table was created with.
	InsertData(tableName string, entry any)

	// ListTables returns the table names in creation order.
	ListTables() []string

	// Flush writes the buffered rows.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

const defaultBatchSize = 100000

// New creates a DataRecorder writing to path.sqlite3. An empty path picks a
// unique name. It panics if the file already exists. Buffered rows are
// flushed when the program exits through atexit.
func New(path string) DataRecorder {
	if path == "" {
		path = "socbench_recording_" + xid.New().String()
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		panic(errors.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	fmt.Fprintf(os.Stderr, "Recording to %s\n", filename)

	return NewWithDB(db)
}

// NewWithDB creates a DataRecorder on an open database.
func NewWithDB(db *sql.DB) DataRecorder {
	r := &sqliteRecorder{
		db:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(r.Flush)

	return r
}

type table struct {
	entryType reflect.Type
	insert    string
	pending   []any
}

type sqliteRecorder struct {
	lock sync.Mutex
	db   *sql.DB

	tables    map[string]*table
	order     []string
	pending   int
	batchSize int
	closed    bool
}

func columnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

// columns returns the column definitions of the struct type of entry.
func columns(entry any) ([]string, error) {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.Errorf("entry %T is not a struct", entry)
	}

	cols := make([]string, 0, t.NumField())
	for _, name := range structs.Names(entry) {
		field, _ := t.FieldByName(name)

		sqlType, ok := columnType(field.Type.Kind())
		if !ok {
			return nil, errors.Errorf("field %s of %s has unsupported type %s",
				field.Name, t, field.Type)
		}

		cols = append(cols, name+" "+sqlType)
	}

	return cols, nil
}

func (r *sqliteRecorder) CreateTable(tableName string, sampleEntry any) {
	r.lock.Lock()
	defer r.lock.Unlock()

	cols, err := columns(sampleEntry)
	if err != nil {
		panic(err)
	}

	if _, exists := r.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	r.mustExec(fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);",
		tableName, strings.Join(cols, ",\n\t")))

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	r.tables[tableName] = &table{
		entryType: reflect.TypeOf(sampleEntry),
		insert:    fmt.Sprintf("INSERT INTO %s VALUES (%s)", tableName, marks),
	}
	r.order = append(r.order, tableName)
}

func (r *sqliteRecorder) InsertData(tableName string, entry any) {
	r.lock.Lock()
	defer r.lock.Unlock()

	t, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.entryType {
		panic(fmt.Sprintf("entry %T does not match table %s of %s",
			entry, tableName, t.entryType))
	}

	t.pending = append(t.pending, entry)
	r.pending++

	if r.pending >= r.batchSize {
		r.flush()
	}
}

func (r *sqliteRecorder) ListTables() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]string(nil), r.order...)
}

func (r *sqliteRecorder) Flush() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.flush()
}

func (r *sqliteRecorder) flush() {
	if r.pending == 0 || r.closed {
		return
	}

	tx, err := r.db.Begin()
	if err != nil {
		panic(err)
	}

	for _, name := range r.order {
		t := r.tables[name]
		if len(t.pending) == 0 {
			continue
		}

		if err := insertAll(tx, t); err != nil {
			_ = tx.Rollback()
			panic(errors.Wrapf(err, "writing table %s", name))
		}

		t.pending = nil
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	r.pending = 0
}

func insertAll(tx *sql.Tx, t *table) error {
	stmt, err := tx.Prepare(t.insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range t.pending {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return err
		}
	}

	return nil
}

func (r *sqliteRecorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return nil
	}

	r.flush()
	r.closed = true

	return errors.Wrap(r.db.Close(), "closing recording database")
}

func (r *sqliteRecorder) mustExec(query string) {
	if _, err := r.db.Exec(query); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}
}
