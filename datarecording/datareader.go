package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// QueryParams narrows down a query.
type QueryParams struct {
	// Where is an SQL condition, for example "SignalName = ?".
	Where string
	Args  []any

	// OrderBy is an SQL ordering, for example "TimeFS DESC".
	OrderBy string

	// Limit caps the number of rows returned. Zero means no cap. Offset is
	// only used together with Limit.
	Limit  int
	Offset int
}

// DataReader reads back the tables a DataRecorder wrote.
type DataReader interface {
	// MapTable tells which struct type the rows of a table decode into.
	// Columns without a matching field are dropped.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped tables in mapping order.
	ListTables() []string

	// Query returns pointers to the matching rows together with the number
	// of rows that match when Limit is ignored.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

type sqliteReader struct {
	db    *sql.DB
	types map[string]reflect.Type
	order []string
}

// NewReader opens a recording for reading.
func NewReader(dbFilename string) (DataReader, error) {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dbFilename)
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a DataReader on an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		db:    db,
		types: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	if _, ok := r.types[tableName]; !ok {
		r.order = append(r.order, tableName)
	}

	r.types[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) ListTables() []string {
	return append([]string(nil), r.order...)
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	rowType, ok := r.types[tableName]
	if !ok {
		return nil, 0, errors.Errorf("table %s is not mapped", tableName)
	}

	where := ""
	if params.Where != "" {
		where = " WHERE " + params.Where
	}

	var total int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+where, params.Args...).Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "counting %s", tableName)
	}

	var q strings.Builder

	q.WriteString("SELECT * FROM " + tableName + where)

	if params.OrderBy != "" {
		q.WriteString(" ORDER BY " + params.OrderBy)
	}

	if params.Limit > 0 {
		fmt.Fprintf(&q, " LIMIT %d OFFSET %d", params.Limit, params.Offset)
	}

	rows, err := r.db.QueryContext(ctx, q.String(), params.Args...)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "querying %s", tableName)
	}
	defer rows.Close()

	results, err := decodeRows(rows, rowType)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading %s", tableName)
	}

	return results, total, nil
}

func decodeRows(rows *sql.Rows, rowType reflect.Type) ([]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any

	for rows.Next() {
		ptr := reflect.New(rowType)
		targets := make([]any, len(cols))

		for i, col := range cols {
			if f := ptr.Elem().FieldByName(col); f.IsValid() && f.CanSet() {
				targets[i] = f.Addr().Interface()
			} else {
				targets[i] = new(any)
			}
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, ptr.Interface())
	}

	return results, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}
