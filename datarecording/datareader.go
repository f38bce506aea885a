package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
)

// QueryParams narrows a table read.
type QueryParams struct {
	// Where holds the WHERE clause without the "WHERE" keyword, e.g.
	// "Time > ? AND Dst = ?".
	Where string

	// Args holds the arguments for the placeholders in Where.
	Args []any

	// OrderBy specifies sorting, without the "ORDER BY" keywords, e.g.
	// "Seq ASC".
	OrderBy string
}

// DataReader reads recorded runs back from a database.
type DataReader interface {
	// MapTable declares the struct type the rows of a table decode into.
	// A table must be mapped before it can be queried.
	MapTable(tableName string, sampleEntry any)

	// Query returns the rows of a table, decoded into the mapped struct
	// type.
	Query(ctx context.Context, tableName string, params QueryParams) (
		[]any, error)

	// Close closes the reader.
	Close() error
}

type sqliteReader struct {
	*sql.DB

	tables map[string]reflect.Type
}

// NewReader opens a recorded run database for reading.
func NewReader(dbFilename string) DataReader {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		panic(err)
	}

	return &sqliteReader{
		DB:     db,
		tables: make(map[string]reflect.Type),
	}
}

// NewReaderWithDB creates a DataReader over an already opened database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		DB:     db,
		tables: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.tables[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, error) {
	rowType, ok := r.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("table %s is not mapped", tableName)
	}

	query := "SELECT * FROM " + tableName
	if params.Where != "" {
		query += " WHERE " + params.Where
	}
	if params.OrderBy != "" {
		query += " ORDER BY " + params.OrderBy
	}

	rows, err := r.QueryContext(ctx, query, params.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return decodeRows(rows, rowType)
}

// decodeRows scans every row into a fresh struct of the mapped type,
// matching columns to fields by name. Columns without a field are
// discarded.
func decodeRows(rows *sql.Rows, rowType reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any
	for rows.Next() {
		row := reflect.New(rowType).Elem()

		targets := make([]any, len(columns))
		for i, column := range columns {
			if field, ok := rowType.FieldByName(column); ok {
				targets[i] = row.FieldByIndex(field.Index).Addr().Interface()
			} else {
				targets[i] = new(any)
			}
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, row.Interface())
	}

	return results, rows.Err()
}
