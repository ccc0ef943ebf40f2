package features

import (
	"context"
	"database/sql"
	"fmt"
	"io"
)

// SQLDataSource reads rows from a query. Column names of the result set are
// the row's field names; NULL fields are left out of the row.
type SQLDataSource struct {
	MappingSet
	name  string
	db    *sql.DB
	query string
	args  []any
}

func NewSQLDataSource(name string, db *sql.DB, query string, args ...any) *SQLDataSource {
	return &SQLDataSource{name: name, db: db, query: query, args: args}
}

func (s *SQLDataSource) Name() string  { return s.name }
func (s *SQLDataSource) Query() string { return s.query }

func (s *SQLDataSource) String() string {
	return fmt.Sprintf("SQLDataSource(%s)", s.name)
}

func (s *SQLDataSource) Open(ctx context.Context) (RowIterator, error) {
	rows, err := s.db.QueryContext(ctx, s.query, s.args...)
	if err != nil {
		return nil, &DataSourceReadError{Source: s.name, Cause: err}
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, &DataSourceReadError{Source: s.name, Cause: fmt.Errorf("reading columns: %w", err)}
	}

	return &sqlRows{source: s.name, rows: rows, columns: columns}, nil
}

type sqlRows struct {
	source  string
	rows    *sql.Rows
	columns []string
	index   int
}

func (it *sqlRows) Next() (Row, error) {
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return Row{}, &DataSourceReadError{Source: it.source, Row: it.index + 1, Cause: err}
		}
		return Row{}, io.EOF
	}
	it.index++

	values := make([]sql.NullString, len(it.columns))
	dest := make([]any, len(it.columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := it.rows.Scan(dest...); err != nil {
		return Row{}, &DataSourceReadError{Source: it.source, Row: it.index, Cause: err}
	}

	fields := make(map[string]string, len(it.columns))
	for i, col := range it.columns {
		if values[i].Valid {
			fields[col] = values[i].String
		}
	}
	return Row{Source: it.source, Index: it.index, Fields: fields}, nil
}

func (it *sqlRows) Close() error {
	return it.rows.Close()
}
