package features

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// Dialect controls how a CSV file is split into fields.
type Dialect struct {
	Delimiter        rune
	Comment          rune
	LazyQuotes       bool
	TrimLeadingSpace bool
}

// DefaultDialect is comma separated with standard quoting.
var DefaultDialect = Dialect{Delimiter: ','}

// CSVDataSource reads rows from a delimited file whose first record is the
// header.
type CSVDataSource struct {
	MappingSet
	name    string
	path    string
	dialect Dialect
}

func NewCSVDataSource(name, path string, dialect Dialect) *CSVDataSource {
	if dialect.Delimiter == 0 {
		dialect.Delimiter = DefaultDialect.Delimiter
	}
	return &CSVDataSource{name: name, path: path, dialect: dialect}
}

func (s *CSVDataSource) Name() string     { return s.name }
func (s *CSVDataSource) Path() string     { return s.path }
func (s *CSVDataSource) Dialect() Dialect { return s.dialect }

func (s *CSVDataSource) String() string {
	return fmt.Sprintf("CSVDataSource(%s)", s.name)
}

func (s *CSVDataSource) Open(ctx context.Context) (RowIterator, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &DataSourceReadError{Source: s.name, Cause: err}
	}

	r := csv.NewReader(f)
	r.Comma = s.dialect.Delimiter
	r.Comment = s.dialect.Comment
	r.LazyQuotes = s.dialect.LazyQuotes
	r.TrimLeadingSpace = s.dialect.TrimLeadingSpace
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	header, err := r.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return &csvRows{source: s.name, ctx: ctx, done: true}, nil
		}
		return nil, &DataSourceReadError{Source: s.name, Cause: fmt.Errorf("reading header: %w", err)}
	}

	return &csvRows{source: s.name, ctx: ctx, file: f, reader: r, header: header}, nil
}

type csvRows struct {
	source string
	ctx    context.Context
	file   *os.File
	reader *csv.Reader
	header []string
	index  int
	done   bool
}

func (it *csvRows) Next() (Row, error) {
	if it.done {
		return Row{}, io.EOF
	}
	if err := it.ctx.Err(); err != nil {
		return Row{}, err
	}

	record, err := it.reader.Read()
	if errors.Is(err, io.EOF) {
		it.done = true
		return Row{}, io.EOF
	}
	it.index++
	if err != nil {
		return Row{}, &DataSourceReadError{Source: it.source, Row: it.index, Cause: err}
	}

	// Short records simply lack their trailing columns.
	fields := make(map[string]string, len(it.header))
	for i, col := range it.header {
		if i < len(record) {
			fields[col] = record[i]
		}
	}
	return Row{Source: it.source, Index: it.index, Fields: fields}, nil
}

func (it *csvRows) Close() error {
	it.done = true
	if it.file == nil {
		return nil
	}
	f := it.file
	it.file = nil
	return f.Close()
}
