package features

import (
	"context"
)

// Row is one record of a data source, keyed by column name.
type Row struct {
	Source string
	// Index is 1-based and does not count a header line.
	Index  int
	Fields map[string]string
}

// Value returns the named column or a MissingColumnError.
func (r Row) Value(column string) (string, error) {
	v, ok := r.Fields[column]
	if !ok {
		return "", &MissingColumnError{Source: r.Source, Row: r.Index, Column: column}
	}
	return v, nil
}

// RowIterator yields rows until Next returns io.EOF.
type RowIterator interface {
	Next() (Row, error)
	Close() error
}

// DataSource is a row-oriented origin of stipulated values. Every call to
// Open reads again from the origin.
type DataSource interface {
	Name() string
	Open(ctx context.Context) (RowIterator, error)
	Mappings() []Mapping
}

// Mapping declares that FeatureColumn holds the value of Feature for the
// entity named in NameColumn.
type Mapping struct {
	Feature       AnyFeature
	FeatureColumn string
	NameColumn    string
}

// MappingSet is embedded by data sources to carry their column mappings.
type MappingSet struct {
	mappings []Mapping
}

// AddMapping declares that the source supplies feature from featureColumn,
// for the entity named by nameColumn.
func (m *MappingSet) AddMapping(feature AnyFeature, featureColumn, nameColumn string) {
	m.mappings = append(m.mappings, Mapping{
		Feature:       feature,
		FeatureColumn: featureColumn,
		NameColumn:    nameColumn,
	})
}

func (m *MappingSet) Mappings() []Mapping {
	out := make([]Mapping, len(m.mappings))
	copy(out, m.mappings)
	return out
}

func hasEntityType(ds DataSource, et *EntityType) bool {
	for _, m := range ds.Mappings() {
		if m.Feature.EntityType() == et {
			return true
		}
	}
	return false
}

// nameColumns returns the distinct entity-name columns mapped for et, in
// declaration order.
func nameColumns(ds DataSource, et *EntityType) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, m := range ds.Mappings() {
		if m.Feature.EntityType() != et || seen[m.NameColumn] {
			continue
		}
		seen[m.NameColumn] = true
		cols = append(cols, m.NameColumn)
	}
	return cols
}

// mappingsFor returns the mappings of et keyed on nameColumn.
func mappingsFor(ds DataSource, et *EntityType, nameColumn string) []Mapping {
	var out []Mapping
	for _, m := range ds.Mappings() {
		if m.Feature.EntityType() == et && m.NameColumn == nameColumn {
			out = append(out, m)
		}
	}
	return out
}
