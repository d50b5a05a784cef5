// Package sink defines the uniform persistence contract shared by every
// destination the feed handler writes to, plus the concrete adapters.
package sink

import (
	"context"

	"github.com/rs/zerolog"
)

// ColumnType is the abstract type set every adapter must know how to render.
type ColumnType int

const (
	// TypeInt maps to a 64-bit integer column.
	TypeInt ColumnType = iota
	// TypeDecimal maps to a decimal(20,8) column.
	TypeDecimal
	// TypeText maps to a free-form text column.
	TypeText
	// TypeTime maps to a normalized timestamp-string column.
	TypeTime
)

// Row is one insert request. Values are parallel to Columns and Types.
// PrimaryKey holds indices into Columns; when OrReplace is set and the key is
// non-empty, the adapter must replace the row whose key columns match.
type Row struct {
	Table      string
	Columns    []string
	Types      []ColumnType
	Values     []any
	PrimaryKey []int
	OrReplace  bool
	Commit     bool
}

// Query is one select request against a sink that supports reads.
type Query struct {
	Table     string
	Columns   []string
	Condition string
	OrderBy   string
	Limit     int
	FetchAll  bool
}

// Store is the capability set every sink implements. Adapters that have no
// meaningful answer for an operation return without error so the ingest path
// can treat all sinks uniformly.
type Store interface {
	Name() string
	Create(ctx context.Context, table string, columns []string, types []ColumnType, primaryKey []int, ifNotExists bool) error
	Insert(ctx context.Context, row Row) error
	Select(ctx context.Context, q Query) ([][]string, error)
	Delete(ctx context.Context, table, condition string) error
	Commit(ctx context.Context) error
	Close() error
}

// InsertAll fans one row out to every sink. A sink failure is logged and
// swallowed; the remaining sinks still receive the row.
func InsertAll(ctx context.Context, sinks []Store, row Row, log zerolog.Logger) {
	for _, s := range sinks {
		if err := s.Insert(ctx, row); err != nil {
			log.Error().
				Err(err).
				Str("sink", s.Name()).
				Str("table", row.Table).
				Msg("sink insert failed; row dropped for this sink")
		}
	}
}

// CreateAll runs one create against every sink, collecting the first error.
func CreateAll(ctx context.Context, sinks []Store, table string, columns []string, types []ColumnType, primaryKey []int, ifNotExists bool) error {
	for _, s := range sinks {
		if err := s.Create(ctx, table, columns, types, primaryKey, ifNotExists); err != nil {
			return err
		}
	}
	return nil
}
