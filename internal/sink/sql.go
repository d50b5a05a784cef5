package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/coachpo/befh/errs"
)

// dialect abstracts the differences between the relational sinks: the column
// type vocabulary and the upsert clause.
type dialect interface {
	name() string
	columnType(t ColumnType) string
	// insertStatement renders a complete insert for the row, honouring the
	// dialect's upsert mechanism when row.OrReplace is set.
	insertStatement(row Row) string
}

// sqlStore is the shared implementation behind the relational sinks. The
// mutex is held for the whole of an insert so bursts from multiple
// instrument workers cannot interleave statements on one connection.
type sqlStore struct {
	db *sql.DB
	d  dialect
	mu sync.Mutex
}

func (s *sqlStore) Name() string { return s.d.name() }

func (s *sqlStore) Create(ctx context.Context, table string, columns []string, types []ColumnType, primaryKey []int, ifNotExists bool) error {
	stmt := s.createStatement(table, columns, types, primaryKey, ifNotExists)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errs.New("", errs.CodeSink, errs.WithStatement(stmt), errs.WithCause(err))
	}
	return nil
}

func (s *sqlStore) createStatement(table string, columns []string, types []ColumnType, primaryKey []int, ifNotExists bool) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(table)
	b.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col)
		b.WriteByte(' ')
		b.WriteString(s.d.columnType(types[i]))
	}
	if len(primaryKey) > 0 {
		keys := make([]string, 0, len(primaryKey))
		for _, idx := range primaryKey {
			keys = append(keys, columns[idx])
		}
		b.WriteString(", PRIMARY KEY (")
		b.WriteString(strings.Join(keys, ", "))
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String()
}

func (s *sqlStore) Insert(ctx context.Context, row Row) error {
	stmt := s.d.insertStatement(row)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errs.New("", errs.CodeSink, errs.WithStatement(stmt), errs.WithCause(err))
	}
	return nil
}

func (s *sqlStore) Select(ctx context.Context, q Query) ([][]string, error) {
	cols := "*"
	if len(q.Columns) > 0 {
		cols = strings.Join(q.Columns, ", ")
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s", cols, q.Table)
	if q.Condition != "" {
		stmt += " WHERE " + q.Condition
	}
	if q.OrderBy != "" {
		stmt += " ORDER BY " + q.OrderBy
	}
	if q.Limit > 0 {
		stmt += " LIMIT " + strconv.Itoa(q.Limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, errs.New("", errs.CodeSink, errs.WithStatement(stmt), errs.WithCause(err))
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]string
	for rows.Next() {
		raw := make([]sql.RawBytes, len(names))
		dest := make([]any, len(names))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		record := make([]string, len(names))
		for i, v := range raw {
			record[i] = string(v)
		}
		out = append(out, record)
		if !q.FetchAll && len(out) == 1 {
			break
		}
	}
	return out, rows.Err()
}

func (s *sqlStore) Delete(ctx context.Context, table, condition string) error {
	stmt := "DELETE FROM " + table
	if condition != "" {
		stmt += " WHERE " + condition
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errs.New("", errs.CodeSink, errs.WithStatement(stmt), errs.WithCause(err))
	}
	return nil
}

// Commit is a no-op for the relational sinks; every insert runs in
// autocommit mode.
func (s *sqlStore) Commit(context.Context) error { return nil }

func (s *sqlStore) Close() error { return s.db.Close() }

// renderValue produces a SQL literal for v. Single quotes are escaped by
// doubling; decimals are rendered without scientific notation.
func renderValue(v any, t ColumnType) string {
	switch t {
	case TypeInt:
		switch n := v.(type) {
		case int64:
			return strconv.FormatInt(n, 10)
		case int:
			return strconv.Itoa(n)
		default:
			return fmt.Sprintf("%v", v)
		}
	case TypeDecimal:
		switch n := v.(type) {
		case decimal.Decimal:
			return n.String()
		case float64:
			return strconv.FormatFloat(n, 'f', -1, 64)
		default:
			return fmt.Sprintf("%v", v)
		}
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", v), "'", "''") + "'"
	}
}

// renderPlain produces the unquoted wire representation of v used by the
// non-SQL sinks (publisher, key-value, columnar).
func renderPlain(v any, t ColumnType) any {
	switch t {
	case TypeInt:
		return v
	case TypeDecimal:
		switch n := v.(type) {
		case decimal.Decimal:
			return n.String()
		case float64:
			return strconv.FormatFloat(n, 'f', -1, 64)
		default:
			return fmt.Sprintf("%v", v)
		}
	default:
		return fmt.Sprintf("%v", v)
	}
}

func renderValues(row Row) string {
	parts := make([]string, len(row.Values))
	for i, v := range row.Values {
		parts[i] = renderValue(v, row.Types[i])
	}
	return strings.Join(parts, ", ")
}

func primaryKeyColumns(row Row) []string {
	keys := make([]string, 0, len(row.PrimaryKey))
	for _, idx := range row.PrimaryKey {
		keys = append(keys, row.Columns[idx])
	}
	return keys
}

func isPrimaryKey(row Row, idx int) bool {
	for _, k := range row.PrimaryKey {
		if k == idx {
			return true
		}
	}
	return false
}
