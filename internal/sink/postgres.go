package sink

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewPostgres opens a PostgreSQL sink through the pgx stdlib driver. dest is
// formatted as user:pwd@host:port; schema names the database.
func NewPostgres(dest, schema string) (Store, error) {
	_, address, ok := strings.Cut(dest, "@")
	if !ok {
		return nil, fmt.Errorf("postgres destination %q: want user:pwd@host:port", dest)
	}
	dsn := fmt.Sprintf("postgres://%s/%s", dest, schema)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres %s: %w", address, err)
	}
	return &sqlStore{db: db, d: postgresDialect{}}, nil
}

type postgresDialect struct{}

func (postgresDialect) name() string { return "postgres" }

func (postgresDialect) columnType(t ColumnType) string {
	switch t {
	case TypeInt:
		return "BIGINT"
	case TypeDecimal:
		return "DECIMAL(20,8)"
	default:
		return "TEXT"
	}
}

func (postgresDialect) insertStatement(row Row) string {
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		row.Table, strings.Join(row.Columns, ", "), renderValues(row))
	if !row.OrReplace || len(row.PrimaryKey) == 0 {
		return stmt
	}
	assignments := make([]string, 0, len(row.Columns))
	for i, col := range row.Columns {
		if isPrimaryKey(row, i) {
			continue
		}
		assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return stmt + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(primaryKeyColumns(row), ", "), strings.Join(assignments, ", "))
}
