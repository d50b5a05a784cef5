package sink

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

// NewMySQL opens a MySQL sink. dest is formatted as user:pwd@host:port;
// schema names the database to use.
func NewMySQL(dest, schema string) (Store, error) {
	credentials, address, ok := strings.Cut(dest, "@")
	if !ok {
		return nil, fmt.Errorf("mysql destination %q: want user:pwd@host:port", dest)
	}
	dsn := fmt.Sprintf("%s@tcp(%s)/%s", credentials, address, schema)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql %s: %w", address, err)
	}
	return &sqlStore{db: db, d: mysqlDialect{}}, nil
}

type mysqlDialect struct{}

func (mysqlDialect) name() string { return "mysql" }

func (mysqlDialect) columnType(t ColumnType) string {
	switch t {
	case TypeInt:
		return "BIGINT"
	case TypeDecimal:
		return "DECIMAL(20,8)"
	case TypeTime:
		return "VARCHAR(26)"
	default:
		return "VARCHAR(64)"
	}
}

func (mysqlDialect) insertStatement(row Row) string {
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
		assignments = append(assignments, fmt.Sprintf("%s = VALUES(%s)", col, col))
	}
	return stmt + " ON DUPLICATE KEY UPDATE " + strings.Join(assignments, ", ")
}
