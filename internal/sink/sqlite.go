package sink

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLite opens a file-backed SQLite sink. WAL mode keeps concurrent
// instrument workers from serialising on fsync.
func NewSQLite(path string) (Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &sqlStore{db: db, d: sqliteDialect{}}, nil
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return "sqlite" }

func (sqliteDialect) columnType(t ColumnType) string {
	switch t {
	case TypeInt:
		return "INTEGER"
	case TypeDecimal:
		return "DECIMAL(20,8)"
	default:
		return "TEXT"
	}
}

func (sqliteDialect) insertStatement(row Row) string {
	verb := "INSERT"
	if row.OrReplace && len(row.PrimaryKey) > 0 {
		verb = "INSERT OR REPLACE"
	}
	return fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
		verb, row.Table, strings.Join(row.Columns, ", "), renderValues(row))
}
