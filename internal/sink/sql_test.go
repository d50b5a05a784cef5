package sink

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func snapshotRow() Row {
	return Row{
		Table:      SnapshotTable,
		Columns:    []string{"exchange", "instmt", "trade_px", "trade_id"},
		Types:      []ColumnType{TypeText, TypeText, TypeDecimal, TypeInt},
		Values:     []any{"Okex", "BTC", decimal.RequireFromString("100.5"), int64(3)},
		PrimaryKey: []int{0, 1},
		OrReplace:  true,
		Commit:     true,
	}
}

func newMockStore(t *testing.T, d dialect) (*sqlStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return &sqlStore{db: db, d: d}, mock
}

func TestSQLiteUpsertStatement(t *testing.T) {
	store, mock := newMockStore(t, sqliteDialect{})
	defer store.Close()

	mock.ExpectExec("INSERT OR REPLACE INTO exchanges_snapshot (exchange, instmt, trade_px, trade_id) VALUES ('Okex', 'BTC', 100.5, 3)").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Insert(context.Background(), snapshotRow()); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMySQLUpsertStatement(t *testing.T) {
	store, mock := newMockStore(t, mysqlDialect{})
	defer store.Close()

	mock.ExpectExec("INSERT INTO exchanges_snapshot (exchange, instmt, trade_px, trade_id) VALUES ('Okex', 'BTC', 100.5, 3) ON DUPLICATE KEY UPDATE trade_px = VALUES(trade_px), trade_id = VALUES(trade_id)").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Insert(context.Background(), snapshotRow()); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresUpsertStatement(t *testing.T) {
	store, mock := newMockStore(t, postgresDialect{})
	defer store.Close()

	mock.ExpectExec("INSERT INTO exchanges_snapshot (exchange, instmt, trade_px, trade_id) VALUES ('Okex', 'BTC', 100.5, 3) ON CONFLICT (exchange, instmt) DO UPDATE SET trade_px = EXCLUDED.trade_px, trade_id = EXCLUDED.trade_id").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Insert(context.Background(), snapshotRow()); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPlainAppendWithoutReplace(t *testing.T) {
	store, mock := newMockStore(t, sqliteDialect{})
	defer store.Close()

	row := snapshotRow()
	row.OrReplace = false
	mock.ExpectExec("INSERT INTO exchanges_snapshot (exchange, instmt, trade_px, trade_id) VALUES ('Okex', 'BTC', 100.5, 3)").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Insert(context.Background(), row); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateStatement(t *testing.T) {
	store, mock := newMockStore(t, sqliteDialect{})
	defer store.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS exch_okex_btc_trades_20231114 (id INTEGER, trade_px DECIMAL(20,8), date_time TEXT, PRIMARY KEY (id))").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Create(context.Background(), "exch_okex_btc_trades_20231114",
		[]string{"id", "trade_px", "date_time"},
		[]ColumnType{TypeInt, TypeDecimal, TypeTime},
		[]int{0}, true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRenderValueEscapesQuotes(t *testing.T) {
	got := renderValue("O'Hare", TypeText)
	if got != "'O''Hare'" {
		t.Errorf("renderValue = %q", got)
	}
}

func TestRenderValueDecimalNoExponent(t *testing.T) {
	v := decimal.New(1, -8) // 0.00000001
	if got := renderValue(v, TypeDecimal); got != "0.00000001" {
		t.Errorf("renderValue = %q", got)
	}
}

func TestInsertFailureWrapsStatement(t *testing.T) {
	store, mock := newMockStore(t, sqliteDialect{})
	defer store.Close()

	mock.ExpectExec("INSERT OR REPLACE INTO exchanges_snapshot (exchange, instmt, trade_px, trade_id) VALUES ('Okex', 'BTC', 100.5, 3)").
		WillReturnError(context.DeadlineExceeded)

	err := store.Insert(context.Background(), snapshotRow())
	if err == nil {
		t.Fatal("expected error")
	}
}
