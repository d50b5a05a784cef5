package sink

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func tradeRow(table string) Row {
	return Row{
		Table:      table,
		Columns:    []string{"id", "exch_trade_id", "date_time", "trade_px", "trade_volume", "trade_side"},
		Types:      []ColumnType{TypeInt, TypeText, TypeTime, TypeDecimal, TypeDecimal, TypeInt},
		Values:     []any{int64(1), "a", "20231114 22:13:20.500000", decimal.RequireFromString("100"), decimal.RequireFromString("0.1"), int64(1)},
		PrimaryKey: []int{0},
		Commit:     true,
	}
}

func TestRedisTradeBucketing(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := newRedisWithClient(client)
	defer store.Close()

	periodKey := "befh_etp_okex_btc_1700000000"
	queueKey := "befh_etpq_okex_btc"
	pricesKey := "befh_etpr_okex_btc"

	mock.ExpectLPush(periodKey, "100/0.1").SetVal(1)
	mock.ExpectZAdd(queueKey, redis.Z{Score: 1700000000, Member: periodKey}).SetVal(1)
	mock.ExpectZAdd(pricesKey, redis.Z{Score: 1700000000, Member: "1700000000/100"}).SetVal(1)

	if err := store.Insert(context.Background(), tradeRow("exch_okex_btc_trades_20231114")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisSnapshotProjection(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := newRedisWithClient(client)
	defer store.Close()

	row := Row{
		Table:      SnapshotTable,
		Columns:    []string{"exchange", "instmt", "trade_px"},
		Types:      []ColumnType{TypeText, TypeText, TypeDecimal},
		Values:     []any{"Okex", "BTC", decimal.RequireFromString("100.5")},
		PrimaryKey: []int{0, 1},
		OrReplace:  true,
	}

	payload, err := json.Marshal(map[string]any{
		"table":    SnapshotTable,
		"exchange": "Okex",
		"instmt":   "BTC",
		"trade_px": "100.5",
	})
	if err != nil {
		t.Fatalf("marshal expected payload: %v", err)
	}

	mock.ExpectSet("befh_es_okex_btc_exchange", "Okex", 0).SetVal("OK")
	mock.ExpectSet("befh_es_okex_btc_instmt", "BTC", 0).SetVal("OK")
	mock.ExpectSet("befh_es_okex_btc_trade_px", "100.5", 0).SetVal("OK")
	mock.ExpectPublish(SnapshotChannel, payload).SetVal(1)

	if err := store.Insert(context.Background(), row); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisIgnoresOrderBookTables(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := newRedisWithClient(client)
	defer store.Close()

	row := Row{
		Table:   "exch_okex_btc_snapshot",
		Columns: []string{"id"},
		Types:   []ColumnType{TypeInt},
		Values:  []any{int64(1)},
	}
	if err := store.Insert(context.Background(), row); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestParseTradesTable(t *testing.T) {
	exchange, instrument, ok := ParseTradesTable("exch_okex_btc_usdt_trades_20231114")
	if !ok {
		t.Fatal("expected match")
	}
	if exchange != "okex" || instrument != "btc_usdt" {
		t.Errorf("got %q %q", exchange, instrument)
	}

	if _, _, ok := ParseTradesTable(SnapshotTable); ok {
		t.Error("snapshot table must not match")
	}
	if _, _, ok := ParseTradesTable("exch_okex_btc_snapshot"); ok {
		t.Error("order book table must not match")
	}
}

func TestParsePeriodEpoch(t *testing.T) {
	epoch, ok := ParsePeriodEpoch("befh_etp_okex_btc_1700000000")
	if !ok || epoch != 1700000000 {
		t.Errorf("got %d %v", epoch, ok)
	}
	if _, ok := ParsePeriodEpoch("befh_etpq_okex_btc"); ok {
		t.Error("queue key must not parse as period")
	}
}
