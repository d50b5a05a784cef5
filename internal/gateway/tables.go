package gateway

import (
	"context"
	"strconv"
	"time"

	"github.com/coachpo/befh/internal/market"
	"github.com/coachpo/befh/internal/sink"
)

const tradesDateLayout = "20060102"

// OrderBookTableName is the per-instrument append-only book history table.
// Name segments go through sink.Token so the key-value adapter can map the
// table back to its bucket keys.
func OrderBookTableName(exchange, instrument string) string {
	return "exch_" + sink.Token(exchange) + "_" + sink.Token(instrument) + "_snapshot"
}

// TradesTableName is the per-instrument daily trades table for day.
func TradesTableName(exchange, instrument string, day time.Time) string {
	return "exch_" + sink.Token(exchange) + "_" + sink.Token(instrument) +
		"_trades_" + day.UTC().Format(tradesDateLayout)
}

// SnapshotColumns is the shared snapshot table layout, upserted by
// (exchange, instmt).
func SnapshotColumns() []string {
	cols := make([]string, 0, 9+4*market.SnapshotDepth)
	cols = append(cols, "exchange", "instmt", "trade_px", "trade_volume")
	cols = append(cols, levelColumns()...)
	cols = append(cols, "order_book_id", "trade_id", "order_date_time", "trades_date_time", "update_type")
	return cols
}

// SnapshotTypes parallels SnapshotColumns.
func SnapshotTypes() []sink.ColumnType {
	types := make([]sink.ColumnType, 0, 9+4*market.SnapshotDepth)
	types = append(types, sink.TypeText, sink.TypeText, sink.TypeDecimal, sink.TypeDecimal)
	for i := 0; i < 4*market.SnapshotDepth; i++ {
		types = append(types, sink.TypeDecimal)
	}
	types = append(types, sink.TypeInt, sink.TypeInt, sink.TypeTime, sink.TypeTime, sink.TypeInt)
	return types
}

func levelColumns() []string {
	cols := make([]string, 0, 4*market.SnapshotDepth)
	for _, prefix := range []string{"b", "bq", "a", "aq"} {
		for i := 1; i <= market.SnapshotDepth; i++ {
			cols = append(cols, prefix+strconv.Itoa(i))
		}
	}
	return cols
}

func orderBookColumns() []string {
	cols := make([]string, 0, 3+4*market.SnapshotDepth)
	cols = append(cols, "id", "date_time")
	cols = append(cols, levelColumns()...)
	cols = append(cols, "update_type")
	return cols
}

func orderBookTypes() []sink.ColumnType {
	types := make([]sink.ColumnType, 0, 3+4*market.SnapshotDepth)
	types = append(types, sink.TypeInt, sink.TypeTime)
	for i := 0; i < 4*market.SnapshotDepth; i++ {
		types = append(types, sink.TypeDecimal)
	}
	types = append(types, sink.TypeInt)
	return types
}

func tradeColumns() []string {
	return []string{"id", "exch_trade_id", "date_time", "trade_px", "trade_volume", "trade_side"}
}

func tradeTypes() []sink.ColumnType {
	return []sink.ColumnType{sink.TypeInt, sink.TypeText, sink.TypeTime, sink.TypeDecimal, sink.TypeDecimal, sink.TypeInt}
}

// InitSnapshotTable creates the shared snapshot table on every sink. Called
// once at startup, before any gateway starts.
func InitSnapshotTable(ctx context.Context, sinks []sink.Store) error {
	return sink.CreateAll(ctx, sinks, sink.SnapshotTable, SnapshotColumns(), SnapshotTypes(), []int{0, 1}, true)
}
