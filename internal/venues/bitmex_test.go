package venues

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/coachpo/befh/internal/market"
)

func TestBitmexSubscriptionFrames(t *testing.T) {
	b := NewBitmex("", zerolog.Nop())
	ins := market.NewInstrument("BitMEX", "XBTUSD", "XBTUSD")

	frame := b.OrderBookSubscription(ins).(map[string]any)
	if frame["op"] != "subscribe" {
		t.Errorf("op = %v", frame["op"])
	}
	if args := frame["args"].([]string); args[0] != "orderBook10:XBTUSD" {
		t.Errorf("args = %v", args)
	}
	if ins.TradesChannel == "" {
		b.TradesSubscription(ins)
	}
}

func TestBitmexBookFiltersSymbol(t *testing.T) {
	b := NewBitmex("", zerolog.Nop())
	gw, store := newVenueGateway(t, "BitMEX", "XBTUSD", "XBTUSD")
	b.OrderBookSubscription(gw.Instrument())
	b.TradesSubscription(gw.Instrument())

	payload := []byte(`{"table":"orderBook10","data":[` +
		`{"symbol":"ETHUSD","bids":[[50,1]],"asks":[[51,1]],"timestamp":"2023-11-14T22:13:20.000Z"},` +
		`{"symbol":"XBTUSD","bids":[[100.0,1.0],[99.5,2.0]],"asks":[[100.5,1.0]],"timestamp":"2023-11-14T22:13:20.000Z"}]}`)
	b.Handle(context.Background(), gw, payload)

	if gw.Instrument().OrderBookID != 1 {
		t.Fatalf("order book id = %d, want 1", gw.Instrument().OrderBookID)
	}
	books := store.rowsFor(gw.Instrument().OrderBookTable)
	if len(books) != 1 {
		t.Fatalf("book rows = %d, want 1", len(books))
	}
	if got := books[0].Values[1]; got != "20231114 22:13:20.000000" {
		t.Errorf("date_time = %v", got)
	}
	snap := store.rowsFor("exchanges_snapshot")[0]
	if px := snapshotColumn(t, snap, "b1").(decimal.Decimal); px.String() != "100" {
		t.Errorf("b1 = %s", px)
	}
}

func TestBitmexTrades(t *testing.T) {
	b := NewBitmex("", zerolog.Nop())
	gw, store := newVenueGateway(t, "BitMEX", "XBTUSD", "XBTUSD")
	b.OrderBookSubscription(gw.Instrument())
	b.TradesSubscription(gw.Instrument())

	payload := []byte(`{"table":"trade","data":[` +
		`{"timestamp":"2023-11-14T22:13:20.500Z","symbol":"XBTUSD","side":"Sell","size":100,"price":100.5,"trdMatchID":"m-1"},` +
		`{"timestamp":"2023-11-14T22:13:20.500Z","symbol":"XBTUSD","side":"Sell","size":100,"price":100.5,"trdMatchID":"m-1"}]}`)
	b.Handle(context.Background(), gw, payload)

	rows := store.rowsFor(gw.Instrument().TradesTable)
	if len(rows) != 1 {
		t.Fatalf("trade rows = %d, want 1 after dedup", len(rows))
	}
	if rows[0].Values[1] != "m-1" || rows[0].Values[5] != int64(market.SideSell) {
		t.Errorf("trade = %v", rows[0].Values)
	}
	if rows[0].Values[2] != "20231114 22:13:20.500000" {
		t.Errorf("date_time = %v", rows[0].Values[2])
	}

	// Subscription acks carry no table key and are ignored.
	b.Handle(context.Background(), gw, []byte(`{"success":true,"subscribe":"trade:XBTUSD"}`))
	if n := len(store.rowsFor(gw.Instrument().TradesTable)); n != 1 {
		t.Errorf("ack produced rows: %d", n)
	}
}
