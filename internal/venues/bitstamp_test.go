package venues

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/coachpo/befh/internal/market"
)

func TestBitstampSubscriptionFrames(t *testing.T) {
	b := NewBitstamp("", zerolog.Nop())
	ins := market.NewInstrument("Bitstamp", "BTCUSD", "btcusd")

	frame := b.OrderBookSubscription(ins).(map[string]any)
	if frame["event"] != "bts:subscribe" {
		t.Errorf("event = %v", frame["event"])
	}
	if data := frame["data"].(map[string]string); data["channel"] != "order_book_btcusd" {
		t.Errorf("data = %v", data)
	}
	b.TradesSubscription(ins)
	if ins.TradesChannel != "live_trades_btcusd" {
		t.Errorf("trades channel = %s", ins.TradesChannel)
	}
}

func TestBitstampDepth(t *testing.T) {
	b := NewBitstamp("", zerolog.Nop())
	gw, store := newVenueGateway(t, "Bitstamp", "BTCUSD", "btcusd")
	b.OrderBookSubscription(gw.Instrument())
	b.TradesSubscription(gw.Instrument())

	payload := []byte(`{"event":"data","channel":"order_book_btcusd","data":{` +
		`"timestamp":"1700000000",` +
		`"bids":[["100.0","1.0"],["99.5","2.0"]],` +
		`"asks":[["100.5","1.0"]]}}`)
	b.Handle(context.Background(), gw, payload)

	books := store.rowsFor(gw.Instrument().OrderBookTable)
	if len(books) != 1 {
		t.Fatalf("book rows = %d, want 1", len(books))
	}
	if got := books[0].Values[1]; got != "20231114 22:13:20.000000" {
		t.Errorf("date_time = %v", got)
	}
	snap := store.rowsFor("exchanges_snapshot")[0]
	if px := snapshotColumn(t, snap, "a1").(decimal.Decimal); px.String() != "100.5" {
		t.Errorf("a1 = %s", px)
	}
}

func TestBitstampTradeSideEncoding(t *testing.T) {
	b := NewBitstamp("", zerolog.Nop())

	trade, err := b.parseTrade([]byte(`{"id":7,"timestamp":"1700000000","amount":0.1,"price":100,"type":0}`))
	if err != nil {
		t.Fatalf("parseTrade: %v", err)
	}
	if trade.Side != market.SideBuy {
		t.Errorf("type 0 side = %d, want buy", trade.Side)
	}
	if trade.ID != "7" || trade.DateTime != "20231114 22:13:20.000000" {
		t.Errorf("trade = %+v", trade)
	}

	trade, err = b.parseTrade([]byte(`{"id":8,"timestamp":"1700000001","amount":0.1,"price":100,"type":1}`))
	if err != nil {
		t.Fatalf("parseTrade: %v", err)
	}
	if trade.Side != market.SideSell {
		t.Errorf("type 1 side = %d, want sell", trade.Side)
	}

	if _, err := b.parseTrade([]byte(`{"event":"heartbeat"}`)); err == nil {
		t.Error("expected parse failure for missing keys")
	}
}

func TestBitstampRoutingIgnoresOtherEvents(t *testing.T) {
	b := NewBitstamp("", zerolog.Nop())
	gw, store := newVenueGateway(t, "Bitstamp", "BTCUSD", "btcusd")
	b.OrderBookSubscription(gw.Instrument())
	b.TradesSubscription(gw.Instrument())

	b.Handle(context.Background(), gw, []byte(`{"event":"bts:subscription_succeeded","channel":"order_book_btcusd","data":{}}`))
	if len(store.rows) != 0 {
		t.Errorf("ack produced %d rows", len(store.rows))
	}
}
