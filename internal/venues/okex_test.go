package venues

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/coachpo/befh/internal/market"
)

func TestOkexSubscriptions(t *testing.T) {
	o := NewOkex("", zerolog.Nop())
	ins := market.NewInstrument("Okex", "BTC", "spot_btc_usdt")

	frame := o.OrderBookSubscription(ins).(map[string]string)
	if frame["event"] != "addChannel" || frame["channel"] != "ok_sub_spot_btc_usdt_depth" {
		t.Errorf("depth frame = %v", frame)
	}
	frame = o.TradesSubscription(ins).(map[string]string)
	if frame["channel"] != "ok_sub_spot_btc_usdt_deals" {
		t.Errorf("deals frame = %v", frame)
	}
	if ins.OrderBookChannel != "ok_sub_spot_btc_usdt_depth" || ins.TradesChannel != "ok_sub_spot_btc_usdt_deals" {
		t.Errorf("channels = %q %q", ins.OrderBookChannel, ins.TradesChannel)
	}
}

func TestOkexDepthEmitAndSuppress(t *testing.T) {
	o := NewOkex("", zerolog.Nop())
	gw, store := newVenueGateway(t, "Okex", "BTC", "spot_btc_usdt")
	ins := gw.Instrument()
	o.OrderBookSubscription(ins)
	o.TradesSubscription(ins)

	payload := []byte(`[{"channel":"ok_sub_spot_btc_usdt_depth","data":{` +
		`"bids":[[100.0,1.0],[99.5,2.0]],` +
		`"asks":[[101.0,0.5],[100.5,1.0]],` +
		`"timestamp":1700000000000}}]`)

	o.Handle(context.Background(), gw, payload)

	if ins.OrderBookID != 1 {
		t.Fatalf("order book id = %d, want 1", ins.OrderBookID)
	}
	books := store.rowsFor(ins.OrderBookTable)
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
	if px := snapshotColumn(t, snap, "b2").(decimal.Decimal); px.String() != "99.5" {
		t.Errorf("b2 = %s", px)
	}
	// The venue reports asks best-last; a1 must be the lowest ask.
	if px := snapshotColumn(t, snap, "a1").(decimal.Decimal); px.String() != "100.5" {
		t.Errorf("a1 = %s", px)
	}
	if px := snapshotColumn(t, snap, "b3").(decimal.Decimal); !px.IsZero() {
		t.Errorf("b3 = %s, want 0", px)
	}

	// The identical book again must be suppressed by the differ.
	o.Handle(context.Background(), gw, payload)
	if n := len(store.rowsFor(ins.OrderBookTable)); n != 1 {
		t.Errorf("book rows after repeat = %d, want 1", n)
	}
	if ins.OrderBookID != 1 {
		t.Errorf("order book id after repeat = %d, want 1", ins.OrderBookID)
	}
}

func TestOkexTradesDedupAndSide(t *testing.T) {
	o := NewOkex("", zerolog.Nop())
	gw, store := newVenueGateway(t, "Okex", "BTC", "spot_btc_usdt")
	ins := gw.Instrument()
	o.OrderBookSubscription(ins)
	o.TradesSubscription(ins)

	payload := []byte(`[{"channel":"ok_sub_spot_btc_usdt_deals","data":[` +
		`["1001","100","0.1","06:13:20","bid"],` +
		`["1001","100","0.1","06:13:20","bid"],` +
		`["1002","100.5","0.2","06:13:21","ask"]]}]`)
	o.Handle(context.Background(), gw, payload)

	rows := store.rowsFor(ins.TradesTable)
	if len(rows) != 2 {
		t.Fatalf("trade rows = %d, want 2", len(rows))
	}
	if rows[0].Values[1] != "1001" || rows[0].Values[5] != int64(market.SideBuy) {
		t.Errorf("first trade = %v", rows[0].Values)
	}
	if rows[1].Values[1] != "1002" || rows[1].Values[5] != int64(market.SideSell) {
		t.Errorf("second trade = %v", rows[1].Values)
	}
	if ins.TradeID != 2 {
		t.Errorf("trade id = %d, want 2", ins.TradeID)
	}
}

func TestOkexClockAnchoring(t *testing.T) {
	// 2023-11-14 22:13:20 UTC is 2023-11-15 06:13:20 in Shanghai.
	now := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	at, err := okexClock("06:13:20", now)
	if err != nil {
		t.Fatalf("okexClock: %v", err)
	}
	if got := market.FormatTime(at); got != "20231114 22:13:20.000000" {
		t.Errorf("anchored = %s", got)
	}

	// A clock ahead of the venue's wall time must fall back one day.
	at, err = okexClock("23:00:00", now)
	if err != nil {
		t.Fatalf("okexClock: %v", err)
	}
	if !at.Before(now) {
		t.Errorf("future clock not guarded: %s", at)
	}

	if _, err := okexClock("garbage", now); err == nil {
		t.Error("malformed clock must fail")
	}
}

func TestOkexParseDepthMissingKeys(t *testing.T) {
	o := NewOkex("", zerolog.Nop())
	cur := market.NewL2Depth(market.DefaultDepth)
	if err := o.parseDepth(cur, []byte(`{"result":true}`)); err == nil {
		t.Error("expected parse failure")
	}
}
