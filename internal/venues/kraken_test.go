package venues

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/coachpo/befh/internal/market"
)

func TestKrakenURLs(t *testing.T) {
	k := NewKraken("", zerolog.Nop())
	ins := market.NewInstrument("Kraken", "XBTUSD", "XBTUSD")

	if got := k.DepthURL(ins); got != "https://api.kraken.com/0/public/Depth?pair=XBTUSD&count=20" {
		t.Errorf("depth url = %s", got)
	}
	if got := k.TradesURL(ins); strings.Contains(got, "since=") {
		t.Errorf("first trades url must carry no cursor: %s", got)
	}

	k.since = "1700000000123456789"
	if got := k.TradesURL(ins); !strings.HasSuffix(got, "&since=1700000000123456789") {
		t.Errorf("trades url = %s", got)
	}
}

func TestKrakenDepthPoll(t *testing.T) {
	k := NewKraken("", zerolog.Nop())
	gw, store := newVenueGateway(t, "Kraken", "XBTUSD", "XBTUSD")

	payload := []byte(`{"error":[],"result":{"XXBTZUSD":{` +
		`"bids":[["100.0","1.0",1700000000],["99.5","2.0",1700000000]],` +
		`"asks":[["100.5","1.0",1700000000]]}}}`)
	k.HandleDepth(context.Background(), gw, payload)

	if gw.Instrument().OrderBookID != 1 {
		t.Fatalf("order book id = %d, want 1", gw.Instrument().OrderBookID)
	}
	snap := store.rowsFor("exchanges_snapshot")[0]
	if px := snapshotColumn(t, snap, "b1").(decimal.Decimal); px.String() != "100" {
		t.Errorf("b1 = %s", px)
	}

	// Venue-level errors drop the poll without touching the book.
	k.HandleDepth(context.Background(), gw, []byte(`{"error":["EService:Unavailable"],"result":{}}`))
	if gw.Instrument().OrderBookID != 1 {
		t.Errorf("error response advanced the book: %d", gw.Instrument().OrderBookID)
	}
}

func TestKrakenTradesPollAdvancesCursor(t *testing.T) {
	k := NewKraken("", zerolog.Nop())
	gw, store := newVenueGateway(t, "Kraken", "XBTUSD", "XBTUSD")

	payload := []byte(`{"error":[],"result":{` +
		`"XXBTZUSD":[["100.0","0.1",1700000000.5,"b","l",""],["100.5","0.2",1700000001.0,"s","m",""]],` +
		`"last":"1700000001000000000"}}`)
	k.HandleTrades(context.Background(), gw, payload)

	rows := store.rowsFor(gw.Instrument().TradesTable)
	if len(rows) != 2 {
		t.Fatalf("trade rows = %d, want 2", len(rows))
	}
	if rows[0].Values[5] != int64(market.SideBuy) || rows[1].Values[5] != int64(market.SideSell) {
		t.Errorf("sides = %v %v", rows[0].Values[5], rows[1].Values[5])
	}
	if rows[0].Values[2] != "20231114 22:13:20.500000" {
		t.Errorf("date_time = %v", rows[0].Values[2])
	}
	if k.since != "1700000001000000000" {
		t.Errorf("cursor = %s", k.since)
	}
}

func TestKrakenParseTradesRejectsShortItems(t *testing.T) {
	k := NewKraken("", zerolog.Nop())
	if _, err := k.parseTrades([]byte(`[["100.0","0.1"]]`)); err == nil {
		t.Error("expected parse failure")
	}
}
