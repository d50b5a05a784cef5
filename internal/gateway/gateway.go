// Package gateway drives one subscribed instrument through its lifecycle:
// table init, depth-diff suppression, trade dedup, and fan-out of normalized
// rows to every configured sink.
package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/coachpo/befh/internal/market"
	"github.com/coachpo/befh/internal/sink"
)

// Settings carries the process-wide ingest policy. UseExchangeTime selects
// the venue-reported timestamp for date_time columns; otherwise the local
// wall clock at dispatch time is used.
type Settings struct {
	UseExchangeTime bool
}

// Gateway owns one instrument's mutable state for the lifetime of its
// worker. All methods are called from that single worker goroutine.
type Gateway struct {
	instmt   *market.Instrument
	sinks    []sink.Store
	settings Settings
	log      zerolog.Logger

	lastTrade market.Trade
	now       func() time.Time
}

// New builds a gateway for one instrument over the shared sink set.
func New(instmt *market.Instrument, sinks []sink.Store, settings Settings, log zerolog.Logger) *Gateway {
	return &Gateway{
		instmt:   instmt,
		sinks:    sinks,
		settings: settings,
		log: log.With().
			Str("exchange", instmt.Exchange).
			Str("instrument", instmt.Name).
			Logger(),
		now: time.Now,
	}
}

// Instrument exposes the owned instrument to the venue adapter.
func (g *Gateway) Instrument() *market.Instrument { return g.instmt }

// Init computes the per-instrument table names and ensures the tables exist
// on every sink. The shared snapshot table is created separately, once, via
// InitSnapshotTable.
func (g *Gateway) Init(ctx context.Context) error {
	ins := g.instmt
	ins.SnapshotTable = sink.SnapshotTable
	ins.OrderBookTable = OrderBookTableName(ins.Exchange, ins.Name)
	ins.TradesTable = TradesTableName(ins.Exchange, ins.Name, g.now().UTC())

	if err := sink.CreateAll(ctx, g.sinks, ins.OrderBookTable,
		orderBookColumns(), orderBookTypes(), []int{0}, true); err != nil {
		return err
	}
	return sink.CreateAll(ctx, g.sinks, ins.TradesTable,
		tradeColumns(), tradeTypes(), []int{0}, true)
}

// ApplyDepth feeds one incoming depth message through the change detector.
// parse fills the current book in place; the previous book is snapshotted
// first so a failed or unchanged parse leaves the emitted state untouched.
func (g *Gateway) ApplyDepth(ctx context.Context, parse func(cur *market.L2Depth) error) {
	ins := g.instmt
	ins.PrevL2Depth = ins.L2Depth.Copy()
	if err := parse(ins.L2Depth); err != nil {
		g.log.Warn().Err(err).Msg("depth message dropped")
		ins.L2Depth = ins.PrevL2Depth.Copy()
		return
	}
	if !ins.L2Depth.IsDiff(ins.PrevL2Depth) {
		return
	}
	if !g.settings.UseExchangeTime {
		ins.L2Depth.DateTime = market.FormatTime(g.now())
	}
	ins.AdvanceOrderBook()
	g.InsertOrderBook(ctx)
}

// ApplyTrade feeds one parsed trade through dedup and the timestamp policy.
func (g *Gateway) ApplyTrade(ctx context.Context, trade market.Trade) {
	ins := g.instmt
	if trade.ID != "" && trade.ID == ins.ExchTradeID {
		return
	}
	if !g.settings.UseExchangeTime {
		trade.DateTime = market.FormatTime(g.now())
	}
	ins.AdvanceTrade(trade.ID)
	g.lastTrade = trade
	g.InsertTrade(ctx, trade)
}

// InsertOrderBook appends the current book to the per-instrument table and
// upserts the shared snapshot row.
func (g *Gateway) InsertOrderBook(ctx context.Context) {
	ins := g.instmt
	cur := ins.L2Depth

	updateType := cur.UpdateType
	if updateType == market.UpdateTypeNone {
		updateType = market.UpdateTypeOrderBook
	}

	values := make([]any, 0, 2+4*market.SnapshotDepth+1)
	values = append(values, ins.OrderBookID, cur.DateTime)
	values = append(values, levelValues(cur)...)
	values = append(values, int64(updateType))
	sink.InsertAll(ctx, g.sinks, sink.Row{
		Table:      ins.OrderBookTable,
		Columns:    orderBookColumns(),
		Types:      orderBookTypes(),
		Values:     values,
		PrimaryKey: []int{0},
		Commit:     true,
	}, g.log)

	g.upsertSnapshot(ctx, market.UpdateTypeOrderBook)
}

// InsertTrade appends trade to the daily trades table, rolling the table over
// when the UTC date has advanced, then upserts the shared snapshot row.
func (g *Gateway) InsertTrade(ctx context.Context, trade market.Trade) {
	ins := g.instmt
	if table := TradesTableName(ins.Exchange, ins.Name, g.now().UTC()); table != ins.TradesTable {
		if err := sink.CreateAll(ctx, g.sinks, table, tradeColumns(), tradeTypes(), []int{0}, true); err != nil {
			g.log.Error().Err(err).Str("table", table).Msg("daily trades table rollover failed")
		} else {
			ins.TradesTable = table
		}
	}

	sink.InsertAll(ctx, g.sinks, sink.Row{
		Table:      ins.TradesTable,
		Columns:    tradeColumns(),
		Types:      tradeTypes(),
		Values:     []any{ins.TradeID, trade.ID, trade.DateTime, trade.Price, trade.Volume, int64(trade.Side)},
		PrimaryKey: []int{0},
		Commit:     true,
	}, g.log)

	g.upsertSnapshot(ctx, market.UpdateTypeTrades)
}

func (g *Gateway) upsertSnapshot(ctx context.Context, updateType market.UpdateType) {
	ins := g.instmt
	cur := ins.L2Depth

	values := make([]any, 0, 9+4*market.SnapshotDepth)
	values = append(values, ins.Exchange, ins.Name, g.lastTrade.Price, g.lastTrade.Volume)
	values = append(values, levelValues(cur)...)
	values = append(values,
		ins.OrderBookID,
		ins.TradeID,
		cur.DateTime,
		g.lastTrade.DateTime,
		int64(updateType),
	)
	sink.InsertAll(ctx, g.sinks, sink.Row{
		Table:      sink.SnapshotTable,
		Columns:    SnapshotColumns(),
		Types:      SnapshotTypes(),
		Values:     values,
		PrimaryKey: []int{0, 1},
		OrReplace:  true,
		Commit:     true,
	}, g.log)
}

// levelValues renders the persisted top levels: bid prices, bid volumes, ask
// prices, ask volumes.
func levelValues(d *market.L2Depth) []any {
	out := make([]any, 0, 4*market.SnapshotDepth)
	for i := 0; i < market.SnapshotDepth; i++ {
		out = append(out, levelPrice(d.Bids, i))
	}
	for i := 0; i < market.SnapshotDepth; i++ {
		out = append(out, levelVolume(d.Bids, i))
	}
	for i := 0; i < market.SnapshotDepth; i++ {
		out = append(out, levelPrice(d.Asks, i))
	}
	for i := 0; i < market.SnapshotDepth; i++ {
		out = append(out, levelVolume(d.Asks, i))
	}
	return out
}

func levelPrice(levels []market.PriceLevel, i int) decimal.Decimal {
	if i >= len(levels) {
		return decimal.Zero
	}
	return levels[i].Price
}

func levelVolume(levels []market.PriceLevel, i int) decimal.Decimal {
	if i >= len(levels) {
		return decimal.Zero
	}
	return levels[i].Volume
}
