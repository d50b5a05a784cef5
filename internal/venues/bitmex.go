package venues

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/coachpo/befh/errs"
	"github.com/coachpo/befh/internal/gateway"
	"github.com/coachpo/befh/internal/market"
)

const bitmexLink = "wss://www.bitmex.com/realtime"

// Bitmex streams the ten-level orderBook10 snapshot table and the trade
// table, both multiplexed on one connection and keyed by symbol.
type Bitmex struct {
	endpoint string
	log      zerolog.Logger
}

// NewBitmex builds the adapter; endpoint overrides the default link.
func NewBitmex(endpoint string, log zerolog.Logger) *Bitmex {
	if endpoint == "" {
		endpoint = bitmexLink
	}
	return &Bitmex{endpoint: endpoint, log: log}
}

func (b *Bitmex) Name() string { return "bitmex" }

func (b *Bitmex) Link(*market.Instrument) string { return b.endpoint }

func (b *Bitmex) OrderBookSubscription(ins *market.Instrument) any {
	ins.OrderBookChannel = "orderBook10:" + ins.Code
	return map[string]any{"op": "subscribe", "args": []string{ins.OrderBookChannel}}
}

func (b *Bitmex) TradesSubscription(ins *market.Instrument) any {
	ins.TradesChannel = "trade:" + ins.Code
	return map[string]any{"op": "subscribe", "args": []string{ins.TradesChannel}}
}

type bitmexEnvelope struct {
	Table string          `json:"table"`
	Data  json.RawMessage `json:"data"`
}

type bitmexBook struct {
	Symbol    string  `json:"symbol"`
	Bids      [][]any `json:"bids"`
	Asks      [][]any `json:"asks"`
	Timestamp string  `json:"timestamp"`
}

type bitmexTrade struct {
	Timestamp  string  `json:"timestamp"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Size       float64 `json:"size"`
	Price      float64 `json:"price"`
	TrdMatchID string  `json:"trdMatchID"`
}

func (b *Bitmex) Handle(ctx context.Context, gw *gateway.Gateway, payload []byte) {
	ins := gw.Instrument()
	var env bitmexEnvelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Table == "" {
		// Welcome and subscription acks have no table key.
		return
	}
	switch env.Table {
	case "orderBook10":
		var books []bitmexBook
		if err := json.Unmarshal(env.Data, &books); err != nil {
			b.log.Warn().Err(err).Str("payload", string(payload)).Msg("book message dropped")
			return
		}
		for _, book := range books {
			if book.Symbol != ins.Code {
				continue
			}
			entry := book
			gw.ApplyDepth(ctx, func(cur *market.L2Depth) error {
				return b.parseDepth(cur, entry)
			})
		}
	case "trade":
		var items []bitmexTrade
		if err := json.Unmarshal(env.Data, &items); err != nil {
			b.log.Warn().Err(err).Str("payload", string(payload)).Msg("trade message dropped")
			return
		}
		for _, item := range items {
			if item.Symbol != ins.Code {
				continue
			}
			trade, err := b.parseTrade(item)
			if err != nil {
				b.log.Warn().Err(err).Msg("trade item dropped")
				continue
			}
			gw.ApplyTrade(ctx, trade)
		}
	}
}

func (b *Bitmex) parseDepth(cur *market.L2Depth, book bitmexBook) error {
	if book.Bids == nil && book.Asks == nil {
		return errs.New(b.Name(), errs.CodeParse, errs.WithMessage("depth keys missing"))
	}
	cur.Reset()
	fillLevels(cur.Bids, book.Bids)
	fillLevels(cur.Asks, book.Asks)
	cur.DateTime = bitmexTimestamp(book.Timestamp)
	cur.UpdateType = market.UpdateTypeOrderBook
	return nil
}

func (b *Bitmex) parseTrade(item bitmexTrade) (market.Trade, error) {
	if item.TrdMatchID == "" {
		return market.Trade{}, errs.New(b.Name(), errs.CodeParse, errs.WithMessage("trade match id missing"))
	}
	return market.Trade{
		ID:       item.TrdMatchID,
		DateTime: bitmexTimestamp(item.Timestamp),
		Price:    decimal.NewFromFloat(item.Price),
		Volume:   decimal.NewFromFloat(item.Size),
		Side:     market.ParseSide(item.Side),
	}, nil
}

// bitmexTimestamp normalizes the venue's RFC 3339 timestamps.
func bitmexTimestamp(ts string) string {
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return market.FormatTime(time.Now())
	}
	return market.FormatTime(at)
}
