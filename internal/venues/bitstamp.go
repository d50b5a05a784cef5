package venues

import (
	"context"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/coachpo/befh/errs"
	"github.com/coachpo/befh/internal/gateway"
	"github.com/coachpo/befh/internal/market"
)

const bitstampLink = "wss://ws.bitstamp.net"

// Bitstamp subscribes to the order_book and live_trades channels; timestamps
// arrive as epoch-second strings.
type Bitstamp struct {
	endpoint string
	log      zerolog.Logger
}

// NewBitstamp builds the adapter; endpoint overrides the default link.
func NewBitstamp(endpoint string, log zerolog.Logger) *Bitstamp {
	if endpoint == "" {
		endpoint = bitstampLink
	}
	return &Bitstamp{endpoint: endpoint, log: log}
}

func (b *Bitstamp) Name() string { return "bitstamp" }

func (b *Bitstamp) Link(*market.Instrument) string { return b.endpoint }

func (b *Bitstamp) OrderBookSubscription(ins *market.Instrument) any {
	ins.OrderBookChannel = "order_book_" + strings.ToLower(ins.Code)
	return bitstampSubscribe(ins.OrderBookChannel)
}

func (b *Bitstamp) TradesSubscription(ins *market.Instrument) any {
	ins.TradesChannel = "live_trades_" + strings.ToLower(ins.Code)
	return bitstampSubscribe(ins.TradesChannel)
}

func bitstampSubscribe(channel string) any {
	return map[string]any{
		"event": "bts:subscribe",
		"data":  map[string]string{"channel": channel},
	}
}

type bitstampEnvelope struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type bitstampDepth struct {
	Timestamp string  `json:"timestamp"`
	Bids      [][]any `json:"bids"`
	Asks      [][]any `json:"asks"`
}

type bitstampTrade struct {
	ID        int64   `json:"id"`
	Timestamp string  `json:"timestamp"`
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	Type      int     `json:"type"`
}

func (b *Bitstamp) Handle(ctx context.Context, gw *gateway.Gateway, payload []byte) {
	ins := gw.Instrument()
	var env bitstampEnvelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Event == "" {
		b.log.Warn().Str("payload", string(payload)).Msg("unrecognised frame dropped")
		return
	}
	switch {
	case env.Event == "data" && env.Channel == ins.OrderBookChannel:
		gw.ApplyDepth(ctx, func(cur *market.L2Depth) error {
			return b.parseDepth(cur, env.Data)
		})
	case env.Event == "trade" && env.Channel == ins.TradesChannel:
		trade, err := b.parseTrade(env.Data)
		if err != nil {
			b.log.Warn().Err(err).Msg("trade message dropped")
			return
		}
		gw.ApplyTrade(ctx, trade)
	}
}

func (b *Bitstamp) parseDepth(cur *market.L2Depth, data json.RawMessage) error {
	var msg bitstampDepth
	if err := json.Unmarshal(data, &msg); err != nil {
		return errs.New(b.Name(), errs.CodeParse, errs.WithPayload(string(data)), errs.WithCause(err))
	}
	if msg.Bids == nil && msg.Asks == nil {
		return errs.New(b.Name(), errs.CodeParse,
			errs.WithMessage("depth keys missing"), errs.WithPayload(string(data)))
	}
	cur.Reset()
	fillLevels(cur.Bids, msg.Bids)
	fillLevels(cur.Asks, msg.Asks)
	cur.DateTime = bitstampTimestamp(msg.Timestamp)
	cur.UpdateType = market.UpdateTypeOrderBook
	return nil
}

func (b *Bitstamp) parseTrade(data json.RawMessage) (market.Trade, error) {
	var msg bitstampTrade
	if err := json.Unmarshal(data, &msg); err != nil {
		return market.Trade{}, errs.New(b.Name(), errs.CodeParse, errs.WithPayload(string(data)), errs.WithCause(err))
	}
	if msg.ID == 0 {
		return market.Trade{}, errs.New(b.Name(), errs.CodeParse,
			errs.WithMessage("trade keys missing"), errs.WithPayload(string(data)))
	}
	// The venue encodes 0 for buy and 1 for sell, the inverse of the usual
	// numeric codes.
	side := market.SideBuy
	if msg.Type == 1 {
		side = market.SideSell
	}
	return market.Trade{
		ID:       strconv.FormatInt(msg.ID, 10),
		DateTime: bitstampTimestamp(msg.Timestamp),
		Price:    decimal.NewFromFloat(msg.Price),
		Volume:   decimal.NewFromFloat(msg.Amount),
		Side:     side,
	}, nil
}

// bitstampTimestamp normalizes the venue's epoch-second strings.
func bitstampTimestamp(ts string) string {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return market.FormatTime(time.Now())
	}
	return market.FormatTime(market.FromEpoch(f))
}
