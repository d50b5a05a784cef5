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

const binanceLink = "wss://stream.binance.com:9443/stream"

// Binance streams absolute depth snapshots and raw trades over one combined
// connection; the stream names in the URL are the subscription, no frames
// are sent.
type Binance struct {
	endpoint string
	log      zerolog.Logger
}

// NewBinance builds the adapter; endpoint overrides the default link.
func NewBinance(endpoint string, log zerolog.Logger) *Binance {
	if endpoint == "" {
		endpoint = binanceLink
	}
	return &Binance{endpoint: endpoint, log: log}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) symbol(ins *market.Instrument) string {
	return strings.ToLower(ins.Code)
}

// Link carries both streams; the server starts pushing as soon as the
// connection opens.
func (b *Binance) Link(ins *market.Instrument) string {
	return b.endpoint + "?streams=" + b.symbol(ins) + "@depth20@100ms/" + b.symbol(ins) + "@trade"
}

func (b *Binance) OrderBookSubscription(ins *market.Instrument) any {
	ins.OrderBookChannel = b.symbol(ins) + "@depth20@100ms"
	return nil
}

func (b *Binance) TradesSubscription(ins *market.Instrument) any {
	ins.TradesChannel = b.symbol(ins) + "@trade"
	return nil
}

type binanceEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type binanceDepth struct {
	LastUpdateID int64   `json:"lastUpdateId"`
	Bids         [][]any `json:"bids"`
	Asks         [][]any `json:"asks"`
}

type binanceTrade struct {
	TradeID    int64  `json:"t"`
	Price      string `json:"p"`
	Quantity   string `json:"q"`
	TradeTime  int64  `json:"T"`
	BuyerMaker bool   `json:"m"`
}

func (b *Binance) Handle(ctx context.Context, gw *gateway.Gateway, payload []byte) {
	ins := gw.Instrument()
	var env binanceEnvelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Stream == "" {
		b.log.Warn().Str("payload", string(payload)).Msg("unrecognised frame dropped")
		return
	}
	switch env.Stream {
	case ins.OrderBookChannel:
		gw.ApplyDepth(ctx, func(cur *market.L2Depth) error {
			return b.parseDepth(cur, env.Data)
		})
	case ins.TradesChannel:
		trade, err := b.parseTrade(env.Data)
		if err != nil {
			b.log.Warn().Err(err).Msg("trade message dropped")
			return
		}
		gw.ApplyTrade(ctx, trade)
	}
}

func (b *Binance) parseDepth(cur *market.L2Depth, data json.RawMessage) error {
	var msg binanceDepth
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
	// The partial depth stream carries no event time.
	cur.DateTime = market.FormatTime(time.Now())
	cur.UpdateType = market.UpdateTypeOrderBook
	return nil
}

func (b *Binance) parseTrade(data json.RawMessage) (market.Trade, error) {
	var msg binanceTrade
	if err := json.Unmarshal(data, &msg); err != nil {
		return market.Trade{}, errs.New(b.Name(), errs.CodeParse, errs.WithPayload(string(data)), errs.WithCause(err))
	}
	if msg.TradeID == 0 && msg.Price == "" {
		return market.Trade{}, errs.New(b.Name(), errs.CodeParse,
			errs.WithMessage("trade keys missing"), errs.WithPayload(string(data)))
	}
	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return market.Trade{}, errs.New(b.Name(), errs.CodeParse, errs.WithPayload(string(data)), errs.WithCause(err))
	}
	volume, err := decimal.NewFromString(msg.Quantity)
	if err != nil {
		return market.Trade{}, errs.New(b.Name(), errs.CodeParse, errs.WithPayload(string(data)), errs.WithCause(err))
	}
	// m is the buyer-is-maker flag, so a true value means the sell side
	// crossed the spread.
	side := market.SideBuy
	if msg.BuyerMaker {
		side = market.SideSell
	}
	return market.Trade{
		ID:       strconv.FormatInt(msg.TradeID, 10),
		DateTime: market.FormatTime(market.FromEpoch(float64(msg.TradeTime))),
		Price:    price,
		Volume:   volume,
		Side:     side,
	}, nil
}
