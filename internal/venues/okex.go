package venues

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/coachpo/befh/errs"
	"github.com/coachpo/befh/internal/gateway"
	"github.com/coachpo/befh/internal/market"
)

const okexLink = "wss://real.okex.com:10440/websocket"

// okexZone anchors the venue's HH:MM:SS trade clocks.
var okexZone = loadZone("Asia/Shanghai", 8*3600)

func loadZone(name string, offsetSeconds int) *time.Location {
	if zone, err := time.LoadLocation(name); err == nil {
		return zone
	}
	return time.FixedZone(name, offsetSeconds)
}

// Okex speaks the addChannel protocol: one subscribe frame per channel, and
// every server push is a one-element array wrapping the channel name.
type Okex struct {
	endpoint string
	log      zerolog.Logger
}

// NewOkex builds the adapter; endpoint overrides the default link.
func NewOkex(endpoint string, log zerolog.Logger) *Okex {
	if endpoint == "" {
		endpoint = okexLink
	}
	return &Okex{endpoint: endpoint, log: log}
}

func (o *Okex) Name() string { return "okex" }

func (o *Okex) Link(*market.Instrument) string { return o.endpoint }

func (o *Okex) OrderBookSubscription(ins *market.Instrument) any {
	ins.OrderBookChannel = "ok_sub_" + strings.ToLower(ins.Code) + "_depth"
	return map[string]string{"event": "addChannel", "channel": ins.OrderBookChannel}
}

func (o *Okex) TradesSubscription(ins *market.Instrument) any {
	ins.TradesChannel = "ok_sub_" + strings.ToLower(ins.Code) + "_deals"
	return map[string]string{"event": "addChannel", "channel": ins.TradesChannel}
}

type okexFrame struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type okexDepth struct {
	Bids      [][]any `json:"bids"`
	Asks      [][]any `json:"asks"`
	Timestamp any     `json:"timestamp"`
}

func (o *Okex) Handle(ctx context.Context, gw *gateway.Gateway, payload []byte) {
	ins := gw.Instrument()
	var frames []okexFrame
	if err := json.Unmarshal(payload, &frames); err != nil {
		o.log.Warn().Str("payload", string(payload)).Msg("unrecognised frame dropped")
		return
	}
	for _, frame := range frames {
		switch frame.Channel {
		case ins.OrderBookChannel:
			data := frame.Data
			gw.ApplyDepth(ctx, func(cur *market.L2Depth) error {
				return o.parseDepth(cur, data)
			})
		case ins.TradesChannel:
			trades, err := o.parseTrades(frame.Data, time.Now())
			if err != nil {
				o.log.Warn().Err(err).Msg("trade message dropped")
				continue
			}
			for _, trade := range trades {
				gw.ApplyTrade(ctx, trade)
			}
		}
	}
}

func (o *Okex) parseDepth(cur *market.L2Depth, data json.RawMessage) error {
	var msg okexDepth
	if err := json.Unmarshal(data, &msg); err != nil {
		return errs.New(o.Name(), errs.CodeParse, errs.WithPayload(string(data)), errs.WithCause(err))
	}
	if msg.Bids == nil && msg.Asks == nil {
		return errs.New(o.Name(), errs.CodeParse,
			errs.WithMessage("depth keys missing"), errs.WithPayload(string(data)))
	}
	cur.Reset()
	fillLevels(cur.Bids, msg.Bids)
	// The venue reports asks best-last.
	reverseLevels(msg.Asks)
	fillLevels(cur.Asks, msg.Asks)
	cur.DateTime = okexTimestamp(msg.Timestamp)
	cur.UpdateType = market.UpdateTypeOrderBook
	return nil
}

// okexTimestamp normalizes the depth timestamp, a millisecond epoch that
// arrives either as a number or a numeric string.
func okexTimestamp(v any) string {
	switch ts := v.(type) {
	case float64:
		return market.FormatTime(market.FromEpoch(ts))
	case string:
		if f, err := strconv.ParseFloat(ts, 64); err == nil {
			return market.FormatTime(market.FromEpoch(f))
		}
	}
	return market.FormatTime(time.Now())
}

// parseTrades decodes the positional trade arrays
// [id, price, volume, "HH:MM:SS", side]. The wall clock is venue-local and
// carries no date, so it is anchored to today in the venue's zone.
func (o *Okex) parseTrades(data json.RawMessage, now time.Time) ([]market.Trade, error) {
	var items [][]any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errs.New(o.Name(), errs.CodeParse, errs.WithPayload(string(data)), errs.WithCause(err))
	}
	trades := make([]market.Trade, 0, len(items))
	for _, item := range items {
		if len(item) < 5 {
			return nil, errs.New(o.Name(), errs.CodeParse,
				errs.WithMessage("trade item too short"), errs.WithPayload(string(data)))
		}
		price, okP := toDecimal(item[1])
		volume, okV := toDecimal(item[2])
		if !okP || !okV {
			return nil, errs.New(o.Name(), errs.CodeParse,
				errs.WithMessage("trade item not numeric"), errs.WithPayload(string(data)))
		}
		clock, ok := item[3].(string)
		if !ok {
			return nil, errs.New(o.Name(), errs.CodeParse,
				errs.WithMessage("trade clock missing"), errs.WithPayload(string(data)))
		}
		at, err := okexClock(clock, now)
		if err != nil {
			return nil, errs.New(o.Name(), errs.CodeParse, errs.WithPayload(string(data)), errs.WithCause(err))
		}
		trades = append(trades, market.Trade{
			ID:       tradeIDString(item[0]),
			DateTime: market.FormatTime(at),
			Price:    price,
			Volume:   volume,
			Side:     market.ParseSide(item[4]),
		})
	}
	return trades, nil
}

// tradeIDString renders a venue trade id that arrives as either a string or
// a JSON number, without scientific notation.
func tradeIDString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", id)
	}
}

func okexClock(clock string, now time.Time) (time.Time, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("malformed clock %q", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, err
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	second, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, err
	}
	return market.AnchorClock(hour, minute, second, okexZone, now), nil
}
