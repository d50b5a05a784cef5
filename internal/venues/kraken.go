package venues

import (
	"context"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/coachpo/befh/errs"
	"github.com/coachpo/befh/internal/gateway"
	"github.com/coachpo/befh/internal/market"
)

const krakenLink = "https://api.kraken.com/0/public"

// Kraken has no public streaming feed here; depth and trades are polled over
// REST. The trades poll carries a since cursor taken from the previous
// response, so each trade is returned once.
type Kraken struct {
	endpoint string
	log      zerolog.Logger

	since string
}

// NewKraken builds the adapter; endpoint overrides the default link.
func NewKraken(endpoint string, log zerolog.Logger) *Kraken {
	if endpoint == "" {
		endpoint = krakenLink
	}
	return &Kraken{endpoint: endpoint, log: log}
}

func (k *Kraken) Name() string { return "kraken" }

func (k *Kraken) DepthURL(ins *market.Instrument) string {
	return k.endpoint + "/Depth?pair=" + ins.Code + "&count=" + strconv.Itoa(market.DefaultDepth)
}

func (k *Kraken) TradesURL(ins *market.Instrument) string {
	url := k.endpoint + "/Trades?pair=" + ins.Code
	if k.since != "" {
		url += "&since=" + k.since
	}
	return url
}

type krakenResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

type krakenDepth struct {
	Bids [][]any `json:"bids"`
	Asks [][]any `json:"asks"`
}

func (k *Kraken) HandleDepth(ctx context.Context, gw *gateway.Gateway, payload json.RawMessage) {
	body, err := k.resultFor(payload)
	if err != nil {
		k.log.Warn().Err(err).Msg("depth poll dropped")
		return
	}
	gw.ApplyDepth(ctx, func(cur *market.L2Depth) error {
		return k.parseDepth(cur, body)
	})
}

func (k *Kraken) parseDepth(cur *market.L2Depth, body json.RawMessage) error {
	var msg krakenDepth
	if err := json.Unmarshal(body, &msg); err != nil {
		return errs.New(k.Name(), errs.CodeParse, errs.WithPayload(string(body)), errs.WithCause(err))
	}
	if msg.Bids == nil && msg.Asks == nil {
		return errs.New(k.Name(), errs.CodeParse,
			errs.WithMessage("depth keys missing"), errs.WithPayload(string(body)))
	}
	cur.Reset()
	fillLevels(cur.Bids, msg.Bids)
	fillLevels(cur.Asks, msg.Asks)
	// Poll responses carry per-level times, not a book time; stamp on arrival.
	cur.DateTime = market.FormatTime(time.Now())
	cur.UpdateType = market.UpdateTypeOrderBook
	return nil
}

func (k *Kraken) HandleTrades(ctx context.Context, gw *gateway.Gateway, payload json.RawMessage) {
	var resp krakenResponse
	if err := json.Unmarshal(payload, &resp); err != nil || len(resp.Error) > 0 || resp.Result == nil {
		k.log.Warn().Str("payload", string(payload)).Msg("trades poll dropped")
		return
	}

	if lastRaw, ok := resp.Result["last"]; ok {
		var last string
		if err := json.Unmarshal(lastRaw, &last); err == nil && last != "" {
			k.since = last
		}
	}

	for key, body := range resp.Result {
		if key == "last" {
			continue
		}
		trades, err := k.parseTrades(body)
		if err != nil {
			k.log.Warn().Err(err).Msg("trade items dropped")
			continue
		}
		for _, trade := range trades {
			gw.ApplyTrade(ctx, trade)
		}
	}
}

// parseTrades decodes the positional trade arrays
// [price, volume, time, side, order type, misc]. The venue reports no trade
// id; one is synthesized from time and price for dedup.
func (k *Kraken) parseTrades(body json.RawMessage) ([]market.Trade, error) {
	var items [][]any
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errs.New(k.Name(), errs.CodeParse, errs.WithPayload(string(body)), errs.WithCause(err))
	}
	trades := make([]market.Trade, 0, len(items))
	for _, item := range items {
		if len(item) < 4 {
			return nil, errs.New(k.Name(), errs.CodeParse,
				errs.WithMessage("trade item too short"), errs.WithPayload(string(body)))
		}
		price, okP := toDecimal(item[0])
		volume, okV := toDecimal(item[1])
		epoch, okT := item[2].(float64)
		if !okP || !okV || !okT {
			return nil, errs.New(k.Name(), errs.CodeParse,
				errs.WithMessage("trade item not numeric"), errs.WithPayload(string(body)))
		}
		trades = append(trades, market.Trade{
			ID:       strconv.FormatFloat(epoch, 'f', 6, 64) + "/" + price.String(),
			DateTime: market.FormatTime(market.FromEpoch(epoch)),
			Price:    price,
			Volume:   volume,
			Side:     market.ParseSide(item[3]),
		})
	}
	return trades, nil
}

func (k *Kraken) resultFor(payload json.RawMessage) (json.RawMessage, error) {
	var resp krakenResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, errs.New(k.Name(), errs.CodeParse, errs.WithPayload(string(payload)), errs.WithCause(err))
	}
	if len(resp.Error) > 0 {
		return nil, errs.New(k.Name(), errs.CodeTransport, errs.WithMessage(resp.Error[0]))
	}
	for key, body := range resp.Result {
		if key != "last" {
			return body, nil
		}
	}
	return nil, errs.New(k.Name(), errs.CodeParse,
		errs.WithMessage("result pair missing"), errs.WithPayload(string(payload)))
}
