// Package venues contains the per-venue wire-format adapters and the shared
// workers that drive them: a websocket worker for streaming venues and a
// rate-limited polling worker for REST venues.
package venues

import (
	"context"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/coachpo/befh/errs"
	"github.com/coachpo/befh/internal/gateway"
	"github.com/coachpo/befh/internal/market"
	"github.com/coachpo/befh/internal/sink"
	"github.com/coachpo/befh/internal/transport"
)

// StreamAdapter is implemented by venues that stream over a persistent
// websocket. Subscription methods record the channel identifiers on the
// instrument and return the frame to send, or nil when the connection URL
// already carries the subscription.
type StreamAdapter interface {
	Name() string
	Link(ins *market.Instrument) string
	OrderBookSubscription(ins *market.Instrument) any
	TradesSubscription(ins *market.Instrument) any
	Handle(ctx context.Context, gw *gateway.Gateway, payload []byte)
}

// PollAdapter is implemented by venues that expose market data over REST
// long-polling.
type PollAdapter interface {
	Name() string
	DepthURL(ins *market.Instrument) string
	TradesURL(ins *market.Instrument) string
	HandleDepth(ctx context.Context, gw *gateway.Gateway, payload json.RawMessage)
	HandleTrades(ctx context.Context, gw *gateway.Gateway, payload json.RawMessage)
}

// Runner drives one instrument worker until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Endpoints overrides venue connection URLs, keyed by lowercase venue name.
// Missing entries fall back to the adapter defaults.
type Endpoints map[string]string

// New resolves the venue named by exchange and wires a runner for one
// instrument over the shared sink set.
func New(exchange string, ins *market.Instrument, sinks []sink.Store, settings gateway.Settings, endpoints Endpoints, proxy string, log zerolog.Logger) (Runner, error) {
	name := strings.ToLower(strings.TrimSpace(exchange))
	endpoint := endpoints[name]
	gw := gateway.New(ins, sinks, settings, log)
	workerLog := log.With().Str("venue", name).Str("instrument", ins.Name).Logger()

	switch name {
	case "binance":
		return newStreamWorker(NewBinance(endpoint, workerLog), gw, workerLog), nil
	case "okex":
		return newStreamWorker(NewOkex(endpoint, workerLog), gw, workerLog), nil
	case "bitmex":
		return newStreamWorker(NewBitmex(endpoint, workerLog), gw, workerLog), nil
	case "bitstamp":
		return newStreamWorker(NewBitstamp(endpoint, workerLog), gw, workerLog), nil
	case "kraken":
		rest, err := transport.NewRESTClient(proxy, workerLog)
		if err != nil {
			return nil, err
		}
		return newPollWorker(NewKraken(endpoint, workerLog), gw, rest, workerLog), nil
	default:
		return nil, errs.New(exchange, errs.CodeConfig, errs.WithMessage("unknown venue"))
	}
}

type streamWorker struct {
	adapter StreamAdapter
	gw      *gateway.Gateway
	log     zerolog.Logger
}

func newStreamWorker(adapter StreamAdapter, gw *gateway.Gateway, log zerolog.Logger) *streamWorker {
	return &streamWorker{adapter: adapter, gw: gw, log: log}
}

// Run connects, subscribes once per (re)connect, and dispatches every frame
// to the adapter. The instrument's subscribed flag makes resubscription
// idempotent across reconnects.
func (w *streamWorker) Run(ctx context.Context) error {
	if err := w.gw.Init(ctx); err != nil {
		return err
	}
	ins := w.gw.Instrument()

	client := transport.NewWSClient(w.adapter.Link(ins), transport.WSHandlers{
		OnOpen: func(c *transport.WSClient) {
			if ins.Subscribed {
				return
			}
			for _, frame := range []any{
				w.adapter.OrderBookSubscription(ins),
				w.adapter.TradesSubscription(ins),
			} {
				if frame == nil {
					continue
				}
				if err := c.Send(frame); err != nil {
					w.log.Error().Err(err).Msg("subscribe frame failed")
					return
				}
			}
			ins.Subscribed = true
		},
		OnMessage: func(payload []byte) {
			w.adapter.Handle(ctx, w.gw, payload)
		},
		OnClose: func() {
			ins.Subscribed = false
			w.log.Warn().Msg("stream closed; reconnecting")
		},
		OnError: func(err error) {
			w.log.Error().Err(err).Msg("stream error")
		},
	}, w.log)

	client.Start(ctx)
	<-ctx.Done()
	client.Close()
	return nil
}

type pollWorker struct {
	adapter PollAdapter
	gw      *gateway.Gateway
	rest    *transport.RESTClient
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newPollWorker(adapter PollAdapter, gw *gateway.Gateway, rest *transport.RESTClient, log zerolog.Logger) *pollWorker {
	return &pollWorker{
		adapter: adapter,
		gw:      gw,
		rest:    rest,
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		log:     log,
	}
}

// Run alternates depth and trade polls, one request per limiter token.
func (w *pollWorker) Run(ctx context.Context) error {
	if err := w.gw.Init(ctx); err != nil {
		return err
	}
	ins := w.gw.Instrument()
	ins.Subscribed = true

	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil
		}
		if raw := w.rest.Request(ctx, w.adapter.DepthURL(ins)); raw != nil {
			w.adapter.HandleDepth(ctx, w.gw, raw)
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return nil
		}
		if raw := w.rest.Request(ctx, w.adapter.TradesURL(ins)); raw != nil {
			w.adapter.HandleTrades(ctx, w.gw, raw)
		}
	}
}

// toDecimal converts the number encodings venues use in level arrays.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(x), true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// fillLevels copies venue [price, volume, ...] arrays into a fixed book side,
// clamping to the configured depth. Malformed levels are skipped, not fatal.
func fillLevels(side []market.PriceLevel, raw [][]any) {
	n := len(side)
	if len(raw) < n {
		n = len(raw)
	}
	for i := 0; i < n; i++ {
		if len(raw[i]) < 2 {
			continue
		}
		price, okP := toDecimal(raw[i][0])
		volume, okV := toDecimal(raw[i][1])
		if !okP || !okV {
			continue
		}
		side[i] = market.PriceLevel{Price: price, Volume: volume}
	}
}

// reverseLevels flips a level array in place for venues that report asks in
// descending order.
func reverseLevels(raw [][]any) {
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}
}
