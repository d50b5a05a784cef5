// Package candle aggregates the per-second trade buckets maintained by the
// key-value sink into OHLCV candles.
package candle

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/coachpo/befh/internal/sink"
)

// latenessThreshold is the minimum age before a bucket may be drained,
// trading timeliness for completeness.
const latenessThreshold = 5 * time.Second

// Pair identifies one instrument's bucket keys.
type Pair struct {
	Exchange   string
	Instrument string
}

// Candle is one per-second OHLCV aggregate.
type Candle struct {
	Epoch  int64
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Worker sweeps the bucket queues once per second. The first sweep walks the
// whole queue to pick up buckets left by a previous run; steady state only
// inspects the oldest entry.
type Worker struct {
	client redis.Cmdable
	pairs  []Pair
	log    zerolog.Logger

	running   atomic.Bool
	coldStart bool
	now       func() time.Time
}

// New builds a worker over the shared key-value client.
func New(client redis.Cmdable, pairs []Pair, log zerolog.Logger) *Worker {
	return &Worker{
		client:    client,
		pairs:     pairs,
		log:       log.With().Str("component", "candle").Logger(),
		coldStart: true,
		now:       time.Now,
	}
}

// Run ticks once per second until ctx is cancelled. Each tick sweeps in its
// own goroutine; an in-flight sweep makes the next tick a no-op.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			go w.Sweep(ctx)
		}
	}
}

// Sweep drains every eligible bucket once. Overlapping calls return
// immediately.
func (w *Worker) Sweep(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	defer w.running.Store(false)

	for _, pair := range w.pairs {
		w.sweepPair(ctx, pair)
	}
	w.coldStart = false
}

func (w *Worker) sweepPair(ctx context.Context, pair Pair) {
	queueKey := sink.QueueKey(pair.Exchange, pair.Instrument)

	stop := int64(0)
	if w.coldStart {
		stop = -1
	}
	periodKeys, err := w.client.ZRange(ctx, queueKey, 0, stop).Result()
	if err != nil {
		w.log.Error().Err(err).Str("queue", queueKey).Msg("queue read failed")
		return
	}

	deadline := w.now().UTC().Add(-latenessThreshold).Unix()
	for _, periodKey := range periodKeys {
		epoch, ok := sink.ParsePeriodEpoch(periodKey)
		if !ok {
			w.log.Warn().Str("key", periodKey).Msg("queue entry without epoch suffix")
			continue
		}
		if epoch >= deadline {
			continue
		}
		w.drain(ctx, pair, queueKey, periodKey, epoch)
	}
}

// drain reads the full bucket, emits its candle, then removes the bucket and
// its queue entry. A trade pushed to the same period after the read re-creates
// the bucket and re-queues it for the next tick.
func (w *Worker) drain(ctx context.Context, pair Pair, queueKey, periodKey string, epoch int64) {
	entries, err := w.client.LRange(ctx, periodKey, 0, -1).Result()
	if err != nil {
		w.log.Error().Err(err).Str("key", periodKey).Msg("bucket read failed")
		return
	}

	candle := OHLCV(epoch, entries)
	w.log.Info().
		Str("exchange", pair.Exchange).
		Str("instrument", pair.Instrument).
		Int64("epoch", candle.Epoch).
		Str("open", candle.Open.String()).
		Str("high", candle.High.String()).
		Str("low", candle.Low.String()).
		Str("close", candle.Close.String()).
		Str("volume", candle.Volume.String()).
		Msg("candle")

	if err := w.client.Del(ctx, periodKey).Err(); err != nil {
		w.log.Error().Err(err).Str("key", periodKey).Msg("bucket delete failed")
		return
	}
	if err := w.client.ZRem(ctx, queueKey, periodKey).Err(); err != nil {
		w.log.Error().Err(err).Str("queue", queueKey).Msg("queue remove failed")
	}
}

// OHLCV folds a bucket's "<price>/<volume>" entries into one candle. The
// list is stored newest-first, so it is walked from the tail. Entries that do
// not parse are skipped; an empty bucket yields all zeros.
func OHLCV(epoch int64, entries []string) Candle {
	candle := Candle{Epoch: epoch}
	first := true
	for i := len(entries) - 1; i >= 0; i-- {
		price, volume, ok := splitEntry(entries[i])
		if !ok {
			continue
		}
		if first {
			candle.Open = price
			candle.High = price
			candle.Low = price
			first = false
		}
		if price.GreaterThan(candle.High) {
			candle.High = price
		}
		if price.LessThan(candle.Low) {
			candle.Low = price
		}
		candle.Close = price
		candle.Volume = candle.Volume.Add(volume)
	}
	return candle
}

func splitEntry(entry string) (price, volume decimal.Decimal, ok bool) {
	sep := strings.IndexByte(entry, '/')
	if sep < 0 {
		return decimal.Zero, decimal.Zero, false
	}
	price, err := decimal.NewFromString(entry[:sep])
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	volume, err = decimal.NewFromString(entry[sep+1:])
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	return price, volume, true
}
