package sink

import (
	"context"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/coachpo/befh/errs"
	"github.com/coachpo/befh/internal/market"
)

// redisStore projects rows into the key-value store: snapshot rows become
// per-column SETs plus a pub/sub notification, trade rows become per-second
// buckets indexed by a sorted queue. It is the substrate for the candle and
// chart workers.
type redisStore struct {
	client *redis.Client
	mu     sync.Mutex
}

// NewRedis connects to the key-value store at addr (host:port) using the
// given logical database.
func NewRedis(addr string, db int) (Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	return &redisStore{client: client}, nil
}

// newRedisWithClient is the test seam for redismock.
func newRedisWithClient(client *redis.Client) *redisStore {
	return &redisStore{client: client}
}

func (r *redisStore) Name() string { return "redis" }

// Create is a no-op: keys materialise on first write.
func (r *redisStore) Create(context.Context, string, []string, []ColumnType, []int, bool) error {
	return nil
}

func (r *redisStore) Insert(ctx context.Context, row Row) error {
	if row.Table == SnapshotTable {
		return r.insertSnapshot(ctx, row)
	}
	if _, _, ok := ParseTradesTable(row.Table); ok {
		return r.insertTrade(ctx, row)
	}
	// Order book detail tables have no key-value projection.
	return nil
}

// insertSnapshot writes every column under its own key and publishes the
// full row. The column SETs and the publish happen under one lock so that a
// subscriber never observes a torn snapshot for an instrument.
func (r *redisStore) insertSnapshot(ctx context.Context, row Row) error {
	values := make(map[string]any, len(row.Columns)+1)
	for i, col := range row.Columns {
		values[col] = renderPlain(row.Values[i], row.Types[i])
	}
	exchange := fmt.Sprintf("%v", values["exchange"])
	instrument := fmt.Sprintf("%v", values["instmt"])
	values["table"] = row.Table

	payload, err := json.Marshal(values)
	if err != nil {
		return errs.New(exchange, errs.CodeSink,
			errs.WithMessage("marshal snapshot row"), errs.WithCause(err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, col := range row.Columns {
		key := SnapshotColumnKey(exchange, instrument, col)
		value := fmt.Sprintf("%v", renderPlain(row.Values[i], row.Types[i]))
		if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
			return errs.New(exchange, errs.CodeSink,
				errs.WithStatement("SET "+key), errs.WithCause(err))
		}
	}
	if err := r.client.Publish(ctx, SnapshotChannel, payload).Err(); err != nil {
		return errs.New(exchange, errs.CodeSink,
			errs.WithStatement("PUBLISH "+SnapshotChannel), errs.WithCause(err))
	}
	return nil
}

// insertTrade buckets the trade into its epoch-second list, indexes the
// bucket in the sorted queue, and appends the price to the chart series.
// The three commands run under the adapter lock; a concurrent candle drain
// may interleave, in which case a late push simply re-creates the bucket and
// re-queues it for the next eligible tick.
func (r *redisStore) insertTrade(ctx context.Context, row Row) error {
	exchange, instrument, _ := ParseTradesTable(row.Table)

	var price, volume, dateTime string
	for i, col := range row.Columns {
		v := fmt.Sprintf("%v", renderPlain(row.Values[i], row.Types[i]))
		switch col {
		case "trade_px":
			price = v
		case "trade_volume":
			volume = v
		case "date_time":
			dateTime = v
		}
	}

	tradeTime, err := market.ParseTime(dateTime)
	if err != nil {
		return errs.New(exchange, errs.CodeSink,
			errs.WithMessage(fmt.Sprintf("parse trade date_time %q", dateTime)), errs.WithCause(err))
	}
	epoch := tradeTime.Unix()

	periodKey := PeriodKey(exchange, instrument, epoch)
	queueKey := QueueKey(exchange, instrument)
	pricesKey := PricesKey(exchange, instrument)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.client.LPush(ctx, periodKey, price+"/"+volume).Err(); err != nil {
		return errs.New(exchange, errs.CodeSink,
			errs.WithStatement("LPUSH "+periodKey), errs.WithCause(err))
	}
	if err := r.client.ZAdd(ctx, queueKey, redis.Z{Score: float64(epoch), Member: periodKey}).Err(); err != nil {
		return errs.New(exchange, errs.CodeSink,
			errs.WithStatement("ZADD "+queueKey), errs.WithCause(err))
	}
	member := fmt.Sprintf("%d/%s", epoch, price)
	if err := r.client.ZAdd(ctx, pricesKey, redis.Z{Score: float64(epoch), Member: member}).Err(); err != nil {
		return errs.New(exchange, errs.CodeSink,
			errs.WithStatement("ZADD "+pricesKey), errs.WithCause(err))
	}
	return nil
}

func (r *redisStore) Select(context.Context, Query) ([][]string, error) { return nil, nil }

func (r *redisStore) Delete(ctx context.Context, table, _ string) error {
	return r.client.Del(ctx, table).Err()
}

func (r *redisStore) Commit(context.Context) error { return nil }

func (r *redisStore) Close() error { return r.client.Close() }
