// Package chart renders a rolling two-minute ASCII price chart from the
// per-second price series maintained by the key-value sink.
package chart

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/coachpo/befh/internal/sink"
)

// windowSeconds is the width of the rolling chart window.
const windowSeconds = 120

// Point is one observed price at an epoch second.
type Point struct {
	Epoch int64
	Price float64
}

// Surface is the output device the worker draws on.
type Surface interface {
	Size() (width, height int)
	Render(frame string)
	Close()
}

// Worker redraws the chart once per second.
type Worker struct {
	client     redis.Cmdable
	exchange   string
	instrument string
	surface    Surface
	log        zerolog.Logger

	now func() time.Time
}

// New builds a worker for one instrument's price series.
func New(client redis.Cmdable, exchange, instrument string, surface Surface, log zerolog.Logger) *Worker {
	return &Worker{
		client:     client,
		exchange:   exchange,
		instrument: instrument,
		surface:    surface,
		log:        log.With().Str("component", "chart").Logger(),
		now:        time.Now,
	}
}

// Run redraws until ctx is cancelled, then yields the terminal back.
func (w *Worker) Run(ctx context.Context) error {
	defer w.surface.Close()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.draw(ctx)
		}
	}
}

func (w *Worker) draw(ctx context.Context) {
	points, err := w.fetch(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("price series read failed")
		return
	}
	width, height := w.surface.Size()
	series := Dense(points, w.now().Unix()-windowSeconds+1, w.now().Unix()-1)
	w.surface.Render(Render(series, width, height))
}

// fetch reads the series over the exclusive window (now-120, now).
func (w *Worker) fetch(ctx context.Context) ([]Point, error) {
	nowSec := w.now().Unix()
	members, err := w.client.ZRangeByScore(ctx, sink.PricesKey(w.exchange, w.instrument), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(nowSec-windowSeconds, 10),
		Max: "(" + strconv.FormatInt(nowSec, 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	points := make([]Point, 0, len(members))
	for _, member := range members {
		point, ok := parseMember(member)
		if !ok {
			w.log.Warn().Str("member", member).Msg("malformed series member")
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

// parseMember splits an "<epoch>/<price>" series member.
func parseMember(member string) (Point, bool) {
	sep := strings.IndexByte(member, '/')
	if sep < 0 {
		return Point{}, false
	}
	epoch, err := strconv.ParseInt(member[:sep], 10, 64)
	if err != nil {
		return Point{}, false
	}
	price, err := strconv.ParseFloat(member[sep+1:], 64)
	if err != nil {
		return Point{}, false
	}
	return Point{Epoch: epoch, Price: price}, true
}

// Dense builds one value per second over [from, to], forward-filling the most
// recent observation across gaps. Seconds before the first observation are
// omitted.
func Dense(points []Point, from, to int64) []float64 {
	byEpoch := make(map[int64]float64, len(points))
	for _, p := range points {
		byEpoch[p.Epoch] = p.Price
	}
	series := make([]float64, 0, to-from+1)
	haveLast := false
	var last float64
	for epoch := from; epoch <= to; epoch++ {
		if price, ok := byEpoch[epoch]; ok {
			last = price
			haveLast = true
		}
		if haveLast {
			series = append(series, last)
		}
	}
	return series
}

// Render draws the series as an ASCII line chart with a last-price header.
// The output always fits a width x height cell grid.
func Render(series []float64, width, height int) string {
	if width < 8 {
		width = 8
	}
	if height < 4 {
		height = 4
	}
	rows := height - 2

	if len(series) == 0 {
		return "last: n/a\n"
	}
	if len(series) > width {
		series = series[len(series)-width:]
	}

	low, high := series[0], series[0]
	for _, v := range series {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}

	grid := make([][]byte, rows)
	for i := range grid {
		grid[i] = []byte(strings.Repeat(" ", len(series)))
	}
	span := high - low
	for col, v := range series {
		row := rows - 1
		if span > 0 {
			row = rows - 1 - int((v-low)/span*float64(rows-1)+0.5)
		}
		grid[row][col] = '*'
	}

	var b strings.Builder
	b.WriteString("last: ")
	b.WriteString(strconv.FormatFloat(series[len(series)-1], 'f', -1, 64))
	b.WriteString("  high: ")
	b.WriteString(strconv.FormatFloat(high, 'f', -1, 64))
	b.WriteString("  low: ")
	b.WriteString(strconv.FormatFloat(low, 'f', -1, 64))
	b.WriteByte('\n')
	for _, line := range grid {
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}
