// Command candles aggregates the feed handler's per-second trade buckets
// into OHLCV candles.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/coachpo/befh/config"
	"github.com/coachpo/befh/internal/candle"
	"github.com/coachpo/befh/internal/observability"
	"github.com/coachpo/befh/internal/subs"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.FromEnv()
	cmd := &cobra.Command{
		Use:   "candles",
		Short: "Drain the per-second trade buckets into OHLCV candles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Subscriptions, "subscriptions", cfg.Subscriptions, "path to the instrument subscription file")
	flags.StringVar(&cfg.Sinks.KV.Addr, "kv", "localhost:6379", "key-value store address host:port")
	flags.IntVar(&cfg.Sinks.KV.DB, "kv-db", 0, "key-value store database index")
	flags.StringVar(&cfg.LogPath, "log", "", "log file path; empty logs to stderr")
	return cmd
}

func run(ctx context.Context, cfg config.Settings) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log, err := observability.NewLogger(cfg.LogPath)
	if err != nil {
		return err
	}

	subscriptions, err := subs.Load(cfg.Subscriptions)
	if err != nil {
		return err
	}
	if len(subscriptions) == 0 {
		return fmt.Errorf("no instrument resolved from %s", cfg.Subscriptions)
	}

	pairs := make([]candle.Pair, 0, len(subscriptions))
	for _, sub := range subscriptions {
		pairs = append(pairs, candle.Pair{Exchange: sub.Exchange, Instrument: sub.InstmtName})
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Sinks.KV.Addr, DB: cfg.Sinks.KV.DB})
	defer client.Close()

	log.Info().Int("instruments", len(pairs)).Msg("candle worker started")
	return candle.New(client, pairs, log).Run(ctx)
}
