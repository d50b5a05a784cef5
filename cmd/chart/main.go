// Command chart renders a rolling ASCII price chart for one subscribed
// instrument.
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
	"github.com/coachpo/befh/internal/chart"
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
		Use:   "chart",
		Short: "Render a rolling two-minute price chart on the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Subscriptions, "subscriptions", cfg.Subscriptions, "path to the instrument subscription file")
	flags.StringVar(&cfg.Sinks.KV.Addr, "kv", "localhost:6379", "key-value store address host:port")
	flags.IntVar(&cfg.Sinks.KV.DB, "kv-db", 0, "key-value store database index")
	flags.StringVar(&cfg.LogPath, "log", "chart.log", "log file path; the terminal is owned by the chart")
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
	// The terminal fits one chart; the first subscription wins.
	sub := subscriptions[0]

	surface, err := chart.NewTerminalSurface()
	if err != nil {
		return err
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Sinks.KV.Addr, DB: cfg.Sinks.KV.DB})
	defer client.Close()

	log.Info().Str("exchange", sub.Exchange).Str("instrument", sub.InstmtName).Msg("chart worker started")
	return chart.New(client, sub.Exchange, sub.InstmtName, surface, log).Run(ctx)
}
