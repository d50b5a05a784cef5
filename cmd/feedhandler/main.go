// Command feedhandler runs the multi-venue market-data ingest engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/coachpo/befh/config"
	"github.com/coachpo/befh/internal/gateway"
	"github.com/coachpo/befh/internal/market"
	"github.com/coachpo/befh/internal/observability"
	"github.com/coachpo/befh/internal/sink"
	"github.com/coachpo/befh/internal/subs"
	"github.com/coachpo/befh/internal/venues"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.FromEnv()
	cmd := &cobra.Command{
		Use:   "feedhandler",
		Short: "Subscribe to exchange market data and fan it out to the configured sinks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Subscriptions, "subscriptions", cfg.Subscriptions, "path to the instrument subscription file")
	flags.BoolVar(&cfg.UseExchangeTime, "use-exchange-timestamp", false, "stamp rows with the venue-reported time instead of the local clock")
	flags.StringVar(&cfg.Sinks.SQLitePath, "sqlite", "", "SQLite database file")
	flags.StringVar(&cfg.Sinks.MySQL.Dest, "mysql", "", "MySQL destination user:pwd@host:port")
	flags.StringVar(&cfg.Sinks.MySQL.Schema, "mysql-schema", "befh", "MySQL schema")
	flags.StringVar(&cfg.Sinks.Postgres.Dest, "postgres", "", "PostgreSQL destination user:pwd@host:port")
	flags.StringVar(&cfg.Sinks.Postgres.Schema, "postgres-schema", "befh", "PostgreSQL database")
	flags.StringVar(&cfg.Sinks.CSVDir, "csv", "", "directory for CSV output, one file per table")
	flags.StringVar(&cfg.Sinks.KDB, "kdb", "", "kdb+ destination host:port")
	flags.StringVar(&cfg.Sinks.SocketPublisher, "socket-publisher", "", "publish socket address tcp://host:port")
	flags.StringVar(&cfg.Sinks.KV.Addr, "kv", "", "key-value store address host:port")
	flags.IntVar(&cfg.Sinks.KV.DB, "kv-db", 0, "key-value store database index")
	flags.StringVar(&cfg.Proxy, "proxy", cfg.Proxy, "HTTP proxy URL for REST venues")
	flags.StringVar(&cfg.EndpointsFile, "endpoints", cfg.EndpointsFile, "optional YAML file overriding venue endpoints")
	flags.StringVar(&cfg.LogPath, "log", "", "log file path; empty logs to stderr")
	return cmd
}

func run(ctx context.Context, cfg config.Settings) error {
	// A dead sink socket must not kill the ingest path.
	signal.Ignore(syscall.SIGPIPE)
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log, err := observability.NewLogger(cfg.LogPath)
	if err != nil {
		return err
	}

	if !cfg.Sinks.Any() {
		return fmt.Errorf("no sink selected; pass at least one of --sqlite, --mysql, --postgres, --csv, --kdb, --socket-publisher, --kv")
	}

	subscriptions, err := subs.Load(cfg.Subscriptions)
	if err != nil {
		return err
	}
	if len(subscriptions) == 0 {
		return fmt.Errorf("no instrument resolved from %s", cfg.Subscriptions)
	}

	endpoints, err := config.LoadEndpoints(cfg.EndpointsFile)
	if err != nil {
		return err
	}

	sinks, err := openSinks(cfg.Sinks)
	if err != nil {
		return err
	}
	defer closeSinks(sinks, log)

	if err := gateway.InitSnapshotTable(ctx, sinks); err != nil {
		return err
	}

	runners, err := buildRunners(subscriptions, sinks, cfg, venues.Endpoints(endpoints), log)
	if err != nil {
		return err
	}

	var workers conc.WaitGroup
	for _, runner := range runners {
		r := runner
		workers.Go(func() {
			if err := r.Run(ctx); err != nil {
				log.Error().Err(err).Msg("worker stopped")
			}
		})
	}

	log.Info().Int("instruments", len(runners)).Int("sinks", len(sinks)).Msg("feed handler started")
	<-ctx.Done()
	workers.Wait()
	log.Info().Msg("feed handler stopped")
	return nil
}

func buildRunners(subscriptions []subs.Subscription, sinks []sink.Store, cfg config.Settings, endpoints venues.Endpoints, log zerolog.Logger) ([]venues.Runner, error) {
	settings := gateway.Settings{UseExchangeTime: cfg.UseExchangeTime}
	runners := make([]venues.Runner, 0, len(subscriptions))
	for _, sub := range subscriptions {
		log.Info().
			Str("exchange", sub.Exchange).
			Str("instmt_name", sub.InstmtName).
			Str("instmt_code", sub.InstmtCode).
			Msg("subscribing")
		ins := market.NewInstrument(sub.Exchange, sub.InstmtName, sub.InstmtCode)
		ins.Extras = sub.Extras
		runner, err := venues.New(sub.Exchange, ins, sinks, settings, endpoints, cfg.Proxy, log)
		if err != nil {
			return nil, err
		}
		runners = append(runners, runner)
	}
	return runners, nil
}

func openSinks(cfg config.SinkSettings) ([]sink.Store, error) {
	var sinks []sink.Store
	add := func(store sink.Store, err error) error {
		if err != nil {
			return err
		}
		sinks = append(sinks, store)
		return nil
	}

	if cfg.SQLitePath != "" {
		if err := add(sink.NewSQLite(cfg.SQLitePath)); err != nil {
			return nil, err
		}
	}
	if cfg.MySQL.Dest != "" {
		if err := add(sink.NewMySQL(cfg.MySQL.Dest, cfg.MySQL.Schema)); err != nil {
			return nil, err
		}
	}
	if cfg.Postgres.Dest != "" {
		if err := add(sink.NewPostgres(cfg.Postgres.Dest, cfg.Postgres.Schema)); err != nil {
			return nil, err
		}
	}
	if cfg.CSVDir != "" {
		if err := add(sink.NewCSV(cfg.CSVDir)); err != nil {
			return nil, err
		}
	}
	if cfg.KDB != "" {
		if err := add(sink.NewKDB(cfg.KDB)); err != nil {
			return nil, err
		}
	}
	if cfg.SocketPublisher != "" {
		if err := add(sink.NewPublisher(cfg.SocketPublisher)); err != nil {
			return nil, err
		}
	}
	if cfg.KV.Addr != "" {
		if err := add(sink.NewRedis(cfg.KV.Addr, cfg.KV.DB)); err != nil {
			return nil, err
		}
	}
	return sinks, nil
}

func closeSinks(sinks []sink.Store, log zerolog.Logger) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			log.Error().Err(err).Str("sink", s.Name()).Msg("close failed")
		}
	}
}
