package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/metalagman/entrybrain/internal/analyzer"
	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/db"
	"github.com/metalagman/entrybrain/internal/inference"
	"github.com/metalagman/entrybrain/internal/metrics"
	"github.com/metalagman/entrybrain/internal/pipeline"
	"github.com/metalagman/entrybrain/internal/worker"
)

func workerCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:          "worker",
		Short:        "Continuously analyze pending entries",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cfg
			if metricsAddr != "" {
				c.Metrics.Addr = metricsAddr
			}
			app := workerApp(c)
			if err := app.Err(); err != nil {
				return err
			}

			startCtx, cancel := context.WithTimeout(cmd.Context(), app.StartTimeout())
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return fmt.Errorf("start worker: %w", err)
			}

			select {
			case sig := <-app.Done():
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			case <-cmd.Context().Done():
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
			defer cancel()
			return app.Stop(stopCtx)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func workerApp(c config.Config, opts ...fx.Option) *fx.App {
	return fx.New(append([]fx.Option{
		fx.NopLogger,
		fx.Supply(c),
		fx.Provide(
			newRegistry,
			newRecorder,
			provideDB,
			db.NewStore,
			provideCompleter,
			providePipeline,
			provideAnalyzer,
			providePool,
		),
		fx.Invoke(serveMetrics, runPool),
	}, opts...)...)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func newRecorder(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

func provideDB(lc fx.Lifecycle, c config.Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	storeDB, err := db.Open(ctx, c.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(storeDB.Close))
	return storeDB, nil
}

func provideCompleter(c config.Config, rec *metrics.Recorder) (inference.Completer, error) {
	return inference.New(context.Background(), c.Inference, rec)
}

func providePipeline(completer inference.Completer, store *db.Store, c config.Config, rec *metrics.Recorder) *pipeline.Pipeline {
	return pipeline.New(completer, store, c.Pipeline, c.Inference.CallTimeout, pipeline.WithMetrics(rec))
}

func provideAnalyzer(store *db.Store, pipe *pipeline.Pipeline, c config.Config, rec *metrics.Recorder) *analyzer.Analyzer {
	return analyzer.New(store, pipe, c.Pipeline, analyzer.WithMetrics(rec))
}

func providePool(an *analyzer.Analyzer, c config.Config) *worker.Pool {
	return worker.New(an, c.Worker)
}

func runPool(lc fx.Lifecycle, pool *worker.Pool, store *db.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := pool.Poll(ctx, store); err != nil {
					log.Error().Err(err).Msg("worker stopped")
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func serveMetrics(lc fx.Lifecycle, c config.Config, reg *prometheus.Registry) {
	if c.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: c.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("listen metrics: %w", err)
			}
			log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("metrics server")
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}
