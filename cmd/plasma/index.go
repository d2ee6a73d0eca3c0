package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/krazyTry/plasma-go/indexer"
	"github.com/krazyTry/plasma-go/indexer/postgres"
	"github.com/krazyTry/plasma-go/internal/config"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Backfill and follow Plasma events into JSONL and Postgres",
		RunE:  runIndex,
	}
	cmd.Flags().String("output", "./data/events.jsonl", "output JSONL path")
	cmd.Flags().String("checkpoint-dir", "./data/checkpoint", "checkpoint database directory")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN, events are also written there when set")
	cmd.Flags().String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9102")
	cmd.Flags().Int("concurrency", 8, "transactions fetched in parallel during backfill")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-base-delay", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Int("page-size", 1000, "signatures requested per backfill page")
	cmd.Flags().Bool("backfill-only", false, "exit after the backfill instead of following new transactions")
	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks := indexer.MultiSink{indexer.NewJSONLSink(cfg.Output)}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return err
		}
		sinks = append(sinks, store)
	}

	checkpoints, err := indexer.OpenCheckpointStore(cfg.CheckpointDir)
	if err != nil {
		return err
	}
	defer checkpoints.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := indexer.NewMetrics(registry)
	if err != nil {
		return err
	}

	opts := []indexer.Option{
		indexer.WithLogger(logger),
		indexer.WithCheckpointStore(checkpoints),
		indexer.WithMetrics(metrics),
	}
	if backfillOnly, _ := cmd.Flags().GetBool("backfill-only"); !backfillOnly {
		wsClient, source, err := dialSource(ctx, cfg)
		if err != nil {
			return err
		}
		defer wsClient.Close()
		opts = append(opts, indexer.WithSource(source))
	}

	pageSize, _ := cmd.Flags().GetInt("page-size")
	ix, err := indexer.New(indexer.Config{
		Program:        cfg.ProgramID,
		Commitment:     cfg.Commitment,
		PageSize:       pageSize,
		Concurrency:    cfg.Concurrency,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
	}, rpc.New(cfg.RPCURL), sinks, opts...)
	if err != nil {
		return err
	}
	defer ix.Close()

	logger.Info("indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("ws", cfg.WSURL),
		zap.Stringer("program", cfg.ProgramID),
		zap.String("commitment", string(cfg.Commitment)),
		zap.String("out", cfg.Output),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.String("metrics", cfg.MetricsAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer func() {
			if srv == nil {
				return
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		return ix.Run(gctx)
	})

	err = g.Wait()
	cursor := ix.Cursor()
	logger.Info("indexer stopped",
		zap.Stringer("signature", cursor.Signature),
		zap.Uint64("slot", cursor.Slot),
		zap.Int("pools", len(ix.Pools())),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func dialSource(ctx context.Context, cfg config.Config) (*ws.Client, *indexer.LogSource, error) {
	if cfg.WSURL == "" {
		return nil, nil, fmt.Errorf("ws-url is required to follow new transactions")
	}
	wsClient, err := ws.Connect(ctx, cfg.WSURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect ws: %w", err)
	}
	source, err := indexer.NewLogSource(wsClient, cfg.ProgramID, cfg.Commitment)
	if err != nil {
		wsClient.Close()
		return nil, nil, err
	}
	return wsClient, source, nil
}
