package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/krazyTry/plasma-go/client"
	"github.com/krazyTry/plasma-go/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "plasma",
		Short:        "Plasma AMM client, indexer and simulator",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("rpc-url", "", "Solana RPC URL")
	flags.String("ws-url", "", "Solana websocket URL, derived from rpc-url when empty")
	flags.String("commitment", "", "processed, confirmed or finalized")
	flags.String("program-id", "", "Plasma program id")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newPDACmd(),
		newPoolCmd(),
		newPositionCmd(),
		newQuoteCmd(),
		newIndexCmd(),
		newSimulateCmd(),
	)
	return root
}

// setup loads the configuration a command runs with and builds its logger.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newClient(cfg config.Config, logger *zap.Logger) (*client.Client, error) {
	return client.NewClient(
		rpc.New(cfg.RPCURL),
		client.WithLogger(logger),
		client.WithCacheSize(cfg.CacheSize),
	)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func parseKey(name, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%s: %w", name, err)
	}
	return key, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
