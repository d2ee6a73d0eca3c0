// Package config loads plasma settings from flags, PLASMA_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	plasma "github.com/krazyTry/plasma-go/gen/plasma"
)

type Config struct {
	RPCURL         string
	WSURL          string
	Commitment     rpc.CommitmentType
	ProgramID      solana.PublicKey
	LogLevel       string
	PGDSN          string
	Output         string
	CheckpointDir  string
	MetricsAddr    string
	CacheSize      int
	MaxRetries     int
	RetryBaseDelay time.Duration
	Concurrency    int
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PLASMA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc-url", rpc.MainNetBeta_RPC)
	v.SetDefault("ws-url", "")
	v.SetDefault("commitment", string(rpc.CommitmentConfirmed))
	v.SetDefault("program-id", plasma.ProgramID.String())
	v.SetDefault("log-level", "info")
	v.SetDefault("pg-dsn", "")
	v.SetDefault("output", "./data/events.jsonl")
	v.SetDefault("checkpoint-dir", "./data/checkpoint")
	v.SetDefault("metrics-addr", "")
	v.SetDefault("cache-size", 256)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-base-delay", 500*time.Millisecond)
	v.SetDefault("concurrency", 8)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		RPCURL:         v.GetString("rpc-url"),
		WSURL:          v.GetString("ws-url"),
		Commitment:     rpc.CommitmentType(v.GetString("commitment")),
		LogLevel:       v.GetString("log-level"),
		PGDSN:          v.GetString("pg-dsn"),
		Output:         v.GetString("output"),
		CheckpointDir:  v.GetString("checkpoint-dir"),
		MetricsAddr:    v.GetString("metrics-addr"),
		CacheSize:      v.GetInt("cache-size"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBaseDelay: v.GetDuration("retry-base-delay"),
		Concurrency:    v.GetInt("concurrency"),
	}
	if cfg.WSURL == "" {
		cfg.WSURL = wsFromRPC(cfg.RPCURL)
	}

	programID, err := solana.PublicKeyFromBase58(v.GetString("program-id"))
	if err != nil {
		return Config{}, fmt.Errorf("program-id: %w", err)
	}
	cfg.ProgramID = programID

	switch cfg.Commitment {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return Config{}, fmt.Errorf("commitment %q is not processed, confirmed or finalized", cfg.Commitment)
	}
	if cfg.CacheSize <= 0 {
		return Config{}, fmt.Errorf("cache-size must be positive, got %d", cfg.CacheSize)
	}
	if cfg.Concurrency <= 0 {
		return Config{}, fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}
	return cfg, nil
}

// wsFromRPC derives the websocket endpoint that Solana RPC nodes serve next
// to their HTTP endpoint. Local validators listen one port above.
func wsFromRPC(rpcURL string) string {
	switch rpcURL {
	case rpc.LocalNet_RPC:
		return rpc.LocalNet_WS
	case rpc.DevNet_RPC:
		return rpc.DevNet_WS
	case rpc.TestNet_RPC:
		return rpc.TestNet_WS
	case rpc.MainNetBeta_RPC:
		return rpc.MainNetBeta_WS
	}
	switch {
	case strings.HasPrefix(rpcURL, "https://"):
		return "wss://" + strings.TrimPrefix(rpcURL, "https://")
	case strings.HasPrefix(rpcURL, "http://"):
		return "ws://" + strings.TrimPrefix(rpcURL, "http://")
	}
	return ""
}
