package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	plasma "github.com/krazyTry/plasma-go/gen/plasma"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, rpc.MainNetBeta_RPC, cfg.RPCURL)
	require.Equal(t, rpc.MainNetBeta_WS, cfg.WSURL)
	require.Equal(t, rpc.CommitmentConfirmed, cfg.Commitment)
	require.Equal(t, plasma.ProgramID, cfg.ProgramID)
	require.Equal(t, 256, cfg.CacheSize)
	require.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plasma.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rpc-url: http://127.0.0.1:9000
commitment: finalized
max-retries: 2
concurrency: 3
`), 0o644))
	t.Setenv("PLASMA_MAX_RETRIES", "7")
	t.Setenv("PLASMA_PG_DSN", "postgres://localhost/plasma")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("concurrency", 8, "")
	flags.Duration("retry-base-delay", time.Second, "")
	require.NoError(t, flags.Parse([]string{"--concurrency=4"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9000", cfg.RPCURL)
	require.Equal(t, "ws://127.0.0.1:9000", cfg.WSURL)
	require.Equal(t, rpc.CommitmentFinalized, cfg.Commitment)
	require.Equal(t, 7, cfg.MaxRetries, "env beats the file")
	require.Equal(t, 4, cfg.Concurrency, "a set flag beats the file")
	require.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay, "an unset flag leaves the default")
	require.Equal(t, "postgres://localhost/plasma", cfg.PGDSN)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, env := range map[string][2]string{
		"commitment": {"PLASMA_COMMITMENT", "recent"},
		"program id": {"PLASMA_PROGRAM_ID", "not-a-key"},
		"cache size": {"PLASMA_CACHE_SIZE", "0"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := Load("", nil)
			require.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestWSFromRPC(t *testing.T) {
	require.Equal(t, rpc.LocalNet_WS, wsFromRPC(rpc.LocalNet_RPC))
	require.Equal(t, "wss://rpc.example.com/key", wsFromRPC("https://rpc.example.com/key"))
	require.Equal(t, "", wsFromRPC("unix:///tmp/sock"))
}
