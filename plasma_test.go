package plasma

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"github.com/krazyTry/plasma-go/amm"
	"github.com/krazyTry/plasma-go/client"
	gen "github.com/krazyTry/plasma-go/gen/plasma"
)

func TestLocalCluster(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(2_000, 1_700_000_000)
	runtime := NewRuntime(ledger)
	ts := httptest.NewServer(NewRPCServer(runtime))
	t.Cleanup(ts.Close)

	c, err := NewClient(rpc.New(ts.URL))
	require.NoError(t, err)

	baseMint, quoteMint := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, ledger.CreateMint(baseMint, 9))
	require.NoError(t, ledger.CreateMint(quoteMint, 6))

	creator, pool := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	params := gen.InitializePoolParams{LpFeeInBps: 25, ProtocolLpFeeAllocationInPct: 10}
	for i := range params.FeeRecipients {
		params.FeeRecipients[i] = gen.ProtocolFeeRecipientParams{Recipient: solana.NewWallet().PublicKey(), Shares: 1}
	}
	ixs, err := client.CreatePoolInstruction(ctx, c.RPC(), creator, pool, baseMint, quoteMint, params)
	require.NoError(t, err)
	_, err = runtime.Send(ctx, []solana.PublicKey{creator, pool}, ixs...)
	require.NoError(t, err)

	lp := solana.NewWallet().PublicKey()
	for _, mint := range []solana.PublicKey{baseMint, quoteMint} {
		ata, _, err := solana.FindAssociatedTokenAddress(lp, mint)
		require.NoError(t, err)
		require.NoError(t, ledger.CreateTokenAccount(ata, mint, lp, 50_000_000_000))
	}
	got, err := c.GetPool(ctx, pool)
	require.NoError(t, err)
	ixs, err = client.AddLiquidityInstruction(ctx, c.RPC(), lp, lp, got, gen.AddLiquidityParams{
		DesiredBaseAmountIn:  10_000_000_000,
		DesiredQuoteAmountIn: 20_000_000_000,
	})
	require.NoError(t, err)
	_, err = runtime.Send(ctx, []solana.PublicKey{lp}, ixs...)
	require.NoError(t, err)

	ledger.Warp(amm.LeaderSlotWindow)
	quote, err := c.Quote(ctx, pool, amm.Buy, amm.NewExactIn(1_000_000_000, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(2_500_000), quote.Fee)
	require.NotZero(t, quote.AmountOut)
}
