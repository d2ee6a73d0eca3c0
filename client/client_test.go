package client_test

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"github.com/krazyTry/plasma-go/amm"
	"github.com/krazyTry/plasma-go/client"
	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	"github.com/krazyTry/plasma-go/program"
)

func newKey() solanago.PublicKey {
	return solanago.NewWallet().PublicKey()
}

type env struct {
	t         *testing.T
	ctx       context.Context
	ledger    *program.Ledger
	runtime   *program.Runtime
	client    *client.Client
	requests  *atomic.Int64
	baseMint  solanago.PublicKey
	quoteMint solanago.PublicKey
	creator   solanago.PublicKey
	pool      solanago.PublicKey
	params    plasma.InitializePoolParams
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		t:         t,
		ctx:       context.Background(),
		ledger:    program.NewLedger(5000, 1_700_000_000),
		requests:  new(atomic.Int64),
		baseMint:  newKey(),
		quoteMint: newKey(),
		creator:   newKey(),
		pool:      newKey(),
	}
	e.runtime = program.NewRuntime(e.ledger)
	srv := program.NewRPCServer(e.runtime)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.requests.Add(1)
		srv.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	var err error
	e.client, err = client.NewClient(rpc.New(ts.URL), client.WithCacheSize(8))
	require.NoError(t, err)

	require.NoError(t, e.ledger.CreateMint(e.baseMint, 9))
	require.NoError(t, e.ledger.CreateMint(e.quoteMint, 6))

	e.params = plasma.InitializePoolParams{LpFeeInBps: 30, ProtocolLpFeeAllocationInPct: 20}
	for i := range e.params.FeeRecipients {
		e.params.FeeRecipients[i] = plasma.ProtocolFeeRecipientParams{Recipient: newKey(), Shares: uint64(i + 1)}
	}
	ixs, err := client.CreatePoolInstruction(e.ctx, e.client.RPC(), e.creator, e.pool, e.baseMint, e.quoteMint, e.params)
	require.NoError(t, err)
	require.Len(t, ixs, 2)
	e.send(ixs, e.creator, e.pool)
	return e
}

func (e *env) send(ixs []solanago.Instruction, signers ...solanago.PublicKey) *program.Receipt {
	e.t.Helper()
	receipt, err := e.runtime.Send(e.ctx, signers, ixs...)
	require.NoError(e.t, err)
	return receipt
}

func (e *env) ata(owner, mint solanago.PublicKey) solanago.PublicKey {
	address, _, err := solanago.FindAssociatedTokenAddress(owner, mint)
	require.NoError(e.t, err)
	return address
}

// fund opens owner's ATAs, skipping a leg funded with zero.
func (e *env) fund(owner solanago.PublicKey, base, quote uint64) {
	e.t.Helper()
	if base > 0 {
		require.NoError(e.t, e.ledger.CreateTokenAccount(e.ata(owner, e.baseMint), e.baseMint, owner, base))
	}
	if quote > 0 {
		require.NoError(e.t, e.ledger.CreateTokenAccount(e.ata(owner, e.quoteMint), e.quoteMint, owner, quote))
	}
}

func (e *env) getPool() *client.Pool {
	e.t.Helper()
	pool, err := e.client.GetPool(e.ctx, e.pool)
	require.NoError(e.t, err)
	return pool
}

func (e *env) addLiquidity(owner solanago.PublicKey, base, quote uint64) []solanago.Instruction {
	e.t.Helper()
	ixs, err := client.AddLiquidityInstruction(e.ctx, e.client.RPC(), owner, owner, e.getPool(), plasma.AddLiquidityParams{
		DesiredBaseAmountIn:  base,
		DesiredQuoteAmountIn: quote,
	})
	require.NoError(e.t, err)
	e.send(ixs, owner)
	return ixs
}

func (e *env) seed() solanago.PublicKey {
	e.t.Helper()
	lp := newKey()
	e.fund(lp, 20_000_000_000, 80_000_000_000)
	e.addLiquidity(lp, 10_000_000_000, 40_000_000_000)
	return lp
}

func TestGetPool(t *testing.T) {
	e := newEnv(t)

	pool := e.getPool()
	require.Equal(t, e.pool, pool.Address)
	require.Equal(t, e.baseMint, pool.Header.Base.Mint)
	require.Equal(t, e.quoteMint, pool.Header.Quote.Mint)
	require.Equal(t, uint32(9), pool.Header.Base.Decimals)
	require.Equal(t, uint32(30), pool.Amm.FeeInBps)
	require.True(t, pool.Price().IsZero())

	pools, err := e.client.GetPools(e.ctx)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.Equal(t, e.pool, pools[0].Address)

	_, err = e.client.GetPool(e.ctx, newKey())
	require.ErrorIs(t, err, client.ErrPoolNotFound)

	_, err = e.client.GetPool(e.ctx, e.baseMint)
	require.ErrorIs(t, err, client.ErrNotPlasmaAccount)
}

func TestAddLiquidityOpensPosition(t *testing.T) {
	e := newEnv(t)
	lp := newKey()
	e.fund(lp, 20_000_000_000, 80_000_000_000)

	ixs := e.addLiquidity(lp, 10_000_000_000, 40_000_000_000)
	require.Len(t, ixs, 2, "position is opened in the same transaction")

	position, err := e.client.GetLpPosition(e.ctx, e.pool, lp)
	require.NoError(t, err)
	require.Equal(t, lp, position.Authority)
	require.Equal(t, amm.GeometricMeanShares(10_000_000_000, 40_000_000_000), position.Position.LpShares)

	ixs = e.addLiquidity(lp, 1_000_000_000, 4_000_000_000)
	require.Len(t, ixs, 1)

	other := newKey()
	e.fund(other, 1_000_000_000, 4_000_000_000)
	e.addLiquidity(other, 1_000_000_000, 4_000_000_000)

	byPool, err := e.client.GetLpPositionsByPool(e.ctx, e.pool)
	require.NoError(t, err)
	require.Len(t, byPool, 2)

	byOwner, err := e.client.GetLpPositionsByOwner(e.ctx, other)
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	require.Equal(t, other, byOwner[0].Authority)

	_, err = e.client.GetLpPosition(e.ctx, e.pool, newKey())
	require.ErrorIs(t, err, client.ErrLpPositionNotFound)
}

func TestQuoteMatchesExecution(t *testing.T) {
	e := newEnv(t)
	e.seed()
	trader := newKey()
	e.fund(trader, 1_000_000_000, 5_000_000_000)

	swapType := amm.NewExactIn(1_000_000_000, 0)
	quote, err := e.client.Quote(e.ctx, e.pool, amm.Buy, swapType)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000_000), quote.AmountIn)
	require.Equal(t, uint64(3_000_000), quote.Fee)
	require.True(t, quote.PriceImpact.IsPositive())

	before := e.getPool()
	simulated, err := e.client.SimulateSwap(e.ctx, trader, before, amm.Buy, swapType)
	require.NoError(t, err)
	require.Equal(t, quote.Result, simulated.SwapResult)
	require.Equal(t, before.Amm, e.getPool().Amm, "simulation leaves the ledger untouched")

	ixs, err := client.SwapInstruction(e.ctx, e.client.RPC(), trader, trader, before, amm.Buy, swapType)
	require.NoError(t, err)
	require.Len(t, ixs, 1)
	receipt := e.send(ixs, trader)
	require.Len(t, receipt.Events, 1)
	event, ok := receipt.Events[0].Payload.(*plasma.SwapEvent)
	require.True(t, ok)
	require.Equal(t, quote.Result, event.SwapResult)

	deposited, withdrawn, err := program.DecodeSwapReturnData(receipt.ReturnData)
	require.NoError(t, err)
	require.Equal(t, quote.AmountIn, deposited)
	require.Equal(t, quote.AmountOut, withdrawn)
}

func TestSwapCreatesMissingATA(t *testing.T) {
	e := newEnv(t)
	e.seed()
	trader := newKey()
	e.fund(trader, 500_000_000, 0)

	ixs, err := client.SwapInstruction(e.ctx, e.client.RPC(), trader, trader, e.getPool(), amm.Sell, amm.NewExactIn(500_000_000, 1))
	require.NoError(t, err)
	require.Len(t, ixs, 2)
	require.Equal(t, solanago.SPLAssociatedTokenAccountProgramID, ixs[0].ProgramID())
	e.send(ixs, trader)

	base, quote, err := e.client.Balances(e.ctx, trader, e.getPool())
	require.NoError(t, err)
	require.Zero(t, base)
	require.Positive(t, quote)
	require.Equal(t, e.ledger.Balance(e.ata(trader, e.quoteMint)), quote)

	_, err = client.SwapInstruction(e.ctx, e.client.RPC(), trader, trader, e.getPool(), amm.Sell, amm.NewExactIn(0, 0))
	require.Error(t, err)
}

func TestVaultBalancesTrackReservesAndFees(t *testing.T) {
	e := newEnv(t)
	e.seed()
	trader := newKey()
	e.fund(trader, 2_000_000_000, 5_000_000_000)
	for _, side := range []amm.Side{amm.Buy, amm.Sell, amm.Buy} {
		amount := uint64(700_000_000)
		ixs, err := client.SwapInstruction(e.ctx, e.client.RPC(), trader, trader, e.getPool(), side, amm.NewExactIn(amount, 0))
		require.NoError(t, err)
		e.send(ixs, trader)
		e.ledger.Warp(1)
	}

	pool := e.getPool()
	base, quote, err := e.client.VaultBalances(e.ctx, pool)
	require.NoError(t, err)
	require.Equal(t, pool.Amm.BaseReserves, base)
	require.Equal(t, pool.Amm.QuoteReserves+pool.Amm.CumulativeQuoteLpFees+pool.Amm.CumulativeQuoteProtocolFees, quote)

	unclaimed, err := e.client.UnclaimedFees(e.ctx, pool)
	require.NoError(t, err)
	require.Equal(t, pool.Amm.CumulativeQuoteLpFees+pool.Amm.CumulativeQuoteProtocolFees, unclaimed)
}

func TestSummarizeMatchesFeeWithdrawal(t *testing.T) {
	e := newEnv(t)
	lp := e.seed()
	trader := newKey()
	e.fund(trader, 0, 5_000_000_000)
	ixs, err := client.SwapInstruction(e.ctx, e.client.RPC(), trader, trader, e.getPool(), amm.Buy, amm.NewExactIn(2_000_000_000, 0))
	require.NoError(t, err)
	e.send(ixs, trader)

	summaries, err := e.client.SummarizePool(e.ctx, e.getPool())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	summary := summaries[lp]
	require.Positive(t, summary.ClaimableFees)
	require.Equal(t, summary.LpShares, summary.WithdrawableLpShares)
	require.Zero(t, summary.LockedLpShares)

	quoteATA := e.ata(lp, e.quoteMint)
	before := e.ledger.Balance(quoteATA)
	ixs, err = client.WithdrawLpFeesInstruction(e.ctx, e.client.RPC(), lp, lp, e.getPool())
	require.NoError(t, err)
	e.send(ixs, lp)
	require.Equal(t, summary.ClaimableFees, e.ledger.Balance(quoteATA)-before)
}

func TestWithdrawProtocolFeesInstruction(t *testing.T) {
	e := newEnv(t)
	e.seed()

	_, err := client.WithdrawProtocolFeesInstruction(e.ctx, e.client.RPC(), e.creator, newKey(), e.getPool())
	require.Error(t, err)

	recipient := e.params.FeeRecipients[0].Recipient
	ixs, err := client.WithdrawProtocolFeesInstruction(e.ctx, e.client.RPC(), recipient, recipient, e.getPool())
	require.NoError(t, err)
	require.Len(t, ixs, 2, "recipient quote ATA is created")
	e.send(ixs, recipient)
	require.Zero(t, e.ledger.Balance(e.ata(recipient, e.quoteMint)))
}

func TestMintsAreCached(t *testing.T) {
	e := newEnv(t)

	tokens, err := e.client.Mints(e.ctx, e.baseMint, e.quoteMint)
	require.NoError(t, err)
	require.Equal(t, uint8(9), tokens[0].Decimals)
	require.Equal(t, uint8(6), tokens[1].Decimals)

	calls := e.requests.Load()
	tokens, err = e.client.Mints(e.ctx, e.quoteMint, e.baseMint)
	require.NoError(t, err)
	require.Equal(t, uint8(6), tokens[0].Decimals)
	require.Equal(t, calls, e.requests.Load())

	_, err = e.client.Mints(e.ctx, newKey())
	require.ErrorIs(t, err, client.ErrMintNotFound)
}

func TestSlippageBounds(t *testing.T) {
	require.Equal(t, uint64(9_950), client.MinAmountOut(10_000, 50))
	require.Equal(t, uint64(10_050), client.MaxAmountIn(10_000, 50))
	require.Equal(t, uint64(0), client.MinAmountOut(10_000, 10_000))
	require.Equal(t, uint64(math.MaxUint64), client.MaxAmountIn(math.MaxUint64, 1))
	// rounds up in the payer's favour
	require.Equal(t, uint64(2), client.MaxAmountIn(1, 1))
	require.Equal(t, uint64(1), client.MaxAmountIn(1, 0))
	require.Equal(t, uint64(0), client.MinAmountOut(1, 1))
}
