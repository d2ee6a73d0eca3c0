package program_test

import (
	"context"
	"errors"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/krazyTry/plasma-go/amm"
	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	"github.com/krazyTry/plasma-go/program"
)

const (
	genesisSlot = 1000
	genesisTime = 1_700_000_000
)

func newKey() solanago.PublicKey {
	return solanago.NewWallet().PublicKey()
}

type trader struct {
	owner solanago.PublicKey
	base  solanago.PublicKey
	quote solanago.PublicKey
}

type fixture struct {
	t          *testing.T
	ledger     *program.Ledger
	runtime    *program.Runtime
	pool       solanago.PublicKey
	baseMint   solanago.PublicKey
	quoteMint  solanago.PublicKey
	baseVault  solanago.PublicKey
	quoteVault solanago.PublicKey
	creator    solanago.PublicKey
	recipients [plasma.MaxFeeRecipients]plasma.ProtocolFeeRecipientParams
}

func newFixture(t *testing.T, feeInBps, protocolPct uint64, vestingSlots *uint64) *fixture {
	t.Helper()
	f := newBareFixture(t)
	receipt, err := f.initialize(plasma.InitializePoolParams{
		LpFeeInBps:                   feeInBps,
		ProtocolLpFeeAllocationInPct: protocolPct,
		FeeRecipients:                f.recipients,
		NumSlotsToVestLpShares:       vestingSlots,
	})
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	return f
}

func newBareFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		ledger:    program.NewLedger(genesisSlot, genesisTime),
		pool:      newKey(),
		baseMint:  newKey(),
		quoteMint: newKey(),
		creator:   newKey(),
	}
	f.runtime = program.NewRuntime(f.ledger)
	for i := range f.recipients {
		f.recipients[i] = plasma.ProtocolFeeRecipientParams{Recipient: newKey(), Shares: uint64(i + 1)}
	}
	require.NoError(t, f.ledger.CreateMint(f.baseMint, 9))
	require.NoError(t, f.ledger.CreateMint(f.quoteMint, 6))
	require.NoError(t, f.ledger.CreateAccount(f.pool, plasma.ProgramID, plasma.PoolAccountSize))

	var err error
	f.baseVault, _, err = plasma.DeriveVaultPDA(f.pool, f.baseMint)
	require.NoError(t, err)
	f.quoteVault, _, err = plasma.DeriveVaultPDA(f.pool, f.quoteMint)
	require.NoError(t, err)
	return f
}

func (f *fixture) initialize(params plasma.InitializePoolParams) (*program.Receipt, error) {
	ix, err := plasma.NewInitializePoolInstruction(params, f.pool, f.creator, f.baseMint, f.quoteMint)
	require.NoError(f.t, err)
	return f.runtime.Send(context.Background(), []solanago.PublicKey{f.creator}, ix)
}

func (f *fixture) newTrader(base, quote uint64) trader {
	f.t.Helper()
	tr := trader{owner: newKey(), base: newKey(), quote: newKey()}
	require.NoError(f.t, f.ledger.CreateTokenAccount(tr.base, f.baseMint, tr.owner, base))
	require.NoError(f.t, f.ledger.CreateTokenAccount(tr.quote, f.quoteMint, tr.owner, quote))
	return tr
}

func (f *fixture) vaults(tr trader) plasma.VaultAccounts {
	return plasma.VaultAccounts{
		BaseAccount:  tr.base,
		QuoteAccount: tr.quote,
		BaseVault:    f.baseVault,
		QuoteVault:   f.quoteVault,
	}
}

func (f *fixture) send(signer solanago.PublicKey, ixs ...solanago.Instruction) (*program.Receipt, error) {
	return f.runtime.Send(context.Background(), []solanago.PublicKey{signer}, ixs...)
}

func (f *fixture) poolAccount() *plasma.PoolAccount {
	f.t.Helper()
	a, ok := f.ledger.Account(f.pool)
	require.True(f.t, ok)
	pool, err := plasma.DecodePoolAccount(a.Data)
	require.NoError(f.t, err)
	return pool
}

func (f *fixture) position(owner solanago.PublicKey) *plasma.LpPositionAccount {
	f.t.Helper()
	address, _, err := plasma.DeriveLpPositionPDA(f.pool, owner)
	require.NoError(f.t, err)
	a, ok := f.ledger.Account(address)
	require.True(f.t, ok)
	position, err := plasma.DecodeLpPositionAccount(a.Data)
	require.NoError(f.t, err)
	return position
}

func (f *fixture) openPosition(tr trader) {
	f.t.Helper()
	ix, err := plasma.NewInitializeLpPositionInstruction(f.pool, tr.owner, tr.owner)
	require.NoError(f.t, err)
	_, err = f.send(tr.owner, ix)
	require.NoError(f.t, err)
}

func (f *fixture) addLiquidityIx(tr trader, base, quote uint64, initial *uint64) solanago.Instruction {
	ix, err := plasma.NewAddLiquidityInstruction(plasma.AddLiquidityParams{
		DesiredBaseAmountIn:  base,
		DesiredQuoteAmountIn: quote,
		InitialLpShares:      initial,
	}, f.pool, tr.owner, f.vaults(tr))
	require.NoError(f.t, err)
	return ix
}

// addLiquidity opens a position for tr and deposits into it.
func (f *fixture) addLiquidity(tr trader, base, quote uint64) {
	f.t.Helper()
	f.openPosition(tr)
	var initial *uint64
	if f.poolAccount().Amm.TotalLpShares == 0 {
		shares := amm.GeometricMeanShares(base, quote)
		initial = &shares
	}
	_, err := f.send(tr.owner, f.addLiquidityIx(tr, base, quote, initial))
	require.NoError(f.t, err)
}

func (f *fixture) removeLiquidityIx(tr trader, shares uint64) solanago.Instruction {
	ix, err := plasma.NewRemoveLiquidityInstruction(plasma.RemoveLiquidityParams{LpShares: shares}, f.pool, tr.owner, f.vaults(tr))
	require.NoError(f.t, err)
	return ix
}

func (f *fixture) swapIx(tr trader, side amm.Side, swapType amm.SwapType) solanago.Instruction {
	ix, err := plasma.NewSwapInstruction(plasma.SwapParams{Side: side, SwapType: swapType}, f.pool, tr.owner, f.vaults(tr))
	require.NoError(f.t, err)
	return ix
}

func (f *fixture) swap(tr trader, side amm.Side, swapType amm.SwapType) *program.Receipt {
	f.t.Helper()
	receipt, err := f.send(tr.owner, f.swapIx(tr, side, swapType))
	require.NoError(f.t, err)
	return receipt
}

func (f *fixture) withdrawLpFees(tr trader) (uint64, error) {
	ix, err := plasma.NewWithdrawLpFeesInstruction(f.pool, tr.owner, tr.owner, tr.quote, f.quoteVault)
	require.NoError(f.t, err)
	before := f.ledger.Balance(tr.quote)
	if _, err := f.send(tr.owner, ix); err != nil {
		return 0, err
	}
	return f.ledger.Balance(tr.quote) - before, nil
}

func TestInitializePool(t *testing.T) {
	vesting := uint64(10)
	f := newFixture(t, 25, 10, &vesting)

	pool := f.poolAccount()
	require.Equal(t, uint64(1), pool.Header.SequenceNumber)
	require.Equal(t, f.baseMint, pool.Header.Base.Mint)
	require.Equal(t, f.baseVault, pool.Header.Base.Vault)
	require.Equal(t, uint32(9), pool.Header.Base.Decimals)
	require.Equal(t, uint32(6), pool.Header.Quote.Decimals)
	require.Equal(t, uint32(25), pool.Amm.FeeInBps)
	require.Equal(t, uint32(10), pool.Amm.ProtocolAllocationInPct)
	require.Equal(t, uint64(8), pool.Amm.LpVestingWindow)
	require.Equal(t, uint64(genesisSlot), pool.Amm.SlotSnapshot)
	for i, r := range f.recipients {
		require.Equal(t, r.Recipient, pool.Header.FeeRecipients.Recipients[i].Recipient)
		require.Equal(t, r.Shares, pool.Header.FeeRecipients.Recipients[i].Shares)
	}

	vault, err := f.ledger.TokenAccount(f.baseVault)
	require.NoError(t, err)
	require.Equal(t, f.baseVault, vault.Owner)
	require.Equal(t, f.baseMint, vault.Mint)
	require.Zero(t, vault.Amount)

	_, err = f.initialize(plasma.InitializePoolParams{LpFeeInBps: 25, FeeRecipients: f.recipients})
	require.ErrorIs(t, err, program.ErrPoolAlreadyInitialized)
}

func TestInitializePoolValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*plasma.InitializePoolParams)
		want   error
	}{
		{
			name: "duplicate recipient",
			modify: func(p *plasma.InitializePoolParams) {
				p.FeeRecipients[2].Recipient = p.FeeRecipients[0].Recipient
			},
			want: program.ErrDuplicateFeeRecipient,
		},
		{
			name: "two unset recipients",
			modify: func(p *plasma.InitializePoolParams) {
				p.FeeRecipients[1] = plasma.ProtocolFeeRecipientParams{}
				p.FeeRecipients[2] = plasma.ProtocolFeeRecipientParams{}
			},
			want: program.ErrDuplicateFeeRecipient,
		},
		{
			name: "zero shares",
			modify: func(p *plasma.InitializePoolParams) {
				for i := range p.FeeRecipients {
					p.FeeRecipients[i].Shares = 0
				}
			},
			want: program.ErrInvalidFeeRecipientShare,
		},
		{
			name: "shares overflow",
			modify: func(p *plasma.InitializePoolParams) {
				p.FeeRecipients[0].Shares = 1 << 63
				p.FeeRecipients[1].Shares = 1 << 63
			},
			want: program.ErrInvalidFeeRecipientShare,
		},
		{
			name:   "fee too high",
			modify: func(p *plasma.InitializePoolParams) { p.LpFeeInBps = program.MaxLpFeeInBps },
			want:   program.ErrInvalidArgument,
		},
		{
			name: "protocol allocation too high",
			modify: func(p *plasma.InitializePoolParams) {
				p.ProtocolLpFeeAllocationInPct = program.MaxProtocolFeeAllocationInPct
			},
			want: program.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBareFixture(t)
			params := plasma.InitializePoolParams{LpFeeInBps: 25, ProtocolLpFeeAllocationInPct: 10, FeeRecipients: f.recipients}
			tt.modify(&params)
			receipt, err := f.initialize(params)
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, amm.ClassValidation, amm.ClassOf(err))
			require.Empty(t, receipt.Events)

			// nothing was created
			_, ok := f.ledger.Account(f.baseVault)
			require.False(t, ok)
			a, _ := f.ledger.Account(f.pool)
			require.Equal(t, make([]byte, plasma.PoolAccountSize), a.Data)
		})
	}
}

func TestInitializePoolIdenticalMints(t *testing.T) {
	f := newBareFixture(t)
	f.quoteMint = f.baseMint
	_, err := f.initialize(plasma.InitializePoolParams{LpFeeInBps: 25, FeeRecipients: f.recipients})
	require.ErrorIs(t, err, program.ErrIdenticalMints)
}

func TestInitializeLpPosition(t *testing.T) {
	f := newFixture(t, 25, 10, nil)
	tr := f.newTrader(0, 0)
	f.openPosition(tr)

	position := f.position(tr.owner)
	require.Equal(t, plasma.LpPositionStatusActive, position.Status)
	require.Equal(t, tr.owner, position.Authority)
	require.Equal(t, f.pool, position.Pool)

	ix, err := plasma.NewInitializeLpPositionInstruction(f.pool, tr.owner, tr.owner)
	require.NoError(t, err)
	_, err = f.send(tr.owner, ix)
	require.ErrorIs(t, err, program.ErrAccountAlreadyInUse)
}

func TestSandwich(t *testing.T) {
	const (
		base  = 279_900_000_000_000
		quote = 100_000_000_000
	)
	sandwich := func(t *testing.T, backrunSlots uint64) int64 {
		f := newFixture(t, 25, 10, nil)
		f.addLiquidity(f.newTrader(base, quote), base, quote)
		attacker := f.newTrader(0, 10_000_000_000)
		victim := f.newTrader(0, 10_000_000_000)

		f.ledger.Warp(8)
		front := f.swap(attacker, amm.Buy, amm.NewExactIn(2_000_000_000, 0))
		_, baseOut, err := program.DecodeSwapReturnData(front.ReturnData)
		require.NoError(t, err)
		require.Equal(t, baseOut, f.ledger.Balance(attacker.base))

		f.ledger.Warp(1)
		f.swap(victim, amm.Buy, amm.NewExactIn(1_000_000_000, 0))

		f.ledger.Warp(backrunSlots)
		f.swap(attacker, amm.Sell, amm.NewExactIn(baseOut, 0))
		require.Zero(t, f.ledger.Balance(attacker.base))
		return int64(f.ledger.Balance(attacker.quote)) - 10_000_000_000
	}

	t.Run("same window", func(t *testing.T) {
		profit := sandwich(t, 1)
		require.LessOrEqual(t, profit, int64(0))
	})
	// holding across the window boundary is a known limitation
	t.Run("cross window", func(t *testing.T) {
		profit := sandwich(t, 3)
		require.Greater(t, profit, int64(0))
	})
}

func TestSwapReturnDataAndBalances(t *testing.T) {
	f := newFixture(t, 30, 20, nil)
	f.addLiquidity(f.newTrader(1_000_000, 4_000_000), 1_000_000, 4_000_000)
	tr := f.newTrader(50_000, 50_000)

	receipt := f.swap(tr, amm.Sell, amm.NewExactIn(10_000, 0))
	deposited, withdrawn, err := program.DecodeSwapReturnData(receipt.ReturnData)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), deposited)
	require.Equal(t, uint64(40_000), f.ledger.Balance(tr.base))
	require.Equal(t, 50_000+withdrawn, f.ledger.Balance(tr.quote))

	require.Len(t, receipt.Events, 1)
	swap, ok := receipt.Events[0].Payload.(*plasma.SwapEvent)
	require.True(t, ok)
	require.Equal(t, uint64(1_000_000), swap.PreBaseLiquidity)
	require.Equal(t, uint64(1_010_000), swap.PostBaseLiquidity)
	require.Equal(t, withdrawn, swap.SwapResult.QuoteAmountToTransfer)
	require.Equal(t, tr.owner, receipt.Events[0].Header.Signer)

	pool := f.poolAccount()
	require.Equal(t, pool.Amm.BaseReserves, f.ledger.Balance(f.baseVault))
	// the quote vault holds the reserves plus every fee not yet withdrawn
	require.Equal(t, pool.Amm.QuoteReserves+pool.Amm.CumulativeQuoteLpFees+pool.Amm.CumulativeQuoteProtocolFees, f.ledger.Balance(f.quoteVault))

	events, err := plasma.ParseLogs(receipt.Logs)
	require.NoError(t, err)
	require.Equal(t, receipt.Events, events)
	require.Len(t, receipt.InnerInstructions, 1)
}

func TestSwapErrors(t *testing.T) {
	f := newFixture(t, 30, 20, nil)
	tr := f.newTrader(1_000, 1_000)

	_, err := f.send(tr.owner, f.swapIx(tr, amm.Buy, amm.NewExactIn(100, 0)))
	require.ErrorIs(t, err, amm.ErrNoLiquidity)

	f.addLiquidity(f.newTrader(1_000_000, 4_000_000), 1_000_000, 4_000_000)

	_, err = f.send(tr.owner, f.swapIx(tr, amm.Buy, amm.NewExactIn(2_000, 0)))
	require.ErrorIs(t, err, program.ErrInsufficientFunds)
	require.Equal(t, amm.ClassEconomic, amm.ClassOf(err))

	_, err = f.send(tr.owner, f.swapIx(tr, amm.Buy, amm.NewExactOut(1_000, 1_000_000)))
	require.ErrorIs(t, err, program.ErrInsufficientFunds)

	_, err = f.send(tr.owner, f.swapIx(tr, amm.Buy, amm.NewExactIn(1_000, 1_000)))
	require.ErrorIs(t, err, amm.ErrSlippageExceeded)

	// a stranger can not spend the trader's tokens
	_, err = f.send(newKey(), f.swapIx(tr, amm.Buy, amm.NewExactIn(100, 0)))
	require.ErrorIs(t, err, program.ErrMissingSignature)

	other := f.newTrader(1_000, 1_000)
	ix, err := plasma.NewSwapInstruction(plasma.SwapParams{Side: amm.Buy, SwapType: amm.NewExactIn(100, 0)}, f.pool, tr.owner, f.vaults(other))
	require.NoError(t, err)
	_, err = f.send(tr.owner, ix)
	require.ErrorIs(t, err, program.ErrTokenOwnerMismatch)

	require.Equal(t, uint64(1_000), f.ledger.Balance(tr.quote))
	require.Equal(t, uint64(3), f.poolAccount().Header.SequenceNumber)
}

func TestTransactionIsAtomic(t *testing.T) {
	f := newFixture(t, 30, 20, nil)
	f.addLiquidity(f.newTrader(1_000_000, 4_000_000), 1_000_000, 4_000_000)
	tr := f.newTrader(0, 100_000)
	before := f.poolAccount()

	receipt, err := f.send(tr.owner,
		f.swapIx(tr, amm.Buy, amm.NewExactIn(10_000, 0)),
		f.swapIx(tr, amm.Buy, amm.NewExactIn(10_000, 1_000_000)),
	)
	require.ErrorIs(t, err, amm.ErrSlippageExceeded)
	require.Equal(t, err, receipt.Err)
	require.Empty(t, receipt.Events)
	require.Nil(t, receipt.ReturnData)
	require.Contains(t, receipt.Logs[len(receipt.Logs)-1], "failed")

	require.Equal(t, before, f.poolAccount())
	require.Equal(t, uint64(100_000), f.ledger.Balance(tr.quote))
	require.Zero(t, f.ledger.Balance(tr.base))

	receipt, err = f.send(tr.owner,
		f.swapIx(tr, amm.Buy, amm.NewExactIn(10_000, 0)),
		f.swapIx(tr, amm.Buy, amm.NewExactIn(10_000, 0)),
	)
	require.NoError(t, err)
	require.Len(t, receipt.Events, 2)
	require.Equal(t, receipt.Events[0].Header.SequenceNumber+1, receipt.Events[1].Header.SequenceNumber)
	require.Equal(t, uint64(80_000), f.ledger.Balance(tr.quote))
}

func TestRuntimeRejectsForeignInstructions(t *testing.T) {
	f := newFixture(t, 30, 20, nil)
	ix := solanago.NewInstruction(solanago.TokenProgramID, solanago.AccountMetaSlice{}, []byte{3})
	_, err := f.send(f.creator, ix)
	require.ErrorIs(t, err, program.ErrUnsupportedProgram)

	// only the log authority may invoke Log, and only the program can sign for it
	_, err = f.send(f.creator, plasma.NewLogInstruction([]byte{1, 2, 3}))
	require.ErrorIs(t, err, program.ErrMissingSignature)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ixInit, err := plasma.NewInitializeLpPositionInstruction(f.pool, f.creator, f.creator)
	require.NoError(t, err)
	_, err = f.runtime.Send(ctx, []solanago.PublicKey{f.creator}, ixInit)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestLiquidityVesting(t *testing.T) {
	vesting := uint64(10)
	f := newFixture(t, 30, 20, &vesting)
	lp := f.newTrader(2_000_000, 8_000_000)
	f.addLiquidity(lp, 1_000_000, 4_000_000)

	position := f.position(lp.owner)
	require.Equal(t, uint64(2_000_000), position.Position.LpShares)
	require.Zero(t, position.Position.WithdrawableLpShares)

	_, err := f.send(lp.owner, f.removeLiquidityIx(lp, 1))
	require.ErrorIs(t, err, amm.ErrInsufficientWithdrawableShares)

	f.ledger.Warp(4)
	// a deposit into a still locked tranche merges and restarts the lock
	_, err = f.send(lp.owner, f.addLiquidityIx(lp, 1_000_000, 4_000_000, nil))
	require.NoError(t, err)
	position = f.position(lp.owner)
	require.Equal(t, uint64(4_000_000), position.Position.PendingSharesToVest.LpSharesToVest)
	require.Equal(t, uint64(genesisSlot+4), position.Position.PendingSharesToVest.DepositSlot)

	f.ledger.Warp(4)
	_, err = f.send(lp.owner, f.removeLiquidityIx(lp, 1))
	require.ErrorIs(t, err, amm.ErrInsufficientWithdrawableShares)

	f.ledger.Warp(4)
	receipt, err := f.send(lp.owner, f.removeLiquidityIx(lp, 1_000_000))
	require.NoError(t, err)
	event, ok := receipt.Events[0].Payload.(*plasma.RemoveLiquidityEvent)
	require.True(t, ok)
	require.Equal(t, uint64(4_000_000), event.UserLpSharesUnlockedForWithdrawal)
	require.Equal(t, uint64(500_000), event.UserBaseWithdrawn)
	require.Equal(t, uint64(2_000_000), event.UserQuoteWithdrawn)
	require.Equal(t, uint64(3_000_000), event.UserLpSharesAvailable)
	require.Zero(t, event.UserLpSharesLocked)
	require.Equal(t, uint64(500_000), f.ledger.Balance(lp.base))
	require.Equal(t, uint64(2_000_000), f.ledger.Balance(lp.quote))
}

func TestLiquidityVestingUnalignedDeposit(t *testing.T) {
	vesting := uint64(8)
	f := newFixture(t, 30, 20, &vesting)
	lp := f.newTrader(1_000_000, 4_000_000)
	f.ledger.Warp(3)
	f.addLiquidity(lp, 1_000_000, 4_000_000)

	// stamped with the window start, not the deposit slot
	position := f.position(lp.owner)
	require.Equal(t, uint64(genesisSlot), position.Position.PendingSharesToVest.DepositSlot)

	f.ledger.Warp(4)
	_, err := f.send(lp.owner, f.removeLiquidityIx(lp, 1))
	require.ErrorIs(t, err, amm.ErrInsufficientWithdrawableShares)

	// five slots after the deposit, the window at genesisSlot+8 unlocks it
	f.ledger.Warp(1)
	slot, _ := f.ledger.Clock()
	require.Equal(t, uint64(genesisSlot+8), slot)
	_, err = f.send(lp.owner, f.removeLiquidityIx(lp, 1))
	require.NoError(t, err)
}

func TestAddLiquidityInitialShares(t *testing.T) {
	f := newFixture(t, 30, 20, nil)
	lp := f.newTrader(2_000_000, 8_000_000)
	f.openPosition(lp)

	_, err := f.send(lp.owner, f.addLiquidityIx(lp, 1_000_000, 4_000_000, nil))
	require.ErrorIs(t, err, amm.ErrMissingExpectedArgument)

	wrong := uint64(1_999_999)
	_, err = f.send(lp.owner, f.addLiquidityIx(lp, 1_000_000, 4_000_000, &wrong))
	require.ErrorIs(t, err, amm.ErrInvalidInitialLpShares)

	right := uint64(2_000_000)
	receipt, err := f.send(lp.owner, f.addLiquidityIx(lp, 1_000_000, 4_000_000, &right))
	require.NoError(t, err)
	event := receipt.Events[0].Payload.(*plasma.AddLiquidityEvent)
	require.Equal(t, right, event.UserLpSharesReceived)
	require.Equal(t, right, event.PoolTotalLpShares)

	_, err = f.send(lp.owner, f.addLiquidityIx(lp, 1_000_000, 4_000_000, &right))
	require.ErrorIs(t, err, amm.ErrUnexpectedArgument)

	// deposits beyond the balance fail before any transfer
	_, err = f.send(lp.owner, f.addLiquidityIx(lp, 2_000_000, 8_000_000, nil))
	require.ErrorIs(t, err, program.ErrInsufficientFunds)
}

func TestMultipleLpsEarnProportionalFees(t *testing.T) {
	f := newFixture(t, 30, 20, nil)
	a := f.newTrader(1_000_000_000, 4_000_000_000)
	b := f.newTrader(500_000_000, 2_000_000_000)
	f.addLiquidity(a, 1_000_000_000, 4_000_000_000)
	f.addLiquidity(b, 500_000_000, 2_000_000_000)
	require.Equal(t, 2*f.position(b.owner).Position.LpShares, f.position(a.owner).Position.LpShares)

	tr := f.newTrader(100_000_000, 400_000_000)
	for i := 0; i < 10; i++ {
		f.swap(tr, amm.Buy, amm.NewExactIn(20_000_000, 0))
		f.ledger.Warp(1)
		f.swap(tr, amm.Sell, amm.NewExactIn(5_000_000, 0))
		f.ledger.Warp(3)
	}

	feesA, err := f.withdrawLpFees(a)
	require.NoError(t, err)
	feesB, err := f.withdrawLpFees(b)
	require.NoError(t, err)
	require.Greater(t, feesB, uint64(0))
	require.InDelta(t, float64(2*feesB), float64(feesA), 2)

	pool := f.poolAccount()
	require.LessOrEqual(t, feesA+feesB, pool.Amm.CumulativeQuoteLpFees)
	require.InDelta(t, float64(pool.Amm.CumulativeQuoteLpFees), float64(feesA+feesB), 2)

	// a second withdrawal with no new fees is a no-op
	again, err := f.withdrawLpFees(a)
	require.NoError(t, err)
	require.Zero(t, again)
	require.Equal(t, feesA, f.position(a.owner).Position.CollectedFees)
}

func TestWithdrawLpFeesAuthorization(t *testing.T) {
	f := newFixture(t, 30, 20, nil)
	lp := f.newTrader(1_000_000, 4_000_000)
	f.addLiquidity(lp, 1_000_000, 4_000_000)
	thief := f.newTrader(0, 0)

	ix, err := plasma.NewWithdrawLpFeesInstruction(f.pool, thief.owner, lp.owner, thief.quote, f.quoteVault)
	require.NoError(t, err)
	_, err = f.send(thief.owner, ix)
	require.ErrorIs(t, err, program.ErrUnauthorized)
	require.Equal(t, amm.ClassAuthorization, amm.ClassOf(err))

	// a position can not be spent through another owner's token account
	ix, err = plasma.NewWithdrawLpFeesInstruction(f.pool, lp.owner, lp.owner, thief.quote, f.quoteVault)
	require.NoError(t, err)
	_, err = f.send(lp.owner, ix)
	require.ErrorIs(t, err, program.ErrTokenOwnerMismatch)
}

func TestRenounceLiquidity(t *testing.T) {
	f := newFixture(t, 30, 20, nil)
	burner := f.newTrader(2_000_000, 8_000_000)
	keeper := f.newTrader(2_000_000, 8_000_000)
	f.addLiquidity(burner, 1_000_000, 4_000_000)
	f.addLiquidity(keeper, 1_000_000, 4_000_000)

	renounce := func(tr trader, allow bool) error {
		ix, err := plasma.NewRenounceLiquidityInstruction(plasma.RenounceLiquidityParams{AllowFeeWithdrawal: allow}, f.pool, tr.owner)
		require.NoError(t, err)
		_, err = f.send(tr.owner, ix)
		return err
	}
	require.NoError(t, renounce(burner, false))
	require.NoError(t, renounce(keeper, true))
	require.Equal(t, plasma.LpPositionStatusRenouncedWithBurnedFees, f.position(burner.owner).Status)
	require.Equal(t, plasma.LpPositionStatusRenouncedWithFeeWithdrawal, f.position(keeper.owner).Status)

	require.ErrorIs(t, renounce(burner, true), program.ErrPositionRenounced)
	_, err := f.send(keeper.owner, f.addLiquidityIx(keeper, 1_000, 4_000, nil))
	require.ErrorIs(t, err, program.ErrPositionRenounced)
	_, err = f.send(keeper.owner, f.removeLiquidityIx(keeper, 1))
	require.ErrorIs(t, err, program.ErrPositionRenounced)

	tr := f.newTrader(0, 1_000_000)
	f.swap(tr, amm.Buy, amm.NewExactIn(100_000, 0))

	_, err = f.withdrawLpFees(burner)
	require.ErrorIs(t, err, program.ErrFeesBurned)
	fees, err := f.withdrawLpFees(keeper)
	require.NoError(t, err)
	require.Greater(t, fees, uint64(0))
}

func TestWithdrawProtocolFees(t *testing.T) {
	f := newFixture(t, 30, 20, nil)
	f.addLiquidity(f.newTrader(1_000_000_000, 4_000_000_000), 1_000_000_000, 4_000_000_000)
	tr := f.newTrader(0, 1_000_000_000)
	for i := 0; i < 5; i++ {
		f.swap(tr, amm.Buy, amm.NewExactIn(50_000_000, 0))
		f.ledger.Warp(4)
	}

	pool := f.poolAccount()
	cumulative := pool.Amm.CumulativeQuoteProtocolFees
	require.Greater(t, cumulative, uint64(0))
	var distributed uint64
	for i, r := range pool.Header.FeeRecipients.Recipients {
		// shares are 1, 2 and 3
		require.Equal(t, cumulative*uint64(i+1)/6, r.TotalAccumulatedQuoteFees)
		distributed += r.TotalAccumulatedQuoteFees
	}
	require.LessOrEqual(t, distributed, cumulative)

	withdraw := func(recipient solanago.PublicKey, account solanago.PublicKey) error {
		ix, err := plasma.NewWithdrawProtocolFeesInstruction(f.pool, recipient, account, f.quoteVault)
		require.NoError(t, err)
		_, err = f.send(recipient, ix)
		return err
	}

	stranger := f.newTrader(0, 0)
	require.ErrorIs(t, withdraw(stranger.owner, stranger.quote), program.ErrUnauthorizedRecipient)

	recipient := f.recipients[2].Recipient
	account := newKey()
	require.NoError(t, f.ledger.CreateTokenAccount(account, f.quoteMint, recipient, 0))
	require.NoError(t, withdraw(recipient, account))
	require.Equal(t, cumulative*3/6, f.ledger.Balance(account))

	require.NoError(t, withdraw(recipient, account))
	require.Equal(t, cumulative*3/6, f.ledger.Balance(account))
	r := f.poolAccount().Header.FeeRecipients.Recipients[2]
	require.Equal(t, r.TotalAccumulatedQuoteFees, r.CollectedQuoteFees)
}

func TestUpdateProtocolFeeRecipients(t *testing.T) {
	var r plasma.ProtocolFeeRecipients
	require.ErrorIs(t, program.UpdateProtocolFeeRecipients(&r, 10), program.ErrInvalidFeeRecipientShare)

	r.Recipients[0].Shares = 1
	r.Recipients[1].Shares = 1
	r.Recipients[2].Shares = 1
	require.NoError(t, program.UpdateProtocolFeeRecipients(&r, 10))
	for _, v := range r.Recipients {
		require.Equal(t, uint64(3), v.TotalAccumulatedQuoteFees)
	}
	require.NoError(t, program.UpdateProtocolFeeRecipients(&r, 11))
	require.Equal(t, uint64(3), r.Recipients[0].TotalAccumulatedQuoteFees)
}

func TestVestingWindow(t *testing.T) {
	require.Zero(t, program.VestingWindow(nil))
	for in, want := range map[uint64]uint64{0: 0, 3: 0, 4: 4, 10: 8, 12: 12} {
		require.Equal(t, want, program.VestingWindow(&in))
	}
}

func TestEventsCarryHeader(t *testing.T) {
	f := newFixture(t, 30, 20, nil)
	lp := f.newTrader(1_000_000, 4_000_000)
	f.openPosition(lp)
	f.ledger.Warp(6)

	shares := uint64(2_000_000)
	receipt, err := f.send(lp.owner, f.addLiquidityIx(lp, 1_000_000, 4_000_000, &shares))
	require.NoError(t, err)
	header := receipt.Events[0].Header
	require.Equal(t, uint64(2), header.SequenceNumber)
	require.Equal(t, uint64(genesisSlot+6), header.Slot)
	require.Equal(t, receipt.Timestamp, header.Timestamp)
	require.Equal(t, f.pool, header.Pool)
	require.Equal(t, uint8(9), header.BaseDecimals)
	require.Equal(t, uint8(6), header.QuoteDecimals)

	inner := receipt.InnerInstructions[0].Instruction
	data, err := inner.Data()
	require.NoError(t, err)
	require.Equal(t, byte(plasma.InstructionLog), data[0])
	event, err := plasma.DecodeEvent(data[1:])
	require.NoError(t, err)
	require.Equal(t, receipt.Events[0], event)
}
