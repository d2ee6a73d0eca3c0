package program

import (
	"fmt"

	"github.com/krazyTry/plasma-go/amm"
	plasma "github.com/krazyTry/plasma-go/gen/plasma"
)

func liquiditySnapshot(pool amm.Amm, position amm.LpPosition, vested uint64) plasma.LiquiditySnapshot {
	base, quote := position.WithdrawableAmounts(pool)
	return plasma.LiquiditySnapshot{
		PoolTotalLpShares:                 pool.TotalLpShares,
		PoolTotalBaseLiquidity:            pool.BaseReserves,
		PoolTotalQuoteLiquidity:           pool.QuoteReserves,
		SnapshotBaseLiquidity:             pool.BaseReservesSnapshot,
		SnapshotQuoteLiquidity:            pool.QuoteReservesSnapshot,
		UserLpSharesAvailable:             position.LpShares,
		UserLpSharesLocked:                position.LpShares - position.WithdrawableLpShares,
		UserLpSharesUnlockedForWithdrawal: vested,
		UserTotalWithdrawableBase:         base,
		UserTotalWithdrawableQuote:        quote,
	}
}

// loadActivePosition loads the signer's position for a liquidity change.
func loadActivePosition(iv *invocation, pc *poolContext) (*plasma.LpPositionAccount, error) {
	if len(pc.rest) < 1 {
		return nil, fmt.Errorf("%w: lp position", ErrNotEnoughAccounts)
	}
	position, err := loadLpPosition(iv, pc.rest[0], pc.key(), pc.signer)
	if err != nil {
		return nil, err
	}
	if position.Status.Renounced() {
		return nil, fmt.Errorf("%w: status %s", ErrPositionRenounced, position.Status)
	}
	return position, nil
}

func processAddLiquidity(iv *invocation, pc *poolContext, data []byte) (plasma.EventPayload, error) {
	position, err := loadActivePosition(iv, pc)
	if err != nil {
		return nil, err
	}
	vc, err := loadVaultContext(iv, pc, pc.rest[1:])
	if err != nil {
		return nil, err
	}
	var params plasma.AddLiquidityParams
	if err := plasma.DecodeParams(data, &params); err != nil {
		return nil, err
	}

	res, err := position.Position.AddLiquidity(
		liquiditySlot(iv),
		&pc.pool.Amm,
		params.DesiredBaseAmountIn,
		params.DesiredQuoteAmountIn,
		params.InitialLpShares,
	)
	if err != nil {
		return nil, err
	}
	if res.BaseAmountDeposited > vc.base.Amount || res.QuoteAmountDeposited > vc.quote.Amount {
		return nil, fmt.Errorf("%w: deposit %d base and %d quote", ErrInsufficientFunds, res.BaseAmountDeposited, res.QuoteAmountDeposited)
	}
	if err := deposit(iv, pc, vc.baseAccount, vc.baseVault, res.BaseAmountDeposited); err != nil {
		return nil, err
	}
	if err := deposit(iv, pc, vc.quoteAccount, vc.quoteVault, res.QuoteAmountDeposited); err != nil {
		return nil, err
	}
	if err := storeLpPosition(iv, pc.rest[0], position); err != nil {
		return nil, err
	}
	iv.log("added %d base and %d quote for %d lp shares", res.BaseAmountDeposited, res.QuoteAmountDeposited, res.LpSharesReceived)

	return &plasma.AddLiquidityEvent{
		LiquiditySnapshot:    liquiditySnapshot(pc.pool.Amm, position.Position, res.LpSharesVested),
		UserLpSharesReceived: res.LpSharesReceived,
		UserBaseDeposited:    res.BaseAmountDeposited,
		UserQuoteDeposited:   res.QuoteAmountDeposited,
	}, nil
}

func processRemoveLiquidity(iv *invocation, pc *poolContext, data []byte) (plasma.EventPayload, error) {
	position, err := loadActivePosition(iv, pc)
	if err != nil {
		return nil, err
	}
	vc, err := loadVaultContext(iv, pc, pc.rest[1:])
	if err != nil {
		return nil, err
	}
	var params plasma.RemoveLiquidityParams
	if err := plasma.DecodeParams(data, &params); err != nil {
		return nil, err
	}

	res, err := position.Position.RemoveLiquidity(liquiditySlot(iv), &pc.pool.Amm, params.LpShares)
	if err != nil {
		return nil, err
	}
	header := pc.pool.Header
	if err := withdraw(iv, pc, vc.baseVault, vc.baseAccount, header.Base, res.BaseAmountWithdrawn); err != nil {
		return nil, err
	}
	if err := withdraw(iv, pc, vc.quoteVault, vc.quoteAccount, header.Quote, res.QuoteAmountWithdrawn); err != nil {
		return nil, err
	}
	if err := storeLpPosition(iv, pc.rest[0], position); err != nil {
		return nil, err
	}
	iv.log("burned %d lp shares for %d base and %d quote", res.LpSharesBurned, res.BaseAmountWithdrawn, res.QuoteAmountWithdrawn)

	return &plasma.RemoveLiquidityEvent{
		LiquiditySnapshot:  liquiditySnapshot(pc.pool.Amm, position.Position, res.LpSharesVested),
		UserLpSharesBurned: res.LpSharesBurned,
		UserBaseWithdrawn:  res.BaseAmountWithdrawn,
		UserQuoteWithdrawn: res.QuoteAmountWithdrawn,
	}, nil
}

// processRenounceLiquidity locks the position's shares in the pool for good.
// The fees it keeps earning are either withdrawable or burned.
func processRenounceLiquidity(iv *invocation, pc *poolContext, data []byte) (plasma.EventPayload, error) {
	position, err := loadActivePosition(iv, pc)
	if err != nil {
		return nil, err
	}
	var params plasma.RenounceLiquidityParams
	if err := plasma.DecodeParams(data, &params); err != nil {
		return nil, err
	}
	if params.AllowFeeWithdrawal {
		position.Status = plasma.LpPositionStatusRenouncedWithFeeWithdrawal
	} else {
		position.Status = plasma.LpPositionStatusRenouncedWithBurnedFees
	}
	if err := storeLpPosition(iv, pc.rest[0], position); err != nil {
		return nil, err
	}
	return &plasma.RenounceLiquidityEvent{AllowFeeWithdrawal: params.AllowFeeWithdrawal}, nil
}
