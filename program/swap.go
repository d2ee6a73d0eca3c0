package program

import (
	"encoding/binary"
	"fmt"

	"github.com/krazyTry/plasma-go/amm"
	plasma "github.com/krazyTry/plasma-go/gen/plasma"
)

func processSwap(iv *invocation, pc *poolContext, data []byte) (plasma.EventPayload, error) {
	vc, err := loadVaultContext(iv, pc, pc.rest)
	if err != nil {
		return nil, err
	}
	var params plasma.SwapParams
	if err := plasma.DecodeParams(data, &params); err != nil {
		return nil, err
	}
	iv.log("%s %s", params.Side, params.SwapType.Kind)

	payer := vc.quote
	if params.Side == amm.Sell {
		payer = vc.base
	}
	if params.SwapType.Kind == amm.ExactIn && params.SwapType.AmountIn > payer.Amount {
		return nil, fmt.Errorf("%w: %d > %d", ErrInsufficientFunds, params.SwapType.AmountIn, payer.Amount)
	}

	pool := &pc.pool.Amm
	preBase, preQuote := pool.BaseReserves, pool.QuoteReserves
	preFees := pool.TotalFees()

	result, err := pool.Swap(iv.tx.slot, params.Side, params.SwapType)
	if err != nil {
		return nil, err
	}
	if result.DepositAmount() > payer.Amount {
		return nil, fmt.Errorf("%w: %d > %d", ErrInsufficientFunds, result.DepositAmount(), payer.Amount)
	}
	if pool.FeeInBps > 0 && !result.IsEmpty() && (result.FeeInQuote == 0 || pool.TotalFees().Cmp(preFees) <= 0) {
		return nil, fmt.Errorf("%w: %d base and %d quote", ErrFeeNotCharged, result.BaseAmountToTransfer, result.QuoteAmountToTransfer)
	}
	if err := UpdateProtocolFeeRecipients(&pc.pool.Header.FeeRecipients, pool.CumulativeQuoteProtocolFees); err != nil {
		return nil, err
	}

	header := pc.pool.Header
	if params.Side == amm.Buy {
		if err := deposit(iv, pc, vc.quoteAccount, vc.quoteVault, result.QuoteAmountToTransfer); err != nil {
			return nil, err
		}
		if err := withdraw(iv, pc, vc.baseVault, vc.baseAccount, header.Base, result.BaseAmountToTransfer); err != nil {
			return nil, err
		}
		iv.log("[Buy] Swapped %d quote for %d base", result.QuoteAmountToTransfer, result.BaseAmountToTransfer)
	} else {
		if err := deposit(iv, pc, vc.baseAccount, vc.baseVault, result.BaseAmountToTransfer); err != nil {
			return nil, err
		}
		if err := withdraw(iv, pc, vc.quoteVault, vc.quoteAccount, header.Quote, result.QuoteAmountToTransfer); err != nil {
			return nil, err
		}
		iv.log("[Sell] Swapped %d base for %d quote", result.BaseAmountToTransfer, result.QuoteAmountToTransfer)
	}
	iv.setReturnData(SwapReturnData(result))

	return &plasma.SwapEvent{
		PreBaseLiquidity:       preBase,
		PreQuoteLiquidity:      preQuote,
		PostBaseLiquidity:      pool.BaseReserves,
		PostQuoteLiquidity:     pool.QuoteReserves,
		SnapshotBaseLiquidity:  pool.BaseReservesSnapshot,
		SnapshotQuoteLiquidity: pool.QuoteReservesSnapshot,
		SwapResult:             result,
	}, nil
}

// SwapReturnData is the deposit amount followed by the withdraw amount, both little endian.
func SwapReturnData(result amm.SwapResult) []byte {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data[:8], result.DepositAmount())
	binary.LittleEndian.PutUint64(data[8:], result.WithdrawAmount())
	return data
}

// DecodeSwapReturnData splits swap return data into the deposited and withdrawn amounts.
func DecodeSwapReturnData(data []byte) (deposited, withdrawn uint64, err error) {
	if len(data) != 16 {
		return 0, 0, fmt.Errorf("%w: swap return data has %d bytes", ErrInvalidArgument, len(data))
	}
	return binary.LittleEndian.Uint64(data[:8]), binary.LittleEndian.Uint64(data[8:]), nil
}
