package amm

import (
	"encoding/hex"
	"testing"

	binary "github.com/gagliardetto/binary"
	"github.com/stretchr/testify/require"
)

func TestAmmLayout(t *testing.T) {
	a := testPool(t)
	_, err := a.Swap(4, Buy, NewExactIn(10_000, 0))
	require.NoError(t, err)

	data, err := binary.MarshalBorsh(&a)
	require.NoError(t, err)
	require.Len(t, data, AmmSize)

	// fee_in_bps u32 | protocol pct u32 | vesting window u64
	require.Equal(t, "1e00000014000000"+"0000000000000000", hex.EncodeToString(data[:16]))
	// total lp shares after the reward factor
	require.Equal(t, "80841e0000000000", hex.EncodeToString(data[32:40]))

	var decoded Amm
	require.NoError(t, binary.UnmarshalBorsh(&decoded, data))
	require.Equal(t, a, decoded)
}

func TestLpPositionLayout(t *testing.T) {
	pos := LpPosition{
		RewardFactorSnapshot: mustFraction(t, 3, 2),
		LpShares:             7,
		WithdrawableLpShares: 5,
		UncollectedFees:      11,
		CollectedFees:        13,
		PendingSharesToVest:  PendingSharesToVest{DepositSlot: 17, LpSharesToVest: 2},
	}
	data, err := binary.MarshalBorsh(&pos)
	require.NoError(t, err)
	require.Len(t, data, LpPositionSize)
	// 1.5 in I80F48 is 3 << 47
	require.Equal(t, "0000000000800100"+"0000000000000000", hex.EncodeToString(data[:16]))

	var decoded LpPosition
	require.NoError(t, binary.UnmarshalBorsh(&decoded, data))
	require.Equal(t, pos, decoded)
}

func TestSwapResultLayout(t *testing.T) {
	r := SwapResult{Side: Sell, BaseAmountToTransfer: 1, QuoteAmountToTransfer: 2, FeeInQuote: 3}
	data, err := binary.MarshalBorsh(&r)
	require.NoError(t, err)
	require.Len(t, data, SwapResultSize)
	require.Equal(t, byte(1), data[0])

	var decoded SwapResult
	require.NoError(t, binary.UnmarshalBorsh(&decoded, data))
	require.Equal(t, r, decoded)

	data[0] = 2
	require.ErrorIs(t, binary.UnmarshalBorsh(&decoded, data), ErrInvalidSide)
}

func TestSwapTypeEncoding(t *testing.T) {
	data, err := binary.MarshalBorsh(NewExactOut(5, 9))
	require.NoError(t, err)
	require.Equal(t, "01"+"0500000000000000"+"0900000000000000", hex.EncodeToString(data))

	var decoded SwapType
	require.NoError(t, binary.UnmarshalBorsh(&decoded, data))
	require.Equal(t, NewExactOut(5, 9), decoded)

	require.ErrorIs(t, binary.UnmarshalBorsh(&decoded, []byte{3}), ErrInvalidSwapType)
}
