package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/krazyTry/plasma-go/amm"
	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	solanago "github.com/krazyTry/plasma-go/solana"
)

// LpPosition is a decoded LP position account and its address.
type LpPosition struct {
	*plasma.LpPositionAccount
	Address solana.PublicKey
}

// PositionSummary is what a position could claim if it settled at Slot.
type PositionSummary struct {
	Slot                 uint64
	LpShares             uint64
	WithdrawableLpShares uint64
	LockedLpShares       uint64
	WithdrawableBase     uint64
	WithdrawableQuote    uint64
	// ClaimableFees is zero for positions renounced with burned fees.
	ClaimableFees uint64
}

// Summarize settles a copy of the position against pool at slot.
func Summarize(pool *plasma.PoolAccount, position *plasma.LpPositionAccount, slot uint64) (PositionSummary, error) {
	state := pool.Amm
	pos := position.Position
	if _, _, err := pos.Settle(amm.WindowStart(slot), &state); err != nil {
		return PositionSummary{}, err
	}
	base, quote := pos.WithdrawableAmounts(state)
	summary := PositionSummary{
		Slot:                 slot,
		LpShares:             pos.LpShares,
		WithdrawableLpShares: pos.WithdrawableLpShares,
		LockedLpShares:       pos.LpShares - pos.WithdrawableLpShares,
		WithdrawableBase:     base,
		WithdrawableQuote:    quote,
	}
	if position.Status.CanWithdrawFees() {
		summary.ClaimableFees = pos.UncollectedFees
	}
	return summary, nil
}

func (c *Client) GetLpPosition(ctx context.Context, pool, owner solana.PublicKey) (*LpPosition, error) {
	return GetLpPosition(ctx, c.rpcClient, pool, owner)
}

func GetLpPosition(
	ctx context.Context,
	rpcClient *rpc.Client,
	pool solana.PublicKey,
	owner solana.PublicKey,
) (*LpPosition, error) {
	address, _, err := plasma.DeriveLpPositionPDA(pool, owner)
	if err != nil {
		return nil, err
	}
	out, err := solanago.GetAccountInfo(ctx, rpcClient, address)
	if err != nil {
		return nil, err
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrLpPositionNotFound, address)
	}
	if !out.Value.Owner.Equals(plasma.ProgramID) {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrNotPlasmaAccount, address, out.Value.Owner)
	}
	position, err := plasma.DecodeLpPositionAccount(out.Value.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("decode lp position %s: %w", address, err)
	}
	return &LpPosition{position, address}, nil
}

func (c *Client) GetLpPositionsByPool(ctx context.Context, pool solana.PublicKey) ([]*LpPosition, error) {
	return getLpPositions(ctx, c.rpcClient, pool, plasma.LpPositionPoolOffset)
}

func (c *Client) GetLpPositionsByOwner(ctx context.Context, owner solana.PublicKey) ([]*LpPosition, error) {
	return getLpPositions(ctx, c.rpcClient, owner, plasma.LpPositionAuthorityOffset)
}

func getLpPositions(
	ctx context.Context,
	rpcClient *rpc.Client,
	key solana.PublicKey,
	offset uint64,
) ([]*LpPosition, error) {
	opt := solanago.GenProgramAccountFilter(plasma.LpPositionAccountDiscriminator[:], key, offset)

	outs, err := rpcClient.GetProgramAccountsWithOpts(ctx, plasma.ProgramID, opt)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	list := make([]*LpPosition, 0, len(outs))
	for _, out := range outs {
		position, err := plasma.DecodeLpPositionAccount(out.Account.Data.GetBinary())
		if err != nil {
			return nil, fmt.Errorf("decode lp position %s: %w", out.Pubkey, err)
		}
		list = append(list, &LpPosition{position, out.Pubkey})
	}
	return list, nil
}

// SummarizePool settles every position of pool at the current slot.
func (c *Client) SummarizePool(ctx context.Context, pool *Pool) (map[solana.PublicKey]PositionSummary, error) {
	slot, err := solanago.CurrentSlot(ctx, c.rpcClient)
	if err != nil {
		return nil, err
	}
	positions, err := c.GetLpPositionsByPool(ctx, pool.Address)
	if err != nil {
		return nil, err
	}
	summaries := make(map[solana.PublicKey]PositionSummary, len(positions))
	for _, position := range positions {
		summary, err := Summarize(pool.PoolAccount, position.LpPositionAccount, slot)
		if err != nil {
			return nil, fmt.Errorf("lp position %s: %w", position.Address, err)
		}
		summaries[position.Authority] = summary
	}
	return summaries, nil
}
