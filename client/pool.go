package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"github.com/krazyTry/plasma-go/decimal_math"
	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	solanago "github.com/krazyTry/plasma-go/solana"
)

// Pool is a decoded pool account and its address.
type Pool struct {
	*plasma.PoolAccount
	Address solana.PublicKey
}

// Price is the live quote price of one whole base token.
func (p *Pool) Price() decimal.Decimal {
	return decimal_math.Price(
		p.Amm.BaseReserves,
		p.Amm.QuoteReserves,
		uint8(p.Header.Base.Decimals),
		uint8(p.Header.Quote.Decimals),
	)
}

// SnapshotPrice is the price swaps are anchored to in the current window.
func (p *Pool) SnapshotPrice() decimal.Decimal {
	return decimal_math.Price(
		p.Amm.BaseReservesSnapshot,
		p.Amm.QuoteReservesSnapshot,
		uint8(p.Header.Base.Decimals),
		uint8(p.Header.Quote.Decimals),
	)
}

// Vaults returns the trader's accounts alongside the pool vaults.
func (p *Pool) Vaults(baseAccount, quoteAccount solana.PublicKey) plasma.VaultAccounts {
	return plasma.VaultAccounts{
		BaseAccount:  baseAccount,
		QuoteAccount: quoteAccount,
		BaseVault:    p.Header.Base.Vault,
		QuoteVault:   p.Header.Quote.Vault,
	}
}

func (c *Client) GetPool(ctx context.Context, address solana.PublicKey) (*Pool, error) {
	return GetPool(ctx, c.rpcClient, address)
}

func GetPool(
	ctx context.Context,
	rpcClient *rpc.Client,
	address solana.PublicKey,
) (*Pool, error) {
	out, err := solanago.GetAccountInfo(ctx, rpcClient, address)
	if err != nil {
		return nil, err
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, address)
	}
	if !out.Value.Owner.Equals(plasma.ProgramID) {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrNotPlasmaAccount, address, out.Value.Owner)
	}
	pool, err := plasma.DecodePoolAccount(out.Value.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("decode pool %s: %w", address, err)
	}
	return &Pool{pool, address}, nil
}

func (c *Client) GetPools(ctx context.Context) ([]*Pool, error) {
	return GetPools(ctx, c.rpcClient)
}

// GetPools scans every initialized pool of the program.
func GetPools(
	ctx context.Context,
	rpcClient *rpc.Client,
) ([]*Pool, error) {
	opt := solanago.GenProgramAccountFilter(plasma.PoolAccountDiscriminator[:], solana.PublicKey{}, 0)

	outs, err := rpcClient.GetProgramAccountsWithOpts(ctx, plasma.ProgramID, opt)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	list := make([]*Pool, 0, len(outs))
	for _, out := range outs {
		pool, err := plasma.DecodePoolAccount(out.Account.Data.GetBinary())
		if err != nil {
			return nil, fmt.Errorf("decode pool %s: %w", out.Pubkey, err)
		}
		list = append(list, &Pool{pool, out.Pubkey})
	}
	return list, nil
}

// VaultBalances reads the token balances held by the pool vaults.
func (c *Client) VaultBalances(ctx context.Context, pool *Pool) (base, quote uint64, err error) {
	vaults := []solana.PublicKey{pool.Header.Base.Vault, pool.Header.Quote.Vault}
	outs, err := solanago.GetMultipleAccountInfo(ctx, c.rpcClient, vaults)
	if err != nil {
		return 0, 0, err
	}
	if len(outs.Value) != len(vaults) {
		return 0, 0, fmt.Errorf("vaults of %s: got %d accounts", pool.Address, len(outs.Value))
	}
	amounts := make([]uint64, len(vaults))
	for i, out := range outs.Value {
		if out == nil {
			return 0, 0, fmt.Errorf("vault %s not found", vaults[i])
		}
		account, err := solanago.DecodeTokenAccount(vaults[i], out.Data.GetBinary())
		if err != nil {
			return 0, 0, err
		}
		amounts[i] = account.Amount
	}
	return amounts[0], amounts[1], nil
}

// UnclaimedFees is the quote the vault holds beyond the reserves, which
// belongs to LPs and protocol recipients that have not withdrawn yet.
func (c *Client) UnclaimedFees(ctx context.Context, pool *Pool) (uint64, error) {
	_, quote, err := c.VaultBalances(ctx, pool)
	if err != nil {
		return 0, err
	}
	if quote < pool.Amm.QuoteReserves {
		return 0, fmt.Errorf("quote vault of %s holds %d, below reserves %d", pool.Address, quote, pool.Amm.QuoteReserves)
	}
	return quote - pool.Amm.QuoteReserves, nil
}
