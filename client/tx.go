package client

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/krazyTry/plasma-go/amm"
	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	solanago "github.com/krazyTry/plasma-go/solana"
)

// prepareVaults resolves the owner's base and quote ATAs, appending their
// creation to instructions when missing.
func prepareVaults(
	ctx context.Context,
	rpcClient *rpc.Client,
	payer solana.PublicKey,
	owner solana.PublicKey,
	pool *Pool,
	instructions *[]solana.Instruction,
) (plasma.VaultAccounts, error) {
	baseAccount, err := solanago.PrepareTokenATA(ctx, rpcClient, owner, pool.Header.Base.Mint, payer, instructions)
	if err != nil {
		return plasma.VaultAccounts{}, err
	}
	quoteAccount, err := solanago.PrepareTokenATA(ctx, rpcClient, owner, pool.Header.Quote.Mint, payer, instructions)
	if err != nil {
		return plasma.VaultAccounts{}, err
	}
	return pool.Vaults(baseAccount, quoteAccount), nil
}

// CreatePoolInstruction allocates the pool account and initializes it. The
// pool account must sign the transaction.
func CreatePoolInstruction(
	ctx context.Context,
	rpcClient *rpc.Client,
	payer solana.PublicKey,
	pool solana.PublicKey,
	baseMint solana.PublicKey,
	quoteMint solana.PublicKey,
	params plasma.InitializePoolParams,
) ([]solana.Instruction, error) {
	rent, err := rpcClient.GetMinimumBalanceForRentExemption(ctx, plasma.PoolAccountSize, solanago.Commitment)
	if err != nil {
		return nil, err
	}
	createIx := system.NewCreateAccountInstruction(
		rent,
		plasma.PoolAccountSize,
		plasma.ProgramID,
		payer,
		pool,
	).Build()

	initIx, err := plasma.NewInitializePoolInstruction(params, pool, payer, baseMint, quoteMint)
	if err != nil {
		return nil, err
	}
	return []solana.Instruction{createIx, initIx}, nil
}

// AddLiquidityInstruction opens the owner's LP position first when it does not exist yet.
func AddLiquidityInstruction(
	ctx context.Context,
	rpcClient *rpc.Client,
	payer solana.PublicKey,
	owner solana.PublicKey,
	pool *Pool,
	params plasma.AddLiquidityParams,
) ([]solana.Instruction, error) {
	var instructions []solana.Instruction

	vaults, err := prepareVaults(ctx, rpcClient, payer, owner, pool, &instructions)
	if err != nil {
		return nil, err
	}

	lpPosition, _, err := plasma.DeriveLpPositionPDA(pool.Address, owner)
	if err != nil {
		return nil, err
	}
	exists, err := solanago.GetAccountInfo(ctx, rpcClient, lpPosition)
	if err != nil {
		return nil, err
	}
	if exists == nil {
		initIx, err := plasma.NewInitializeLpPositionInstruction(pool.Address, payer, owner)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, initIx)
	}

	if pool.Amm.TotalLpShares == 0 && params.InitialLpShares == nil {
		shares := amm.GeometricMeanShares(params.DesiredBaseAmountIn, params.DesiredQuoteAmountIn)
		params.InitialLpShares = &shares
	}
	addIx, err := plasma.NewAddLiquidityInstruction(params, pool.Address, owner, vaults)
	if err != nil {
		return nil, err
	}
	return append(instructions, addIx), nil
}

func RemoveLiquidityInstruction(
	ctx context.Context,
	rpcClient *rpc.Client,
	payer solana.PublicKey,
	owner solana.PublicKey,
	pool *Pool,
	lpShares uint64,
) ([]solana.Instruction, error) {
	var instructions []solana.Instruction

	vaults, err := prepareVaults(ctx, rpcClient, payer, owner, pool, &instructions)
	if err != nil {
		return nil, err
	}
	removeIx, err := plasma.NewRemoveLiquidityInstruction(plasma.RemoveLiquidityParams{LpShares: lpShares}, pool.Address, owner, vaults)
	if err != nil {
		return nil, err
	}
	return append(instructions, removeIx), nil
}

func SwapInstruction(
	ctx context.Context,
	rpcClient *rpc.Client,
	payer solana.PublicKey,
	owner solana.PublicKey,
	pool *Pool,
	side amm.Side,
	swapType amm.SwapType,
) ([]solana.Instruction, error) {
	switch swapType.Kind {
	case amm.ExactIn:
		if swapType.AmountIn == 0 {
			return nil, fmt.Errorf("amountIn must be greater than 0")
		}
	case amm.ExactOut:
		if swapType.AmountOut == 0 {
			return nil, fmt.Errorf("amountOut must be greater than 0")
		}
	}

	var instructions []solana.Instruction

	vaults, err := prepareVaults(ctx, rpcClient, payer, owner, pool, &instructions)
	if err != nil {
		return nil, err
	}
	swapIx, err := plasma.NewSwapInstruction(plasma.SwapParams{Side: side, SwapType: swapType}, pool.Address, owner, vaults)
	if err != nil {
		return nil, err
	}
	return append(instructions, swapIx), nil
}

func WithdrawLpFeesInstruction(
	ctx context.Context,
	rpcClient *rpc.Client,
	payer solana.PublicKey,
	owner solana.PublicKey,
	pool *Pool,
) ([]solana.Instruction, error) {
	var instructions []solana.Instruction

	quoteAccount, err := solanago.PrepareTokenATA(ctx, rpcClient, owner, pool.Header.Quote.Mint, payer, &instructions)
	if err != nil {
		return nil, err
	}
	ix, err := plasma.NewWithdrawLpFeesInstruction(pool.Address, owner, owner, quoteAccount, pool.Header.Quote.Vault)
	if err != nil {
		return nil, err
	}
	return append(instructions, ix), nil
}

func WithdrawProtocolFeesInstruction(
	ctx context.Context,
	rpcClient *rpc.Client,
	payer solana.PublicKey,
	recipient solana.PublicKey,
	pool *Pool,
) ([]solana.Instruction, error) {
	if pool.Header.FeeRecipients.Index(recipient) < 0 {
		return nil, fmt.Errorf("%s is not a fee recipient of %s", recipient, pool.Address)
	}

	var instructions []solana.Instruction

	quoteAccount, err := solanago.PrepareTokenATA(ctx, rpcClient, recipient, pool.Header.Quote.Mint, payer, &instructions)
	if err != nil {
		return nil, err
	}
	ix, err := plasma.NewWithdrawProtocolFeesInstruction(pool.Address, recipient, quoteAccount, pool.Header.Quote.Vault)
	if err != nil {
		return nil, err
	}
	return append(instructions, ix), nil
}

// send signs with wallets; the first wallet pays.
func (c *Client) send(ctx context.Context, op string, instructions []solana.Instruction, wallets ...*solana.Wallet) (string, error) {
	if c.wsClient == nil {
		return "", ErrNoWSClient
	}
	payer := wallets[0].PublicKey()
	sig, err := solanago.SendTransaction(ctx,
		c.rpcClient,
		c.wsClient,
		instructions,
		payer,
		func(key solana.PublicKey) *solana.PrivateKey {
			for _, w := range wallets {
				if key.Equals(w.PublicKey()) {
					return &w.PrivateKey
				}
			}
			return nil
		},
		c.confirmTimeout,
	)
	if err != nil {
		c.logger.Warn("transaction failed", zap.String("op", op), zap.Stringer("payer", payer), zap.Error(err))
		return "", err
	}
	c.logger.Info("transaction confirmed", zap.String("op", op), zap.Stringer("signature", sig))
	return sig.String(), nil
}

// CreatePool creates a pool at a fresh address and returns the signature and the address.
func (c *Client) CreatePool(
	ctx context.Context,
	payer *solana.Wallet,
	baseMint solana.PublicKey,
	quoteMint solana.PublicKey,
	params plasma.InitializePoolParams,
) (string, solana.PublicKey, error) {
	poolWallet := solana.NewWallet()
	instructions, err := CreatePoolInstruction(ctx, c.rpcClient, payer.PublicKey(), poolWallet.PublicKey(), baseMint, quoteMint, params)
	if err != nil {
		return "", solana.PublicKey{}, err
	}
	sig, err := c.send(ctx, "create_pool", instructions, payer, poolWallet)
	if err != nil {
		return "", solana.PublicKey{}, err
	}
	return sig, poolWallet.PublicKey(), nil
}

func (c *Client) AddLiquidity(ctx context.Context, owner *solana.Wallet, pool *Pool, params plasma.AddLiquidityParams) (string, error) {
	instructions, err := AddLiquidityInstruction(ctx, c.rpcClient, owner.PublicKey(), owner.PublicKey(), pool, params)
	if err != nil {
		return "", err
	}
	return c.send(ctx, "add_liquidity", instructions, owner)
}

func (c *Client) RemoveLiquidity(ctx context.Context, owner *solana.Wallet, pool *Pool, lpShares uint64) (string, error) {
	instructions, err := RemoveLiquidityInstruction(ctx, c.rpcClient, owner.PublicKey(), owner.PublicKey(), pool, lpShares)
	if err != nil {
		return "", err
	}
	return c.send(ctx, "remove_liquidity", instructions, owner)
}

func (c *Client) RenounceLiquidity(ctx context.Context, owner *solana.Wallet, pool *Pool, allowFeeWithdrawal bool) (string, error) {
	ix, err := plasma.NewRenounceLiquidityInstruction(plasma.RenounceLiquidityParams{AllowFeeWithdrawal: allowFeeWithdrawal}, pool.Address, owner.PublicKey())
	if err != nil {
		return "", err
	}
	return c.send(ctx, "renounce_liquidity", []solana.Instruction{ix}, owner)
}

func (c *Client) Swap(ctx context.Context, owner *solana.Wallet, pool *Pool, side amm.Side, swapType amm.SwapType) (string, error) {
	instructions, err := SwapInstruction(ctx, c.rpcClient, owner.PublicKey(), owner.PublicKey(), pool, side, swapType)
	if err != nil {
		return "", err
	}
	return c.send(ctx, "swap", instructions, owner)
}

func (c *Client) WithdrawLpFees(ctx context.Context, owner *solana.Wallet, pool *Pool) (string, error) {
	instructions, err := WithdrawLpFeesInstruction(ctx, c.rpcClient, owner.PublicKey(), owner.PublicKey(), pool)
	if err != nil {
		return "", err
	}
	return c.send(ctx, "withdraw_lp_fees", instructions, owner)
}

func (c *Client) WithdrawProtocolFees(ctx context.Context, recipient *solana.Wallet, pool *Pool) (string, error) {
	instructions, err := WithdrawProtocolFeesInstruction(ctx, c.rpcClient, recipient.PublicKey(), recipient.PublicKey(), pool)
	if err != nil {
		return "", err
	}
	return c.send(ctx, "withdraw_protocol_fees", instructions, recipient)
}

// Balances returns the owner's base and quote token balances in pool.
func (c *Client) Balances(ctx context.Context, owner solana.PublicKey, pool *Pool) (base, quote uint64, err error) {
	balances, err := solanago.GetTokenBalances(ctx, c.rpcClient, owner)
	if err != nil {
		return 0, 0, err
	}
	return balances[pool.Header.Base.Mint], balances[pool.Header.Quote.Mint], nil
}
