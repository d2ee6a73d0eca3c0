package solana

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/tidwall/gjson"
)

func CurrentSlot(ctx context.Context, rpcClient *rpc.Client) (uint64, error) {
	slot, err := rpcClient.GetSlot(ctx, Commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

func GetLatestBlockhash(ctx context.Context, rpcClient *rpc.Client) (solana.Hash, error) {
	recent, err := rpcClient.GetLatestBlockhash(ctx, Commitment)
	if err != nil {
		return solana.Hash{}, err
	}
	return recent.Value.Blockhash, nil
}

// GenProgramAccountFilter matches accounts that start with discriminator and,
// when key is set, carry key at offset.
func GenProgramAccountFilter(discriminator []byte, key solana.PublicKey, offset uint64) *rpc.GetProgramAccountsOpts {
	opt := &rpc.GetProgramAccountsOpts{
		Commitment: Commitment,
		Encoding:   solana.EncodingBase64,
		Filters: []rpc.RPCFilter{
			{
				Memcmp: &rpc.RPCFilterMemcmp{
					Offset: 0,
					Bytes:  discriminator,
				},
			},
		},
	}
	if key.IsZero() {
		return opt
	}

	opt.Filters = append(opt.Filters, rpc.RPCFilter{
		Memcmp: &rpc.RPCFilterMemcmp{
			Offset: offset,
			Bytes:  key[:],
		},
	})
	return opt
}

// GetAccountInfo returns nil, nil when the account does not exist.
func GetAccountInfo(ctx context.Context, rpcClient *rpc.Client, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	out, err := rpcClient.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: Commitment,
		Encoding:   solana.EncodingBase64,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	return out, err
}

func GetMultipleAccountInfo(ctx context.Context, rpcClient *rpc.Client, accounts []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	return rpcClient.GetMultipleAccountsWithOpts(ctx, accounts, &rpc.GetMultipleAccountsOpts{Commitment: Commitment, Encoding: solana.EncodingBase64})
}

// GetMultipleToken fetches mints. Missing mints are left nil.
func GetMultipleToken(ctx context.Context, rpcClient *rpc.Client, tokens ...solana.PublicKey) ([]*Token, error) {
	outs, err := GetMultipleAccountInfo(ctx, rpcClient, tokens)
	if err != nil {
		return nil, err
	}
	list := make([]*Token, len(outs.Value))
	for i, out := range outs.Value {
		if out == nil {
			continue
		}

		token, err := DecodeMint(tokens[i], out.Data.GetBinary())
		if err != nil {
			return nil, err
		}
		token.Owner = out.Owner

		list[i] = token
	}
	return list, nil
}

// GetTokenBalances returns the SPL balances of owner keyed by mint.
func GetTokenBalances(ctx context.Context, rpcClient *rpc.Client, owner solana.PublicKey) (map[solana.PublicKey]uint64, error) {
	resp, err := rpcClient.GetTokenAccountsByOwner(ctx, owner, &rpc.GetTokenAccountsConfig{
		ProgramId: &solana.TokenProgramID,
	}, &rpc.GetTokenAccountsOpts{
		Encoding:   solana.EncodingJSONParsed,
		Commitment: Commitment,
	})
	if err != nil {
		return nil, err
	}

	balances := make(map[solana.PublicKey]uint64)
	for _, v := range resp.Value {
		raw := v.Account.Data.GetRawJSON()
		mint, err := solana.PublicKeyFromBase58(gjson.GetBytes(raw, "parsed.info.mint").String())
		if err != nil {
			continue
		}
		balances[mint] += gjson.GetBytes(raw, "parsed.info.tokenAmount.amount").Uint()
	}
	return balances, nil
}
