package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	sendandconfirmtransaction "github.com/gagliardetto/solana-go/rpc/sendAndConfirmTransaction"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

var ErrTransactionDropped = errors.New("transaction not found (maybe dropped)")

// BuildTransaction merges instructions and sets a fresh blockhash.
func BuildTransaction(
	ctx context.Context,
	rpcClient *rpc.Client,
	instructions []solana.Instruction,
	payer solana.PublicKey,
) (*solana.Transaction, error) {
	latestBlockhash, err := GetLatestBlockhash(ctx, rpcClient)
	if err != nil {
		return nil, err
	}
	return solana.NewTransaction(MergeInstructions(instructions), latestBlockhash, solana.TransactionPayer(payer))
}

// SimulateTransaction runs the transaction without landing it and returns its logs.
func SimulateTransaction(
	ctx context.Context,
	rpcClient *rpc.Client,
	instructions []solana.Instruction,
	payer solana.PublicKey,
) ([]string, error) {
	tx, err := BuildTransaction(ctx, rpcClient, instructions, payer)
	if err != nil {
		return nil, err
	}
	out, err := rpcClient.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		ReplaceRecentBlockhash: true,
		Commitment:             Commitment,
	})
	if err != nil {
		return nil, err
	}
	if out.Value.Err != nil {
		return out.Value.Logs, fmt.Errorf("simulation failed: %v", out.Value.Err)
	}
	return out.Value.Logs, nil
}

// SendTransaction signs, sends and waits until the transaction is finalized.
func SendTransaction(
	ctx context.Context,
	rpcClient *rpc.Client,
	wsClient *ws.Client,
	instructions []solana.Instruction,
	payer solana.PublicKey,
	sign func(key solana.PublicKey) *solana.PrivateKey,
	timeout time.Duration,
) (solana.Signature, error) {
	tx, err := BuildTransaction(ctx, rpcClient, instructions, payer)
	if err != nil {
		return solana.Signature{}, err
	}

	if _, err = tx.Sign(sign); err != nil {
		return solana.Signature{}, err
	}

	sig, err := rpcClient.SendTransactionWithOpts(
		ctx,
		tx,
		rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: Commitment,
		},
	)
	if err != nil {
		return solana.Signature{}, err
	}

	confirmed, err := sendandconfirmtransaction.WaitForConfirmation(ctx, wsClient, sig, &timeout)
	if confirmed {
		if err != nil {
			return solana.Signature{}, fmt.Errorf("transaction confirmed but failed: %w", err)
		}
		return sig, nil
	}

	statusResp, err := rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("rpc GetSignatureStatuses error: %w", err)
	}
	status := statusResp.Value[0]
	if status == nil {
		return solana.Signature{}, ErrTransactionDropped
	}
	if status.Err != nil {
		return solana.Signature{}, fmt.Errorf("transaction confirmed but failed: %v", status.Err)
	}
	return sig, nil
}
