package indexer

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// backfill fetches every transaction that mentions the program after until,
// oldest first. A zero until walks the whole history.
func (ix *Indexer) backfill(ctx context.Context, until solana.Signature) ([]Transaction, error) {
	var sigs []*rpc.TransactionSignature
	var before solana.Signature
	for {
		limit := ix.cfg.PageSize
		opts := &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Before:     before,
			Until:      until,
			Commitment: ix.cfg.Commitment,
		}
		var page []*rpc.TransactionSignature
		err := withRetry(ctx, ix.cfg.MaxRetries, ix.cfg.RetryBaseDelay, func(ctx context.Context) error {
			var err error
			page, err = ix.rpc.GetSignaturesForAddressWithOpts(ctx, ix.cfg.Program, opts)
			if err != nil {
				ix.logger.Warn("get signatures failed", zap.Stringer("before", before), zap.Error(err))
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("get signatures: %w", err)
		}
		sigs = append(sigs, page...)
		if len(page) < limit {
			break
		}
		before = page[len(page)-1].Signature
	}
	if len(sigs) == 0 {
		return nil, nil
	}
	ix.logger.Info("backfill", zap.Int("transactions", len(sigs)), zap.Stringer("until", until))

	// Signatures come newest first.
	txs := make([]Transaction, len(sigs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Concurrency)
	for i, sig := range sigs {
		pos := len(sigs) - 1 - i
		if sig.Err != nil {
			txs[pos] = Transaction{Signature: sig.Signature, Slot: sig.Slot, Failed: true}
			continue
		}
		g.Go(func() error {
			tx, err := ix.fetchTransaction(gctx, sig.Signature)
			if err != nil {
				return fmt.Errorf("get transaction %s: %w", sig.Signature, err)
			}
			txs[pos] = tx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (ix *Indexer) fetchTransaction(ctx context.Context, sig solana.Signature) (Transaction, error) {
	version := uint64(0)
	var got *rpc.GetTransactionResult
	err := withRetry(ctx, ix.cfg.MaxRetries, ix.cfg.RetryBaseDelay, func(ctx context.Context) error {
		var err error
		got, err = ix.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     ix.cfg.Commitment,
			MaxSupportedTransactionVersion: &version,
		})
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	tx := Transaction{Signature: sig, Slot: got.Slot}
	if got.BlockTime != nil {
		tx.BlockTime = int64(*got.BlockTime)
	}
	if got.Meta != nil {
		tx.Failed = got.Meta.Err != nil
		tx.Logs = got.Meta.LogMessages
	}
	return tx, nil
}
