package plasma

import (
	"github.com/krazyTry/plasma-go/client"
	"github.com/krazyTry/plasma-go/indexer"
	"github.com/krazyTry/plasma-go/program"
)

// NewClient creates a client for pools on a Solana cluster.
//
// Example:
//
// c, _ := NewClient(rpc.New(rpc.MainNetBeta_RPC), client.WithWSClient(wsClient))
//
// quote, _ := c.Quote(ctx, poolAddress, amm.Buy, amm.NewExactIn(1_000_000, 0))
//
// c.Swap(ctx, owner, pool, amm.Buy, amm.NewExactIn(1_000_000, client.MinAmountOut(quote.AmountOut, 50)))
var NewClient = client.NewClient

// NewLedger creates an in-memory ledger starting at slot.
var NewLedger = program.NewLedger

// NewRuntime executes Plasma transactions against a ledger.
//
// Example:
//
// ledger := NewLedger(1000, time.Now().Unix())
//
// receipt, err := NewRuntime(ledger).Send(ctx, []solana.PublicKey{owner}, swapInstruction)
var NewRuntime = program.NewRuntime

// NewRPCServer serves a runtime over the Solana JSON-RPC methods the client uses.
var NewRPCServer = program.NewRPCServer

// NewIndexer rebuilds pool state from the program's event logs.
var NewIndexer = indexer.New
