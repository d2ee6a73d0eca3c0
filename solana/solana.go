// Package solana holds the RPC and SPL token helpers shared by the client,
// the indexer and the in-memory runtime.
package solana

import "github.com/gagliardetto/solana-go/rpc"

// Commitment is used by every helper in this package that reads chain state.
var Commitment = rpc.CommitmentConfirmed
