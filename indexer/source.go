package indexer

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// Transaction is what the indexer needs of a confirmed transaction.
type Transaction struct {
	Signature solana.Signature
	Slot      uint64
	BlockTime int64
	Failed    bool
	Logs      []string
}

// Source delivers transactions that mention the program as they land.
type Source interface {
	// Next blocks until a transaction is available or ctx is done.
	Next(ctx context.Context) (Transaction, error)
	Close() error
}

// LogSource follows the program through a logsSubscribe websocket subscription.
type LogSource struct {
	sub *ws.LogSubscription
}

func NewLogSource(wsClient *ws.Client, program solana.PublicKey, commitment rpc.CommitmentType) (*LogSource, error) {
	sub, err := wsClient.LogsSubscribeMentions(program, commitment)
	if err != nil {
		return nil, err
	}
	return &LogSource{sub: sub}, nil
}

func (s *LogSource) Next(ctx context.Context) (Transaction, error) {
	got, err := s.sub.Recv(ctx)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		Signature: got.Value.Signature,
		Slot:      got.Context.Slot,
		Failed:    got.Value.Err != nil,
		Logs:      got.Value.Logs,
	}, nil
}

func (s *LogSource) Close() error {
	s.sub.Unsubscribe()
	return nil
}
