package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	plasma "github.com/krazyTry/plasma-go/gen/plasma"
)

// EventRecord is one decoded event with the transaction it came from.
type EventRecord struct {
	Signature  solana.Signature    `json:"signature"`
	Index      int                 `json:"index"`
	Slot       uint64              `json:"slot"`
	Timestamp  int64               `json:"timestamp"`
	Pool       solana.PublicKey    `json:"pool"`
	Signer     solana.PublicKey    `json:"signer"`
	Sequence   uint64              `json:"sequence"`
	Kind       string              `json:"kind"`
	Payload    plasma.EventPayload `json:"payload"`
	IngestedAt time.Time           `json:"ingested_at"`
}

func newEventRecord(tx Transaction, index int, event plasma.Event, ingestedAt time.Time) EventRecord {
	return EventRecord{
		Signature:  tx.Signature,
		Index:      index,
		Slot:       event.Header.Slot,
		Timestamp:  event.Header.Timestamp,
		Pool:       event.Header.Pool,
		Signer:     event.Header.Signer,
		Sequence:   event.Header.SequenceNumber,
		Kind:       event.Kind().String(),
		Payload:    event.Payload,
		IngestedAt: ingestedAt,
	}
}

// Batch is what the indexer hands a sink after each group of transactions:
// the new events and the latest state of every pool they touched.
type Batch struct {
	Events []EventRecord
	Pools  []PoolState
}

// Sink persists indexed batches. A batch written before a crash that beat
// its checkpoint is written again on restart.
type Sink interface {
	Write(ctx context.Context, batch Batch) error
	Close() error
}

// JSONLSink appends events to a JSON lines file. Pool states are not written.
type JSONLSink struct {
	path string
	mu   sync.Mutex
}

func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{path: path}
}

func (s *JSONLSink) Write(_ context.Context, batch Batch) error {
	if len(batch.Events) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range batch.Events {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func (s *JSONLSink) Close() error { return nil }

// MultiSink writes every batch to each sink in order.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, batch Batch) error {
	for _, s := range m {
		if err := s.Write(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
