package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/gagliardetto/solana-go"
)

var (
	cursorKey  = []byte("cursor")
	poolPrefix = []byte("pool/")
	// poolEnd is the first key past every pool key.
	poolEnd = []byte("pool0")
)

// Checkpoint is the last transaction whose events reached the sink.
type Checkpoint struct {
	Signature solana.Signature `json:"signature"`
	Slot      uint64           `json:"slot"`
	UpdatedAt string           `json:"updated_at"`
}

// CheckpointStore keeps the checkpoint and the pool states it belongs to in
// a pebble database so both move together.
type CheckpointStore struct {
	db *pebble.DB
}

func OpenCheckpointStore(dir string) (*CheckpointStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	return &CheckpointStore{db: db}, nil
}

// Load returns the checkpoint and the pool states saved with it. ok is false
// when nothing was saved yet.
func (c *CheckpointStore) Load() (cp Checkpoint, pools []PoolState, ok bool, err error) {
	val, closer, err := c.db.Get(cursorKey)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Checkpoint{}, nil, false, nil
		}
		return Checkpoint{}, nil, false, fmt.Errorf("read checkpoint: %w", err)
	}
	err = json.Unmarshal(val, &cp)
	closer.Close()
	if err != nil {
		return Checkpoint{}, nil, false, fmt.Errorf("parse checkpoint: %w", err)
	}

	iter, err := c.db.NewIter(&pebble.IterOptions{LowerBound: poolPrefix, UpperBound: poolEnd})
	if err != nil {
		return Checkpoint{}, nil, false, err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		var state PoolState
		if err := json.Unmarshal(iter.Value(), &state); err != nil {
			return Checkpoint{}, nil, false, fmt.Errorf("parse pool state %s: %w", iter.Key(), err)
		}
		pools = append(pools, state)
	}
	if err := iter.Error(); err != nil {
		return Checkpoint{}, nil, false, err
	}
	return cp, pools, true, nil
}

// Save writes the checkpoint and pools in one synced batch.
func (c *CheckpointStore) Save(cp Checkpoint, pools []PoolState) error {
	if cp.UpdatedAt == "" {
		cp.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	batch := c.db.NewBatch()
	defer batch.Close()

	for _, state := range pools {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshal pool state: %w", err)
		}
		key := append(append([]byte{}, poolPrefix...), state.Pool.String()...)
		if err := batch.Set(key, data, nil); err != nil {
			return err
		}
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := batch.Set(cursorKey, data, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (c *CheckpointStore) Close() error {
	return c.db.Close()
}
