// Package postgres stores indexed Plasma events and pool states in Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krazyTry/plasma-go/indexer"
)

const schema = `
CREATE TABLE IF NOT EXISTS plasma_events (
	pool        TEXT        NOT NULL,
	sequence    BIGINT      NOT NULL,
	signature   TEXT        NOT NULL,
	event_index INTEGER     NOT NULL,
	slot        BIGINT      NOT NULL,
	ts          BIGINT      NOT NULL,
	signer      TEXT        NOT NULL,
	kind        TEXT        NOT NULL,
	payload     JSONB       NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (pool, sequence)
);
CREATE INDEX IF NOT EXISTS plasma_events_signature ON plasma_events (signature);
CREATE TABLE IF NOT EXISTS plasma_pools (
	pool          TEXT        PRIMARY KEY,
	next_sequence BIGINT      NOT NULL,
	slot          BIGINT      NOT NULL,
	state         JSONB       NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
`

// Store is an indexer.Sink. Events are keyed by pool and sequence number so
// a replayed batch changes nothing.
type Store struct {
	pool *pgxpool.Pool
}

var _ indexer.Sink = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Write stores the batch in one transaction.
func (s *Store) Write(ctx context.Context, b indexer.Batch) error {
	if len(b.Events) == 0 && len(b.Pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range b.Events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", e.Kind, err)
		}
		batch.Queue(`
			INSERT INTO plasma_events (
				pool, sequence, signature, event_index, slot, ts, signer, kind, payload, ingested_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (pool, sequence) DO NOTHING
		`,
			e.Pool.String(),
			int64(e.Sequence),
			e.Signature.String(),
			e.Index,
			int64(e.Slot),
			e.Timestamp,
			e.Signer.String(),
			e.Kind,
			string(payload),
			e.IngestedAt,
		)
	}
	for _, p := range b.Pools {
		state, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal pool state: %w", err)
		}
		batch.Queue(`
			INSERT INTO plasma_pools (pool, next_sequence, slot, state, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (pool)
			DO UPDATE SET
				next_sequence = EXCLUDED.next_sequence,
				slot = EXCLUDED.slot,
				state = EXCLUDED.state,
				updated_at = now()
			WHERE plasma_pools.next_sequence <= EXCLUDED.next_sequence
		`,
			p.Pool.String(),
			int64(p.NextSequence),
			int64(p.Slot),
			string(state),
		)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				return err
			}
		}
		return nil
	})
}

// PoolState loads the last stored state of pool.
func (s *Store) PoolState(ctx context.Context, pool string) (indexer.PoolState, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM plasma_pools WHERE pool = $1`, pool).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return indexer.PoolState{}, false, nil
		}
		return indexer.PoolState{}, false, err
	}
	var state indexer.PoolState
	if err := json.Unmarshal(raw, &state); err != nil {
		return indexer.PoolState{}, false, err
	}
	return state, true, nil
}

// EventCount returns the number of stored events of pool.
func (s *Store) EventCount(ctx context.Context, pool string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM plasma_events WHERE pool = $1`, pool).Scan(&n)
	return n, err
}
