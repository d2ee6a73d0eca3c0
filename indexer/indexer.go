// Package indexer follows the Plasma program off-chain. It backfills the
// program's transaction history over RPC, then tails new transactions,
// decodes their events, rebuilds every pool's state from the events and
// hands both to a Sink before checkpointing.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	plasma "github.com/krazyTry/plasma-go/gen/plasma"
)

type Config struct {
	Program    solana.PublicKey
	Commitment rpc.CommitmentType
	// PageSize is the number of signatures requested per backfill page.
	PageSize       int
	Concurrency    int
	MaxRetries     int
	RetryBaseDelay time.Duration
	// DedupSize bounds the signatures remembered to drop transactions seen
	// by both the backfill and the live source.
	DedupSize int
}

func (c *Config) setDefaults() {
	if c.Program.IsZero() {
		c.Program = plasma.ProgramID
	}
	if c.Commitment == "" {
		c.Commitment = rpc.CommitmentConfirmed
	}
	if c.PageSize <= 0 || c.PageSize > 1000 {
		c.PageSize = 1000
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	if c.DedupSize <= 0 {
		c.DedupSize = 4096
	}
}

type Indexer struct {
	cfg         Config
	rpc         *rpc.Client
	sink        Sink
	source      Source
	checkpoints *CheckpointStore
	metrics     *Metrics
	logger      *zap.Logger

	// procMu serializes Process.
	procMu sync.Mutex

	mu      sync.Mutex
	tracker *Tracker
	cursor  Checkpoint
	seen    *lru.Cache[solana.Signature, struct{}]
}

type Option func(*Indexer)

func WithLogger(logger *zap.Logger) Option {
	return func(ix *Indexer) {
		ix.logger = logger
	}
}

// WithSource tails transactions after the backfill.
func WithSource(source Source) Option {
	return func(ix *Indexer) {
		ix.source = source
	}
}

// WithCheckpointStore resumes from and saves to store.
func WithCheckpointStore(store *CheckpointStore) Option {
	return func(ix *Indexer) {
		ix.checkpoints = store
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(ix *Indexer) {
		ix.metrics = metrics
	}
}

// New builds an indexer writing to sink. A nil rpcClient skips the backfill.
func New(cfg Config, rpcClient *rpc.Client, sink Sink, opts ...Option) (*Indexer, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is nil")
	}
	cfg.setDefaults()
	ix := &Indexer{
		cfg:     cfg,
		rpc:     rpcClient,
		sink:    sink,
		logger:  zap.NewNop(),
		tracker: NewTracker(),
	}
	for _, fn := range opts {
		fn(ix)
	}
	if ix.metrics == nil {
		m, err := NewMetrics(prometheus.NewRegistry())
		if err != nil {
			return nil, err
		}
		ix.metrics = m
	}

	seen, err := lru.New[solana.Signature, struct{}](cfg.DedupSize)
	if err != nil {
		return nil, err
	}
	ix.seen = seen

	if ix.checkpoints != nil {
		cp, pools, ok, err := ix.checkpoints.Load()
		if err != nil {
			return nil, err
		}
		if ok {
			ix.cursor = cp
			ix.tracker = NewTracker(pools...)
			ix.logger.Info("resume from checkpoint",
				zap.Stringer("signature", cp.Signature),
				zap.Uint64("slot", cp.Slot),
				zap.Int("pools", len(pools)),
			)
		}
	}
	return ix, nil
}

// Run backfills from the checkpoint, then processes the live source until
// ctx is done or an error occurs.
func (ix *Indexer) Run(ctx context.Context) error {
	if ix.rpc != nil {
		txs, err := ix.backfill(ctx, ix.Cursor().Signature)
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		if err := ix.Process(ctx, txs...); err != nil {
			return err
		}
	}
	if ix.source == nil {
		return nil
	}
	for {
		tx, err := ix.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("next transaction: %w", err)
		}
		if err := ix.Process(ctx, tx); err != nil {
			return err
		}
	}
}

// Process applies the events of txs in order, writes them to the sink and
// moves the checkpoint past the last one. Nothing is committed unless both
// the write and the checkpoint succeed, so a failed call can be retried with
// the same transactions.
func (ix *Indexer) Process(ctx context.Context, txs ...Transaction) error {
	ix.procMu.Lock()
	defer ix.procMu.Unlock()

	st, err := ix.stage(txs)
	if err != nil || st.last == nil {
		return err
	}

	err = withRetry(ctx, ix.cfg.MaxRetries, ix.cfg.RetryBaseDelay, func(ctx context.Context) error {
		err := ix.sink.Write(ctx, st.batch)
		if err != nil {
			ix.metrics.sinkErrors.Inc()
			ix.logger.Warn("sink write failed", zap.Int("events", len(st.batch.Events)), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("write batch: %w", err)
	}

	cp := Checkpoint{Signature: st.last.Signature, Slot: st.last.Slot}
	if ix.checkpoints != nil {
		if err := ix.checkpoints.Save(cp, st.batch.Pools); err != nil {
			return err
		}
	}
	ix.commit(st, cp)

	if len(st.batch.Events) > 0 {
		ix.logger.Info("batch complete",
			zap.Int("transactions", len(txs)),
			zap.Int("events", len(st.batch.Events)),
			zap.Uint64("slot", st.last.Slot),
		)
	}
	return nil
}

// staged is the outcome of a batch before it is written.
type staged struct {
	batch      Batch
	last       *Transaction
	tracker    *Tracker
	signatures []solana.Signature
	maxSlot    uint64
	failed     int
	gaps       int
	decodeErrs int
}

// stage folds txs into a copy of the tracker. It runs under procMu, so the
// copy cannot go stale before commit.
func (ix *Indexer) stage(txs []Transaction) (staged, error) {
	ix.mu.Lock()
	st := staged{tracker: NewTracker(ix.tracker.Pools()...)}
	ix.mu.Unlock()

	var (
		batch      = &st.batch
		touched    = make(map[solana.PublicKey]struct{})
		inBatch    = make(map[solana.Signature]struct{}, len(txs))
		ingestedAt = time.Now().UTC()
	)
	for i := range txs {
		tx := txs[i]
		if _, dup := inBatch[tx.Signature]; dup || ix.seen.Contains(tx.Signature) {
			continue
		}
		inBatch[tx.Signature] = struct{}{}
		st.signatures = append(st.signatures, tx.Signature)
		st.last = &txs[i]
		st.maxSlot = max(st.maxSlot, tx.Slot)
		if tx.Failed {
			st.failed++
			continue
		}

		events, err := plasma.ParseLogs(tx.Logs)
		if err != nil {
			st.decodeErrs++
			ix.logger.Warn("decode logs", zap.Stringer("signature", tx.Signature), zap.Error(err))
		}
		for j, event := range events {
			applied, err := st.tracker.Apply(event)
			switch {
			case errors.Is(err, ErrSequenceGap):
				st.gaps++
				ix.logger.Warn("sequence gap", zap.Stringer("signature", tx.Signature), zap.Error(err))
			case err != nil:
				return staged{}, fmt.Errorf("apply %s event of %s: %w", event.Kind(), tx.Signature, err)
			}
			if !applied {
				continue
			}
			batch.Events = append(batch.Events, newEventRecord(tx, j, event, ingestedAt))
			touched[event.Header.Pool] = struct{}{}
		}
	}

	for pool := range touched {
		state, _ := st.tracker.Pool(pool)
		batch.Pools = append(batch.Pools, state)
	}
	sort.Slice(batch.Pools, func(i, j int) bool {
		return batch.Pools[i].Pool.String() < batch.Pools[j].Pool.String()
	})
	return st, nil
}

// commit publishes a written batch: the staged tracker replaces the live one,
// its signatures become duplicates and the metrics count it once.
func (ix *Indexer) commit(st staged, cp Checkpoint) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.tracker = st.tracker
	ix.cursor = cp
	for _, sig := range st.signatures {
		ix.seen.Add(sig, struct{}{})
	}

	ix.metrics.transactions.Add(float64(len(st.signatures)))
	ix.metrics.failedTransactions.Add(float64(st.failed))
	ix.metrics.decodeErrors.Add(float64(st.decodeErrs))
	ix.metrics.sequenceGaps.Add(float64(st.gaps))
	ix.metrics.lastSlot.Set(float64(st.maxSlot))
	for _, event := range st.batch.Events {
		ix.metrics.events.WithLabelValues(event.Kind).Inc()
	}
	for _, state := range st.batch.Pools {
		ix.metrics.observePool(state)
	}
}

// Pools returns the reconstructed state of every pool seen so far.
func (ix *Indexer) Pools() []PoolState {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.tracker.Pools()
}

// Cursor is the last checkpointed transaction.
func (ix *Indexer) Cursor() Checkpoint {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.cursor
}

// Close closes the source and the sink.
func (ix *Indexer) Close() error {
	var errs []error
	if ix.source != nil {
		errs = append(errs, ix.source.Close())
	}
	errs = append(errs, ix.sink.Close())
	return errors.Join(errs...)
}
