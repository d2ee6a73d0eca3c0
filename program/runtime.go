package program

import (
	"context"
	"fmt"
	"sync"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	plasma "github.com/krazyTry/plasma-go/gen/plasma"
)

// Transaction is an ordered list of instructions executed atomically.
// Signers are the keys that signed it.
type Transaction struct {
	Instructions []solanago.Instruction
	Signers      []solanago.PublicKey
}

// InnerInstruction is an instruction invoked by the program while running
// the top level instruction at Index.
type InnerInstruction struct {
	Index       int
	Depth       int
	Instruction solanago.Instruction
}

// Receipt is what a transaction left behind. On failure Err is set, Logs run
// up to the failing instruction and no account was changed.
type Receipt struct {
	Slot              uint64
	Timestamp         int64
	Logs              []string
	ReturnData        []byte
	InnerInstructions []InnerInstruction
	Events            []plasma.Event
	Err               error
}

// Runtime executes Plasma instructions against a Ledger.
type Runtime struct {
	ledger *Ledger
	logger *zap.Logger
	mu     sync.Mutex
}

type Option func(*Runtime)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

func NewRuntime(ledger *Ledger, opts ...Option) *Runtime {
	r := &Runtime{
		ledger: ledger,
		logger: zap.NewNop(),
	}
	for _, fn := range opts {
		fn(r)
	}
	return r
}

func (r *Runtime) Ledger() *Ledger {
	return r.ledger
}

// execution carries the transaction wide state shared by nested invocations.
type execution struct {
	runtime   *Runtime
	slot      uint64
	timestamp int64
	index     int
	logs      []string
	inner     []InnerInstruction
}

// Execute runs tx at the ledger's current slot. Either every instruction
// succeeds and all writes are committed, or nothing is.
func (r *Runtime) Execute(ctx context.Context, tx Transaction) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, timestamp := r.ledger.Clock()
	receipt := &Receipt{Slot: slot, Timestamp: timestamp}

	signers := make(map[solanago.PublicKey]bool, len(tx.Signers))
	for _, s := range tx.Signers {
		signers[s] = true
	}

	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()

	exec := &execution{runtime: r, slot: slot, timestamp: timestamp}
	txView := newView(r.ledger)
	for i, ix := range tx.Instructions {
		if err := ctx.Err(); err != nil {
			receipt.Err = err
			break
		}
		exec.index = i
		iv, err := exec.top(txView, ix, signers)
		if err == nil {
			err = exec.run(iv)
		}
		if err != nil {
			receipt.Err = fmt.Errorf("instruction %d: %w", i, err)
			break
		}
		iv.view.commit()
		receipt.Events = append(receipt.Events, iv.events...)
		if iv.returnData != nil {
			receipt.ReturnData = iv.returnData
		}
	}

	receipt.Logs = exec.logs
	receipt.InnerInstructions = exec.inner
	if receipt.Err != nil {
		receipt.Events = nil
		receipt.ReturnData = nil
		r.logger.Warn("transaction failed",
			zap.Uint64("slot", slot),
			zap.Int("instruction_index", exec.index),
			zap.Error(receipt.Err),
		)
		return receipt, receipt.Err
	}
	txView.commit()
	return receipt, nil
}

// Send wraps instructions signed by signers into a transaction and executes it.
func (r *Runtime) Send(ctx context.Context, signers []solanago.PublicKey, instructions ...solanago.Instruction) (*Receipt, error) {
	return r.Execute(ctx, Transaction{Instructions: instructions, Signers: signers})
}

func (e *execution) top(parent store, ix solanago.Instruction, signers map[solanago.PublicKey]bool) (*invocation, error) {
	if !supported(ix.ProgramID()) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProgram, ix.ProgramID())
	}
	accounts := ix.Accounts()
	for _, meta := range accounts {
		if meta.IsSigner && !signers[meta.PublicKey] {
			return nil, fmt.Errorf("%w: %s", ErrMissingSignature, meta.PublicKey)
		}
	}
	data, err := ix.Data()
	if err != nil {
		return nil, err
	}
	return &invocation{
		tx:        e,
		view:      newView(parent),
		programID: ix.ProgramID(),
		accounts:  accounts,
		data:      data,
		depth:     1,
	}, nil
}

// run executes one invocation and commits its view into the parent on success.
func (e *execution) run(iv *invocation) (err error) {
	e.logs = append(e.logs, fmt.Sprintf("Program %s invoke [%d]", iv.programID, iv.depth))
	defer func() {
		e.logs = append(e.logs, programResult(iv.programID, err))
	}()
	if err = dispatch(iv); err != nil {
		return err
	}
	if iv.depth > 1 {
		iv.view.commit()
	}
	return nil
}

func (e *execution) logInstruction(tag plasma.Instruction, pool solanago.PublicKey, seq uint64) {
	e.runtime.logger.Info("instruction executed",
		zap.String("instruction", tag.String()),
		zap.String("pool", pool.String()),
		zap.Uint64("seq", seq),
		zap.Uint64("slot", e.slot),
	)
}
