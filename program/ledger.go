package program

import (
	"bytes"
	"fmt"
	"sync"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/krazyTry/plasma-go/solana"
)

// SlotDuration is the wall clock time of one slot in milliseconds.
const SlotDuration = 400

// Account is one ledger entry. Only Owner may change Data.
type Account struct {
	Owner solanago.PublicKey
	Data  []byte
}

func (a Account) clone() Account {
	return Account{Owner: a.Owner, Data: bytes.Clone(a.Data)}
}

// store is anything accounts can be read from and staged into.
type store interface {
	load(key solanago.PublicKey) (Account, bool)
	store(key solanago.PublicKey, account Account)
}

// Ledger is the committed account state plus the clock.
type Ledger struct {
	mu        sync.RWMutex
	accounts  map[solanago.PublicKey]Account
	slot      uint64
	genesis   int64
	timestamp int64
}

// NewLedger starts the clock at slot with unix time genesis.
func NewLedger(slot uint64, genesis int64) *Ledger {
	return &Ledger{
		accounts:  make(map[solanago.PublicKey]Account),
		slot:      slot,
		genesis:   genesis,
		timestamp: genesis + int64(slot*SlotDuration/1000),
	}
}

func (l *Ledger) load(key solanago.PublicKey) (Account, bool) {
	a, ok := l.accounts[key]
	return a, ok
}

func (l *Ledger) store(key solanago.PublicKey, account Account) {
	l.accounts[key] = account
}

// Clock returns the current slot and unix timestamp.
func (l *Ledger) Clock() (slot uint64, timestamp int64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.slot, l.timestamp
}

// Warp advances the clock by slots.
func (l *Ledger) Warp(slots uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slot += slots
	l.timestamp = l.genesis + int64(l.slot*SlotDuration/1000)
}

// Account returns a copy of the committed account at key.
func (l *Ledger) Account(key solanago.PublicKey) (Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[key]
	if !ok {
		return Account{}, false
	}
	return a.clone(), true
}

// Accounts returns copies of every committed account owned by owner.
func (l *Ledger) Accounts(owner solanago.PublicKey) map[solanago.PublicKey]Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[solanago.PublicKey]Account)
	for key, a := range l.accounts {
		if a.Owner.Equals(owner) {
			out[key] = a.clone()
		}
	}
	return out
}

// Fork returns an independent copy of the ledger and its clock.
func (l *Ledger) Fork() *Ledger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fork := &Ledger{
		accounts:  make(map[solanago.PublicKey]Account, len(l.accounts)),
		slot:      l.slot,
		genesis:   l.genesis,
		timestamp: l.timestamp,
	}
	for key, a := range l.accounts {
		fork.accounts[key] = a.clone()
	}
	return fork
}

// CreateAccount allocates space zeroed bytes owned by owner.
func (l *Ledger) CreateAccount(key, owner solanago.PublicKey, space int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[key]; ok {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, key)
	}
	l.accounts[key] = Account{Owner: owner, Data: make([]byte, space)}
	return nil
}

// CreateMint adds an initialized SPL mint.
func (l *Ledger) CreateMint(key solanago.PublicKey, decimals uint8) error {
	data, err := solana.EncodeMint(decimals, 0)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[key]; ok {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, key)
	}
	l.accounts[key] = Account{Owner: solanago.TokenProgramID, Data: data}
	return nil
}

// CreateTokenAccount adds an SPL token account of mint owned by owner.
func (l *Ledger) CreateTokenAccount(key, mint, owner solanago.PublicKey, amount uint64) error {
	data, err := solana.NewTokenAccount(key, mint, owner, amount).Encode()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[key]; ok {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, key)
	}
	if _, ok := l.accounts[mint]; !ok {
		return fmt.Errorf("%w: mint %s does not exist", ErrInvalidAccount, mint)
	}
	l.accounts[key] = Account{Owner: solanago.TokenProgramID, Data: data}
	return nil
}

// TokenAccount decodes the committed token account at key.
func (l *Ledger) TokenAccount(key solanago.PublicKey) (*solana.TokenAccount, error) {
	a, ok := l.Account(key)
	if !ok {
		return nil, fmt.Errorf("%w: token account %s does not exist", ErrInvalidAccount, key)
	}
	return solana.DecodeTokenAccount(key, a.Data)
}

// Balance is the token amount at key, zero if the account is missing.
func (l *Ledger) Balance(key solanago.PublicKey) uint64 {
	account, err := l.TokenAccount(key)
	if err != nil {
		return 0
	}
	return account.Amount
}

// view stages writes over a parent store until commit.
type view struct {
	parent  store
	pending map[solanago.PublicKey]Account
}

func newView(parent store) *view {
	return &view{parent: parent, pending: make(map[solanago.PublicKey]Account)}
}

func (v *view) load(key solanago.PublicKey) (Account, bool) {
	if a, ok := v.pending[key]; ok {
		return a, true
	}
	return v.parent.load(key)
}

func (v *view) store(key solanago.PublicKey, account Account) {
	v.pending[key] = account
}

func (v *view) commit() {
	for key, account := range v.pending {
		v.parent.store(key, account)
	}
	v.pending = make(map[solanago.PublicKey]Account)
}
