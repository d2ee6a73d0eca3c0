package program

import (
	"encoding/base64"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	"github.com/krazyTry/plasma-go/solana"
)

// maxInvokeDepth bounds nested self invocation.
const maxInvokeDepth = 4

// invocation is the state of one instruction while it runs. Writes land in
// view and reach the transaction only when the instruction succeeds.
type invocation struct {
	tx        *execution
	view      *view
	programID solanago.PublicKey
	accounts  solanago.AccountMetaSlice
	data      []byte
	depth     int
	// pdaSigners are program derived addresses signed for by invoke_signed.
	pdaSigners map[solanago.PublicKey]bool

	events     []plasma.Event
	returnData []byte
}

func (iv *invocation) log(format string, args ...any) {
	iv.tx.logs = append(iv.tx.logs, "Program log: "+fmt.Sprintf(format, args...))
}

func (iv *invocation) account(i int) (*solanago.AccountMeta, error) {
	if i >= len(iv.accounts) {
		return nil, fmt.Errorf("%w: want account %d of %d", ErrNotEnoughAccounts, i, len(iv.accounts))
	}
	return iv.accounts[i], nil
}

func (iv *invocation) isSigner(key solanago.PublicKey) bool {
	if iv.pdaSigners[key] {
		return true
	}
	for _, meta := range iv.accounts {
		if meta.PublicKey.Equals(key) && meta.IsSigner {
			return true
		}
	}
	return false
}

func (iv *invocation) load(key solanago.PublicKey) (Account, bool) {
	a, ok := iv.view.load(key)
	if !ok {
		return Account{}, false
	}
	return a.clone(), true
}

// write replaces the data of a program owned account.
func (iv *invocation) write(meta *solanago.AccountMeta, data []byte) error {
	if !meta.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, meta.PublicKey)
	}
	a, ok := iv.view.load(meta.PublicKey)
	if !ok {
		return fmt.Errorf("%w: %s does not exist", ErrInvalidAccount, meta.PublicKey)
	}
	if !a.Owner.Equals(iv.programID) {
		return fmt.Errorf("%w: %s is owned by %s", ErrInvalidAccount, meta.PublicKey, a.Owner)
	}
	if len(data) > len(a.Data) {
		return fmt.Errorf("%w: %d bytes into %d", plasma.ErrInvalidAccountSize, len(data), len(a.Data))
	}
	next := Account{Owner: a.Owner, Data: make([]byte, len(a.Data))}
	copy(next.Data, data)
	iv.view.store(meta.PublicKey, next)
	return nil
}

// create allocates a new account at the program derived address of seeds.
func (iv *invocation) create(meta *solanago.AccountMeta, owner solanago.PublicKey, data []byte, seeds [][]byte) error {
	if !meta.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, meta.PublicKey)
	}
	address, err := solanago.CreateProgramAddress(seeds, iv.programID)
	if err != nil || !address.Equals(meta.PublicKey) {
		return fmt.Errorf("%w: %s", ErrInvalidSeeds, meta.PublicKey)
	}
	if a, ok := iv.view.load(meta.PublicKey); ok && (len(a.Data) > 0 || !a.Owner.Equals(solanago.SystemProgramID)) {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, meta.PublicKey)
	}
	iv.view.store(meta.PublicKey, Account{Owner: owner, Data: data})
	return nil
}

func (iv *invocation) tokenAccount(meta *solanago.AccountMeta) (*solana.TokenAccount, error) {
	a, ok := iv.view.load(meta.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: token account %s does not exist", ErrInvalidAccount, meta.PublicKey)
	}
	if !a.Owner.Equals(solanago.TokenProgramID) {
		return nil, fmt.Errorf("%w: %s is not a token account", ErrInvalidAccount, meta.PublicKey)
	}
	return solana.DecodeTokenAccount(meta.PublicKey, a.Data)
}

func (iv *invocation) mint(key solanago.PublicKey) (*solana.Token, error) {
	a, ok := iv.view.load(key)
	if !ok || !a.Owner.Equals(solanago.TokenProgramID) {
		return nil, fmt.Errorf("%w: mint %s", ErrInvalidAccount, key)
	}
	token, err := solana.DecodeMint(key, a.Data)
	if err != nil {
		return nil, err
	}
	token.Owner = a.Owner
	return token, nil
}

func (iv *invocation) storeToken(account *solana.TokenAccount) error {
	data, err := account.Encode()
	if err != nil {
		return err
	}
	iv.view.store(account.Address, Account{Owner: solanago.TokenProgramID, Data: data})
	return nil
}

// transfer moves amount tokens from one token account to another on behalf of
// authority. seeds sign for a program derived authority. A zero amount is a no-op.
func (iv *invocation) transfer(from, to *solanago.AccountMeta, authority solanago.PublicKey, amount uint64, seeds [][]byte) (err error) {
	if amount == 0 {
		return nil
	}
	iv.tx.logs = append(iv.tx.logs, fmt.Sprintf("Program %s invoke [%d]", solanago.TokenProgramID, iv.depth+1))
	defer func() {
		iv.tx.logs = append(iv.tx.logs, programResult(solanago.TokenProgramID, err))
	}()
	iv.tx.logs = append(iv.tx.logs, "Program log: Instruction: Transfer")

	if !from.IsWritable || !to.IsWritable {
		return ErrAccountNotWritable
	}
	signed := iv.isSigner(authority)
	if seeds != nil {
		address, err := solanago.CreateProgramAddress(seeds, iv.programID)
		if err != nil || !address.Equals(authority) {
			return fmt.Errorf("%w: transfer authority %s", ErrInvalidSeeds, authority)
		}
		signed = true
	}
	if !signed {
		return fmt.Errorf("%w: %s", ErrMissingSignature, authority)
	}

	src, err := iv.tokenAccount(from)
	if err != nil {
		return err
	}
	dst, err := iv.tokenAccount(to)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return fmt.Errorf("%w: mint %s into %s", ErrInvalidAccount, src.Mint, dst.Mint)
	}
	if src.Frozen() || dst.Frozen() {
		return fmt.Errorf("%w: account is frozen", ErrInvalidAccount)
	}
	if !src.Owner.Equals(authority) {
		return fmt.Errorf("%w: %s is owned by %s", ErrTokenOwnerMismatch, from.PublicKey, src.Owner)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %d < %d", ErrInsufficientFunds, src.Amount, amount)
	}
	if from.PublicKey.Equals(to.PublicKey) {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return fmt.Errorf("%w: destination balance overflows", ErrInvalidArgument)
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := iv.storeToken(src); err != nil {
		return err
	}
	return iv.storeToken(dst)
}

// invokeSigned runs ix as a nested instruction of the program with seeds
// signing for the derived address they produce.
func (iv *invocation) invokeSigned(ix solanago.Instruction, seeds [][]byte) error {
	if iv.depth+1 > maxInvokeDepth {
		return fmt.Errorf("%w: invoke depth %d", ErrInvalidArgument, iv.depth+1)
	}
	data, err := ix.Data()
	if err != nil {
		return err
	}
	signers := make(map[solanago.PublicKey]bool)
	if seeds != nil {
		address, err := solanago.CreateProgramAddress(seeds, iv.programID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
		}
		signers[address] = true
	}
	for _, meta := range ix.Accounts() {
		if meta.IsSigner && !signers[meta.PublicKey] && !iv.isSigner(meta.PublicKey) {
			return fmt.Errorf("%w: %s", ErrMissingSignature, meta.PublicKey)
		}
	}

	inner := &invocation{
		tx:         iv.tx,
		view:       newView(iv.view),
		programID:  ix.ProgramID(),
		accounts:   ix.Accounts(),
		data:       data,
		depth:      iv.depth + 1,
		pdaSigners: signers,
	}
	iv.tx.inner = append(iv.tx.inner, InnerInstruction{Index: iv.tx.index, Depth: inner.depth, Instruction: ix})
	if err := iv.tx.run(inner); err != nil {
		return err
	}
	iv.events = append(iv.events, inner.events...)
	return nil
}

func (iv *invocation) setReturnData(data []byte) {
	iv.returnData = data
	iv.tx.logs = append(iv.tx.logs, fmt.Sprintf("Program return: %s %s", iv.programID, base64.StdEncoding.EncodeToString(data)))
}

func programResult(programID solanago.PublicKey, err error) string {
	if err != nil {
		return fmt.Sprintf("Program %s failed: %v", programID, err)
	}
	return fmt.Sprintf("Program %s success", programID)
}
