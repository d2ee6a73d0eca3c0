package program

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/krazyTry/plasma-go/amm"
	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	"github.com/krazyTry/plasma-go/solana"
)

// poolContext is the pool and signer every instruction except Log carries
// after the program and log authority accounts.
type poolContext struct {
	meta   *solanago.AccountMeta
	signer solanago.PublicKey
	pool   *plasma.PoolAccount
	// rest are the instruction specific accounts.
	rest solanago.AccountMetaSlice
}

func (pc *poolContext) key() solanago.PublicKey {
	return pc.meta.PublicKey
}

type handler func(iv *invocation, pc *poolContext, params []byte) (plasma.EventPayload, error)

var handlers = map[plasma.Instruction]handler{
	plasma.InstructionSwap:                 processSwap,
	plasma.InstructionAddLiquidity:         processAddLiquidity,
	plasma.InstructionRemoveLiquidity:      processRemoveLiquidity,
	plasma.InstructionRenounceLiquidity:    processRenounceLiquidity,
	plasma.InstructionWithdrawLpFees:       processWithdrawLpFees,
	plasma.InstructionInitializeLpPosition: processInitializeLpPosition,
	plasma.InstructionInitializePool:       processInitializePool,
	plasma.InstructionWithdrawProtocolFees: processWithdrawProtocolFees,
}

func process(iv *invocation) error {
	tag, params, err := plasma.SplitInstructionData(iv.data)
	if err != nil {
		return err
	}
	if tag == plasma.InstructionLog {
		return processLog(iv)
	}
	if iv.depth > 1 {
		return fmt.Errorf("%w: %s can not be invoked by a program", ErrInvalidArgument, tag)
	}

	pc, err := loadPoolContext(iv, tag == plasma.InstructionInitializePool)
	if err != nil {
		return fmt.Errorf("%s: %w", tag, err)
	}
	payload, err := handlers[tag](iv, pc, params)
	if err != nil {
		return fmt.Errorf("%s: %w", tag, err)
	}
	seq, err := recordEvent(iv, pc, payload)
	if err != nil {
		return fmt.Errorf("%s: record event: %w", tag, err)
	}
	iv.tx.logInstruction(tag, pc.key(), seq)
	return nil
}

func loadPoolContext(iv *invocation, init bool) (*poolContext, error) {
	if len(iv.accounts) < 4 {
		return nil, fmt.Errorf("%w: %d", ErrNotEnoughAccounts, len(iv.accounts))
	}
	if !iv.accounts[0].PublicKey.Equals(plasma.ProgramID) {
		return nil, fmt.Errorf("%w: %s", ErrIncorrectProgramID, iv.accounts[0].PublicKey)
	}
	if !iv.accounts[1].PublicKey.Equals(plasma.LogAuthority) {
		return nil, fmt.Errorf("%w: log authority %s", ErrInvalidSeeds, iv.accounts[1].PublicKey)
	}
	meta, signer := iv.accounts[2], iv.accounts[3]
	if !meta.IsWritable {
		return nil, fmt.Errorf("%w: pool %s", ErrAccountNotWritable, meta.PublicKey)
	}
	if !signer.IsSigner {
		return nil, fmt.Errorf("%w: %s", ErrMissingSignature, signer.PublicKey)
	}

	a, ok := iv.load(meta.PublicKey)
	if !ok || !a.Owner.Equals(iv.programID) {
		return nil, fmt.Errorf("%w: pool %s is not owned by the program", ErrInvalidAccount, meta.PublicKey)
	}
	pc := &poolContext{meta: meta, signer: signer.PublicKey, rest: iv.accounts[4:]}
	if init {
		if len(a.Data) < plasma.PoolAccountSize {
			return nil, fmt.Errorf("%w: pool has %d bytes", plasma.ErrInvalidAccountSize, len(a.Data))
		}
		if _, err := plasma.DecodePoolAccount(a.Data); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrPoolAlreadyInitialized, meta.PublicKey)
		}
		pc.pool = &plasma.PoolAccount{}
		return pc, nil
	}
	pool, err := plasma.DecodePoolAccount(a.Data)
	if err != nil {
		return nil, err
	}
	pc.pool = pool
	return pc, nil
}

// vaultContext holds the trader's token accounts and the pool vaults.
type vaultContext struct {
	baseAccount  *solanago.AccountMeta
	quoteAccount *solanago.AccountMeta
	baseVault    *solanago.AccountMeta
	quoteVault   *solanago.AccountMeta
	base         *solana.TokenAccount
	quote        *solana.TokenAccount
}

func loadVaultContext(iv *invocation, pc *poolContext, accounts solanago.AccountMetaSlice) (*vaultContext, error) {
	if len(accounts) < 5 {
		return nil, fmt.Errorf("%w: vault context", ErrNotEnoughAccounts)
	}
	vc := &vaultContext{
		baseAccount:  accounts[0],
		quoteAccount: accounts[1],
		baseVault:    accounts[2],
		quoteVault:   accounts[3],
	}
	if !accounts[4].PublicKey.Equals(solanago.TokenProgramID) {
		return nil, fmt.Errorf("%w: token program %s", ErrIncorrectProgramID, accounts[4].PublicKey)
	}
	header := pc.pool.Header

	var err error
	if vc.base, err = traderTokenAccount(iv, vc.baseAccount, header.Base.Mint, pc.signer); err != nil {
		return nil, err
	}
	if vc.quote, err = traderTokenAccount(iv, vc.quoteAccount, header.Quote.Mint, pc.signer); err != nil {
		return nil, err
	}
	if err := checkVault(vc.baseVault, header.Base); err != nil {
		return nil, err
	}
	if err := checkVault(vc.quoteVault, header.Quote); err != nil {
		return nil, err
	}
	return vc, nil
}

func traderTokenAccount(iv *invocation, meta *solanago.AccountMeta, mint, owner solanago.PublicKey) (*solana.TokenAccount, error) {
	account, err := iv.tokenAccount(meta)
	if err != nil {
		return nil, err
	}
	if !account.Mint.Equals(mint) {
		return nil, fmt.Errorf("%w: %s holds mint %s, want %s", ErrInvalidAccount, meta.PublicKey, account.Mint, mint)
	}
	if !account.Owner.Equals(owner) {
		return nil, fmt.Errorf("%w: %s is owned by %s", ErrTokenOwnerMismatch, meta.PublicKey, account.Owner)
	}
	return account, nil
}

func checkVault(meta *solanago.AccountMeta, params plasma.TokenParams) error {
	if !meta.PublicKey.Equals(params.Vault) {
		return fmt.Errorf("%w: vault %s, want %s", ErrInvalidAccount, meta.PublicKey, params.Vault)
	}
	return nil
}

func vaultSeeds(pool solanago.PublicKey, params plasma.TokenParams) [][]byte {
	return [][]byte{
		[]byte(plasma.VaultSeed),
		pool.Bytes(),
		params.Mint.Bytes(),
		{byte(params.VaultBump)},
	}
}

// deposit moves amount from the trader into the vault.
func deposit(iv *invocation, pc *poolContext, from, vault *solanago.AccountMeta, amount uint64) error {
	return iv.transfer(from, vault, pc.signer, amount, nil)
}

// withdraw moves amount out of the vault, signed by the vault itself.
func withdraw(iv *invocation, pc *poolContext, vault, to *solanago.AccountMeta, params plasma.TokenParams, amount uint64) error {
	return iv.transfer(vault, to, params.Vault, amount, vaultSeeds(pc.key(), params))
}

// loadLpPosition decodes the position at meta and checks it belongs to pool and authority.
func loadLpPosition(iv *invocation, meta *solanago.AccountMeta, pool, authority solanago.PublicKey) (*plasma.LpPositionAccount, error) {
	a, ok := iv.load(meta.PublicKey)
	if !ok || !a.Owner.Equals(iv.programID) {
		return nil, fmt.Errorf("%w: lp position %s", ErrInvalidAccount, meta.PublicKey)
	}
	position, err := plasma.DecodeLpPositionAccount(a.Data)
	if err != nil {
		return nil, err
	}
	if !position.Pool.Equals(pool) {
		return nil, fmt.Errorf("%w: lp position belongs to pool %s", ErrInvalidAccount, position.Pool)
	}
	if !position.Authority.Equals(authority) {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, authority)
	}
	return position, nil
}

func storeLpPosition(iv *invocation, meta *solanago.AccountMeta, position *plasma.LpPositionAccount) error {
	data, err := position.Encode()
	if err != nil {
		return err
	}
	return iv.write(meta, data)
}

// liquiditySlot is the slot liquidity and fee operations run at: the start of
// the current leader window. Vesting locks are stamped with it, so a deposit
// late in a window unlocks up to LeaderSlotWindow-1 slots early.
func liquiditySlot(iv *invocation) uint64 {
	return amm.WindowStart(iv.tx.slot)
}
