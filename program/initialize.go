package program

import (
	"fmt"
	"math"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/krazyTry/plasma-go/amm"
	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	"github.com/krazyTry/plasma-go/solana"
)

const (
	// MaxLpFeeInBps is the exclusive upper bound of the swap fee.
	MaxLpFeeInBps = 500
	// MaxProtocolFeeAllocationInPct is the exclusive upper bound of the protocol share of fees.
	MaxProtocolFeeAllocationInPct = 50
)

// ValidateFeeRecipients checks all MaxFeeRecipients entries. An unset entry is
// the zero key and still counts, so every pool has exactly three pairwise
// distinct recipients. Individual shares may be zero but must sum to a
// nonzero u64.
func ValidateFeeRecipients(recipients [plasma.MaxFeeRecipients]plasma.ProtocolFeeRecipientParams) error {
	var total uint64
	for i, r := range recipients {
		if total > math.MaxUint64-r.Shares {
			return fmt.Errorf("%w: shares overflow", ErrInvalidFeeRecipientShare)
		}
		total += r.Shares
		for _, other := range recipients[i+1:] {
			if r.Recipient.Equals(other.Recipient) {
				return fmt.Errorf("%w: %s", ErrDuplicateFeeRecipient, r.Recipient)
			}
		}
	}
	if total == 0 {
		return ErrInvalidFeeRecipientShare
	}
	return nil
}

// VestingWindow rounds numSlots down to whole leader windows. Nil means no delay.
func VestingWindow(numSlots *uint64) uint64 {
	if numSlots == nil {
		return 0
	}
	return amm.WindowStart(*numSlots)
}

func processInitializePool(iv *invocation, pc *poolContext, data []byte) (plasma.EventPayload, error) {
	if len(pc.rest) < 6 {
		return nil, fmt.Errorf("%w: initialize pool", ErrNotEnoughAccounts)
	}
	baseMintMeta, quoteMintMeta := pc.rest[0], pc.rest[1]
	baseVaultMeta, quoteVaultMeta := pc.rest[2], pc.rest[3]
	if !pc.rest[4].PublicKey.Equals(solanago.SystemProgramID) {
		return nil, fmt.Errorf("%w: system program %s", ErrIncorrectProgramID, pc.rest[4].PublicKey)
	}
	if !pc.rest[5].PublicKey.Equals(solanago.TokenProgramID) {
		return nil, fmt.Errorf("%w: token program %s", ErrIncorrectProgramID, pc.rest[5].PublicKey)
	}

	var params plasma.InitializePoolParams
	if err := plasma.DecodeParams(data, &params); err != nil {
		return nil, err
	}
	if baseMintMeta.PublicKey.Equals(quoteMintMeta.PublicKey) {
		return nil, ErrIdenticalMints
	}
	if params.LpFeeInBps >= MaxLpFeeInBps {
		return nil, fmt.Errorf("%w: lp fee %d bps", ErrInvalidArgument, params.LpFeeInBps)
	}
	if params.ProtocolLpFeeAllocationInPct >= MaxProtocolFeeAllocationInPct {
		return nil, fmt.Errorf("%w: protocol allocation %d%%", ErrInvalidArgument, params.ProtocolLpFeeAllocationInPct)
	}
	if err := ValidateFeeRecipients(params.FeeRecipients); err != nil {
		return nil, err
	}

	baseMint, err := iv.mint(baseMintMeta.PublicKey)
	if err != nil {
		return nil, err
	}
	quoteMint, err := iv.mint(quoteMintMeta.PublicKey)
	if err != nil {
		return nil, err
	}
	base, err := createVault(iv, pc.key(), baseMint, baseVaultMeta)
	if err != nil {
		return nil, err
	}
	quote, err := createVault(iv, pc.key(), quoteMint, quoteVaultMeta)
	if err != nil {
		return nil, err
	}

	header := plasma.PoolHeader{
		Discriminator: plasma.PoolAccountDiscriminator,
		Base:          base,
		Quote:         quote,
	}
	for i, r := range params.FeeRecipients {
		header.FeeRecipients.Recipients[i] = plasma.ProtocolFeeRecipient{Recipient: r.Recipient, Shares: r.Shares}
	}
	pc.pool.Header = header
	pc.pool.Amm = amm.New(
		uint32(params.LpFeeInBps),
		uint32(params.ProtocolLpFeeAllocationInPct),
		VestingWindow(params.NumSlotsToVestLpShares),
		iv.tx.slot,
	)
	iv.log("initialized pool with fee %d bps, protocol allocation %d%%", params.LpFeeInBps, params.ProtocolLpFeeAllocationInPct)

	return &plasma.InitializePoolEvent{
		LpFeeInBps:       params.LpFeeInBps,
		ProtocolFeeInPct: params.ProtocolLpFeeAllocationInPct,
		FeeRecipients:    params.FeeRecipients,
	}, nil
}

// createVault opens the token account of mint that the pool trades from. The
// vault is its own token owner so that only the program can sign for it.
func createVault(iv *invocation, pool solanago.PublicKey, mint *solana.Token, meta *solanago.AccountMeta) (plasma.TokenParams, error) {
	vault, bump, err := plasma.DeriveVaultPDA(pool, mint.Address)
	if err != nil {
		return plasma.TokenParams{}, err
	}
	if !vault.Equals(meta.PublicKey) {
		return plasma.TokenParams{}, fmt.Errorf("%w: vault %s, want %s", ErrInvalidSeeds, meta.PublicKey, vault)
	}
	params := plasma.TokenParams{
		Decimals:  uint32(mint.Decimals),
		VaultBump: uint32(bump),
		Mint:      mint.Address,
		Vault:     vault,
	}
	data, err := solana.NewTokenAccount(vault, mint.Address, vault, 0).Encode()
	if err != nil {
		return plasma.TokenParams{}, err
	}
	if err := iv.create(meta, solanago.TokenProgramID, data, vaultSeeds(pool, params)); err != nil {
		return plasma.TokenParams{}, err
	}
	return params, nil
}

func processInitializeLpPosition(iv *invocation, pc *poolContext, data []byte) (plasma.EventPayload, error) {
	if len(data) != 0 {
		return nil, fmt.Errorf("%w: %d bytes", plasma.ErrTrailingBytes, len(data))
	}
	if len(pc.rest) < 3 {
		return nil, fmt.Errorf("%w: initialize lp position", ErrNotEnoughAccounts)
	}
	owner, positionMeta := pc.rest[0].PublicKey, pc.rest[1]
	if !pc.rest[2].PublicKey.Equals(solanago.SystemProgramID) {
		return nil, fmt.Errorf("%w: system program %s", ErrIncorrectProgramID, pc.rest[2].PublicKey)
	}

	address, bump, err := plasma.DeriveLpPositionPDA(pc.key(), owner)
	if err != nil {
		return nil, err
	}
	if !address.Equals(positionMeta.PublicKey) {
		return nil, fmt.Errorf("%w: lp position %s, want %s", ErrInvalidSeeds, positionMeta.PublicKey, address)
	}

	position := plasma.LpPositionAccount{
		Discriminator: plasma.LpPositionAccountDiscriminator,
		Authority:     owner,
		Pool:          pc.key(),
		Status:        plasma.LpPositionStatusActive,
		Position:      amm.NewLpPosition(pc.pool.Amm.RewardFactor),
	}
	encoded, err := position.Encode()
	if err != nil {
		return nil, err
	}
	seeds := [][]byte{[]byte(plasma.LpPositionSeed), pc.key().Bytes(), owner.Bytes(), {bump}}
	if err := iv.create(positionMeta, iv.programID, encoded, seeds); err != nil {
		return nil, err
	}
	return &plasma.InitializeLpPositionEvent{Owner: owner}, nil
}
