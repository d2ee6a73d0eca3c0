package plasma

import (
	"bytes"
	bin "encoding/binary"
	"fmt"

	binary "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"github.com/krazyTry/plasma-go/amm"
)

// Instruction is the one-byte tag that prefixes instruction data.
type Instruction uint8

const (
	InstructionSwap Instruction = iota
	InstructionAddLiquidity
	InstructionRemoveLiquidity
	InstructionRenounceLiquidity
	InstructionWithdrawLpFees
	InstructionInitializeLpPosition
	InstructionInitializePool
	InstructionWithdrawProtocolFees
	InstructionLog
)

var instructionNames = [...]string{
	"Swap",
	"AddLiquidity",
	"RemoveLiquidity",
	"RenounceLiquidity",
	"WithdrawLpFees",
	"InitializeLpPosition",
	"InitializePool",
	"WithdrawProtocolFees",
	"Log",
}

func (i Instruction) String() string {
	if int(i) < len(instructionNames) {
		return instructionNames[i]
	}
	return fmt.Sprintf("Instruction(%d)", uint8(i))
}

func (i Instruction) Valid() bool {
	return i <= InstructionLog
}

// SplitInstructionData separates the tag from the borsh encoded params.
func SplitInstructionData(data []byte) (Instruction, []byte, error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("%w: empty instruction data", ErrUnknownInstruction)
	}
	tag := Instruction(data[0])
	if !tag.Valid() {
		return 0, nil, fmt.Errorf("%w: %d", ErrUnknownInstruction, data[0])
	}
	return tag, data[1:], nil
}

func writeOptionalUint64(encoder *binary.Encoder, v *uint64) error {
	if v == nil {
		return encoder.WriteUint8(0)
	}
	if err := encoder.WriteUint8(1); err != nil {
		return err
	}
	return encoder.WriteUint64(*v, bin.LittleEndian)
}

func readOptionalUint64(decoder *binary.Decoder) (*uint64, error) {
	flag, err := decoder.ReadUint8()
	if err != nil {
		return nil, err
	}
	switch flag {
	case 0:
		return nil, nil
	case 1:
		v, err := decoder.ReadUint64(bin.LittleEndian)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}
	return nil, fmt.Errorf("%w: option flag %d", amm.ErrUnexpectedArgument, flag)
}

func readStrictBool(decoder *binary.Decoder) (bool, error) {
	v, err := decoder.ReadUint8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, fmt.Errorf("%w: bool %d", amm.ErrUnexpectedArgument, v)
	}
	return v == 1, nil
}

type ProtocolFeeRecipientParams struct {
	Recipient solanago.PublicKey
	Shares    uint64
}

type InitializePoolParams struct {
	LpFeeInBps                   uint64
	ProtocolLpFeeAllocationInPct uint64
	FeeRecipients                [MaxFeeRecipients]ProtocolFeeRecipientParams
	// NumSlotsToVestLpShares is rounded down to a multiple of the slot window.
	NumSlotsToVestLpShares *uint64
}

func (p InitializePoolParams) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := writeUint64s(encoder, p.LpFeeInBps, p.ProtocolLpFeeAllocationInPct); err != nil {
		return err
	}
	for _, r := range p.FeeRecipients {
		if err := writeKey(encoder, r.Recipient); err != nil {
			return err
		}
		if err := encoder.WriteUint64(r.Shares, bin.LittleEndian); err != nil {
			return err
		}
	}
	return writeOptionalUint64(encoder, p.NumSlotsToVestLpShares)
}

func (p *InitializePoolParams) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	if err = readUint64s(decoder, &p.LpFeeInBps, &p.ProtocolLpFeeAllocationInPct); err != nil {
		return err
	}
	for i := range p.FeeRecipients {
		if err = readKey(decoder, &p.FeeRecipients[i].Recipient); err != nil {
			return err
		}
		if p.FeeRecipients[i].Shares, err = decoder.ReadUint64(bin.LittleEndian); err != nil {
			return err
		}
	}
	p.NumSlotsToVestLpShares, err = readOptionalUint64(decoder)
	return err
}

type AddLiquidityParams struct {
	DesiredBaseAmountIn  uint64
	DesiredQuoteAmountIn uint64
	// InitialLpShares is required on the first deposit and rejected afterwards.
	InitialLpShares *uint64
}

func (p AddLiquidityParams) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := writeUint64s(encoder, p.DesiredBaseAmountIn, p.DesiredQuoteAmountIn); err != nil {
		return err
	}
	return writeOptionalUint64(encoder, p.InitialLpShares)
}

func (p *AddLiquidityParams) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	if err = readUint64s(decoder, &p.DesiredBaseAmountIn, &p.DesiredQuoteAmountIn); err != nil {
		return err
	}
	p.InitialLpShares, err = readOptionalUint64(decoder)
	return err
}

type RemoveLiquidityParams struct {
	LpShares uint64
}

func (p RemoveLiquidityParams) MarshalWithEncoder(encoder *binary.Encoder) error {
	return encoder.WriteUint64(p.LpShares, bin.LittleEndian)
}

func (p *RemoveLiquidityParams) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	p.LpShares, err = decoder.ReadUint64(bin.LittleEndian)
	return err
}

type SwapParams struct {
	Side     amm.Side
	SwapType amm.SwapType
}

func (p SwapParams) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := p.Side.MarshalWithEncoder(encoder); err != nil {
		return err
	}
	return p.SwapType.MarshalWithEncoder(encoder)
}

func (p *SwapParams) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	if err := p.Side.UnmarshalWithDecoder(decoder); err != nil {
		return err
	}
	return p.SwapType.UnmarshalWithDecoder(decoder)
}

type RenounceLiquidityParams struct {
	AllowFeeWithdrawal bool
}

func (p RenounceLiquidityParams) MarshalWithEncoder(encoder *binary.Encoder) error {
	return encoder.WriteBool(p.AllowFeeWithdrawal)
}

func (p *RenounceLiquidityParams) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	p.AllowFeeWithdrawal, err = readStrictBool(decoder)
	return err
}

// EncodeInstructionData returns tag followed by the borsh encoding of params.
// A nil params encodes the bare tag.
func EncodeInstructionData(tag Instruction, params any) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(tag))
	if params != nil {
		if err := binary.NewBorshEncoder(buf).Encode(params); err != nil {
			return nil, fmt.Errorf("encode %s params: %w", tag, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeParams decodes data into params and rejects trailing bytes.
func DecodeParams(data []byte, params any) error {
	decoder := binary.NewBorshDecoder(data)
	if err := decoder.Decode(params); err != nil {
		return err
	}
	if decoder.HasRemaining() {
		return fmt.Errorf("%w: %d bytes", ErrTrailingBytes, decoder.Remaining())
	}
	return nil
}

// every instruction except Log starts with these four accounts
func prefixAccounts(pool, signer solanago.PublicKey, signerWritable bool) solanago.AccountMetaSlice {
	return solanago.AccountMetaSlice{
		solanago.Meta(ProgramID),
		solanago.Meta(LogAuthority),
		solanago.Meta(pool).WRITE(),
		solanago.NewAccountMeta(signer, signerWritable, true),
	}
}

func newInstruction(tag Instruction, params any, accounts solanago.AccountMetaSlice) (solanago.Instruction, error) {
	data, err := EncodeInstructionData(tag, params)
	if err != nil {
		return nil, err
	}
	return solanago.NewInstruction(ProgramID, accounts, data), nil
}

// VaultAccounts are the trader's token accounts and the pool vaults.
type VaultAccounts struct {
	BaseAccount  solanago.PublicKey
	QuoteAccount solanago.PublicKey
	BaseVault    solanago.PublicKey
	QuoteVault   solanago.PublicKey
}

func (v VaultAccounts) metas() solanago.AccountMetaSlice {
	return solanago.AccountMetaSlice{
		solanago.Meta(v.BaseAccount).WRITE(),
		solanago.Meta(v.QuoteAccount).WRITE(),
		solanago.Meta(v.BaseVault).WRITE(),
		solanago.Meta(v.QuoteVault).WRITE(),
		solanago.Meta(solanago.TokenProgramID),
	}
}

func NewInitializePoolInstruction(
	params InitializePoolParams,
	pool solanago.PublicKey,
	creator solanago.PublicKey,
	baseMint solanago.PublicKey,
	quoteMint solanago.PublicKey,
) (solanago.Instruction, error) {
	baseVault, _, err := DeriveVaultPDA(pool, baseMint)
	if err != nil {
		return nil, err
	}
	quoteVault, _, err := DeriveVaultPDA(pool, quoteMint)
	if err != nil {
		return nil, err
	}
	accounts := append(prefixAccounts(pool, creator, true),
		solanago.Meta(baseMint),
		solanago.Meta(quoteMint),
		solanago.Meta(baseVault).WRITE(),
		solanago.Meta(quoteVault).WRITE(),
		solanago.Meta(solanago.SystemProgramID),
		solanago.Meta(solanago.TokenProgramID),
	)
	return newInstruction(InstructionInitializePool, params, accounts)
}

func NewInitializeLpPositionInstruction(
	pool solanago.PublicKey,
	payer solanago.PublicKey,
	owner solanago.PublicKey,
) (solanago.Instruction, error) {
	lpPosition, _, err := DeriveLpPositionPDA(pool, owner)
	if err != nil {
		return nil, err
	}
	accounts := append(prefixAccounts(pool, payer, true),
		solanago.Meta(owner),
		solanago.Meta(lpPosition).WRITE(),
		solanago.Meta(solanago.SystemProgramID),
	)
	return newInstruction(InstructionInitializeLpPosition, nil, accounts)
}

func NewAddLiquidityInstruction(
	params AddLiquidityParams,
	pool solanago.PublicKey,
	trader solanago.PublicKey,
	vaults VaultAccounts,
) (solanago.Instruction, error) {
	return liquidityInstruction(InstructionAddLiquidity, params, pool, trader, vaults)
}

func NewRemoveLiquidityInstruction(
	params RemoveLiquidityParams,
	pool solanago.PublicKey,
	trader solanago.PublicKey,
	vaults VaultAccounts,
) (solanago.Instruction, error) {
	return liquidityInstruction(InstructionRemoveLiquidity, params, pool, trader, vaults)
}

func liquidityInstruction(tag Instruction, params any, pool, trader solanago.PublicKey, vaults VaultAccounts) (solanago.Instruction, error) {
	lpPosition, _, err := DeriveLpPositionPDA(pool, trader)
	if err != nil {
		return nil, err
	}
	accounts := append(prefixAccounts(pool, trader, false), solanago.Meta(lpPosition).WRITE())
	accounts = append(accounts, vaults.metas()...)
	return newInstruction(tag, params, accounts)
}

func NewSwapInstruction(
	params SwapParams,
	pool solanago.PublicKey,
	trader solanago.PublicKey,
	vaults VaultAccounts,
) (solanago.Instruction, error) {
	accounts := append(prefixAccounts(pool, trader, false), vaults.metas()...)
	return newInstruction(InstructionSwap, params, accounts)
}

func NewRenounceLiquidityInstruction(
	params RenounceLiquidityParams,
	pool solanago.PublicKey,
	trader solanago.PublicKey,
) (solanago.Instruction, error) {
	lpPosition, _, err := DeriveLpPositionPDA(pool, trader)
	if err != nil {
		return nil, err
	}
	accounts := append(prefixAccounts(pool, trader, false), solanago.Meta(lpPosition).WRITE())
	return newInstruction(InstructionRenounceLiquidity, params, accounts)
}

func NewWithdrawLpFeesInstruction(
	pool solanago.PublicKey,
	trader solanago.PublicKey,
	owner solanago.PublicKey,
	quoteAccount solanago.PublicKey,
	quoteVault solanago.PublicKey,
) (solanago.Instruction, error) {
	lpPosition, _, err := DeriveLpPositionPDA(pool, owner)
	if err != nil {
		return nil, err
	}
	accounts := append(prefixAccounts(pool, trader, false),
		solanago.Meta(owner),
		solanago.Meta(lpPosition).WRITE(),
		solanago.Meta(quoteAccount).WRITE(),
		solanago.Meta(quoteVault).WRITE(),
		solanago.Meta(solanago.TokenProgramID),
	)
	return newInstruction(InstructionWithdrawLpFees, nil, accounts)
}

func NewWithdrawProtocolFeesInstruction(
	pool solanago.PublicKey,
	recipient solanago.PublicKey,
	quoteAccount solanago.PublicKey,
	quoteVault solanago.PublicKey,
) (solanago.Instruction, error) {
	accounts := append(prefixAccounts(pool, recipient, false),
		solanago.Meta(quoteAccount).WRITE(),
		solanago.Meta(quoteVault).WRITE(),
		solanago.Meta(solanago.TokenProgramID),
	)
	return newInstruction(InstructionWithdrawProtocolFees, nil, accounts)
}

// NewLogInstruction is the self-invocation that records an encoded event.
func NewLogInstruction(event []byte) solanago.Instruction {
	data := append([]byte{byte(InstructionLog)}, event...)
	return solanago.NewInstruction(ProgramID, solanago.AccountMetaSlice{
		solanago.Meta(LogAuthority).SIGNER(),
	}, data)
}
