package plasma

import (
	bin "encoding/binary"
	"fmt"

	binary "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"github.com/krazyTry/plasma-go/amm"
)

var (
	PoolAccountDiscriminator       = [8]byte{116, 210, 187, 119, 196, 196, 52, 137}
	LpPositionAccountDiscriminator = [8]byte{101, 177, 26, 44, 161, 242, 87, 136}
)

// MaxFeeRecipients is the fixed number of protocol fee recipient slots.
const MaxFeeRecipients = 3

// Encoded sizes in bytes.
const (
	TokenParamsSize           = 4 + 4 + 32 + 32
	ProtocolFeeRecipientSize  = 32 + 8 + 8 + 8
	ProtocolFeeRecipientsSize = MaxFeeRecipients*ProtocolFeeRecipientSize + 12*8
	PoolHeaderSize            = 8 + 8 + 2*TokenParamsSize + ProtocolFeeRecipientsSize + 13*8
	PoolAccountSize           = PoolHeaderSize + amm.AmmSize
	LpPositionAccountSize     = 8 + 32 + 32 + 8 + amm.LpPositionSize
)

// Field offsets used by getProgramAccounts memcmp filters.
const (
	LpPositionAuthorityOffset = 8
	LpPositionPoolOffset      = 8 + 32
)

func writeKey(encoder *binary.Encoder, key solanago.PublicKey) error {
	return encoder.WriteBytes(key[:], false)
}

func readKey(decoder *binary.Decoder, key *solanago.PublicKey) error {
	b, err := decoder.ReadNBytes(solanago.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(key[:], b)
	return nil
}

func writeUint64s(encoder *binary.Encoder, values ...uint64) error {
	for _, v := range values {
		if err := encoder.WriteUint64(v, bin.LittleEndian); err != nil {
			return err
		}
	}
	return nil
}

func readUint64s(decoder *binary.Decoder, dst ...*uint64) (err error) {
	for _, d := range dst {
		if *d, err = decoder.ReadUint64(bin.LittleEndian); err != nil {
			return err
		}
	}
	return nil
}

func writePadding(encoder *binary.Encoder, words int) error {
	return encoder.WriteBytes(make([]byte, words*8), false)
}

type TokenParams struct {
	Decimals  uint32
	VaultBump uint32
	Mint      solanago.PublicKey
	Vault     solanago.PublicKey
}

func (p TokenParams) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := encoder.WriteUint32(p.Decimals, bin.LittleEndian); err != nil {
		return err
	}
	if err := encoder.WriteUint32(p.VaultBump, bin.LittleEndian); err != nil {
		return err
	}
	if err := writeKey(encoder, p.Mint); err != nil {
		return err
	}
	return writeKey(encoder, p.Vault)
}

func (p *TokenParams) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	if p.Decimals, err = decoder.ReadUint32(bin.LittleEndian); err != nil {
		return err
	}
	if p.VaultBump, err = decoder.ReadUint32(bin.LittleEndian); err != nil {
		return err
	}
	if err = readKey(decoder, &p.Mint); err != nil {
		return err
	}
	return readKey(decoder, &p.Vault)
}

// ProtocolFeeRecipient accrues its share of the protocol fees.
// An unused slot has zero shares.
type ProtocolFeeRecipient struct {
	Recipient                 solanago.PublicKey
	Shares                    uint64
	TotalAccumulatedQuoteFees uint64
	CollectedQuoteFees        uint64
}

// Withdrawable is what the recipient can still collect.
func (r ProtocolFeeRecipient) Withdrawable() uint64 {
	if r.CollectedQuoteFees >= r.TotalAccumulatedQuoteFees {
		return 0
	}
	return r.TotalAccumulatedQuoteFees - r.CollectedQuoteFees
}

func (r ProtocolFeeRecipient) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := writeKey(encoder, r.Recipient); err != nil {
		return err
	}
	return writeUint64s(encoder, r.Shares, r.TotalAccumulatedQuoteFees, r.CollectedQuoteFees)
}

func (r *ProtocolFeeRecipient) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	if err := readKey(decoder, &r.Recipient); err != nil {
		return err
	}
	return readUint64s(decoder, &r.Shares, &r.TotalAccumulatedQuoteFees, &r.CollectedQuoteFees)
}

type ProtocolFeeRecipients struct {
	Recipients [MaxFeeRecipients]ProtocolFeeRecipient
}

// Index returns the slot of recipient, or -1.
func (r ProtocolFeeRecipients) Index(recipient solanago.PublicKey) int {
	for i, v := range r.Recipients {
		if v.Recipient.Equals(recipient) {
			return i
		}
	}
	return -1
}

func (r ProtocolFeeRecipients) MarshalWithEncoder(encoder *binary.Encoder) error {
	for _, v := range r.Recipients {
		if err := v.MarshalWithEncoder(encoder); err != nil {
			return err
		}
	}
	return writePadding(encoder, 12)
}

func (r *ProtocolFeeRecipients) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	for i := range r.Recipients {
		if err := r.Recipients[i].UnmarshalWithDecoder(decoder); err != nil {
			return err
		}
	}
	return decoder.SkipBytes(12 * 8)
}

// PoolHeader holds the fields fixed at pool creation plus the event sequence number.
type PoolHeader struct {
	Discriminator  [8]byte
	SequenceNumber uint64
	Base           TokenParams
	Quote          TokenParams
	FeeRecipients  ProtocolFeeRecipients
}

func (h PoolHeader) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := encoder.WriteBytes(h.Discriminator[:], false); err != nil {
		return err
	}
	if err := encoder.WriteUint64(h.SequenceNumber, bin.LittleEndian); err != nil {
		return err
	}
	if err := h.Base.MarshalWithEncoder(encoder); err != nil {
		return err
	}
	if err := h.Quote.MarshalWithEncoder(encoder); err != nil {
		return err
	}
	if err := h.FeeRecipients.MarshalWithEncoder(encoder); err != nil {
		return err
	}
	return writePadding(encoder, 13)
}

func (h *PoolHeader) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	disc, err := decoder.ReadNBytes(8)
	if err != nil {
		return err
	}
	copy(h.Discriminator[:], disc)
	if h.SequenceNumber, err = decoder.ReadUint64(bin.LittleEndian); err != nil {
		return err
	}
	if err = h.Base.UnmarshalWithDecoder(decoder); err != nil {
		return err
	}
	if err = h.Quote.UnmarshalWithDecoder(decoder); err != nil {
		return err
	}
	if err = h.FeeRecipients.UnmarshalWithDecoder(decoder); err != nil {
		return err
	}
	return decoder.SkipBytes(13 * 8)
}

// PoolAccount is the on-chain pool: header followed by the engine state.
type PoolAccount struct {
	Header PoolHeader
	Amm    amm.Amm
}

// Initialized reports whether InitializePool has run on the account.
func (p PoolAccount) Initialized() bool {
	return p.Header.Discriminator == PoolAccountDiscriminator
}

func (p PoolAccount) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := p.Header.MarshalWithEncoder(encoder); err != nil {
		return err
	}
	return p.Amm.MarshalWithEncoder(encoder)
}

func (p *PoolAccount) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	if err := p.Header.UnmarshalWithDecoder(decoder); err != nil {
		return err
	}
	return p.Amm.UnmarshalWithDecoder(decoder)
}

// Encode returns the PoolAccountSize bytes of the account.
func (p PoolAccount) Encode() ([]byte, error) {
	return binary.MarshalBorsh(p)
}

// DecodePoolAccount decodes an initialized pool and checks its discriminator.
func DecodePoolAccount(data []byte) (*PoolAccount, error) {
	if len(data) < PoolAccountSize {
		return nil, fmt.Errorf("%w: pool account has %d bytes, want %d", ErrInvalidAccountSize, len(data), PoolAccountSize)
	}
	var pool PoolAccount
	if err := binary.NewBorshDecoder(data).Decode(&pool); err != nil {
		return nil, err
	}
	if !pool.Initialized() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDiscriminator, pool.Header.Discriminator)
	}
	return &pool, nil
}

type LpPositionStatus uint64

const (
	LpPositionStatusUninitialized LpPositionStatus = iota
	LpPositionStatusActive
	LpPositionStatusRenouncedWithBurnedFees
	LpPositionStatusRenouncedWithFeeWithdrawal
)

func (s LpPositionStatus) String() string {
	switch s {
	case LpPositionStatusUninitialized:
		return "Uninitialized"
	case LpPositionStatusActive:
		return "Active"
	case LpPositionStatusRenouncedWithBurnedFees:
		return "RenouncedWithBurnedFees"
	case LpPositionStatusRenouncedWithFeeWithdrawal:
		return "RenouncedWithFeeWithdrawal"
	default:
		return fmt.Sprintf("LpPositionStatus(%d)", uint64(s))
	}
}

func (s LpPositionStatus) Valid() bool {
	return s <= LpPositionStatusRenouncedWithFeeWithdrawal
}

// Renounced positions can no longer add or remove liquidity.
func (s LpPositionStatus) Renounced() bool {
	return s == LpPositionStatusRenouncedWithBurnedFees || s == LpPositionStatusRenouncedWithFeeWithdrawal
}

// CanWithdrawFees is false only for positions renounced with their fees burned.
func (s LpPositionStatus) CanWithdrawFees() bool {
	return s != LpPositionStatusRenouncedWithBurnedFees
}

type LpPositionAccount struct {
	Discriminator [8]byte
	Authority     solanago.PublicKey
	Pool          solanago.PublicKey
	Status        LpPositionStatus
	Position      amm.LpPosition
}

func (a LpPositionAccount) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := encoder.WriteBytes(a.Discriminator[:], false); err != nil {
		return err
	}
	if err := writeKey(encoder, a.Authority); err != nil {
		return err
	}
	if err := writeKey(encoder, a.Pool); err != nil {
		return err
	}
	if err := encoder.WriteUint64(uint64(a.Status), bin.LittleEndian); err != nil {
		return err
	}
	return a.Position.MarshalWithEncoder(encoder)
}

func (a *LpPositionAccount) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	disc, err := decoder.ReadNBytes(8)
	if err != nil {
		return err
	}
	copy(a.Discriminator[:], disc)
	if err := readKey(decoder, &a.Authority); err != nil {
		return err
	}
	if err := readKey(decoder, &a.Pool); err != nil {
		return err
	}
	status, err := decoder.ReadUint64(bin.LittleEndian)
	if err != nil {
		return err
	}
	a.Status = LpPositionStatus(status)
	if !a.Status.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, status)
	}
	return a.Position.UnmarshalWithDecoder(decoder)
}

func (a LpPositionAccount) Encode() ([]byte, error) {
	return binary.MarshalBorsh(a)
}

// DecodeLpPositionAccount decodes an LP position and checks its discriminator.
func DecodeLpPositionAccount(data []byte) (*LpPositionAccount, error) {
	if len(data) < LpPositionAccountSize {
		return nil, fmt.Errorf("%w: lp position has %d bytes, want %d", ErrInvalidAccountSize, len(data), LpPositionAccountSize)
	}
	var position LpPositionAccount
	if err := binary.NewBorshDecoder(data).Decode(&position); err != nil {
		return nil, err
	}
	if position.Discriminator != LpPositionAccountDiscriminator {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDiscriminator, position.Discriminator)
	}
	return &position, nil
}
