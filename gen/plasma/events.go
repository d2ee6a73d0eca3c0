package plasma

import (
	"bytes"
	"encoding/base64"
	bin "encoding/binary"
	"fmt"

	binary "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"github.com/krazyTry/plasma-go/amm"
)

// EventHeaderSize is the encoded header without the leading kind byte.
const EventHeaderSize = 8 + 8 + 8 + 32 + 32 + 1 + 1

// EventHeader is shared by every event.
type EventHeader struct {
	SequenceNumber uint64
	Slot           uint64
	Timestamp      int64
	Pool           solanago.PublicKey
	Signer         solanago.PublicKey
	BaseDecimals   uint8
	QuoteDecimals  uint8
}

func (h EventHeader) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := writeUint64s(encoder, h.SequenceNumber, h.Slot); err != nil {
		return err
	}
	if err := encoder.WriteInt64(h.Timestamp, bin.LittleEndian); err != nil {
		return err
	}
	if err := writeKey(encoder, h.Pool); err != nil {
		return err
	}
	if err := writeKey(encoder, h.Signer); err != nil {
		return err
	}
	if err := encoder.WriteUint8(h.BaseDecimals); err != nil {
		return err
	}
	return encoder.WriteUint8(h.QuoteDecimals)
}

func (h *EventHeader) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	if err = readUint64s(decoder, &h.SequenceNumber, &h.Slot); err != nil {
		return err
	}
	if h.Timestamp, err = decoder.ReadInt64(bin.LittleEndian); err != nil {
		return err
	}
	if err = readKey(decoder, &h.Pool); err != nil {
		return err
	}
	if err = readKey(decoder, &h.Signer); err != nil {
		return err
	}
	if h.BaseDecimals, err = decoder.ReadUint8(); err != nil {
		return err
	}
	h.QuoteDecimals, err = decoder.ReadUint8()
	return err
}

// EventPayload is the instruction specific part of an event.
type EventPayload interface {
	Kind() Instruction
	MarshalWithEncoder(encoder *binary.Encoder) error
	UnmarshalWithDecoder(decoder *binary.Decoder) error
}

// Event is a borsh enum: the kind byte (the instruction tag), the header, then the payload.
type Event struct {
	Header  EventHeader
	Payload EventPayload
}

func (e Event) Kind() Instruction {
	return e.Payload.Kind()
}

func (e Event) MarshalWithEncoder(encoder *binary.Encoder) error {
	if e.Payload == nil {
		return fmt.Errorf("%w: nil payload", ErrUnknownEvent)
	}
	if err := encoder.WriteUint8(uint8(e.Payload.Kind())); err != nil {
		return err
	}
	if err := e.Header.MarshalWithEncoder(encoder); err != nil {
		return err
	}
	return e.Payload.MarshalWithEncoder(encoder)
}

func (e *Event) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	kind, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	payload, err := newPayload(Instruction(kind))
	if err != nil {
		return err
	}
	if err := e.Header.UnmarshalWithDecoder(decoder); err != nil {
		return err
	}
	if err := payload.UnmarshalWithDecoder(decoder); err != nil {
		return fmt.Errorf("decode %s event: %w", Instruction(kind), err)
	}
	e.Payload = payload
	return nil
}

func newPayload(kind Instruction) (EventPayload, error) {
	switch kind {
	case InstructionSwap:
		return new(SwapEvent), nil
	case InstructionAddLiquidity:
		return new(AddLiquidityEvent), nil
	case InstructionRemoveLiquidity:
		return new(RemoveLiquidityEvent), nil
	case InstructionRenounceLiquidity:
		return new(RenounceLiquidityEvent), nil
	case InstructionWithdrawLpFees:
		return new(WithdrawLpFeesEvent), nil
	case InstructionInitializeLpPosition:
		return new(InitializeLpPositionEvent), nil
	case InstructionInitializePool:
		return new(InitializePoolEvent), nil
	case InstructionWithdrawProtocolFees:
		return new(WithdrawProtocolFeesEvent), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownEvent, uint8(kind))
}

func EncodeEvent(e Event) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.NewBorshEncoder(buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := DecodeParams(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// DecodeEventBase64 decodes the payload of a "Program data:" log line.
func DecodeEventBase64(s string) (Event, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrUnknownEvent, err)
	}
	return DecodeEvent(data)
}

type SwapEvent struct {
	PreBaseLiquidity       uint64
	PreQuoteLiquidity      uint64
	PostBaseLiquidity      uint64
	PostQuoteLiquidity     uint64
	SnapshotBaseLiquidity  uint64
	SnapshotQuoteLiquidity uint64
	SwapResult             amm.SwapResult
}

func (*SwapEvent) Kind() Instruction { return InstructionSwap }

func (e *SwapEvent) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := writeUint64s(encoder,
		e.PreBaseLiquidity,
		e.PreQuoteLiquidity,
		e.PostBaseLiquidity,
		e.PostQuoteLiquidity,
		e.SnapshotBaseLiquidity,
		e.SnapshotQuoteLiquidity,
	); err != nil {
		return err
	}
	return e.SwapResult.MarshalWithEncoder(encoder)
}

func (e *SwapEvent) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	if err := readUint64s(decoder,
		&e.PreBaseLiquidity,
		&e.PreQuoteLiquidity,
		&e.PostBaseLiquidity,
		&e.PostQuoteLiquidity,
		&e.SnapshotBaseLiquidity,
		&e.SnapshotQuoteLiquidity,
	); err != nil {
		return err
	}
	return e.SwapResult.UnmarshalWithDecoder(decoder)
}

// LiquiditySnapshot is the pool and user state after a liquidity change.
type LiquiditySnapshot struct {
	PoolTotalLpShares                 uint64
	PoolTotalBaseLiquidity            uint64
	PoolTotalQuoteLiquidity           uint64
	SnapshotBaseLiquidity             uint64
	SnapshotQuoteLiquidity            uint64
	UserLpSharesAvailable             uint64
	UserLpSharesLocked                uint64
	UserLpSharesUnlockedForWithdrawal uint64
	UserTotalWithdrawableBase         uint64
	UserTotalWithdrawableQuote        uint64
}

type AddLiquidityEvent struct {
	LiquiditySnapshot
	UserLpSharesReceived uint64
	UserBaseDeposited    uint64
	UserQuoteDeposited   uint64
}

func (*AddLiquidityEvent) Kind() Instruction { return InstructionAddLiquidity }

func (e *AddLiquidityEvent) fields() []*uint64 {
	return []*uint64{
		&e.PoolTotalLpShares,
		&e.PoolTotalBaseLiquidity,
		&e.PoolTotalQuoteLiquidity,
		&e.SnapshotBaseLiquidity,
		&e.SnapshotQuoteLiquidity,
		&e.UserLpSharesReceived,
		&e.UserLpSharesAvailable,
		&e.UserLpSharesLocked,
		&e.UserLpSharesUnlockedForWithdrawal,
		&e.UserBaseDeposited,
		&e.UserQuoteDeposited,
		&e.UserTotalWithdrawableBase,
		&e.UserTotalWithdrawableQuote,
	}
}

func (e *AddLiquidityEvent) MarshalWithEncoder(encoder *binary.Encoder) error {
	return writeFields(encoder, e.fields())
}

func (e *AddLiquidityEvent) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	return readUint64s(decoder, e.fields()...)
}

type RemoveLiquidityEvent struct {
	LiquiditySnapshot
	UserLpSharesBurned uint64
	UserBaseWithdrawn  uint64
	UserQuoteWithdrawn uint64
}

func (*RemoveLiquidityEvent) Kind() Instruction { return InstructionRemoveLiquidity }

func (e *RemoveLiquidityEvent) fields() []*uint64 {
	return []*uint64{
		&e.PoolTotalLpShares,
		&e.PoolTotalBaseLiquidity,
		&e.PoolTotalQuoteLiquidity,
		&e.SnapshotBaseLiquidity,
		&e.SnapshotQuoteLiquidity,
		&e.UserLpSharesBurned,
		&e.UserLpSharesAvailable,
		&e.UserLpSharesLocked,
		&e.UserLpSharesUnlockedForWithdrawal,
		&e.UserBaseWithdrawn,
		&e.UserQuoteWithdrawn,
		&e.UserTotalWithdrawableBase,
		&e.UserTotalWithdrawableQuote,
	}
}

func (e *RemoveLiquidityEvent) MarshalWithEncoder(encoder *binary.Encoder) error {
	return writeFields(encoder, e.fields())
}

func (e *RemoveLiquidityEvent) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	return readUint64s(decoder, e.fields()...)
}

func writeFields(encoder *binary.Encoder, fields []*uint64) error {
	for _, f := range fields {
		if err := encoder.WriteUint64(*f, bin.LittleEndian); err != nil {
			return err
		}
	}
	return nil
}

type RenounceLiquidityEvent struct {
	AllowFeeWithdrawal bool
}

func (*RenounceLiquidityEvent) Kind() Instruction { return InstructionRenounceLiquidity }

func (e *RenounceLiquidityEvent) MarshalWithEncoder(encoder *binary.Encoder) error {
	return encoder.WriteBool(e.AllowFeeWithdrawal)
}

func (e *RenounceLiquidityEvent) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	e.AllowFeeWithdrawal, err = readStrictBool(decoder)
	return err
}

type WithdrawLpFeesEvent struct {
	FeesWithdrawn uint64
}

func (*WithdrawLpFeesEvent) Kind() Instruction { return InstructionWithdrawLpFees }

func (e *WithdrawLpFeesEvent) MarshalWithEncoder(encoder *binary.Encoder) error {
	return encoder.WriteUint64(e.FeesWithdrawn, bin.LittleEndian)
}

func (e *WithdrawLpFeesEvent) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	e.FeesWithdrawn, err = decoder.ReadUint64(bin.LittleEndian)
	return err
}

type InitializeLpPositionEvent struct {
	Owner solanago.PublicKey
}

func (*InitializeLpPositionEvent) Kind() Instruction { return InstructionInitializeLpPosition }

func (e *InitializeLpPositionEvent) MarshalWithEncoder(encoder *binary.Encoder) error {
	return writeKey(encoder, e.Owner)
}

func (e *InitializeLpPositionEvent) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	return readKey(decoder, &e.Owner)
}

type InitializePoolEvent struct {
	LpFeeInBps       uint64
	ProtocolFeeInPct uint64
	FeeRecipients    [MaxFeeRecipients]ProtocolFeeRecipientParams
}

func (*InitializePoolEvent) Kind() Instruction { return InstructionInitializePool }

func (e *InitializePoolEvent) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := writeUint64s(encoder, e.LpFeeInBps, e.ProtocolFeeInPct); err != nil {
		return err
	}
	for _, r := range e.FeeRecipients {
		if err := writeKey(encoder, r.Recipient); err != nil {
			return err
		}
		if err := encoder.WriteUint64(r.Shares, bin.LittleEndian); err != nil {
			return err
		}
	}
	return nil
}

func (e *InitializePoolEvent) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	if err = readUint64s(decoder, &e.LpFeeInBps, &e.ProtocolFeeInPct); err != nil {
		return err
	}
	for i := range e.FeeRecipients {
		if err = readKey(decoder, &e.FeeRecipients[i].Recipient); err != nil {
			return err
		}
		if e.FeeRecipients[i].Shares, err = decoder.ReadUint64(bin.LittleEndian); err != nil {
			return err
		}
	}
	return nil
}

type WithdrawProtocolFeesEvent struct {
	Recipient     solanago.PublicKey
	FeesWithdrawn uint64
}

func (*WithdrawProtocolFeesEvent) Kind() Instruction { return InstructionWithdrawProtocolFees }

func (e *WithdrawProtocolFeesEvent) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := writeKey(encoder, e.Recipient); err != nil {
		return err
	}
	return encoder.WriteUint64(e.FeesWithdrawn, bin.LittleEndian)
}

func (e *WithdrawProtocolFeesEvent) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	if err = readKey(decoder, &e.Recipient); err != nil {
		return err
	}
	e.FeesWithdrawn, err = decoder.ReadUint64(bin.LittleEndian)
	return err
}
