package program

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	plasma "github.com/krazyTry/plasma-go/gen/plasma"
)

var logAuthorityBump uint8

func init() {
	address, bump, err := solanago.FindProgramAddress([][]byte{[]byte(plasma.LogSeed)}, plasma.ProgramID)
	if err != nil {
		panic(err)
	}
	if !address.Equals(plasma.LogAuthority) {
		panic(fmt.Sprintf("log authority %s does not match derived %s", plasma.LogAuthority, address))
	}
	logAuthorityBump = bump
}

// recordEvent stamps payload with the pool's next sequence number, writes the
// pool back and emits the event as a log line and as a self invoked Log
// instruction. It returns the sequence number used.
func recordEvent(iv *invocation, pc *poolContext, payload plasma.EventPayload) (uint64, error) {
	header := pc.pool.Header
	seq := header.SequenceNumber
	pc.pool.Header.SequenceNumber++

	data, err := pc.pool.Encode()
	if err != nil {
		return 0, err
	}
	if err := iv.write(pc.meta, data); err != nil {
		return 0, err
	}

	event := plasma.Event{
		Header: plasma.EventHeader{
			SequenceNumber: seq,
			Slot:           iv.tx.slot,
			Timestamp:      iv.tx.timestamp,
			Pool:           pc.key(),
			Signer:         pc.signer,
			BaseDecimals:   uint8(header.Base.Decimals),
			QuoteDecimals:  uint8(header.Quote.Decimals),
		},
		Payload: payload,
	}
	encoded, err := plasma.EncodeEvent(event)
	if err != nil {
		return 0, err
	}
	iv.tx.logs = append(iv.tx.logs, plasma.EventLogLine(encoded))
	iv.events = append(iv.events, event)

	if err := iv.invokeSigned(plasma.NewLogInstruction(encoded), [][]byte{[]byte(plasma.LogSeed), {logAuthorityBump}}); err != nil {
		return 0, err
	}
	return seq, nil
}

// processLog accepts the event only from the log authority.
func processLog(iv *invocation) error {
	if len(iv.accounts) < 1 {
		return fmt.Errorf("log: %w", ErrNotEnoughAccounts)
	}
	authority := iv.accounts[0]
	if !authority.PublicKey.Equals(plasma.LogAuthority) {
		return fmt.Errorf("log: %w: %s", ErrInvalidSeeds, authority.PublicKey)
	}
	if !authority.IsSigner || !iv.isSigner(authority.PublicKey) {
		return fmt.Errorf("log: %w: %s", ErrMissingSignature, authority.PublicKey)
	}
	return nil
}
