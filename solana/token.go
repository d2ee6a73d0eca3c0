package solana

import (
	"fmt"

	binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Token represents a Solana token with mint information and owner
type Token struct {
	token.Mint
	// Address of the mint
	Address solana.PublicKey
	// Owner program of the mint account
	Owner solana.PublicKey
}

// DecodeMint decodes the SPL mint layout in data.
// token.Mint.Decode discards its result, so the decoder is driven directly.
func DecodeMint(address solana.PublicKey, data []byte) (*Token, error) {
	if len(data) < token.MINT_SIZE {
		return nil, fmt.Errorf("mint %s has %d bytes, want %d", address, len(data), token.MINT_SIZE)
	}
	t := &Token{Address: address}
	if err := binary.NewBinDecoder(data).Decode(&t.Mint); err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", address, err)
	}
	if !t.IsInitialized {
		return nil, fmt.Errorf("mint %s is not initialized", address)
	}
	return t, nil
}

// EncodeMint returns the SPL layout of an initialized mint without authorities.
func EncodeMint(decimals uint8, supply uint64) ([]byte, error) {
	return binary.MarshalBin(token.Mint{
		Supply:        supply,
		Decimals:      decimals,
		IsInitialized: true,
	})
}
