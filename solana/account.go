package solana

import (
	"fmt"

	binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// TokenAccountSize is the length of an SPL token account.
const TokenAccountSize = 165

// TokenAccount is a decoded SPL token account and its address.
type TokenAccount struct {
	Address solana.PublicKey
	token.Account
}

// Frozen accounts can neither send nor receive.
func (a TokenAccount) Frozen() bool {
	return a.State == token.Frozen
}

// NewTokenAccount returns an initialized account holding amount of mint.
func NewTokenAccount(address, mint, owner solana.PublicKey, amount uint64) TokenAccount {
	return TokenAccount{
		Address: address,
		Account: token.Account{
			Mint:   mint,
			Owner:  owner,
			Amount: amount,
			State:  token.Initialized,
		},
	}
}

// DecodeTokenAccount decodes the SPL layout in data.
func DecodeTokenAccount(address solana.PublicKey, data []byte) (*TokenAccount, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("token account %s has %d bytes, want %d", address, len(data), TokenAccountSize)
	}
	account := &TokenAccount{Address: address}
	if err := binary.NewBinDecoder(data).Decode(&account.Account); err != nil {
		return nil, fmt.Errorf("decode token account %s: %w", address, err)
	}
	if account.State == token.Uninitialized {
		return nil, fmt.Errorf("token account %s is not initialized", address)
	}
	return account, nil
}

// Encode returns the SPL layout of the account.
func (a TokenAccount) Encode() ([]byte, error) {
	return binary.MarshalBin(a.Account)
}
