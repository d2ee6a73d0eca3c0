package program

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	"github.com/krazyTry/plasma-go/solana"
)

// dispatch routes an invocation to the Plasma processor or to one of the
// builtin programs clients put in front of it.
func dispatch(iv *invocation) error {
	switch {
	case iv.programID.Equals(plasma.ProgramID):
		return process(iv)
	case iv.programID.Equals(solanago.SystemProgramID):
		return processSystem(iv)
	case iv.programID.Equals(solanago.SPLAssociatedTokenAccountProgramID):
		return processCreateATA(iv)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedProgram, iv.programID)
}

func supported(programID solanago.PublicKey) bool {
	return programID.Equals(plasma.ProgramID) ||
		programID.Equals(solanago.SystemProgramID) ||
		programID.Equals(solanago.SPLAssociatedTokenAccountProgramID)
}

// processSystem implements CreateAccount. Lamports are not tracked.
func processSystem(iv *invocation) error {
	ix, err := system.DecodeInstruction(iv.accounts, iv.data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	create, ok := ix.Impl.(*system.CreateAccount)
	if !ok {
		return fmt.Errorf("%w: system instruction %T", ErrUnsupportedProgram, ix.Impl)
	}
	funder, account := create.GetFundingAccount(), create.GetNewAccount()
	if !funder.IsSigner || !account.IsSigner {
		return fmt.Errorf("%w: create account %s", ErrMissingSignature, account.PublicKey)
	}
	if _, ok := iv.view.load(account.PublicKey); ok {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, account.PublicKey)
	}
	iv.view.store(account.PublicKey, Account{Owner: *create.Owner, Data: make([]byte, *create.Space)})
	return nil
}

// processCreateATA opens the associated token account of wallet for mint.
func processCreateATA(iv *invocation) error {
	if len(iv.accounts) < 4 {
		return fmt.Errorf("%w: create associated token account", ErrNotEnoughAccounts)
	}
	payer, ata, wallet, mint := iv.accounts[0], iv.accounts[1], iv.accounts[2], iv.accounts[3]
	if !payer.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingSignature, payer.PublicKey)
	}
	address, _, err := solanago.FindAssociatedTokenAddress(wallet.PublicKey, mint.PublicKey)
	if err != nil {
		return err
	}
	if !address.Equals(ata.PublicKey) {
		return fmt.Errorf("%w: associated token account %s, want %s", ErrInvalidSeeds, ata.PublicKey, address)
	}
	if _, err := iv.mint(mint.PublicKey); err != nil {
		return err
	}
	if _, ok := iv.view.load(address); ok {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, address)
	}
	data, err := solana.NewTokenAccount(address, mint.PublicKey, wallet.PublicKey, 0).Encode()
	if err != nil {
		return err
	}
	iv.view.store(address, Account{Owner: solanago.TokenProgramID, Data: data})
	return nil
}
