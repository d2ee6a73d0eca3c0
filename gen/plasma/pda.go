package plasma

import solanago "github.com/gagliardetto/solana-go"

const (
	LogSeed        = "log"
	VaultSeed      = "vault"
	LpPositionSeed = "lp_position"
)

// DeriveLogAuthorityPDA derives the log authority from ["log"].
func DeriveLogAuthorityPDA() (solanago.PublicKey, error) {
	address, _, err := solanago.FindProgramAddress([][]byte{[]byte(LogSeed)}, ProgramID)
	if err != nil {
		return solanago.PublicKey{}, err
	}
	return address, nil
}

// DeriveVaultPDA derives the token vault of mint in pool. Vaults own themselves.
func DeriveVaultPDA(pool, mint solanago.PublicKey) (solanago.PublicKey, uint8, error) {
	return solanago.FindProgramAddress([][]byte{
		[]byte(VaultSeed),
		pool.Bytes(),
		mint.Bytes(),
	}, ProgramID)
}

// DeriveLpPositionPDA derives the LP position of owner in pool.
func DeriveLpPositionPDA(pool, owner solanago.PublicKey) (solanago.PublicKey, uint8, error) {
	return solanago.FindProgramAddress([][]byte{
		[]byte(LpPositionSeed),
		pool.Bytes(),
		owner.Bytes(),
	}, ProgramID)
}
