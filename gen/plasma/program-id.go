package plasma

import solanago "github.com/gagliardetto/solana-go"

// ProgramID is the Plasma AMM program address.
var ProgramID = solanago.MustPublicKeyFromBase58("5JgPhjG6RAckBX5yNdjoPinsexfHaQ4jnxbMbnaVX4iR")

// LogAuthority is the PDA ["log"] that signs the self-invoked Log instruction.
var LogAuthority = solanago.MustPublicKeyFromBase58("5nMvSZRR9Fgxmj4Xv2wnXrG67TMsVqG4jUN5188wgyfB")
