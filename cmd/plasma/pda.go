package main

import (
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	plasma "github.com/krazyTry/plasma-go/gen/plasma"
)

type pdaOutput struct {
	LogAuthority string            `json:"log_authority"`
	Pool         string            `json:"pool,omitempty"`
	Vaults       map[string]string `json:"vaults,omitempty"`
	LpPositions  map[string]string `json:"lp_positions,omitempty"`
}

func newPDACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pda [pool]",
		Short: "Derive the log authority, vault and LP position addresses",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPDA,
	}
	cmd.Flags().StringSlice("mint", nil, "mints to derive pool vaults for")
	cmd.Flags().StringSlice("owner", nil, "owners to derive LP positions for")
	return cmd
}

func runPDA(cmd *cobra.Command, args []string) error {
	logAuthority, err := plasma.DeriveLogAuthorityPDA()
	if err != nil {
		return err
	}
	out := pdaOutput{LogAuthority: logAuthority.String()}
	if len(args) == 0 {
		return printJSON(cmd.OutOrStdout(), out)
	}

	pool, err := parseKey("pool", args[0])
	if err != nil {
		return err
	}
	out.Pool = pool.String()

	mints, _ := cmd.Flags().GetStringSlice("mint")
	owners, _ := cmd.Flags().GetStringSlice("owner")
	if out.Vaults, err = derive("mint", mints, func(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
		return plasma.DeriveVaultPDA(pool, mint)
	}); err != nil {
		return err
	}
	if out.LpPositions, err = derive("owner", owners, func(owner solana.PublicKey) (solana.PublicKey, uint8, error) {
		return plasma.DeriveLpPositionPDA(pool, owner)
	}); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func derive(name string, keys []string, fn func(solana.PublicKey) (solana.PublicKey, uint8, error)) (map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	derived := make(map[string]string, len(keys))
	for _, value := range keys {
		key, err := parseKey(name, value)
		if err != nil {
			return nil, err
		}
		address, _, err := fn(key)
		if err != nil {
			return nil, err
		}
		derived[key.String()] = address.String()
	}
	return derived, nil
}
