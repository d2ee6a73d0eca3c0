package solana

import (
	"context"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/rpc"
)

// PrepareTokenATA checks if ATA exists, creates it if it doesn't exist
func PrepareTokenATA(
	ctx context.Context,
	rpcClient *rpc.Client,
	owner solana.PublicKey,
	tokenMint solana.PublicKey,
	payer solana.PublicKey,
	instructions *[]solana.Instruction,
) (solana.PublicKey, error) {
	tokenATA, _, err := solana.FindAssociatedTokenAddress(
		owner,
		tokenMint,
	)
	if err != nil {
		return solana.PublicKey{}, err
	}

	exists, err := GetAccountInfo(ctx, rpcClient, tokenATA)
	if err != nil {
		return solana.PublicKey{}, err
	}

	if exists == nil {
		ix := associatedtokenaccount.NewCreateInstruction(
			payer, owner, tokenMint,
		).Build()
		*instructions = append(*instructions, ix)
	}
	return tokenATA, nil
}

// SplitInstructions moves ATA creation to the front and drops duplicate creations.
func SplitInstructions(oldInstructions []solana.Instruction) ([]solana.Instruction, []solana.Instruction) {
	var (
		startInstruction  []solana.Instruction
		middleInstruction []solana.Instruction
	)
loop:
	for _, v := range oldInstructions {
		if !v.ProgramID().Equals(solana.SPLAssociatedTokenAccountProgramID) {
			middleInstruction = append(middleInstruction, v)
			continue
		}
		vs := v.Accounts()
		for _, vv := range startInstruction {
			vvs := vv.Accounts()
			// payer, ata, wallet, mint
			if vs[0].PublicKey == vvs[0].PublicKey && vs[1].PublicKey == vvs[1].PublicKey &&
				vs[2].PublicKey == vvs[2].PublicKey && vs[3].PublicKey == vvs[3].PublicKey {
				continue loop
			}
		}
		startInstruction = append(startInstruction, v)
	}
	return startInstruction, middleInstruction
}

// MergeInstructions merges instructions
func MergeInstructions(oldInstructions []solana.Instruction) []solana.Instruction {
	startInstruction, middleInstruction := SplitInstructions(oldInstructions)
	return append(startInstruction, middleInstruction...)
}
