package program

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	"github.com/krazyTry/plasma-go/u128"
)

// UpdateProtocolFeeRecipients splits cumulativeProtocolFees across the
// recipients by shares. Each recipient's accumulated total only depends on
// the cumulative counter, so the split never drifts between swaps.
func UpdateProtocolFeeRecipients(r *plasma.ProtocolFeeRecipients, cumulativeProtocolFees uint64) error {
	var totalShares uint64
	for _, v := range r.Recipients {
		if totalShares+v.Shares < totalShares {
			return fmt.Errorf("%w: shares overflow", ErrInvalidFeeRecipientShare)
		}
		totalShares += v.Shares
	}
	if totalShares == 0 {
		return ErrInvalidFeeRecipientShare
	}

	var distributed uint64
	next := *r
	for i := range next.Recipients {
		share := u128.MulDiv(u128.From(cumulativeProtocolFees), u128.From(next.Recipients[i].Shares), u128.From(totalShares))
		next.Recipients[i].TotalAccumulatedQuoteFees = share.Uint64()
		distributed += next.Recipients[i].TotalAccumulatedQuoteFees
	}
	if distributed > cumulativeProtocolFees {
		return fmt.Errorf("%w: %d > %d", ErrProtocolFeeMismatch, distributed, cumulativeProtocolFees)
	}
	*r = next
	return nil
}

func processWithdrawProtocolFees(iv *invocation, pc *poolContext, data []byte) (plasma.EventPayload, error) {
	if len(data) != 0 {
		return nil, fmt.Errorf("%w: %d bytes", plasma.ErrTrailingBytes, len(data))
	}
	if len(pc.rest) < 3 {
		return nil, fmt.Errorf("%w: withdraw protocol fees", ErrNotEnoughAccounts)
	}
	quoteAccount, quoteVault := pc.rest[0], pc.rest[1]
	header := pc.pool.Header
	if _, err := traderTokenAccount(iv, quoteAccount, header.Quote.Mint, pc.signer); err != nil {
		return nil, err
	}
	if err := checkVault(quoteVault, header.Quote); err != nil {
		return nil, err
	}
	if !pc.rest[2].PublicKey.Equals(solanago.TokenProgramID) {
		return nil, fmt.Errorf("%w: token program %s", ErrIncorrectProgramID, pc.rest[2].PublicKey)
	}

	i := header.FeeRecipients.Index(pc.signer)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorizedRecipient, pc.signer)
	}
	recipient := &pc.pool.Header.FeeRecipients.Recipients[i]
	amount := recipient.Withdrawable()
	recipient.CollectedQuoteFees = recipient.TotalAccumulatedQuoteFees

	if err := withdraw(iv, pc, quoteVault, quoteAccount, header.Quote, amount); err != nil {
		return nil, err
	}
	iv.log("withdrew %d quote in protocol fees", amount)
	return &plasma.WithdrawProtocolFeesEvent{Recipient: pc.signer, FeesWithdrawn: amount}, nil
}

func processWithdrawLpFees(iv *invocation, pc *poolContext, data []byte) (plasma.EventPayload, error) {
	if len(data) != 0 {
		return nil, fmt.Errorf("%w: %d bytes", plasma.ErrTrailingBytes, len(data))
	}
	if len(pc.rest) < 5 {
		return nil, fmt.Errorf("%w: withdraw lp fees", ErrNotEnoughAccounts)
	}
	owner := pc.rest[0].PublicKey
	positionMeta, quoteAccount, quoteVault := pc.rest[1], pc.rest[2], pc.rest[3]
	if !pc.rest[4].PublicKey.Equals(solanago.TokenProgramID) {
		return nil, fmt.Errorf("%w: token program %s", ErrIncorrectProgramID, pc.rest[4].PublicKey)
	}
	if !owner.Equals(pc.signer) {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, pc.signer)
	}

	position, err := loadLpPosition(iv, positionMeta, pc.key(), owner)
	if err != nil {
		return nil, err
	}
	if !position.Status.CanWithdrawFees() {
		return nil, ErrFeesBurned
	}
	header := pc.pool.Header
	if _, err := traderTokenAccount(iv, quoteAccount, header.Quote.Mint, owner); err != nil {
		return nil, err
	}
	if err := checkVault(quoteVault, header.Quote); err != nil {
		return nil, err
	}

	fees, err := position.Position.CollectFees(liquiditySlot(iv), &pc.pool.Amm)
	if err != nil {
		return nil, err
	}
	if err := withdraw(iv, pc, quoteVault, quoteAccount, header.Quote, fees); err != nil {
		return nil, err
	}
	if err := storeLpPosition(iv, positionMeta, position); err != nil {
		return nil, err
	}
	iv.log("withdrew %d quote in lp fees", fees)
	return &plasma.WithdrawLpFeesEvent{FeesWithdrawn: fees}, nil
}
