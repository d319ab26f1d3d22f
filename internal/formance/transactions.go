package formance

import (
	"context"
	"fmt"

	"copy-trade-ledger-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Numscript templates. Metadata is set inside the script via set_tx_meta()
// so the Formance transaction is self-describing. Wallet accounts may
// overdraft: mirroring can be switched on after balances already exist.

const numscriptWalletCredit = `vars {
  asset $asset
  number $amount
  account $wallet
  account $counter
  string $wallet_tx_id
  string $tx_type
  string $balance_account
  string $actor
  string $amount_human
}

send [$asset $amount] (
  source = $counter allowing unbounded overdraft
  destination = $wallet
)

set_tx_meta("event_type", $tx_type)
set_tx_meta("wallet_tx_id", $wallet_tx_id)
set_tx_meta("balance_account", $balance_account)
set_tx_meta("actor", $actor)
set_tx_meta("amount_human", $amount_human)
`

const numscriptWalletDebit = `vars {
  asset $asset
  number $amount
  account $wallet
  account $counter
  string $wallet_tx_id
  string $tx_type
  string $balance_account
  string $actor
  string $amount_human
}

send [$asset $amount] (
  source = $wallet allowing unbounded overdraft
  destination = $counter
)

set_tx_meta("event_type", $tx_type)
set_tx_meta("wallet_tx_id", $wallet_tx_id)
set_tx_meta("balance_account", $balance_account)
set_tx_meta("actor", $actor)
set_tx_meta("amount_human", $amount_human)
`

// walletAddress is the Formance account holding one balance column of a wallet
func walletAddress(walletId string, account models.BalanceAccount) string {
	if account == "" {
		account = models.BalanceAccountCash
	}
	return fmt.Sprintf("wallets:%s:%s", walletId, account)
}

// counterAddress is the platform account on the other side of a wallet transaction
func counterAddress(t models.TransactionType) string {
	switch t {
	case models.TransactionTypeDeposit:
		return "platform:deposits"
	case models.TransactionTypeWithdrawal:
		return "platform:withdrawals"
	case models.TransactionTypeCopyFee:
		return "platform:fees:copy"
	default:
		return "platform:allocations"
	}
}

func scriptFor(d models.Direction) string {
	if d == models.DirectionDebit {
		return numscriptWalletDebit
	}
	return numscriptWalletCredit
}

// smallestUnits converts amount to an integer count of the currency's
// smallest unit, refusing amounts finer than the currency precision.
func smallestUnits(amount decimal.Decimal, currency string) (string, error) {
	shifted := amount.Shift(int32(precisionFor(currency)))
	if !shifted.IsInteger() {
		return "", fmt.Errorf("amount %s exceeds %s precision of %d places", amount.String(), currency, precisionFor(currency))
	}
	return shifted.BigInt().String(), nil
}

// RecordWalletTransaction posts an approved wallet transaction to the ledger.
// The wallet transaction id is the Formance reference, so replays are no-ops.
func (m *Mirror) RecordWalletTransaction(ctx context.Context, tx models.WalletTransaction, currency string) error {
	if tx.Status != models.TransactionStatusApproved {
		zap.L().Debug("Skipping mirror of non-approved transaction",
			zap.String("transaction_id", tx.Id),
			zap.String("status", string(tx.Status)))
		return nil
	}

	smallAmt, err := smallestUnits(tx.Amount, currency)
	if err != nil {
		return err
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(tx.Id),
		Script: &shared.V2PostTransactionScript{
			Plain: scriptFor(tx.Direction),
			Vars: map[string]string{
				"asset":           formanceAsset(currency),
				"amount":          smallAmt,
				"wallet":          walletAddress(tx.WalletId, tx.Account),
				"counter":         counterAddress(tx.Type),
				"wallet_tx_id":    tx.Id,
				"tx_type":         string(tx.Type),
				"balance_account": string(tx.Account),
				"actor":           tx.Metadata.Actor,
				"amount_human":    tx.Amount.String(),
			},
		},
	}
	if !tx.ProcessedAt.IsZero() {
		postTx.Timestamp = &tx.ProcessedAt
	}

	_, err = m.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            m.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Debug("Wallet transaction already mirrored", zap.String("transaction_id", tx.Id))
			return nil
		}
		return fmt.Errorf("error mirroring wallet transaction %s: %w", tx.Id, err)
	}

	zap.L().Info("Wallet transaction mirrored to Formance",
		zap.String("transaction_id", tx.Id),
		zap.String("wallet_id", tx.WalletId),
		zap.String("type", string(tx.Type)),
		zap.String("amount", tx.Amount.String()))
	return nil
}
