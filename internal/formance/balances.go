package formance

import (
	"context"
	"fmt"
	"math/big"

	"copy-trade-ledger-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletBalance returns the mirrored balance of one wallet balance account.
// Used to compare the mirror against the relational ledger.
func (m *Mirror) WalletBalance(ctx context.Context, walletId string, account models.BalanceAccount, currency string) (decimal.Decimal, error) {
	addr := walletAddress(walletId, account)
	zap.L().Debug("Getting mirrored balance from Formance", zap.String("address", addr))

	resp, err := m.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  m.ledger,
		Address: addr,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isErrorCode(err, shared.V2ErrorsEnumNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get account %s: %w", addr, err)
	}

	fAsset := formanceAsset(currency)
	bal := volumeBalance(resp.V2AccountResponse.Data.Volumes, fAsset)
	return bigIntToDecimal(bal, assetSymbol(fAsset)), nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts a *big.Int in smallest-unit to a human-readable decimal.
func bigIntToDecimal(raw *big.Int, symbol string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(precisionFor(symbol)))
}

// assetSymbol extracts the symbol from a Formance asset like "USD/2".
func assetSymbol(fAsset string) string {
	for i, c := range fAsset {
		if c == '/' {
			return fAsset[:i]
		}
	}
	return fAsset
}
