package formance

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"copy-trade-ledger-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestFormanceAsset(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"USD", "USD/2"},
		{"USDT", "USDT/6"},
		{"BTC", "BTC/8"},
		{"UNKNOWN", "UNKNOWN/6"}, // default precision
	}
	for _, tt := range tests {
		if got := formanceAsset(tt.symbol); got != tt.want {
			t.Errorf("formanceAsset(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestAssetSymbol(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"USD/2", "USD"},
		{"BTC/8", "BTC"},
		{"PLAIN", "PLAIN"},
	}
	for _, tt := range tests {
		if got := assetSymbol(tt.input); got != tt.want {
			t.Errorf("assetSymbol(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBigIntToDecimal(t *testing.T) {
	// 12_345 cents = 123.45
	result := bigIntToDecimal(big.NewInt(12_345), "USD")
	if !result.Equal(decimal.RequireFromString("123.45")) {
		t.Errorf("expected 123.45, got %s", result.String())
	}

	result = bigIntToDecimal(big.NewInt(100_000_000), "BTC")
	if !result.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected 1, got %s", result.String())
	}

	if result = bigIntToDecimal(nil, "USD"); !result.IsZero() {
		t.Errorf("expected 0, got %s", result.String())
	}
}

func TestVolumeBalance(t *testing.T) {
	vols := map[string]shared.V2Volume{
		"USD/2": {Input: big.NewInt(10_000), Output: big.NewInt(2_500)},
	}
	if got := volumeBalance(vols, "USD/2"); got == nil || got.Int64() != 7_500 {
		t.Errorf("expected 7500, got %v", got)
	}
	if got := volumeBalance(vols, "EUR/2"); got != nil {
		t.Errorf("expected nil for missing asset, got %v", got)
	}
}

func TestSmallestUnits(t *testing.T) {
	got, err := smallestUnits(decimal.RequireFromString("950.5"), "USD")
	if err != nil || got != "95050" {
		t.Errorf("smallestUnits = %q, %v; want 95050", got, err)
	}
	if _, err := smallestUnits(decimal.RequireFromString("0.001"), "USD"); err == nil {
		t.Error("expected an error for sub-cent USD amount")
	}
}

func TestAddresses(t *testing.T) {
	if got := walletAddress("w1", ""); got != "wallets:w1:cash" {
		t.Errorf("walletAddress default = %q", got)
	}
	if got := walletAddress("w1", models.BalanceAccountProfit); got != "wallets:w1:profit_loss" {
		t.Errorf("walletAddress profit = %q", got)
	}
	if got := counterAddress(models.TransactionTypeCopyFee); got != "platform:fees:copy" {
		t.Errorf("counterAddress copy_fee = %q", got)
	}
	if got := counterAddress(models.TransactionTypeDeposit); got != "platform:deposits" {
		t.Errorf("counterAddress deposit = %q", got)
	}
}

func TestScriptFor(t *testing.T) {
	if !strings.Contains(scriptFor(models.DirectionDebit), "source = $wallet") {
		t.Error("debit script should draw from the wallet")
	}
	if !strings.Contains(scriptFor(models.DirectionCredit), "destination = $wallet") {
		t.Error("credit script should pay into the wallet")
	}
}

func TestIsConflictError(t *testing.T) {
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}
	if isConflictError(errors.New("boom")) {
		t.Error("plain error should not be a conflict error")
	}
	wrapped := fmt.Errorf("post: %w", &sdkerrors.V2ErrorResponse{ErrorCode: shared.V2ErrorsEnumConflict})
	if !isConflictError(wrapped) {
		t.Error("wrapped CONFLICT should be detected")
	}
}
