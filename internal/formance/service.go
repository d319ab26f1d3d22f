package formance

import (
	"context"
	"errors"
	"fmt"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

var _ store.LedgerMirror = (*Mirror)(nil)

const defaultLedgerName = "copy-trade-ledger"

// assetPrecision maps currency and asset symbols to their decimal precision.
var assetPrecision = map[string]int{
	"USD":  2,
	"EUR":  2,
	"USDC": 6,
	"USDT": 6,
	"BTC":  8,
	"ETH":  18,
	"SOL":  9,
}

// Mirror copies approved wallet transactions into a Formance Stack ledger.
// The relational ledger stays authoritative; the mirror is written after commit.
type Mirror struct {
	client *v3.Formance
	ledger string
}

// NewMirror connects to the stack and creates the ledger if it doesn't already exist.
func NewMirror(ctx context.Context, cfg models.FormanceConfig) (*Mirror, error) {
	if cfg.StackURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("formance config requires StackURL, ClientID, and ClientSecret")
	}
	if cfg.LedgerName == "" {
		cfg.LedgerName = defaultLedgerName
	}

	zap.L().Info("Connecting to Formance Stack",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", cfg.LedgerName))

	client := v3.New(
		v3.WithServerURL(cfg.StackURL),
		v3.WithSecurity(shared.Security{
			ClientID:     v3.Pointer(cfg.ClientID),
			ClientSecret: v3.Pointer(cfg.ClientSecret),
		}),
	)

	m := &Mirror{client: client, ledger: cfg.LedgerName}
	if err := m.ensureLedger(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger exists: %w", err)
	}

	zap.L().Info("Formance mirror initialized", zap.String("ledger", cfg.LedgerName))
	return m, nil
}

func (m *Mirror) ensureLedger(ctx context.Context) error {
	_, err := m.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: m.ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{
				"application": defaultLedgerName,
			},
		},
	})
	if err != nil {
		if isErrorCode(err, shared.V2ErrorsEnumLedgerAlreadyExists) {
			zap.L().Info("Ledger already exists", zap.String("ledger", m.ledger))
			return nil
		}
		return err
	}
	zap.L().Info("Ledger created", zap.String("ledger", m.ledger))
	return nil
}

// formanceAsset returns the Formance UMN notation, e.g. "USD/2".
func formanceAsset(symbol string) string {
	return fmt.Sprintf("%s/%d", symbol, precisionFor(symbol))
}

func precisionFor(symbol string) int {
	if p, ok := assetPrecision[symbol]; ok {
		return p
	}
	return 6
}

// isConflictError checks whether a Formance SDK error is a CONFLICT (duplicate reference).
func isConflictError(err error) bool {
	return isErrorCode(err, shared.V2ErrorsEnumConflict)
}

func isErrorCode(err error, code shared.V2ErrorsEnum) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == code
}

func strPtr(s string) *string { return &s }
