package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// TransactionMetadata is the documented key set carried by wallet transactions.
//
//	deposit:                      DepositRequestId, TransactionHash
//	withdrawal:                   Destination
//	copy_fee, copy_allocation:    TraderId, CopyRelationshipId
//	any:                          Actor, Reason
//
// Extra holds keys outside that set so older rows round-trip unchanged.
type TransactionMetadata struct {
	DepositRequestId   string            `json:"deposit_request_id,omitempty"`
	TransactionHash    string            `json:"transaction_hash,omitempty"`
	Destination        string            `json:"destination,omitempty"`
	TraderId           string            `json:"trader_id,omitempty"`
	CopyRelationshipId string            `json:"copy_relationship_id,omitempty"`
	Actor              string            `json:"actor,omitempty"`
	Reason             string            `json:"reason,omitempty"`
	Extra              map[string]string `json:"extra,omitempty"`
}

// Validate checks that only keys belonging to the transaction type are set
func (m TransactionMetadata) Validate(t TransactionType) error {
	switch t {
	case TransactionTypeDeposit:
		if m.Destination != "" || m.TraderId != "" || m.CopyRelationshipId != "" {
			return fmt.Errorf("deposit metadata only accepts deposit_request_id and transaction_hash")
		}
	case TransactionTypeWithdrawal:
		if m.DepositRequestId != "" || m.TransactionHash != "" || m.TraderId != "" || m.CopyRelationshipId != "" {
			return fmt.Errorf("withdrawal metadata only accepts destination")
		}
	case TransactionTypeCopyFee, TransactionTypeCopyAllocation:
		if m.DepositRequestId != "" || m.TransactionHash != "" || m.Destination != "" {
			return fmt.Errorf("%s metadata only accepts trader_id and copy_relationship_id", t)
		}
	default:
		return fmt.Errorf("unknown transaction type %q", t)
	}
	return nil
}

func (m TransactionMetadata) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction metadata: %w", err)
	}
	return string(b), nil
}

func DecodeTransactionMetadata(raw string) (TransactionMetadata, error) {
	var m TransactionMetadata
	if raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, fmt.Errorf("failed to decode transaction metadata: %w", err)
	}
	return m, nil
}

// CopyTradeMetadata records how a copy trade was derived from its leader trade
type CopyTradeMetadata struct {
	LeaderQuantity decimal.Decimal  `json:"leader_quantity"`
	LeaderPnl      *decimal.Decimal `json:"leader_pnl"`
	CopyRatio      decimal.Decimal  `json:"copy_ratio"`
	Source         string           `json:"source"`
	Note           string           `json:"note,omitempty"`
}

func (m CopyTradeMetadata) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode copy trade metadata: %w", err)
	}
	return string(b), nil
}

func DecodeCopyTradeMetadata(raw string) (CopyTradeMetadata, error) {
	var m CopyTradeMetadata
	if raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, fmt.Errorf("failed to decode copy trade metadata: %w", err)
	}
	return m, nil
}
