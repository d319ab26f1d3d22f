package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateDepositRequest opens a deposit request in the input state
func (s *Service) CreateDepositRequest(ctx context.Context, params store.CreateDepositParams) (*models.DepositRequest, error) {
	zap.L().Info("Creating deposit request",
		zap.String("wallet_id", params.WalletId),
		zap.String("amount", params.Amount.String()),
		zap.String("currency", params.Currency))

	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit amount must be greater than zero", store.ErrValidation)
	}
	if params.Currency == "" {
		return nil, fmt.Errorf("%w: currency is required", store.ErrValidation)
	}
	if _, err := s.GetWallet(ctx, params.WalletId); err != nil {
		return nil, err
	}
	if params.AssetId != "" {
		if _, err := s.GetAsset(ctx, params.AssetId); err != nil {
			return nil, err
		}
	}

	request := &models.DepositRequest{
		Id:        uuid.New().String(),
		WalletId:  params.WalletId,
		AssetId:   params.AssetId,
		Amount:    params.Amount,
		Currency:  params.Currency,
		Network:   params.Network,
		Status:    models.DepositStatusInput,
		CreatedAt: s.now(),
	}
	_, err := s.db.ExecContext(ctx, queryInsertDepositRequest,
		request.Id, request.WalletId, request.AssetId, request.Amount.String(), request.Currency, request.Network,
		"", string(request.Status), "", "", "", formatTime(request.CreatedAt), "", "")
	if err != nil {
		zap.L().Error("Failed to insert deposit request", zap.String("wallet_id", params.WalletId), zap.Error(err))
		return nil, fmt.Errorf("unable to insert deposit request: %w", err)
	}

	zap.L().Info("Deposit request created", zap.String("request_id", request.Id))
	return request, nil
}

func (s *Service) GetDepositRequest(ctx context.Context, requestId string) (*models.DepositRequest, error) {
	return getDepositRequest(ctx, s.db, requestId)
}

func getDepositRequest(ctx context.Context, q queryer, requestId string) (*models.DepositRequest, error) {
	var r models.DepositRequest
	var amount, status, createdAt, submittedAt, processedAt string
	err := q.QueryRowContext(ctx, queryGetDepositRequest, requestId).Scan(
		&r.Id, &r.WalletId, &r.AssetId, &amount, &r.Currency, &r.Network, &r.DepositAddress, &status,
		&r.TransactionHash, &r.ProofPath, &r.WalletTransactionId, &createdAt, &submittedAt, &processedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: deposit request %s", store.ErrNotFound, requestId)
		}
		return nil, fmt.Errorf("unable to query deposit request: %w", err)
	}

	r.Status = models.DepositStatus(status)
	if r.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.SubmittedAt, err = parseOptionalTime(submittedAt); err != nil {
		return nil, err
	}
	if r.ProcessedAt, err = parseOptionalTime(processedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// SelectDepositNetwork moves a request to payment and attaches the platform address for the chosen network
func (s *Service) SelectDepositNetwork(ctx context.Context, requestId, assetId, network string) (*models.DepositRequest, error) {
	zap.L().Info("Selecting deposit network",
		zap.String("request_id", requestId),
		zap.String("asset_id", assetId),
		zap.String("network", network))

	if network == "" {
		return nil, fmt.Errorf("%w: network is required", store.ErrValidation)
	}
	if _, err := s.GetAsset(ctx, assetId); err != nil {
		return nil, err
	}
	address, err := s.GetDepositAddress(ctx, assetId, network)
	if err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		request, err := getDepositRequest(ctx, tx, requestId)
		if err != nil {
			return err
		}
		if err := store.RequireDepositEditable(request); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, queryUpdateDepositNetwork, assetId, network, address.Address, requestId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetDepositRequest(ctx, requestId)
}

// SubmitDepositProof attaches the payment proof and moves the request to processing.
// A client-supplied auto-approve hint never skips admin review.
func (s *Service) SubmitDepositProof(ctx context.Context, params store.DepositProofParams) (*models.DepositRequest, error) {
	zap.L().Info("Submitting deposit proof",
		zap.String("request_id", params.RequestId),
		zap.String("transaction_hash", params.TransactionHash))

	if params.TransactionHash == "" {
		return nil, fmt.Errorf("%w: transaction hash is required", store.ErrValidation)
	}
	if params.AutoApprove {
		zap.L().Warn("Ignoring auto-approve hint on deposit proof", zap.String("request_id", params.RequestId))
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		request, err := getDepositRequest(ctx, tx, params.RequestId)
		if err != nil {
			return err
		}
		if err := store.RequireDepositEditable(request); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, queryUpdateDepositProof,
			params.TransactionHash, params.ProofPath, formatTime(s.now()), params.RequestId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetDepositRequest(ctx, params.RequestId)
}

// ApproveDeposit credits the wallet and finalizes the request. A request
// that is already terminal when the call starts is a state conflict; one
// finalized by a concurrent caller while this call waited for the lock is a
// no-op and returns a nil transaction.
func (s *Service) ApproveDeposit(ctx context.Context, requestId, actor string) (*models.WalletTransaction, error) {
	zap.L().Info("Approving deposit request", zap.String("request_id", requestId), zap.String("actor", actor))

	request, err := s.GetDepositRequest(ctx, requestId)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, fmt.Errorf("%w: deposit request %s is %s", store.ErrAlreadyFinalized, requestId, request.Status)
	}
	if request.Status != models.DepositStatusProcessing {
		return nil, fmt.Errorf("%w: deposit request %s is %s, expected processing", store.ErrInvalidTransition, requestId, request.Status)
	}

	var transaction *models.WalletTransaction
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		// Lock order: request, then wallet.
		locked, err := getDepositRequest(ctx, tx, requestId)
		if err != nil {
			return err
		}
		if locked.Status.Terminal() {
			zap.L().Info("Deposit request already finalized, nothing to do",
				zap.String("request_id", requestId),
				zap.String("status", string(locked.Status)))
			return nil
		}

		now := s.now()
		transaction, err = s.ledger.apply(ctx, tx, store.LedgerEvent{
			WalletId:  locked.WalletId,
			AssetId:   locked.AssetId,
			Type:      models.TransactionTypeDeposit,
			Direction: models.DirectionCredit,
			Amount:    locked.Amount,
			Network:   locked.Network,
			Metadata: models.TransactionMetadata{
				DepositRequestId: locked.Id,
				TransactionHash:  locked.TransactionHash,
				Actor:            actor,
			},
		}, now)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, queryApproveDepositRequest, formatTime(now), transaction.Id, requestId)
		if err != nil {
			return fmt.Errorf("unable to approve deposit request: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil || n != 1 {
			return fmt.Errorf("deposit request %s changed during approval - %w", requestId, store.ErrConcurrentModification)
		}
		return nil
	})
	if err != nil {
		zap.L().Error("Deposit approval failed", zap.String("request_id", requestId), zap.Error(err))
		return nil, err
	}

	if transaction != nil {
		zap.L().Info("Deposit approved",
			zap.String("request_id", requestId),
			zap.String("transaction_id", transaction.Id),
			zap.String("new_balance", transaction.BalanceAfter.String()))
	}
	return transaction, nil
}

// RejectDeposit finalizes a non-terminal request without touching the wallet
func (s *Service) RejectDeposit(ctx context.Context, requestId, actor, reason string) error {
	zap.L().Info("Rejecting deposit request",
		zap.String("request_id", requestId),
		zap.String("actor", actor),
		zap.String("reason", reason))

	request, err := s.GetDepositRequest(ctx, requestId)
	if err != nil {
		return err
	}
	if request.Status.Terminal() {
		return fmt.Errorf("%w: deposit request %s is %s", store.ErrAlreadyFinalized, requestId, request.Status)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		locked, err := getDepositRequest(ctx, tx, requestId)
		if err != nil {
			return err
		}
		if locked.Status.Terminal() {
			return nil
		}
		_, err = tx.ExecContext(ctx, queryRejectDepositRequest, formatTime(s.now()), requestId)
		if err != nil {
			return fmt.Errorf("unable to reject deposit request: %w", err)
		}
		return nil
	})
}

// DeleteDepositRequest removes a request that was never approved and returns
// the deleted row so the caller can clean up its proof file.
func (s *Service) DeleteDepositRequest(ctx context.Context, requestId string) (*models.DepositRequest, error) {
	zap.L().Info("Deleting deposit request", zap.String("request_id", requestId))

	var deleted *models.DepositRequest
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		request, err := getDepositRequest(ctx, tx, requestId)
		if err != nil {
			return err
		}
		if request.Status == models.DepositStatusApproved {
			return fmt.Errorf("%w: deposit request %s is approved", store.ErrDeleteForbidden, requestId)
		}
		if _, err := tx.ExecContext(ctx, queryDeleteDepositRequest, requestId); err != nil {
			return fmt.Errorf("unable to delete deposit request: %w", err)
		}
		deleted = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
