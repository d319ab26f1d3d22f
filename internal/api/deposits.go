package api

import (
	"context"
	"io"
	"time"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DepositResult carries the request after a deposit lifecycle step
type DepositResult struct {
	models.Outcome
	Request *models.DepositRequest `json:"request,omitempty"`
}

// CreateDepositRequest opens a deposit for the user's wallet in the input state
func (s *LedgerService) CreateDepositRequest(ctx context.Context, userId, assetId string, amount decimal.Decimal, network string) *DepositResult {
	started := time.Now()
	settings := s.settings.Settings()

	request, err := func() (*models.DepositRequest, error) {
		if !settings.DepositsEnabled {
			return nil, invalid("deposits are currently disabled")
		}
		if amount.LessThan(settings.MinDeposit) {
			return nil, invalid("minimum deposit is %s %s", settings.MinDeposit.String(), settings.Currency)
		}
		wallet, err := s.db.GetWalletByUser(ctx, userId)
		if err != nil {
			return nil, err
		}
		return s.db.CreateDepositRequest(ctx, store.CreateDepositParams{
			WalletId: wallet.Id,
			AssetId:  assetId,
			Amount:   amount,
			Currency: wallet.Currency,
			Network:  network,
		})
	}()
	return &DepositResult{Outcome: s.finish("create_deposit", started, err), Request: request}
}

// SelectDepositNetwork moves a request to payment and attaches the address to pay
func (s *LedgerService) SelectDepositNetwork(ctx context.Context, requestId, assetId, network string) *DepositResult {
	started := time.Now()
	request, err := s.db.SelectDepositNetwork(ctx, requestId, assetId, network)
	return &DepositResult{Outcome: s.finish("select_deposit_network", started, err), Request: request}
}

// SubmitDepositProof stores the proof file and moves the request to
// processing. With a proof store configured the image is required. The
// auto-approve hint is passed through and never honoured.
func (s *LedgerService) SubmitDepositProof(ctx context.Context, requestId, transactionHash, ext string, proof io.Reader, autoApprove bool) *DepositResult {
	started := time.Now()

	var proofPath string
	if s.proofs != nil {
		if proof == nil {
			return &DepositResult{Outcome: s.finish("submit_deposit_proof", started, invalid("a proof image is required"))}
		}
		request, err := s.db.GetDepositRequest(ctx, requestId)
		if err == nil {
			err = store.RequireDepositEditable(request)
		}
		if err != nil {
			return &DepositResult{Outcome: s.finish("submit_deposit_proof", started, err)}
		}
		// Saved under a fresh name, so a refused submit only removes its own upload
		path, err := s.proofs.Save(requestId, ext, proof)
		if err != nil {
			return &DepositResult{Outcome: s.finish("submit_deposit_proof", started, err)}
		}
		proofPath = path
	}

	request, err := s.db.SubmitDepositProof(ctx, store.DepositProofParams{
		RequestId:       requestId,
		TransactionHash: transactionHash,
		ProofPath:       proofPath,
		AutoApprove:     autoApprove,
	})
	if err != nil && proofPath != "" {
		s.deleteProof(proofPath)
	}
	return &DepositResult{Outcome: s.finish("submit_deposit_proof", started, err), Request: request}
}

// ApproveDeposit credits the deposit to the wallet. The approving actor is
// read from ctx.
func (s *LedgerService) ApproveDeposit(ctx context.Context, requestId string) *models.LedgerResult {
	started := time.Now()
	tx, err := s.db.ApproveDeposit(ctx, requestId, models.ActorFrom(ctx))
	result := &models.LedgerResult{Outcome: s.finish("approve_deposit", started, err)}
	if err != nil {
		return result
	}
	if tx == nil {
		result.Message = "deposit request was already finalized"
		return result
	}
	s.mirrorTransaction(ctx, tx)

	result.Transaction = tx
	result.NewBalance = tx.BalanceAfter
	return result
}

func (s *LedgerService) RejectDeposit(ctx context.Context, requestId, reason string) models.Outcome {
	started := time.Now()
	err := s.db.RejectDeposit(ctx, requestId, models.ActorFrom(ctx), reason)
	return s.finish("reject_deposit", started, err)
}

// DeleteDepositRequest removes a non-approved request together with its proof file
func (s *LedgerService) DeleteDepositRequest(ctx context.Context, requestId string) models.Outcome {
	started := time.Now()
	request, err := s.db.DeleteDepositRequest(ctx, requestId)
	if err == nil && request.ProofPath != "" {
		s.deleteProof(request.ProofPath)
	}
	return s.finish("delete_deposit", started, err)
}

func (s *LedgerService) deleteProof(path string) {
	if s.proofs == nil {
		return
	}
	if err := s.proofs.Delete(path); err != nil {
		zap.L().Warn("Failed to delete deposit proof", zap.String("path", path), zap.Error(err))
	}
}
