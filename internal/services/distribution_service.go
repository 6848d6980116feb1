package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"gorm.io/gorm"

	"lumio/internal/models"
	"lumio/internal/stellar"
	"lumio/internal/vault"
)

// maxOperationsPerTx is Stellar's per-transaction operation limit.
const maxOperationsPerTx = 100

// HolderPayout is one token holder's share of a payout cycle.
type HolderPayout struct {
	Address      string          `json:"address"`
	TokenBalance decimal.Decimal `json:"token_balance"`
	Payout       decimal.Decimal `json:"payout"`
}

// PayoutCalculation is a dry-run payout preview. It reads the ledger but
// mutates nothing.
type PayoutCalculation struct {
	EventID            uuid.UUID       `json:"event_id"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	DistributableTotal decimal.Decimal `json:"distributable_total"`
	PayoutPerToken     decimal.Decimal `json:"payout_per_token"`
	TotalTokensIssued  decimal.Decimal `json:"total_tokens_issued"`
	Holders            []HolderPayout  `json:"holders"`
	TotalPayout        decimal.Decimal `json:"total_payout"`
}

// DistributionResult reports one completed payout cycle.
type DistributionResult struct {
	Distribution *models.Distribution `json:"distribution"`
	HolderCount  int                  `json:"holder_count"`
	BatchCount   int                  `json:"batch_count"`
	TxHashes     []string             `json:"tx_hashes"`
}

// DistributionService calculates and executes revenue payouts to token
// holders. Payouts run in batches of at most 100 payment operations per
// transaction, with a pause between batches to avoid flooding the network.
type DistributionService struct {
	db      *gorm.DB
	gateway stellar.Gateway
	vault   *vault.Vault

	// batchPause is the delay between settlement batches.
	batchPause time.Duration
}

func NewDistributionService(db *gorm.DB, gateway stellar.Gateway, v *vault.Vault) *DistributionService {
	return &DistributionService{
		db:         db,
		gateway:    gateway,
		vault:      v,
		batchPause: time.Second,
	}
}

// CalculatePayout previews the payout each current token holder would
// receive if revenue were distributed now. Read-only.
func (s *DistributionService) CalculatePayout(ctx context.Context, eventID uuid.UUID) (*PayoutCalculation, error) {
	var event models.Event
	if err := s.db.Where("id = ?", eventID).First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundErr("event", eventID)
		}
		return nil, err
	}

	if event.StellarPublicKey == nil || event.StellarSecretEncrypted == nil {
		return nil, &Error{Code: ErrCodeWalletNotInitialized, Message: "event wallet not initialized"}
	}
	if event.AssetCode == nil {
		return nil, &Error{Code: ErrCodeAssetNotConfigured, Message: "event asset not configured"}
	}
	if !event.TotalTokensIssued.IsPositive() {
		return nil, &Error{Code: ErrCodeNoTokensIssued, Message: "no tokens issued for this event"}
	}

	distributable := event.TotalRevenue.
		Mul(event.RevenueSharePct).
		Div(decimal.NewFromInt(100)).
		Round(ledgerPrecision)
	payoutPerToken := distributable.Div(event.TotalTokensIssued).Round(ledgerPrecision)

	holders, err := s.gateway.AssetHolders(ctx, *event.AssetCode, *event.StellarPublicKey)
	if err != nil {
		return nil, err
	}

	calc := &PayoutCalculation{
		EventID:            event.ID,
		TotalRevenue:       event.TotalRevenue,
		DistributableTotal: distributable,
		PayoutPerToken:     payoutPerToken,
		TotalTokensIssued:  event.TotalTokensIssued,
		Holders:            make([]HolderPayout, 0, len(holders)),
		TotalPayout:        decimal.Zero,
	}

	for _, h := range holders {
		payout := h.Balance.Mul(payoutPerToken).Round(ledgerPrecision)
		calc.Holders = append(calc.Holders, HolderPayout{
			Address:      h.Address,
			TokenBalance: h.Balance,
			Payout:       payout,
		})
		calc.TotalPayout = calc.TotalPayout.Add(payout)
	}

	return calc, nil
}

// ExecuteDistribution pays every current token holder their share of the
// distributable revenue and completes the event. The distribution record
// moves PENDING -> PROCESSING before the first ledger write, so a crashed
// run is distinguishable from one that never started. A failed attempt is
// never resumed: its settled batches are final, and a new attempt recomputes
// payouts from live balances, which still include holders already paid.
func (s *DistributionService) ExecuteDistribution(ctx context.Context, eventID uuid.UUID) (*DistributionResult, error) {
	var event models.Event
	if err := s.db.Where("id = ?", eventID).First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundErr("event", eventID)
		}
		return nil, err
	}

	if event.Status != models.EventStatusLive && event.Status != models.EventStatusFunded {
		return nil, invalidStateErr(event.Status, "LIVE or FUNDED")
	}

	calc, err := s.CalculatePayout(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if len(calc.Holders) == 0 {
		return nil, &Error{Code: ErrCodeNoHolders, Message: "no token holders to distribute to"}
	}
	if !calc.DistributableTotal.IsPositive() {
		return nil, &Error{Code: ErrCodeNothingToDistribute, Message: "no distributable revenue"}
	}

	payouts := make([]HolderPayout, 0, len(calc.Holders))
	for _, h := range calc.Holders {
		if h.Payout.IsPositive() {
			payouts = append(payouts, h)
		}
	}
	if len(payouts) == 0 {
		return nil, &Error{Code: ErrCodeNothingToDistribute, Message: "every payout rounds to zero"}
	}

	distribution := models.Distribution{
		ID:             uuid.New(),
		EventID:        eventID,
		TotalAmount:    calc.TotalPayout,
		PayoutPerToken: calc.PayoutPerToken,
		Status:         models.DistributionStatusPending,
	}
	if err := s.db.Create(&distribution).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&distribution).Update("status", models.DistributionStatusProcessing).Error; err != nil {
		return nil, err
	}
	distribution.Status = models.DistributionStatusProcessing

	batches := splitBatches(payouts, maxOperationsPerTx)
	log.Printf("Distribution %s for event %s: %s USDC to %d holders in %d batches",
		distribution.ID, eventID, calc.TotalPayout, len(payouts), len(batches))

	txHashes, err := s.submitBatches(ctx, &event, batches)
	if err != nil {
		s.markFailed(&distribution, err)
		return nil, err
	}

	now := time.Now()
	lastHash := txHashes[len(txHashes)-1]
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&distribution).Updates(map[string]interface{}{
			"status":          models.DistributionStatusCompleted,
			"stellar_tx_hash": lastHash,
			"completed_at":    now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Event{}).Where("id = ?", eventID).
			Update("status", models.EventStatusCompleted).Error
	})
	if err != nil {
		return nil, err
	}

	distribution.Status = models.DistributionStatusCompleted
	distribution.StellarTxHash = &lastHash
	distribution.CompletedAt = &now

	log.Printf("Distribution %s completed: %d transactions", distribution.ID, len(txHashes))
	return &DistributionResult{
		Distribution: &distribution,
		HolderCount:  len(payouts),
		BatchCount:   len(batches),
		TxHashes:     txHashes,
	}, nil
}

// submitBatches signs and submits one payment transaction per batch,
// reloading the account between batches for a fresh sequence number.
// Aborts on the first failed batch; earlier batches stay settled.
func (s *DistributionService) submitBatches(ctx context.Context, event *models.Event, batches [][]HolderPayout) ([]string, error) {
	secret, err := s.vault.Decrypt(*event.StellarSecretEncrypted)
	if err != nil {
		return nil, err
	}
	kp, err := keypair.ParseFull(secret)
	if err != nil {
		return nil, err
	}

	usdc := s.gateway.USDCAsset()
	txHashes := make([]string, 0, len(batches))

	for i, batch := range batches {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.batchPause):
			}
		}

		account, err := s.gateway.LoadAccount(ctx, *event.StellarPublicKey)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}

		ops := make([]txnbuild.Operation, 0, len(batch))
		for _, p := range batch {
			ops = append(ops, &txnbuild.Payment{
				Destination: p.Address,
				Asset:       usdc,
				Amount:      p.Payout.StringFixed(ledgerPrecision),
			})
		}

		tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
			SourceAccount:        account,
			IncrementSequenceNum: true,
			Operations:           ops,
			BaseFee:              baseFee,
			Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(60)},
		})
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}

		tx, err = tx.Sign(s.gateway.NetworkPassphrase(), kp)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}

		hash, err := s.gateway.SubmitTransaction(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}

		log.Printf("Distribution batch %d/%d submitted: %s (%d payments)", i+1, len(batches), hash, len(batch))
		txHashes = append(txHashes, hash)
	}

	return txHashes, nil
}

// markFailed records a failed attempt. Best effort: a write failure here is
// logged, the original error still reaches the caller.
func (s *DistributionService) markFailed(distribution *models.Distribution, cause error) {
	msg := cause.Error()
	if len(msg) > 2000 {
		msg = msg[:2000]
	}
	if err := s.db.Model(distribution).Updates(map[string]interface{}{
		"status": models.DistributionStatusFailed,
		"error":  msg,
	}).Error; err != nil {
		log.Printf("Warning: failed to mark distribution %s as FAILED: %v", distribution.ID, err)
	}
	distribution.Status = models.DistributionStatusFailed
	distribution.Error = &msg
}

// Distributions lists payout attempts for an event, newest first.
func (s *DistributionService) Distributions(eventID uuid.UUID) ([]models.Distribution, error) {
	var distributions []models.Distribution
	if err := s.db.Where("event_id = ?", eventID).Order("created_at DESC").Find(&distributions).Error; err != nil {
		return nil, err
	}
	return distributions, nil
}

// Distribution retrieves one payout attempt by ID.
func (s *DistributionService) Distribution(id uuid.UUID) (*models.Distribution, error) {
	var distribution models.Distribution
	if err := s.db.Where("id = ?", id).First(&distribution).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundErr("distribution", id)
		}
		return nil, err
	}
	return &distribution, nil
}

// splitBatches partitions payouts into slices of at most size elements.
func splitBatches(payouts []HolderPayout, size int) [][]HolderPayout {
	var batches [][]HolderPayout
	for start := 0; start < len(payouts); start += size {
		end := start + size
		if end > len(payouts) {
			end = len(payouts)
		}
		batches = append(batches, payouts[start:end])
	}
	return batches
}
