package services

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"lumio/internal/models"
	"lumio/internal/stellar"
)

// paymentSyncLimit caps how many recent ledger payments one sync inspects.
const paymentSyncLimit = 200

// RevenueStats summarizes an event's revenue position.
type RevenueStats struct {
	EventID            uuid.UUID       `json:"event_id"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	RevenueSharePct    decimal.Decimal `json:"revenue_share_pct"`
	DistributableTotal decimal.Decimal `json:"distributable_total"`
	TotalTokensIssued  decimal.Decimal `json:"total_tokens_issued"`
	PayoutPerToken     decimal.Decimal `json:"payout_per_token"`
	TicketCount        int64           `json:"ticket_count"`
}

// SyncResult reports one reconciliation run against the ledger.
type SyncResult struct {
	PaymentsSeen int             `json:"payments_seen"`
	TicketsAdded int             `json:"tickets_added"`
	RevenueAdded decimal.Decimal `json:"revenue_added"`
}

// RevenueService records ticket revenue and reconciles the local ledger
// against on-chain USDC payments. Reconciliation is idempotent: a payment's
// transaction hash is recorded at most once.
type RevenueService struct {
	db      *gorm.DB
	gateway stellar.Gateway
}

func NewRevenueService(db *gorm.DB, gateway stellar.Gateway) *RevenueService {
	return &RevenueService{
		db:      db,
		gateway: gateway,
	}
}

// RecordTicketSale records a ticket sale and increments event revenue in one
// database transaction. Allowed while the event is LIVE, or FUNDED for
// pre-sales before ticket sales formally open.
func (s *RevenueService) RecordTicketSale(eventID uuid.UUID, req models.TicketSaleRequest) (*models.Ticket, error) {
	amount := decimal.NewFromFloat(req.UsdcPaid).Round(ledgerPrecision)
	if !amount.IsPositive() {
		return nil, validationErr("ticket amount must be positive")
	}

	ticket := models.Ticket{
		ID:            uuid.New(),
		EventID:       eventID,
		BuyerAddress:  req.BuyerAddress,
		UsdcPaid:      amount,
		StellarTxHash: req.StellarTxHash,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.Where("id = ?", eventID).First(&event).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return notFoundErr("event", eventID)
			}
			return err
		}

		if event.Status != models.EventStatusLive && event.Status != models.EventStatusFunded {
			return invalidStateErr(event.Status, "LIVE or FUNDED")
		}

		if err := tx.Create(&ticket).Error; err != nil {
			return err
		}

		return tx.Model(&event).
			Update("total_revenue", gorm.Expr("total_revenue + ?", amount)).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Ticket sale recorded for event %s: %s USDC from %s", eventID, amount, req.BuyerAddress)
	return &ticket, nil
}

// Stats computes the event's revenue summary. Distributable is the investor
// share of total revenue; payout per token is zero until tokens are issued.
func (s *RevenueService) Stats(eventID uuid.UUID) (*RevenueStats, error) {
	var event models.Event
	if err := s.db.Where("id = ?", eventID).First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundErr("event", eventID)
		}
		return nil, err
	}

	var ticketCount int64
	if err := s.db.Model(&models.Ticket{}).Where("event_id = ?", eventID).Count(&ticketCount).Error; err != nil {
		return nil, err
	}

	distributable := event.TotalRevenue.
		Mul(event.RevenueSharePct).
		Div(decimal.NewFromInt(100)).
		Round(ledgerPrecision)

	payoutPerToken := decimal.Zero
	if event.TotalTokensIssued.IsPositive() {
		payoutPerToken = distributable.Div(event.TotalTokensIssued).Round(ledgerPrecision)
	}

	return &RevenueStats{
		EventID:            event.ID,
		TotalRevenue:       event.TotalRevenue,
		RevenueSharePct:    event.RevenueSharePct,
		DistributableTotal: distributable,
		TotalTokensIssued:  event.TotalTokensIssued,
		PayoutPerToken:     payoutPerToken,
		TicketCount:        ticketCount,
	}, nil
}

// FetchRecentPayments returns recent incoming USDC payments to the event
// wallet. Payments in other assets are dropped.
func (s *RevenueService) FetchRecentPayments(ctx context.Context, eventID uuid.UUID) ([]stellar.PaymentRecord, error) {
	var event models.Event
	if err := s.db.Where("id = ?", eventID).First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundErr("event", eventID)
		}
		return nil, err
	}

	if event.StellarPublicKey == nil {
		return nil, &Error{Code: ErrCodeWalletNotInitialized, Message: "event wallet not initialized"}
	}

	payments, err := s.gateway.IncomingPayments(ctx, *event.StellarPublicKey, paymentSyncLimit)
	if err != nil {
		return nil, err
	}

	usdc := s.gateway.USDCAsset()
	filtered := make([]stellar.PaymentRecord, 0, len(payments))
	for _, p := range payments {
		if p.AssetCode == usdc.Code && p.AssetIssuer == usdc.Issuer {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// SyncPayments reconciles recent incoming USDC payments on the event wallet
// with the local ticket ledger. Payments whose transaction hash is already
// recorded are skipped, so repeated runs converge instead of double-counting.
func (s *RevenueService) SyncPayments(ctx context.Context, eventID uuid.UUID) (*SyncResult, error) {
	payments, err := s.FetchRecentPayments(ctx, eventID)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{RevenueAdded: decimal.Zero, PaymentsSeen: len(payments)}

	for _, p := range payments {
		txHash := p.TxHash
		var existing int64
		if err := s.db.Model(&models.Ticket{}).Where("stellar_tx_hash = ?", txHash).Count(&existing).Error; err != nil {
			return nil, err
		}
		if existing > 0 {
			continue
		}

		amount := p.Amount.Round(ledgerPrecision)
		ticket := models.Ticket{
			ID:            uuid.New(),
			EventID:       eventID,
			BuyerAddress:  p.From,
			UsdcPaid:      amount,
			StellarTxHash: &txHash,
		}

		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&ticket).Error; err != nil {
				return err
			}
			return tx.Model(&models.Event{}).Where("id = ?", eventID).
				Update("total_revenue", gorm.Expr("total_revenue + ?", amount)).Error
		})
		if err != nil {
			return nil, err
		}

		result.TicketsAdded++
		result.RevenueAdded = result.RevenueAdded.Add(amount)
	}

	if result.TicketsAdded > 0 {
		log.Printf("Payment sync for event %s: %d new tickets, %s USDC added", eventID, result.TicketsAdded, result.RevenueAdded)
	}
	return result, nil
}

// EventTickets lists tickets for an event, newest first.
func (s *RevenueService) EventTickets(eventID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := s.db.Where("event_id = ?", eventID).Order("created_at DESC").Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}
