package services

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"gorm.io/gorm"

	"lumio/internal/models"
	"lumio/internal/stellar"
	"lumio/internal/vault"
)

// ledgerPrecision is Stellar's fixed-point precision in fractional digits.
const ledgerPrecision = 7

// purchaseSigningWindow is how long the investor has to counter-sign the
// swap. Generous because the signature happens asynchronously client-side.
const purchaseSigningWindow = 300

// PurchaseTransaction is a partially signed atomic swap awaiting the
// investor's counter-signature.
type PurchaseTransaction struct {
	XDR             string          `json:"xdr"`
	UsdcAmount      decimal.Decimal `json:"usdc_amount"`
	TokenAmount     decimal.Decimal `json:"token_amount"`
	EventID         uuid.UUID       `json:"event_id"`
	InvestorAddress string          `json:"investor_address"`
}

// InvestmentService builds atomic-swap purchase transactions and records
// confirmed investments. It never takes custody of investor funds: the
// swap's two payments settle together on the ledger or not at all.
type InvestmentService struct {
	db      *gorm.DB
	gateway stellar.Gateway
	vault   *vault.Vault
}

func NewInvestmentService(db *gorm.DB, gateway stellar.Gateway, v *vault.Vault) *InvestmentService {
	return &InvestmentService{
		db:      db,
		gateway: gateway,
		vault:   v,
	}
}

// PurchaseTokens validates a purchase request and returns the partially
// signed swap envelope for the investor to counter-sign.
func (s *InvestmentService) PurchaseTokens(ctx context.Context, eventID uuid.UUID, req models.InvestRequest) (*PurchaseTransaction, error) {
	tokenAmount := decimal.NewFromFloat(req.TokenAmount).Round(ledgerPrecision)
	if !tokenAmount.IsPositive() {
		return nil, validationErr("token amount must be positive")
	}

	var event models.Event
	if err := s.db.Where("id = ?", eventID).First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundErr("event", eventID)
		}
		return nil, err
	}

	remaining := event.TokensRemaining()
	if tokenAmount.GreaterThan(remaining) {
		return nil, &Error{
			Code:    ErrCodeInsufficientSupply,
			Message: "insufficient tokens available: requested " + tokenAmount.String() + ", available " + remaining.String(),
		}
	}

	if event.Status != models.EventStatusFundingOpen {
		return nil, invalidStateErr(event.Status, "FUNDING_OPEN")
	}

	xdr, usdcAmount, err := s.buildPurchaseTransaction(ctx, &event, req.InvestorAddress, tokenAmount)
	if err != nil {
		return nil, err
	}

	return &PurchaseTransaction{
		XDR:             xdr,
		UsdcAmount:      usdcAmount,
		TokenAmount:     tokenAmount,
		EventID:         event.ID,
		InvestorAddress: req.InvestorAddress,
	}, nil
}

// buildPurchaseTransaction constructs the two-operation atomic swap:
// investor pays USDC to the event wallet, the event wallet pays tokens
// back. The event's custodial key co-signs; the investor signs last.
func (s *InvestmentService) buildPurchaseTransaction(ctx context.Context, event *models.Event, investorAddress string, tokenAmount decimal.Decimal) (string, decimal.Decimal, error) {
	if event.StellarPublicKey == nil || event.StellarSecretEncrypted == nil {
		return "", decimal.Zero, &Error{Code: ErrCodeWalletNotInitialized, Message: "event wallet not initialized"}
	}
	if event.AssetCode == nil {
		return "", decimal.Zero, &Error{Code: ErrCodeAssetNotConfigured, Message: "event asset not configured"}
	}
	if !stellar.IsValidAddress(investorAddress) {
		return "", decimal.Zero, validationErr("invalid investor address: %s", investorAddress)
	}

	usdcAmount := tokenAmount.Mul(event.TokenPrice).Round(ledgerPrecision)
	eventAsset := txnbuild.CreditAsset{Code: *event.AssetCode, Issuer: *event.StellarPublicKey}
	usdc := s.gateway.USDCAsset()

	secret, err := s.vault.Decrypt(*event.StellarSecretEncrypted)
	if err != nil {
		return "", decimal.Zero, err
	}
	eventKeypair, err := keypair.ParseFull(secret)
	if err != nil {
		return "", decimal.Zero, err
	}

	// The investor is the transaction source: they pay the fee and their
	// sequence number orders the swap.
	investorAccount, err := s.gateway.LoadAccount(ctx, investorAddress)
	if err != nil {
		return "", decimal.Zero, err
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        investorAccount,
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination:   *event.StellarPublicKey,
				Asset:         usdc,
				Amount:        usdcAmount.StringFixed(ledgerPrecision),
				SourceAccount: investorAddress,
			},
			&txnbuild.Payment{
				Destination:   investorAddress,
				Asset:         eventAsset,
				Amount:        tokenAmount.StringFixed(ledgerPrecision),
				SourceAccount: *event.StellarPublicKey,
			},
		},
		BaseFee:       baseFee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(purchaseSigningWindow)},
	})
	if err != nil {
		return "", decimal.Zero, err
	}

	tx, err = tx.Sign(s.gateway.NetworkPassphrase(), eventKeypair)
	if err != nil {
		return "", decimal.Zero, err
	}

	xdr, err := tx.Base64()
	if err != nil {
		return "", decimal.Zero, err
	}

	log.Printf("Purchase transaction built for event %s: %s tokens for %s USDC (investor %s)",
		event.ID, tokenAmount, usdcAmount, investorAddress)
	return xdr, usdcAmount, nil
}

// RecordInvestment persists a confirmed purchase. Called only after the
// co-signed transaction settled on the ledger, so local records never
// outpace ledger truth. Flips the event to FUNDED exactly when the token
// supply is exhausted.
func (s *InvestmentService) RecordInvestment(eventID uuid.UUID, req models.RecordInvestmentRequest) (*models.Investment, error) {
	tokenAmount := decimal.NewFromFloat(req.TokenAmount).Round(ledgerPrecision)
	if !tokenAmount.IsPositive() {
		return nil, validationErr("token amount must be positive")
	}

	investment := models.Investment{
		ID:              uuid.New(),
		EventID:         eventID,
		InvestorAddress: req.InvestorAddress,
		AmountTokens:    tokenAmount,
		UsdcPaid:        decimal.NewFromFloat(req.UsdcPaid).Round(ledgerPrecision),
		StellarTxHash:   req.StellarTxHash,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.Where("id = ?", eventID).First(&event).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return notFoundErr("event", eventID)
			}
			return err
		}

		if tokenAmount.GreaterThan(event.TokensRemaining()) {
			return &Error{
				Code:    ErrCodeInsufficientSupply,
				Message: "recorded amount exceeds remaining supply: " + event.TokensRemaining().String(),
			}
		}

		investor := models.User{ID: uuid.New(), Address: req.InvestorAddress, Role: models.UserRoleInvestor}
		if err := tx.Where("address = ?", req.InvestorAddress).FirstOrCreate(&investor).Error; err != nil {
			return err
		}

		if err := tx.Create(&investment).Error; err != nil {
			return err
		}

		// Increment in SQL so concurrent recordings cannot lose an update.
		issued := event.TotalTokensIssued.Add(tokenAmount)
		updates := map[string]interface{}{
			"total_tokens_issued": gorm.Expr("total_tokens_issued + ?", tokenAmount),
		}
		if event.Status == models.EventStatusFundingOpen && issued.GreaterThanOrEqual(event.TokenSupply()) {
			updates["status"] = models.EventStatusFunded
			log.Printf("Event %s fully funded: %s tokens issued", eventID, issued)
		}

		return tx.Model(&event).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Investment recorded for event %s: %s tokens, tx %s", eventID, tokenAmount, req.StellarTxHash)
	return &investment, nil
}

// EventInvestments lists investments for an event, newest first.
func (s *InvestmentService) EventInvestments(eventID uuid.UUID) ([]models.Investment, error) {
	var investments []models.Investment
	if err := s.db.Where("event_id = ?", eventID).Order("created_at DESC").Find(&investments).Error; err != nil {
		return nil, err
	}
	return investments, nil
}

// InvestorInvestments lists investments made by one investor, newest first.
func (s *InvestmentService) InvestorInvestments(investorAddress string) ([]models.Investment, error) {
	var investments []models.Investment
	if err := s.db.Where("investor_address = ?", investorAddress).Order("created_at DESC").Find(&investments).Error; err != nil {
		return nil, err
	}
	return investments, nil
}
