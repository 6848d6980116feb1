package services

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"lumio/internal/models"
	"lumio/internal/stellar"
)

// EventService owns the event lifecycle state machine. Every transition
// guard re-reads the event row immediately before mutating it.
type EventService struct {
	db      *gorm.DB
	wallets *WalletService
	gateway stellar.Gateway
}

func NewEventService(db *gorm.DB, wallets *WalletService, gateway stellar.Gateway) *EventService {
	return &EventService{
		db:      db,
		wallets: wallets,
		gateway: gateway,
	}
}

// CreateEvent creates a new event in DRAFT status. No ledger side effects.
func (s *EventService) CreateEvent(req models.CreateEventRequest, organizerAddress string) (*models.Event, error) {
	if !stellar.IsValidAddress(organizerAddress) {
		return nil, validationErr("invalid organizer address: %s", organizerAddress)
	}

	sharePct := decimal.NewFromFloat(req.RevenueSharePct)
	if sharePct.IsNegative() || sharePct.GreaterThan(decimal.NewFromInt(100)) {
		return nil, validationErr("revenue share must be between 0 and 100, got %s", sharePct)
	}

	tokenPrice := decimal.NewFromFloat(req.TokenPrice)
	if !tokenPrice.IsPositive() {
		return nil, validationErr("token price must be positive")
	}

	fundingGoal := decimal.NewFromFloat(req.FundingGoal)
	if !fundingGoal.IsPositive() {
		return nil, validationErr("funding goal must be positive")
	}

	organizer := models.User{ID: uuid.New(), Address: organizerAddress, Role: models.UserRoleOrganizer}
	if err := s.db.Where("address = ?", organizerAddress).FirstOrCreate(&organizer).Error; err != nil {
		return nil, err
	}

	event := models.Event{
		ID:               uuid.New(),
		Name:             req.Name,
		Description:      req.Description,
		OrganizerAddress: organizerAddress,
		FundingGoal:      fundingGoal,
		TokenPrice:       tokenPrice,
		RevenueSharePct:  sharePct,
		TicketPrice:      decimal.NewFromFloat(req.TicketPrice),
		Status:           models.EventStatusDraft,
	}

	if err := s.db.Create(&event).Error; err != nil {
		return nil, err
	}

	log.Printf("Event created: %s (%s), goal %s, token price %s", event.Name, event.ID, fundingGoal, tokenPrice)
	return &event, nil
}

// InitializeWallet generates the event's custodial keypair, encrypts its
// secret and derives the asset code. Requires DRAFT; moves to
// WALLET_CREATED. Keys are set exactly once by construction: no other
// state reaches this transition.
func (s *EventService) InitializeWallet(eventID uuid.UUID) (*models.Event, error) {
	event, err := s.GetEvent(eventID)
	if err != nil {
		return nil, err
	}

	if event.Status != models.EventStatusDraft {
		return nil, invalidStateErr(event.Status, "DRAFT")
	}

	wallet, err := s.wallets.CreateEventWallet()
	if err != nil {
		return nil, err
	}

	assetCode := generateAssetCode(event.ID.String())

	if err := s.db.Model(event).Updates(map[string]interface{}{
		"stellar_public_key":       wallet.PublicKey,
		"stellar_secret_encrypted": wallet.SecretEncrypted,
		"asset_code":               assetCode,
		"status":                   models.EventStatusWalletCreated,
	}).Error; err != nil {
		return nil, err
	}

	log.Printf("Wallet initialized for event %s: %s (asset %s)", eventID, wallet.PublicKey, assetCode)
	return s.GetEvent(eventID)
}

// FundWallet funds the custodial account with Friendbot. Testnet only; the
// gateway rejects it with NETWORK_MISMATCH elsewhere.
func (s *EventService) FundWallet(ctx context.Context, eventID uuid.UUID) error {
	event, err := s.GetEvent(eventID)
	if err != nil {
		return err
	}

	if event.StellarPublicKey == nil {
		return &Error{Code: ErrCodeWalletNotInitialized, Message: "event wallet not initialized"}
	}

	return s.gateway.FundTestAccount(ctx, *event.StellarPublicKey)
}

// OpenFunding moves WALLET_CREATED -> FUNDING_OPEN.
func (s *EventService) OpenFunding(eventID uuid.UUID) (*models.Event, error) {
	return s.transition(eventID, models.EventStatusWalletCreated, models.EventStatusFundingOpen)
}

// OpenTicketSales moves FUNDED -> LIVE (operator action: ticket sales open).
func (s *EventService) OpenTicketSales(eventID uuid.UUID) (*models.Event, error) {
	return s.transition(eventID, models.EventStatusFunded, models.EventStatusLive)
}

func (s *EventService) transition(eventID uuid.UUID, from, to models.EventStatus) (*models.Event, error) {
	event, err := s.GetEvent(eventID)
	if err != nil {
		return nil, err
	}

	if event.Status != from {
		return nil, invalidStateErr(event.Status, string(from))
	}

	if err := s.db.Model(event).Update("status", to).Error; err != nil {
		return nil, err
	}

	log.Printf("Event %s: %s -> %s", eventID, from, to)
	return s.GetEvent(eventID)
}

// GetEvent retrieves an event by ID.
func (s *EventService) GetEvent(eventID uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := s.db.Where("id = ?", eventID).First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundErr("event", eventID)
		}
		return nil, err
	}
	return &event, nil
}

// ListEvents lists events, optionally filtered by organizer and/or status.
func (s *EventService) ListEvents(organizerAddress string, status models.EventStatus) ([]models.Event, error) {
	query := s.db.Order("created_at DESC")
	if organizerAddress != "" {
		query = query.Where("organizer_address = ?", organizerAddress)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// generateAssetCode derives a deterministic asset code from the event ID:
// "EVT" + first 8 alphanumeric characters, uppercased. Stays within
// Stellar's 12-character alphanum12 limit.
func generateAssetCode(eventID string) string {
	var b strings.Builder
	for _, r := range eventID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == 8 {
				break
			}
		}
	}
	return "EVT" + strings.ToUpper(b.String())
}
