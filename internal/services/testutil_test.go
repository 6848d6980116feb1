package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lumio/internal/models"
	"lumio/internal/stellar"
	"lumio/internal/vault"
)

const testUSDCIssuer = "GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5"

const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// TestUser mirrors models.User but compatible with SQLite (no Postgres specific defaults)
type TestUser struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Address   string          `gorm:"size:56;uniqueIndex"`
	Role      models.UserRole `gorm:"size:50"`
	CreatedAt time.Time       `gorm:"default:CURRENT_TIMESTAMP"`
}

func (TestUser) TableName() string {
	return "users"
}

// TestEvent mirrors models.Event
type TestEvent struct {
	ID                     uuid.UUID          `gorm:"type:uuid;primaryKey"`
	Name                   string             `gorm:"size:200"`
	Description            *string            `gorm:"size:2000"`
	OrganizerAddress       string             `gorm:"size:56;index"`
	FundingGoal            decimal.Decimal    `gorm:"type:decimal(20,7)"`
	TokenPrice             decimal.Decimal    `gorm:"type:decimal(20,7)"`
	RevenueSharePct        decimal.Decimal    `gorm:"type:decimal(5,2)"`
	TicketPrice            decimal.Decimal    `gorm:"type:decimal(20,7)"`
	StellarPublicKey       *string            `gorm:"size:56;uniqueIndex"`
	StellarSecretEncrypted *string            `gorm:"size:255"`
	AssetCode              *string            `gorm:"size:12"`
	Status                 models.EventStatus `gorm:"size:50;default:DRAFT;index"`
	TotalTokensIssued      decimal.Decimal    `gorm:"type:decimal(20,7);default:0"`
	TotalRevenue           decimal.Decimal    `gorm:"type:decimal(20,7);default:0"`
	CreatedAt              time.Time          `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time          `gorm:"default:CURRENT_TIMESTAMP"`
}

func (TestEvent) TableName() string {
	return "events"
}

// TestInvestment mirrors models.Investment
type TestInvestment struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EventID         uuid.UUID       `gorm:"type:uuid;index"`
	InvestorAddress string          `gorm:"size:56;index"`
	AmountTokens    decimal.Decimal `gorm:"type:decimal(20,7)"`
	UsdcPaid        decimal.Decimal `gorm:"type:decimal(20,7)"`
	StellarTxHash   string          `gorm:"size:64"`
	CreatedAt       time.Time       `gorm:"default:CURRENT_TIMESTAMP"`
}

func (TestInvestment) TableName() string {
	return "investments"
}

// TestTicket mirrors models.Ticket
type TestTicket struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EventID       uuid.UUID       `gorm:"type:uuid;index"`
	BuyerAddress  string          `gorm:"size:56"`
	UsdcPaid      decimal.Decimal `gorm:"type:decimal(20,7)"`
	StellarTxHash *string         `gorm:"size:64;uniqueIndex"`
	CreatedAt     time.Time       `gorm:"default:CURRENT_TIMESTAMP"`
}

func (TestTicket) TableName() string {
	return "tickets"
}

// TestDistribution mirrors models.Distribution
type TestDistribution struct {
	ID             uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	EventID        uuid.UUID                 `gorm:"type:uuid;index"`
	TotalAmount    decimal.Decimal           `gorm:"type:decimal(20,7)"`
	PayoutPerToken decimal.Decimal           `gorm:"type:decimal(20,7)"`
	Status         models.DistributionStatus `gorm:"size:50;default:PENDING;index"`
	StellarTxHash  *string                   `gorm:"size:64"`
	CompletedAt    *time.Time
	Error          *string   `gorm:"size:2000"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

func (TestDistribution) TableName() string {
	return "distributions"
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&TestUser{},
		&TestEvent{},
		&TestInvestment{},
		&TestTicket{},
		&TestDistribution{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	// Shared in-memory DB persists across tests, clean all tables
	db.Exec("DELETE FROM distributions")
	db.Exec("DELETE FROM tickets")
	db.Exec("DELETE FROM investments")
	db.Exec("DELETE FROM events")
	db.Exec("DELETE FROM users")

	return db
}

func newTestVault(t *testing.T) *vault.Vault {
	v, err := vault.New(testEncryptionKey)
	if err != nil {
		t.Fatalf("failed to create vault: %v", err)
	}
	return v
}

// fakeGateway is a scriptable in-memory stellar.Gateway.
type fakeGateway struct {
	holders   []stellar.AssetHolder
	payments  []stellar.PaymentRecord
	sequence  int64
	submitted []*txnbuild.Transaction
	submitErr map[int]error
	funded    []string
	loadErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{submitErr: map[int]error{}}
}

func (g *fakeGateway) LoadAccount(ctx context.Context, accountID string) (*txnbuild.SimpleAccount, error) {
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	g.sequence++
	return &txnbuild.SimpleAccount{AccountID: accountID, Sequence: g.sequence}, nil
}

func (g *fakeGateway) SubmitTransaction(ctx context.Context, tx *txnbuild.Transaction) (string, error) {
	idx := len(g.submitted)
	if err, ok := g.submitErr[idx]; ok {
		return "", err
	}
	g.submitted = append(g.submitted, tx)
	return fmt.Sprintf("txhash-%d", idx+1), nil
}

func (g *fakeGateway) AssetHolders(ctx context.Context, assetCode, issuer string) ([]stellar.AssetHolder, error) {
	return g.holders, nil
}

func (g *fakeGateway) IncomingPayments(ctx context.Context, accountID string, limit int) ([]stellar.PaymentRecord, error) {
	return g.payments, nil
}

func (g *fakeGateway) FundTestAccount(ctx context.Context, accountID string) error {
	g.funded = append(g.funded, accountID)
	return nil
}

func (g *fakeGateway) NetworkPassphrase() string {
	return network.TestNetworkPassphrase
}

func (g *fakeGateway) USDCAsset() txnbuild.CreditAsset {
	return txnbuild.CreditAsset{Code: "USDC", Issuer: testUSDCIssuer}
}

// createTestEvent persists an event with a provisioned wallet in the given
// status. Funding goal 2500 at token price 10 with a 30% revenue share.
func createTestEvent(t *testing.T, db *gorm.DB, v *vault.Vault, status models.EventStatus) *models.Event {
	kp, err := keypair.Random()
	if err != nil {
		t.Fatalf("failed to generate keypair: %v", err)
	}
	encrypted, err := v.Encrypt(kp.Seed())
	if err != nil {
		t.Fatalf("failed to encrypt seed: %v", err)
	}

	publicKey := kp.Address()
	assetCode := "EVTTEST01"
	event := models.Event{
		ID:                     uuid.New(),
		Name:                   "Test Concert",
		OrganizerAddress:       newTestAddress(t),
		FundingGoal:            decimal.NewFromInt(2500),
		TokenPrice:             decimal.NewFromInt(10),
		RevenueSharePct:        decimal.NewFromInt(30),
		TicketPrice:            decimal.NewFromInt(25),
		StellarPublicKey:       &publicKey,
		StellarSecretEncrypted: &encrypted,
		AssetCode:              &assetCode,
		Status:                 status,
		TotalTokensIssued:      decimal.Zero,
		TotalRevenue:           decimal.Zero,
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	return &event
}

func newTestAddress(t *testing.T) string {
	kp, err := keypair.Random()
	if err != nil {
		t.Fatalf("failed to generate keypair: %v", err)
	}
	return kp.Address()
}

func assertErrorCode(t *testing.T, err error, want ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", want)
	}
	code, ok := CodeOf(err)
	if !ok {
		t.Fatalf("expected domain error with code %s, got %v", want, err)
	}
	if code != want {
		t.Errorf("expected error code %s, got %s", want, code)
	}
}
