package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Investment is one confirmed token purchase. Rows are written only after
// the swap transaction settled on the ledger and are immutable thereafter.
type Investment struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	EventID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"event_id"`
	InvestorAddress string          `gorm:"size:56;not null;index" json:"investor_address"`
	AmountTokens    decimal.Decimal `gorm:"type:decimal(20,7);not null" json:"amount_tokens"`
	UsdcPaid        decimal.Decimal `gorm:"type:decimal(20,7);not null" json:"usdc_paid"`
	StellarTxHash   string          `gorm:"size:64;not null" json:"stellar_tx_hash"`
	CreatedAt       time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Investment) TableName() string {
	return "investments"
}

// Ticket is one revenue event. StellarTxHash is unique when present and is
// the de-duplication key for on-chain payment reconciliation; off-chain
// sales leave it empty.
type Ticket struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	EventID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"event_id"`
	BuyerAddress  string          `gorm:"size:56;not null" json:"buyer_address"`
	UsdcPaid      decimal.Decimal `gorm:"type:decimal(20,7);not null" json:"usdc_paid"`
	StellarTxHash *string         `gorm:"size:64;uniqueIndex" json:"stellar_tx_hash"`
	CreatedAt     time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Ticket) TableName() string {
	return "tickets"
}
