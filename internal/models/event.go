package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventStatusDraft         EventStatus = "DRAFT"
	EventStatusWalletCreated EventStatus = "WALLET_CREATED"
	EventStatusFundingOpen   EventStatus = "FUNDING_OPEN"
	EventStatusFunded        EventStatus = "FUNDED"
	EventStatusLive          EventStatus = "LIVE"
	EventStatusCompleted     EventStatus = "COMPLETED"
)

// Event represents a tokenized real-world event with a funding goal,
// revenue share and lifecycle status. Money columns are stored with the
// ledger's 7-digit fixed-point precision.
type Event struct {
	ID                     uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name                   string          `gorm:"size:200;not null" json:"name"`
	Description            *string         `gorm:"size:2000" json:"description"`
	OrganizerAddress       string          `gorm:"size:56;not null;index" json:"organizer_address"`
	FundingGoal            decimal.Decimal `gorm:"type:decimal(20,7);not null" json:"funding_goal"`
	TokenPrice             decimal.Decimal `gorm:"type:decimal(20,7);not null" json:"token_price"`
	RevenueSharePct        decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"revenue_share_pct"`
	TicketPrice            decimal.Decimal `gorm:"type:decimal(20,7)" json:"ticket_price"`
	StellarPublicKey       *string         `gorm:"size:56;uniqueIndex" json:"stellar_public_key"`
	StellarSecretEncrypted *string         `gorm:"size:255" json:"-"`
	AssetCode              *string         `gorm:"size:12" json:"asset_code"`
	Status                 EventStatus     `gorm:"size:50;not null;default:DRAFT;index" json:"status"`
	TotalTokensIssued      decimal.Decimal `gorm:"type:decimal(20,7);not null;default:0" json:"total_tokens_issued"`
	TotalRevenue           decimal.Decimal `gorm:"type:decimal(20,7);not null;default:0" json:"total_revenue"`
	CreatedAt              time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Event) TableName() string {
	return "events"
}

// TokenSupply returns the maximum number of tokens this event can issue
// (fundingGoal / tokenPrice).
func (e *Event) TokenSupply() decimal.Decimal {
	if e.TokenPrice.IsZero() {
		return decimal.Zero
	}
	return e.FundingGoal.Div(e.TokenPrice)
}

// TokensRemaining returns how many tokens are still available for purchase.
func (e *Event) TokensRemaining() decimal.Decimal {
	return e.TokenSupply().Sub(e.TotalTokensIssued)
}
