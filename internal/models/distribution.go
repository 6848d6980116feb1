package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DistributionStatus string

const (
	DistributionStatusPending    DistributionStatus = "PENDING"
	DistributionStatusProcessing DistributionStatus = "PROCESSING"
	DistributionStatusCompleted  DistributionStatus = "COMPLETED"
	DistributionStatusFailed     DistributionStatus = "FAILED"
)

// Distribution is one payout cycle attempt. Status moves strictly
// PENDING -> PROCESSING -> COMPLETED|FAILED; a failed attempt is never
// mutated back, operators start a new attempt instead.
type Distribution struct {
	ID             uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	EventID        uuid.UUID          `gorm:"type:uuid;not null;index" json:"event_id"`
	TotalAmount    decimal.Decimal    `gorm:"type:decimal(20,7);not null" json:"total_amount"`
	PayoutPerToken decimal.Decimal    `gorm:"type:decimal(20,7);not null" json:"payout_per_token"`
	Status         DistributionStatus `gorm:"size:50;not null;default:PENDING;index" json:"status"`
	StellarTxHash  *string            `gorm:"size:64" json:"stellar_tx_hash"`
	CompletedAt    *time.Time         `json:"completed_at"`
	Error          *string            `gorm:"size:2000" json:"error"`
	CreatedAt      time.Time          `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Distribution) TableName() string {
	return "distributions"
}
