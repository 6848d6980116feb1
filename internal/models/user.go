package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleOrganizer UserRole = "ORGANIZER"
	UserRoleInvestor  UserRole = "INVESTOR"
)

// User represents a wallet-identified participant (organizer or investor)
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Address   string    `gorm:"size:56;not null;uniqueIndex" json:"address"`
	Role      UserRole  `gorm:"size:20;not null;default:INVESTOR" json:"role"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
