package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SubscriberStatus string

const (
	SubscriberStatusActive   SubscriberStatus = "ACTIVE"
	SubscriberStatusInactive SubscriberStatus = "INACTIVE"
)

func ParseSubscriberStatus(raw string) (SubscriberStatus, error) {
	switch SubscriberStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case SubscriberStatusActive:
		return SubscriberStatusActive, nil
	case SubscriberStatusInactive:
		return SubscriberStatusInactive, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Subscriber is a VPS subscription billed monthly.
type Subscriber struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name              string            `gorm:"not null" json:"name"`
	Program           string            `json:"program"`
	MonthlyPrice      decimal.Decimal   `gorm:"type:numeric(20,2);not null" json:"monthly_price"`
	StartDate         time.Time         `gorm:"not null" json:"start_date"`
	InitialTermMonths int               `gorm:"not null;default:1" json:"initial_term_months"`
	FirstDiscount     decimal.Decimal   `gorm:"type:numeric(20,2);not null" json:"first_discount"`
	Status            SubscriberStatus  `gorm:"type:varchar(16);not null;default:'ACTIVE';index" json:"status"`
	Metadata          datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt         time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null" json:"updated_at"`
}

func (Subscriber) TableName() string { return "subscribers" }

func (s Subscriber) IsActive() bool { return s.Status == SubscriberStatusActive }

// AfterFind moves scanned dates to UTC so StartDate keeps its calendar day.
func (s *Subscriber) AfterFind(*gorm.DB) error {
	s.StartDate = s.StartDate.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return nil
}
