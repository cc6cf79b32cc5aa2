package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EntryStatus is the payment state of a billing entry.
type EntryStatus string

const (
	EntryStatusOpen EntryStatus = "OPEN"
	EntryStatusDone EntryStatus = "DONE"
)

// ParseEntryStatus accepts only OPEN and DONE, case-insensitively.
func ParseEntryStatus(raw string) (EntryStatus, error) {
	switch EntryStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case EntryStatusOpen:
		return EntryStatusOpen, nil
	case EntryStatusDone:
		return EntryStatusDone, nil
	default:
		return "", ErrInvalidStatus
	}
}

// BillingEntry is one billed term of a subscriber, owned by the period of its PeriodStart.
type BillingEntry struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	Period          string          `gorm:"type:varchar(7);not null;index:ix_billing_entries_period_position,priority:1" json:"period"`
	Position        int             `gorm:"not null;default:0;index:ix_billing_entries_period_position,priority:2" json:"-"`
	ChainID         snowflake.ID    `gorm:"not null;index" json:"chain_id"`
	RefID           string          `gorm:"type:varchar(64);index" json:"ref_id,omitempty"`
	SubscriberName  string          `gorm:"not null" json:"subscriber_name"`
	ProgramName     string          `json:"program_name"`
	PeriodStart     time.Time       `gorm:"not null" json:"period_start"`
	TermMonths      int             `gorm:"not null" json:"term_months"`
	DueDate         time.Time       `gorm:"not null" json:"due_date"`
	MonthlyPrice    decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"monthly_price"`
	GrossAmount     decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"gross_amount"`
	DiscountAmount  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"discount_amount"`
	DiscountPercent int             `gorm:"not null;default:0" json:"discount_percent"`
	NetAmount       decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"net_amount"`
	Status          EntryStatus     `gorm:"type:varchar(8);not null;default:'OPEN'" json:"status"`
	PaidDate        *time.Time      `json:"paid_date,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (BillingEntry) TableName() string { return "billing_entries" }

func (e BillingEntry) IsDone() bool { return e.Status == EntryStatusDone }

// AfterFind moves scanned dates to UTC; pgx returns timestamptz in time.Local.
func (e *BillingEntry) AfterFind(*gorm.DB) error {
	e.PeriodStart = e.PeriodStart.UTC()
	e.DueDate = e.DueDate.UTC()
	if e.PaidDate != nil {
		paid := e.PaidDate.UTC()
		e.PaidDate = &paid
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return nil
}

// BillingPeriod groups the entries of one calendar month. There is exactly one per key.
type BillingPeriod struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	Period    string         `gorm:"type:varchar(7);not null;uniqueIndex" json:"period"`
	Entries   []BillingEntry `gorm:"foreignKey:Period;references:Period" json:"entries"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	CreatedBy string         `gorm:"type:varchar(128);not null;default:'system'" json:"created_by"`
	UpdatedBy string         `gorm:"type:varchar(128);not null;default:'system'" json:"updated_by"`
}

func (BillingPeriod) TableName() string { return "billing_periods" }

// FindEntry returns the entry with id, or nil.
func (p *BillingPeriod) FindEntry(id snowflake.ID) *BillingEntry {
	if p == nil {
		return nil
	}
	for i := range p.Entries {
		if p.Entries[i].ID == id {
			return &p.Entries[i]
		}
	}
	return nil
}

// PeriodAggregate is the materialized summary of one period's entries.
type PeriodAggregate struct {
	Period     string          `gorm:"primaryKey;type:varchar(7)" json:"period"`
	Estimated  decimal.Decimal `gorm:"column:estimated_amount;type:numeric(20,2);not null" json:"estimated"`
	Realized   decimal.Decimal `gorm:"column:realized_amount;type:numeric(20,2);not null" json:"realized"`
	Open       decimal.Decimal `gorm:"column:open_amount;type:numeric(20,2);not null" json:"open"`
	EntryCount int             `gorm:"not null;default:0" json:"entry_count"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updated_at"`
}

func (PeriodAggregate) TableName() string { return "billing_period_aggregates" }

// SubscriberCount mirrors EntryCount: every entry in a period is one subscriber-month.
func (a PeriodAggregate) SubscriberCount() int { return a.EntryCount }

// EntryFilter selects entries inside a period. Set fields are AND-combined.
type EntryFilter struct {
	EntryID snowflake.ID
	ChainID snowflake.ID
	RefID   string
}

func (f EntryFilter) IsEmpty() bool {
	return f.EntryID == 0 && f.ChainID == 0 && strings.TrimSpace(f.RefID) == ""
}

func (f EntryFilter) Matches(e BillingEntry) bool {
	if f.IsEmpty() {
		return false
	}
	if f.EntryID != 0 && e.ID != f.EntryID {
		return false
	}
	if f.ChainID != 0 && e.ChainID != f.ChainID {
		return false
	}
	if f.RefID != "" && e.RefID != f.RefID {
		return false
	}
	return true
}
