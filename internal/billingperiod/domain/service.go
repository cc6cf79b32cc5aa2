package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type CreateScheduleRequest struct {
	// SubscriberID resolves name, program and price when they are not given.
	SubscriberID   string
	RefID          string
	SubscriberName string
	ProgramName    string
	MonthlyPrice   *decimal.Decimal

	StartDate         string
	InitialTermMonths int
	FirstDiscount     decimal.Decimal
}

type CreateScheduleResponse struct {
	ChainID    string   `json:"chain_id"`
	EntryCount int      `json:"entry_count"`
	Periods    []string `json:"periods"`
}

type SetEntryStatusRequest struct {
	Period  string
	EntryID string
	Status  string
	// PaidDate overrides the stamp applied on DONE.
	PaidDate *time.Time
}

type UpdateEntryRequest struct {
	Period       string
	EntryID      string
	StartDate    *string
	TermMonths   *int
	MonthlyPrice *decimal.Decimal
	Discount     *decimal.Decimal
	Status       *string
}

// IsStatusOnly reports a request that changes nothing but the status.
func (r UpdateEntryRequest) IsStatusOnly() bool {
	return r.Status != nil && r.StartDate == nil && r.TermMonths == nil && r.MonthlyPrice == nil && r.Discount == nil
}

type UpdateEntryResponse struct {
	ChainID string   `json:"chain_id"`
	Periods []string `json:"periods"`
}

type DeleteEntryRequest struct {
	Period  string
	EntryID string
}

type RemoveByRefResponse struct {
	Removed int      `json:"removed"`
	Periods []string `json:"periods"`
}

type RegenerateResponse struct {
	FiscalYear  int `json:"fiscal_year"`
	Subscribers int `json:"subscribers"`
	Entries     int `json:"entries"`
}

type ListAggregatesRequest struct {
	From string
	To   string
}

type Service interface {
	CreateSchedule(context.Context, CreateScheduleRequest) (CreateScheduleResponse, error)
	GetEntriesByPeriod(ctx context.Context, period string) (BillingPeriod, error)
	GetAggregateByPeriod(ctx context.Context, period string) (PeriodAggregate, error)
	ListAggregates(context.Context, ListAggregatesRequest) ([]PeriodAggregate, error)
	SetEntryStatus(context.Context, SetEntryStatusRequest) (BillingEntry, error)
	UpdateEntry(context.Context, UpdateEntryRequest) (UpdateEntryResponse, error)
	DeleteEntry(context.Context, DeleteEntryRequest) error
	RemoveByRef(ctx context.Context, refID string) (RemoveByRefResponse, error)
	RegenerateNextFiscalYear(context.Context) (RegenerateResponse, error)
	RegenerateFiscalYear(ctx context.Context, fiscalYear int) (RegenerateResponse, error)
}

var (
	ErrInvalidPeriod      = errors.New("invalid_period")
	ErrInvalidStartDate   = errors.New("invalid_start_date")
	ErrInvalidTermMonths  = errors.New("invalid_term_months")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidEntryID     = errors.New("invalid_entry_id")
	ErrInvalidRefID       = errors.New("invalid_ref_id")
	ErrInvalidFiscalYear  = errors.New("invalid_fiscal_year")
	ErrMissingSubscriber  = errors.New("missing_subscriber")
	ErrStartOutsidePeriod = errors.New("start_date_outside_period")
	ErrEmptyUpdate        = errors.New("empty_update")
	ErrPeriodNotFound     = errors.New("period_not_found")
	ErrAggregateNotFound  = errors.New("aggregate_not_found")
	ErrEntryNotFound      = errors.New("entry_not_found")
	ErrSubscriberNotFound = errors.New("subscriber_not_found")
	ErrEmptyEntryFilter   = errors.New("empty_entry_filter")
)
