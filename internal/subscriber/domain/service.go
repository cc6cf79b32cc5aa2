package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bukukas/pkg/db/pagination"
)

type CreateSubscriberRequest struct {
	Name              string
	Program           string
	MonthlyPrice      decimal.Decimal
	StartDate         string
	InitialTermMonths int
	FirstDiscount     decimal.Decimal
	Metadata          map[string]any
	// SkipSchedule stores the record without generating billing entries.
	SkipSchedule bool
}

type CreateSubscriberResponse struct {
	Subscriber Subscriber `json:"subscriber"`
	EntryCount int        `json:"entry_count"`
	Periods    []string   `json:"periods"`
}

type ListSubscriberRequest struct {
	Status    string
	Name      string
	PageToken string
	PageSize  int
}

type ListSubscriberResponse struct {
	pagination.PageInfo
	Subscribers []Subscriber `json:"subscribers"`
}

type UpdateSubscriberRequest struct {
	ID           string
	Name         *string
	Program      *string
	MonthlyPrice *decimal.Decimal
	Status       *string
	Metadata     map[string]any
	// Resync removes the subscriber's entries and regenerates its schedule.
	Resync bool
}

type ImportResult struct {
	Imported int      `json:"imported"`
	Entries  int      `json:"entries"`
	Errors   []string `json:"errors,omitempty"`
}

type Service interface {
	Create(context.Context, CreateSubscriberRequest) (CreateSubscriberResponse, error)
	Get(ctx context.Context, id string) (Subscriber, error)
	List(context.Context, ListSubscriberRequest) (ListSubscriberResponse, error)
	Update(context.Context, UpdateSubscriberRequest) (Subscriber, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, reqs []CreateSubscriberRequest) (ImportResult, error)
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidPrice      = errors.New("invalid_monthly_price")
	ErrInvalidStartDate  = errors.New("invalid_start_date")
	ErrInvalidTermMonths = errors.New("invalid_term_months")
	ErrInvalidDiscount   = errors.New("invalid_discount")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrNotFound          = errors.New("not_found")
)
