package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type OverviewRequest struct {
	// FiscalYear is the year the fiscal year ends in. Zero means the current one.
	FiscalYear int
	// Compare adds the previous fiscal year's totals.
	Compare bool
}

type MonthPoint struct {
	Period     string          `json:"period"`
	Estimated  decimal.Decimal `json:"estimated"`
	Realized   decimal.Decimal `json:"realized"`
	Open       decimal.Decimal `json:"open"`
	EntryCount int             `json:"entry_count"`
}

type Totals struct {
	Estimated      decimal.Decimal `json:"estimated"`
	Realized       decimal.Decimal `json:"realized"`
	Open           decimal.Decimal `json:"open"`
	EntryCount     int             `json:"entry_count"`
	CollectionRate *float64        `json:"collection_rate,omitempty"`
}

type FiscalYearOverview struct {
	FiscalYear   int              `json:"fiscal_year"`
	From         string           `json:"from"`
	To           string           `json:"to"`
	Months       []MonthPoint     `json:"months"`
	Totals       Totals           `json:"totals"`
	Previous     *Totals          `json:"previous,omitempty"`
	GrowthAmount *decimal.Decimal `json:"growth_amount,omitempty"`
	GrowthRate   *float64         `json:"growth_rate,omitempty"`
	HasData      bool             `json:"has_data"`
}

// Service exposes the fiscal-year dashboard built from period aggregates.
type Service interface {
	GetFiscalYearOverview(ctx context.Context, req OverviewRequest) (FiscalYearOverview, error)
}

var (
	ErrInvalidFiscalYear = errors.New("invalid_fiscal_year")
)
