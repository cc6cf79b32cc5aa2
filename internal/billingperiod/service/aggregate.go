package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bukukas/internal/billingperiod/domain"
)

// computeAggregate rebuilds a period summary from its full entry set.
func computeAggregate(period string, entries []domain.BillingEntry, now time.Time) domain.PeriodAggregate {
	estimated := decimal.Zero
	realized := decimal.Zero
	for _, e := range entries {
		estimated = estimated.Add(e.NetAmount)
		if e.IsDone() {
			realized = realized.Add(e.NetAmount)
		}
	}
	return domain.PeriodAggregate{
		Period:     period,
		Estimated:  estimated,
		Realized:   realized,
		Open:       estimated.Sub(realized),
		EntryCount: len(entries),
		UpdatedAt:  now,
	}
}
