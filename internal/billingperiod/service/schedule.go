package service

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"github.com/smallbiznis/bukukas/internal/calendar"
)

var hundred = decimal.NewFromInt(100)

// termParams describe one billed term before amounts are derived.
type termParams struct {
	ChainID        snowflake.ID
	RefID          string
	SubscriberName string
	ProgramName    string
	Start          time.Time
	TermMonths     int
	MonthlyPrice   decimal.Decimal
	Discount       decimal.Decimal
	Status         domain.EntryStatus
	PaidDate       *time.Time
}

// buildEntry derives dates and amounts for a term. Only the first entry of a
// chain carries the discount and its percentage.
func buildEntry(id snowflake.ID, p termParams, isFirst bool, now time.Time) domain.BillingEntry {
	start := calendar.Normalize(p.Start)
	term := p.TermMonths
	if term < 1 {
		term = 1
	}

	price := clampZero(p.MonthlyPrice)
	gross := price.Mul(decimal.NewFromInt(int64(term)))

	discount := decimal.Zero
	percent := 0
	if isFirst {
		discount = clampZero(p.Discount)
		percent = discountPercent(discount, gross)
	}

	status := p.Status
	if status == "" {
		status = domain.EntryStatusOpen
	}
	var paid *time.Time
	if status == domain.EntryStatusDone {
		paid = p.PaidDate
	}

	return domain.BillingEntry{
		ID:              id,
		Period:          calendar.PeriodKey(start),
		ChainID:         p.ChainID,
		RefID:           p.RefID,
		SubscriberName:  p.SubscriberName,
		ProgramName:     p.ProgramName,
		PeriodStart:     start,
		TermMonths:      term,
		DueDate:         calendar.Tempo(start, term),
		MonthlyPrice:    price,
		GrossAmount:     gross,
		DiscountAmount:  discount,
		DiscountPercent: percent,
		NetAmount:       gross.Sub(discount),
		Status:          status,
		PaidDate:        paid,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// monthlySteps returns the start dates of the one-month terms that follow a
// term ending the day before cursor, up to and including fiscalEnd.
func monthlySteps(cursor, fiscalEnd time.Time) []time.Time {
	var starts []time.Time
	for !cursor.After(fiscalEnd) {
		starts = append(starts, cursor)
		cursor = calendar.AddDays(calendar.Tempo(cursor, 1), 1)
	}
	return starts
}

// buildChain produces the creation-time chain: the first term, then one entry
// per month through the fiscal end anchored on the first start date.
func buildChain(genID func() snowflake.ID, first termParams, now time.Time) []domain.BillingEntry {
	head := buildEntry(genID(), first, true, now)
	fiscalEnd := calendar.FiscalYearEnd(head.PeriodStart)

	entries := []domain.BillingEntry{head}
	for _, start := range monthlySteps(calendar.AddDays(head.DueDate, 1), fiscalEnd) {
		next := first
		next.Start = start
		next.TermMonths = 1
		next.Discount = decimal.Zero
		next.Status = domain.EntryStatusOpen
		next.PaidDate = nil
		entries = append(entries, buildEntry(genID(), next, false, now))
	}
	return entries
}

// buildRechain rebuilds a chain from an edited entry: the edited term keeps its id
// and the rest of the fiscal year collapses into one consolidated entry.
func buildRechain(editedID snowflake.ID, genID func() snowflake.ID, first termParams, fiscalEnd, now time.Time) []domain.BillingEntry {
	head := buildEntry(editedID, first, true, now)
	entries := []domain.BillingEntry{head}

	steps := monthlySteps(calendar.AddDays(head.DueDate, 1), fiscalEnd)
	if len(steps) == 0 {
		return entries
	}

	rest := first
	rest.Start = steps[0]
	rest.TermMonths = len(steps)
	rest.Discount = decimal.Zero
	rest.Status = domain.EntryStatusOpen
	rest.PaidDate = nil
	return append(entries, buildEntry(genID(), rest, false, now))
}

func discountPercent(discount, gross decimal.Decimal) int {
	if !gross.IsPositive() {
		return 0
	}
	pct := discount.Div(gross).Mul(hundred).Round(0).IntPart()
	if pct > 100 {
		return 100
	}
	return int(pct)
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
