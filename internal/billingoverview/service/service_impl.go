package service

import (
	"context"

	"github.com/shopspring/decimal"
	billingoverview "github.com/smallbiznis/bukukas/internal/billingoverview/domain"
	bpdomain "github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"github.com/smallbiznis/bukukas/internal/calendar"
	"github.com/smallbiznis/bukukas/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Periods bpdomain.Service
	Log     *zap.Logger
	Clock   clock.Clock
}

type Service struct {
	periods bpdomain.Service
	log     *zap.Logger
	clock   clock.Clock
}

func NewService(p Params) billingoverview.Service {
	return &Service{
		periods: p.Periods,
		log:     p.Log.Named("billingoverview.service"),
		clock:   p.Clock,
	}
}

func (s *Service) GetFiscalYearOverview(ctx context.Context, req billingoverview.OverviewRequest) (billingoverview.FiscalYearOverview, error) {
	fy := req.FiscalYear
	if fy == 0 {
		fy = calendar.FiscalYearOf(s.clock.Now())
	}
	if fy < 2000 || fy > 2100 {
		return billingoverview.FiscalYearOverview{}, billingoverview.ErrInvalidFiscalYear
	}

	months, err := s.listMonths(ctx, fy)
	if err != nil {
		return billingoverview.FiscalYearOverview{}, err
	}
	totals := sumMonths(months)

	periods := calendar.FiscalYearPeriods(fy)
	resp := billingoverview.FiscalYearOverview{
		FiscalYear: fy,
		From:       periods[0],
		To:         periods[len(periods)-1],
		Months:     months,
		Totals:     totals,
		HasData:    totals.EntryCount > 0,
	}

	if req.Compare {
		prevMonths, err := s.listMonths(ctx, fy-1)
		if err != nil {
			return billingoverview.FiscalYearOverview{}, err
		}
		previous := sumMonths(prevMonths)
		resp.Previous = &previous
		resp.GrowthAmount, resp.GrowthRate = computeGrowth(totals.Estimated, previous.Estimated)
	}

	return resp, nil
}

// listMonths returns one point per month of fy; months without an aggregate are zero.
func (s *Service) listMonths(ctx context.Context, fy int) ([]billingoverview.MonthPoint, error) {
	periods := calendar.FiscalYearPeriods(fy)
	aggs, err := s.periods.ListAggregates(ctx, bpdomain.ListAggregatesRequest{
		From: periods[0],
		To:   periods[len(periods)-1],
	})
	if err != nil {
		return nil, err
	}

	byPeriod := make(map[string]bpdomain.PeriodAggregate, len(aggs))
	for _, agg := range aggs {
		byPeriod[agg.Period] = agg
	}

	months := make([]billingoverview.MonthPoint, 0, len(periods))
	for _, period := range periods {
		agg, ok := byPeriod[period]
		if !ok {
			months = append(months, billingoverview.MonthPoint{
				Period:    period,
				Estimated: decimal.Zero,
				Realized:  decimal.Zero,
				Open:      decimal.Zero,
			})
			continue
		}
		months = append(months, billingoverview.MonthPoint{
			Period:     period,
			Estimated:  agg.Estimated,
			Realized:   agg.Realized,
			Open:       agg.Open,
			EntryCount: agg.EntryCount,
		})
	}
	return months, nil
}

func sumMonths(months []billingoverview.MonthPoint) billingoverview.Totals {
	totals := billingoverview.Totals{
		Estimated: decimal.Zero,
		Realized:  decimal.Zero,
		Open:      decimal.Zero,
	}
	for _, m := range months {
		totals.Estimated = totals.Estimated.Add(m.Estimated)
		totals.Realized = totals.Realized.Add(m.Realized)
		totals.Open = totals.Open.Add(m.Open)
		totals.EntryCount += m.EntryCount
	}
	if totals.Estimated.IsPositive() {
		rate, _ := totals.Realized.Div(totals.Estimated).Float64()
		totals.CollectionRate = &rate
	}
	return totals
}

// computeGrowth leaves the rate nil when there is nothing to compare against.
func computeGrowth(current, previous decimal.Decimal) (*decimal.Decimal, *float64) {
	amount := current.Sub(previous)
	if previous.IsZero() {
		return &amount, nil
	}
	rate, _ := amount.Div(previous).Float64()
	return &amount, &rate
}
