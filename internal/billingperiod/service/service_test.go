package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"github.com/smallbiznis/bukukas/internal/billingperiod/repository"
	"github.com/smallbiznis/bukukas/internal/calendar"
	"github.com/smallbiznis/bukukas/internal/clock"
	"github.com/smallbiznis/bukukas/internal/config"
	subscriberdomain "github.com/smallbiznis/bukukas/internal/subscriber/domain"
	"github.com/smallbiznis/bukukas/pkg/db"
	"github.com/smallbiznis/bukukas/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscribers struct {
	items []subscriberdomain.Subscriber
}

func (f *fakeSubscribers) Insert(_ context.Context, s *subscriberdomain.Subscriber) error {
	f.items = append(f.items, *s)
	return nil
}

func (f *fakeSubscribers) InsertBatch(ctx context.Context, subs []*subscriberdomain.Subscriber) error {
	for _, s := range subs {
		_ = f.Insert(ctx, s)
	}
	return nil
}

func (f *fakeSubscribers) FindByID(_ context.Context, id snowflake.ID) (*subscriberdomain.Subscriber, error) {
	for i := range f.items {
		if f.items[i].ID == id {
			s := f.items[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeSubscribers) List(context.Context, subscriberdomain.ListSubscriberFilter, pagination.Pagination) ([]*subscriberdomain.Subscriber, error) {
	return nil, nil
}

func (f *fakeSubscribers) ListActive(context.Context) ([]subscriberdomain.Subscriber, error) {
	var out []subscriberdomain.Subscriber
	for _, s := range f.items {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubscribers) Update(context.Context, *subscriberdomain.Subscriber) error { return nil }

func (f *fakeSubscribers) Delete(context.Context, snowflake.ID) (bool, error) { return false, nil }

type fixture struct {
	svc   domain.Service
	repo  domain.Repository
	subs  *fakeSubscribers
	clock *clock.FakeClock
	node  *snowflake.Node
}

func newFixture(t *testing.T, activeFiscalYear int) *fixture {
	t.Helper()

	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.BillingPeriod{}, &domain.BillingEntry{}, &domain.PeriodAggregate{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	billing := config.DefaultBillingConfig()
	billing.ActiveFiscalYear = activeFiscalYear

	f := &fixture{
		repo:  repository.Provide(conn, node),
		subs:  &fakeSubscribers{},
		clock: clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)),
		node:  node,
	}
	f.svc = New(Params{
		Repo:        f.repo,
		Subscribers: f.subs,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       f.clock,
		Billing:     config.NewStaticBillingConfigHolder(billing),
	})
	return f
}

func price(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func (f *fixture) period(t *testing.T, period string) domain.BillingPeriod {
	t.Helper()
	doc, err := f.svc.GetEntriesByPeriod(context.Background(), period)
	require.NoError(t, err)
	return doc
}

// assertAggregateMatches checks the stored aggregate against the period's entries.
func (f *fixture) assertAggregateMatches(t *testing.T, period string) domain.PeriodAggregate {
	t.Helper()
	doc := f.period(t, period)
	agg, err := f.svc.GetAggregateByPeriod(context.Background(), period)
	require.NoError(t, err)

	estimated, realized := decimal.Zero, decimal.Zero
	for _, e := range doc.Entries {
		estimated = estimated.Add(e.NetAmount)
		if e.Status == domain.EntryStatusDone {
			realized = realized.Add(e.NetAmount)
		}
	}
	assert.True(t, agg.Estimated.Equal(estimated), "estimated %s != %s", agg.Estimated, estimated)
	assert.True(t, agg.Realized.Equal(realized), "realized %s != %s", agg.Realized, realized)
	assert.True(t, agg.Open.Equal(estimated.Sub(realized)), "open %s", agg.Open)
	assert.Equal(t, len(doc.Entries), agg.EntryCount)
	return agg
}

func (f *fixture) createTokoA(t *testing.T) domain.CreateScheduleResponse {
	t.Helper()
	resp, err := f.svc.CreateSchedule(context.Background(), domain.CreateScheduleRequest{
		RefID:             "toko-a",
		SubscriberName:    "Toko A",
		ProgramName:       "VPS Basic",
		MonthlyPrice:      price(100000),
		StartDate:         "2025-01-15",
		InitialTermMonths: 3,
		FirstDiscount:     decimal.NewFromInt(50000),
	})
	require.NoError(t, err)
	return resp
}

func TestCreateScheduleEndToEnd(t *testing.T) {
	f := newFixture(t, 0)
	resp := f.createTokoA(t)

	assert.Equal(t, 9, resp.EntryCount)
	assert.Equal(t, []string{
		"2025-01", "2025-04", "2025-05", "2025-06", "2025-07",
		"2025-08", "2025-09", "2025-10", "2025-11",
	}, resp.Periods)

	jan := f.period(t, "2025-01")
	require.Len(t, jan.Entries, 1)
	first := jan.Entries[0]
	assert.Equal(t, "2025-01-15", calendar.FormatDate(first.PeriodStart))
	assert.Equal(t, "2025-04-14", calendar.FormatDate(first.DueDate))
	assert.Equal(t, 3, first.TermMonths)
	assert.Equal(t, "300000", first.GrossAmount.String())
	assert.Equal(t, "50000", first.DiscountAmount.String())
	assert.Equal(t, 17, first.DiscountPercent)
	assert.Equal(t, "250000", first.NetAmount.String())
	assert.Equal(t, domain.EntryStatusOpen, first.Status)
	assert.Equal(t, "toko-a", first.RefID)

	for _, p := range resp.Periods[1:] {
		doc := f.period(t, p)
		require.Len(t, doc.Entries, 1, p)
		e := doc.Entries[0]
		assert.Equal(t, 1, e.TermMonths)
		assert.True(t, e.DiscountAmount.IsZero())
		assert.Equal(t, 0, e.DiscountPercent)
		assert.Equal(t, "100000", e.NetAmount.String())
		assert.Equal(t, 15, e.PeriodStart.Day())
		assert.Equal(t, first.ChainID, e.ChainID)
	}

	agg := f.assertAggregateMatches(t, "2025-01")
	assert.Equal(t, "250000", agg.Estimated.String())
	assert.Equal(t, 1, agg.SubscriberCount())
}

func TestBuildChainCoversEveryDayToFiscalEnd(t *testing.T) {
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	start := calendar.Date(2025, time.December, 8)
	entries := buildChain(node.Generate, termParams{
		SubscriberName: "Toko B",
		Start:          start,
		TermMonths:     6,
		MonthlyPrice:   decimal.NewFromInt(50000),
	}, time.Now())

	fiscalEnd := calendar.Date(2026, time.November, 30)
	require.NotEmpty(t, entries)
	assert.Equal(t, start, entries[0].PeriodStart)
	assert.Equal(t, calendar.Date(2026, time.June, 7), entries[0].DueDate)

	for i := 1; i < len(entries); i++ {
		assert.Equal(t, calendar.AddDays(entries[i-1].DueDate, 1), entries[i].PeriodStart, "gap before entry %d", i)
		assert.False(t, entries[i].PeriodStart.After(fiscalEnd))
	}
	last := entries[len(entries)-1]
	assert.False(t, last.DueDate.Before(fiscalEnd), "chain stops before fiscal end")
	assert.Len(t, entries, 7)
}

func TestBuildChainZeroGrossHasZeroPercent(t *testing.T) {
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	entries := buildChain(node.Generate, termParams{
		SubscriberName: "Free",
		Start:          calendar.Date(2025, time.November, 1),
		TermMonths:     1,
		MonthlyPrice:   decimal.NewFromInt(-10),
		Discount:       decimal.NewFromInt(-5),
	}, time.Now())

	require.Len(t, entries, 1)
	assert.True(t, entries[0].GrossAmount.IsZero())
	assert.True(t, entries[0].DiscountAmount.IsZero())
	assert.Equal(t, 0, entries[0].DiscountPercent)
}

func TestCreateScheduleFromSubscriber(t *testing.T) {
	f := newFixture(t, 0)
	node := f.node
	sub := subscriberdomain.Subscriber{
		ID:           node.Generate(),
		Name:         "Warung C",
		Program:      "VPS Pro",
		MonthlyPrice: decimal.NewFromInt(75000),
		Status:       subscriberdomain.SubscriberStatusActive,
	}
	f.subs.items = append(f.subs.items, sub)

	resp, err := f.svc.CreateSchedule(context.Background(), domain.CreateScheduleRequest{
		SubscriberID:      sub.ID.String(),
		StartDate:         "2025-11-01",
		InitialTermMonths: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.EntryCount)

	doc := f.period(t, "2025-11")
	require.Len(t, doc.Entries, 1)
	assert.Equal(t, sub.ID.String(), doc.Entries[0].RefID)
	assert.Equal(t, "Warung C", doc.Entries[0].SubscriberName)
	assert.Equal(t, "75000", doc.Entries[0].NetAmount.String())
}

func TestCreateScheduleValidation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreateScheduleRequest
		want error
	}{
		{"missing start", domain.CreateScheduleRequest{SubscriberName: "A", MonthlyPrice: price(1), InitialTermMonths: 1}, domain.ErrInvalidStartDate},
		{"bad start", domain.CreateScheduleRequest{SubscriberName: "A", MonthlyPrice: price(1), StartDate: "2025-13-01", InitialTermMonths: 1}, domain.ErrInvalidStartDate},
		{"zero term", domain.CreateScheduleRequest{SubscriberName: "A", MonthlyPrice: price(1), StartDate: "2025-01-01"}, domain.ErrInvalidTermMonths},
		{"no price no subscriber", domain.CreateScheduleRequest{SubscriberName: "A", StartDate: "2025-01-01", InitialTermMonths: 1}, domain.ErrMissingSubscriber},
		{"unknown subscriber", domain.CreateScheduleRequest{SubscriberID: "12345", StartDate: "2025-01-01", InitialTermMonths: 1}, domain.ErrSubscriberNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateSchedule(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	aggs, err := f.svc.ListAggregates(ctx, domain.ListAggregatesRequest{From: "2024-01", To: "2026-12"})
	require.NoError(t, err)
	assert.Empty(t, aggs, "validation failures must not write")
}

func TestSetEntryStatusStampsPaidDate(t *testing.T) {
	f := newFixture(t, 0)
	f.createTokoA(t)
	ctx := context.Background()

	entry := f.period(t, "2025-04").Entries[0]
	updated, err := f.svc.SetEntryStatus(ctx, domain.SetEntryStatusRequest{
		Period:  "2025-04",
		EntryID: entry.ID.String(),
		Status:  "done",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.PaidDate)
	assert.Equal(t, "2025-06-01", calendar.FormatDate(*updated.PaidDate))

	agg := f.assertAggregateMatches(t, "2025-04")
	assert.Equal(t, "100000", agg.Realized.String())
	assert.True(t, agg.Open.IsZero())

	reopened, err := f.svc.SetEntryStatus(ctx, domain.SetEntryStatusRequest{
		Period:  "2025-04",
		EntryID: entry.ID.String(),
		Status:  "OPEN",
	})
	require.NoError(t, err)
	assert.Nil(t, reopened.PaidDate)
	assert.Nil(t, f.period(t, "2025-04").Entries[0].PaidDate)
	f.assertAggregateMatches(t, "2025-04")

	_, err = f.svc.SetEntryStatus(ctx, domain.SetEntryStatusRequest{Period: "2025-04", EntryID: entry.ID.String(), Status: "PAID"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.SetEntryStatus(ctx, domain.SetEntryStatusRequest{Period: "2025-04", EntryID: "999", Status: "DONE"})
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = f.svc.SetEntryStatus(ctx, domain.SetEntryStatusRequest{Period: "2030-01", EntryID: entry.ID.String(), Status: "DONE"})
	assert.ErrorIs(t, err, domain.ErrPeriodNotFound)
}

func TestUpdateEntryRejectsStartOutsidePeriod(t *testing.T) {
	f := newFixture(t, 0)
	f.createTokoA(t)

	before := f.period(t, "2025-01")
	moved := "2025-02-01"
	_, err := f.svc.UpdateEntry(context.Background(), domain.UpdateEntryRequest{
		Period:    "2025-01",
		EntryID:   before.Entries[0].ID.String(),
		StartDate: &moved,
	})
	assert.ErrorIs(t, err, domain.ErrStartOutsidePeriod)

	after := f.period(t, "2025-01")
	assert.Equal(t, before.Entries, after.Entries)
	assert.Len(t, f.period(t, "2025-05").Entries, 1)
	_, err = f.svc.GetEntriesByPeriod(context.Background(), "2025-02")
	assert.ErrorIs(t, err, domain.ErrPeriodNotFound)
}

func TestUpdateEntryRechainsIntoConsolidatedRemainder(t *testing.T) {
	f := newFixture(t, 0)
	created := f.createTokoA(t)
	ctx := context.Background()

	first := f.period(t, "2025-01").Entries[0]
	term := 1
	resp, err := f.svc.UpdateEntry(ctx, domain.UpdateEntryRequest{
		Period:     "2025-01",
		EntryID:    first.ID.String(),
		TermMonths: &term,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ChainID, resp.ChainID)
	assert.Contains(t, resp.Periods, "2025-01")
	assert.Contains(t, resp.Periods, "2025-02")
	assert.Contains(t, resp.Periods, "2025-11")

	jan := f.period(t, "2025-01")
	require.Len(t, jan.Entries, 1)
	edited := jan.Entries[0]
	assert.Equal(t, first.ID, edited.ID, "edited entry keeps its id")
	assert.Equal(t, 1, edited.TermMonths)
	assert.Equal(t, "2025-02-14", calendar.FormatDate(edited.DueDate))
	assert.Equal(t, "50000", edited.NetAmount.String())
	assert.Equal(t, 50, edited.DiscountPercent)

	feb := f.period(t, "2025-02")
	require.Len(t, feb.Entries, 1)
	rest := feb.Entries[0]
	assert.Equal(t, "2025-02-15", calendar.FormatDate(rest.PeriodStart))
	assert.Equal(t, 10, rest.TermMonths)
	assert.Equal(t, "1000000", rest.NetAmount.String())
	assert.True(t, rest.DiscountAmount.IsZero())
	assert.Equal(t, first.ChainID, rest.ChainID)

	for _, p := range []string{"2025-04", "2025-07", "2025-11"} {
		doc := f.period(t, p)
		assert.Empty(t, doc.Entries, "chain entries in %s must be pulled", p)
		agg := f.assertAggregateMatches(t, p)
		assert.Equal(t, 0, agg.EntryCount)
	}
	f.assertAggregateMatches(t, "2025-01")
	f.assertAggregateMatches(t, "2025-02")
}

func TestUpdateEntryLeavesOtherChainsAlone(t *testing.T) {
	f := newFixture(t, 0)
	f.createTokoA(t)
	ctx := context.Background()

	_, err := f.svc.CreateSchedule(ctx, domain.CreateScheduleRequest{
		RefID:             "toko-b",
		SubscriberName:    "Toko B",
		MonthlyPrice:      price(20000),
		StartDate:         "2025-05-01",
		InitialTermMonths: 1,
	})
	require.NoError(t, err)
	require.Len(t, f.period(t, "2025-05").Entries, 2)

	first := f.period(t, "2025-01").Entries[0]
	discount := decimal.Zero
	_, err = f.svc.UpdateEntry(ctx, domain.UpdateEntryRequest{Period: "2025-01", EntryID: first.ID.String(), Discount: &discount})
	require.NoError(t, err)

	may := f.period(t, "2025-05")
	require.Len(t, may.Entries, 1)
	assert.Equal(t, "Toko B", may.Entries[0].SubscriberName)
	f.assertAggregateMatches(t, "2025-05")
}

func TestUpdateEntryStatusOnlyDoesNotRechain(t *testing.T) {
	f := newFixture(t, 0)
	f.createTokoA(t)

	first := f.period(t, "2025-01").Entries[0]
	done := "DONE"
	resp, err := f.svc.UpdateEntry(context.Background(), domain.UpdateEntryRequest{
		Period:  "2025-01",
		EntryID: first.ID.String(),
		Status:  &done,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01"}, resp.Periods)
	assert.Len(t, f.period(t, "2025-11").Entries, 1)

	agg := f.assertAggregateMatches(t, "2025-01")
	assert.Equal(t, "250000", agg.Realized.String())
}

func TestUpdateEntryRejectsEmptyAndBadStatus(t *testing.T) {
	f := newFixture(t, 0)
	f.createTokoA(t)
	first := f.period(t, "2025-01").Entries[0]

	_, err := f.svc.UpdateEntry(context.Background(), domain.UpdateEntryRequest{Period: "2025-01", EntryID: first.ID.String()})
	assert.ErrorIs(t, err, domain.ErrEmptyUpdate)

	bad := "CANCELLED"
	term := 2
	_, err = f.svc.UpdateEntry(context.Background(), domain.UpdateEntryRequest{Period: "2025-01", EntryID: first.ID.String(), Status: &bad, TermMonths: &term})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	assert.Equal(t, 3, f.period(t, "2025-01").Entries[0].TermMonths)
}

func TestDeleteEntryKeepsPeriodDocument(t *testing.T) {
	f := newFixture(t, 0)
	f.createTokoA(t)
	ctx := context.Background()

	entry := f.period(t, "2025-06").Entries[0]
	require.NoError(t, f.svc.DeleteEntry(ctx, domain.DeleteEntryRequest{Period: "2025-06", EntryID: entry.ID.String()}))

	doc := f.period(t, "2025-06")
	assert.Empty(t, doc.Entries)
	agg := f.assertAggregateMatches(t, "2025-06")
	assert.True(t, agg.Estimated.IsZero())

	err := f.svc.DeleteEntry(ctx, domain.DeleteEntryRequest{Period: "2025-06", EntryID: entry.ID.String()})
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestRemoveByRef(t *testing.T) {
	f := newFixture(t, 0)
	f.createTokoA(t)

	resp, err := f.svc.RemoveByRef(context.Background(), "toko-a")
	require.NoError(t, err)
	assert.Equal(t, 9, resp.Removed)
	assert.Len(t, resp.Periods, 9)

	for _, p := range resp.Periods {
		assert.Empty(t, f.period(t, p).Entries)
		f.assertAggregateMatches(t, p)
	}

	_, err = f.svc.RemoveByRef(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidRefID)
}

func TestRegenerateFiscalYearIsIdempotent(t *testing.T) {
	f := newFixture(t, 2026)
	ctx := context.Background()
	f.subs.items = []subscriberdomain.Subscriber{
		{ID: f.node.Generate(), Name: "Early", MonthlyPrice: decimal.NewFromInt(10000), StartDate: calendar.Date(2024, time.March, 31), Status: subscriberdomain.SubscriberStatusActive},
		{ID: f.node.Generate(), Name: "Late", MonthlyPrice: decimal.NewFromInt(20000), StartDate: calendar.Date(2026, time.March, 20), Status: subscriberdomain.SubscriberStatusActive},
		{ID: f.node.Generate(), Name: "Gone", MonthlyPrice: decimal.NewFromInt(30000), StartDate: calendar.Date(2024, time.January, 1), Status: subscriberdomain.SubscriberStatusInactive},
	}

	first, err := f.svc.RegenerateNextFiscalYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2026, first.FiscalYear)
	assert.Equal(t, 2, first.Subscribers)
	assert.Equal(t, 12+9, first.Entries)

	feb := f.period(t, "2026-02")
	require.Len(t, feb.Entries, 1)
	assert.Equal(t, "2026-02-28", calendar.FormatDate(feb.Entries[0].PeriodStart), "day clamps to month end")

	start, err := calendar.PeriodsBetween("2025-12", "2026-11")
	require.NoError(t, err)
	for _, p := range start {
		f.assertAggregateMatches(t, p)
	}

	second, err := f.svc.RegenerateNextFiscalYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Subscribers)
	assert.Equal(t, 0, second.Entries)
	assert.Len(t, f.period(t, "2026-05").Entries, 2)
}

func TestRegenerateNextFiscalYearDefaultsToClock(t *testing.T) {
	f := newFixture(t, 0)
	f.clock.Set(time.Date(2025, time.December, 3, 0, 0, 0, 0, time.UTC))

	resp, err := f.svc.RegenerateNextFiscalYear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2026, resp.FiscalYear)
	assert.Equal(t, 0, resp.Subscribers)

	_, err = f.svc.RegenerateFiscalYear(context.Background(), 1999)
	assert.ErrorIs(t, err, domain.ErrInvalidFiscalYear)
}

func TestListAggregatesRange(t *testing.T) {
	f := newFixture(t, 0)
	f.createTokoA(t)

	aggs, err := f.svc.ListAggregates(context.Background(), domain.ListAggregatesRequest{From: "2025-04", To: "2025-06"})
	require.NoError(t, err)
	require.Len(t, aggs, 3)
	assert.Equal(t, "2025-04", aggs[0].Period)
	assert.Equal(t, "2025-06", aggs[2].Period)

	_, err = f.svc.ListAggregates(context.Background(), domain.ListAggregatesRequest{From: "2025-06", To: "2025-04"})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)

	_, err = f.svc.GetAggregateByPeriod(context.Background(), "2025-4")
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

// zonedRepository hands stored dates back in loc, as pgx does with time.Local.
type zonedRepository struct {
	domain.Repository
	loc *time.Location
}

func (r zonedRepository) FindPeriod(ctx context.Context, period string) (*domain.BillingPeriod, error) {
	doc, err := r.Repository.FindPeriod(ctx, period)
	if err != nil || doc == nil {
		return doc, err
	}
	for i := range doc.Entries {
		e := &doc.Entries[i]
		e.PeriodStart = e.PeriodStart.In(r.loc)
		e.DueDate = e.DueDate.In(r.loc)
		if e.PaidDate != nil {
			paid := e.PaidDate.In(r.loc)
			e.PaidDate = &paid
		}
	}
	return doc, nil
}

func TestUpdateEntryKeepsPeriodWhenDatesComeBackZoned(t *testing.T) {
	f := newFixture(t, 0)
	f.svc = New(Params{
		Repo:        zonedRepository{Repository: f.repo, loc: time.FixedZone("EST", -5*3600)},
		Subscribers: f.subs,
		Log:         zap.NewNop(),
		GenID:       f.node,
		Clock:       f.clock,
		Billing:     config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})
	ctx := context.Background()

	_, err := f.svc.CreateSchedule(ctx, domain.CreateScheduleRequest{
		RefID:             "toko-c",
		SubscriberName:    "Toko C",
		MonthlyPrice:      price(100),
		StartDate:         "2025-12-01",
		InitialTermMonths: 1,
	})
	require.NoError(t, err)

	jan := f.period(t, "2026-01")
	require.Len(t, jan.Entries, 1)
	resp, err := f.svc.UpdateEntry(ctx, domain.UpdateEntryRequest{
		Period:       "2026-01",
		EntryID:      jan.Entries[0].ID.String(),
		MonthlyPrice: price(200),
	})
	require.NoError(t, err)
	assert.NotContains(t, resp.Periods, "2025-12")

	jan = f.period(t, "2026-01")
	require.Len(t, jan.Entries, 1)
	assert.Equal(t, "2026-01-01", calendar.FormatDate(jan.Entries[0].PeriodStart))
	assert.Equal(t, "200", jan.Entries[0].MonthlyPrice.String())

	dec := f.period(t, "2025-12")
	require.Len(t, dec.Entries, 1)
	assert.Equal(t, "2025-12-01", calendar.FormatDate(dec.Entries[0].PeriodStart))
	assert.Equal(t, "100", dec.Entries[0].MonthlyPrice.String())

	f.assertAggregateMatches(t, "2025-12")
	f.assertAggregateMatches(t, "2026-01")
}

func TestRegenerateFiscalYearSkipsMonthsInsideLongerTerm(t *testing.T) {
	f := newFixture(t, 2026)
	ctx := context.Background()
	sub := subscriberdomain.Subscriber{
		ID:                f.node.Generate(),
		Name:              "Toko D",
		MonthlyPrice:      decimal.NewFromInt(10000),
		StartDate:         calendar.Date(2025, time.December, 8),
		InitialTermMonths: 6,
		Status:            subscriberdomain.SubscriberStatusActive,
	}
	f.subs.items = []subscriberdomain.Subscriber{sub}

	_, err := f.svc.CreateSchedule(ctx, domain.CreateScheduleRequest{
		RefID:             sub.ID.String(),
		SubscriberName:    sub.Name,
		MonthlyPrice:      price(10000),
		StartDate:         "2025-12-08",
		InitialTermMonths: 6,
	})
	require.NoError(t, err)

	resp, err := f.svc.RegenerateNextFiscalYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Entries)
	assert.Equal(t, 0, resp.Subscribers)

	for _, p := range []string{"2026-01", "2026-03", "2026-05"} {
		_, err := f.svc.GetEntriesByPeriod(ctx, p)
		assert.ErrorIs(t, err, domain.ErrPeriodNotFound, "%s is billed by the December term", p)
	}
}
