package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/smallbiznis/bukukas/internal/auditcontext"
	"github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"github.com/smallbiznis/bukukas/internal/calendar"
	"github.com/smallbiznis/bukukas/internal/clock"
	"github.com/smallbiznis/bukukas/internal/config"
	obslogger "github.com/smallbiznis/bukukas/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bukukas/internal/observability/metrics"
	"github.com/smallbiznis/bukukas/internal/observability/tracing"
	subscriberdomain "github.com/smallbiznis/bukukas/internal/subscriber/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Repo        domain.Repository
	Subscribers subscriberdomain.Repository
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Billing     *config.BillingConfigHolder
	Metrics     *obsmetrics.BillingMetrics `optional:"true"`
}

type Service struct {
	repo        domain.Repository
	subscribers subscriberdomain.Repository
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	billing     *config.BillingConfigHolder
	metrics     *obsmetrics.BillingMetrics
}

func New(p Params) domain.Service {
	return &Service{
		repo:        p.Repo,
		subscribers: p.Subscribers,
		log:         p.Log.Named("billingperiod.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		billing:     p.Billing,
		metrics:     p.Metrics,
	}
}

func (s *Service) CreateSchedule(ctx context.Context, req domain.CreateScheduleRequest) (domain.CreateScheduleResponse, error) {
	start, err := parseStartDate(req.StartDate)
	if err != nil {
		return domain.CreateScheduleResponse{}, err
	}
	if req.InitialTermMonths < 1 {
		return domain.CreateScheduleResponse{}, domain.ErrInvalidTermMonths
	}

	params, err := s.resolveTerm(ctx, req)
	if err != nil {
		return domain.CreateScheduleResponse{}, err
	}
	params.Start = start
	params.TermMonths = req.InitialTermMonths
	params.Discount = req.FirstDiscount
	params.ChainID = s.genID.Generate()

	ctx, span := tracing.StartSpan(ctx, "billingperiod.CreateSchedule",
		attribute.String("chain_id", params.ChainID.String()),
		attribute.String("start_date", calendar.FormatDate(start)),
	)
	defer span.End()

	entries := buildChain(s.genID.Generate, params, s.clock.Now())
	periods, err := s.pushGrouped(ctx, entries)
	if err != nil {
		s.metrics.RecordFailure("create_schedule")
		return domain.CreateScheduleResponse{}, err
	}
	s.metrics.RecordEntriesWritten("create_schedule", len(entries))

	obslogger.WithContext(ctx, s.log).Info("schedule created",
		zap.String("chain_id", params.ChainID.String()),
		zap.String("ref_id", params.RefID),
		zap.Int("entries", len(entries)),
		zap.Strings("periods", periods),
	)

	return domain.CreateScheduleResponse{
		ChainID:    params.ChainID.String(),
		EntryCount: len(entries),
		Periods:    periods,
	}, nil
}

// resolveTerm fills descriptive fields and price from the request, falling back
// to the referenced subscriber for anything left blank.
func (s *Service) resolveTerm(ctx context.Context, req domain.CreateScheduleRequest) (termParams, error) {
	params := termParams{
		RefID:          strings.TrimSpace(req.RefID),
		SubscriberName: strings.TrimSpace(req.SubscriberName),
		ProgramName:    strings.TrimSpace(req.ProgramName),
	}

	subscriberID := strings.TrimSpace(req.SubscriberID)
	if subscriberID == "" {
		if req.MonthlyPrice == nil || params.SubscriberName == "" {
			return termParams{}, domain.ErrMissingSubscriber
		}
		params.MonthlyPrice = *req.MonthlyPrice
		return params, nil
	}

	id, err := snowflake.ParseString(subscriberID)
	if err != nil || id == 0 {
		return termParams{}, domain.ErrMissingSubscriber
	}
	sub, err := s.subscribers.FindByID(ctx, id)
	if err != nil {
		return termParams{}, err
	}
	if sub == nil {
		return termParams{}, domain.ErrSubscriberNotFound
	}

	if params.RefID == "" {
		params.RefID = sub.ID.String()
	}
	if params.SubscriberName == "" {
		params.SubscriberName = sub.Name
	}
	if params.ProgramName == "" {
		params.ProgramName = sub.Program
	}
	if req.MonthlyPrice != nil {
		params.MonthlyPrice = *req.MonthlyPrice
	} else {
		params.MonthlyPrice = sub.MonthlyPrice
	}
	return params, nil
}

func (s *Service) GetEntriesByPeriod(ctx context.Context, period string) (domain.BillingPeriod, error) {
	period, err := validatePeriod(period)
	if err != nil {
		return domain.BillingPeriod{}, err
	}
	doc, err := s.repo.FindPeriod(ctx, period)
	if err != nil {
		return domain.BillingPeriod{}, err
	}
	if doc == nil {
		return domain.BillingPeriod{}, domain.ErrPeriodNotFound
	}
	if doc.Entries == nil {
		doc.Entries = []domain.BillingEntry{}
	}
	return *doc, nil
}

func (s *Service) GetAggregateByPeriod(ctx context.Context, period string) (domain.PeriodAggregate, error) {
	period, err := validatePeriod(period)
	if err != nil {
		return domain.PeriodAggregate{}, err
	}
	agg, err := s.repo.FindAggregate(ctx, period)
	if err != nil {
		return domain.PeriodAggregate{}, err
	}
	if agg == nil {
		return domain.PeriodAggregate{}, domain.ErrAggregateNotFound
	}
	return *agg, nil
}

func (s *Service) ListAggregates(ctx context.Context, req domain.ListAggregatesRequest) ([]domain.PeriodAggregate, error) {
	from, err := validatePeriod(req.From)
	if err != nil {
		return nil, err
	}
	to, err := validatePeriod(req.To)
	if err != nil {
		return nil, err
	}
	if from > to {
		return nil, domain.ErrInvalidPeriod
	}
	return s.repo.ListAggregates(ctx, from, to)
}

func (s *Service) SetEntryStatus(ctx context.Context, req domain.SetEntryStatusRequest) (domain.BillingEntry, error) {
	period, err := validatePeriod(req.Period)
	if err != nil {
		return domain.BillingEntry{}, err
	}
	entryID, err := parseEntryID(req.EntryID)
	if err != nil {
		return domain.BillingEntry{}, err
	}
	status, err := domain.ParseEntryStatus(req.Status)
	if err != nil {
		return domain.BillingEntry{}, err
	}

	entry, err := s.loadEntry(ctx, period, entryID)
	if err != nil {
		return domain.BillingEntry{}, err
	}

	updated := s.applyStatus(entry, status, req.PaidDate)
	if err := s.repo.UpdateEntry(ctx, period, updated, auditcontext.ActorFromContext(ctx)); err != nil {
		s.metrics.RecordFailure("set_entry_status")
		return domain.BillingEntry{}, err
	}
	if err := s.recompute(ctx, period); err != nil {
		return domain.BillingEntry{}, err
	}

	obslogger.WithPeriod(obslogger.WithContext(ctx, s.log), period).Info("entry status updated",
		zap.String("entry_id", entryID.String()),
		zap.String("status", string(status)),
	)
	return updated, nil
}

// applyStatus stamps PaidDate on DONE unless already set and clears it on OPEN.
func (s *Service) applyStatus(entry domain.BillingEntry, status domain.EntryStatus, paidDate *time.Time) domain.BillingEntry {
	now := s.clock.Now()
	entry.Status = status
	entry.UpdatedAt = now

	switch status {
	case domain.EntryStatusDone:
		switch {
		case paidDate != nil:
			paid := calendar.Normalize(*paidDate)
			entry.PaidDate = &paid
		case entry.PaidDate == nil:
			paid := calendar.Normalize(now)
			entry.PaidDate = &paid
		}
	default:
		entry.PaidDate = nil
	}
	return entry
}

func (s *Service) UpdateEntry(ctx context.Context, req domain.UpdateEntryRequest) (domain.UpdateEntryResponse, error) {
	period, err := validatePeriod(req.Period)
	if err != nil {
		return domain.UpdateEntryResponse{}, err
	}
	entryID, err := parseEntryID(req.EntryID)
	if err != nil {
		return domain.UpdateEntryResponse{}, err
	}
	if req.StartDate == nil && req.TermMonths == nil && req.MonthlyPrice == nil && req.Discount == nil && req.Status == nil {
		return domain.UpdateEntryResponse{}, domain.ErrEmptyUpdate
	}

	var status domain.EntryStatus
	if req.Status != nil {
		if status, err = domain.ParseEntryStatus(*req.Status); err != nil {
			return domain.UpdateEntryResponse{}, err
		}
	}

	if req.IsStatusOnly() {
		entry, err := s.SetEntryStatus(ctx, domain.SetEntryStatusRequest{
			Period:  period,
			EntryID: req.EntryID,
			Status:  string(status),
		})
		if err != nil {
			return domain.UpdateEntryResponse{}, err
		}
		return domain.UpdateEntryResponse{ChainID: entry.ChainID.String(), Periods: []string{period}}, nil
	}

	entry, err := s.loadEntry(ctx, period, entryID)
	if err != nil {
		return domain.UpdateEntryResponse{}, err
	}

	params, err := editedTerm(entry, req, period)
	if err != nil {
		return domain.UpdateEntryResponse{}, err
	}
	if status != "" {
		edited := s.applyStatus(entry, status, nil)
		params.Status = edited.Status
		params.PaidDate = edited.PaidDate
	}

	fiscalEnd := calendar.FiscalYearEnd(entry.PeriodStart)
	window, err := calendar.PeriodsBetween(period, calendar.PeriodKey(fiscalEnd))
	if err != nil {
		return domain.UpdateEntryResponse{}, err
	}

	ctx, span := tracing.StartSpan(ctx, "billingperiod.UpdateEntry",
		attribute.String("chain_id", entry.ChainID.String()),
		attribute.String("period", period),
	)
	defer span.End()

	rechained := buildRechain(entry.ID, s.genID.Generate, params, fiscalEnd, s.clock.Now())
	rechained[0].CreatedAt = entry.CreatedAt

	actor := auditcontext.ActorFromContext(ctx)
	filter := domain.EntryFilter{ChainID: entry.ChainID, RefID: entry.RefID}
	touched := map[string]struct{}{period: {}}
	removed := 0
	for _, p := range window {
		n, err := s.repo.PullEntries(ctx, p, filter, actor)
		if err != nil {
			s.metrics.RecordFailure("update_entry")
			return domain.UpdateEntryResponse{}, err
		}
		if n > 0 {
			touched[p] = struct{}{}
			removed += int(n)
		}
	}
	s.metrics.RecordEntriesRemoved("update_entry", removed)

	for _, group := range groupByPeriod(rechained) {
		if err := s.repo.PushEntries(ctx, group.period, group.entries, actor); err != nil {
			s.metrics.RecordFailure("update_entry")
			return domain.UpdateEntryResponse{}, err
		}
		touched[group.period] = struct{}{}
	}
	s.metrics.RecordEntriesWritten("update_entry", len(rechained))
	s.metrics.RecordRechain()

	periods := lo.Keys(touched)
	sort.Strings(periods)
	for _, p := range periods {
		if err := s.recompute(ctx, p); err != nil {
			return domain.UpdateEntryResponse{}, err
		}
	}

	obslogger.WithPeriod(obslogger.WithContext(ctx, s.log), period).Info("schedule rechained",
		zap.String("chain_id", entry.ChainID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.Int("removed", removed),
		zap.Int("written", len(rechained)),
		zap.Strings("periods", periods),
	)

	return domain.UpdateEntryResponse{ChainID: entry.ChainID.String(), Periods: periods}, nil
}

// editedTerm merges the request onto the stored entry and rejects a start date
// that leaves the entry's period.
func editedTerm(entry domain.BillingEntry, req domain.UpdateEntryRequest, period string) (termParams, error) {
	params := termParams{
		ChainID:        entry.ChainID,
		RefID:          entry.RefID,
		SubscriberName: entry.SubscriberName,
		ProgramName:    entry.ProgramName,
		Start:          entry.PeriodStart,
		TermMonths:     entry.TermMonths,
		MonthlyPrice:   entry.MonthlyPrice,
		Discount:       entry.DiscountAmount,
		Status:         entry.Status,
		PaidDate:       entry.PaidDate,
	}

	if req.StartDate != nil {
		start, err := parseStartDate(*req.StartDate)
		if err != nil {
			return termParams{}, err
		}
		if calendar.PeriodKey(start) != period {
			return termParams{}, domain.ErrStartOutsidePeriod
		}
		params.Start = start
	}
	if req.TermMonths != nil {
		if *req.TermMonths < 1 {
			return termParams{}, domain.ErrInvalidTermMonths
		}
		params.TermMonths = *req.TermMonths
	}
	if req.MonthlyPrice != nil {
		params.MonthlyPrice = *req.MonthlyPrice
	}
	if req.Discount != nil {
		params.Discount = *req.Discount
	}
	return params, nil
}

func (s *Service) DeleteEntry(ctx context.Context, req domain.DeleteEntryRequest) error {
	period, err := validatePeriod(req.Period)
	if err != nil {
		return err
	}
	entryID, err := parseEntryID(req.EntryID)
	if err != nil {
		return err
	}
	if _, err := s.loadEntry(ctx, period, entryID); err != nil {
		return err
	}

	n, err := s.repo.PullEntries(ctx, period, domain.EntryFilter{EntryID: entryID}, auditcontext.ActorFromContext(ctx))
	if err != nil {
		s.metrics.RecordFailure("delete_entry")
		return err
	}
	s.metrics.RecordEntriesRemoved("delete_entry", int(n))

	return s.recompute(ctx, period)
}

func (s *Service) RemoveByRef(ctx context.Context, refID string) (domain.RemoveByRefResponse, error) {
	refID = strings.TrimSpace(refID)
	if refID == "" {
		return domain.RemoveByRefResponse{}, domain.ErrInvalidRefID
	}

	periods, err := s.repo.ListPeriodsByRef(ctx, refID)
	if err != nil {
		return domain.RemoveByRefResponse{}, err
	}

	actor := auditcontext.ActorFromContext(ctx)
	removed := 0
	for _, p := range periods {
		n, err := s.repo.PullEntries(ctx, p, domain.EntryFilter{RefID: refID}, actor)
		if err != nil {
			s.metrics.RecordFailure("remove_by_ref")
			return domain.RemoveByRefResponse{}, err
		}
		removed += int(n)
		if err := s.recompute(ctx, p); err != nil {
			return domain.RemoveByRefResponse{}, err
		}
	}
	s.metrics.RecordEntriesRemoved("remove_by_ref", removed)

	if periods == nil {
		periods = []string{}
	}
	return domain.RemoveByRefResponse{Removed: removed, Periods: periods}, nil
}

func (s *Service) RegenerateNextFiscalYear(ctx context.Context) (domain.RegenerateResponse, error) {
	fy := s.billing.Get().ActiveFiscalYear
	if fy == 0 {
		fy = calendar.FiscalYearOf(s.clock.Now())
	}
	return s.RegenerateFiscalYear(ctx, fy)
}

// RegenerateFiscalYear gives every active subscriber one entry per month of fy,
// skipping months it already has and months that end before it started.
func (s *Service) RegenerateFiscalYear(ctx context.Context, fiscalYear int) (domain.RegenerateResponse, error) {
	if fiscalYear < 2000 || fiscalYear > 2100 {
		return domain.RegenerateResponse{}, domain.ErrInvalidFiscalYear
	}

	subs, err := s.subscribers.ListActive(ctx)
	if err != nil {
		return domain.RegenerateResponse{}, err
	}

	now := s.clock.Now()
	var all []domain.BillingEntry
	updated := 0
	for _, sub := range subs {
		entries, err := s.rolloverEntries(ctx, sub, fiscalYear, now)
		if err != nil {
			return domain.RegenerateResponse{}, err
		}
		if len(entries) == 0 {
			continue
		}
		updated++
		all = append(all, entries...)
	}

	if _, err := s.pushGrouped(ctx, all); err != nil {
		s.metrics.RecordFailure("regenerate_fiscal_year")
		return domain.RegenerateResponse{}, err
	}
	s.metrics.RecordEntriesWritten("regenerate_fiscal_year", len(all))
	s.metrics.RecordRollover(fiscalYear, updated)

	obslogger.WithContext(ctx, s.log).Info("fiscal year regenerated",
		zap.Int("fiscal_year", fiscalYear),
		zap.Int("subscribers", updated),
		zap.Int("entries", len(all)),
	)

	return domain.RegenerateResponse{FiscalYear: fiscalYear, Subscribers: updated, Entries: len(all)}, nil
}

func (s *Service) rolloverEntries(ctx context.Context, sub subscriberdomain.Subscriber, fiscalYear int, now time.Time) ([]domain.BillingEntry, error) {
	refID := sub.ID.String()
	has, err := s.coveredPeriods(ctx, refID)
	if err != nil {
		return nil, err
	}

	started := calendar.Normalize(sub.StartDate)
	chainID := s.genID.Generate()
	var entries []domain.BillingEntry
	for _, period := range calendar.FiscalYearPeriods(fiscalYear) {
		if _, ok := has[period]; ok {
			continue
		}
		monthEnd, err := calendar.EndOfPeriod(period)
		if err != nil {
			return nil, err
		}
		if monthEnd.Before(started) {
			continue
		}

		day := started.Day()
		if last := monthEnd.Day(); day > last {
			day = last
		}
		start := calendar.Date(monthEnd.Year(), monthEnd.Month(), day)

		entries = append(entries, buildEntry(s.genID.Generate(), termParams{
			ChainID:        chainID,
			RefID:          refID,
			SubscriberName: sub.Name,
			ProgramName:    sub.Program,
			Start:          start,
			TermMonths:     1,
			MonthlyPrice:   sub.MonthlyPrice,
		}, false, now))
	}
	return entries, nil
}

// coveredPeriods lists every month billed for refID, counting each month of a
// multi-month term and not only the period that owns the entry.
func (s *Service) coveredPeriods(ctx context.Context, refID string) (map[string]struct{}, error) {
	periods, err := s.repo.ListPeriodsByRef(ctx, refID)
	if err != nil {
		return nil, err
	}
	covered := make(map[string]struct{}, len(periods))
	for _, period := range periods {
		doc, err := s.repo.FindPeriod(ctx, period)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		for _, e := range doc.Entries {
			if e.RefID != refID {
				continue
			}
			for i := 0; i < max(e.TermMonths, 1); i++ {
				covered[calendar.PeriodKey(calendar.AddMonths(e.PeriodStart, i))] = struct{}{}
			}
		}
	}
	return covered, nil
}

type periodGroup struct {
	period  string
	entries []domain.BillingEntry
}

// groupByPeriod keeps first-seen period order and entry order within a period.
func groupByPeriod(entries []domain.BillingEntry) []periodGroup {
	byPeriod := lo.GroupBy(entries, func(e domain.BillingEntry) string { return e.Period })
	order := lo.Uniq(lo.Map(entries, func(e domain.BillingEntry, _ int) string { return e.Period }))
	return lo.Map(order, func(p string, _ int) periodGroup {
		return periodGroup{period: p, entries: byPeriod[p]}
	})
}

// pushGrouped writes each period group and then recomputes its aggregate. A
// failure stops the loop; earlier periods stay written.
func (s *Service) pushGrouped(ctx context.Context, entries []domain.BillingEntry) ([]string, error) {
	actor := auditcontext.ActorFromContext(ctx)
	groups := groupByPeriod(entries)
	periods := make([]string, 0, len(groups))
	for _, group := range groups {
		if err := s.repo.PushEntries(ctx, group.period, group.entries, actor); err != nil {
			return periods, err
		}
		if err := s.recompute(ctx, group.period); err != nil {
			return periods, err
		}
		periods = append(periods, group.period)
	}
	return periods, nil
}

func (s *Service) recompute(ctx context.Context, period string) error {
	doc, err := s.repo.FindPeriod(ctx, period)
	if err != nil {
		return err
	}
	var entries []domain.BillingEntry
	if doc != nil {
		entries = doc.Entries
	}
	return s.repo.SaveAggregate(ctx, computeAggregate(period, entries, s.clock.Now()))
}

func (s *Service) loadEntry(ctx context.Context, period string, id snowflake.ID) (domain.BillingEntry, error) {
	doc, err := s.repo.FindPeriod(ctx, period)
	if err != nil {
		return domain.BillingEntry{}, err
	}
	if doc == nil {
		return domain.BillingEntry{}, domain.ErrPeriodNotFound
	}
	entry := doc.FindEntry(id)
	if entry == nil {
		return domain.BillingEntry{}, domain.ErrEntryNotFound
	}
	return *entry, nil
}

func validatePeriod(period string) (string, error) {
	period = strings.TrimSpace(period)
	if !calendar.IsPeriod(period) {
		return "", domain.ErrInvalidPeriod
	}
	return period, nil
}

func parseStartDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, domain.ErrInvalidStartDate
	}
	start, err := calendar.ParseDate(raw)
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidDate) {
			return time.Time{}, domain.ErrInvalidStartDate
		}
		return time.Time{}, err
	}
	return start, nil
}

func parseEntryID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidEntryID
	}
	return id, nil
}
