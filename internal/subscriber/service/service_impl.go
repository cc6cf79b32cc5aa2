package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	bpdomain "github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"github.com/smallbiznis/bukukas/internal/calendar"
	"github.com/smallbiznis/bukukas/internal/clock"
	obslogger "github.com/smallbiznis/bukukas/internal/observability/logger"
	"github.com/smallbiznis/bukukas/internal/subscriber/domain"
	"github.com/smallbiznis/bukukas/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Repo      domain.Repository
	Schedules bpdomain.Service
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
}

type Service struct {
	repo      domain.Repository
	schedules bpdomain.Service
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		repo:      p.Repo,
		schedules: p.Schedules,
		log:       p.Log.Named("subscriber.service"),
		genID:     p.GenID,
		clock:     p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSubscriberRequest) (domain.CreateSubscriberResponse, error) {
	subscriber, err := s.newSubscriber(req)
	if err != nil {
		return domain.CreateSubscriberResponse{}, err
	}

	if err := s.repo.Insert(ctx, &subscriber); err != nil {
		return domain.CreateSubscriberResponse{}, err
	}

	resp := domain.CreateSubscriberResponse{Subscriber: subscriber, Periods: []string{}}
	if req.SkipSchedule {
		return resp, nil
	}

	schedule, err := s.schedules.CreateSchedule(ctx, scheduleRequest(subscriber))
	if err != nil {
		// Leave no subscriber without a schedule behind.
		if _, delErr := s.repo.Delete(ctx, subscriber.ID); delErr != nil {
			s.log.Warn("failed to roll back subscriber", zap.String("subscriber_id", subscriber.ID.String()), zap.Error(delErr))
		}
		return domain.CreateSubscriberResponse{}, err
	}
	resp.EntryCount = schedule.EntryCount
	resp.Periods = schedule.Periods

	obslogger.WithContext(ctx, s.log).Info("subscriber created",
		zap.String("subscriber_id", subscriber.ID.String()),
		zap.Int("entries", schedule.EntryCount),
	)
	return resp, nil
}

func (s *Service) newSubscriber(req domain.CreateSubscriberRequest) (domain.Subscriber, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Subscriber{}, domain.ErrInvalidName
	}
	if req.MonthlyPrice.IsNegative() {
		return domain.Subscriber{}, domain.ErrInvalidPrice
	}
	if req.FirstDiscount.IsNegative() {
		return domain.Subscriber{}, domain.ErrInvalidDiscount
	}
	if strings.TrimSpace(req.StartDate) == "" {
		return domain.Subscriber{}, domain.ErrInvalidStartDate
	}
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		return domain.Subscriber{}, domain.ErrInvalidStartDate
	}

	term := req.InitialTermMonths
	if term == 0 {
		term = 1
	}
	if term < 1 {
		return domain.Subscriber{}, domain.ErrInvalidTermMonths
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	now := s.clock.Now()
	return domain.Subscriber{
		ID:                s.genID.Generate(),
		Name:              name,
		Program:           strings.TrimSpace(req.Program),
		MonthlyPrice:      req.MonthlyPrice,
		StartDate:         start,
		InitialTermMonths: term,
		FirstDiscount:     req.FirstDiscount,
		Status:            domain.SubscriberStatusActive,
		Metadata:          metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func scheduleRequest(sub domain.Subscriber) bpdomain.CreateScheduleRequest {
	price := sub.MonthlyPrice
	return bpdomain.CreateScheduleRequest{
		RefID:             sub.ID.String(),
		SubscriberName:    sub.Name,
		ProgramName:       sub.Program,
		MonthlyPrice:      &price,
		StartDate:         calendar.FormatDate(sub.StartDate),
		InitialTermMonths: sub.InitialTermMonths,
		FirstDiscount:     sub.FirstDiscount,
	}
}

func (s *Service) Get(ctx context.Context, id string) (domain.Subscriber, error) {
	subscriberID, err := parseID(id)
	if err != nil {
		return domain.Subscriber{}, err
	}
	item, err := s.repo.FindByID(ctx, subscriberID)
	if err != nil {
		return domain.Subscriber{}, err
	}
	if item == nil {
		return domain.Subscriber{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListSubscriberRequest) (domain.ListSubscriberResponse, error) {
	filter := domain.ListSubscriberFilter{Name: strings.TrimSpace(req.Name)}
	if strings.TrimSpace(req.Status) != "" {
		status, err := domain.ParseSubscriberStatus(req.Status)
		if err != nil {
			return domain.ListSubscriberResponse{}, err
		}
		filter.Status = status
	}

	page := pagination.Pagination{PageToken: strings.TrimSpace(req.PageToken), PageSize: req.PageSize}
	items, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return domain.ListSubscriberResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.Size(), func(sub *domain.Subscriber) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: sub.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})

	subscribers := make([]domain.Subscriber, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		subscribers = append(subscribers, *item)
	}

	resp := domain.ListSubscriberResponse{Subscribers: subscribers}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateSubscriberRequest) (domain.Subscriber, error) {
	sub, err := s.Get(ctx, req.ID)
	if err != nil {
		return domain.Subscriber{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Subscriber{}, domain.ErrInvalidName
		}
		sub.Name = name
	}
	if req.Program != nil {
		sub.Program = strings.TrimSpace(*req.Program)
	}
	if req.MonthlyPrice != nil {
		if req.MonthlyPrice.IsNegative() {
			return domain.Subscriber{}, domain.ErrInvalidPrice
		}
		sub.MonthlyPrice = *req.MonthlyPrice
	}
	if req.Status != nil {
		status, err := domain.ParseSubscriberStatus(*req.Status)
		if err != nil {
			return domain.Subscriber{}, err
		}
		sub.Status = status
	}
	if req.Metadata != nil {
		sub.Metadata = datatypes.JSONMap(req.Metadata)
	}
	sub.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, &sub); err != nil {
		return domain.Subscriber{}, err
	}

	if req.Resync {
		if err := s.resync(ctx, sub); err != nil {
			return domain.Subscriber{}, err
		}
	}
	return sub, nil
}

// resync drops every entry of the subscriber and, when still active, rebuilds
// the schedule from its stored terms.
func (s *Service) resync(ctx context.Context, sub domain.Subscriber) error {
	removed, err := s.schedules.RemoveByRef(ctx, sub.ID.String())
	if err != nil {
		return err
	}
	written := 0
	if sub.IsActive() {
		schedule, err := s.schedules.CreateSchedule(ctx, scheduleRequest(sub))
		if err != nil {
			return err
		}
		written = schedule.EntryCount
	}
	obslogger.WithContext(ctx, s.log).Info("subscriber schedule resynced",
		zap.String("subscriber_id", sub.ID.String()),
		zap.Int("removed", removed.Removed),
		zap.Int("written", written),
	)
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.schedules.RemoveByRef(ctx, sub.ID.String()); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, sub.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	return nil
}

// Import creates each subscriber in turn; a failing row is reported and skipped.
func (s *Service) Import(ctx context.Context, reqs []domain.CreateSubscriberRequest) (domain.ImportResult, error) {
	result := domain.ImportResult{}
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		resp, err := s.Create(ctx, req)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", i+1, strings.TrimSpace(req.Name), err))
			continue
		}
		result.Imported++
		result.Entries += resp.EntryCount
	}

	obslogger.WithContext(ctx, s.log).Info("subscribers imported",
		zap.Int("imported", result.Imported),
		zap.Int("entries", result.Entries),
		zap.Int("failed", len(result.Errors)),
	)
	return result, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

