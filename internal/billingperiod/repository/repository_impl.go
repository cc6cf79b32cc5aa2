package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db    *gorm.DB
	genID *snowflake.Node
}

// Provide returns the SQL-backed period repository.
func Provide(db *gorm.DB, genID *snowflake.Node) domain.Repository {
	return &repo{db: db, genID: genID}
}

func (r *repo) FindPeriod(ctx context.Context, period string) (*domain.BillingPeriod, error) {
	var docs []domain.BillingPeriod
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, id asc")
		}).
		Where("period = ?", period).
		Limit(1).
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("billingperiod/sql: find period: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

func (r *repo) PushEntries(ctx context.Context, period string, entries []domain.BillingEntry, actor string) error {
	if err := r.upsertPeriod(ctx, period, actor); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	var last int
	err := r.db.WithContext(ctx).
		Model(&domain.BillingEntry{}).
		Where("period = ?", period).
		Select("COALESCE(MAX(position), 0)").
		Scan(&last).Error
	if err != nil {
		return fmt.Errorf("billingperiod/sql: next position: %w", err)
	}

	rows := make([]domain.BillingEntry, len(entries))
	for i, e := range entries {
		e.Period = period
		e.Position = last + i + 1
		rows[i] = e
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("billingperiod/sql: push entries: %w", err)
	}
	return nil
}

func (r *repo) upsertPeriod(ctx context.Context, period, actor string) error {
	now := time.Now().UTC()
	row := domain.BillingPeriod{
		ID:        r.genID.Generate(),
		Period:    period,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: actor,
		UpdatedBy: actor,
	}
	err := r.db.WithContext(ctx).
		Omit("Entries").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "period"}},
			DoUpdates: clause.Assignments(map[string]any{
				"updated_at": now,
				"updated_by": actor,
			}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("billingperiod/sql: upsert period: %w", err)
	}
	return nil
}

func (r *repo) touchPeriod(ctx context.Context, period, actor string) error {
	err := r.db.WithContext(ctx).
		Model(&domain.BillingPeriod{}).
		Where("period = ?", period).
		Updates(map[string]any{"updated_at": time.Now().UTC(), "updated_by": actor}).Error
	if err != nil {
		return fmt.Errorf("billingperiod/sql: touch period: %w", err)
	}
	return nil
}

func (r *repo) PullEntries(ctx context.Context, period string, filter domain.EntryFilter, actor string) (int64, error) {
	if filter.IsEmpty() {
		return 0, domain.ErrEmptyEntryFilter
	}

	stmt := r.db.WithContext(ctx).Where("period = ?", period)
	if filter.EntryID != 0 {
		stmt = stmt.Where("id = ?", filter.EntryID)
	}
	if filter.ChainID != 0 {
		stmt = stmt.Where("chain_id = ?", filter.ChainID)
	}
	if filter.RefID != "" {
		stmt = stmt.Where("ref_id = ?", filter.RefID)
	}

	res := stmt.Delete(&domain.BillingEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("billingperiod/sql: pull entries: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		if err := r.touchPeriod(ctx, period, actor); err != nil {
			return res.RowsAffected, err
		}
	}
	return res.RowsAffected, nil
}

func (r *repo) UpdateEntry(ctx context.Context, period string, entry domain.BillingEntry, actor string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.BillingEntry{}).
		Where("period = ? AND id = ?", period, entry.ID).
		Select(
			"subscriber_name", "program_name", "period_start", "term_months", "due_date",
			"monthly_price", "gross_amount", "discount_amount", "discount_percent", "net_amount",
			"status", "paid_date", "updated_at",
		).
		Updates(&entry)
	if res.Error != nil {
		return fmt.Errorf("billingperiod/sql: update entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrEntryNotFound
	}
	return r.touchPeriod(ctx, period, actor)
}

func (r *repo) ListPeriodsByRef(ctx context.Context, refID string) ([]string, error) {
	var periods []string
	err := r.db.WithContext(ctx).
		Model(&domain.BillingEntry{}).
		Where("ref_id = ?", refID).
		Distinct("period").
		Order("period asc").
		Pluck("period", &periods).Error
	if err != nil {
		return nil, fmt.Errorf("billingperiod/sql: list periods by ref: %w", err)
	}
	return periods, nil
}

func (r *repo) SaveAggregate(ctx context.Context, agg domain.PeriodAggregate) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "period"}},
			UpdateAll: true,
		}).
		Create(&agg).Error
	if err != nil {
		return fmt.Errorf("billingperiod/sql: save aggregate: %w", err)
	}
	return nil
}

func (r *repo) FindAggregate(ctx context.Context, period string) (*domain.PeriodAggregate, error) {
	var rows []domain.PeriodAggregate
	err := r.db.WithContext(ctx).Where("period = ?", period).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("billingperiod/sql: find aggregate: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) ListAggregates(ctx context.Context, from, to string) ([]domain.PeriodAggregate, error) {
	var rows []domain.PeriodAggregate
	err := r.db.WithContext(ctx).
		Where("period >= ? AND period <= ?", from, to).
		Order("period asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("billingperiod/sql: list aggregates: %w", err)
	}
	return rows, nil
}
