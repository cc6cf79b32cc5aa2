package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bukukas/internal/subscriber/domain"
	"github.com/smallbiznis/bukukas/pkg/db/option"
	"github.com/smallbiznis/bukukas/pkg/db/pagination"
	"github.com/smallbiznis/bukukas/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	db    *gorm.DB
	store repository.Repository[domain.Subscriber]
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db, store: repository.ProvideStore[domain.Subscriber](db)}
}

func (r *repo) Insert(ctx context.Context, subscriber *domain.Subscriber) error {
	if err := r.store.Create(ctx, subscriber); err != nil {
		return fmt.Errorf("subscriber: insert: %w", err)
	}
	return nil
}

func (r *repo) InsertBatch(ctx context.Context, subscribers []*domain.Subscriber) error {
	if err := r.store.BatchCreate(ctx, subscribers); err != nil {
		return fmt.Errorf("subscriber: insert batch: %w", err)
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Subscriber, error) {
	item, err := r.store.FindOne(ctx, &domain.Subscriber{ID: id})
	if err != nil {
		return nil, fmt.Errorf("subscriber: find: %w", err)
	}
	return item, nil
}

// List pages by id descending; the page token carries the last id returned.
func (r *repo) List(ctx context.Context, filter domain.ListSubscriberFilter, page pagination.Pagination) ([]*domain.Subscriber, error) {
	opts := []option.QueryOption{
		option.WithOrder("id", true),
		option.WithLimit(page.Size() + 1),
	}
	if filter.Status != "" {
		opts = append(opts, option.WithWhere("status = ?", filter.Status))
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		opts = append(opts, option.WithWhere("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%"))
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		lastID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		opts = append(opts, option.WithWhere("id < ?", lastID))
	}

	items, err := r.store.Find(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("subscriber: list: %w", err)
	}
	return items, nil
}

func (r *repo) ListActive(ctx context.Context) ([]domain.Subscriber, error) {
	var items []domain.Subscriber
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.SubscriberStatusActive).
		Order("start_date asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("subscriber: list active: %w", err)
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, subscriber *domain.Subscriber) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Subscriber{ID: subscriber.ID}).
		Select("name", "program", "monthly_price", "status", "metadata", "updated_at").
		Updates(subscriber)
	if res.Error != nil {
		return fmt.Errorf("subscriber: update: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id snowflake.ID) (bool, error) {
	n, err := r.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("subscriber: delete: %w", err)
	}
	return n > 0, nil
}
