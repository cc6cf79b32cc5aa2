package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bukukas/pkg/db/pagination"
)

type ListSubscriberFilter struct {
	Status SubscriberStatus
	Name   string
}

type Repository interface {
	Insert(ctx context.Context, subscriber *Subscriber) error
	InsertBatch(ctx context.Context, subscribers []*Subscriber) error
	// FindByID returns nil, nil when absent.
	FindByID(ctx context.Context, id snowflake.ID) (*Subscriber, error)
	// List fetches up to page size + 1 rows after the page token.
	List(ctx context.Context, filter ListSubscriberFilter, page pagination.Pagination) ([]*Subscriber, error)
	ListActive(ctx context.Context) ([]Subscriber, error)
	Update(ctx context.Context, subscriber *Subscriber) error
	Delete(ctx context.Context, id snowflake.ID) (bool, error)
}
