package domain

import "context"

// Repository persists period documents and their aggregates. Implementations
// exist for SQL and MongoDB; neither wraps multi-period writes in a transaction.
type Repository interface {
	// FindPeriod returns nil, nil when the period has no document.
	FindPeriod(ctx context.Context, period string) (*BillingPeriod, error)
	// PushEntries upserts the period document and appends entries in order.
	PushEntries(ctx context.Context, period string, entries []BillingEntry, actor string) error
	// PullEntries removes matching entries and reports how many were removed.
	// An empty filter is rejected with ErrEmptyEntryFilter.
	PullEntries(ctx context.Context, period string, filter EntryFilter, actor string) (int64, error)
	// UpdateEntry overwrites one entry in place; ErrEntryNotFound when absent.
	UpdateEntry(ctx context.Context, period string, entry BillingEntry, actor string) error
	ListPeriodsByRef(ctx context.Context, refID string) ([]string, error)

	SaveAggregate(ctx context.Context, agg PeriodAggregate) error
	// FindAggregate returns nil, nil when absent.
	FindAggregate(ctx context.Context, period string) (*PeriodAggregate, error)
	// ListAggregates returns aggregates for from..to inclusive, ordered by period.
	ListAggregates(ctx context.Context, from, to string) ([]PeriodAggregate, error)
}
