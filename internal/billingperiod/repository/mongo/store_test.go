package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/smallbiznis/bukukas/internal/billingperiod/domain"
)

func sampleEntry(id, chain int64) domain.BillingEntry {
	paid := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	return domain.BillingEntry{
		ID:              snowflake.ID(id),
		ChainID:         snowflake.ID(chain),
		RefID:           "sub-1",
		SubscriberName:  "Toko A",
		PeriodStart:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		TermMonths:      3,
		DueDate:         time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC),
		MonthlyPrice:    decimal.NewFromInt(100000),
		GrossAmount:     decimal.NewFromInt(300000),
		DiscountAmount:  decimal.RequireFromString("50000.50"),
		DiscountPercent: 17,
		NetAmount:       decimal.RequireFromString("249999.50"),
		Status:          domain.EntryStatusDone,
		PaidDate:        &paid,
	}
}

func TestEntryModelRoundTripKeepsAmounts(t *testing.T) {
	in := sampleEntry(1, 10)
	m, err := toEntryModel(in)
	require.NoError(t, err)

	out, err := fromEntryModel("2025-01", 1, m)
	require.NoError(t, err)
	assert.Equal(t, "2025-01", out.Period)
	assert.True(t, out.NetAmount.Equal(in.NetAmount), out.NetAmount.String())
	assert.True(t, out.DiscountAmount.Equal(in.DiscountAmount))
	require.NotNil(t, out.PaidDate)
	assert.True(t, out.PaidDate.Equal(*in.PaidDate))
}

func TestMigrationIndexesAreUniqueOnPeriod(t *testing.T) {
	idx := migrationIndexes()
	require.Contains(t, idx, colPeriods)
	require.Contains(t, idx, colAggregates)
	assert.NotNil(t, idx[colPeriods][0].Options)
}

// TestStoreAgainstMongo runs only when MONGO_TEST_URI points at a disposable server.
func TestStoreAgainstMongo(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer func() { _ = client.Disconnect(ctx) }()

	db := client.Database("bukukas_test_" + time.Now().Format("150405"))
	defer func() { _ = db.Drop(ctx) }()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	store := New(db, node)
	require.NoError(t, store.Migrate(ctx))

	require.NoError(t, store.PushEntries(ctx, "2025-01", []domain.BillingEntry{sampleEntry(1, 10), sampleEntry(2, 11)}, "test"))
	doc, err := store.FindPeriod(ctx, "2025-01")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Len(t, doc.Entries, 2)

	periods, err := store.ListPeriodsByRef(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01"}, periods)

	n, err := store.PullEntries(ctx, "2025-01", domain.EntryFilter{ChainID: 10}, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	agg := domain.PeriodAggregate{Period: "2025-01", Estimated: decimal.NewFromInt(10), Realized: decimal.Zero, Open: decimal.NewFromInt(10), EntryCount: 1}
	require.NoError(t, store.SaveAggregate(ctx, agg))
	got, err := store.FindAggregate(ctx, "2025-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.EntryCount)
}
