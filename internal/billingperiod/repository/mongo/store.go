package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/smallbiznis/bukukas/internal/billingperiod/domain"
)

// Collection name constants.
const (
	colPeriods    = "billing_periods"
	colAggregates = "billing_period_aggregates"
)

var _ domain.Repository = (*Store)(nil)

// Store keeps each period as one document with an embedded entries array.
type Store struct {
	db    *mongo.Database
	genID *snowflake.Node
}

func New(db *mongo.Database, genID *snowflake.Node) *Store {
	return &Store{db: db, genID: genID}
}

// Migrate creates the unique period indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("billingperiod/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

func (s *Store) periods() *mongo.Collection    { return s.db.Collection(colPeriods) }
func (s *Store) aggregates() *mongo.Collection { return s.db.Collection(colAggregates) }

func (s *Store) FindPeriod(ctx context.Context, period string) (*domain.BillingPeriod, error) {
	var m periodModel
	err := s.periods().FindOne(ctx, bson.M{"period": period}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("billingperiod/mongo: find period: %w", err)
	}
	return fromPeriodModel(&m)
}

func (s *Store) PushEntries(ctx context.Context, period string, entries []domain.BillingEntry, actor string) error {
	models := make([]entryModel, 0, len(entries))
	for _, e := range entries {
		m, err := toEntryModel(e)
		if err != nil {
			return fmt.Errorf("billingperiod/mongo: push entries: %w", err)
		}
		models = append(models, m)
	}

	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        int64(s.genID.Generate()),
			"created_at": now,
			"created_by": actor,
		},
		"$set": bson.M{
			"updated_at": now,
			"updated_by": actor,
		},
		"$push": bson.M{
			"entries": bson.M{"$each": models},
		},
	}
	_, err := s.periods().UpdateOne(ctx, bson.M{"period": period}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("billingperiod/mongo: push entries: %w", err)
	}
	return nil
}

func (s *Store) PullEntries(ctx context.Context, period string, filter domain.EntryFilter, actor string) (int64, error) {
	if filter.IsEmpty() {
		return 0, domain.ErrEmptyEntryFilter
	}

	doc, err := s.FindPeriod(ctx, period)
	if err != nil || doc == nil {
		return 0, err
	}
	var matched int64
	for _, e := range doc.Entries {
		if filter.Matches(e) {
			matched++
		}
	}
	if matched == 0 {
		return 0, nil
	}

	cond := bson.M{}
	if filter.EntryID != 0 {
		cond["id"] = int64(filter.EntryID)
	}
	if filter.ChainID != 0 {
		cond["chain_id"] = int64(filter.ChainID)
	}
	if filter.RefID != "" {
		cond["ref_id"] = filter.RefID
	}

	update := bson.M{
		"$pull": bson.M{"entries": cond},
		"$set":  bson.M{"updated_at": time.Now().UTC(), "updated_by": actor},
	}
	if _, err := s.periods().UpdateOne(ctx, bson.M{"period": period}, update); err != nil {
		return 0, fmt.Errorf("billingperiod/mongo: pull entries: %w", err)
	}
	return matched, nil
}

func (s *Store) UpdateEntry(ctx context.Context, period string, entry domain.BillingEntry, actor string) error {
	m, err := toEntryModel(entry)
	if err != nil {
		return fmt.Errorf("billingperiod/mongo: update entry: %w", err)
	}

	filter := bson.M{"period": period, "entries.id": int64(entry.ID)}
	update := bson.M{"$set": bson.M{
		"entries.$":  m,
		"updated_at": time.Now().UTC(),
		"updated_by": actor,
	}}
	res, err := s.periods().UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("billingperiod/mongo: update entry: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

func (s *Store) ListPeriodsByRef(ctx context.Context, refID string) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"period": 1}).
		SetSort(bson.D{{Key: "period", Value: 1}})
	cursor, err := s.periods().Find(ctx, bson.M{"entries.ref_id": refID}, opts)
	if err != nil {
		return nil, fmt.Errorf("billingperiod/mongo: list periods by ref: %w", err)
	}

	var rows []struct {
		Period string `bson:"period"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("billingperiod/mongo: list periods by ref: %w", err)
	}

	periods := make([]string, 0, len(rows))
	for _, r := range rows {
		periods = append(periods, r.Period)
	}
	return periods, nil
}

func (s *Store) SaveAggregate(ctx context.Context, agg domain.PeriodAggregate) error {
	m, err := toAggregateModel(agg)
	if err != nil {
		return fmt.Errorf("billingperiod/mongo: save aggregate: %w", err)
	}
	_, err = s.aggregates().ReplaceOne(ctx, bson.M{"period": agg.Period}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("billingperiod/mongo: save aggregate: %w", err)
	}
	return nil
}

func (s *Store) FindAggregate(ctx context.Context, period string) (*domain.PeriodAggregate, error) {
	var m aggregateModel
	err := s.aggregates().FindOne(ctx, bson.M{"period": period}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("billingperiod/mongo: find aggregate: %w", err)
	}
	agg, err := fromAggregateModel(m)
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (s *Store) ListAggregates(ctx context.Context, from, to string) ([]domain.PeriodAggregate, error) {
	filter := bson.M{"period": bson.M{"$gte": from, "$lte": to}}
	cursor, err := s.aggregates().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "period", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("billingperiod/mongo: list aggregates: %w", err)
	}

	var models []aggregateModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("billingperiod/mongo: list aggregates: %w", err)
	}

	out := make([]domain.PeriodAggregate, 0, len(models))
	for _, m := range models {
		agg, err := fromAggregateModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for both period collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPeriods: {
			{
				Keys:    bson.D{{Key: "period", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "entries.ref_id", Value: 1}}},
			{Keys: bson.D{{Key: "entries.chain_id", Value: 1}}},
		},
		colAggregates: {
			{
				Keys:    bson.D{{Key: "period", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
