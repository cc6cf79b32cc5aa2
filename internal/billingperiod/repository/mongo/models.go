package mongo

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/smallbiznis/bukukas/internal/billingperiod/domain"
)

type periodModel struct {
	ID        int64        `bson:"_id"`
	Period    string       `bson:"period"`
	Entries   []entryModel `bson:"entries"`
	CreatedAt time.Time    `bson:"created_at"`
	UpdatedAt time.Time    `bson:"updated_at"`
	CreatedBy string       `bson:"created_by"`
	UpdatedBy string       `bson:"updated_by"`
}

type entryModel struct {
	ID              int64           `bson:"id"`
	ChainID         int64           `bson:"chain_id"`
	RefID           string          `bson:"ref_id,omitempty"`
	SubscriberName  string          `bson:"subscriber_name"`
	ProgramName     string          `bson:"program_name"`
	PeriodStart     time.Time       `bson:"period_start"`
	TermMonths      int             `bson:"term_months"`
	DueDate         time.Time       `bson:"due_date"`
	MonthlyPrice    bson.Decimal128 `bson:"monthly_price"`
	GrossAmount     bson.Decimal128 `bson:"gross_amount"`
	DiscountAmount  bson.Decimal128 `bson:"discount_amount"`
	DiscountPercent int             `bson:"discount_percent"`
	NetAmount       bson.Decimal128 `bson:"net_amount"`
	Status          string          `bson:"status"`
	PaidDate        *time.Time      `bson:"paid_date,omitempty"`
	CreatedAt       time.Time       `bson:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at"`
}

type aggregateModel struct {
	Period     string          `bson:"period"`
	Estimated  bson.Decimal128 `bson:"estimated"`
	Realized   bson.Decimal128 `bson:"realized"`
	Open       bson.Decimal128 `bson:"open"`
	EntryCount int             `bson:"entry_count"`
	UpdatedAt  time.Time       `bson:"updated_at"`
}

func toEntryModel(e domain.BillingEntry) (entryModel, error) {
	amounts, err := toDecimal128s(e.MonthlyPrice, e.GrossAmount, e.DiscountAmount, e.NetAmount)
	if err != nil {
		return entryModel{}, err
	}
	return entryModel{
		ID:              int64(e.ID),
		ChainID:         int64(e.ChainID),
		RefID:           e.RefID,
		SubscriberName:  e.SubscriberName,
		ProgramName:     e.ProgramName,
		PeriodStart:     e.PeriodStart.UTC(),
		TermMonths:      e.TermMonths,
		DueDate:         e.DueDate.UTC(),
		MonthlyPrice:    amounts[0],
		GrossAmount:     amounts[1],
		DiscountAmount:  amounts[2],
		DiscountPercent: e.DiscountPercent,
		NetAmount:       amounts[3],
		Status:          string(e.Status),
		PaidDate:        e.PaidDate,
		CreatedAt:       e.CreatedAt.UTC(),
		UpdatedAt:       e.UpdatedAt.UTC(),
	}, nil
}

func fromEntryModel(period string, position int, m entryModel) (domain.BillingEntry, error) {
	amounts, err := fromDecimal128s(m.MonthlyPrice, m.GrossAmount, m.DiscountAmount, m.NetAmount)
	if err != nil {
		return domain.BillingEntry{}, err
	}
	var paid *time.Time
	if m.PaidDate != nil {
		t := m.PaidDate.UTC()
		paid = &t
	}
	return domain.BillingEntry{
		ID:              snowflake.ID(m.ID),
		Period:          period,
		Position:        position,
		ChainID:         snowflake.ID(m.ChainID),
		RefID:           m.RefID,
		SubscriberName:  m.SubscriberName,
		ProgramName:     m.ProgramName,
		PeriodStart:     m.PeriodStart.UTC(),
		TermMonths:      m.TermMonths,
		DueDate:         m.DueDate.UTC(),
		MonthlyPrice:    amounts[0],
		GrossAmount:     amounts[1],
		DiscountAmount:  amounts[2],
		DiscountPercent: m.DiscountPercent,
		NetAmount:       amounts[3],
		Status:          domain.EntryStatus(m.Status),
		PaidDate:        paid,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}, nil
}

func fromPeriodModel(m *periodModel) (*domain.BillingPeriod, error) {
	entries := make([]domain.BillingEntry, 0, len(m.Entries))
	for i, em := range m.Entries {
		e, err := fromEntryModel(m.Period, i+1, em)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return &domain.BillingPeriod{
		ID:        snowflake.ID(m.ID),
		Period:    m.Period,
		Entries:   entries,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
		CreatedBy: m.CreatedBy,
		UpdatedBy: m.UpdatedBy,
	}, nil
}

func toAggregateModel(a domain.PeriodAggregate) (aggregateModel, error) {
	amounts, err := toDecimal128s(a.Estimated, a.Realized, a.Open)
	if err != nil {
		return aggregateModel{}, err
	}
	return aggregateModel{
		Period:     a.Period,
		Estimated:  amounts[0],
		Realized:   amounts[1],
		Open:       amounts[2],
		EntryCount: a.EntryCount,
		UpdatedAt:  a.UpdatedAt.UTC(),
	}, nil
}

func fromAggregateModel(m aggregateModel) (domain.PeriodAggregate, error) {
	amounts, err := fromDecimal128s(m.Estimated, m.Realized, m.Open)
	if err != nil {
		return domain.PeriodAggregate{}, err
	}
	return domain.PeriodAggregate{
		Period:     m.Period,
		Estimated:  amounts[0],
		Realized:   amounts[1],
		Open:       amounts[2],
		EntryCount: m.EntryCount,
		UpdatedAt:  m.UpdatedAt.UTC(),
	}, nil
}

func toDecimal128s(values ...decimal.Decimal) ([]bson.Decimal128, error) {
	out := make([]bson.Decimal128, len(values))
	for i, v := range values {
		d, err := bson.ParseDecimal128(v.String())
		if err != nil {
			return nil, fmt.Errorf("encode decimal %s: %w", v.String(), err)
		}
		out[i] = d
	}
	return out, nil
}

func fromDecimal128s(values ...bson.Decimal128) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return nil, fmt.Errorf("decode decimal %s: %w", v.String(), err)
		}
		out[i] = d
	}
	return out, nil
}
