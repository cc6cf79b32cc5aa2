package seed

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	subscriberdomain "github.com/smallbiznis/bukukas/internal/subscriber/domain"
	"go.uber.org/zap"
)

// DemoSubscribers returns the fixed demo book used by `bukukas seed`.
func DemoSubscribers() []subscriberdomain.CreateSubscriberRequest {
	return []subscriberdomain.CreateSubscriberRequest{
		{
			Name:              "Toko A",
			Program:           "VPS Basic",
			MonthlyPrice:      decimal.NewFromInt(100000),
			StartDate:         "2025-01-15",
			InitialTermMonths: 3,
			FirstDiscount:     decimal.NewFromInt(50000),
			Metadata:          map[string]any{"source": "seed"},
		},
		{
			Name:              "Warung Sejahtera",
			Program:           "VPS Pro",
			MonthlyPrice:      decimal.NewFromInt(250000),
			StartDate:         "2025-03-01",
			InitialTermMonths: 1,
			Metadata:          map[string]any{"source": "seed"},
		},
		{
			Name:              "Koperasi Maju",
			Program:           "VPS Basic",
			MonthlyPrice:      decimal.NewFromInt(100000),
			StartDate:         "2025-12-08",
			InitialTermMonths: 6,
			FirstDiscount:     decimal.NewFromInt(100000),
			Metadata:          map[string]any{"source": "seed"},
		},
	}
}

// EnsureDemoData creates the demo subscribers and their schedules once. It does
// nothing when any subscriber already exists.
func EnsureDemoData(ctx context.Context, svc subscriberdomain.Service, log *zap.Logger) (subscriberdomain.ImportResult, error) {
	if svc == nil {
		return subscriberdomain.ImportResult{}, errors.New("seed subscriber service is required")
	}

	existing, err := svc.List(ctx, subscriberdomain.ListSubscriberRequest{PageSize: 1})
	if err != nil {
		return subscriberdomain.ImportResult{}, err
	}
	if len(existing.Subscribers) > 0 {
		log.Info("seed skipped, subscribers already present")
		return subscriberdomain.ImportResult{}, nil
	}

	result, err := svc.Import(ctx, DemoSubscribers())
	if err != nil {
		return result, err
	}
	if len(result.Errors) > 0 {
		return result, errors.New(result.Errors[0])
	}
	log.Info("demo data seeded", zap.Int("subscribers", result.Imported), zap.Int("entries", result.Entries))
	return result, nil
}
