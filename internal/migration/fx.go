package migration

import (
	"context"

	billingperioddomain "github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"github.com/smallbiznis/bukukas/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, store billingperioddomain.Repository, log *zap.Logger) error {
		if !cfg.AutoMigrate {
			return nil
		}
		if err := Run(context.Background(), conn, cfg.DBType, store); err != nil {
			return err
		}
		log.Info("schema migrated", zap.String("db_type", cfg.DBType), zap.String("billing_store", cfg.BillingStore))
		return nil
	}),
)
