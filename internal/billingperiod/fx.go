package billingperiod

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"github.com/smallbiznis/bukukas/internal/billingperiod/repository"
	bpmongo "github.com/smallbiznis/bukukas/internal/billingperiod/repository/mongo"
	"github.com/smallbiznis/bukukas/internal/billingperiod/service"
	"github.com/smallbiznis/bukukas/internal/config"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("billingperiod.service",
	fx.Provide(provideRepository),
	fx.Provide(service.New),
)

type repositoryParams struct {
	fx.In

	Cfg   config.Config
	DB    *gorm.DB
	Mongo *mongo.Database `optional:"true"`
	GenID *snowflake.Node
	Log   *zap.Logger
}

// provideRepository picks the period store named by BILLING_STORE.
func provideRepository(p repositoryParams) domain.Repository {
	if p.Cfg.UsesMongo() && p.Mongo != nil {
		p.Log.Info("billing periods stored in mongodb", zap.String("database", p.Mongo.Name()))
		return bpmongo.New(p.Mongo, p.GenID)
	}
	return repository.Provide(p.DB, p.GenID)
}
