package main

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bukukas/internal/clock"
	"github.com/smallbiznis/bukukas/internal/config"
	"github.com/smallbiznis/bukukas/internal/observability"
	"github.com/smallbiznis/bukukas/pkg/db"
	"github.com/smallbiznis/bukukas/pkg/mongodb"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// coreOptions wires the infrastructure every command needs.
func coreOptions() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		mongodb.Module,
		clock.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

// runOnce starts the graph, calls fn and stops it again. Targets passed to
// populate are filled before fn runs. The graph must provide a *zap.Logger.
func runOnce(ctx context.Context, opts fx.Option, fn func(context.Context) error, populate ...any) error {
	var log *zap.Logger
	app := fx.New(opts, fx.Populate(append(populate, &log)...))
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			log.Warn("shutdown failed", zap.Error(err))
		}
	}()

	return fn(ctx)
}
