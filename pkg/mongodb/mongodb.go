package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/bukukas/internal/config"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("mongodb",
	fx.Provide(Open),
)

// Open connects to MongoDB when the billing store is mongo. Otherwise it yields
// a nil database and opens no connection.
func Open(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*mongo.Database, error) {
	if !cfg.UsesMongo() {
		return nil, nil
	}

	client, err := Connect(cfg.MongoURI)
	if err != nil {
		return nil, err
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
					return fmt.Errorf("mongodb: ping: %w", err)
				}
				log.Info("mongodb connected", zap.String("database", cfg.MongoDatabase))
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return client.Disconnect(ctx)
			},
		})
	}

	return client.Database(cfg.MongoDatabase), nil
}

func Connect(uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetAppName("bukukas").
		SetServerSelectionTimeout(5 * time.Second)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	return client, nil
}
