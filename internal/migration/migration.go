package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	billingperioddomain "github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	subscriberdomain "github.com/smallbiznis/bukukas/internal/subscriber/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrator is implemented by period stores that own their schema, such as the
// MongoDB store and its unique indexes.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Models lists every gorm model the service persists.
func Models() []any {
	return []any{
		&subscriberdomain.Subscriber{},
		&billingperioddomain.BillingPeriod{},
		&billingperioddomain.BillingEntry{},
		&billingperioddomain.PeriodAggregate{},
	}
}

// Run brings the SQL schema up to date and then lets the period store migrate
// itself when it is not SQL-backed. Postgres uses the versioned SQL files; other
// dialects fall back to gorm's AutoMigrate.
func Run(ctx context.Context, conn *gorm.DB, dbType string, store billingperioddomain.Repository) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	if kind := strings.ToLower(strings.TrimSpace(dbType)); kind == "postgres" || kind == "postgresql" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
	} else if err := conn.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if m, ok := store.(Migrator); ok {
		if err := m.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate period store: %w", err)
		}
	}
	return nil
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
