package main

import (
	"context"
	"fmt"
	"os"

	billingperioddomain "github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"github.com/smallbiznis/bukukas/internal/config"
	"github.com/smallbiznis/bukukas/internal/csvio"
	"github.com/smallbiznis/bukukas/internal/migration"
	"github.com/smallbiznis/bukukas/internal/seed"
	"github.com/smallbiznis/bukukas/internal/server"
	subscriberdomain "github.com/smallbiznis/bukukas/internal/subscriber/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  `Start the REST API, applying schema migrations first when AUTO_MIGRATE is on.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				coreOptions(),
				server.Module,
				migration.Module,
			)
			app.Run()
			return app.Err()
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Long:  `Create or upgrade the SQL schema and, for the mongo billing store, its collection indexes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				conn  *gorm.DB
				cfg   config.Config
				store billingperioddomain.Repository
				log   *zap.Logger
			)
			return runOnce(cmd.Context(), fx.Options(coreOptions(), server.Services), func(ctx context.Context) error {
				if err := migration.Run(ctx, conn, cfg.DBType, store); err != nil {
					return err
				}
				log.Info("schema migrated", zap.String("db_type", cfg.DBType), zap.String("billing_store", cfg.BillingStore))
				return nil
			}, &conn, &cfg, &store, &log)
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo subscribers",
		Long:  `Create a small demo book of subscribers and their billing schedules when the database has none.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				svc subscriberdomain.Service
				log *zap.Logger
			)
			return runOnce(cmd.Context(), fx.Options(coreOptions(), server.Services, migration.Module), func(ctx context.Context) error {
				_, err := seed.EnsureDemoData(ctx, svc, log)
				return err
			}, &svc, &log)
		},
	}
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import subscribers from CSV",
		Long:  `Create one subscriber per CSV row (name,program,monthly_price,start_date,initial_term_months,first_discount) and generate its schedule.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			reqs, err := csvio.ReadSubscribers(f)
			if err != nil {
				return err
			}

			var svc subscriberdomain.Service
			return runOnce(cmd.Context(), fx.Options(coreOptions(), server.Services, migration.Module), func(ctx context.Context) error {
				result, err := svc.Import(ctx, reqs)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d subscribers, %d entries\n", result.Imported, result.Entries)
				for _, msg := range result.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), msg)
				}
				return nil
			}, &svc)
		},
	}
}

func newRolloverCommand() *cobra.Command {
	var fiscalYear int

	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Generate a fiscal year for every active subscriber",
		Long:  `Fill December..November of the fiscal year with monthly entries for each active subscriber. Months that already hold an entry are skipped, so the command can be re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc billingperioddomain.Service
			return runOnce(cmd.Context(), fx.Options(coreOptions(), server.Services, migration.Module), func(ctx context.Context) error {
				var (
					resp billingperioddomain.RegenerateResponse
					err  error
				)
				if fiscalYear != 0 {
					resp, err = svc.RegenerateFiscalYear(ctx, fiscalYear)
				} else {
					resp, err = svc.RegenerateNextFiscalYear(ctx)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "fiscal year %d: %d subscribers, %d entries\n", resp.FiscalYear, resp.Subscribers, resp.Entries)
				return nil
			}, &svc)
		},
	}

	cmd.Flags().IntVarP(&fiscalYear, "year", "y", 0, "Fiscal year to generate (default: activeFiscalYear from the billing config)")

	return cmd
}
