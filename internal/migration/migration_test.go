package migration

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/bwmarrin/snowflake"
	billingperioddomain "github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	billingperiodrepository "github.com/smallbiznis/bukukas/internal/billingperiod/repository"
	"github.com/smallbiznis/bukukas/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type migratingStore struct {
	billingperioddomain.Repository
	calls int
	err   error
}

func (m *migratingStore) Migrate(context.Context) error {
	m.calls++
	return m.err
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	require.NoError(t, Run(context.Background(), conn, "sqlite", billingperiodrepository.Provide(conn, node)))

	for _, table := range []string{"subscribers", "billing_periods", "billing_entries", "billing_period_aggregates"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestRunCallsStoreMigrator(t *testing.T) {
	conn, err := db.OpenInMemory()
	require.NoError(t, err)

	store := &migratingStore{}
	require.NoError(t, Run(context.Background(), conn, "sqlite", store))
	assert.Equal(t, 1, store.calls)

	store.err = errors.New("index build failed")
	err = Run(context.Background(), conn, "sqlite", store)
	assert.ErrorContains(t, err, "index build failed")
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(embeddedMigrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(embeddedMigrations, "migrations/*.down.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
