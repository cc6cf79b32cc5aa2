package db

import (
	"path/filepath"
	"testing"

	"github.com/smallbiznis/bukukas/internal/config"
	obsmetrics "github.com/smallbiznis/bukukas/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestOpenSQLiteRegistersPoolStats(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	registry := obsmetrics.NewRegistry(obsmetrics.Config{ServiceName: "bukukas", Environment: "test"})

	conn, err := Open(Params{
		Lifecycle: lc,
		Config: config.Config{
			DBType:        "sqlite",
			DBName:        "bukukas",
			DBPath:        filepath.Join(t.TempDir(), "bukukas.db"),
			DBMaxIdleConn: 1,
			DBMaxOpenConn: 1,
		},
		Log:      zap.NewNop(),
		Registry: registry,
	})
	require.NoError(t, err)
	lc.RequireStart()
	defer lc.RequireStop()

	var one int
	require.NoError(t, conn.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	families, err := registry.Gatherer().Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "go_sql_open_connections" {
			found = true
		}
	}
	assert.True(t, found, "db stats collector should be registered")
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.Error(t, err)
}
