//go:build integration

package testutil

import (
	"os"
	"strings"
	"testing"

	"github.com/smallbiznis/dreamline/internal/migration"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresDSNEnv names the connection string used by integration tests.
const PostgresDSNEnv = "DREAMLINE_TEST_POSTGRES_DSN"

// OpenPostgres connects to the database named by PostgresDSNEnv and applies
// the embedded migrations. The test is skipped when the variable is unset.
func OpenPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv(PostgresDSNEnv))
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.RunMigrations(sqlDB))
	return db
}
