package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accountdomain "github.com/smallbiznis/dreamline/internal/account/domain"
	auditdomain "github.com/smallbiznis/dreamline/internal/audit/domain"
	interpreterdomain "github.com/smallbiznis/dreamline/internal/interpreter/domain"
	ledgerdomain "github.com/smallbiznis/dreamline/internal/ledger/domain"
	orderdomain "github.com/smallbiznis/dreamline/internal/order/domain"
	settingsdomain "github.com/smallbiznis/dreamline/internal/settings/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

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

// AutoMigrate builds the schema from the gorm models. It serves the sqlite
// dialect used for local runs and tests; gorm tags cannot express the partial
// unique index, so it is created explicitly.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&accountdomain.Account{},
		&interpreterdomain.Interpreter{},
		&orderdomain.Order{},
		&settingsdomain.PlatformSettings{},
		&ledgerdomain.Transaction{},
		&auditdomain.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := conn.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_subject_fingerprint
		 ON orders (subject_id, content_fingerprint)
		 WHERE status <> 'cancelled'`,
	).Error; err != nil {
		return fmt.Errorf("create fingerprint index: %w", err)
	}
	return nil
}
