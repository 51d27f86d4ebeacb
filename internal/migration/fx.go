package migration

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dreamline/internal/config"
	"github.com/smallbiznis/dreamline/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node) error {
		if strings.EqualFold(cfg.DBType, "sqlite") {
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		} else {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		}

		if err := seed.EnsurePlatformSettings(conn, cfg.Settlement); err != nil {
			return err
		}
		if cfg.Bootstrap.EnsureAIInterpreter {
			return seed.EnsureAIInterpreter(conn, node, cfg.Bootstrap.AIInterpreterPrice)
		}
		return nil
	}),
)
