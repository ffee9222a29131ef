package migration

import (
	"strings"

	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if !cfg.AutoMigrate {
		log.Info("schema migration disabled")
		return nil
	}

	if strings.EqualFold(strings.TrimSpace(cfg.DBType), db.TypePostgres) || strings.TrimSpace(cfg.DBType) == "" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("postgres migrations applied")
		return nil
	}

	if err := AutoMigrate(conn); err != nil {
		return err
	}
	log.Info("schema auto-migrated", zap.String("dialect", cfg.DBType))
	return nil
}
