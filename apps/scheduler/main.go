package main

import (
	boardrepository "github.com/smallbiznis/taskboard/internal/board/repository"
	"github.com/smallbiznis/taskboard/internal/cache"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	invitationrepository "github.com/smallbiznis/taskboard/internal/invitation/repository"
	"github.com/smallbiznis/taskboard/internal/observability"
	"github.com/smallbiznis/taskboard/internal/reconcile"
	"github.com/smallbiznis/taskboard/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		cache.Module,
		clock.Module,

		// Only the repositories the reconciler reads and repairs.
		fx.Provide(boardrepository.Provide),
		fx.Provide(invitationrepository.Provide),

		// No server module!
		reconcile.Module,
		fx.Decorate(func(cfg reconcile.Config) reconcile.Config {
			cfg.Enabled = true
			return cfg
		}),
	)
	app.Run()
}
