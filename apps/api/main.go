package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/auth"
	"github.com/smallbiznis/taskboard/internal/board"
	"github.com/smallbiznis/taskboard/internal/cache"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/invitation"
	"github.com/smallbiznis/taskboard/internal/notification/email"
	"github.com/smallbiznis/taskboard/internal/notification/realtime"
	"github.com/smallbiznis/taskboard/internal/observability"
	"github.com/smallbiznis/taskboard/internal/reconcile"
	"github.com/smallbiznis/taskboard/internal/server"
	"github.com/smallbiznis/taskboard/pkg/db"
	"go.uber.org/fx"
)

// The API process serves HTTP only. Scheduled reconciliation runs in
// apps/scheduler; manual per-board runs still go through this process.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		cache.Module,
		clock.Module,

		email.Module,
		realtime.Module,
		auth.Module,
		board.Module,
		invitation.Module,
		reconcile.Module,
		fx.Decorate(func(cfg reconcile.Config) reconcile.Config {
			cfg.Enabled = false
			return cfg
		}),

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
