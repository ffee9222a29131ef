package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/auth"
	"github.com/smallbiznis/taskboard/internal/board"
	"github.com/smallbiznis/taskboard/internal/cache"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/invitation"
	"github.com/smallbiznis/taskboard/internal/migration"
	"github.com/smallbiznis/taskboard/internal/notification/email"
	"github.com/smallbiznis/taskboard/internal/notification/realtime"
	"github.com/smallbiznis/taskboard/internal/observability"
	"github.com/smallbiznis/taskboard/internal/reconcile"
	"github.com/smallbiznis/taskboard/internal/server"
	"github.com/smallbiznis/taskboard/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		cache.Module,
		clock.Module,

		// Notifications
		email.Module,
		realtime.Module,

		// Functional Domains
		auth.Module,
		board.Module,
		invitation.Module,
		reconcile.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
