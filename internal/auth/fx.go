package auth

import (
	"github.com/smallbiznis/taskboard/internal/auth/repository"
	"github.com/smallbiznis/taskboard/internal/auth/service"
	"github.com/smallbiznis/taskboard/internal/auth/session"
	"github.com/smallbiznis/taskboard/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(token.NewProvider),
	fx.Provide(service.New),
	session.Module,
)
