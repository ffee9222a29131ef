package board

import (
	"github.com/smallbiznis/taskboard/internal/board/repository"
	"github.com/smallbiznis/taskboard/internal/board/service"
	"go.uber.org/fx"
)

var Module = fx.Module("board.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
