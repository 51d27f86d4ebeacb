package interpreter

import (
	"github.com/smallbiznis/dreamline/internal/interpreter/repository"
	"github.com/smallbiznis/dreamline/internal/interpreter/service"
	"go.uber.org/fx"
)

var Module = fx.Module("interpreter.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
