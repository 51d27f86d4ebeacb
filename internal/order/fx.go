package order

import (
	admissiondomain "github.com/smallbiznis/dreamline/internal/admission/domain"
	orderdomain "github.com/smallbiznis/dreamline/internal/order/domain"
	"github.com/smallbiznis/dreamline/internal/order/repository"
	"github.com/smallbiznis/dreamline/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(r orderdomain.Repository) admissiondomain.OrderCounter { return r }),
	fx.Provide(service.NewService),
)
