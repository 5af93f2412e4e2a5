package payment

import (
	"github.com/smallbiznis/condofee/internal/payment/adapters"
	"github.com/smallbiznis/condofee/internal/payment/adapters/vnpay"
	paymentservice "github.com/smallbiznis/condofee/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			vnpay.NewFactory(),
		)
	}),
	fx.Provide(paymentservice.NewService),
)
