package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(
		Load,
		func(cfg Config) GatewayConfig { return cfg.Gateway },
		NewPolicyHolder,
	),
)
