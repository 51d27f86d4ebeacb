package monitor

import (
	"context"

	"github.com/smallbiznis/dreamline/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("monitor",
	fx.Provide(New),
	fx.Invoke(Start),
)

func Start(lc fx.Lifecycle, cfg config.Config, m *Monitor) {
	if !cfg.Monitor.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go m.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
