package authority

import "go.uber.org/fx"

var Module = fx.Module("authority.client",
	fx.Provide(NewClient),
)
