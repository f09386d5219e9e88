package healthcheck

import (
	"github.com/smallbiznis/smartinvoice/internal/authority"
	"go.uber.org/fx"
)

var Module = fx.Module("healthcheck",
	fx.Provide(func(c *authority.Client) Pinger { return c }),
	fx.Provide(New),
)
