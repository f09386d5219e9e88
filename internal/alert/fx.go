package alert

import (
	"github.com/smallbiznis/smartinvoice/internal/alert/service"
	"go.uber.org/fx"
)

var Module = fx.Module("alert.service",
	fx.Provide(service.NewLogNotifier),
	fx.Provide(service.NewService),
)
