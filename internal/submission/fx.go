package submission

import (
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
	"github.com/smallbiznis/smartinvoice/internal/submission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("submission.service",
	fx.Provide(service.NewService),
	fx.Provide(func(svc submissiondomain.Service) submissiondomain.Executor { return svc }),
)
