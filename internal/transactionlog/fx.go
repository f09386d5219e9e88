package transactionlog

import (
	"github.com/smallbiznis/smartinvoice/internal/transactionlog/repository"
	"github.com/smallbiznis/smartinvoice/internal/transactionlog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transactionlog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
