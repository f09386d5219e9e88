package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/smartinvoice/internal/catalog"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	"github.com/smallbiznis/smartinvoice/internal/config"
	devicedomain "github.com/smallbiznis/smartinvoice/internal/device/domain"
	inventorydomain "github.com/smallbiznis/smartinvoice/internal/inventory/domain"
	"github.com/smallbiznis/smartinvoice/internal/observability"
	obsmiddleware "github.com/smallbiznis/smartinvoice/internal/observability/logger"
	obstracing "github.com/smallbiznis/smartinvoice/internal/observability/tracing"
	"github.com/smallbiznis/smartinvoice/internal/ratelimit"
	reportdomain "github.com/smallbiznis/smartinvoice/internal/report/domain"
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
	taxdomain "github.com/smallbiznis/smartinvoice/internal/tax/domain"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, cfg config.Config) *gin.Engine {
	r := NewEngine(obsCfg)
	if len(cfg.CORS.AllowOrigins) > 0 {
		r.Use(CORS(cfg.CORS))
	}
	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	clock        clock.Clock
	catalog      *catalog.Holder
	deviceSvc    devicedomain.Service
	ledgerSvc    logdomain.Service
	submitSvc    submissiondomain.Service
	inventorySvc inventorydomain.Service
	reportSvc    reportdomain.Service
	calculator   taxdomain.Calculator
	aggregator   taxdomain.Aggregator
	limiter      *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Catalog    *catalog.Holder
	DeviceSvc  devicedomain.Service
	LedgerSvc  logdomain.Service
	SubmitSvc  submissiondomain.Service
	Calculator taxdomain.Calculator
	Aggregator taxdomain.Aggregator
	Limiter    *ratelimit.Limiter `optional:"true"`
	// Inventory and reports are optional; their routes answer 503 without them.
	InventorySvc inventorydomain.Service `optional:"true"`
	ReportSvc    reportdomain.Service    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		clock:        p.Clock,
		catalog:      p.Catalog,
		deviceSvc:    p.DeviceSvc,
		ledgerSvc:    p.LedgerSvc,
		submitSvc:    p.SubmitSvc,
		inventorySvc: p.InventorySvc,
		reportSvc:    p.ReportSvc,
		calculator:   p.Calculator,
		aggregator:   p.Aggregator,
		limiter:      p.Limiter,
	}

	svc.registerZRARoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerZRARoutes() {
	prefix := "/" + s.cfg.Authority.RoutePrefix
	if prefix == "/" {
		prefix = "/zra"
	}

	zra := s.engine.Group(prefix)
	zra.Use(SecurityHeaders())
	zra.Use(s.RateLimit())
	zra.Use(RequireJSON())

	// -------- Device --------
	zra.GET("/status", s.GetStatus)
	zra.POST("/initialize", s.InitializeDevice)
	zra.GET("/health", s.CheckHealth)

	// -------- Ledger --------
	zra.GET("/logs", s.ListLogs)
	zra.GET("/statistics", s.GetStatistics)

	// -------- Submissions --------
	zra.POST("/transactions/:kind", s.SubmitTransaction)
	zra.POST("/test-sales", s.TestSales)

	// -------- Tax --------
	zra.GET("/tax/categories", s.ListTaxCategories)
	zra.GET("/tax/exemptions", s.ListTaxExemptions)
	zra.POST("/tax/calculate", s.CalculateTax)
	zra.POST("/tax/format", s.FormatTax)

	// -------- Inventory --------
	zra.GET("/inventory", s.ListProducts)
	zra.POST("/inventory", s.CreateProduct)
	zra.GET("/inventory/low-stock", s.LowStock)
	zra.POST("/inventory/check", s.CheckStock)
	zra.GET("/inventory/reports/:type", s.InventoryReport)
	zra.GET("/inventory/:id", s.GetProduct)
	zra.PUT("/inventory/:id", s.UpdateProduct)
	zra.DELETE("/inventory/:id", s.DeleteProduct)
	zra.POST("/inventory/:id/adjust", s.AdjustStock)
	zra.GET("/inventory/:id/movements", s.ListMovements)
	zra.POST("/inventory/:id/movements", s.RecordMovement)

	// -------- Reports --------
	zra.GET("/reports/:type", s.GetReport)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
