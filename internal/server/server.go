package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/bukukas/internal/billingoverview"
	billingoverviewdomain "github.com/smallbiznis/bukukas/internal/billingoverview/domain"
	"github.com/smallbiznis/bukukas/internal/billingperiod"
	billingperioddomain "github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"github.com/smallbiznis/bukukas/internal/config"
	"github.com/smallbiznis/bukukas/internal/observability"
	obsmiddleware "github.com/smallbiznis/bukukas/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bukukas/internal/observability/metrics"
	obstracing "github.com/smallbiznis/bukukas/internal/observability/tracing"
	"github.com/smallbiznis/bukukas/internal/subscriber"
	subscriberdomain "github.com/smallbiznis/bukukas/internal/subscriber/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Services is the domain surface the HTTP layer serves. It is provided by the
// domain modules; the transport only needs this module plus an engine.
var Services = fx.Options(
	billingperiod.Module,
	subscriber.Module,
	billingoverview.Module,
)

var Module = fx.Module("http.server",
	Services,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, registry *obsmetrics.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if registry != nil {
		r.GET("/metrics", gin.WrapH(registry.Handler()))
	}

	return r
}

func RunHTTP(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Params struct {
	fx.In

	Engine      *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Periods     billingperioddomain.Service
	Subscribers subscriberdomain.Service
	Overview    billingoverviewdomain.Service
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	periodSvc     billingperioddomain.Service
	subscriberSvc subscriberdomain.Service
	overviewSvc   billingoverviewdomain.Service
}

func NewServer(p Params) *Server {
	return &Server{
		engine:        p.Engine,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		periodSvc:     p.Periods,
		subscriberSvc: p.Subscribers,
		overviewSvc:   p.Overview,
	}
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")

	api.POST("/schedules", s.CreateSchedule)

	periods := api.Group("/billing-periods/:period")
	periods.GET("", s.GetBillingPeriod)
	periods.GET("/aggregate", s.GetPeriodAggregate)
	periods.GET("/export", s.ExportBillingPeriod)
	periods.PATCH("/entries/:id", s.UpdateEntry)
	periods.PATCH("/entries/:id/status", s.SetEntryStatus)
	periods.DELETE("/entries/:id", s.DeleteEntry)

	api.GET("/aggregates", s.ListAggregates)

	api.POST("/fiscal-years/regenerate", s.RegenerateNextFiscalYear)
	api.GET("/fiscal-years/:year/overview", s.GetFiscalYearOverview)

	api.POST("/subscribers", s.CreateSubscriber)
	api.GET("/subscribers", s.ListSubscribers)
	api.POST("/subscribers/import", s.ImportSubscribers)
	api.GET("/subscribers/:id", s.GetSubscriber)
	api.PATCH("/subscribers/:id", s.UpdateSubscriber)
	api.DELETE("/subscribers/:id", s.DeleteSubscriber)
}
