package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/smallbiznis/dreamline/internal/account/domain"
	auditdomain "github.com/smallbiznis/dreamline/internal/audit/domain"
	"github.com/smallbiznis/dreamline/internal/authorization"
	"github.com/smallbiznis/dreamline/internal/config"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	interpreterdomain "github.com/smallbiznis/dreamline/internal/interpreter/domain"
	ledgerdomain "github.com/smallbiznis/dreamline/internal/ledger/domain"
	obsmiddleware "github.com/smallbiznis/dreamline/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/dreamline/internal/observability/metrics"
	obstracing "github.com/smallbiznis/dreamline/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/dreamline/internal/order/domain"
	"github.com/smallbiznis/dreamline/internal/ratelimit"
	settingsdomain "github.com/smallbiznis/dreamline/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(metrics *obsmetrics.Metrics) *gin.Engine {
	binding.EnableDecoderDisallowUnknownFields = true

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
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
	engine         *gin.Engine
	verifier       identitydomain.Verifier
	authzSvc       authorization.Service
	orderSvc       orderdomain.Service
	interpreterSvc interpreterdomain.Service
	settingsSvc    settingsdomain.Service
	accountSvc     accountdomain.Service
	ledgerSvc      ledgerdomain.Service
	auditSvc       auditdomain.Service
	createLimiter  *ratelimit.CreateOrderLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Verifier       identitydomain.Verifier
	AuthzSvc       authorization.Service
	OrderSvc       orderdomain.Service
	InterpreterSvc interpreterdomain.Service
	SettingsSvc    settingsdomain.Service
	AccountSvc     accountdomain.Service
	LedgerSvc      ledgerdomain.Service
	AuditSvc       auditdomain.Service
	CreateLimiter  *ratelimit.CreateOrderLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics           `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:         p.Gin,
		verifier:       p.Verifier,
		authzSvc:       p.AuthzSvc,
		orderSvc:       p.OrderSvc,
		interpreterSvc: p.InterpreterSvc,
		settingsSvc:    p.SettingsSvc,
		accountSvc:     p.AccountSvc,
		ledgerSvc:      p.LedgerSvc,
		auditSvc:       p.AuditSvc,
		createLimiter:  p.CreateLimiter,
		obsMetrics:     p.ObsMetrics,
	}

	s.registerAPIRoutes()
	s.registerAdminRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1", s.RequireIdentity())

	// -------- Orders --------
	api.POST("/orders", s.CreateOrderRateLimit(), s.CreateOrder)
	api.GET("/orders", s.ListOrders)
	api.GET("/orders/:id", s.GetOrder)
	api.POST("/orders/:id/assign", s.AssignOrder)
	api.POST("/orders/:id/transitions", s.TransitionOrder)
	api.POST("/orders/:id/payment", s.MarkOrderPaid)

	// -------- Interpreters --------
	api.GET("/interpreters", s.ListInterpreters)
	api.GET("/interpreters/me/transactions", s.authorize(authorization.ObjectLedger, authorization.ActionLedgerView), s.ListMyTransactions)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1/admin", s.RequireIdentity())

	admin.POST("/interpreters", s.CreateInterpreter)
	admin.PUT("/interpreters/:id/price", s.UpdateInterpreterPrice)
	admin.PUT("/interpreters/:id/active", s.SetInterpreterActive)

	admin.GET("/settings", s.GetSettings)
	admin.PUT("/settings/commission-rate", s.UpdateCommissionRate)

	admin.GET("/accounts/:subject", s.GetAccount)
	admin.POST("/accounts/:subject/credits", s.GrantCredits)
	admin.PUT("/accounts/:subject/plan", s.SetPlan)

	admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}
