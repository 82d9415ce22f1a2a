package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/topup/internal/account"
	"github.com/smallbiznis/topup/internal/checkout"
	checkoutdomain "github.com/smallbiznis/topup/internal/checkout/domain"
	"github.com/smallbiznis/topup/internal/config"
	"github.com/smallbiznis/topup/internal/observability"
	obsmiddleware "github.com/smallbiznis/topup/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/topup/internal/observability/metrics"
	obstracing "github.com/smallbiznis/topup/internal/observability/tracing"
	"github.com/smallbiznis/topup/internal/payment"
	paymentdomain "github.com/smallbiznis/topup/internal/payment/domain"
	"github.com/smallbiznis/topup/internal/providers/telegram"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	telegram.Module,
	account.Module,
	checkout.Module,
	payment.Module,
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, _ *obsmetrics.Metrics) *gin.Engine {
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

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	catalog     *config.CatalogHolder
	checkoutSvc checkoutdomain.Service
	paymentSvc  paymentdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Catalog     *config.CatalogHolder
	CheckoutSvc checkoutdomain.Service
	PaymentSvc  paymentdomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		catalog:     p.Catalog,
		checkoutSvc: p.CheckoutSvc,
		paymentSvc:  p.PaymentSvc,
	}
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/paquetes", s.ListPackages)
	s.engine.POST("/crear-sesion", s.CreateCheckoutSession)
	s.engine.POST("/webhook/stripe", s.HandleStripeWebhook)
}
