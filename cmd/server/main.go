package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/barangay-rewards/internal/cache"
	"github.com/iliyamo/barangay-rewards/internal/config"
	"github.com/iliyamo/barangay-rewards/internal/database"
	"github.com/iliyamo/barangay-rewards/internal/handler"
	"github.com/iliyamo/barangay-rewards/internal/logger"
	"github.com/iliyamo/barangay-rewards/internal/middleware"
	"github.com/iliyamo/barangay-rewards/internal/queue"
	"github.com/iliyamo/barangay-rewards/internal/router"
	"github.com/iliyamo/barangay-rewards/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").WithError(err).Fatal("load config")
	}
	log := logger.New(cfg.LogLevel)

	db, dialect, err := database.Open(cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()
	log.WithField("driver", dialect).Info("database ready")

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable: catalog cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.RabbitURL != "" {
		events = queue.NewPublisher(cfg.RabbitURL, cfg.RabbitDialTimeout, log)
		if cfg.AuditConsumer {
			go func() {
				if err := queue.StartAuditConsumer(ctx, cfg.RabbitURL, cfg.AuditLogPath, log); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("audit consumer stopped")
				}
			}()
		}
	}

	svc := service.New(db, dialect, log,
		service.WithCatalogCache(cache.NewCatalog(rdb, cfg.CatalogCache, log)),
		service.WithPublisher(events),
		service.WithRetry(cfg.TxMaxRetries, cfg.TxRetryBase),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.ContextTimeout(cfg.RequestTimeout))

	rewards := handler.NewRewardsHandler(svc, log)
	router.RegisterRoutes(e)
	router.RegisterPublic(e, rewards)
	router.RegisterResident(e, rewards, cfg.JWTSecret, middleware.NewTokenBucket(cfg.RateLimit, rdb, log))
	router.RegisterAdmin(e, handler.NewAdminRewardsHandler(svc, log), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("server stopped")
}
