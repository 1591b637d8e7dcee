package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"imgtutu/app/handler"
	"imgtutu/app/router"
	"imgtutu/internal/service"
	"imgtutu/pkg/config"
	"imgtutu/pkg/extract"
	"imgtutu/pkg/gateway"
	"imgtutu/pkg/logger"
	"imgtutu/pkg/notify"
	"imgtutu/pkg/payment"
	postgresstore "imgtutu/pkg/store/postgres"
	redisstore "imgtutu/pkg/store/redis"
	"imgtutu/pkg/tasksync"
)

// initConfig initializes configuration
func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging
func (app *Application) initLogger() error {
	if err := logger.Init(); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.Sync()
		logger.InfoCtx(app.ctx, "Logging system has been closed")
	})
	return nil
}

// initPostgres initializes Postgres
func (app *Application) initPostgres() error {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		app.config.Postgres.Host,
		app.config.Postgres.Port,
		app.config.Postgres.User,
		app.config.Postgres.Password,
		app.config.Postgres.Database,
		app.config.Postgres.SSLMode,
	)

	repo, err := postgresstore.NewRepository(dsn)
	if err != nil {
		return err
	}

	app.postgresRepo = repo
	app.registerCleanup(func() {
		repo.Close()
		logger.InfoCtx(app.ctx, "Postgres connection has been closed")
	})

	return nil
}

// initRedis initializes Redis. Redis is optional: without it the
// deployment degrades to single-instance dedup semantics.
func (app *Application) initRedis() error {
	client, err := redisstore.NewRedisClient(app.config)
	if err != nil {
		logger.WarnCtx(app.ctx, "Redis unavailable, running without cross-instance sync: %v", err)
		app.redisClient = nil
		return nil
	}

	app.redisClient = client
	app.registerCleanup(func() {
		client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})

	return nil
}

// initServices initializes service layer
func (app *Application) initServices() error {
	gatewayClient := gateway.NewClient(app.config.Gateway)
	extractor := extract.New(app.config.Gateway.PlaceholderHost)

	redisClient := app.rawRedis()
	registry := tasksync.NewRegistry(redisClient)
	broadcaster := tasksync.NewBroadcaster(redisClient)
	webhook := notify.NewWebhook(app.config.Notify.WebhookURL)

	app.taskService = service.NewTaskService(
		app.postgresRepo.Task,
		app.postgresRepo.Credit,
		app.postgresRepo.History,
		gatewayClient,
		extractor,
		registry,
		broadcaster,
		webhook,
		redisClient,
		app.config.Gateway,
		app.config.Task,
	)

	app.creditService = service.NewCreditService(app.postgresRepo.Credit, app.config.Task.DefaultCredits)
	app.historyService = service.NewHistoryService(app.postgresRepo.History)
	app.paymentService = service.NewPaymentService(app.postgresRepo.Order, app.postgresRepo.Credit, payment.NewClient(app.config.Payment))
	app.sweeperService = service.NewSweeperService(app.postgresRepo.Task, app.taskService, app.config.Gateway, app.config.Task)

	return nil
}

// initHandlers initializes handler layer
func (app *Application) initHandlers() error {
	app.taskHandler = handler.NewTaskHandler(app.taskService)
	app.creditHandler = handler.NewCreditHandler(app.creditService)
	app.historyHandler = handler.NewHistoryHandler(app.historyService)
	app.paymentHandler = handler.NewPaymentHandler(app.paymentService)
	app.cronHandler = handler.NewCronHandler(app.sweeperService)
	return nil
}

// initHTTPServer initializes HTTP server
func (app *Application) initHTTPServer() error {
	if app.config.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	r := router.NewRouter(app.taskHandler, app.creditHandler, app.historyHandler, app.paymentHandler, app.cronHandler)
	r.Setup(engine)

	app.ginEngine = engine
	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}
