package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"imgtutu/app/handler"
	"imgtutu/app/middleware"
)

// Router Router
type Router struct {
	taskHandler    *handler.TaskHandler
	creditHandler  *handler.CreditHandler
	historyHandler *handler.HistoryHandler
	paymentHandler *handler.PaymentHandler
	cronHandler    *handler.CronHandler
}

// NewRouter creates a new Router
func NewRouter(taskHandler *handler.TaskHandler, creditHandler *handler.CreditHandler, historyHandler *handler.HistoryHandler, paymentHandler *handler.PaymentHandler, cronHandler *handler.CronHandler) *Router {
	return &Router{
		taskHandler:    taskHandler,
		creditHandler:  creditHandler,
		historyHandler: historyHandler,
		paymentHandler: paymentHandler,
		cronHandler:    cronHandler,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// User-facing API, JWT or internal token required
	api := engine.Group("/api")
	api.Use(middleware.Auth())
	{
		api.POST("/generate-image-task", r.taskHandler.Generate)
		api.GET("/image-task-status/:task_id", r.taskHandler.Status)
		api.POST("/generate-image/cancel", r.taskHandler.Cancel)
		api.GET("/tasks", r.taskHandler.List)

		api.GET("/credits/get", r.creditHandler.Balance)
		api.POST("/credits/update", r.creditHandler.Update) // internal token only

		api.GET("/history", r.historyHandler.List)
		api.DELETE("/history", r.historyHandler.Clear)
		api.DELETE("/history/:id", r.historyHandler.Delete)

		payment := api.Group("/payment")
		{
			payment.POST("/create-order", r.paymentHandler.CreateOrder)
			payment.GET("/order-status/:order_id", r.paymentHandler.OrderStatus)
		}
	}

	// Scheduler-facing trigger, shared-key guarded
	cron := engine.Group("/cron")
	cron.Use(middleware.CronAuth())
	{
		cron.GET("/process-pending-tasks", r.cronHandler.ProcessPendingTasks)
		cron.POST("/process-pending-tasks", r.cronHandler.ProcessPendingTasks)
		cron.GET("/stats", r.cronHandler.Stats)
	}
}
