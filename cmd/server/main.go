package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"facilicore-system/config"
	"facilicore-system/internal/database"
	"facilicore-system/internal/gateway/handlers"
	"facilicore-system/internal/gateway/middleware"
	"facilicore-system/internal/notifier"
	"facilicore-system/internal/services/inventory"
	"facilicore-system/internal/storage"
)

func main() {
	cfg := config.LoadConfig()
	gin.SetMode(cfg.Server.Mode)

	db, err := database.NewConnection(cfg.DB.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.MigrateInventoryDB(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := config.NewRedisClient(cfg.Redis)

	store := storage.NewGormStore(db)
	tasks := storage.NewGormTaskDirectory(db)

	// Empty EVENT_CHANNEL disables event publishing.
	var events inventory.Notifier = inventory.NopNotifier{}
	if cfg.Events.Channel != "" {
		events = notifier.NewRedisNotifier(redisClient, cfg.Events.Channel)
	}

	alerts := inventory.NewAlertMonitor(store, events)
	ledger := inventory.NewLedger(store, alerts)
	replacements := inventory.NewReplacementHandler(store, events)
	catalog := inventory.NewCatalog(store, ledger)
	reservations := inventory.NewReservationManager(store, ledger, replacements)
	requests := inventory.NewRequestWorkflow(store, ledger, replacements, tasks, events)

	handler := handlers.NewInventoryHTTPHandler(catalog, ledger, reservations, requests, alerts, redisClient)

	r := gin.Default()

	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(cfg.Server.RateLimit))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Server.Mode != gin.ReleaseMode {
		auth := handlers.NewAuthHTTPHandler([]byte(cfg.Auth.JWTSecret))
		r.POST("/api/v1/auth/dev-token", auth.DevToken)
	}

	protected := r.Group("/api/v1/inventory")
	protected.Use(middleware.JWTAuth([]byte(cfg.Auth.JWTSecret)))
	{
		items := protected.Group("/items")
		{
			items.POST("", middleware.AdminOnly(), handler.CreateItem)
			items.GET("", handler.ListItems)
			items.GET("/summary", handler.SiteSummary)
			items.GET("/code/:code", handler.GetItemByCode)
			items.GET("/:id", handler.GetItem)
			items.PUT("/:id", middleware.AdminOnly(), handler.UpdateItem)
			items.DELETE("/:id", middleware.AdminOnly(), handler.DeactivateItem)
			items.POST("/:id/consume", handler.ConsumeStock)
			items.POST("/:id/restock", handler.RestockItem)
			items.POST("/:id/adjust", middleware.AdminOnly(), handler.AdjustStock)
		}

		transactions := protected.Group("/transactions")
		{
			transactions.GET("", handler.ListTransactions)
		}

		reservationGroup := protected.Group("/reservations")
		{
			reservationGroup.POST("", handler.CreateReservation)
			reservationGroup.GET("", handler.ListReservations)
			reservationGroup.GET("/:id", handler.GetReservation)
			reservationGroup.POST("/:id/receive", handler.ReceiveReservation)
			reservationGroup.POST("/:id/consume", handler.ConsumeReservation)
			reservationGroup.POST("/:id/release", handler.ReleaseReservation)
			reservationGroup.POST("/:id/replacement", handler.RequestReservationReplacement)
		}

		requestGroup := protected.Group("/requests")
		{
			requestGroup.POST("", handler.SubmitRequest)
			requestGroup.GET("", handler.ListRequests)
			requestGroup.GET("/:id", handler.GetRequest)
			requestGroup.POST("/:id/approve", middleware.AdminOnly(), handler.ApproveRequest)
			requestGroup.POST("/:id/deny", middleware.AdminOnly(), handler.DenyRequest)
			requestGroup.POST("/:id/fulfill", handler.FulfillRequest)
			requestGroup.POST("/:id/receive", handler.ReceiveRequest)
			requestGroup.POST("/:id/return", handler.ReturnRequest)
		}

		alertGroup := protected.Group("/alerts")
		{
			alertGroup.GET("", handler.ListAlerts)
			alertGroup.POST("/:id/acknowledge", handler.AcknowledgeAlert)
		}
	}

	addr := ":" + cfg.Server.Port
	log.Printf("Inventory server listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
