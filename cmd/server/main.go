package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"go-pos-ledger/internal/analytics"
	"go-pos-ledger/internal/billing"
	"go-pos-ledger/internal/catalog"
	"go-pos-ledger/internal/database"
	"go-pos-ledger/internal/handlers"
	"go-pos-ledger/internal/inventory"
	"go-pos-ledger/internal/ledger"
	"go-pos-ledger/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: No .env file found")
	}

	database.Connect()

	// --- WIRE THE LEDGER SERVICES ---
	catalogProvider := catalog.NewProvider(database.DB)
	inventoryGateway := inventory.NewFromEnv()
	orderLedger := ledger.New(database.DB, catalogProvider, inventoryGateway, taxRateFromEnv())
	billingService := billing.NewService(database.DB)
	analyticsService := analytics.NewService(database.DB)
	handlers.Setup(orderLedger, billingService, analyticsService, catalogProvider)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "online"}) })
	r.POST("/login", handlers.Login)

	// --- FEATURE FLAG: Admin Registration ---
	// Only opens if we explicitly allow it in .env
	if os.Getenv("ALLOW_REGISTRATION") == "true" {
		r.POST("/register", handlers.Register)
		log.Println("⚠️ WARNING: Registration route is OPEN. Disable this in production!")
	} else {
		log.Println("🔒 Registration route is safely DISABLED.")
	}

	// --- PROTECTED ROUTES ---
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware())
	{
		// PUBLIC TO STAFF & ADMIN
		api.POST("/orders", handlers.CreateOrder)
		api.GET("/orders", handlers.ListOrders)
		api.GET("/orders/:id", handlers.GetOrder)
		api.POST("/orders/:id/items", handlers.AddItems)
		api.PUT("/orders/:id/items/:itemId", handlers.UpdateItem)
		api.DELETE("/orders/:id/items/:itemId", handlers.DeleteItem)
		api.POST("/orders/:id/close", handlers.CloseOrder)
		api.POST("/orders/:id/deliver", handlers.MarkDelivered)
		api.POST("/orders/:id/waiting", handlers.MarkWaiting)
		api.GET("/orders/:id/logs", handlers.ListOrderLogs)

		api.POST("/billings", handlers.OpenBilling)
		api.GET("/billings/:id/summary", handlers.BillingSummary)
		api.POST("/billings/:id/close", handlers.CloseBilling)
		api.POST("/billings/:id/settle", handlers.SettleBilling)
		api.POST("/sessions/:id/move", handlers.MoveSession)

		// ADMIN ONLY
		admin := api.Group("/")
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.POST("/ask", handlers.AskAI)

			admin.POST("/orders/:id/recalculate", handlers.RecalculateTotals)
			admin.POST("/billings/:id/cancel", handlers.CancelBilling)
			admin.GET("/combos/:id/price", handlers.ComputeComboPrice)

			admin.GET("/reports", handlers.GetSalesReport)
			admin.GET("/reports/histogram", handlers.GetStatusHistogram)
			admin.GET("/reports/trends", handlers.GetTrends)
			admin.GET("/reports/prep-time", handlers.GetPrepTime)
			admin.GET("/reports/backlog", handlers.GetBacklog)
		}
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	log.Println("🚀 Server starting on " + baseURL)
	if err := r.Run(":8080"); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}

// taxRateFromEnv reads TAX_RATE as a percentage ("8.5" => 8.5%).
func taxRateFromEnv() decimal.Decimal {
	raw := os.Getenv("TAX_RATE")
	if raw == "" {
		return decimal.Zero
	}
	pct, err := strconv.ParseFloat(raw, 64)
	if err != nil || pct < 0 {
		log.Printf("Warning: invalid TAX_RATE %q, using 0", raw)
		return decimal.Zero
	}
	return decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100))
}
