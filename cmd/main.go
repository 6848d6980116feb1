package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"lumio/internal/auth"
	"lumio/internal/config"
	"lumio/internal/database"
	"lumio/internal/handlers"
	"lumio/internal/services"
	"lumio/internal/stellar"
	"lumio/internal/vault"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize the secret vault
	secretVault, err := vault.New(cfg.App.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize vault: %v", err)
	}

	// Initialize Stellar gateway
	stellarClient := stellar.NewClient(cfg.Stellar)
	log.Printf("Stellar gateway initialized for %s", cfg.Stellar.Network)

	// Initialize services
	walletService := services.NewWalletService(database.GetDB(), stellarClient, secretVault)
	eventService := services.NewEventService(database.GetDB(), walletService, stellarClient)
	investmentService := services.NewInvestmentService(database.GetDB(), stellarClient, secretVault)
	revenueService := services.NewRevenueService(database.GetDB(), stellarClient)
	distributionService := services.NewDistributionService(database.GetDB(), stellarClient, secretVault)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(database.GetDB())
	eventHandler := handlers.NewEventHandler(
		eventService,
		walletService,
		investmentService,
		revenueService,
		distributionService,
	)

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"network": cfg.Stellar.Network,
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/wallet", authHandler.WalletLogin)
	}

	// Authenticated /auth/me route
	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	// Public event routes
	router.GET("/api/events", eventHandler.GetEvents)
	router.GET("/api/events/:id", eventHandler.GetEvent)
	router.GET("/api/events/:id/investments", eventHandler.GetInvestments)
	router.GET("/api/events/:id/revenue", eventHandler.GetRevenue)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// Event lifecycle
		api.POST("/events", eventHandler.CreateEvent)
		api.POST("/events/:id/wallet", eventHandler.InitializeWallet)
		api.POST("/events/:id/fund", eventHandler.FundWallet)
		api.POST("/events/:id/setup-asset", eventHandler.SetupAsset)
		api.POST("/events/:id/open-funding", eventHandler.OpenFunding)
		api.POST("/events/:id/open-sales", eventHandler.OpenTicketSales)

		// Investments
		api.POST("/events/:id/invest", eventHandler.Invest)
		api.POST("/events/:id/investments", eventHandler.RecordInvestment)
		api.GET("/investments", eventHandler.GetMyInvestments)

		// Revenue
		api.POST("/events/:id/tickets", eventHandler.RecordTicketSale)
		api.GET("/events/:id/tickets", eventHandler.GetTickets)
		api.POST("/events/:id/sync-payments", eventHandler.SyncPayments)

		// Distributions
		api.GET("/events/:id/payout-preview", eventHandler.PreviewPayout)
		api.POST("/events/:id/distribute", eventHandler.Distribute)
		api.GET("/events/:id/distributions", eventHandler.GetDistributions)
		api.GET("/distributions/:id", eventHandler.GetDistribution)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
