package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/wms-platform/freight-service/pkg/errors"
	"github.com/wms-platform/freight-service/pkg/kafka"
	"github.com/wms-platform/freight-service/pkg/logging"
	"github.com/wms-platform/freight-service/pkg/metrics"
	"github.com/wms-platform/freight-service/pkg/middleware"
	"github.com/wms-platform/freight-service/pkg/mongodb"
	"github.com/wms-platform/freight-service/pkg/resilience"
	"github.com/wms-platform/freight-service/pkg/tracing"

	"github.com/wms-platform/freight-service/internal/application"
	"github.com/wms-platform/freight-service/internal/config"
	"github.com/wms-platform/freight-service/internal/domain"
	"github.com/wms-platform/freight-service/internal/infrastructure/carriers"
	"github.com/wms-platform/freight-service/internal/infrastructure/messaging"
	mongoRepo "github.com/wms-platform/freight-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/freight-service/internal/rates"
	"github.com/wms-platform/freight-service/internal/weights"
)

const serviceName = "freight-service"

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(cfg.Service.LogLevel)
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting freight-service API")

	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
	tracingConfig.Environment = cfg.Service.Environment
	tracingConfig.Enabled = cfg.Tracing.Enabled

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing - don't exit
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	// Initialize Prometheus metrics
	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)
	logger.Info("Metrics initialized")

	// Initialize MongoDB with instrumentation
	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = cfg.MongoDB.URI
	mongoConfig.Database = cfg.MongoDB.Database
	mongoConfig.ConnectTimeout = cfg.MongoDB.Timeout
	mongoConfig.Username = cfg.MongoDB.Username
	mongoConfig.Password = cfg.MongoDB.Password
	mongoConfig.AuthDB = cfg.MongoDB.AuthDB
	mongoConfig.ReplicaSet = cfg.MongoDB.ReplicaSet
	mongoConfig.PoolMonitor = mongodb.NewPoolMonitor(m)

	mongoClient, err := mongodb.NewClient(ctx, mongoConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	instrumentedMongo := mongodb.NewInstrumentedClient(mongoClient, m, logger)
	defer instrumentedMongo.Close(ctx)
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	// Initialize Kafka producer with instrumentation and circuit breaker
	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = cfg.Kafka.Brokers
	kafkaConfig.ClientID = serviceName

	producer := kafka.NewProductionProducer(kafkaConfig, m, logger)
	defer producer.Close()
	publisher := messaging.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
	logger.Info("Kafka producer initialized", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)

	// Initialize repositories
	sessionRepo := mongoRepo.NewSessionRepository(instrumentedMongo.Database())
	weightRepo := mongoRepo.NewWeightRepository(instrumentedMongo.Database())

	// Weight resolution
	resolver := weights.NewResolver(weightRepo, logger)

	// Carrier adapters and rate engine
	providers := buildProviders(cfg, logger)
	breakers := resilience.NewCircuitBreakerRegistry(logger.Logger)
	breakers.OnStateChange(func(name string, from, to gobreaker.State) {
		m.SetCircuitBreakerState(name, int(to))
		if to == gobreaker.StateOpen {
			m.RecordCircuitBreakerTrip(name)
		}
	})
	engineConfig := rates.Config{
		CacheTTL:     cfg.Rates.CacheTTL,
		MaxRetries:   cfg.Rates.MaxRetries,
		RetryBackoff: cfg.Rates.RetryBackoff,
		PriceWeight:  cfg.Rates.PriceWeight,
		EtaWeight:    cfg.Rates.EtaWeight,
	}
	engine := rates.NewEngine(providers, breakers, engineConfig, logger, m)

	// Application service
	origin := domain.Address{
		Name:       cfg.Carriers.Origin.Name,
		Street1:    cfg.Carriers.Origin.Street1,
		Suburb:     cfg.Carriers.Origin.Suburb,
		City:       cfg.Carriers.Origin.City,
		PostalCode: cfg.Carriers.Origin.Postcode,
		Country:    cfg.Carriers.Origin.Country,
	}
	sessionService := application.NewSessionService(
		sessionRepo,
		resolver,
		cfg.Packing,
		origin,
		engine,
		publisher,
		logger,
		m,
	)
	sessionService.Start()
	defer sessionService.Stop()

	// Setup Gin router with middleware
	if cfg.Service.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middleware.Setup(router, middlewareConfig)
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.SimpleTracingMiddleware(serviceName))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	// Health check endpoints
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return instrumentedMongo.HealthCheck(ctx)
	}))

	// Metrics endpoint
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	// Carrier and Kafka breaker states, for operators during an outage
	router.GET("/health/breakers", func(c *gin.Context) {
		c.JSON(http.StatusOK, breakers.Status())
	})

	// API v1 routes - Packing sessions
	api := router.Group("/api/v1/sessions")
	{
		api.POST("", createSessionHandler(sessionService, logger))
		api.GET("/:sessionId", getSessionHandler(sessionService, logger))
		api.PUT("/:sessionId/items/:productId/quantity", setQuantityHandler(sessionService, logger))
		api.POST("/:sessionId/items/:productId/force-oversized", forceOversizedHandler(sessionService, logger))
		api.PUT("/:sessionId/destination", setDestinationHandler(sessionService, logger))
		api.GET("/:sessionId/quotes", getQuotesHandler(sessionService, logger))
		api.POST("/:sessionId/quotes/select", selectQuoteHandler(sessionService, logger))
		api.POST("/:sessionId/finish", finishSessionHandler(sessionService, logger))
	}

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", srv.Addr)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

// buildProviders constructs one rating adapter per configured carrier card.
func buildProviders(cfg *config.Config, logger *logging.Logger) []domain.RateProvider {
	var providers []domain.RateProvider
	for name, card := range cfg.Carriers.Cards {
		switch name {
		case "nz-post":
			providers = append(providers, carriers.NewNZPostAdapter(
				os.Getenv("NZPOST_API_KEY"),
				getEnv("NZPOST_API_URL", "https://api.nzpost.co.nz/shippingoptions/2.0"),
				card,
				cfg.Carriers.Currency,
			))
		case "nz-couriers":
			providers = append(providers, carriers.NewNZCouriersAdapter(
				os.Getenv("NZCOURIERS_ACCOUNT"),
				os.Getenv("NZCOURIERS_SITE_CODE"),
				getEnv("NZCOURIERS_API_URL", "https://api.nzcouriers.co.nz/v2"),
				card,
				cfg.Carriers.Currency,
			))
		default:
			logger.Warn("No adapter for configured carrier, skipping", "carrier", name)
		}
	}
	return providers
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// HTTP Handlers

func createSessionHandler(service *application.SessionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			TransferID string                  `json:"transferId" binding:"required"`
			OutletFrom string                  `json:"outletFrom" binding:"required"`
			OutletTo   string                  `json:"outletTo" binding:"required"`
			Items      []application.ItemInput `json:"items" binding:"required,min=1,dive"`
		}

		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"transfer.id": req.TransferID,
			"item.count":  len(req.Items),
		})

		cmd := application.CreateSessionCommand{
			TransferID: req.TransferID,
			OutletFrom: req.OutletFrom,
			OutletTo:   req.OutletTo,
			Items:      req.Items,
		}

		session, err := service.CreateSession(c.Request.Context(), cmd)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusCreated, session)
	}
}

func getSessionHandler(service *application.SessionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.GetSessionQuery{SessionID: c.Param("sessionId")}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"session.id": query.SessionID,
		})

		session, err := service.GetSession(c.Request.Context(), query)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, session)
	}
}

func setQuantityHandler(service *application.SessionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Quantity *int `json:"quantity" binding:"required,gte=0"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.SetQuantityCommand{
			SessionID: c.Param("sessionId"),
			ProductID: c.Param("productId"),
			Quantity:  *req.Quantity,
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"session.id": cmd.SessionID,
			"product.id": cmd.ProductID,
			"quantity":   cmd.Quantity,
		})

		session, err := service.SetQuantity(c.Request.Context(), cmd)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, session)
	}
}

func forceOversizedHandler(service *application.SessionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		cmd := application.ForceOversizedCommand{
			SessionID: c.Param("sessionId"),
			ProductID: c.Param("productId"),
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"session.id": cmd.SessionID,
			"product.id": cmd.ProductID,
		})

		session, err := service.ForceOversized(c.Request.Context(), cmd)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, session)
	}
}

func setDestinationHandler(service *application.SessionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Destination  application.AddressDTO `json:"destination" binding:"required"`
			ShipmentType string                 `json:"shipmentType" binding:"omitempty,shipment_type"`
			ServiceLevel string                 `json:"serviceLevel" binding:"omitempty,service_level"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.SetDestinationCommand{
			SessionID:    c.Param("sessionId"),
			Destination:  application.FromAddressDTO(req.Destination),
			ShipmentType: domain.ShipmentType(req.ShipmentType),
			ServiceLevel: domain.ServiceLevel(req.ServiceLevel),
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"session.id":    cmd.SessionID,
			"shipment.type": req.ShipmentType,
		})

		session, err := service.SetDestination(c.Request.Context(), cmd)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, session)
	}
}

func getQuotesHandler(service *application.SessionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.GetQuotesQuery{SessionID: c.Param("sessionId")}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"session.id": query.SessionID,
		})

		quotes, err := service.GetQuotes(c.Request.Context(), query)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, quotes)
	}
}

func selectQuoteHandler(service *application.SessionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			CarrierName string `json:"carrierName" binding:"required"`
			ServiceName string `json:"serviceName" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.SelectQuoteCommand{
			SessionID:   c.Param("sessionId"),
			CarrierName: req.CarrierName,
			ServiceName: req.ServiceName,
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"session.id":   cmd.SessionID,
			"carrier.name": cmd.CarrierName,
			"service.name": cmd.ServiceName,
		})

		session, err := service.SelectQuote(c.Request.Context(), cmd)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, session)
	}
}

func finishSessionHandler(service *application.SessionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			AcknowledgeDiscrepancies bool `json:"acknowledgeDiscrepancies"`
		}
		// Empty body means no acknowledgment.
		_ = c.ShouldBindJSON(&req)

		cmd := application.FinishSessionCommand{
			SessionID:                c.Param("sessionId"),
			AcknowledgeDiscrepancies: req.AcknowledgeDiscrepancies,
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"session.id": cmd.SessionID,
		})

		session, err := service.FinishSession(c.Request.Context(), cmd)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, session)
	}
}

func respondError(responder *middleware.ErrorResponder, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		responder.RespondWithAppError(appErr)
		return
	}
	responder.RespondInternalError(err)
}
