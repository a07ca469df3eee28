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
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lexure/validation-engine/configs"
	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/repositories"
	"github.com/lexure/validation-engine/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := configs.Load()
	setupLogging(cfg.Server.Environment)

	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Msg("Starting validation query API")

	db, err := repositories.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	resultStore := store.NewValidationResultStore(db)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware())

	setupRoutes(router, resultStore, db)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func setupRoutes(router *gin.Engine, resultStore *store.ValidationResultStore, db *repositories.Database) {
	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	v1 := router.Group("/api/v1")

	results := v1.Group("/validation-results")
	{
		results.GET("/:validationId", getByValidationIDHandler(resultStore))
		results.GET("/payment/:paymentId", getByPaymentIDHandler(resultStore))
		results.GET("/correlation/:correlationId", getByCorrelationIDHandler(resultStore))
		results.GET("/tenant/:tenantId", getByTenantHandler(resultStore))
		results.GET("/tenant/:tenantId/business-unit/:businessUnitId", getByTenantAndBUHandler(resultStore))
		results.GET("/status/:status", getByStatusHandler(resultStore))
		results.GET("/risk-level/:riskLevel", getByRiskLevelHandler(resultStore))
		results.GET("/validated-between", getByValidatedAtBetweenHandler(resultStore))
	}

	stats := v1.Group("/statistics")
	{
		stats.GET("/tenant/:tenantId", getStatisticsHandler(resultStore))
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("%d", time.Now().UnixNano())
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("request_id", c.GetString("request_id")).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

func getIntParam(c *gin.Context, key string, defaultValue int) int {
	if val := c.Query(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil && result > 0 {
			return result
		}
	}
	return defaultValue
}

func paginationResponse(page, pageSize, total int) gin.H {
	return gin.H{"page": page, "page_size": pageSize, "total": total}
}

func getByValidationIDHandler(s *store.ValidationResultStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.FindByValidationID(c.Request.Context(), c.Param("validationId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getByPaymentIDHandler(s *store.ValidationResultStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := s.FindByPaymentID(c.Request.Context(), c.Param("paymentId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

func getByCorrelationIDHandler(s *store.ValidationResultStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := s.FindByCorrelationID(c.Request.Context(), c.Param("correlationId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

func getByTenantHandler(s *store.ValidationResultStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := getIntParam(c, "page", 1)
		pageSize := getIntParam(c, "page_size", 20)

		results, total, err := s.FindByTenantID(c.Request.Context(), c.Param("tenantId"), page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "pagination": paginationResponse(page, pageSize, total)})
	}
}

func getByTenantAndBUHandler(s *store.ValidationResultStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := getIntParam(c, "page", 1)
		pageSize := getIntParam(c, "page_size", 20)

		results, total, err := s.FindByTenantAndBU(c.Request.Context(), c.Param("tenantId"), c.Param("businessUnitId"), page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "pagination": paginationResponse(page, pageSize, total)})
	}
}

func getByStatusHandler(s *store.ValidationResultStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := getIntParam(c, "page", 1)
		pageSize := getIntParam(c, "page_size", 20)

		results, total, err := s.FindByStatus(c.Request.Context(), models.Status(c.Param("status")), page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "pagination": paginationResponse(page, pageSize, total)})
	}
}

func getByRiskLevelHandler(s *store.ValidationResultStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := getIntParam(c, "page", 1)
		pageSize := getIntParam(c, "page_size", 20)

		results, total, err := s.FindByRiskLevel(c.Request.Context(), models.RiskLevel(c.Param("riskLevel")), page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "pagination": paginationResponse(page, pageSize, total)})
	}
}

func getByValidatedAtBetweenHandler(s *store.ValidationResultStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, err := time.Parse(time.RFC3339, c.Query("from"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC3339 timestamp"})
			return
		}
		to, err := time.Parse(time.RFC3339, c.Query("to"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be an RFC3339 timestamp"})
			return
		}

		page := getIntParam(c, "page", 1)
		pageSize := getIntParam(c, "page_size", 20)

		results, total, err := s.FindByValidatedAtBetween(c.Request.Context(), from, to, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "pagination": paginationResponse(page, pageSize, total)})
	}
}

func getStatisticsHandler(s *store.ValidationResultStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := s.Statistics(c.Request.Context(), c.Param("tenantId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
