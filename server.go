package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/middlewares"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/mmdatafocus/storefront_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// server holds the dependencies that only exist once the database is up.
type server struct {
	orderWorkflow atomic.Pointer[workflow.OrderWorkflow]
}

func (s *server) orders() *workflow.OrderWorkflow {
	return s.orderWorkflow.Load()
}

func (s *server) ready() bool {
	return config.GetDB() != nil && config.GetRedisDB() != nil && s.orderWorkflow.Load() != nil
}

func orderEventPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "orderEventPubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "orderEventPubSubHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var m config.OrderEventMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "orderEventPubSubHandler", "Unmarshal pubsub message", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}
		if m.ID <= 0 || m.EventType == "" || m.OrderId <= 0 {
			config.LogError(logger, "server.go", "orderEventPubSubHandler", "Invalid pubsub message (missing required fields)", m, fmt.Errorf("id/event_type/order_id required"))
			c.Status(http.StatusNoContent)
			return
		}

		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}
		fields := logrus.Fields{
			"field":          "orderEventPubSubHandler",
			"event_type":     m.EventType,
			"order_id":       m.OrderId,
			"record_id":      m.ID,
			"message_id":     msg.Message.ID,
			"correlation_id": correlationID,
		}

		// Redis lock only spares duplicate deliveries the wait; idempotency keys
		// make processing safe without it.
		var lock *redislock.Lock
		if redisLock := config.GetRedisLock(); redisLock != nil {
			lock, err = redisLock.Obtain(c.Request.Context(), fmt.Sprintf("lock:order-event:%d", m.ID), 30*time.Second, nil)
			if err != nil {
				if !errors.Is(err, redislock.ErrNotObtained) {
					logger.WithFields(fields).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
				}
				lock = nil
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(fields).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		ctx := utils.SetUserIdInContext(c.Request.Context(), 0)
		ctx = utils.SetCorrelationIdInContext(ctx, correlationID)
		if err := ProcessMessage(ctx, logger, m); err != nil {
			logger.WithFields(fields).Error("pubsub processing failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry.
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type outboxReplayRequest struct {
	RecordIds []int `json:"record_ids"`
}

func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outboxReplayRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindingError(c, err)
				return
			}
		}
		reset, err := models.ReplayOrderEvents(c.Request.Context(), config.GetDB(), req.RecordIds)
		if err != nil {
			respondError(c, err)
			return
		}
		config.GetLogger().WithFields(logrus.Fields{
			"field":      "outboxReplayHandler",
			"record_ids": req.RecordIds,
			"reset":      reset,
		}).Info("outbox events queued for replay")
		c.JSON(http.StatusOK, gin.H{"success": true, "reset": reset})
	}
}

func outboxStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := paramId(c, "orderId")
		if !ok {
			return
		}
		statuses, err := models.ListOrderEventStatuses(c.Request.Context(), config.GetDB(), orderId)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, statuses)
	}
}

func getRedisClient(redisAddress string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "route not found"})
}

func (s *server) registerRoutes(r *gin.Engine) {
	r.POST("/pubsub", orderEventPubSubHandler())

	user := r.Group("/api/user", middlewares.RequireRole(utils.RoleUser))
	user.POST("/orders", s.placeOrderHandler())
	user.GET("/orders", listMyOrdersHandler())
	user.GET("/orders/:orderId", getMyOrderHandler())
	user.PATCH("/orders/:orderId/items/:sku/cancel", s.cancelOrderItemHandler())
	user.POST("/orders/:orderId/items/:sku/return", s.requestReturnHandler())
	user.PATCH("/orders/:orderId/payment", s.retryPaymentHandler())

	user.GET("/cart", getCartHandler())
	user.POST("/cart", addToCartHandler())
	user.GET("/cart/check", checkCartHandler())
	user.PATCH("/cart/items/:sku", updateCartQuantityHandler())
	user.DELETE("/cart/items/:sku", removeCartItemHandler())

	user.GET("/wishlist", listWishlistHandler())
	user.POST("/wishlist", addToWishlistHandler())
	user.DELETE("/wishlist/:productId", removeFromWishlistHandler())
	user.GET("/wishlist/check/:productId", checkWishlistHandler())

	user.GET("/coupons", listActiveCouponsHandler())
	user.POST("/coupons/apply", applyCouponHandler())

	user.GET("/wallet", getWalletHandler())
	user.POST("/wallet/top-up", topUpWalletHandler())
	user.POST("/referral/verify", verifyReferralHandler())

	admin := r.Group("/api/admin", middlewares.RequireRole(utils.RoleAdmin))
	admin.GET("/orders", listOrdersHandler())
	admin.PATCH("/orders/:orderId/items/:sku/status", s.updateOrderItemStatusHandler())
	admin.PATCH("/orders/:orderId/items/:sku/return", s.respondToReturnHandler())

	admin.GET("/coupons", listCouponsHandler())
	admin.POST("/coupons", createCouponHandler())
	admin.PATCH("/coupons/:id/status", toggleCouponStatusHandler())
	admin.DELETE("/coupons/:id", deleteCouponHandler())

	admin.GET("/offers", listOffersHandler())
	admin.POST("/offers", createOfferHandler())
	admin.DELETE("/offers/:id", deleteOfferHandler())

	admin.GET("/sales-report", salesReportHandler())
	admin.GET("/sales-report/excel", salesReportExcelHandler())
	admin.GET("/best-selling", bestSellingHandler())
	admin.GET("/dashboard", dashboardHandler())
	admin.GET("/chart-data", chartDataHandler())

	// Ops tooling: replay outbox events that were marked DEAD/FAILED.
	admin.POST("/internal/ops/outbox/replay", outboxReplayHandler())
	admin.GET("/internal/ops/outbox/orders/:orderId", outboxStatusHandler())

	r.NoRoute(customNotFoundHandler)
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := utils.RegisterValidations(v); err != nil {
			log.Fatal(err)
		}
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	s := &server{}

	// Start the HTTP server ASAP; until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	r.Use(middlewares.RequestContextMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if !s.ready() {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization",
		middlewares.IdempotencyKeyHeader, middlewares.CorrelationIdHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.AuthMiddleware())

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := middlewares.NewRateLimiter(getRedisClient(os.Getenv("REDIS_ADDRESS")), limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.LoaderMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	s.registerRoutes(r)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can block tables; SKIP_MIGRATIONS=true leaves it to a separate job.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable(db)
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := config.RetryBackoff(attempt)
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	s.orderWorkflow.Store(workflow.NewOrderWorkflow(db, logger, config.GetRedisLock()))

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	// Publishes AFTER commit.
	if config.PubSubConfigured() {
		go workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)
	}
	if shouldRunDirectOutboxProcessor() {
		go NewOutboxDirectProcessor(db, logger).Run(workerCtx)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("storefront api listening on port ", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	config.ClosePubSub()
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
