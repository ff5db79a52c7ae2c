// Package httpapi builds the Gin engine for the panel: global middleware,
// the public health, metrics and webhook routes, and the session protected
// user and admin groups under the API base path.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/docs"
	"github.com/tbourn/pix-panel/internal/auth"
	"github.com/tbourn/pix-panel/internal/config"
	"github.com/tbourn/pix-panel/internal/events"
	"github.com/tbourn/pix-panel/internal/http/handlers"
	"github.com/tbourn/pix-panel/internal/http/middleware"
	"github.com/tbourn/pix-panel/internal/repo"
	"github.com/tbourn/pix-panel/internal/services"
)

// Deps are the process-wide collaborators the routes need. Events and
// ConfigCache are optional.
type Deps struct {
	DB          *gorm.DB
	Provider    services.ChargeProvider
	Events      events.Publisher
	ConfigCache services.ConfigCache
}

const scopePix = "pix"

// RegisterRoutes wires deps into the services and mounts every route on r.
//
// Every request passes tracing, the request id, the access log and panic
// recovery before anything else, so a failure further down is still logged
// with its id. Body limiting, gzip, metrics, CORS and security headers follow.
//
// Session routes then run Authenticate, Maintenance, user provisioning, the
// Idempotency-Key check and the per-user limiter, so the last two can key on
// the user. Admin
// routes add RequireAdmin.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	handlers.RegisterValidators()

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", cfg.APIBasePath + "/webhook"})))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", health(deps.DB))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	configSvc := &services.ConfigService{DB: deps.DB, Cache: deps.ConfigCache}
	walletSvc := &services.WalletService{DB: deps.DB, Events: deps.Events}
	h := handlers.New(handlers.Services{
		Pix: &services.PixService{
			DB:             deps.DB,
			Provider:       deps.Provider,
			Events:         deps.Events,
			Poll:           true,
			MinAmountCents: cfg.Pix.MinAmountCents,
			MaxAmountCents: cfg.Pix.MaxAmountCents,
		},
		Webhook:     &services.WebhookService{DB: deps.DB, Secret: cfg.PrimePag.SecretKey, Events: deps.Events},
		Wallet:      walletSvc,
		Photos:      &services.PhotoService{DB: deps.DB, Events: deps.Events},
		Withdrawals: &services.WithdrawalService{DB: deps.DB, Events: deps.Events, IdempotencyTTL: cfg.IdempotencyTTL},
		Config:      configSvc,
	})

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)
	userLimiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	webhookLimiter := middleware.NewRateLimiter(cfg.WebhookRateRPS, cfg.WebhookRateBurst, middleware.KeyByUserOrIP())
	authed := func(extra ...gin.HandlerFunc) []gin.HandlerFunc {
		chain := []gin.HandlerFunc{
			middleware.Authenticate(verifier, cfg.Auth.CookieName),
			middleware.Maintenance(configSvc),
			middleware.ProvisionUser(walletSvc),
		}
		return append(chain, extra...)
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Provider and scheduler entry points
		api.POST("/webhook/primepag", webhookLimiter.Handler(), h.PrimePagWebhook)
		api.POST("/pix/expire-payments", middleware.CronSecret(cfg.Pix.CronSecret), h.ExpirePayments)
	}

	pix := api.Group("/pix", authed(
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 128, Scope: scopePix}, paymentLookup(deps.DB)),
		userLimiter.Handler(),
	)...)
	{
		pix.POST("/create", h.CreatePix)
		pix.GET("/active", h.ActivePix)
		pix.GET("/payments", h.ListPix)
		pix.GET("/status/:id", h.PixStatus)
		pix.POST("/cancel/:id", h.CancelPix)
		pix.POST("/cancel-all-pending", h.CancelAllPix)
	}

	photos := api.Group("/photos", authed(userLimiter.Handler())...)
	{
		photos.GET("", h.ListPhotos)
		photos.GET("/purchased", h.PurchasedPhotos)
		photos.POST("/purchase", h.PurchasePhoto)
	}

	user := api.Group("/user", authed(
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200, Scope: services.ScopeWithdrawals}, withdrawalLookup(deps.DB)),
		userLimiter.Handler(),
	)...)
	{
		user.GET("/balance", h.Balance)
		user.GET("/wallet", h.Wallet)
		user.GET("/withdrawals", h.ListMyWithdrawals)
		user.POST("/withdrawals", h.RequestWithdrawal)
		user.GET("/withdrawals/:id", h.GetWithdrawal)
	}

	admin := api.Group("/admin", authed(middleware.RequireAdmin(), userLimiter.Handler())...)
	{
		admin.GET("/withdrawals", h.AdminListWithdrawals)
		admin.POST("/withdrawals/:id/review", h.ReviewWithdrawal)
		admin.POST("/withdrawals/:id/process", h.ProcessWithdrawal)
		admin.GET("/config", h.ListConfig)
		admin.POST("/config", h.SetConfig)
		admin.POST("/users/:id/balance", h.AdjustBalance)
		admin.POST("/pix/expire-payments", h.ExpirePayments)
		admin.GET("/pix/check-expired", h.CheckExpired)
		admin.GET("/payments/stats", h.PaymentStats)
		admin.GET("/webhook-events", h.ListWebhookEvents)
		admin.POST("/photos", h.CreatePhoto)
		admin.PATCH("/photos/:id/active", h.SetPhotoActive)
	}
}

// paymentLookup reports whether the user already has a payment created with
// the key, so retries of POST /pix/create skip the rate limiter.
func paymentLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, _, key string, _ time.Time) (bool, error) {
		p, err := repo.ResolvePayment(ctx, db, userID, key)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return p.IdempotentID == key, nil
	}
}

// withdrawalLookup reports whether a withdrawal request with the key is
// still replayable.
func withdrawalLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}

// corsMiddleware allows every origin without credentials when no allowlist
// is configured. With an allowlist only listed origins are echoed and the
// session cookie is allowed; other origins are refused by gin-contrib/cors.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "Retry-After"}
	methods := []string{"GET", "POST", "PATCH", "OPTIONS"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Probes send no Origin header and still get ACAO: *.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    exposeHeaders,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	return []gin.HandlerFunc{
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// health reports liveness plus database reachability.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		dbStatus := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "unreachable"
		}
		status := http.StatusOK
		if dbStatus != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"success": status == http.StatusOK, "status": "ok", "database": dbStatus})
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader. Oversized bodies make downstream reads fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
