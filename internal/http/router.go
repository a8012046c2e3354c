// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, edge rate limiting, and transport auth.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Responses carrying personal data are never cacheable
package httpapi

import (
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

	"github.com/datatrace/osint-backend/internal/cache"
	"github.com/datatrace/osint-backend/internal/config"
	"github.com/datatrace/osint-backend/internal/http/handlers"
	"github.com/datatrace/osint-backend/internal/http/middleware"
	"github.com/datatrace/osint-backend/internal/lookup"
	"github.com/datatrace/osint-backend/internal/ratelimit"
	"github.com/datatrace/osint-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and returns the dispatcher so the caller can observe its state
// (e.g. the corruption latch) in health reporting.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression for JSON payloads
//  7. Metrics
//  8. Edge rate limiter (per client IP)
//  9. CORS and security headers
//
// The versioned API under cfg.APIBasePath additionally requires the shared
// bot token; /health, /metrics, and the Swagger UI stay open.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, provider lookup.Provider, cfg config.Config) *services.DispatchService {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB; lookup payloads are tiny)
	r.Use(limitBody(64 << 10))

	// 6) Compress JSON responses
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Edge token-bucket limiter per client IP
	rl := middleware.NewRateLimiter(cfg.EdgeRPS, cfg.EdgeBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Bot-Token"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Bot-Token"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers. NoStore is deliberate: every successful response
	// carries personal data.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (optional)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← cache/limiter/provider/db
	resultCache := cache.New(db, cfg.CacheTTL, cfg.NegativeCacheTTL, cfg.LookupTimeout)
	limiter := ratelimit.New(cfg.RateRPS, cfg.RateBurst, cfg.GlobalRPS, cfg.GlobalBurst)

	dispatchSvc := &services.DispatchService{
		DB:                db,
		Cache:             resultCache,
		Limiter:           limiter,
		Provider:          provider,
		DailyFreeLimit:    cfg.DailyFreeLimit,
		MaxLookupAttempts: cfg.LookupMaxAttempts,
	}
	userSvc := services.NewUserService(db)
	adminSvc := &services.AdminService{DB: db, Cache: resultCache}

	h := handlers.New(dispatchSvc, userSvc, userSvc, adminSvc)

	// Versioned API, bot-token protected
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.BotTokenAuth(cfg.BotToken))
	{
		// Lookups
		api.POST("/lookups/:type", h.Lookup)

		// Accounts
		api.POST("/users", h.Register)
		api.GET("/users/:id", h.GetUser)
		api.GET("/users/:id/queries", h.History)
		api.POST("/redeem", h.Redeem)

		// Operator surface
		admin := api.Group("/admin")
		{
			admin.POST("/users/:id/ban", h.Ban)
			admin.POST("/users/:id/unban", h.Unban)
			admin.POST("/users/:id/balance", h.AdjustBalance)
			admin.POST("/codes", h.CreateCode)
			admin.POST("/blacklist", h.AddBlacklist)
			admin.DELETE("/blacklist", h.RemoveBlacklist)
			admin.POST("/protected", h.AddProtected)
			admin.DELETE("/cache", h.InvalidateCache)
			admin.GET("/stats", h.GetStats)
			admin.GET("/users", h.ListUsers)
		}
	}

	return dispatchSvc
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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
