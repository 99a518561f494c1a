// Package httpapi wires the Gin admin API of the notifier: middleware,
// health and metrics endpoints, and the handlers under API_BASE_PATH.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access log with secret redaction
//  4. Recovery: capture panics after the logger
//  5. Body size limit (per route)
//  6. Metrics
//  7. gzip
//  8. Rate limiter (per client IP)
//  9. CORS and security headers
//
// Admin routes additionally require ADMIN_TOKEN when it is set. /health,
// /metrics and /swagger stay open.
package httpapi

import (
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-timetable-notifier/docs"
	"github.com/tbourn/go-timetable-notifier/internal/config"
	"github.com/tbourn/go-timetable-notifier/internal/http/handlers"
	"github.com/tbourn/go-timetable-notifier/internal/http/middleware"
)

// Body caps. Voice notes are uploaded whole, everything else is small JSON.
const (
	defaultBodyLimit    = 1 << 20
	transcribeBodyLimit = 25 << 20
)

// RegisterRoutes attaches all middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, deps handlers.Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Api-Key"},
	}))
	r.Use(middleware.Recovery())

	apiBase := cfg.APIBasePath
	transcribePath := path.Join("/", apiBase, "/assist/transcribe")
	r.Use(limitBody(defaultBodyLimit, map[string]int64{transcribePath: transcribeBodyLimit}))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderAdminToken, "X-Request-ID"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// ACAO: * even without an Origin header, for curl and health probes.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// OpenAPI docs; generated from the handler annotations with swag init.
	docs.SwaggerInfo.BasePath = path.Join("/", apiBase)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	h := handlers.New(deps)
	api := groupWithPrefix(r, apiBase)
	api.Use(middleware.AdminAuth(cfg.AdminToken))
	{
		// Timetables
		api.GET("/schedule/:kind/:id", h.GetSchedule)
		api.DELETE("/schedule/:kind/:id", h.InvalidateSchedule)
		api.GET("/exams/:group", h.GetExams)
		api.GET("/groups", h.ListGroups)
		api.GET("/cache/stats", h.CacheStats)

		// Store
		api.GET("/subscriptions", h.ListSubscriptions)
		api.GET("/subscriptions/groups", h.SubscribedGroups)
		api.GET("/subscribers/grades", h.GradeTrackers)
		api.GET("/subscribers/:user", h.GetSubscriber)
		api.POST("/subscribers/:user/unblock", h.UnblockSubscriber)
		api.GET("/stats", h.StoreStats)

		// Credential pool
		api.GET("/credentials", h.ListCredentials)
		api.GET("/credentials/stats", h.CredentialStats)
		api.POST("/credentials", h.AddCredentials)
		api.POST("/credentials/sync", h.SyncCredentials)
		api.POST("/credentials/health", h.CheckCredentials)

		// Dispatch
		api.POST("/dispatch/lessons", h.DispatchLessons)
		api.POST("/dispatch/exams", h.DispatchExams)
		api.POST("/grades/:user", h.PushGrades)

		// Assistant
		api.POST("/assist/complete", h.Complete)
		api.POST("/assist/transcribe", h.Transcribe)
	}
}

// limitBody caps request bodies with http.MaxBytesReader: routes listed in
// overrides (by registered Gin path) get their own cap, everything else gets
// def. Reads past the cap fail, which handlers report as a bad body.
func limitBody(def int64, overrides map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := def
		if v, ok := overrides[c.FullPath()]; ok {
			limit = v
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
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
