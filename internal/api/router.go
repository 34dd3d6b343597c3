package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/tobangado69/vrpsolver/internal/cache"
	"github.com/tobangado69/vrpsolver/internal/common/health"
	"github.com/tobangado69/vrpsolver/internal/common/logging"
	"github.com/tobangado69/vrpsolver/internal/common/middleware"
	"github.com/tobangado69/vrpsolver/internal/common/ratelimit"
	"github.com/tobangado69/vrpsolver/internal/common/validators"
	"github.com/tobangado69/vrpsolver/internal/config"
	"github.com/tobangado69/vrpsolver/internal/jobqueue"
	"github.com/tobangado69/vrpsolver/internal/realtime"
	solverhealth "github.com/tobangado69/vrpsolver/internal/solver/health"
	"github.com/tobangado69/vrpsolver/internal/store"
)

// Dependencies bundles every collaborator the router needs to wire
// handlers and middleware, following cmd/server/main.go's
// construct-then-wire ordering.
type Dependencies struct {
	Config      *config.Config
	Logger      *logging.Logger
	Store       *store.Manager
	Cache       *cache.RedisCache
	Jobs        *jobqueue.Manager
	Hub         *realtime.Hub
	HealthCheck *health.HealthChecker
	SolverStats *solverhealth.Recorder
	RateLimit   *ratelimit.Manager
	RateMonitor *ratelimit.Monitor
	Audit       *logging.AuditLogger
}

// New builds the fully wired Gin engine: compression, structured
// logging, CORS, security headers, API versioning, rate limiting, then
// the health/metrics/solve route groups.
func New(deps Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(logging.RequestLoggingMiddleware(deps.Logger))
	r.Use(logging.PerformanceLoggingMiddleware(deps.Logger, 1*time.Second))
	r.Use(logging.ErrorLoggingMiddleware(deps.Logger))
	r.Use(logging.RecoveryLoggingMiddleware(deps.Logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.Config.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.APIVersionMiddleware(middleware.DefaultAPIVersionConfig()))
	r.Use(middleware.ErrorHandler())

	r.Use(middleware.InstanceRateLimit(1200))
	if deps.RateLimit != nil {
		r.Use(deps.RateLimit.Middleware(deps.RateMonitor))
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	healthHandler := health.NewHandler(deps.HealthCheck)
	health.SetupHealthRoutes(r, healthHandler)

	if deps.SolverStats != nil {
		metricsHandler := solverhealth.NewMetricsHandler(deps.SolverStats)
		solverhealth.SetupMetricsRoutes(r, metricsHandler)
	}

	solveHandler := NewSolveHandler(deps.Store, deps.Cache, deps.Jobs, deps.Hub, deps.Audit)

	if deps.Audit != nil {
		r.Use(logging.AuditMiddleware(deps.Audit))
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthRequired(deps.Config.JWTSecret))
	{
		problems := v1.Group("/problems")
		{
			problems.POST("", solveHandler.SubmitProblem)
			problems.GET("", validators.ValidatePaginationParams(), solveHandler.ListRecentProblems)
		}

		solves := v1.Group("/solves")
		{
			solves.POST("", solveHandler.SubmitSolve)
			solves.GET("/:runID", middleware.NoCache(), solveHandler.GetSolveStatus)
			if deps.Cache != nil {
				responseCache := middleware.NewResponseCache(deps.Cache)
				solves.GET("/:runID/result", responseCache.CacheSolution(), solveHandler.GetSolution)
			} else {
				solves.GET("/:runID/result", solveHandler.GetSolution)
			}
			solves.DELETE("/:runID", solveHandler.CancelSolve)
			solves.GET("/:runID/stream", middleware.NoCache(), solveHandler.StreamSolve)
		}

		if deps.Jobs != nil {
			jobAPI := jobqueue.NewJobAPI(deps.Jobs)
			jobqueue.SetupJobRoutes(v1, jobAPI)
		}

		if deps.RateLimit != nil && deps.RateMonitor != nil {
			admin := v1.Group("/admin")
			admin.Use(middleware.RoleRequired("admin"))
			{
				rl := admin.Group("/rate-limit")
				rl.GET("/metrics", ratelimit.MetricsHandler(deps.RateMonitor))
				rl.GET("/health", ratelimit.HealthHandler(deps.RateMonitor))
				rl.GET("/stats", ratelimit.StatsHandler(deps.RateMonitor))
				rl.GET("/rules", ratelimit.RulesHandler(deps.RateLimit))
				rl.POST("/rules", ratelimit.RulesHandler(deps.RateLimit))
				rl.DELETE("/rules", ratelimit.RemoveRuleHandler(deps.RateLimit))
				rl.POST("/reset", ratelimit.ResetHandler(deps.RateLimit))
			}
		}
	}

	return r
}
