package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/eduloan/internal/access"
	"github.com/geocoder89/eduloan/internal/config"
	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/domain/application"
	"github.com/geocoder89/eduloan/internal/http/handlers"
	"github.com/geocoder89/eduloan/internal/http/middlewares"
	"github.com/geocoder89/eduloan/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

type IdentityService interface {
	handlers.IdentityService
	middlewares.SessionResolver
}

// Deps are the services the API serves. Prom and Gatherer may be nil.
type Deps struct {
	Identity     IdentityService
	Applications handlers.ApplicationService
	Directory    handlers.DirectoryService
	Prom         *observability.Prom
	Gatherer     prometheus.Gatherer
	Checks       map[string]handlers.Pinger
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := application.RegisterValidations(v); err != nil {
			log.Error("register validations failed", "err", err)
		}
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware("eduloan-api"))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(cfg.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.LoadSession(deps.Identity))
	r.Use(middlewares.RequestLogger())

	// health
	h := handlers.NewHealthHandler(deps.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// auth
	authHandler := handlers.NewAuthHandler(deps.Identity)
	limit := cfg.LoginRateLimit
	if limit <= 0 {
		limit = 10
	}
	loginLimiter := middlewares.NewRateLimiter(limit, time.Minute)

	authGroup := r.Group("/auth")
	authGroup.POST("/login", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/session", authHandler.Session)
	// change-password checks the current password, so it is throttled like login
	passwordLimiter := middlewares.NewRateLimiter(limit, time.Minute)
	authGroup.POST("/change-password",
		middlewares.RequireSession(),
		passwordLimiter.RateLimiterMiddleware(middlewares.KeyByAccountOrIP),
		authHandler.ChangePassword,
	)

	applicationsHandler := handlers.NewApplicationsHandler(deps.Applications)
	reviewsHandler := handlers.NewReviewsHandler(deps.Applications)
	usersHandler := handlers.NewUsersHandler(deps.Directory)
	dashboardHandler := handlers.NewDashboardHandler(deps.Applications, deps.Directory)

	// counselor area
	counselor := r.Group(access.DefaultPathFor(account.RoleCounselor), middlewares.RequireArea(account.RoleCounselor))
	counselor.GET("/dashboard", dashboardHandler.Counselor)
	counselor.POST("/applications", applicationsHandler.Create)
	counselor.GET("/applications", applicationsHandler.ListMine)
	counselor.GET("/applications/:id", applicationsHandler.Get)
	counselor.PUT("/applications/:id", applicationsHandler.Update)

	// approver area
	approver := r.Group(access.DefaultPathFor(account.RoleApprover), middlewares.RequireArea(account.RoleApprover))
	approver.GET("/dashboard", dashboardHandler.Approver)
	approver.GET("/applications/pending", reviewsHandler.ListPending)
	approver.GET("/applications/reviewed", reviewsHandler.ListReviewed)
	approver.GET("/applications/:id", reviewsHandler.Get)
	approver.POST("/applications/:id/approve", reviewsHandler.Approve)
	approver.POST("/applications/:id/reject", reviewsHandler.Reject)

	// admin area
	admin := r.Group(access.DefaultPathFor(account.RoleAdmin), middlewares.RequireArea(account.RoleAdmin))
	admin.GET("/dashboard", dashboardHandler.Admin)
	admin.GET("/users", usersHandler.List)
	admin.POST("/users", usersHandler.Create)
	admin.PUT("/users/:id", usersHandler.Update)
	admin.DELETE("/users/:id", usersHandler.Delete)

	// unknown paths send the caller to wherever they belong
	r.NoRoute(func(c *gin.Context) {
		handlers.RespondError(c, 404, "not_found", "Page not found", gin.H{
			"redirect": access.LandingPath(middlewares.SessionFromContext(c)),
		})
	})

	return r
}
