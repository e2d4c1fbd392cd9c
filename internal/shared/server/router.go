package server

import (
	"github.com/gin-gonic/gin"

	googleauth "resume-builder/internal/auth"
	"resume-builder/internal/profiles"
	"resume-builder/internal/resumes"
	"resume-builder/internal/services/health"
	"resume-builder/internal/shared/config"
	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/server/middleware"
	"resume-builder/internal/shared/storage/object"
	"resume-builder/internal/users"
)

// RouterDeps holds the handlers the router mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config         config.Config
	Health         *health.Service
	UserHandler    *users.Handler
	ProfileHandler *profiles.Handler
	ResumeHandler  *resumes.Handler
	GoogleAuth     *googleauth.GoogleService
	Files          object.Store
	RateLimiter    *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(middleware.Auth(middleware.PublicPrefixes...))
	// A zero budget leaves generation unlimited.
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			middleware.GenerationGroup: middleware.PerMinute(deps.Config.GenerationRatePerMin),
		},
		GroupFor: middleware.GroupForRoutes(map[string]string{
			resumes.CreateRoute: middleware.GenerationGroup,
		}),
		Limiter: deps.RateLimiter,
	}))

	if deps.Health != nil {
		deps.Health.RegisterRoutes(api)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.ProfileHandler != nil {
		deps.ProfileHandler.RegisterRoutes(api)
	}
	if deps.ResumeHandler != nil {
		deps.ResumeHandler.RegisterRoutes(api)
	}
	if deps.Files != nil {
		api.GET("/files/*key", serveFile(deps.Files))
	}
	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
