// Package health reports liveness and dependency readiness.
package health

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/server/respond"
	"resume-builder/internal/shared/storage/cache"
	"resume-builder/internal/shared/storage/db"
	"resume-builder/internal/shared/telemetry"
)

const checkTimeout = 2 * time.Second

// Service encapsulates health-related checks. DB and Cache are optional;
// a dependency that is not configured is reported as "disabled".
type Service struct {
	DB    *sql.DB
	Cache cache.Cache
}

// NewService constructs a new health service.
func NewService(database *sql.DB, c cache.Cache) *Service {
	return &Service{DB: database, Cache: c}
}

// Status returns a simple liveness payload.
func (s *Service) Status() map[string]bool {
	return map[string]bool{"ok": true}
}

// Ready checks each configured dependency. ok is false when any check fails.
func (s *Service) Ready(ctx context.Context) (checks map[string]string, ok bool) {
	checks = map[string]string{"database": "disabled", "cache": "disabled"}
	ok = true
	if s.DB != nil {
		checks["database"] = "ok"
		if err := db.Ping(ctx, s.DB, checkTimeout); err != nil {
			checks["database"] = err.Error()
			ok = false
		}
	}
	if s.Cache != nil {
		pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		checks["cache"] = "ok"
		if err := s.Cache.Ping(pingCtx); err != nil {
			checks["cache"] = err.Error()
			ok = false
		}
	}
	return checks, ok
}

// RegisterRoutes attaches /health and /health/ready.
func (s *Service) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", func(c *gin.Context) {
		respond.OK(c, s.Status())
	})
	rg.GET("/health/ready", func(c *gin.Context) {
		checks, ok := s.Ready(c.Request.Context())
		if !ok {
			telemetry.Warn("health.not_ready", map[string]any{"checks": checks})
			respond.JSON(c, http.StatusServiceUnavailable, gin.H{"ok": false, "checks": checks})
			return
		}
		respond.OK(c, gin.H{"ok": true, "checks": checks})
	})
}
