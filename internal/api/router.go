package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"checkin-backend/config"
	"checkin-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. keys serves the
// WebSocket key stream and may be nil when another source is in use.
func NewRouter(cfg config.ServerConfig, h *Handler, keys http.Handler) *gin.Engine {
	r := gin.Default()

	// Forget per-client buckets after ten idle minutes.
	limiter := mw.NewClientLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, 10*time.Minute)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	if keys != nil {
		// The key stream is long lived and must not count against the limiter.
		r.GET("/api/ws/keys", gin.WrapH(keys))
	}

	api := r.Group("/api")
	api.Use(mw.RateLimiter(limiter))
	{
		api.GET("/sessions", h.ListSessions)
		api.GET("/sessions/:name", h.GetSession)
		api.PUT("/sessions/:name/enabled", h.PutSessionEnabled)
		api.DELETE("/sessions/:name/error", h.DeleteSessionError)

		api.GET("/badges/normalize", caching, NormalizeBadge)
		api.PUT("/employees/:id/badge", h.PutEmployeeBadge)

		api.GET("/trainings/:id/attendance", h.GetTrainingAttendance)
		api.GET("/checkins/recent", h.GetRecentCheckins)
	}

	return r
}
