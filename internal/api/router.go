package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"dairy-collection-backend/config"
	"dairy-collection-backend/internal/mw"
	"dairy-collection-backend/internal/notification"
	"dairy-collection-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, s store.Store, tenants TenantResolver, webpushOptions *webpush.Options, pool *notification.WorkerPool) *gin.Engine {
	r := gin.Default()

	h := NewHandler(s, tenants, webpushOptions, pool)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	preflight := func(c *gin.Context) { c.Status(http.StatusOK) }

	// Device protocol endpoints. Every route answers GET (command in the
	// query), POST (command in the body) and a permissive OPTIONS.
	device := r.Group("/device", mw.RequestID(), mw.DeviceCORS(), rateLimiter)
	register := func(path string, handler gin.HandlerFunc, extra ...gin.HandlerFunc) {
		device.GET(path, append(extra, handler)...)
		device.POST(path, handler)
		device.OPTIONS(path, preflight)
	}

	// The roster export is the only cacheable device route: its output
	// does not depend on prior writes from the same device.
	register("/farmers", h.DeviceRoster, caching)
	register("/correction", h.DeviceCorrection)
	register("/correction/save", h.DeviceCorrectionSave)
	register("/correction/reset", h.DeviceCorrectionReset)
	register("/password", h.DevicePassword)
	register("/password/clear", h.DevicePasswordClear)
	register("/ratechart", h.DeviceRateChart)
	register("/firmware", h.DeviceFirmware)

	// Operator-facing API
	api := r.Group("/api", rateLimiter)
	{
		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	return r
}
