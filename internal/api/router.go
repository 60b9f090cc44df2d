package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/crowdsense/internal/api/handlers"
	"github.com/your-org/crowdsense/internal/api/ws"
	"github.com/your-org/crowdsense/internal/auth"
)

type RouterConfig struct {
	APIKey string
	Crowd  handlers.SnapshotReader
	Ads    handlers.AdService
	Hub    *ws.Hub
	Checks map[string]handlers.CheckFunc
	// AdsDir is served under /static/ads; empty disables it.
	AdsDir string
	// Media proxies /media/*key to object storage; nil disables it.
	Media handlers.MediaStore
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Creatives are fetched by signage players directly.
	if cfg.AdsDir != "" {
		r.Static("/static/ads", cfg.AdsDir)
	}
	if cfg.Media != nil {
		mediaH := handlers.NewMediaHandler(cfg.Media)
		r.GET("/media/*key", mediaH.Object)
	}

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	// Crowd
	crowdH := handlers.NewCrowdHandler(cfg.Crowd, cfg.Ads)
	v1.GET("/people_count", crowdH.PeopleCount)
	v1.GET("/tracks", crowdH.Tracks)
	v1.GET("/analytics", crowdH.Analytics)

	// Ads
	adH := handlers.NewAdHandler(cfg.Ads)
	v1.GET("/ads/current", adH.Current)
	v1.GET("/ads/stats", adH.Stats)
	v1.GET("/ads/analytics", adH.Analytics)
	v1.GET("/ads/history", adH.History)
	v1.POST("/ads/clear", adH.Clear)

	return r
}
