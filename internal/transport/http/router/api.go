package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"project-tracker/internal/core/config"
	"project-tracker/internal/realtime"
	"project-tracker/internal/service"
	"project-tracker/internal/transport/http/handler"
	mdw "project-tracker/internal/transport/http/middleware"
	resp "project-tracker/internal/transport/http/response"
)

type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	Auth      *service.AuthService
	Projects  *service.ProjectService
	Analytics *service.AnalyticsService
	Hub       *realtime.Hub
	// Window limits /api per client IP; nil means an in-process table.
	Window mdw.WindowLimiter
}

func NewAPIEngine(d Deps) *gin.Engine {
	cfg, l := d.Config, d.Log
	r := gin.New()
	r.HandleMethodNotAllowed = false

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(rate.Limit(cfg.RateLimit.GlobalRPS), cfg.RateLimit.GlobalBurst),
	)

	// long-lived, so it stays clear of the concurrency slots and the request deadline
	r.GET("/ws", mdw.Recovery(l), mdw.AccessLog(l), handler.WebSocket(d.Hub, cfg.App.CORSOrigins, l))

	r.Use(
		mdw.ConcurrencyLimit(cfg.RateLimit.MaxConcurrency),
		mdw.MaxBodyBytes(cfg.App.HTTP.MaxBodyBytes),
		mdw.Timeout(time.Duration(cfg.App.HTTP.RequestTimeoutSec)*time.Second),
		mdw.Recovery(l),
		mdw.Metrics(),
		mdw.AccessLog(l),
		mdw.CORS(cfg.App.CORSOrigins),
	)

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	window := d.Window
	if window == nil {
		window = mdw.NewMemoryWindow(time.Duration(cfg.RateLimit.WindowSec)*time.Second, cfg.RateLimit.MaxPerWindow)
	}
	api := r.Group("/api", mdw.RateLimitPerIP(window, l))

	authMW := mdw.AuthJWT(d.Auth)
	var reg Registry
	reg.Register(
		handler.NewAuthHandler(d.Auth, l),
		handler.NewProjectHandler(d.Projects, authMW, l),
		handler.NewAnalyticsHandler(d.Analytics, authMW, l),
	)
	reg.MountAll(api)

	r.NoRoute(func(c *gin.Context) {
		resp.Abort(c, http.StatusNotFound, resp.MsgRouteNotFound)
	})
	return r
}
